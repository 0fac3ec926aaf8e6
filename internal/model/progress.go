package model

import (
	"sort"
	"strings"
	"time"
)

type CourseProgress struct {
	TotalLessons     int    `json:"total_lessons"`
	CompletedLessons int    `json:"completed_lessons"`
	Percent          int    `json:"percent"`
	NextLessonID     string `json:"next_lesson_id,omitempty"`
	Completed        bool   `json:"completed"`
}

// ComputeCourseProgress aggregates lesson completion. The next lesson is the
// lowest-position lesson not yet completed.
func ComputeCourseProgress(lessons []Lesson, done map[string]bool) CourseProgress {
	ordered := make([]Lesson, len(lessons))
	copy(ordered, lessons)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	p := CourseProgress{TotalLessons: len(ordered)}
	for _, l := range ordered {
		if done[l.ID] {
			p.CompletedLessons++
		} else if p.NextLessonID == "" {
			p.NextLessonID = l.ID
		}
	}
	p.Percent = percent(p.CompletedLessons, p.TotalLessons)
	p.Completed = p.TotalLessons > 0 && p.CompletedLessons == p.TotalLessons
	return p
}

type WorkbookProgress struct {
	Answered        int      `json:"answered"`
	Total           int      `json:"total"`
	Percent         int      `json:"percent"`
	RequiredMissing []string `json:"required_missing"`
}

func ComputeWorkbookProgress(prompts []Prompt, answers map[string]string) WorkbookProgress {
	p := WorkbookProgress{Total: len(prompts), RequiredMissing: []string{}}
	for _, pr := range prompts {
		if strings.TrimSpace(answers[pr.Key]) != "" {
			p.Answered++
		} else if pr.Required {
			p.RequiredMissing = append(p.RequiredMissing, pr.Key)
		}
	}
	p.Percent = percent(p.Answered, p.Total)
	return p
}

// NoShowRate is no_shows / (completed + no_shows), 0 when both are zero.
func NoShowRate(completed, noShows int64) float64 {
	if completed+noShows == 0 {
		return 0
	}
	return float64(noShows) / float64(completed+noShows)
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return n * 100 / total
}

type WeeklyCount struct {
	WeekStart time.Time `json:"week_start"`
	Count     int64     `json:"count"`
}

type DashboardStats struct {
	TotalClients         int64         `json:"total_clients"`
	UpcomingAppointments int64         `json:"upcoming_appointments"`
	AppointmentsInRange  int64         `json:"appointments_in_range"`
	CompletedInRange     int64         `json:"completed_in_range"`
	NoShowsInRange       int64         `json:"no_shows_in_range"`
	NoShowRate           float64       `json:"no_show_rate"`
	ActiveEnrollments    int64         `json:"active_enrollments"`
	ActiveSubscribers    int64         `json:"active_subscribers"`
	OpenLeads            int64         `json:"open_leads"`
	RevenueCentsInRange  int64         `json:"revenue_cents_in_range"`
	WeeklyAppointments   []WeeklyCount `json:"weekly_appointments"`
}
