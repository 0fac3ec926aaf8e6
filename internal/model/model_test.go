package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		ok       bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusNoShow, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusScheduled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCompleted, StatusNoShow, false},
		{StatusNoShow, StatusCompleted, false},
		{"bogus", StatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestValidateSlot(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		start, end time.Time
		want       error
	}{
		{"ok", now.Add(time.Hour), now.Add(2 * time.Hour), nil},
		{"end before start", now.Add(time.Hour), now, ErrEndBeforeStart},
		{"equal", now.Add(time.Hour), now.Add(time.Hour), ErrEndBeforeStart},
		{"past", now.Add(-2 * time.Hour), now.Add(-time.Hour), ErrInPast},
		{"within grace", now.Add(-2 * time.Minute), now.Add(time.Hour), nil},
		{"too short", now.Add(time.Hour), now.Add(time.Hour + 10*time.Minute), ErrSlotLength},
		{"too long", now.Add(time.Hour), now.Add(6 * time.Hour), ErrSlotLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateSlot(tt.start, tt.end, now))
		})
	}
}

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	h := time.Hour

	assert.True(t, Overlaps(base, base.Add(h), base, base.Add(h)), "same slot")
	assert.True(t, Overlaps(base, base.Add(h), base.Add(30*time.Minute), base.Add(90*time.Minute)), "partial")
	assert.True(t, Overlaps(base, base.Add(3*h), base.Add(h), base.Add(2*h)), "contains")
	assert.False(t, Overlaps(base, base.Add(h), base.Add(h), base.Add(2*h)), "adjacent")
	assert.False(t, Overlaps(base.Add(2*h), base.Add(3*h), base, base.Add(h)), "disjoint")
}

func TestComputeCourseProgress(t *testing.T) {
	lessons := []Lesson{
		{ID: "c", Position: 3},
		{ID: "a", Position: 1},
		{ID: "b", Position: 2},
	}

	p := ComputeCourseProgress(lessons, map[string]bool{"a": true})
	assert.Equal(t, 3, p.TotalLessons)
	assert.Equal(t, 1, p.CompletedLessons)
	assert.Equal(t, 33, p.Percent)
	assert.Equal(t, "b", p.NextLessonID)
	assert.False(t, p.Completed)

	p = ComputeCourseProgress(lessons, map[string]bool{"a": true, "b": true, "c": true})
	assert.Equal(t, 100, p.Percent)
	assert.Empty(t, p.NextLessonID)
	assert.True(t, p.Completed)

	p = ComputeCourseProgress(nil, nil)
	assert.Equal(t, 0, p.Percent)
	assert.False(t, p.Completed)
}

func TestComputeWorkbookProgress(t *testing.T) {
	prompts := []Prompt{
		{Key: "values", Required: true},
		{Key: "goals", Required: true},
		{Key: "notes"},
	}
	p := ComputeWorkbookProgress(prompts, map[string]string{
		"values": "family",
		"goals":  "   ",
		"notes":  "n",
	})
	assert.Equal(t, 2, p.Answered)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 66, p.Percent)
	assert.Equal(t, []string{"goals"}, p.RequiredMissing)
}

func TestNoShowRate(t *testing.T) {
	assert.Zero(t, NoShowRate(0, 0))
	assert.InDelta(t, 0.25, NoShowRate(3, 1), 1e-9)
	assert.InDelta(t, 1.0, NoShowRate(0, 2), 1e-9)
}
