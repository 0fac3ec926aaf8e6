package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"practice-portal/internal/model"
)

// MaxAnswerRunes caps a single workbook answer.
const MaxAnswerRunes = 10000

// workbookFor loads a workbook and checks the caller may use it. Workbooks
// attached to a course need an active enrollment in that course.
func (s *Service) workbookFor(ctx context.Context, userID, slug string) (*model.Workbook, error) {
	w, err := s.store.WorkbookBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if w.CourseID != nil {
		ok, err := s.activeEnrollment(ctx, userID, *w.CourseID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.ErrNotEnrolled
		}
	}
	return w, nil
}

func (s *Service) GetWorkbook(ctx context.Context, userID, slug string) (*WorkbookView, error) {
	w, err := s.workbookFor(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	saved, err := s.store.Responses(ctx, userID, w.ID)
	if err != nil {
		return nil, err
	}
	submitted, err := s.store.SubmittedAt(ctx, userID, w.ID)
	if err != nil {
		return nil, err
	}

	answers := make(map[string]string, len(saved))
	v := &WorkbookView{
		ID:          w.ID,
		Slug:        w.Slug,
		Title:       w.Title,
		Description: w.Description,
		Prompts:     make([]PromptView, 0, len(w.Prompts)),
		SubmittedAt: submitted,
	}
	for _, p := range w.Prompts {
		pv := PromptView{Key: p.Key, Question: p.Question, Required: p.Required}
		if r, ok := saved[p.Key]; ok {
			pv.Answer = r.Answer
			at := r.UpdatedAt
			pv.UpdatedAt = &at
			answers[p.Key] = r.Answer
		}
		v.Prompts = append(v.Prompts, pv)
	}
	v.Progress = model.ComputeWorkbookProgress(w.Prompts, answers)
	return v, nil
}

// normalizeAnswers trims each answer, caps it at MaxAnswerRunes and rejects
// keys the workbook does not define.
func normalizeAnswers(prompts []model.Prompt, in map[string]string) (map[string]string, error) {
	known := make(map[string]bool, len(prompts))
	for _, p := range prompts {
		known[p.Key] = true
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if !known[k] {
			return nil, invalid("answers."+k, "unknown prompt")
		}
		v = strings.TrimSpace(v)
		if utf8.RuneCountInString(v) > MaxAnswerRunes {
			v = string([]rune(v)[:MaxAnswerRunes])
		}
		out[k] = v
	}
	return out, nil
}

// AutoSave stores a batch of answers. With clientUpdatedAt set, answers the
// server has seen a newer write for are left alone and listed as conflicts.
func (s *Service) AutoSave(ctx context.Context, userID, slug string, answers map[string]string, clientUpdatedAt *time.Time) (*AutoSaveResult, error) {
	w, err := s.workbookFor(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, invalid("answers", "required")
	}
	clean, err := normalizeAnswers(w.Prompts, answers)
	if err != nil {
		return nil, err
	}

	saved, conflicts, savedAt, err := s.store.SaveResponses(ctx, userID, w.ID, clean, clientUpdatedAt)
	if err != nil {
		return nil, err
	}
	all, err := s.store.Responses(ctx, userID, w.ID)
	if err != nil {
		return nil, err
	}
	current := make(map[string]string, len(all))
	for k, r := range all {
		current[k] = r.Answer
	}
	// nothing written: report when the winning copies were stored
	if savedAt.IsZero() {
		for _, k := range conflicts {
			if at := all[k].UpdatedAt; at.After(savedAt) {
				savedAt = at
			}
		}
	}
	return &AutoSaveResult{
		SavedKeys: sorted(saved),
		Conflicts: sorted(conflicts),
		Progress:  model.ComputeWorkbookProgress(w.Prompts, current),
		SavedAt:   savedAt,
	}, nil
}

// SubmitWorkbook records a submission once every required prompt has an
// answer. Submitting again moves the timestamp.
func (s *Service) SubmitWorkbook(ctx context.Context, userID, slug string) (time.Time, error) {
	w, err := s.workbookFor(ctx, userID, slug)
	if err != nil {
		return time.Time{}, err
	}
	all, err := s.store.Responses(ctx, userID, w.ID)
	if err != nil {
		return time.Time{}, err
	}
	answers := make(map[string]string, len(all))
	for k, r := range all {
		answers[k] = r.Answer
	}
	if p := model.ComputeWorkbookProgress(w.Prompts, answers); len(p.RequiredMissing) > 0 {
		return time.Time{}, &IncompleteError{Missing: p.RequiredMissing}
	}
	return s.store.SubmitWorkbook(ctx, userID, w.ID)
}

func (s *Service) workbookProgressViews(ctx context.Context, userID string) ([]WorkbookProgressView, error) {
	activity, err := s.store.WorkbookActivity(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]WorkbookProgressView, 0, len(activity))
	for _, a := range activity {
		out = append(out, WorkbookProgressView{
			Slug:        a.Workbook.Slug,
			Title:       a.Workbook.Title,
			Progress:    model.ComputeWorkbookProgress(a.Workbook.Prompts, a.Answers),
			SubmittedAt: a.SubmittedAt,
		})
	}
	return out, nil
}
