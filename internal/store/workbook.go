package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"practice-portal/internal/model"
)

func (s *Store) WorkbookBySlug(ctx context.Context, slug string) (*model.Workbook, error) {
	w := &model.Workbook{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, slug, title, description, course_id, prompts FROM workbooks WHERE slug = $1`, slug,
	).Scan(&w.ID, &w.Slug, &w.Title, &w.Description, &w.CourseID, &w.Prompts)
	if err != nil {
		return nil, mapErr(err)
	}
	return w, nil
}

// Responses returns the user's saved answers for a workbook keyed by prompt.
func (s *Store) Responses(ctx context.Context, userID, workbookID string) (map[string]model.WorkbookResponse, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT prompt_key, answer, updated_at FROM workbook_responses
		 WHERE user_id = $1 AND workbook_id = $2`, userID, workbookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]model.WorkbookResponse{}
	for rows.Next() {
		r := model.WorkbookResponse{UserID: userID, WorkbookID: workbookID}
		if err := rows.Scan(&r.PromptKey, &r.Answer, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out[r.PromptKey] = r
	}
	return out, rows.Err()
}

// SaveResponses upserts answers in one transaction. When notAfter is set, a
// stored answer updated after it is left alone and its key is returned as a
// conflict. savedAt is the newest updated_at the database wrote, zero when
// nothing was saved.
func (s *Store) SaveResponses(ctx context.Context, userID, workbookID string, answers map[string]string, notAfter *time.Time) (saved, conflicts []string, savedAt time.Time, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	defer tx.Rollback(ctx)

	saved, conflicts = []string{}, []string{}
	for key, answer := range answers {
		var at time.Time
		err := tx.QueryRow(ctx,
			`INSERT INTO workbook_responses (user_id, workbook_id, prompt_key, answer, updated_at)
			 VALUES ($1,$2,$3,$4,NOW())
			 ON CONFLICT (user_id, workbook_id, prompt_key) DO UPDATE
			   SET answer = EXCLUDED.answer, updated_at = NOW()
			   WHERE $5::timestamptz IS NULL OR workbook_responses.updated_at <= $5::timestamptz
			 RETURNING updated_at`,
			userID, workbookID, key, answer, notAfter).Scan(&at)
		if errors.Is(err, pgx.ErrNoRows) {
			conflicts = append(conflicts, key)
			continue
		}
		if err != nil {
			return nil, nil, time.Time{}, mapErr(err)
		}
		saved = append(saved, key)
		if at.After(savedAt) {
			savedAt = at
		}
	}
	return saved, conflicts, savedAt, tx.Commit(ctx)
}

func (s *Store) SubmitWorkbook(ctx context.Context, userID, workbookID string) (time.Time, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx,
		`INSERT INTO workbook_submissions (user_id, workbook_id) VALUES ($1,$2)
		 ON CONFLICT (user_id, workbook_id) DO UPDATE SET submitted_at = NOW()
		 RETURNING submitted_at`, userID, workbookID,
	).Scan(&at)
	return at, mapErr(err)
}

// SubmittedAt returns the user's last submission time, or nil.
func (s *Store) SubmittedAt(ctx context.Context, userID, workbookID string) (*time.Time, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT submitted_at FROM workbook_submissions WHERE user_id = $1 AND workbook_id = $2`,
		userID, workbookID,
	).Scan(&at)
	if err := mapErr(err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &at, nil
}

type WorkbookActivity struct {
	Workbook    model.Workbook
	Answers     map[string]string
	SubmittedAt *time.Time
}

// WorkbookActivity lists every workbook the user has answered at least once.
func (s *Store) WorkbookActivity(ctx context.Context, userID string) ([]WorkbookActivity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT w.id, w.slug, w.title, w.description, w.course_id, w.prompts, ws.submitted_at
		 FROM workbooks w
		 LEFT JOIN workbook_submissions ws ON ws.workbook_id = w.id AND ws.user_id = $1
		 WHERE EXISTS (SELECT 1 FROM workbook_responses r WHERE r.workbook_id = w.id AND r.user_id = $1)
		 ORDER BY w.title`, userID)
	if err != nil {
		return nil, err
	}
	var out []WorkbookActivity
	for rows.Next() {
		var a WorkbookActivity
		w := &a.Workbook
		if err := rows.Scan(&w.ID, &w.Slug, &w.Title, &w.Description, &w.CourseID, &w.Prompts, &a.SubmittedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		resp, err := s.Responses(ctx, userID, out[i].Workbook.ID)
		if err != nil {
			return nil, err
		}
		out[i].Answers = make(map[string]string, len(resp))
		for k, r := range resp {
			out[i].Answers[k] = r.Answer
		}
	}
	return out, nil
}
