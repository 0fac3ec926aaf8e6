package store

import (
	"context"

	"github.com/google/uuid"

	"practice-portal/internal/model"
)

// Catalogue writes are used by content import. Rows are keyed by slug so an
// import can be re-run; lessons are keyed by position, which keeps lesson ids
// and therefore learner progress stable across imports.

func (s *Store) UpsertCourse(ctx context.Context, c *model.Course) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Currency == "" {
		c.Currency = "usd"
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO courses (id, slug, title, summary, description_markdown, price_cents, currency, stripe_price_id, published)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (slug) DO UPDATE SET
		   title = EXCLUDED.title,
		   summary = EXCLUDED.summary,
		   description_markdown = EXCLUDED.description_markdown,
		   price_cents = EXCLUDED.price_cents,
		   currency = EXCLUDED.currency,
		   stripe_price_id = EXCLUDED.stripe_price_id,
		   published = EXCLUDED.published
		 RETURNING id, created_at`,
		c.ID, c.Slug, c.Title, c.Summary, c.DescriptionMarkdown, c.PriceCents, c.Currency, c.StripePriceID, c.Published,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return mapErr(err)
	}

	positions := make([]int32, 0, len(c.Lessons))
	for i := range c.Lessons {
		l := &c.Lessons[i]
		l.CourseID = c.ID
		err := tx.QueryRow(ctx,
			`INSERT INTO lessons (id, course_id, position, title, body_markdown, duration_minutes)
			 VALUES ($1,$2,$3,$4,$5,$6)
			 ON CONFLICT (course_id, position) DO UPDATE SET
			   title = EXCLUDED.title,
			   body_markdown = EXCLUDED.body_markdown,
			   duration_minutes = EXCLUDED.duration_minutes
			 RETURNING id`,
			uuid.New().String(), c.ID, l.Position, l.Title, l.BodyMarkdown, l.DurationMinutes,
		).Scan(&l.ID)
		if err != nil {
			return mapErr(err)
		}
		positions = append(positions, int32(l.Position))
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM lessons WHERE course_id = $1 AND NOT (position = ANY($2))`, c.ID, positions); err != nil {
		return mapErr(err)
	}
	return tx.Commit(ctx)
}

func (s *Store) UpsertWorkbook(ctx context.Context, w *model.Workbook) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.Prompts == nil {
		w.Prompts = []model.Prompt{}
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO workbooks (id, slug, title, description, course_id, prompts)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (slug) DO UPDATE SET
		   title = EXCLUDED.title,
		   description = EXCLUDED.description,
		   course_id = EXCLUDED.course_id,
		   prompts = EXCLUDED.prompts
		 RETURNING id`,
		w.ID, w.Slug, w.Title, w.Description, w.CourseID, w.Prompts,
	).Scan(&w.ID)
	return mapErr(err)
}

func (s *Store) UpsertResource(ctx context.Context, r *model.Resource) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Category == "" {
		r.Category = "worksheet"
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO resources (id, slug, title, description, category, object_key, gated)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (slug) DO UPDATE SET
		   title = EXCLUDED.title,
		   description = EXCLUDED.description,
		   category = EXCLUDED.category,
		   object_key = EXCLUDED.object_key,
		   gated = EXCLUDED.gated
		 RETURNING id, created_at`,
		r.ID, r.Slug, r.Title, r.Description, r.Category, r.ObjectKey, r.Gated,
	).Scan(&r.ID, &r.CreatedAt)
	return mapErr(err)
}
