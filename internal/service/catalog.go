package service

import (
	"context"
	"fmt"

	"practice-portal/internal/cache"
	"practice-portal/internal/content"
	"practice-portal/internal/model"
)

// Catalog is the import format for courses, workbooks and downloadable
// resources.
type Catalog struct {
	Courses   []CatalogCourse   `json:"courses"`
	Workbooks []CatalogWorkbook `json:"workbooks"`
	Resources []CatalogResource `json:"resources"`
}

type CatalogCourse struct {
	Slug          string          `json:"slug"`
	Title         string          `json:"title"`
	Summary       string          `json:"summary"`
	Description   string          `json:"description_markdown"`
	PriceCents    int64           `json:"price_cents"`
	Currency      string          `json:"currency"`
	StripePriceID string          `json:"stripe_price_id"`
	Published     bool            `json:"published"`
	Lessons       []CatalogLesson `json:"lessons"`
}

// CatalogLesson positions follow their order in the file.
type CatalogLesson struct {
	Title           string `json:"title"`
	BodyMarkdown    string `json:"body_markdown"`
	DurationMinutes int    `json:"duration_minutes"`
}

type CatalogWorkbook struct {
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Course      string         `json:"course"`
	Prompts     []model.Prompt `json:"prompts"`
}

type CatalogResource struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ObjectKey   string `json:"object_key"`
	Gated       bool   `json:"gated"`
}

type ImportResult struct {
	Courses   int `json:"courses"`
	Lessons   int `json:"lessons"`
	Workbooks int `json:"workbooks"`
	Resources int `json:"resources"`
}

// ImportCatalog upserts everything in c. Workbooks may reference a course in
// the same file by slug.
func (s *Service) ImportCatalog(ctx context.Context, c Catalog) (*ImportResult, error) {
	res := &ImportResult{}
	courseIDs := map[string]string{}

	for _, in := range c.Courses {
		slug := content.Slugify(in.Slug)
		if slug == "" {
			slug = content.Slugify(in.Title)
		}
		if slug == "" || in.Title == "" {
			return res, invalid("courses", "every course needs a title")
		}
		course := &model.Course{
			Slug:                slug,
			Title:               in.Title,
			Summary:             in.Summary,
			DescriptionMarkdown: in.Description,
			PriceCents:          in.PriceCents,
			Currency:            in.Currency,
			StripePriceID:       in.StripePriceID,
			Published:           in.Published,
		}
		for i, l := range in.Lessons {
			course.Lessons = append(course.Lessons, model.Lesson{
				Position:        i + 1,
				Title:           l.Title,
				BodyMarkdown:    l.BodyMarkdown,
				DurationMinutes: l.DurationMinutes,
			})
		}
		if err := s.store.UpsertCourse(ctx, course); err != nil {
			return res, fmt.Errorf("course %s: %w", slug, err)
		}
		courseIDs[slug] = course.ID
		res.Courses++
		res.Lessons += len(course.Lessons)
	}

	for _, in := range c.Workbooks {
		w := &model.Workbook{
			Slug:        content.Slugify(in.Slug),
			Title:       in.Title,
			Description: in.Description,
			Prompts:     in.Prompts,
		}
		if w.Slug == "" {
			w.Slug = content.Slugify(in.Title)
		}
		seen := map[string]bool{}
		for _, p := range w.Prompts {
			if p.Key == "" || seen[p.Key] {
				return res, invalid("workbooks."+w.Slug, "prompt keys must be unique and non-empty")
			}
			seen[p.Key] = true
		}
		if in.Course != "" {
			id, ok := courseIDs[in.Course]
			if !ok {
				existing, err := s.store.CourseBySlug(ctx, in.Course)
				if err != nil {
					return res, fmt.Errorf("workbook %s course %s: %w", w.Slug, in.Course, err)
				}
				id = existing.ID
			}
			w.CourseID = &id
		}
		if err := s.store.UpsertWorkbook(ctx, w); err != nil {
			return res, fmt.Errorf("workbook %s: %w", w.Slug, err)
		}
		res.Workbooks++
	}

	for _, in := range c.Resources {
		r := &model.Resource{
			Slug:        content.Slugify(in.Slug),
			Title:       in.Title,
			Description: in.Description,
			Category:    in.Category,
			ObjectKey:   in.ObjectKey,
			Gated:       in.Gated,
		}
		if r.Slug == "" || r.ObjectKey == "" {
			return res, invalid("resources", "every resource needs a slug and an object_key")
		}
		if err := s.store.UpsertResource(ctx, r); err != nil {
			return res, fmt.Errorf("resource %s: %w", r.Slug, err)
		}
		res.Resources++
	}

	s.invalidate(ctx, cache.PrefixCourses)
	s.invalidate(ctx, cache.PrefixResources)
	return res, nil
}
