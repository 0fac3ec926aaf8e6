package store

import (
	"context"

	"github.com/google/uuid"

	"practice-portal/internal/model"
)

const postCols = `id, slug, title, excerpt, body_markdown, body_html, tags, published, published_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (*model.BlogPost, error) {
	p := &model.BlogPost{}
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.BodyMarkdown, &p.BodyHTML,
		&p.Tags, &p.Published, &p.PublishedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

// ListPublishedPosts returns published posts newest first, optionally by tag.
func (s *Store) ListPublishedPosts(ctx context.Context, tag string, limit, offset int) ([]model.BlogPost, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postCols+` FROM blog_posts
		 WHERE published AND ($1 = '' OR $1 = ANY(tags))
		 ORDER BY published_at DESC NULLS LAST
		 LIMIT $2 OFFSET $3`, tag, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlogPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) PublishedPostBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	return scanPost(s.pool.QueryRow(ctx,
		`SELECT `+postCols+` FROM blog_posts WHERE slug = $1 AND published`, slug))
}

// UpsertPost inserts or replaces a post by slug. published_at is stamped the
// first time a post goes live and kept afterwards.
func (s *Store) UpsertPost(ctx context.Context, p *model.BlogPost) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO blog_posts (id, slug, title, excerpt, body_markdown, body_html, tags, published, published_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8, CASE WHEN $8 THEN NOW() END)
		 ON CONFLICT (slug) DO UPDATE SET
		   title = EXCLUDED.title,
		   excerpt = EXCLUDED.excerpt,
		   body_markdown = EXCLUDED.body_markdown,
		   body_html = EXCLUDED.body_html,
		   tags = EXCLUDED.tags,
		   published = EXCLUDED.published,
		   published_at = CASE WHEN EXCLUDED.published THEN COALESCE(blog_posts.published_at, NOW()) END,
		   updated_at = NOW()
		 RETURNING id, published_at, updated_at`,
		p.ID, p.Slug, p.Title, p.Excerpt, p.BodyMarkdown, p.BodyHTML, p.Tags, p.Published,
	).Scan(&p.ID, &p.PublishedAt, &p.UpdatedAt)
	return mapErr(err)
}

const resourceCols = `id, slug, title, description, category, object_key, gated, created_at`

func scanResource(row interface{ Scan(...any) error }) (*model.Resource, error) {
	r := &model.Resource{}
	err := row.Scan(&r.ID, &r.Slug, &r.Title, &r.Description, &r.Category, &r.ObjectKey, &r.Gated, &r.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return r, nil
}

func (s *Store) ListResources(ctx context.Context, category string) ([]model.Resource, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+resourceCols+` FROM resources
		 WHERE ($1 = '' OR category = $1)
		 ORDER BY category, title`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) ResourceBySlug(ctx context.Context, slug string) (*model.Resource, error) {
	return scanResource(s.pool.QueryRow(ctx,
		`SELECT `+resourceCols+` FROM resources WHERE slug = $1`, slug))
}
