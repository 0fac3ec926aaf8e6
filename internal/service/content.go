package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"practice-portal/internal/cache"
	"practice-portal/internal/content"
	"practice-portal/internal/logger"
	"practice-portal/internal/model"
)

const (
	DefaultPostLimit = 20
	MaxPostLimit     = 50
	excerptRunes     = 200
)

func (s *Service) ListPosts(ctx context.Context, tag string, limit, offset int) ([]PostView, error) {
	if limit <= 0 {
		limit = DefaultPostLimit
	}
	if limit > MaxPostLimit {
		limit = MaxPostLimit
	}
	if offset < 0 {
		offset = 0
	}
	tag = strings.ToLower(strings.TrimSpace(tag))

	key := fmt.Sprintf("%slist:%s:%d:%d", cache.PrefixPosts, tag, limit, offset)
	return cache.Fetch(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]PostView, error) {
		list, err := s.store.ListPublishedPosts(ctx, tag, limit, offset)
		if err != nil {
			return nil, err
		}
		out := make([]PostView, 0, len(list))
		for i := range list {
			out = append(out, newPostView(&list[i], false))
		}
		return out, nil
	})
}

func (s *Service) GetPost(ctx context.Context, slug string) (*PostView, error) {
	return cache.Fetch(ctx, s.cache, cache.PrefixPosts+"slug:"+slug, s.ttl, func(ctx context.Context) (*PostView, error) {
		p, err := s.store.PublishedPostBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		v := newPostView(p, true)
		return &v, nil
	})
}

type PublishInput struct {
	Title        string
	Slug         string
	Excerpt      string
	BodyMarkdown string
	Tags         []string
	Published    bool
}

// PublishPost renders and upserts a post by slug, then drops cached lists.
func (s *Service) PublishPost(ctx context.Context, in PublishInput) (*PostView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title", "required")
	}
	slug := content.Slugify(in.Slug)
	if slug == "" {
		slug = content.Slugify(title)
	}
	if slug == "" {
		return nil, invalid("slug", "cannot derive a slug from the title")
	}
	html, err := content.Render(in.BodyMarkdown)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", slug, err)
	}
	excerpt := strings.TrimSpace(in.Excerpt)
	if excerpt == "" {
		excerpt = content.Excerpt(in.BodyMarkdown, excerptRunes)
	}
	tags := make([]string, 0, len(in.Tags))
	seen := map[string]bool{}
	for _, t := range in.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}

	p := &model.BlogPost{
		Slug:         slug,
		Title:        title,
		Excerpt:      excerpt,
		BodyMarkdown: in.BodyMarkdown,
		BodyHTML:     html,
		Tags:         tags,
		Published:    in.Published,
	}
	if err := s.store.UpsertPost(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.PrefixPosts)
	v := newPostView(p, true)
	return &v, nil
}

func (s *Service) ListResources(ctx context.Context, category string) ([]ResourceView, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	return cache.Fetch(ctx, s.cache, cache.PrefixResources+category, s.ttl, func(ctx context.Context) ([]ResourceView, error) {
		list, err := s.store.ListResources(ctx, category)
		if err != nil {
			return nil, err
		}
		out := make([]ResourceView, 0, len(list))
		for _, r := range list {
			out = append(out, ResourceView{Slug: r.Slug, Title: r.Title, Description: r.Description, Category: r.Category, Gated: r.Gated})
		}
		return out, nil
	})
}

// DownloadResource presigns the resource file. Gated resources need a
// signed-in user or an active newsletter subscriber token.
func (s *Service) DownloadResource(ctx context.Context, slug, userID, subscriberToken string) (*DownloadView, error) {
	r, err := s.store.ResourceBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if r.Gated && userID == "" {
		ok, err := s.activeSubscriber(ctx, subscriberToken)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrUnauthorized
		}
	}
	if s.files == nil {
		return nil, ErrNotConfigured
	}
	url, exp, err := s.files.PresignGet(ctx, r.ObjectKey, r.Slug+path.Ext(r.ObjectKey))
	if err != nil {
		return nil, err
	}
	return &DownloadView{URL: url, ExpiresAt: exp}, nil
}

// invalidate drops cached entries under prefix. Failures only cost freshness
// until the TTL runs out, so they are logged.
func (s *Service) invalidate(ctx context.Context, prefix string) {
	if err := s.cache.InvalidatePrefix(ctx, prefix); err != nil {
		logger.WithCtx(ctx).Warn().Err(err).Str("prefix", prefix).Msg("cache invalidation failed")
	}
}
