package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"practice-portal/internal/model"
)

const subscriberCols = `id, email, name, source, status, token, created_at, confirmed_at`

func scanSubscriber(row interface{ Scan(...any) error }) (*model.Subscriber, error) {
	sub := &model.Subscriber{}
	err := row.Scan(&sub.ID, &sub.Email, &sub.Name, &sub.Source, &sub.Status, &sub.Token, &sub.CreatedAt, &sub.ConfirmedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return sub, nil
}

// UpsertPendingSubscriber records a subscription request. Active subscribers
// are returned unchanged; anyone else is reset to pending with the new token.
func (s *Store) UpsertPendingSubscriber(ctx context.Context, email, name, source, token string) (*model.Subscriber, error) {
	return scanSubscriber(s.pool.QueryRow(ctx,
		`INSERT INTO subscribers (id, email, name, source, status, token)
		 VALUES ($1,$2,$3,$4,'pending',$5)
		 ON CONFLICT (email) DO UPDATE SET
		   status = CASE WHEN subscribers.status = 'active' THEN 'active' ELSE 'pending' END,
		   token  = CASE WHEN subscribers.status = 'active' THEN subscribers.token ELSE EXCLUDED.token END,
		   name   = COALESCE(NULLIF(EXCLUDED.name, ''), subscribers.name),
		   source = COALESCE(NULLIF(EXCLUDED.source, ''), subscribers.source)
		 RETURNING `+subscriberCols,
		uuid.New().String(), email, name, source, token))
}

func (s *Store) SubscriberByToken(ctx context.Context, token string) (*model.Subscriber, error) {
	return scanSubscriber(s.pool.QueryRow(ctx,
		`SELECT `+subscriberCols+` FROM subscribers WHERE token = $1`, token))
}

func (s *Store) SetSubscriberStatus(ctx context.Context, token, status string, at time.Time) (*model.Subscriber, error) {
	return scanSubscriber(s.pool.QueryRow(ctx,
		`UPDATE subscribers SET status = $2,
		   confirmed_at = CASE WHEN $2 = 'active' THEN COALESCE(confirmed_at, $3) ELSE confirmed_at END
		 WHERE token = $1
		 RETURNING `+subscriberCols, token, status, at))
}

func (s *Store) ListSubscribers(ctx context.Context, status string) ([]model.Subscriber, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriberCols+` FROM subscribers WHERE ($1 = '' OR status = $1) ORDER BY created_at`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func (s *Store) CreateContactMessage(ctx context.Context, m *model.ContactMessage) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO contact_messages (id, name, email, phone, topic, message, source_page)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at`,
		m.ID, m.Name, m.Email, m.Phone, m.Topic, m.Message, m.SourcePage,
	).Scan(&m.CreatedAt)
	return mapErr(err)
}

func (s *Store) ListContactMessages(ctx context.Context, includeHandled bool) ([]model.ContactMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, phone, topic, message, source_page, handled, created_at
		 FROM contact_messages WHERE $1 OR NOT handled ORDER BY created_at DESC`, includeHandled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ContactMessage
	for rows.Next() {
		var m model.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Topic, &m.Message, &m.SourcePage, &m.Handled, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ResolveContactMessage(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE contact_messages SET handled = TRUE WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
