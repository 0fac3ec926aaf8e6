package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"practice-portal/internal/model"
)

const apptSelect = `SELECT a.id, a.client_id, a.provider_id, a.service_type, a.start_time, a.end_time,
	a.status, a.mode, a.location, a.notes, COALESCE(a.calendly_event_uri, ''),
	a.reminder_sent_at, a.followup_sent_at, a.created_at, a.updated_at,
	c.name, c.email, p.name
	FROM appointments a
	JOIN users c ON c.id = a.client_id
	JOIN users p ON p.id = a.provider_id`

func scanAppointment(row interface{ Scan(...any) error }) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := row.Scan(&a.ID, &a.ClientID, &a.ProviderID, &a.ServiceType, &a.StartTime, &a.EndTime,
		&a.Status, &a.Mode, &a.Location, &a.Notes, &a.CalendlyEventURI,
		&a.ReminderSentAt, &a.FollowUpSentAt, &a.CreatedAt, &a.UpdatedAt,
		&a.ClientName, &a.ClientEmail, &a.ProviderName)
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

func collectAppointments(rows pgx.Rows, err error) ([]model.Appointment, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// lockProvider serializes bookings per provider for the rest of the tx.
func lockProvider(ctx context.Context, tx pgx.Tx, providerID string) error {
	var id string
	err := tx.QueryRow(ctx,
		`SELECT id FROM users WHERE id = $1 AND role IN ('provider','admin') FOR UPDATE`, providerID,
	).Scan(&id)
	return mapErr(err)
}

func hasOverlap(ctx context.Context, q interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}, providerID string, start, end time.Time, excludeID string) (bool, error) {
	sql := `SELECT EXISTS(
		SELECT 1 FROM appointments
		WHERE provider_id = $1
		  AND status IN ('scheduled','confirmed')
		  AND start_time < $3
		  AND end_time > $2`

	args := []any{providerID, start, end}

	if excludeID != "" {
		sql += ` AND id != $4`
		args = append(args, excludeID)
	}
	sql += `)`

	var exists bool
	err := q.QueryRow(ctx, sql, args...).Scan(&exists)
	return exists, err
}

func (s *Store) HasOverlap(ctx context.Context, providerID string, start, end time.Time, excludeID string) (bool, error) {
	return hasOverlap(ctx, s.pool, providerID, start, end, excludeID)
}

// CreateAppointment books a slot. ErrNotFound means the provider does not
// exist; ErrConflict means the slot is taken.
func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockProvider(ctx, tx, a.ProviderID); err != nil {
		return err
	}
	if dup, err := hasOverlap(ctx, tx, a.ProviderID, a.StartTime, a.EndTime, ""); err != nil {
		return err
	} else if dup {
		return ErrConflict
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO appointments (id, client_id, provider_id, service_type, start_time, end_time,
		                           status, mode, location, notes, calendly_event_uri)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''))
		 RETURNING created_at, updated_at`,
		a.ID, a.ClientID, a.ProviderID, a.ServiceType, a.StartTime, a.EndTime,
		a.Status, a.Mode, a.Location, a.Notes, a.CalendlyEventURI,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		// db exclusion constraint caught a race
		return mapErr(err)
	}

	return tx.Commit(ctx)
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	return scanAppointment(s.pool.QueryRow(ctx, apptSelect+` WHERE a.id = $1`, id))
}

func (s *Store) AppointmentByCalendlyURI(ctx context.Context, uri string) (*model.Appointment, error) {
	return scanAppointment(s.pool.QueryRow(ctx, apptSelect+` WHERE a.calendly_event_uri = $1`, uri))
}

func (s *Store) ListClientAppointments(ctx context.Context, clientID string, from, to time.Time) ([]model.Appointment, error) {
	return collectAppointments(s.pool.Query(ctx,
		apptSelect+`
		 WHERE a.client_id = $1 AND a.start_time >= $2 AND a.start_time <= $3
		 ORDER BY a.start_time`, clientID, from, to))
}

// ListProviderAppointments lists a provider's calendar. An empty providerID
// lists every provider; an empty status lists every status.
func (s *Store) ListProviderAppointments(ctx context.Context, providerID string, from, to time.Time, status string) ([]model.Appointment, error) {
	return collectAppointments(s.pool.Query(ctx,
		apptSelect+`
		 WHERE ($1 = '' OR a.provider_id::text = $1)
		   AND a.start_time >= $2 AND a.start_time <= $3
		   AND ($4 = '' OR a.status = $4)
		 ORDER BY a.start_time`, providerID, from, to, status))
}

func (s *Store) UpcomingForClient(ctx context.Context, clientID string, now time.Time, limit int) ([]model.Appointment, error) {
	return collectAppointments(s.pool.Query(ctx,
		apptSelect+`
		 WHERE a.client_id = $1 AND a.start_time >= $2 AND a.status IN ('scheduled','confirmed')
		 ORDER BY a.start_time LIMIT $3`, clientID, now, limit))
}

func (s *Store) PastCountForClient(ctx context.Context, clientID string, now time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE client_id = $1 AND start_time < $2`, clientID, now,
	).Scan(&n)
	return n, err
}

func (s *Store) RescheduleAppointment(ctx context.Context, a *model.Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockProvider(ctx, tx, a.ProviderID); err != nil {
		return err
	}
	// exclude self from overlap check
	if dup, err := hasOverlap(ctx, tx, a.ProviderID, a.StartTime, a.EndTime, a.ID); err != nil {
		return err
	} else if dup {
		return ErrConflict
	}

	err = tx.QueryRow(ctx,
		`UPDATE appointments
		 SET start_time=$1, end_time=$2, reminder_sent_at=NULL, updated_at=NOW()
		 WHERE id=$3 AND client_id=$4 AND status IN ('scheduled','confirmed')
		 RETURNING updated_at`,
		a.StartTime, a.EndTime, a.ID, a.ClientID,
	).Scan(&a.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return tx.Commit(ctx)
}

// SetAppointmentStatus is a compare-and-set on status; ErrConflict means the
// row moved on since the caller read it.
func (s *Store) SetAppointmentStatus(ctx context.Context, id, from, to string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`,
		id, from, to,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// DueReminders returns active appointments starting within [now, now+lead]
// that have not been reminded yet.
func (s *Store) DueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]model.Appointment, error) {
	return collectAppointments(s.pool.Query(ctx,
		apptSelect+`
		 WHERE a.status IN ('scheduled','confirmed')
		   AND a.reminder_sent_at IS NULL
		   AND a.start_time >= $1 AND a.start_time <= $2
		 ORDER BY a.start_time`, now, now.Add(lead)))
}

func (s *Store) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE appointments SET reminder_sent_at=$2 WHERE id=$1`, id, at)
	return err
}

func (s *Store) PendingNoShowFollowUps(ctx context.Context) ([]model.Appointment, error) {
	return collectAppointments(s.pool.Query(ctx,
		apptSelect+`
		 WHERE a.status = 'no_show' AND a.followup_sent_at IS NULL
		 ORDER BY a.start_time`))
}

func (s *Store) MarkFollowUpSent(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE appointments SET followup_sent_at=$2 WHERE id=$1`, id, at)
	return err
}
