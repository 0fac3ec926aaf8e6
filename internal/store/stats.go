package store

import (
	"context"
	"time"

	"practice-portal/internal/model"
)

// DashboardStats aggregates practice-wide numbers for the window [from, to).
// Upcoming appointments are counted from now regardless of the window.
func (s *Store) DashboardStats(ctx context.Context, from, to, now time.Time) (*model.DashboardStats, error) {
	st := &model.DashboardStats{WeeklyAppointments: []model.WeeklyCount{}}

	err := s.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM users WHERE role = 'client'),
		   (SELECT COUNT(*) FROM appointments WHERE start_time >= $3 AND status IN ('scheduled','confirmed')),
		   (SELECT COUNT(*) FROM appointments WHERE start_time >= $1 AND start_time < $2),
		   (SELECT COUNT(*) FROM appointments WHERE start_time >= $1 AND start_time < $2 AND status = 'completed'),
		   (SELECT COUNT(*) FROM appointments WHERE start_time >= $1 AND start_time < $2 AND status = 'no_show'),
		   (SELECT COUNT(*) FROM enrollments WHERE status = 'active'),
		   (SELECT COUNT(*) FROM subscribers WHERE status = 'active'),
		   (SELECT COUNT(*) FROM contact_messages WHERE NOT handled),
		   (SELECT COALESCE(SUM(amount_cents), 0)::bigint FROM payments WHERE created_at >= $1 AND created_at < $2)`,
		from, to, now,
	).Scan(&st.TotalClients, &st.UpcomingAppointments, &st.AppointmentsInRange,
		&st.CompletedInRange, &st.NoShowsInRange, &st.ActiveEnrollments,
		&st.ActiveSubscribers, &st.OpenLeads, &st.RevenueCentsInRange)
	if err != nil {
		return nil, err
	}
	st.NoShowRate = model.NoShowRate(st.CompletedInRange, st.NoShowsInRange)

	rows, err := s.pool.Query(ctx,
		`SELECT date_trunc('week', start_time) AS wk, COUNT(*)
		 FROM appointments
		 WHERE start_time >= $1 AND start_time < $2
		 GROUP BY wk ORDER BY wk`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var wc model.WeeklyCount
		if err := rows.Scan(&wc.WeekStart, &wc.Count); err != nil {
			return nil, err
		}
		st.WeeklyAppointments = append(st.WeeklyAppointments, wc)
	}
	return st, rows.Err()
}
