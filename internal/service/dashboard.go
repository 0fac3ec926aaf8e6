package service

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"practice-portal/internal/cache"
	"practice-portal/internal/model"
)

const (
	upcomingOnDashboard = 5
	statsTTL            = 60 * time.Second
	DefaultRangeDays    = 30
	MaxRangeDays        = 366
)

// ClientDashboard gathers the signed-in client's overview. The sections are
// independent and load concurrently.
func (s *Service) ClientDashboard(ctx context.Context, userID string) (*Dashboard, error) {
	now := s.now()
	d := &Dashboard{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.store.UpcomingForClient(gctx, userID, now, upcomingOnDashboard)
		if err != nil {
			return err
		}
		d.UpcomingAppointments = appointmentViews(list)
		return nil
	})
	g.Go(func() error {
		n, err := s.store.PastCountForClient(gctx, userID, now)
		d.PastAppointmentsCount = n
		return err
	})
	g.Go(func() error {
		courses, err := s.courseProgressViews(gctx, userID)
		d.Courses = courses
		return err
	})
	g.Go(func() error {
		wbs, err := s.workbookProgressViews(gctx, userID)
		d.Workbooks = wbs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// AdminStats returns the practice dashboard numbers for the last rangeDays
// days, cached briefly in redis.
func (s *Service) AdminStats(ctx context.Context, rangeDays int) (*model.DashboardStats, error) {
	if rangeDays <= 0 {
		rangeDays = DefaultRangeDays
	}
	if rangeDays > MaxRangeDays {
		return nil, invalid("range_days", "at most "+strconv.Itoa(MaxRangeDays))
	}
	key := cache.KeyAdminStats + strconv.Itoa(rangeDays)
	return cache.Fetch(ctx, s.cache, key, statsTTL, func(ctx context.Context) (*model.DashboardStats, error) {
		now := s.now()
		return s.store.DashboardStats(ctx, now.AddDate(0, 0, -rangeDays), now, now)
	})
}
