package adminrpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"practice-portal/internal/logger"
	"practice-portal/internal/middleware"
	"practice-portal/internal/model"
	"practice-portal/internal/service"
	"practice-portal/internal/store"
)

// Server implements AdminServer on top of the practice service. Callers are
// authenticated by the Auth interceptor before any method runs.
type Server struct {
	svc *service.Service
}

var _ AdminServer = (*Server)(nil)

func NewServer(svc *service.Service) *Server {
	return &Server{svc: svc}
}

func actor(ctx context.Context) service.Actor {
	return service.Actor{ID: middleware.UserID(ctx), Role: middleware.Role(ctx)}
}

func (s *Server) DashboardStats(ctx context.Context, req *StatsRequest) (*model.DashboardStats, error) {
	st, err := s.svc.AdminStats(ctx, req.RangeDays)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return st, nil
}

func (s *Server) ListAppointments(ctx context.Context, req *ListAppointmentsRequest) (*ListAppointmentsResponse, error) {
	list, err := s.svc.ListForStaff(ctx, actor(ctx), req.From, req.To, req.Status)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &ListAppointmentsResponse{Appointments: list}, nil
}

func (s *Server) SetAppointmentStatus(ctx context.Context, req *SetAppointmentStatusRequest) (*AppointmentResponse, error) {
	a, err := s.svc.SetStatus(ctx, actor(ctx), req.ID, req.Status)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &AppointmentResponse{Appointment: a}, nil
}

func (s *Server) ListLeads(ctx context.Context, req *ListLeadsRequest) (*ListLeadsResponse, error) {
	leads, err := s.svc.ListLeads(ctx, req.IncludeHandled)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &ListLeadsResponse{Leads: leads}, nil
}

func (s *Server) ResolveLead(ctx context.Context, req *ResolveLeadRequest) (*Empty, error) {
	if err := s.svc.ResolveLead(ctx, req.ID); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *Server) ListSubscribers(ctx context.Context, req *ListSubscribersRequest) (*ListSubscribersResponse, error) {
	subs, err := s.svc.ListSubscribers(ctx, req.Status)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &ListSubscribersResponse{Subscribers: subs}, nil
}

func (s *Server) PublishPost(ctx context.Context, req *PublishPostRequest) (*PostResponse, error) {
	p, err := s.svc.PublishPost(ctx, service.PublishInput{
		Title:        req.Title,
		Slug:         req.Slug,
		Excerpt:      req.Excerpt,
		BodyMarkdown: req.BodyMarkdown,
		Tags:         req.Tags,
		Published:    req.Published,
	})
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &PostResponse{Post: p}, nil
}

func toStatus(ctx context.Context, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, model.ErrInvalidTransition), errors.Is(err, service.ErrTooEarly):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, store.ErrConflict):
		return status.Error(codes.AlreadyExists, "conflict")
	case errors.Is(err, service.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	default:
		logger.WithCtx(ctx).Error().Err(err).Msg("admin call failed")
		return status.Error(codes.Internal, "internal error")
	}
}
