package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"practice-portal/internal/auth"
	"practice-portal/internal/logger"
	"practice-portal/internal/model"
	"practice-portal/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRegistration       = errors.New("registration failed")
	ErrSessionExpired     = errors.New("session expired")
)

// Session is what a successful login hands back: a short-lived access token
// and the raw refresh token for the cookie.
type Session struct {
	User           UserView
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// Register creates a client account. A taken email is reported as a generic
// failure so the endpoint cannot be used to probe for accounts.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         model.RoleClient,
	}
	err = s.store.CreateUser(ctx, u)
	if errors.Is(err, store.ErrConflict) {
		// a passwordless account from a Calendly booking can be claimed once
		claimed, cerr := s.store.ClaimPasswordless(ctx, u.Email, hash, u.Name, u.Phone)
		if errors.Is(cerr, store.ErrNotFound) {
			return nil, ErrRegistration
		}
		if cerr != nil {
			return nil, cerr
		}
		return s.issue(ctx, claimed)
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = s.now()
	return s.issue(ctx, u)
}

// SetRole promotes or demotes an account. Only the operator CLI calls it.
func (s *Service) SetRole(ctx context.Context, email, role string) error {
	switch role {
	case model.RoleClient, model.RoleProvider, model.RoleAdmin:
	default:
		return invalid("role", "must be client, provider or admin")
	}
	return s.store.SetRole(ctx, strings.TrimSpace(email), role)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.UserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, u)
}

func (s *Service) issue(ctx context.Context, u *model.User) (*Session, error) {
	tok, err := auth.MakeToken(u.ID, u.Role, s.secret)
	if err != nil {
		return nil, err
	}
	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	exp := now.Add(auth.RefreshTTL)
	if _, err := s.store.CreateRefreshToken(ctx, u.ID, hash, exp); err != nil {
		return nil, err
	}
	return &Session{
		User:           NewUserView(u),
		AccessToken:    tok,
		AccessExpires:  now.Add(auth.AccessTTL),
		RefreshToken:   raw,
		RefreshExpires: exp,
	}, nil
}

// Refresh rotates a refresh token. Presenting a token that was already
// rotated revokes every session of its owner.
func (s *Service) Refresh(ctx context.Context, raw string) (*Session, error) {
	if raw == "" {
		return nil, ErrSessionExpired
	}
	rt, err := s.store.GetRefreshTokenByHash(ctx, auth.HashRefreshToken(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if rt.Revoked {
		logger.WithCtx(ctx).Warn().Str("user_id", rt.UserID).Msg("revoked refresh token reused, revoking all sessions")
		if err := s.store.RevokeAllRefreshTokens(ctx, rt.UserID); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}
	if s.now().After(rt.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	u, err := s.store.UserByID(ctx, rt.UserID)
	if err != nil {
		return nil, err
	}
	tok, err := auth.MakeToken(u.ID, u.Role, s.secret)
	if err != nil {
		return nil, err
	}
	newRaw, newHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	exp := now.Add(auth.RefreshTTL)
	if err := s.store.RotateRefreshToken(ctx, rt.ID, uuid.New().String(), u.ID, newHash, exp); err != nil {
		// lost a race with another refresh of the same token
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	return &Session{
		User:           NewUserView(u),
		AccessToken:    tok,
		AccessExpires:  now.Add(auth.AccessTTL),
		RefreshToken:   newRaw,
		RefreshExpires: exp,
	}, nil
}

func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.store.RevokeAllRefreshTokens(ctx, userID)
}

// LogoutToken revokes the sessions of whoever owns a refresh token, for
// clients whose access token has already expired.
func (s *Service) LogoutToken(ctx context.Context, raw string) error {
	rt, err := s.store.GetRefreshTokenByHash(ctx, auth.HashRefreshToken(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.store.RevokeAllRefreshTokens(ctx, rt.UserID)
}

func (s *Service) Me(ctx context.Context, userID string) (*UserView, error) {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	v := NewUserView(u)
	return &v, nil
}

func (s *Service) UpdateMe(ctx context.Context, userID, name, phone string) (*UserView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "required")
	}
	u, err := s.store.UpdateProfile(ctx, userID, name, strings.TrimSpace(phone))
	if err != nil {
		return nil, err
	}
	v := NewUserView(u)
	return &v, nil
}
