package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"practice-portal/internal/auth"
	"practice-portal/internal/response"
)

type ctxKey string

const (
	UserIDKey ctxKey = "uid"
	RoleKey   ctxKey = "role"
	rejectKey ctxKey = "token_rejected"

	AccessCookie = "access_token"
)

func WithUser(ctx context.Context, uid, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, uid)
	return context.WithValue(ctx, RoleKey, role)
}

func UserID(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func Role(ctx context.Context) string {
	r, _ := ctx.Value(RoleKey).(string)
	return r
}

// skip auth for these
var open = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
}

// Auth guards every gRPC method except the open ones. When roles are given
// the caller's role must be one of them.
func Auth(secret string, roles ...string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return next(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		// token from Authorization: Bearer <jwt>
		raw := ""
		if vals := md.Get("authorization"); len(vals) > 0 {
			raw = bearer(vals[0])
		}
		if raw == "" {
			return nil, status.Error(codes.Unauthenticated, "no token")
		}

		claims, err := auth.ParseToken(raw, secret)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "bad token")
		}
		if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
			return nil, status.Error(codes.PermissionDenied, "forbidden")
		}

		return next(WithUser(ctx, claims.UID(), claims.Role), req)
	}
}

func bearer(h string) string {
	parts := strings.SplitN(strings.TrimSpace(h), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Authenticate puts the caller in the context when a valid token is sent as a
// Bearer header or the access cookie. Anonymous requests pass through, and so
// do requests with an expired or bad token: public routes and /auth/refresh
// must keep working, while RequireAuth reports the rejected token.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r.Header.Get("Authorization"))
			if raw == "" {
				if c, err := r.Cookie(AccessCookie); err == nil {
					raw = c.Value
				}
			}
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := auth.ParseToken(raw, secret)
			if err != nil {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), rejectKey, true)))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UID(), claims.Role)))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserID(r.Context()) == "" {
			if rejected, _ := r.Context().Value(rejectKey).(bool); rejected {
				response.Fail(w, r, http.StatusUnauthorized, "auth.invalid_token", "invalid or expired token", nil)
				return
			}
			response.Fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, Role(r.Context())) {
				response.Fail(w, r, http.StatusForbidden, "auth.forbidden", "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
