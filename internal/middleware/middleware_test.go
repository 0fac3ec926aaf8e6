package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"practice-portal/internal/auth"
	"practice-portal/internal/model"
)

const secret = "test-secret-that-is-long-enough-123456"

func token(t *testing.T, uid, role string) string {
	t.Helper()
	tok, err := auth.MakeToken(uid, role, secret)
	require.NoError(t, err)
	return tok
}

var echo = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Uid", UserID(r.Context()))
	w.Header().Set("X-Role", Role(r.Context()))
	w.WriteHeader(http.StatusOK)
})

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestAuthenticateBearerAndCookie(t *testing.T) {
	h := Authenticate(secret)(echo)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "u1", model.RoleClient))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "u1", rec.Header().Get("X-Uid"))
	assert.Equal(t, model.RoleClient, rec.Header().Get("X-Role"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: token(t, "u2", model.RoleAdmin)})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "u2", rec.Header().Get("X-Uid"))
}

func TestAuthenticateAnonymousAndBadToken(t *testing.T) {
	h := Authenticate(secret)(echo)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Uid"))

	// a bad token does not stop public routes
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Uid"))

	// protected routes name the rejected token
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "garbage"})
	rec = httptest.NewRecorder()
	Authenticate(secret)(RequireAuth(echo)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth.invalid_token", errCode(t, rec))
}

func TestRequireRole(t *testing.T) {
	h := Authenticate(secret)(RequireRole(model.RoleProvider, model.RoleAdmin)(echo))

	tests := []struct {
		name string
		role string
		want int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"client", model.RoleClient, http.StatusForbidden},
		{"provider", model.RoleProvider, http.StatusOK},
		{"admin", model.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.role != "" {
				req.Header.Set("Authorization", "Bearer "+token(t, "u", tt.role))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func grpcCtx(tok string) context.Context {
	md := metadata.New(map[string]string{"authorization": "Bearer " + tok})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestGRPCAuth(t *testing.T) {
	interceptor := Auth(secret, model.RoleProvider, model.RoleAdmin)
	info := &grpc.UnaryServerInfo{FullMethod: "/practice.admin.v1.AdminService/ListLeads"}
	var gotUID string
	next := func(ctx context.Context, req any) (any, error) {
		gotUID = UserID(ctx)
		return "ok", nil
	}

	_, err := interceptor(context.Background(), nil, info, next)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = interceptor(grpcCtx("nope"), nil, info, next)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = interceptor(grpcCtx(token(t, "c1", model.RoleClient)), nil, info, next)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	out, err := interceptor(grpcCtx(token(t, "p1", model.RoleProvider)), nil, info, next)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "p1", gotUID)

	// health checks are open
	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, next)
	assert.NoError(t, err)
}

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func TestLimitByIP(t *testing.T) {
	h := LimitByIP(NewRateLimiter(0.001, 1))(echo)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "203.0.113.7:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// same host, different port
	req.RemoteAddr = "203.0.113.7:6000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errCode(t, rec))
}

func TestLimitByUser(t *testing.T) {
	h := Authenticate(secret)(LimitByUser(NewRateLimiter(0.001, 1))(echo))
	send := func(uid string) int {
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, uid, model.RoleClient))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, send("u1"))
	assert.Equal(t, http.StatusTooManyRequests, send("u1"))
	assert.Equal(t, http.StatusOK, send("u2"))
}

func TestGRPCRateLimit(t *testing.T) {
	interceptor := RateLimit(NewRateLimiter(0.001, 1), "/svc/Limited")
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 1}})
	next := func(context.Context, any) (any, error) { return nil, nil }

	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Limited"}, next)
	assert.NoError(t, err)
	_, err = interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Limited"}, next)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	_, err = interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Other"}, next)
	assert.NoError(t, err)
}

func TestRequestIDAndHeaders(t *testing.T) {
	h := RequestID(SecurityHeaders(AccessLog(echo)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}
