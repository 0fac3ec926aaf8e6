// Package grpcweb lets browsers call the admin gRPC service. It accepts
// gRPC-Web over HTTP/1.1 and forwards each call to the native server,
// passing message bytes through untouched.
package grpcweb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	frameData    byte = 0x00
	frameTrailer byte = 0x80

	maxMessage = 4 << 20
)

var errFrame = errors.New("malformed grpc-web frame")

// Bridge translates gRPC-Web to gRPC.
type Bridge struct {
	conn    *grpc.ClientConn
	origins []string
	lg      zerolog.Logger
}

// New dials the gRPC server at addr (e.g. "localhost:50051").
func New(addr string, origins []string, lg zerolog.Logger) (*Bridge, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpcweb dial: %w", err)
	}
	return NewWithConn(conn, origins, lg), nil
}

// NewWithConn wraps an existing connection. The bridge owns it afterwards.
func NewWithConn(conn *grpc.ClientConn, origins []string, lg zerolog.Logger) *Bridge {
	return &Bridge{conn: conn, origins: origins, lg: lg.With().Str("component", "grpcweb").Logger()}
}

func (b *Bridge) Close() error { return b.conn.Close() }

func (b *Bridge) allowOrigin(origin string) bool {
	return origin != "" && (slices.Contains(b.origins, "*") || slices.Contains(b.origins, origin))
}

// Handler returns an http.Handler that translates gRPC-Web to gRPC.
func (b *Bridge) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); b.allowOrigin(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers",
				"Content-Type, X-Grpc-Web, X-User-Agent, Authorization, X-Request-Id")
			h.Set("Access-Control-Expose-Headers",
				"Grpc-Status, Grpc-Message, Grpc-Status-Details-Bin")
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sub, ok := contentSubtype(r.Header.Get("Content-Type"))
		if !ok {
			http.Error(w, "not grpc-web", http.StatusUnsupportedMediaType)
			return
		}
		b.forward(w, r, sub)
	})
}

// contentSubtype maps application/grpc-web[+proto|+json] to the codec name
// the native server should use.
func contentSubtype(ct string) (string, bool) {
	ct, _, _ = strings.Cut(ct, ";")
	ct = strings.TrimSpace(strings.ToLower(ct))
	switch ct {
	case "application/grpc-web", "application/grpc-web+proto":
		return "proto", true
	case "application/grpc-web+json":
		return "json", true
	}
	return "", false
}

func (b *Bridge) forward(w http.ResponseWriter, r *http.Request, sub string) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessage+5))
	if err != nil {
		writeError(w, sub, codes.ResourceExhausted, "request too large")
		return
	}
	payload, err := readFrame(body)
	if err != nil {
		writeError(w, sub, codes.InvalidArgument, err.Error())
		return
	}

	md := metadata.MD{}
	for _, h := range []string{"Authorization", "X-Request-Id"} {
		if vals := r.Header.Values(h); len(vals) > 0 {
			md.Set(strings.ToLower(h), vals...)
		}
	}
	ctx := metadata.NewOutgoingContext(r.Context(), md)

	resp := &rawMsg{}
	err = b.conn.Invoke(ctx, r.URL.Path, &rawMsg{data: payload}, resp, grpc.ForceCodec(rawCodec{name: sub}))
	if err != nil {
		st, _ := status.FromError(err)
		b.lg.Debug().Str("method", r.URL.Path).Str("code", st.Code().String()).Msg("grpc-web call failed")
		writeError(w, sub, st.Code(), st.Message())
		return
	}
	writeSuccess(w, sub, resp.data)
}

// readFrame extracts the single data frame of a unary request:
// 1-byte flag, 4-byte big-endian length, message.
func readFrame(body []byte) ([]byte, error) {
	if len(body) < 5 {
		return nil, errFrame
	}
	if body[0] != frameData {
		return nil, fmt.Errorf("%w: compressed or trailer frame", errFrame)
	}
	n := binary.BigEndian.Uint32(body[1:5])
	if n > maxMessage || int(n)+5 > len(body) {
		return nil, fmt.Errorf("%w: incomplete", errFrame)
	}
	return body[5 : 5+n], nil
}

func frame(flag byte, data []byte) []byte {
	out := make([]byte, 5+len(data))
	out[0] = flag
	binary.BigEndian.PutUint32(out[1:5], uint32(len(data)))
	copy(out[5:], data)
	return out
}

func trailer(code codes.Code, msg string) []byte {
	t := fmt.Sprintf("grpc-status:%d\r\n", code)
	if msg != "" {
		t += "grpc-message:" + strings.NewReplacer("\r", " ", "\n", " ").Replace(msg) + "\r\n"
	}
	return frame(frameTrailer, []byte(t))
}

func writeError(w http.ResponseWriter, sub string, code codes.Code, msg string) {
	w.Header().Set("Content-Type", "application/grpc-web+"+sub)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(trailer(code, msg))
}

func writeSuccess(w http.ResponseWriter, sub string, data []byte) {
	w.Header().Set("Content-Type", "application/grpc-web+"+sub)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame(frameData, data))
	_, _ = w.Write(trailer(codes.OK, ""))
}

// rawMsg wraps encoded message bytes.
type rawMsg struct{ data []byte }

// rawCodec passes bytes through without marshal/unmarshal. Its name becomes
// the call's content-subtype, which picks the server-side codec.
type rawCodec struct{ name string }

func (rawCodec) Marshal(v any) ([]byte, error) {
	return v.(*rawMsg).data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	m := v.(*rawMsg)
	m.data = append([]byte(nil), data...)
	return nil
}

func (c rawCodec) Name() string { return c.name }
