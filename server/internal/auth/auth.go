package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ModeAPIKey is the only mode that enforces a key.
const ModeAPIKey = "apikey"

// Policy describes which key is expected and where to find it.
type Policy struct {
	Mode   string
	Header string
	Key    string
}

func (p Policy) enforced() bool {
	return p.Mode == ModeAPIKey && p.Key != ""
}

func (p Policy) accepts(got string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(p.Key)) == 1
}

// Middleware rejects HTTP requests whose Header value does not match Key.
func (p Policy) Middleware(next http.Handler) http.Handler {
	if !p.enforced() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.accepts(r.Header.Get(p.Header)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UnaryInterceptor rejects gRPC calls whose metadata entry for Header does
// not match Key. gRPC lowercases metadata keys, so Header should be lowercase.
func (p Policy) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		_ *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !p.enforced() {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		vals := md.Get(p.Header)
		if len(vals) == 0 || !p.accepts(vals[0]) {
			return nil, status.Error(codes.Unauthenticated, "invalid api key")
		}
		return handler(ctx, req)
	}
}
