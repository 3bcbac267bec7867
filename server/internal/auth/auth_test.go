package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func okHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "ok", nil
}

var okHTTP = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestUnaryInterceptor(t *testing.T) {
	enforced := Policy{Mode: ModeAPIKey, Header: "x-api-key", Key: "supersecret"}

	cases := []struct {
		name   string
		policy Policy
		md     metadata.MD // nil means no incoming metadata at all
		want   codes.Code
	}{
		{"mode none", Policy{Mode: "none", Header: "x-api-key", Key: "s"}, nil, codes.OK},
		{"empty key", Policy{Mode: ModeAPIKey, Header: "x-api-key"}, nil, codes.OK},
		{"correct key", enforced, metadata.Pairs("x-api-key", "supersecret"), codes.OK},
		{"wrong key", enforced, metadata.Pairs("x-api-key", "wrong"), codes.Unauthenticated},
		{"header absent", enforced, metadata.MD{}, codes.Unauthenticated},
		{"no metadata", enforced, nil, codes.Unauthenticated},
		{"custom header", Policy{Mode: ModeAPIKey, Header: "x-presence-token", Key: "t"},
			metadata.Pairs("x-presence-token", "t"), codes.OK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tc.md)
			}
			res, err := tc.policy.UnaryInterceptor()(ctx, nil, &grpc.UnaryServerInfo{}, okHandler)
			if code := status.Code(err); code != tc.want {
				t.Fatalf("code: got %v, want %v", code, tc.want)
			}
			if tc.want == codes.OK && res != "ok" {
				t.Errorf("result: got %v, want ok", res)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	p := Policy{Mode: ModeAPIKey, Header: "X-API-Key", Key: "supersecret"}

	cases := []struct {
		name   string
		policy Policy
		key    string
		want   int
	}{
		{"correct key", p, "supersecret", http.StatusNoContent},
		{"wrong key", p, "nope", http.StatusUnauthorized},
		{"missing key", p, "", http.StatusUnauthorized},
		{"auth disabled", Policy{Mode: "none"}, "", http.StatusNoContent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/datapoints", nil)
			if tc.key != "" {
				req.Header.Set("X-API-Key", tc.key)
			}
			rec := httptest.NewRecorder()
			tc.policy.Middleware(okHTTP).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status: got %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
