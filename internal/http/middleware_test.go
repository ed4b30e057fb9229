package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/KebabObama/school-reservation/internal/application"
)

func signClaims(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestJWTVerifier(t *testing.T) {
	t.Parallel()
	verifier := NewJWTVerifier(testSecret)
	ctx := context.Background()

	t.Run("round trips SignToken", func(t *testing.T) {
		t.Parallel()
		token, err := SignToken(testSecret, application.Principal{UserID: "42", IsAdmin: true}, time.Minute)
		if err != nil {
			t.Fatalf("SignToken returned error: %v", err)
		}
		principal, err := verifier.Verify(ctx, token)
		if err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
		if principal.UserID != "42" || !principal.IsAdmin {
			t.Fatalf("unexpected principal %+v", principal)
		}
	})

	t.Run("accepts numeric subjects", func(t *testing.T) {
		t.Parallel()
		token := signClaims(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": 17})
		principal, err := verifier.Verify(ctx, token)
		if err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
		if principal.UserID != "17" || principal.IsAdmin {
			t.Fatalf("unexpected principal %+v", principal)
		}
	})

	rejected := map[string]string{
		"wrong secret":   signClaims(t, jwt.SigningMethodHS256, "other-secret", jwt.MapClaims{"sub": "1"}),
		"expired":        signClaims(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(-time.Minute).Unix()}),
		"missing sub":    signClaims(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"admin": true}),
		"other hmac alg": signClaims(t, jwt.SigningMethodHS512, testSecret, jwt.MapClaims{"sub": "1"}),
		"garbage":        "not-a-token",
	}
	for name, token := range rejected {
		name, token := name, token
		t.Run("rejects "+name, func(t *testing.T) {
			t.Parallel()
			if _, err := verifier.Verify(ctx, token); !errors.Is(err, application.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
	}
	for header, want := range tests {
		if got := bearerToken(header); got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

type verifierStub struct {
	principal application.Principal
	err       error
}

func (v verifierStub) Verify(context.Context, string) (application.Principal, error) {
	return v.principal, v.err
}

func TestRequireBearer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		header   string
		verifier TokenVerifier
		status   int
	}{
		{name: "missing credentials", verifier: verifierStub{}, status: http.StatusUnauthorized},
		{name: "non bearer scheme", header: "Basic Zm9v", verifier: verifierStub{}, status: http.StatusUnauthorized},
		{name: "rejected token", header: "Bearer bad", verifier: verifierStub{err: application.ErrUnauthorized}, status: http.StatusUnauthorized},
		{name: "verifier failure", header: "Bearer ok", verifier: verifierStub{err: errors.New("key store offline")}, status: http.StatusInternalServerError},
		{name: "valid token", header: "Bearer ok", verifier: verifierStub{principal: application.Principal{UserID: "9"}}, status: http.StatusNoContent},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var seen application.Principal
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			RequireBearer(tc.verifier, discardLogger())(next).ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if tc.status == http.StatusNoContent {
				if seen.UserID != "9" {
					t.Fatalf("expected principal in context, got %+v", seen)
				}
				return
			}
			errorMessage(t, rec)
		})
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var scoped bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = LoggerFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("{}"))
	})

	req := httptest.NewRequest(http.MethodPost, "/reservations", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	RequestLogger(logger)(next).ServeHTTP(httptest.NewRecorder(), req)

	if !scoped {
		t.Fatalf("expected request logger in handler context")
	}

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected start and completion lines, got %d: %s", len(lines), buf.String())
	}
	var completed map[string]any
	if err := json.Unmarshal(lines[1], &completed); err != nil {
		t.Fatalf("invalid log line: %v", err)
	}
	if completed["msg"] != "request completed" || completed["request_id"] != "req-abc" || completed["path"] != "/reservations" {
		t.Fatalf("unexpected log line %v", completed)
	}
	if status, _ := completed["status"].(float64); status != http.StatusCreated {
		t.Fatalf("expected captured status 201, got %v", completed["status"])
	}
}
