package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/felixge/httpsnoop"

	"github.com/KebabObama/school-reservation/internal/application"
)

// RequireBearer rejects requests without a valid bearer token and stores the
// resolved principal in the request context.
func RequireBearer(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingToken)
				return
			}

			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, application.ErrUnauthorized) {
					responder.loggerFor(r.Context()).InfoContext(r.Context(), "bearer token rejected", "error", err)
					responder.writeError(r.Context(), w, http.StatusUnauthorized, errInvalidToken)
					return
				}
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "token verification failed", "error", err)
				responder.writeError(r.Context(), w, http.StatusInternalServerError, errInternal)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			if logger := LoggerFromContext(ctx); logger != nil {
				ctx = ContextWithLogger(ctx, logger.With("user_id", principal.UserID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a request scoped logger and logs each request with
// its status and duration. An inbound X-Request-ID header is reused.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	base = defaultLogger(base)
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id any = counter.Add(1)
			if header := strings.TrimSpace(r.Header.Get("X-Request-ID")); header != "" {
				id = header
			}
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			logger.InfoContext(ctx, "request started")
			metrics := httpsnoop.CaptureMetrics(next, w, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed",
				"status", metrics.Code,
				"bytes", metrics.Written,
				"duration", metrics.Duration,
			)
		})
	}
}
