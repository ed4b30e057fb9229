package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/KebabObama/school-reservation/internal/application"
)

var (
	errBadRequestBody   = errors.New("Invalid JSON body")
	errIDMismatch       = errors.New("Reservation id in body does not match the path")
	errMissingToken     = errors.New("Authentication required")
	errInvalidToken     = errors.New("Invalid or expired token")
	errRouteNotFound    = errors.New("Not found")
	errMethodNotAllowed = errors.New("Method not allowed")
	errStoreUnavailable = errors.New("Storage is unavailable")
	errInternal         = errors.New("Internal server error")
	errForbidden        = errors.New("You are not allowed to perform this action")
	errResourceNotFound = errors.New("Reservation or room not found")
	errNoChanges        = errors.New("No changes were made")
	errEndBeforeStart   = errors.New("End time must be after start time")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}
	r.writeJSON(ctx, w, status, errorResponse{Error: message})
}

// handleServiceError translates application errors into status codes. The
// message of a store or unexpected failure never reaches the client.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errInternal)
		return
	}

	var (
		vErr *application.ValidationError
		cErr *application.ConflictError
	)
	switch {
	case errors.As(err, &cErr):
		r.writeError(ctx, w, http.StatusBadRequest, errors.New(cErr.Message))
	case errors.As(err, &vErr):
		r.writeError(ctx, w, http.StatusBadRequest, vErr)
	case errors.Is(err, application.ErrInvalidInterval):
		r.writeError(ctx, w, http.StatusBadRequest, errEndBeforeStart)
	case errors.Is(err, application.ErrNoOp):
		r.writeError(ctx, w, http.StatusBadRequest, errNoChanges)
	case errors.Is(err, application.ErrNotFound):
		r.writeError(ctx, w, http.StatusNotFound, errResourceNotFound)
	case errors.Is(err, application.ErrUnauthorized):
		if _, ok := PrincipalFromContext(ctx); !ok {
			r.writeError(ctx, w, http.StatusUnauthorized, errMissingToken)
			return
		}
		r.writeError(ctx, w, http.StatusForbidden, errForbidden)
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err, "error_kind", application.ErrorKind(err))
		r.writeError(ctx, w, http.StatusInternalServerError, errInternal)
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	Error string `json:"error"`
}
