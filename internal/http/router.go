package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

type RouterConfig struct {
	Reservations *ReservationHandler
	Health       *HealthHandler
	Verifier     TokenVerifier
	Logger       *slog.Logger
	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
	Middleware  []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	responder := newResponder(logger)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusNotFound, errRouteNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusMethodNotAllowed, errMethodNotAllowed)
	})

	if cfg.Health != nil {
		r.HandleFunc("/healthz", cfg.Health.Check).Methods(http.MethodGet)
	}

	if cfg.Reservations != nil {
		protect := RequireBearer(cfg.Verifier, logger)
		h := cfg.Reservations
		r.Handle("/reservations", protect(http.HandlerFunc(h.Create))).Methods(http.MethodPost)
		r.Handle("/reservations/{id}", protect(http.HandlerFunc(h.Edit))).Methods(http.MethodPut)
		r.Handle("/reservations/{id}/series", protect(http.HandlerFunc(h.Series))).Methods(http.MethodGet)
		r.Handle("/rooms/{id}/availability", protect(http.HandlerFunc(h.Availability))).Methods(http.MethodGet)
	}

	var handler http.Handler = r
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	if len(cfg.CORSOrigins) > 0 {
		handler = handlers.CORS(
			handlers.AllowedOrigins(cfg.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-ID"}),
		)(handler)
	}

	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger: logger}),
		handlers.PrintRecoveryStack(false),
	)(handler)
}
