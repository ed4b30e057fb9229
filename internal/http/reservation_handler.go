package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/KebabObama/school-reservation/internal/application"
	"github.com/KebabObama/school-reservation/internal/persistence"
)

const maxBodyBytes = 1 << 20

// ReservationService is the subset of the application service the handlers call.
type ReservationService interface {
	Create(ctx context.Context, params application.CreateReservationParams) (application.CreateResult, error)
	Edit(ctx context.Context, params application.EditReservationParams) (application.EditResult, error)
	CheckAvailability(ctx context.Context, query application.AvailabilityQuery) (application.Availability, error)
	ListSeries(ctx context.Context, id string) ([]persistence.Reservation, error)
}

// ReservationHandler exposes booking operations over JSON.
type ReservationHandler struct {
	service   ReservationService
	logger    *slog.Logger
	responder responder
}

// NewReservationHandler wires the handler to its service.
func NewReservationHandler(service ReservationService, logger *slog.Logger) *ReservationHandler {
	logger = defaultLogger(logger)
	return &ReservationHandler{service: service, logger: logger, responder: newResponder(logger)}
}

// Create handles POST /reservations.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := handlerLogger(ctx, h.logger, "reservation", "create")

	var req createReservationRequest
	if !h.decode(w, r, &req) {
		return
	}

	principal, _ := PrincipalFromContext(ctx)
	result, err := h.service.Create(ctx, application.CreateReservationParams{
		Principal: principal,
		Input:     req.input(),
	})
	if err != nil {
		logger.InfoContext(ctx, "create rejected", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "reservation created", "reservation_id", result.ReservationID, "total", result.TotalReservations)
	h.responder.writeJSON(ctx, w, http.StatusCreated, newCreateResponse(result))
}

// Edit handles PUT /reservations/{id}.
func (h *ReservationHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(mux.Vars(r)["id"])
	logger := handlerLogger(ctx, h.logger, "reservation", "edit", "reservation_id", id)

	var req editReservationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ID != nil && string(*req.ID) != id {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errIDMismatch)
		return
	}

	principal, _ := PrincipalFromContext(ctx)
	result, err := h.service.Edit(ctx, application.EditReservationParams{
		Principal:     principal,
		ReservationID: id,
		Input:         req.input(),
	})
	if err != nil {
		logger.InfoContext(ctx, "edit rejected", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, editReservationResponse{
		Success:      true,
		AffectedRows: result.AffectedRows,
		EditScope:    string(result.EditScope),
	})
}

// Series handles GET /reservations/{id}/series.
func (h *ReservationHandler) Series(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(mux.Vars(r)["id"])

	rows, err := h.service.ListSeries(ctx, id)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	resp := seriesResponse{Reservations: make([]reservationResponse, 0, len(rows))}
	for _, row := range rows {
		resp.Reservations = append(resp.Reservations, newReservationResponse(row))
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, resp)
}

// Availability handles GET /rooms/{id}/availability.
func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	result, err := h.service.CheckAvailability(ctx, application.AvailabilityQuery{
		RoomID:    strings.TrimSpace(mux.Vars(r)["id"]),
		StartTime: query.Get("start_time"),
		EndTime:   query.Get("end_time"),
		ExcludeID: strings.TrimSpace(query.Get("exclude_id")),
	})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, newAvailabilityResponse(result))
}

func (h *ReservationHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		handlerLogger(r.Context(), h.logger, "reservation", "decode").InfoContext(r.Context(), "malformed body", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return false
	}
	return true
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers liveness probes.
type HealthHandler struct {
	store     Pinger
	responder responder
}

// NewHealthHandler builds a probe handler around store.
func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, responder: newResponder(logger)}
}

// Check handles GET /healthz.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			h.responder.loggerFor(ctx).WarnContext(ctx, "health check failed", "error", err)
			h.responder.writeError(ctx, w, http.StatusServiceUnavailable, errStoreUnavailable)
			return
		}
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, healthResponse{Status: "ok"})
}
