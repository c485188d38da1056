package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"agendly/internal/reservations/service"
	apperrors "agendly/pkg/errors"
	httputil "agendly/pkg/http"
	"agendly/pkg/logger"
	"agendly/pkg/model"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

const HeaderSessionID = "X-Session-ID"

type ReservationHandler struct {
	service    service.ReservationService
	retryDelay time.Duration
	log        *logger.Logger
}

// NewReservationHandler serves the internal reservation API and the public
// booking endpoint. retryDelay is how long the public endpoint waits before
// its single retry on a held slot.
func NewReservationHandler(service service.ReservationService, retryDelay time.Duration, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service:    service,
		retryDelay: retryDelay,
		log:        log,
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.CreateReservationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	reservation, err := h.service.Create(r.Context(), ps.ByName("tenant_id"), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

// PublicBook is the customer facing booking endpoint. It always runs under
// the slot lock and retries once when another session holds the slot.
func (h *ReservationHandler) PublicBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.CreateReservationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "PublicBook", err)
		return
	}
	if session := strings.TrimSpace(r.Header.Get(HeaderSessionID)); session != "" {
		req.SessionID = session
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	tenantID := ps.ByName("tenant_id")

	reservation, err := h.service.CreateWithLock(r.Context(), tenantID, &req)
	if apperrors.HasCode(err, apperrors.CodeSlotLocked) {
		h.log.Debug("Slot locked, retrying public booking", "tenant_id", tenantID, "delay", h.retryDelay)
		if waitErr := sleep(r.Context(), h.retryDelay); waitErr != nil {
			h.writeError(w, "PublicBook", err)
			return
		}
		reservation, err = h.service.CreateWithLock(r.Context(), tenantID, &req)
	}
	if err != nil {
		h.writeError(w, "PublicBook", err)
		return
	}

	w.Header().Set(HeaderSessionID, req.SessionID)
	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "PublicBook", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.GetByID(r.Context(), ps.ByName("tenant_id"), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.RescheduleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Reschedule", err)
		return
	}
	if session := strings.TrimSpace(r.Header.Get(HeaderSessionID)); session != "" {
		req.SessionID = session
	}

	reservation, err := h.service.Reschedule(r.Context(), ps.ByName("tenant_id"), ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "Reschedule", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Reschedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.Cancel(r.Context(), ps.ByName("tenant_id"), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

// CheckConflicts previews a booking without writing it.
func (h *ReservationHandler) CheckConflicts(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.CreateReservationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "CheckConflicts", err)
		return
	}

	result, err := h.service.CheckBookingConflicts(r.Context(), ps.ByName("tenant_id"), &req)
	if err != nil {
		h.writeError(w, "CheckConflicts", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckConflicts", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Alternatives(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.AlternativesRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Alternatives", err)
		return
	}

	windows, err := h.service.SuggestAlternatives(r.Context(), ps.ByName("tenant_id"), &req)
	if err != nil {
		h.writeError(w, "Alternatives", err)
		return
	}

	if err := httputil.WriteSuccess(w, windows); err != nil {
		h.log.Error("failed to write success response", "handler", "Alternatives", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/tenants/:tenant_id/reservations", h.Create)
	router.GET("/api/v1/tenants/:tenant_id/reservations/:id", h.GetByID)
	router.PATCH("/api/v1/tenants/:tenant_id/reservations/:id", h.Reschedule)
	router.POST("/api/v1/tenants/:tenant_id/reservations/:id/cancel", h.Cancel)
	router.POST("/api/v1/tenants/:tenant_id/conflict-checks", h.CheckConflicts)
	router.POST("/api/v1/tenants/:tenant_id/alternative-slots", h.Alternatives)
	router.POST("/api/v1/public/tenants/:tenant_id/bookings", h.PublicBook)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
