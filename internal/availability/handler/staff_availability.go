package handler

import (
	"net/http"
	"strconv"
	"time"

	"agendly/internal/availability/service"
	apperrors "agendly/pkg/errors"
	httputil "agendly/pkg/http"
	"agendly/pkg/logger"
	"agendly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type StaffAvailabilityHandler struct {
	service service.StaffAvailabilityValidator
	log     *logger.Logger
}

func NewStaffAvailabilityHandler(service service.StaffAvailabilityValidator, log *logger.Logger) *StaffAvailabilityHandler {
	return &StaffAvailabilityHandler{
		service: service,
		log:     log,
	}
}

// Put replaces the window for one weekday, 0 (Sunday) to 6 (Saturday).
func (h *StaffAvailabilityHandler) Put(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	day, err := strconv.Atoi(ps.ByName("day"))
	if err != nil || day < 0 || day > 6 {
		h.writeError(w, "Put", apperrors.InvalidInput("day must be a number between 0 (Sunday) and 6 (Saturday)"))
		return
	}

	var window model.StaffAvailability
	if err := httputil.DecodeJSON(r, &window); err != nil {
		h.writeError(w, "Put", err)
		return
	}
	window.TenantID = ps.ByName("tenant_id")
	window.StaffID = ps.ByName("staff_id")
	window.DayOfWeek = time.Weekday(day)

	if err := h.service.SaveWindow(r.Context(), &window); err != nil {
		h.writeError(w, "Put", err)
		return
	}

	if err := httputil.WriteSuccess(w, window); err != nil {
		h.log.Error("failed to write success response", "handler", "Put", "operation", "WriteSuccess", "error", err)
	}
}

func (h *StaffAvailabilityHandler) GetWeek(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	windows, err := h.service.GetWeek(r.Context(), ps.ByName("tenant_id"), ps.ByName("staff_id"))
	if err != nil {
		h.writeError(w, "GetWeek", err)
		return
	}

	if err := httputil.WriteSuccess(w, windows); err != nil {
		h.log.Error("failed to write success response", "handler", "GetWeek", "operation", "WriteSuccess", "error", err)
	}
}

func (h *StaffAvailabilityHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *StaffAvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/tenants/:tenant_id/staff/:staff_id/availability", h.GetWeek)
	router.PUT("/api/v1/tenants/:tenant_id/staff/:staff_id/availability/:day", h.Put)
}
