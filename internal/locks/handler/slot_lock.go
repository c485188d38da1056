package handler

import (
	"net/http"

	"agendly/internal/locks/service"
	"agendly/internal/locks/validator"
	apperrors "agendly/pkg/errors"
	httputil "agendly/pkg/http"
	"agendly/pkg/logger"
	"agendly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SlotLockHandler struct {
	manager   service.SlotLockManager
	validator *validator.SlotLockValidator
	log       *logger.Logger
}

func NewSlotLockHandler(manager service.SlotLockManager, lockValidator *validator.SlotLockValidator, log *logger.Logger) *SlotLockHandler {
	return &SlotLockHandler{
		manager:   manager,
		validator: lockValidator,
		log:       log,
	}
}

type acquireLockResponse struct {
	LockID string `json:"lock_id"`
}

// Acquire lets a client hold a slot while it collects booking details.
func (h *SlotLockHandler) Acquire(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.LockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Acquire", err)
		return
	}
	req.TenantID = ps.ByName("tenant_id")
	if err := h.validator.Validate(&req); err != nil {
		h.log.Warn("Slot lock validation failed", "tenant_id", req.TenantID, "error", err)
		h.writeError(w, "Acquire", apperrors.Validation("Slot lock validation failed", map[string]any{"error": err.Error()}))
		return
	}

	lockID, err := h.manager.AcquireLock(r.Context(), req)
	if err != nil {
		h.writeError(w, "Acquire", err)
		return
	}

	if err := httputil.WriteCreated(w, acquireLockResponse{LockID: lockID}); err != nil {
		h.log.Error("failed to write created response", "handler", "Acquire", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotLockHandler) Release(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.manager.ReleaseLock(r.Context(), ps.ByName("tenant_id"), ps.ByName("lock_id")); err != nil {
		h.writeError(w, "Release", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *SlotLockHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SlotLockHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/tenants/:tenant_id/slot-locks", h.Acquire)
	router.DELETE("/api/v1/tenants/:tenant_id/slot-locks/:lock_id", h.Release)
}
