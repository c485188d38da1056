package handler

import (
	"context"
	"net/http"
	"time"

	"agendly/pkg/client"
	httputil "agendly/pkg/http"
	"agendly/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const readyTimeout = 2 * time.Second

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthHandler struct {
	checks  []Check
	metrics map[string]func() any
	log     *logger.Logger
}

func NewHealthHandler(log *logger.Logger, checks ...Check) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		metrics: make(map[string]func() any),
		log:     log,
	}
}

// ClientChecks returns a readiness check for every connection c holds.
func ClientChecks(c *client.Client) []Check {
	var checks []Check
	if c.Mongo != nil {
		checks = append(checks, Check{Name: "mongo", Ping: func(ctx context.Context) error {
			return c.Mongo.Ping(ctx, nil)
		}})
	}
	if c.Postgres != nil {
		checks = append(checks, Check{Name: "postgres", Ping: c.Postgres.Ping})
	}
	if c.Redis != nil {
		checks = append(checks, Check{Name: "redis", Ping: func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		}})
	}
	return checks
}

// ExposeMetrics publishes snapshot under name on GET /metrics.
func (h *HealthHandler) ExposeMetrics(name string, snapshot func() any) {
	h.metrics[name] = snapshot
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := http.StatusOK
	response := HealthResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.log.Error("Store health check failed",
				"store", check.Name,
				"error", err,
				"path", r.URL.Path,
			)
			response.Checks[check.Name] = "error"
			response.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[check.Name] = "ok"
	}

	if err := httputil.WriteJSON(w, status, response); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snapshot := make(map[string]any, len(h.metrics))
	for name, fn := range h.metrics {
		snapshot[name] = fn()
	}

	if err := httputil.WriteJSON(w, http.StatusOK, snapshot); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Metrics", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", h.Metrics)
}
