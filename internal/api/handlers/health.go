package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/Brownie44l1/extension-admin/internal/api/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

type HealthHandler struct {
	service string
	checks  map[string]Check
	timeout time.Duration
	log     *zap.Logger
}

func NewHealthHandler(service string, checks map[string]Check, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		checks:  checks,
		timeout: 2 * time.Second,
		log:     log,
	}
}

// Health handles GET /health - liveness only, never touches dependencies
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:    "healthy",
		Service:   h.service,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles GET /ready - pings every registered dependency
func (h *HealthHandler) Readiness(c *gin.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		err := h.checks[name](ctx)
		cancel()

		if err != nil {
			h.log.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	resp := dto.HealthResponse{
		Status:    "ready",
		Service:   h.service,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    results,
	}
	if status != http.StatusOK {
		resp.Status = "not_ready"
	}
	c.JSON(status, resp)
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Readiness)
}
