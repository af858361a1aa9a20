package http

import (
	"net/http"

	"streamctl/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
)

type SystemHandler struct {
	health  *monitoring.HealthChecker
	version string
}

func NewSystemHandler(health *monitoring.HealthChecker, version string) *SystemHandler {
	return &SystemHandler{health: health, version: version}
}

func (h *SystemHandler) SetupRoutes(router gin.IRoutes) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

// Health reports that the process is serving requests.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready runs the dependency checks.
func (h *SystemHandler) Ready(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status != monitoring.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
