package http

import (
	"net/http"

	"streamctl/internal/core/domain"
	"streamctl/internal/core/ports"
	"streamctl/internal/infrastructure/pipelines"
	apperrors "streamctl/pkg/errors"

	"github.com/gin-gonic/gin"
)

// StreamHandler serves a read-only view of the appliance state for
// monitoring tools. Changes go through the websocket protocol.
type StreamHandler struct {
	streams   ports.StreamService
	config    ports.ConfigService
	pipelines ports.PipelineLister
	network   ports.NetworkService
}

func NewStreamHandler(
	streams ports.StreamService,
	config ports.ConfigService,
	pipelineLister ports.PipelineLister,
	network ports.NetworkService,
) *StreamHandler {
	return &StreamHandler{
		streams:   streams,
		config:    config,
		pipelines: pipelineLister,
		network:   network,
	}
}

func (h *StreamHandler) SetupRoutes(api gin.IRoutes) {
	api.GET("/status", h.GetStatus)
	api.GET("/config", h.GetConfig)
	api.GET("/pipelines", h.ListPipelines)
	api.GET("/netif", h.GetNetif)
}

func (h *StreamHandler) GetStatus(c *gin.Context) {
	state := h.streams.State()
	c.JSON(http.StatusOK, gin.H{
		"is_streaming": state == domain.StreamingRunning,
		"state":        state.String(),
	})
}

func (h *StreamHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.config.Snapshot())
}

func (h *StreamHandler) ListPipelines(c *gin.Context) {
	list, err := h.pipelines.List(c.Request.Context())
	if err != nil {
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to list pipelines"))
		return
	}
	c.JSON(http.StatusOK, pipelines.Entries(list))
}

func (h *StreamHandler) GetNetif(c *gin.Context) {
	c.JSON(http.StatusOK, h.network.Snapshot())
}
