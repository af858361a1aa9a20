package ports

import (
	"github.com/gin-gonic/gin"
)

type SystemHandler interface {
	Health(c *gin.Context)
	Ready(c *gin.Context)
}

type WebSocketHandler interface {
	HandleWebSocket(c *gin.Context)
}
