package httpapi

import (
	"github.com/gin-gonic/gin"

	"StoryStream/internal/infrastructure/websocket"
)

// subscribe upgrades the request and blocks until the peer disconnects.
func (h *handlers) subscribe(c *gin.Context) {
	conn, err := websocket.Upgrade(c.Writer, c.Request, h.wsOpts)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	if err := h.subscribers.Register(c.Request.Context(), conn); err != nil {
		h.logger.Warn("subscriber rejected", "error", err)
		_ = conn.Close()
		return
	}
	h.logger.Info("client connected", "conn", conn.ID())

	conn.Serve()

	h.subscribers.Unregister(conn.ID())
	h.logger.Info("client disconnected", "conn", conn.ID())
}
