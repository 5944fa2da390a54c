package handlers

import (
	"net/http"

	"relay-service/internal/ws"

	"github.com/gin-gonic/gin"
)

type WSHandler struct {
	hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// HandleWebSocket hands an authenticated upgrade request to the hub.
// WSAuth middleware has already verified the credential.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ws.ServeWS(h.hub, c.Writer, c.Request, userID.(string))
}
