package handlers

import (
	"errors"
	"net/http"
	"time"

	"relay-service/internal/presence"
	"relay-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	registry *presence.Registry
}

func NewPresenceHandler(registry *presence.Registry) *PresenceHandler {
	return &PresenceHandler{registry: registry}
}

// GetStatus reports a user's live presence from the in-memory
// registry. A user who never connected is a 404.
func (h *PresenceHandler) GetStatus(c *gin.Context) {
	userID := c.Param("userId")

	status, err := h.registry.Status(userID)
	if errors.Is(err, presence.ErrUnknownUser) {
		response.Error(c, http.StatusNotFound, "user has never connected")
		return
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load presence")
		return
	}

	out := gin.H{"userId": status.UserID, "online": status.Online}
	if !status.Online && !status.LastSeen.IsZero() {
		out["lastSeen"] = status.LastSeen.Format(time.RFC3339)
	}
	response.OK(c, out)
}
