package handlers

import (
	"net/http"

	"relay-service/internal/models"
	"relay-service/internal/repositories/postgres"
	"relay-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messages *postgres.MessageRepository
	users    *postgres.UserRepository
}

func NewMessageHandler(messages *postgres.MessageRepository, users *postgres.UserRepository) *MessageHandler {
	return &MessageHandler{messages: messages, users: users}
}

// GetConversation returns the two-way history between the caller and
// the user in the path.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	userID := c.GetString("user_id")
	otherID := c.Param("userId")

	exists, err := h.users.Exists(c.Request.Context(), otherID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to resolve user")
		return
	}
	if !exists {
		response.Error(c, http.StatusNotFound, "user not found")
		return
	}

	msgs, err := h.messages.Conversation(c.Request.Context(), userID, otherID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	out := make([]*models.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Response())
	}
	response.OK(c, out)
}

// MarkRead flips a message to read on behalf of its recipient.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID := c.GetString("user_id")
	messageID := c.Param("id")

	if err := h.messages.MarkRead(c.Request.Context(), messageID, userID); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to mark message read")
		return
	}
	response.OK(c, gin.H{"id": messageID, "status": models.MessageStatusRead})
}
