package handlers

import (
	"net/http"

	"relay-service/internal/database"
	"relay-service/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxAttachmentSize = 10 << 20 // 10 MiB

type UploadHandler struct {
	storage *database.MinIOClient
}

func NewUploadHandler(storage *database.MinIOClient) *UploadHandler {
	return &UploadHandler{storage: storage}
}

// Upload stores a message attachment and returns the URL clients embed
// in image/file messages.
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.storage == nil {
		response.Error(c, http.StatusServiceUnavailable, "attachment storage is not configured")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "file field is required")
		return
	}
	if file.Size > maxAttachmentSize {
		response.Error(c, http.StatusRequestEntityTooLarge, "attachment exceeds size limit")
		return
	}

	url, err := h.storage.UploadAttachment(c.Request.Context(), file)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to store attachment")
		return
	}

	response.OK(c, gin.H{"url": url, "fileName": file.Filename})
}
