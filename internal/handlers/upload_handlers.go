package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"gemchat-backend/internal/models"
	"gemchat-backend/internal/services"
	"gemchat-backend/pkg/httputil"
)

// UploadHandlers handles HTTP requests for promoting attachments to blob
// storage ahead of a send.
type UploadHandlers struct {
	chat *services.ChatService
}

// NewUploadHandlers creates a new UploadHandlers instance.
func NewUploadHandlers(chat *services.ChatService) *UploadHandlers {
	return &UploadHandlers{chat: chat}
}

// HandleUpload handles POST /v1/uploads.
func (h *UploadHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var req models.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if len(req.Attachments) == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "At least one attachment is required")
		return
	}

	objects, err := h.chat.PromoteAttachments(r.Context(), userID, req.Attachments)
	if err != nil {
		log.Printf("Upload failed for user %s: %v", userID, err)
		respondPipelineError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.UploadResponse{Objects: objects})
}
