package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"gemchat-backend/internal/models"
	"gemchat-backend/internal/services"
	"gemchat-backend/pkg/httputil"
)

// GenerateHandler handles the stateless single-turn generate endpoint.
type GenerateHandler struct {
	chat *services.ChatService
}

// NewGenerateHandler creates a new GenerateHandler instance.
func NewGenerateHandler(chat *services.ChatService) *GenerateHandler {
	return &GenerateHandler{chat: chat}
}

// HandleGenerate handles POST /v1/generate. The request body accepts both
// current and legacy field spellings; nothing is persisted.
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	resp, err := h.chat.Generate(r.Context(), userID, req)
	if err != nil {
		log.Printf("Generate failed for user %s: %v", userID, err)
		respondPipelineError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
