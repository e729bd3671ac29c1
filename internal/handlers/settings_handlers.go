package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"gemchat-backend/internal/models"
	"gemchat-backend/internal/services"
	"gemchat-backend/pkg/httputil"
)

// SettingsHandlers handles HTTP requests for per-user generation settings.
type SettingsHandlers struct {
	settings *services.SettingsService
}

// NewSettingsHandlers creates a new SettingsHandlers instance.
func NewSettingsHandlers(settings *services.SettingsService) *SettingsHandlers {
	return &SettingsHandlers{settings: settings}
}

// HandleGetSettings handles GET /v1/settings.
func (h *SettingsHandlers) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.settings.Get(r.Context(), userID)
	if err != nil {
		log.Printf("Get settings failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to get settings")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleUpdateSettings handles PUT /v1/settings. Absent fields are left
// untouched; the response reflects the merged result.
func (h *SettingsHandlers) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var req models.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	resp, err := h.settings.Update(r.Context(), userID, req)
	if err != nil {
		log.Printf("Update settings failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
