package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"gemchat-backend/internal/models"
	"gemchat-backend/internal/services"
	"gemchat-backend/internal/store"
	"gemchat-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ConversationHandlers handles HTTP requests for conversations and the send
// pipeline.
type ConversationHandlers struct {
	conversations *services.ConversationService
	chat          *services.ChatService
}

// NewConversationHandlers creates a new ConversationHandlers instance.
func NewConversationHandlers(conversations *services.ConversationService, chat *services.ChatService) *ConversationHandlers {
	return &ConversationHandlers{
		conversations: conversations,
		chat:          chat,
	}
}

// HandleCreateConversation handles POST /v1/conversations: starts an empty
// conversation without invoking the model.
func (h *ConversationHandlers) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.conversations.Create(r.Context(), userID, nil)
	if err != nil {
		log.Printf("Create conversation failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleListConversations handles GET /v1/conversations.
func (h *ConversationHandlers) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.conversations.List(r.Context(), userID)
	if err != nil {
		log.Printf("List conversations failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleGetConversation handles GET /v1/conversations/{conversationID}.
func (h *ConversationHandlers) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	resp, err := h.conversations.Get(r.Context(), userID, convID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		log.Printf("Get conversation %s failed for user %s: %v", convID, userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to get conversation")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleSendMessage handles POST /v1/conversations/messages (new
// conversation) and POST /v1/conversations/{conversationID}/messages
// (existing one). Both run the full send pipeline.
func (h *ConversationHandlers) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	convID := uuid.Nil
	if raw := chi.URLParam(r, "conversationID"); raw != "" {
		var err error
		convID, err = uuid.Parse(raw)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
			return
		}
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	resp, err := h.chat.SendMessage(r.Context(), userID, convID, req)
	if err != nil {
		log.Printf("Send message failed for user %s (conversation %s): %v", userID, convID, err)
		respondPipelineError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
