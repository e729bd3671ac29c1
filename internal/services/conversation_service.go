package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gemchat-backend/internal/models"
	"gemchat-backend/internal/store"

	"github.com/google/uuid"
)

// maxTitleLen bounds titles derived from the first message.
const maxTitleLen = 50

// placeholderTitle is used when the first message carries no text.
const placeholderTitle = "New conversation"

// ConversationService reconciles in-memory message lists with the persisted
// conversation documents. All writes are merge-writes of the named fields
// only, and inline image payloads never reach the database.
type ConversationService struct {
	store store.Store
}

// NewConversationService creates a new ConversationService.
func NewConversationService(s store.Store) *ConversationService {
	return &ConversationService{store: s}
}

// SerializeMessages marshals messages for persistence, stripping inline
// image data first. Serializing the result of a prior serialization round
// yields the same bytes.
func SerializeMessages(messages []models.Message) ([]byte, error) {
	stripped := make([]models.Message, len(messages))
	for i, m := range messages {
		stripped[i] = m.StripInline()
	}
	data, err := json.Marshal(stripped)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}
	return data, nil
}

// DeriveTitle builds a conversation title from its first message: the first
// text content truncated, or a placeholder when the conversation is
// image-only.
func DeriveTitle(messages []models.Message) string {
	for _, m := range messages {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		// Truncate on a rune boundary so multi-byte text is never split
		// mid-character.
		if runes := []rune(text); len(runes) > maxTitleLen {
			return string(runes[:maxTitleLen])
		}
		return text
	}
	return placeholderTitle
}

// Create starts a new conversation for ownerID with the given initial
// messages.
func (s *ConversationService) Create(ctx context.Context, ownerID uuid.UUID, messages []models.Message) (*models.ConversationResponse, error) {
	data, err := SerializeMessages(messages)
	if err != nil {
		return nil, err
	}

	dbConv, err := s.store.CreateConversation(ctx, store.CreateConversationParams{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Title:    DeriveTitle(messages),
		Messages: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation in store: %w", err)
	}
	return s.mapToResponse(dbConv)
}

// Get retrieves one conversation scoped to its owner.
func (s *ConversationService) Get(ctx context.Context, ownerID, convID uuid.UUID) (*models.ConversationResponse, error) {
	dbConv, err := s.store.GetConversationByID(ctx, convID, ownerID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, err // Propagate not found error
		}
		return nil, fmt.Errorf("failed to get conversation from store: %w", err)
	}
	return s.mapToResponse(dbConv)
}

// List retrieves the owner's conversations, most recently updated first.
func (s *ConversationService) List(ctx context.Context, ownerID uuid.UUID) (*models.ListConversationsResponse, error) {
	dbConvs, err := s.store.ListConversationsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations from store: %w", err)
	}

	out := make([]models.ConversationResponse, 0, len(dbConvs))
	for i := range dbConvs {
		resp, err := s.mapToResponse(&dbConvs[i])
		if err != nil {
			return nil, fmt.Errorf("failed to map conversation at index %d: %w", i, err)
		}
		out = append(out, *resp)
	}
	return &models.ListConversationsResponse{Conversations: out}, nil
}

// Append persists new messages onto an existing conversation with a
// merge-write, returning the updated view. Messages are stripped of inline
// image data before they are written.
func (s *ConversationService) Append(ctx context.Context, ownerID, convID uuid.UUID, newMessages ...models.Message) (*models.ConversationResponse, error) {
	dbConv, err := s.store.GetConversationByID(ctx, convID, ownerID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get conversation for append: %w", err)
	}

	var existing []models.Message
	if err := json.Unmarshal(dbConv.Messages, &existing); err != nil {
		return nil, fmt.Errorf("failed to parse stored messages: %w", err)
	}

	merged := append(existing, newMessages...)
	data, err := SerializeMessages(merged)
	if err != nil {
		return nil, err
	}

	// First exchange on an untitled conversation also sets the title.
	var title *string
	if dbConv.Title == "" || dbConv.Title == placeholderTitle {
		if t := DeriveTitle(merged); t != dbConv.Title {
			title = &t
		}
	}

	updated, err := s.store.UpdateConversation(ctx, store.UpdateConversationParams{
		ID:       convID,
		OwnerID:  ownerID,
		Messages: data,
		Title:    title,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation in store: %w", err)
	}
	return s.mapToResponse(updated)
}

// NewMessage builds a message stamped with the current time.
func NewMessage(role, text string, images []models.MessageImage) models.Message {
	return models.Message{
		Role:            role,
		Text:            text,
		Images:          images,
		TimestampMillis: time.Now().UnixMilli(),
	}
}

// mapToResponse converts a DB conversation to an API response DTO.
func (s *ConversationService) mapToResponse(dbConv *models.Conversation) (*models.ConversationResponse, error) {
	var messages []models.Message
	if err := json.Unmarshal(dbConv.Messages, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse conversation messages: %w", err)
	}

	return &models.ConversationResponse{
		ID:        dbConv.ID,
		OwnerID:   dbConv.OwnerID,
		Title:     dbConv.Title,
		Messages:  messages,
		CreatedAt: dbConv.CreatedAt,
		UpdatedAt: dbConv.UpdatedAt,
	}, nil
}
