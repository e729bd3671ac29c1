package store

import (
	"context"
	"errors"

	"gemchat-backend/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// CreateConversationParams contains parameters for creating a conversation.
// Messages is the JSON-marshaled (already inline-stripped) message list.
type CreateConversationParams struct {
	ID       uuid.UUID
	OwnerID  uuid.UUID
	Title    string
	Messages []byte
}

// UpdateConversationParams merge-writes a conversation: only the named
// fields change. Title is optional; nil leaves the stored title untouched.
type UpdateConversationParams struct {
	ID       uuid.UUID
	OwnerID  uuid.UUID
	Messages []byte
	Title    *string
}

// UpsertSettingsParams merge-writes per-user generation settings. Nil fields
// keep their stored (or default) values.
type UpsertSettingsParams struct {
	UserID             uuid.UUID
	ModelID            *string
	Temperature        *float64
	TopP               *float64
	CustomInstructions *string
	EncryptedAPIKey    []byte // nil leaves the stored key untouched
}

// Store defines the interface for database operations.
// This allows for mocking in tests and potential DB backend switching.
type Store interface {
	// User operations
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error

	// Conversation operations
	CreateConversation(ctx context.Context, arg CreateConversationParams) (*models.Conversation, error)
	GetConversationByID(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Conversation, error)
	ListConversationsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error)
	UpdateConversation(ctx context.Context, arg UpdateConversationParams) (*models.Conversation, error)

	// Generation settings operations
	GetSettings(ctx context.Context, userID uuid.UUID) (*models.GenerationSettings, error)
	UpsertSettings(ctx context.Context, arg UpsertSettingsParams) (*models.GenerationSettings, error)
}
