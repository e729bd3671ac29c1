package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User represents a user in the database.
type User struct {
	ID             uuid.UUID `db:"id"`
	Email          string    `db:"email"`
	HashedPassword string    `db:"hashed_password"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Conversation represents a persisted conversation document.
// Messages is the full ordered message list stored as JSONB; inline image
// payloads are stripped before it is ever written (see ConversationService).
type Conversation struct {
	ID        uuid.UUID       `db:"id"`
	OwnerID   uuid.UUID       `db:"owner_id"`
	Title     string          `db:"title"`
	Messages  json.RawMessage `db:"messages"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// GenerationSettings represents the per-user generation settings row.
// EncryptedAPIKey holds an AES-GCM sealed per-user API-key override and is
// never returned by the API.
type GenerationSettings struct {
	UserID             uuid.UUID `db:"user_id"`
	ModelID            string    `db:"model_id"`
	Temperature        float64   `db:"temperature"`
	TopP               float64   `db:"top_p"`
	CustomInstructions string    `db:"custom_instructions"`
	EncryptedAPIKey    []byte    `db:"encrypted_api_key"`
	UpdatedAt          time.Time `db:"updated_at"`
}
