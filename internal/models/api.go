package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// SignupRequest defines the expected body for the signup endpoint.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// --- Response Structs ---

// UserResponse defines the user information returned by the API.
// Avoid returning sensitive info like HashedPassword.
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// AuthResponse defines the response body for successful authentication.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// --- Generation DTOs ---

// RequestPart is one fragment of a structured mixed text/image request.
// Exactly one of Text or Image should be set; order is preserved verbatim.
type RequestPart struct {
	Text  string        `json:"text,omitempty"`
	Image *MessageImage `json:"image,omitempty"`
}

// GenerationParams is the one canonical internal settings type. All accepted
// external spellings (snake_case and camelCase aliases, the legacy single
// image field) are mapped onto it at the HTTP boundary by
// GenerateRequest.Normalize — nothing past the boundary deals in aliases.
type GenerationParams struct {
	ModelID            string
	Temperature        *float64
	TopP               *float64
	MaxOutputTokens    *int
	CustomInstructions string

	// APIKey is the user's unsealed API-key override. It is resolved
	// server-side from stored settings, never from a request body.
	APIKey string
}

// GenerateRequest is the wire shape of the generate endpoint. It accepts both
// the current field spellings and the legacy variants that older clients
// still send.
type GenerateRequest struct {
	Prompt string `json:"prompt"`

	Model   string `json:"model,omitempty"`
	ModelID string `json:"model_id,omitempty"` // legacy alias for model

	Temperature *float64 `json:"temperature,omitempty"`

	TopP      *float64 `json:"topP,omitempty"`
	TopPSnake *float64 `json:"top_p,omitempty"`

	MaxOutputTokens      *int `json:"maxOutputTokens,omitempty"`
	MaxOutputTokensSnake *int `json:"max_output_tokens,omitempty"`

	CustomInstructions      string `json:"customInstructions,omitempty"`
	CustomInstructionsSnake string `json:"custom_instructions,omitempty"`

	Images []MessageImage `json:"images,omitempty"`
	Image  *MessageImage  `json:"image,omitempty"` // legacy single-image field

	Parts []RequestPart `json:"parts,omitempty"`
}

// NormalizedGenerateRequest is the canonical form handed to the service layer.
type NormalizedGenerateRequest struct {
	Prompt string
	Images []MessageImage
	Parts  []RequestPart
	Params GenerationParams
}

// Normalize collapses all accepted field aliases onto the canonical request.
// camelCase spellings win over snake_case when both are present; the legacy
// single image field is appended after the images array.
func (r GenerateRequest) Normalize() NormalizedGenerateRequest {
	out := NormalizedGenerateRequest{
		Prompt: r.Prompt,
		Images: r.Images,
		Parts:  r.Parts,
	}

	out.Params.ModelID = r.Model
	if out.Params.ModelID == "" {
		out.Params.ModelID = r.ModelID
	}

	out.Params.Temperature = r.Temperature

	out.Params.TopP = r.TopP
	if out.Params.TopP == nil {
		out.Params.TopP = r.TopPSnake
	}

	out.Params.MaxOutputTokens = r.MaxOutputTokens
	if out.Params.MaxOutputTokens == nil {
		out.Params.MaxOutputTokens = r.MaxOutputTokensSnake
	}

	out.Params.CustomInstructions = r.CustomInstructions
	if out.Params.CustomInstructions == "" {
		out.Params.CustomInstructions = r.CustomInstructionsSnake
	}

	if r.Image != nil {
		out.Images = append(out.Images, *r.Image)
	}

	return out
}

// GenerateResponse is the reply of the generate endpoint.
type GenerateResponse struct {
	Reply           string `json:"reply"`
	ModelUsed       string `json:"modelUsed"`
	FallbackApplied bool   `json:"fallbackApplied"`
}

// --- Conversation DTOs ---

// SendMessageRequest adds a message to a conversation and runs the full send
// pipeline. Attachments carry base64 file data for images selected by the
// user; AttachmentRefs carry already-uploaded durable URLs.
type SendMessageRequest struct {
	Text        string             `json:"text"`
	Attachments []AttachmentUpload `json:"attachments,omitempty"`
	Images      []MessageImage     `json:"images,omitempty"`
	Parts       []RequestPart      `json:"parts,omitempty"`
	Params      *GenerateRequest   `json:"params,omitempty"`
}

// AttachmentUpload is the wire form of a user-selected file.
type AttachmentUpload struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64-encoded file bytes
}

// ConversationResponse is the API view of a conversation.
type ConversationResponse struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListConversationsResponse wraps the owner's conversation list, most
// recently updated first.
type ListConversationsResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
}

// SendMessageResponse returns the updated conversation plus the generation
// outcome for the turn just sent.
type SendMessageResponse struct {
	Conversation    ConversationResponse `json:"conversation"`
	Reply           string               `json:"reply"`
	ModelUsed       string               `json:"modelUsed"`
	FallbackApplied bool                 `json:"fallbackApplied"`
}

// --- Settings DTOs ---

// UpdateSettingsRequest updates per-user generation settings. Absent fields
// are left untouched (merge-write semantics).
type UpdateSettingsRequest struct {
	ModelID            *string  `json:"model_id,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	TopP               *float64 `json:"top_p,omitempty"`
	CustomInstructions *string  `json:"custom_instructions,omitempty"`
	APIKey             *string  `json:"api_key,omitempty"` // stored sealed, never returned
}

// SettingsResponse is the API view of per-user generation settings.
type SettingsResponse struct {
	ModelID            string    `json:"model_id"`
	Temperature        float64   `json:"temperature"`
	TopP               float64   `json:"top_p"`
	CustomInstructions string    `json:"custom_instructions"`
	HasAPIKey          bool      `json:"has_api_key"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// --- Upload DTOs ---

// UploadRequest promotes attachments to blob storage ahead of a send.
type UploadRequest struct {
	Attachments []AttachmentUpload `json:"attachments"`
}

// StoredObjectResponse describes one uploaded object.
type StoredObjectResponse struct {
	URL       string `json:"url"`
	MimeType  string `json:"mime_type"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Bucket    string `json:"bucket"`
}

// UploadResponse wraps the uploaded object records.
type UploadResponse struct {
	Objects []StoredObjectResponse `json:"objects"`
}
