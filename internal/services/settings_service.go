package services

import (
	"context"
	"crypto/cipher"
	"errors"
	"fmt"
	"log"

	"gemchat-backend/internal/crypto"
	"gemchat-backend/internal/genai"
	"gemchat-backend/internal/models"
	"gemchat-backend/internal/store"

	"github.com/google/uuid"
)

// SettingsService owns per-user generation settings. Values arrive from the
// client already debounced; server-side every write is a plain idempotent
// merge-write, so concurrent tabs get last-write-wins semantics.
type SettingsService struct {
	store        store.Store
	aead         cipher.AEAD
	defaultModel string
}

// NewSettingsService creates a new SettingsService. aead seals the optional
// per-user API-key override at rest.
func NewSettingsService(s store.Store, aead cipher.AEAD, defaultModel string) *SettingsService {
	return &SettingsService{store: s, aead: aead, defaultModel: defaultModel}
}

// Get returns the user's settings, falling back to defaults when the user
// has never saved any.
func (s *SettingsService) Get(ctx context.Context, userID uuid.UUID) (*models.SettingsResponse, error) {
	gs, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &models.SettingsResponse{
				ModelID:     s.defaultModel,
				Temperature: genai.DefaultTemperature,
				TopP:        genai.DefaultTopP,
			}, nil
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return s.mapToResponse(gs), nil
}

// Update merge-writes the supplied fields. Out-of-range temperature/topP are
// clamped into [0,1] at this boundary; an API key, when supplied, is sealed
// before it is stored and never returned.
func (s *SettingsService) Update(ctx context.Context, userID uuid.UUID, req models.UpdateSettingsRequest) (*models.SettingsResponse, error) {
	params := store.UpsertSettingsParams{
		UserID:             userID,
		ModelID:            req.ModelID,
		Temperature:        clampPtr(req.Temperature),
		TopP:               clampPtr(req.TopP),
		CustomInstructions: req.CustomInstructions,
	}

	if req.APIKey != nil && *req.APIKey != "" {
		sealed, err := crypto.Encrypt(s.aead, []byte(*req.APIKey))
		if err != nil {
			log.Printf("Error sealing API key for user %s: %v", userID, err)
			return nil, fmt.Errorf("failed to seal API key: %w", err)
		}
		params.EncryptedAPIKey = sealed
	}

	gs, err := s.store.UpsertSettings(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert settings: %w", err)
	}
	return s.mapToResponse(gs), nil
}

// ParamsFor resolves the effective generation parameters for one send:
// stored settings first, then per-request overrides on top. A stored sealed
// API-key override is unsealed here so the invocation can use the user's own
// key instead of the server credential.
func (s *SettingsService) ParamsFor(ctx context.Context, userID uuid.UUID, override models.GenerationParams) (models.GenerationParams, error) {
	out := override

	gs, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if out.ModelID == "" {
				out.ModelID = s.defaultModel
			}
			return out, nil
		}
		return models.GenerationParams{}, fmt.Errorf("failed to load settings for send: %w", err)
	}

	if out.ModelID == "" {
		out.ModelID = gs.ModelID
	}
	if out.ModelID == "" {
		out.ModelID = s.defaultModel
	}
	if out.Temperature == nil {
		t := gs.Temperature
		out.Temperature = &t
	}
	if out.TopP == nil {
		p := gs.TopP
		out.TopP = &p
	}
	if out.CustomInstructions == "" {
		out.CustomInstructions = gs.CustomInstructions
	}
	if len(gs.EncryptedAPIKey) > 0 && s.aead != nil {
		key, err := crypto.Decrypt(s.aead, gs.EncryptedAPIKey)
		if err != nil {
			log.Printf("Error unsealing API key for user %s: %v", userID, err)
			return models.GenerationParams{}, fmt.Errorf("failed to unseal stored API key: %w", err)
		}
		out.APIKey = string(key)
	}
	return out, nil
}

func (s *SettingsService) mapToResponse(gs *models.GenerationSettings) *models.SettingsResponse {
	modelID := gs.ModelID
	if modelID == "" {
		modelID = s.defaultModel
	}
	return &models.SettingsResponse{
		ModelID:            modelID,
		Temperature:        gs.Temperature,
		TopP:               gs.TopP,
		CustomInstructions: gs.CustomInstructions,
		HasAPIKey:          len(gs.EncryptedAPIKey) > 0,
		UpdatedAt:          gs.UpdatedAt,
	}
}

func clampPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return &c
}
