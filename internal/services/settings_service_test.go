package services

import (
	"bytes"
	"context"
	"testing"

	"gemchat-backend/internal/crypto"
	"gemchat-backend/internal/models"
	"gemchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSettingsService(t *testing.T) (*SettingsService, *memStore) {
	t.Helper()
	aead, err := crypto.NewAESGCM(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	st := newMemStore()
	return NewSettingsService(st, aead, "gemini-default"), st
}

func TestGetSettingsDefaultsWhenUnset(t *testing.T) {
	svc, _ := newTestSettingsService(t)

	resp, err := svc.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "gemini-default", resp.ModelID)
	assert.Equal(t, 0.7, resp.Temperature)
	assert.Equal(t, 0.95, resp.TopP)
	assert.False(t, resp.HasAPIKey)
}

func TestUpdateSettingsMergeWrite(t *testing.T) {
	svc, _ := newTestSettingsService(t)
	userID := uuid.New()

	model := "gemini-pro"
	temp := 0.3
	_, err := svc.Update(context.Background(), userID, models.UpdateSettingsRequest{
		ModelID:     &model,
		Temperature: &temp,
	})
	require.NoError(t, err)

	// A later partial update leaves untouched fields alone.
	topP := 0.8
	resp, err := svc.Update(context.Background(), userID, models.UpdateSettingsRequest{
		TopP: &topP,
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini-pro", resp.ModelID)
	assert.Equal(t, 0.3, resp.Temperature)
	assert.Equal(t, 0.8, resp.TopP)
}

func TestUpdateSettingsClampsOutOfRange(t *testing.T) {
	svc, _ := newTestSettingsService(t)
	userID := uuid.New()

	temp := 3.5
	topP := -1.0
	resp, err := svc.Update(context.Background(), userID, models.UpdateSettingsRequest{
		Temperature: &temp,
		TopP:        &topP,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, resp.Temperature)
	assert.Equal(t, 0.0, resp.TopP)
}

func TestUpdateSettingsSealsAPIKey(t *testing.T) {
	svc, st := newTestSettingsService(t)
	userID := uuid.New()

	key := "sk-secret-key"
	resp, err := svc.Update(context.Background(), userID, models.UpdateSettingsRequest{
		APIKey: &key,
	})
	require.NoError(t, err)
	assert.True(t, resp.HasAPIKey)

	// The stored bytes are ciphertext, never the plaintext key.
	gs, err := st.GetSettings(context.Background(), userID)
	require.NoError(t, err)
	assert.NotEmpty(t, gs.EncryptedAPIKey)
	assert.NotContains(t, string(gs.EncryptedAPIKey), key)
}

func TestParamsForOverridesBeatStoredSettings(t *testing.T) {
	svc, _ := newTestSettingsService(t)
	userID := uuid.New()

	model := "gemini-pro"
	temp := 0.2
	instr := "be brief"
	_, err := svc.Update(context.Background(), userID, models.UpdateSettingsRequest{
		ModelID:            &model,
		Temperature:        &temp,
		CustomInstructions: &instr,
	})
	require.NoError(t, err)

	override := 0.9
	params, err := svc.ParamsFor(context.Background(), userID, models.GenerationParams{
		Temperature: &override,
	})
	require.NoError(t, err)

	// Request override wins where supplied; stored values fill the rest.
	assert.Equal(t, "gemini-pro", params.ModelID)
	require.NotNil(t, params.Temperature)
	assert.Equal(t, 0.9, *params.Temperature)
	require.NotNil(t, params.TopP)
	assert.Equal(t, 0.95, *params.TopP)
	assert.Equal(t, "be brief", params.CustomInstructions)
}

func TestParamsForUnsealsStoredAPIKey(t *testing.T) {
	svc, _ := newTestSettingsService(t)
	userID := uuid.New()

	key := "sk-user-key"
	_, err := svc.Update(context.Background(), userID, models.UpdateSettingsRequest{APIKey: &key})
	require.NoError(t, err)

	params, err := svc.ParamsFor(context.Background(), userID, models.GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "sk-user-key", params.APIKey)
}

func TestParamsForCorruptStoredKeyFails(t *testing.T) {
	svc, st := newTestSettingsService(t)
	userID := uuid.New()

	// A sealed key tampered with at rest must fail loudly, not silently
	// fall back to the server credential.
	_, err := st.UpsertSettings(context.Background(), store.UpsertSettingsParams{
		UserID:          userID,
		EncryptedAPIKey: []byte("garbage-not-a-seal"),
	})
	require.NoError(t, err)

	_, err = svc.ParamsFor(context.Background(), userID, models.GenerationParams{})
	require.Error(t, err)
}

func TestParamsForFallsBackToDefaultModel(t *testing.T) {
	svc, _ := newTestSettingsService(t)

	params, err := svc.ParamsFor(context.Background(), uuid.New(), models.GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "gemini-default", params.ModelID)
}
