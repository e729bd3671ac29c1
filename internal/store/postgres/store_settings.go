package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gemchat-backend/internal/models"
	"gemchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const getSettings = `-- name: GetSettings :one
SELECT user_id, model_id, temperature, top_p, custom_instructions, encrypted_api_key, updated_at
FROM generation_settings
WHERE user_id = $1;
`

func (s *PostgresStore) GetSettings(ctx context.Context, userID uuid.UUID) (*models.GenerationSettings, error) {
	row := s.db.QueryRow(ctx, getSettings, userID)

	var gs models.GenerationSettings
	err := row.Scan(
		&gs.UserID,
		&gs.ModelID,
		&gs.Temperature,
		&gs.TopP,
		&gs.CustomInstructions,
		&gs.EncryptedAPIKey,
		&gs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching settings for user %s: %w", userID, err)
	}
	return &gs, nil
}

// upsertSettings is an idempotent merge-write: nil parameters keep the stored
// (or column-default) values, so concurrent writers get last-write-wins per
// field rather than clobbering the whole row.
const upsertSettings = `-- name: UpsertSettings :one
INSERT INTO generation_settings (
    user_id, model_id, temperature, top_p, custom_instructions, encrypted_api_key
) VALUES (
    $1,
    COALESCE($2, ''),
    COALESCE($3, 0.7),
    COALESCE($4, 0.95),
    COALESCE($5, ''),
    $6
)
ON CONFLICT (user_id) DO UPDATE SET
    model_id            = COALESCE($2, generation_settings.model_id),
    temperature         = COALESCE($3, generation_settings.temperature),
    top_p               = COALESCE($4, generation_settings.top_p),
    custom_instructions = COALESCE($5, generation_settings.custom_instructions),
    encrypted_api_key   = COALESCE($6, generation_settings.encrypted_api_key),
    updated_at          = NOW()
RETURNING user_id, model_id, temperature, top_p, custom_instructions, encrypted_api_key, updated_at;
`

func (s *PostgresStore) UpsertSettings(ctx context.Context, arg store.UpsertSettingsParams) (*models.GenerationSettings, error) {
	row := s.db.QueryRow(ctx, upsertSettings,
		arg.UserID,
		arg.ModelID,
		arg.Temperature,
		arg.TopP,
		arg.CustomInstructions,
		arg.EncryptedAPIKey,
	)

	var gs models.GenerationSettings
	err := row.Scan(
		&gs.UserID,
		&gs.ModelID,
		&gs.Temperature,
		&gs.TopP,
		&gs.CustomInstructions,
		&gs.EncryptedAPIKey,
		&gs.UpdatedAt,
	)
	if err != nil {
		log.Printf("ERROR [PostgresStore] UpsertSettings: upsert failed for user %s: %v", arg.UserID, err)
		return nil, fmt.Errorf("database error upserting settings for user %s: %w", arg.UserID, err)
	}
	return &gs, nil
}
