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

const createConversation = `-- name: CreateConversation :one
INSERT INTO conversations (
    id, owner_id, title, messages
) VALUES (
    $1, $2, $3, $4
)
RETURNING id, owner_id, title, messages, created_at, updated_at;
`

func (s *PostgresStore) CreateConversation(ctx context.Context, arg store.CreateConversationParams) (*models.Conversation, error) {
	row := s.db.QueryRow(ctx, createConversation,
		arg.ID,
		arg.OwnerID,
		arg.Title,
		arg.Messages,
	)

	var c models.Conversation
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Title,
		&c.Messages,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		log.Printf("ERROR [PostgresStore] CreateConversation: insert failed for owner %s: %v", arg.OwnerID, err)
		return nil, fmt.Errorf("database error creating conversation: %w", err)
	}
	return &c, nil
}

const getConversationByID = `-- name: GetConversationByID :one
SELECT id, owner_id, title, messages, created_at, updated_at
FROM conversations
WHERE id = $1 AND owner_id = $2;
`

func (s *PostgresStore) GetConversationByID(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Conversation, error) {
	row := s.db.QueryRow(ctx, getConversationByID, id, ownerID)

	var c models.Conversation
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Title,
		&c.Messages,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching conversation %s: %w", id, err)
	}
	return &c, nil
}

const listConversationsByOwner = `-- name: ListConversationsByOwner :many
SELECT id, owner_id, title, messages, created_at, updated_at
FROM conversations
WHERE owner_id = $1
ORDER BY updated_at DESC;
`

func (s *PostgresStore) ListConversationsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.db.Query(ctx, listConversationsByOwner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("database error listing conversations for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(
			&c.ID,
			&c.OwnerID,
			&c.Title,
			&c.Messages,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("database error scanning conversation row: %w", err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating conversation rows: %w", err)
	}
	return conversations, nil
}

// updateConversation is a merge-write: only messages, updated_at and
// (optionally) the title change; unrelated fields are untouched.
const updateConversation = `-- name: UpdateConversation :one
UPDATE conversations
SET messages = $3,
    title = COALESCE($4, title),
    updated_at = NOW()
WHERE id = $1 AND owner_id = $2
RETURNING id, owner_id, title, messages, created_at, updated_at;
`

func (s *PostgresStore) UpdateConversation(ctx context.Context, arg store.UpdateConversationParams) (*models.Conversation, error) {
	row := s.db.QueryRow(ctx, updateConversation,
		arg.ID,
		arg.OwnerID,
		arg.Messages,
		arg.Title,
	)

	var c models.Conversation
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Title,
		&c.Messages,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		log.Printf("ERROR [PostgresStore] UpdateConversation: update failed for %s: %v", arg.ID, err)
		return nil, fmt.Errorf("database error updating conversation %s: %w", arg.ID, err)
	}
	return &c, nil
}
