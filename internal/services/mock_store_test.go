package services

import (
	"context"
	"sync"
	"time"

	"gemchat-backend/internal/models"
	"gemchat-backend/internal/store"

	"github.com/google/uuid"
)

// memStore is an in-memory store.Store for service tests.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	convs    map[uuid.UUID]*models.Conversation
	settings map[uuid.UUID]*models.GenerationSettings
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*models.User),
		convs:    make(map[uuid.UUID]*models.Conversation),
		settings: make(map[uuid.UUID]*models.GenerationSettings),
	}
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.users[user.Email] = &cp
	return nil
}

func (m *memStore) CreateConversation(_ context.Context, arg store.CreateConversationParams) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &models.Conversation{
		ID:        arg.ID,
		OwnerID:   arg.OwnerID,
		Title:     arg.Title,
		Messages:  append([]byte(nil), arg.Messages...),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.convs[arg.ID] = c
	cp := *c
	return &cp, nil
}

func (m *memStore) GetConversationByID(_ context.Context, id, ownerID uuid.UUID) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok || c.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	cp := *c
	cp.Messages = append([]byte(nil), c.Messages...)
	return &cp, nil
}

func (m *memStore) ListConversationsByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Conversation
	for _, c := range m.convs {
		if c.OwnerID == ownerID {
			cp := *c
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m *memStore) UpdateConversation(_ context.Context, arg store.UpdateConversationParams) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[arg.ID]
	if !ok || c.OwnerID != arg.OwnerID {
		return nil, store.ErrNotFound
	}
	c.Messages = append([]byte(nil), arg.Messages...)
	if arg.Title != nil {
		c.Title = *arg.Title
	}
	c.UpdatedAt = time.Now()
	cp := *c
	cp.Messages = append([]byte(nil), c.Messages...)
	return &cp, nil
}

func (m *memStore) GetSettings(_ context.Context, userID uuid.UUID) (*models.GenerationSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gs, ok := m.settings[userID]; ok {
		cp := *gs
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UpsertSettings(_ context.Context, arg store.UpsertSettingsParams) (*models.GenerationSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gs, ok := m.settings[arg.UserID]
	if !ok {
		gs = &models.GenerationSettings{
			UserID:      arg.UserID,
			Temperature: 0.7,
			TopP:        0.95,
		}
		m.settings[arg.UserID] = gs
	}
	if arg.ModelID != nil {
		gs.ModelID = *arg.ModelID
	}
	if arg.Temperature != nil {
		gs.Temperature = *arg.Temperature
	}
	if arg.TopP != nil {
		gs.TopP = *arg.TopP
	}
	if arg.CustomInstructions != nil {
		gs.CustomInstructions = *arg.CustomInstructions
	}
	if arg.EncryptedAPIKey != nil {
		gs.EncryptedAPIKey = append([]byte(nil), arg.EncryptedAPIKey...)
	}
	gs.UpdatedAt = time.Now()
	cp := *gs
	return &cp, nil
}
