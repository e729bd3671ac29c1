package services

import (
	"context"
	"testing"
	"time"

	"gemchat-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService() (*AuthService, *memStore) {
	st := newMemStore()
	cfg := &config.Config{
		JWTSecret:       "test-secret",
		TokenExpiration: time.Hour,
	}
	return NewAuthService(st, cfg), st
}

func TestSignupAndLogin(t *testing.T) {
	svc, _ := newTestAuthService()

	user, err := svc.Signup(context.Background(), "Alice@Example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email, "email is normalized")
	assert.NotEqual(t, "hunter22", user.HashedPassword)

	token, loggedIn, err := svc.Login(context.Background(), "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, loggedIn.ID)
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _ := newTestAuthService()

	_, err := svc.Signup(context.Background(), "bob@example.com", "pw123456")
	require.NoError(t, err)

	_, err = svc.Signup(context.Background(), "bob@example.com", "other-pw")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestAuthService()

	_, err := svc.Signup(context.Background(), "carol@example.com", "correct-pw")
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "carol@example.com", "wrong-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newTestAuthService()

	_, err := svc.Signup(context.Background(), "", "pw")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Signup(context.Background(), "d@example.com", "")
	assert.ErrorIs(t, err, ErrValidation)
}
