package services

import (
	"context"
	"testing"
	"time"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthRegisterAndLogin(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()
	client := ClientInfo{UserAgent: "test", IPAddress: "127.0.0.1"}

	result, err := s.auth.Register(ctx, RegisterInput{Name: " Alice ", Email: "Alice@Example.com", Password: "password123"}, client)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.Equal(t, "Alice", result.User.Name)

	claims, err := utils.ValidateToken(result.Token)
	require.NoError(t, err)
	sessionID, err := claims.SessionID()
	require.NoError(t, err)
	assert.Equal(t, result.Session.ID, sessionID)

	_, err = s.auth.Register(ctx, RegisterInput{Name: "Again", Email: "alice@example.com", Password: "password123"}, client)
	requireAPIError(t, err, utils.ErrEmailTaken)

	login, err := s.auth.Login(ctx, "ALICE@example.com", "password123", client)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, login.User.ID)

	_, err = s.auth.Login(ctx, "alice@example.com", "wrong-password", client)
	requireAPIError(t, err, utils.ErrInvalidCredentials)

	_, err = s.auth.Login(ctx, "nobody@example.com", "password123", client)
	requireAPIError(t, err, utils.ErrInvalidCredentials)
}

func TestAuthSessions(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	result, err := s.auth.Register(ctx, RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "password123"}, ClientInfo{})
	require.NoError(t, err)

	user, session, err := s.auth.ResolveSession(ctx, result.User.ID, result.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, user.ID)
	assert.Equal(t, result.Session.ID, session.ID)

	require.NoError(t, s.auth.Logout(ctx, result.User.ID, result.Session.ID))
	_, _, err = s.auth.ResolveSession(ctx, result.User.ID, result.Session.ID)
	requireAPIError(t, err, utils.ErrUnauthorized)

	stale, err := s.auth.Login(ctx, "bob@example.com", "password123", ClientInfo{})
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&models.Session{}).Where("id = ?", stale.Session.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error)

	_, _, err = s.auth.ResolveSession(ctx, stale.User.ID, stale.Session.ID)
	requireAPIError(t, err, utils.ErrUnauthorized)

	purged, err := s.auth.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}
