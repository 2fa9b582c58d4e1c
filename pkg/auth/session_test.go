package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) *SessionManager {
	t.Helper()
	m, err := NewSessionManager(SessionConfig{SigningKey: "test-signing-key", Issuer: "oppia-admin", TTL: time.Hour})
	require.NoError(t, err)
	return m
}

func TestNewSessionManager_RequiresKey(t *testing.T) {
	_, err := NewSessionManager(SessionConfig{})
	assert.Error(t, err)
}

func TestSessionManager_IssueAndParse(t *testing.T) {
	m := newTestSessions(t)

	token, err := m.Issue("uid_admin", "admin@example.com")
	require.NoError(t, err)

	uc, err := m.Authenticate(WithToken(context.Background(), token))
	require.NoError(t, err)
	assert.Equal(t, "uid_admin", uc.UserID)
	assert.Equal(t, "admin@example.com", uc.Email)
	assert.Equal(t, AuthTypeSession, uc.AuthType)
}

func TestSessionManager_Expired(t *testing.T) {
	m := newTestSessions(t)
	issued := time.Now()
	m.now = func() time.Time { return issued }
	token, err := m.Issue("uid_admin", "")
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSessionManager_WrongKeyOrIssuer(t *testing.T) {
	m := newTestSessions(t)
	other, err := NewSessionManager(SessionConfig{SigningKey: "other-key", Issuer: "oppia-admin"})
	require.NoError(t, err)
	token, err := other.Issue("uid_admin", "")
	require.NoError(t, err)
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	foreign, err := NewSessionManager(SessionConfig{SigningKey: "test-signing-key", Issuer: "elsewhere"})
	require.NoError(t, err)
	token, err = foreign.Issue("uid_admin", "")
	require.NoError(t, err)
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestSessionManager_NoToken(t *testing.T) {
	_, err := newTestSessions(t).Authenticate(context.Background())
	assert.Error(t, err)
}
