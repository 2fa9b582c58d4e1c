package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is used when no session lifetime is configured.
const DefaultSessionTTL = 24 * time.Hour

// SessionConfig configures session tokens.
type SessionConfig struct {
	SigningKey string
	Issuer     string
	TTL        time.Duration
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies HS256 session tokens.
type SessionManager struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(cfg SessionConfig) (*SessionManager, error) {
	if cfg.SigningKey == "" {
		return nil, errors.New("session signing key is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	return &SessionManager{
		key:    []byte(cfg.SigningKey),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    time.Now,
	}, nil
}

// Issue returns a signed session token for a user.
func (m *SessionManager) Issue(userID, email string) (string, error) {
	now := m.now()
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// Parse verifies a session token and returns its caller.
func (m *SessionManager) Parse(token string) (*UserContext, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing session token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("session token has no subject")
	}
	return &UserContext{UserID: claims.Subject, Email: claims.Email, AuthType: AuthTypeSession}, nil
}

// Authenticate verifies the session token carried by ctx.
func (m *SessionManager) Authenticate(ctx context.Context) (*UserContext, error) {
	token := GetToken(ctx)
	if token == "" {
		return nil, errors.New("no session token found in context")
	}
	return m.Parse(token)
}

// Verify interface compliance.
var _ Authenticator = (*SessionManager)(nil)
