package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// APIKey is a configured API key. Only the bcrypt hash of the key is kept.
type APIKey struct {
	Name  string `yaml:"name" validate:"required"`
	Hash  string `yaml:"hash" validate:"required"`
	Email string `yaml:"email" validate:"required,email"`
}

// APIKeyAuthenticator authenticates using hashed API keys. A matching key
// resolves to the email of the account it acts as.
type APIKeyAuthenticator struct {
	keys []APIKey
}

// NewAPIKeyAuthenticator creates a new API key authenticator.
func NewAPIKeyAuthenticator(keys []APIKey) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{keys: append([]APIKey(nil), keys...)}
}

// Authenticate checks the credential carried by ctx against every key hash.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context) (*UserContext, error) {
	token := GetToken(ctx)
	if token == "" {
		return nil, errors.New("no API key found in context")
	}
	for _, k := range a.keys {
		if bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(token)) == nil {
			return &UserContext{Email: k.Email, AuthType: AuthTypeAPIKey}, nil
		}
	}
	return nil, errors.New("invalid API key")
}

// HashKey returns the bcrypt hash to configure for a raw API key.
func HashKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("key must not be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing key: %w", err)
	}
	return string(hashed), nil
}

// Verify interface compliance.
var _ Authenticator = (*APIKeyAuthenticator)(nil)
