// Package auth authenticates admin callers and protects mutating requests
// with CSRF tokens.
package auth

import (
	"context"
)

// contextKey is a private type for context keys.
type contextKey int

const (
	userContextKey contextKey = iota
	tokenContextKey
)

// Authentication types.
const (
	AuthTypeSession = "session"
	AuthTypeAPIKey  = "apikey"
)

// UserContext holds authenticated caller information.
type UserContext struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	AuthType string `json:"auth_type"`
}

// WithUserContext adds user context to the context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// GetUserContext retrieves user context from the context.
func GetUserContext(ctx context.Context) *UserContext {
	if uc, ok := ctx.Value(userContextKey).(*UserContext); ok {
		return uc
	}
	return nil
}

// WithToken adds a raw credential to the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// GetToken retrieves the raw credential from the context.
func GetToken(ctx context.Context) string {
	if t, ok := ctx.Value(tokenContextKey).(string); ok {
		return t
	}
	return ""
}
