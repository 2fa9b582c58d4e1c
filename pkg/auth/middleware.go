package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Authenticator resolves the caller from a credential stored in ctx.
type Authenticator interface {
	Authenticate(ctx context.Context) (*UserContext, error)
}

// ChainedAuthenticator tries multiple authenticators in order.
type ChainedAuthenticator struct {
	authenticators []Authenticator
}

// NewChainedAuthenticator creates a new chained authenticator.
func NewChainedAuthenticator(authenticators ...Authenticator) *ChainedAuthenticator {
	return &ChainedAuthenticator{authenticators: authenticators}
}

// Authenticate tries each authenticator in order.
func (c *ChainedAuthenticator) Authenticate(ctx context.Context) (*UserContext, error) {
	var lastErr error
	for _, a := range c.authenticators {
		uc, err := a.Authenticate(ctx)
		if err == nil && uc != nil {
			return uc, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("authentication failed")
}

// SessionCookieName is the cookie holding the session token.
const SessionCookieName = "session"

// ExtractToken returns the credential of a request: the X-API-Key header,
// a bearer token, or the session cookie, in that order.
func ExtractToken(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// Verify interface compliance.
var _ Authenticator = (*ChainedAuthenticator)(nil)
