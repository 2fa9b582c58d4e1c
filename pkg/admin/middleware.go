package admin

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alice21mota/oppia/pkg/auth"
	"github.com/alice21mota/oppia/pkg/metrics"
	"github.com/alice21mota/oppia/pkg/user"
)

// contextKey is a private type for context keys in admin package.
type contextKey string

const adminUserKey contextKey = "admin_user"

// Error messages of the access checks.
const (
	msgNotLoggedIn     = "You must be logged in to access this resource."
	msgNotSuperAdmin   = "%s is not a super admin of this application"
	msgSessionExpired  = "Your session has expired, and unfortunately your changes cannot be saved. Please reload the page."
	msgTooManyRequests = "Too many requests. Please try again later."
)

// User holds information about the authenticated super admin.
type User struct {
	UserID   string
	Email    string
	Username string
	Roles    []string
	AuthType string
}

// Committer identifies the admin in user changes.
func (u *User) Committer() user.Committer {
	return user.Committer{ID: u.UserID, Email: u.Email}
}

// GetUser returns the User from context, or nil if not set.
func GetUser(ctx context.Context) *User {
	u, _ := ctx.Value(adminUserKey).(*User)
	return u
}

// WithUser adds the admin user to the context.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, adminUserKey, u)
}

// requireSuperAdmin authenticates the caller and rejects anyone who is not
// a super admin. API-key callers are resolved to users by email.
func requireSuperAdmin(authn auth.Authenticator, users *user.Service, m *metrics.Metrics) func(http.Handler) http.Handler {
	record := func(result string) {
		if m != nil {
			m.RecordAuth(result)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithToken(r.Context(), auth.ExtractToken(r))
			if authn == nil || users == nil || auth.GetToken(ctx) == "" {
				record("missing")
				writeError(w, http.StatusUnauthorized, msgNotLoggedIn)
				return
			}

			uc, err := authn.Authenticate(ctx)
			if err != nil || uc == nil {
				record("invalid")
				writeError(w, http.StatusUnauthorized, msgNotLoggedIn)
				return
			}

			u, err := resolveUser(ctx, users, uc)
			if err != nil || u.Deleted {
				record("unknown_user")
				writeError(w, http.StatusUnauthorized, msgNotLoggedIn)
				return
			}

			isDefaultAdmin := users.DefaultAdminEmail() != "" && u.Email == users.DefaultAdminEmail()
			if !u.SuperAdmin && !isDefaultAdmin {
				record("forbidden")
				writeError(w, http.StatusUnauthorized, fmt.Sprintf(msgNotSuperAdmin, u.ID))
				return
			}

			record("success")
			ctx = auth.WithUserContext(ctx, uc)
			ctx = WithUser(ctx, &User{
				UserID:   u.ID,
				Email:    u.Email,
				Username: u.Username,
				Roles:    u.Roles,
				AuthType: uc.AuthType,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveUser loads the user record behind an authenticated caller.
func resolveUser(ctx context.Context, users *user.Service, uc *auth.UserContext) (*user.User, error) {
	if uc.UserID != "" {
		return users.GetByID(ctx, uc.UserID)
	}
	return users.GetByEmail(ctx, uc.Email)
}

// requireCSRF checks the CSRF token of mutating session requests. API-key
// callers carry no ambient credentials and are exempt.
func requireCSRF(csrf *auth.CSRF) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut {
				next.ServeHTTP(w, r)
				return
			}
			caller := GetUser(r.Context())
			if caller == nil || caller.AuthType == auth.AuthTypeAPIKey {
				next.ServeHTTP(w, r)
				return
			}
			if csrf == nil || !csrf.Valid(caller.UserID, r.Header.Get(auth.CSRFHeader)) {
				writeError(w, http.StatusUnauthorized, msgSessionExpired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitConfig configures per-caller rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// limiterIdleTTL is how long an unused caller limiter is kept.
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// callerLimiter keeps one token bucket per client address.
type callerLimiter struct {
	mu       sync.Mutex
	cfg      RateLimitConfig
	limiters map[string]*limiterEntry
	now      func() time.Time
}

func newCallerLimiter(cfg RateLimitConfig) *callerLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &callerLimiter{cfg: cfg, limiters: map[string]*limiterEntry{}, now: time.Now}
}

// allow reports whether key may make a request now.
func (l *callerLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(l.limiters, k)
		}
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *callerLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, msgTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the client of a request by its remote host.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
