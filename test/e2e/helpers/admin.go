//go:build integration

package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alice21mota/oppia/internal/server"
	"github.com/alice21mota/oppia/pkg/auth"
	"github.com/alice21mota/oppia/pkg/config"
)

// Credentials used across admin e2e tests.
const (
	AdminEmail    = "admin@example.com"
	AdminUsername = "siteadmin"
	AdminAPIKey   = "e2e-admin-key-secret-value"
)

// StartPostgres starts a PostgreSQL container and returns its DSN.
func StartPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting postgres connection string: %v", err)
	}
	return dsn
}

// AdminConfig returns a dev-mode configuration backed by pgDSN, with audit
// logging enabled and one API key acting as the default admin.
func AdminConfig(t *testing.T, pgDSN string) *config.Config {
	t.Helper()
	hash, err := auth.HashKey(AdminAPIKey)
	if err != nil {
		t.Fatalf("hashing api key: %v", err)
	}
	cfg, err := config.Parse([]byte(fmt.Sprintf(`
dev_mode: true
database:
  dsn: %q
auth:
  signing_key: e2e-signing-key-0123456789abcdef
  csrf_secret: e2e-csrf-secret
  default_admin_email: %s
  api_keys:
    - name: e2e
      hash: %q
      email: %s
audit:
  enabled: true
`, pgDSN, AdminEmail, hash, AdminEmail)))
	if err != nil {
		t.Fatalf("parsing config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validating config: %v", err)
	}
	return cfg
}

// StartServer builds the admin server on cfg behind an httptest server.
func StartServer(t *testing.T, cfg *config.Config) (*server.Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return srv, ts
}

// AdminClient calls the admin API as one caller.
type AdminClient struct {
	BaseURL string
	APIKey  string
	Session string
	CSRF    string
	Client  *http.Client
}

// NewAPIKeyClient creates a client that authenticates with an API key.
func NewAPIKeyClient(baseURL, apiKey string) *AdminClient {
	return &AdminClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NewSessionClient creates a client that authenticates with a session
// token and fetches its CSRF token.
func NewSessionClient(t *testing.T, baseURL, session string) *AdminClient {
	t.Helper()
	c := &AdminClient{
		BaseURL: baseURL,
		Session: session,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
	var resp struct {
		Token string `json:"token"`
	}
	status, err := c.Get("/csrfhandler", nil, &resp)
	if err != nil || status != http.StatusOK {
		t.Fatalf("fetching csrf token: status %d, err %v", status, err)
	}
	c.CSRF = resp.Token
	return c
}

// doRequest performs an HTTP request with the client's credentials.
func (c *AdminClient) doRequest(method, path string, query url.Values, body any) (*http.Response, error) {
	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	if c.Session != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: c.Session})
	}
	if c.CSRF != "" {
		req.Header.Set(auth.CSRFHeader, c.CSRF)
	}
	return c.Client.Do(req)
}

// Do performs a request and decodes a JSON response into out when out is
// non-nil and the call succeeded.
func (c *AdminClient) Do(method, path string, query url.Values, body, out any) (int, error) {
	resp, err := c.doRequest(method, path, query, body)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Get calls GET path.
func (c *AdminClient) Get(path string, query url.Values, out any) (int, error) {
	return c.Do(http.MethodGet, path, query, nil, out)
}

// Post calls POST path with a JSON body.
func (c *AdminClient) Post(path string, body, out any) (int, error) {
	return c.Do(http.MethodPost, path, nil, body, out)
}

// Put calls PUT path with a JSON body.
func (c *AdminClient) Put(path string, body, out any) (int, error) {
	return c.Do(http.MethodPut, path, nil, body, out)
}

// Delete calls DELETE path.
func (c *AdminClient) Delete(path string, query url.Values, out any) (int, error) {
	return c.Do(http.MethodDelete, path, query, nil, out)
}
