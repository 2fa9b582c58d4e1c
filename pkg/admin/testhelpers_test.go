package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alice21mota/oppia/pkg/audit"
	"github.com/alice21mota/oppia/pkg/auth"
	"github.com/alice21mota/oppia/pkg/content"
	"github.com/alice21mota/oppia/pkg/email"
	"github.com/alice21mota/oppia/pkg/metrics"
	"github.com/alice21mota/oppia/pkg/platformparam"
	"github.com/alice21mota/oppia/pkg/search"
	"github.com/alice21mota/oppia/pkg/storage"
	"github.com/alice21mota/oppia/pkg/user"
)

const (
	testAdminEmail    = "testsuper@example.com"
	testAdminUsername = "testsuper"
	testSigningKey    = "test-signing-key-0123456789abcdef"
	testCSRFSecret    = "test-csrf-secret"
	testAPIKey        = "test-api-key"
)

// testEnv wires the admin handler to in-memory stores.
type testEnv struct {
	handler  *Handler
	users    *user.Service
	content  *content.Service
	params   *platformparam.Registry
	audit    *audit.MemoryLogger
	index    *search.Index
	sessions *auth.SessionManager
	csrf     *auth.CSRF
	mail     *recordingSender
	logs     *syncBuffer
	admin    *user.User
}

func (e *testEnv) committer() user.Committer {
	return user.Committer{ID: e.admin.ID, Email: e.admin.Email}
}

type envOption func(*Deps)

func withDevMode(on bool) envOption {
	return func(d *Deps) { d.DevMode = on }
}

func withRateLimit(rps float64, burst int) envOption {
	return func(d *Deps) { d.RateLimit = RateLimitConfig{RequestsPerSecond: rps, Burst: burst} }
}

func withoutMailer() envOption {
	return func(d *Deps) { d.Mailer = nil }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	env := &testEnv{
		audit: audit.NewMemoryLogger(),
		index: search.New(),
		csrf:  auth.NewCSRF(testCSRFSecret),
		mail:  &recordingSender{},
		logs:  &syncBuffer{},
	}
	logger := slog.New(slog.NewTextHandler(env.logs, &slog.HandlerOptions{Level: slog.LevelInfo}))

	env.users = user.NewService(user.NewMemoryStore(), storage.NewMemoryStore(), env.audit,
		user.Config{DefaultAdminEmail: testAdminEmail}, logger)
	env.content = content.NewService(content.NewMemoryStore(), env.index, logger)

	params, err := platformparam.NewRegistry(platformparam.NewMemoryStore(), logger, platformparam.Defaults()...)
	require.NoError(t, err)
	t.Cleanup(params.Close)
	env.params = params

	sessions, err := auth.NewSessionManager(auth.SessionConfig{SigningKey: testSigningKey})
	require.NoError(t, err)
	env.sessions = sessions

	keyHash, err := auth.HashKey(testAPIKey)
	require.NoError(t, err)
	apiKeys := auth.NewAPIKeyAuthenticator([]auth.APIKey{{Name: "ci", Hash: keyHash, Email: testAdminEmail}})

	deps := Deps{
		Users:         env.users,
		Content:       env.content,
		Params:        env.params,
		Mailer:        email.NewService(env.mail, email.Config{CanSend: true, AdminAddress: "admin@example.com", SystemAddress: "system@example.com", SenderName: "Site Admin"}),
		Audit:         env.audit,
		Metrics:       metrics.New(),
		Authenticator: auth.NewChainedAuthenticator(sessions, apiKeys),
		CSRF:          env.csrf,
		DevMode:       true,
		Logger:        logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.handler = NewHandler(deps)
	env.admin = env.signup(t, testAdminEmail, testAdminUsername)
	return env
}

func (e *testEnv) signup(t *testing.T, emailAddr, username string) *user.User {
	t.Helper()
	u, err := e.users.Signup(context.Background(), emailAddr, username)
	require.NoError(t, err)
	return u
}

// session returns a session token for u.
func (e *testEnv) session(t *testing.T, u *user.User) string {
	t.Helper()
	token, err := e.sessions.Issue(u.ID, u.Email)
	require.NoError(t, err)
	return token
}

// request describes one call to the handler.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	as     *user.User
	noCSRF bool
	header http.Header
}

// do sends req, authenticated as the admin unless req.as is set.
func (e *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	target := req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader = http.NoBody
	if req.body != nil {
		data, err := json.Marshal(req.body)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	r := httptest.NewRequest(req.method, target, body)
	if req.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	caller := req.as
	if caller == nil {
		caller = e.admin
	}
	r.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: e.session(t, caller)})
	if !req.noCSRF {
		r.Header.Set(auth.CSRFHeader, e.csrf.Generate(caller.ID))
	}
	for k, vs := range req.header {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) get(t *testing.T, path string, query url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, request{method: http.MethodGet, path: path, query: query})
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, request{method: http.MethodPost, path: path, body: body})
}

func (e *testEnv) put(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, request{method: http.MethodPut, path: path, body: body})
}

func (e *testEnv) delete(t *testing.T, path string, query url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, request{method: http.MethodDelete, path: path, query: query})
}

// decode unmarshals a JSON response body.
func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// errorMessage returns the error text of a JSON error response.
func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorResponse](t, w).Error
}

// recordingSender captures sent mail.
type recordingSender struct {
	mu   sync.Mutex
	sent []email.Message
}

func (s *recordingSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

// Verify interface compliance.
var _ email.Sender = (*recordingSender)(nil)

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
