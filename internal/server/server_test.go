package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alice21mota/oppia/pkg/config"
	"github.com/alice21mota/oppia/pkg/email"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreCurrent())
}

const testConfig = `
dev_mode: true
auth:
  signing_key: test-signing-key-0123456789abcdef
  csrf_secret: test-csrf-secret
  default_admin_email: admin@example.com
email:
  can_send: true
  admin_address: admin@example.com
  system_address: system@example.com
`

type captureSender struct {
	sent []email.Message
}

func (c *captureSender) Send(_ context.Context, msg email.Message) error {
	c.sent = append(c.sent, msg)
	return nil
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(context.Background(), newTestConfig(t), logger, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func serve(s *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, http.NoBody)
	for k, v := range header {
		r.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "dev", Version)
}

func TestNew_InMemory(t *testing.T) {
	s := newTestServer(t)
	assert.NotNil(t, s.Users())
	assert.NotNil(t, s.Sessions())
	assert.NotNil(t, s.Params())
	assert.Nil(t, s.db)
	assert.Nil(t, s.auditStore)
}

func TestRoutes_Probes(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.Health().SetReady()
	w = serve(s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_Metrics(t *testing.T) {
	s := newTestServer(t)

	serve(s, http.MethodGet, "/adminhandler", nil)
	w := serve(s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "oppia_admin_auth_requests_total")
}

func TestRoutes_SwaggerDoc(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, http.MethodGet, "/swagger/doc.json", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "Oppia Admin API", doc.Info.Title)
	assert.Contains(t, doc.Paths, "/adminhandler")
	assert.Contains(t, doc.Paths, "/adminrolehandler")
}

func TestRoutes_AdminRequiresSession(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, http.MethodGet, "/adminhandler", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_AdminWithSession(t *testing.T) {
	sender := &captureSender{}
	s := newTestServer(t, WithMailSender(sender))
	ctx := context.Background()

	admin, err := s.Users().Signup(ctx, "admin@example.com", "siteadmin")
	require.NoError(t, err)
	require.True(t, admin.SuperAdmin)
	token, err := s.Sessions().Issue(admin.ID, admin.Email)
	require.NoError(t, err)

	w := serve(s, http.MethodGet, "/adminhandler", http.Header{"Authorization": {"Bearer " + token}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "platform_params_dicts")

	w = serve(s, http.MethodGet, "/csrfhandler", http.Header{"Authorization": {"Bearer " + token}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var csrf struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &csrf))

	r := httptest.NewRequest(http.MethodPost, "/senddummymailtoadminhandler", strings.NewReader(`{}`))
	r.Header.Set("Authorization", "Bearer "+token)
	r.Header.Set("X-CSRFToken", csrf.Token)
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "admin@example.com", sender.sent[0].To)
}

func TestNew_InvalidSigningKey(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Auth.SigningKey = ""

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRun_ServesUntilCanceled(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Server.Address = freeAddr(t)
	s, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	client := &http.Client{Timeout: time.Second}
	defer client.CloseIdleConnections()
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + cfg.Server.Address + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, "draining", s.Health().State())
}

func TestRun_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	cfg := newTestConfig(t)
	cfg.Server.Address = l.Addr().String()
	s, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	err = s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serving http")
}
