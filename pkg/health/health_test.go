package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goroutineCount = 100

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func serveReadiness(t *testing.T, hc *Checker) (int, healthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	hc.ReadinessHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	var resp healthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w.Code, resp
}

func TestStateTransitions(t *testing.T) {
	hc := NewChecker()
	assert.Equal(t, "starting", hc.State())
	assert.False(t, hc.IsReady())

	hc.SetReady()
	assert.Equal(t, "ready", hc.State())
	assert.True(t, hc.IsReady())

	hc.SetDraining()
	assert.Equal(t, "draining", hc.State())
	assert.False(t, hc.IsReady())
}

func TestLivenessHandler_AlwaysReturns200(t *testing.T) {
	hc := NewChecker()
	hc.SetDraining()

	w := httptest.NewRecorder()
	hc.LivenessHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReadinessHandler_States(t *testing.T) {
	hc := NewChecker()

	code, resp := serveReadiness(t, hc)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "starting", resp.Status)

	hc.SetReady()
	code, resp = serveReadiness(t, hc)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", resp.Status)

	hc.SetDraining()
	code, _ = serveReadiness(t, hc)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadinessHandler_Dependencies(t *testing.T) {
	hc := NewChecker()
	hc.SetReady()
	hc.AddDependency("cache", pingerFunc(func(context.Context) error { return nil }))

	code, resp := serveReadiness(t, hc)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]string{"cache": "ok"}, resp.Checks)

	hc.AddDependency("database", pingerFunc(func(context.Context) error { return errors.New("connection refused") }))
	code, resp = serveReadiness(t, hc)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["database"])
}

func TestReadinessHandler_SQLDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.ExpectPing()

	hc := NewChecker()
	hc.SetReady()
	hc.AddDependency("database", db)

	code, _ := serveReadiness(t, hc)
	assert.Equal(t, http.StatusOK, code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConcurrentAccess(t *testing.T) {
	hc := NewChecker()

	var wg sync.WaitGroup
	wg.Add(goroutineCount * 3)
	for range goroutineCount {
		go func() {
			defer wg.Done()
			hc.SetReady()
		}()
		go func() {
			defer wg.Done()
			hc.SetDraining()
		}()
		go func() {
			defer wg.Done()
			_, _ = hc.Check(context.Background())
			_ = hc.State()
		}()
	}
	wg.Wait()

	assert.Contains(t, []string{"starting", "ready", "draining"}, hc.State())
}
