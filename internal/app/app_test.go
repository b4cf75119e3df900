package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restmold/internal/config"
	"restmold/internal/infrastructure"
)

// newTestApp assembles the application without touching a real database.
func newTestApp(t *testing.T) *Application {
	t.Helper()

	infrastructure.ResetLoggerForTesting()
	t.Cleanup(infrastructure.ResetLoggerForTesting)
	config.ResetCache()

	application, err := New(context.Background(), Options{
		ConfigDir:    t.TempDir(),
		SkipDatabase: true,
	})
	require.NoError(t, err)
	return application
}

func TestNew_AssemblesAllModules(t *testing.T) {
	application := newTestApp(t)

	names := make([]string, 0)
	for _, m := range application.Registry.MountedModules() {
		names = append(names, m.Name)
	}

	assert.ElementsMatch(t, []string{"root", "product", "event", "image", "test", "cache"}, names)
}

func TestRouter_ServesDemoModule(t *testing.T) {
	application := newTestApp(t)

	rec := httptest.NewRecorder()
	application.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/test/success", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_UnknownRouteEnvelope(t *testing.T) {
	application := newTestApp(t)

	rec := httptest.NewRecorder()
	application.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/no-such-thing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "NotFoundError", body["error_code"])
	assert.Equal(t, "/api/no-such-thing", body["path"])
}

func TestRouter_MethodNotAllowedEnvelope(t *testing.T) {
	application := newTestApp(t)

	rec := httptest.NewRecorder()
	application.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/test/success", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "MethodNotAllowedError", body["error_code"])
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	application := newTestApp(t)

	// Generate some traffic first so counters exist.
	warm := httptest.NewRecorder()
	application.Router.ServeHTTP(warm, httptest.NewRequest(http.MethodGet, "/api/test/success", nil))
	require.Equal(t, http.StatusOK, warm.Code)

	rec := httptest.NewRecorder()
	application.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "restmold_http_requests_total")
}

func TestRouter_ColdDatabaseAnswers503(t *testing.T) {
	application := newTestApp(t)

	rec := httptest.NewRecorder()
	application.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/product", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ServiceUnavailableError", body["error_code"])
}

func TestNew_ConfigLayering(t *testing.T) {
	infrastructure.ResetLoggerForTesting()
	t.Cleanup(infrastructure.ResetLoggerForTesting)

	dir := t.TempDir()
	base := "server:\n  port: 9301\napp:\n  name: layered\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(base), 0o644))

	application, err := New(context.Background(), Options{ConfigDir: dir, SkipDatabase: true})
	require.NoError(t, err)

	assert.Equal(t, 9301, application.Config.Server.Port)
	assert.Equal(t, "layered", application.Config.App.Name)
	assert.Equal(t, "0.0.0.0:9301", application.Server.Addr)
}

func TestStop_IsCleanWithoutStart(t *testing.T) {
	application := newTestApp(t)

	// Shutdown of a never-started server must not error so partial startup
	// failures can still unwind.
	require.NoError(t, application.Stop(context.Background()))
	assert.False(t, application.Pool.Initialized())
}
