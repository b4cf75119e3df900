package registry

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModule struct {
	name   string
	prefix string
	tags   []string
	routes chi.Router
}

func (m *stubModule) Name() string      { return m.name }
func (m *stubModule) Prefix() string    { return m.prefix }
func (m *stubModule) Tags() []string    { return m.tags }
func (m *stubModule) Routes() chi.Router { return m.routes }

func okRouter() chi.Router {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func newRegistry(opts Options) *Registry {
	return New(opts, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestMountDerivedPrefix(t *testing.T) {
	router := chi.NewRouter()
	reg := newRegistry(Options{})

	err := reg.Mount(router, []Module{&stubModule{name: "product", routes: okRouter()}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/product/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	mounted := reg.MountedModules()
	require.Len(t, mounted, 1)
	assert.Equal(t, "/api/product", mounted[0].Prefix)
}

func TestPrefixPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		module     *stubModule
		overrides  map[string]string
		wantPrefix string
	}{
		{
			name:       "module prefix wins over override",
			module:     &stubModule{name: "product", prefix: "/v2/catalog", routes: okRouter()},
			overrides:  map[string]string{"product": "/override"},
			wantPrefix: "/v2/catalog",
		},
		{
			name:       "override wins over derived",
			module:     &stubModule{name: "product", routes: okRouter()},
			overrides:  map[string]string{"product": "/custom/product"},
			wantPrefix: "/custom/product",
		},
		{
			name:       "derived is base plus name",
			module:     &stubModule{name: "health", routes: okRouter()},
			wantPrefix: "/api/health",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newRegistry(Options{Prefixes: tt.overrides})
			err := reg.Mount(chi.NewRouter(), []Module{tt.module})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrefix, reg.MountedModules()[0].Prefix)
		})
	}
}

func TestMountRejectsInvalidModules(t *testing.T) {
	tests := []struct {
		name    string
		modules []Module
		reason  string
	}{
		{
			name:    "nil module",
			modules: []Module{nil},
			reason:  "module is nil",
		},
		{
			name:    "unnamed module",
			modules: []Module{&stubModule{routes: okRouter()}},
			reason:  "no name",
		},
		{
			name:    "nil router",
			modules: []Module{&stubModule{name: "broken"}},
			reason:  "nil router",
		},
		{
			name: "duplicate names",
			modules: []Module{
				&stubModule{name: "product", routes: okRouter(), prefix: "/a"},
				&stubModule{name: "product", routes: okRouter(), prefix: "/b"},
			},
			reason: "duplicate module name",
		},
		{
			name: "duplicate prefixes",
			modules: []Module{
				&stubModule{name: "one", prefix: "/same", routes: okRouter()},
				&stubModule{name: "two", prefix: "/same", routes: okRouter()},
			},
			reason: "already mounted",
		},
		{
			name:    "prefix without leading slash",
			modules: []Module{&stubModule{name: "bad", prefix: "api/bad", routes: okRouter()}},
			reason:  "must start with /",
		},
		{
			name:    "prefix with trailing slash",
			modules: []Module{&stubModule{name: "bad", prefix: "/bad/", routes: okRouter()}},
			reason:  "must not end with /",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newRegistry(Options{})
			err := reg.Mount(chi.NewRouter(), tt.modules)
			require.Error(t, err)

			var regErr *RegistrationError
			require.ErrorAs(t, err, &regErr)
			assert.Contains(t, regErr.Reason, tt.reason)
			assert.Empty(t, reg.MountedModules())
		})
	}
}

func TestMountMultipleModules(t *testing.T) {
	router := chi.NewRouter()
	reg := newRegistry(Options{})

	err := reg.Mount(router, []Module{
		&stubModule{name: "product", routes: okRouter(), tags: []string{"catalog"}},
		&stubModule{name: "event", routes: okRouter()},
	})
	require.NoError(t, err)

	mounted := reg.MountedModules()
	require.Len(t, mounted, 2)
	assert.Equal(t, []string{"catalog"}, mounted[0].Tags)

	for _, path := range []string{"/api/product/", "/api/event/"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
