package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	m := New("restmold")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/widget/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/widget/42", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, scrape.Code)

	body := scrape.Body.String()
	assert.Contains(t, body, "restmold_http_requests_total")
	// The chi route pattern keeps label cardinality bounded.
	assert.Contains(t, body, `route="/api/widget/{id}"`)
	assert.Contains(t, body, `status="200"`)
	assert.Contains(t, body, "restmold_http_request_duration_seconds_bucket")
}

func TestHandlerServesGoCollector(t *testing.T) {
	m := New("restmold")

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, scrape.Code)
	assert.Contains(t, scrape.Body.String(), "go_goroutines")
}
