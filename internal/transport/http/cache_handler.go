package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"restmold/internal/apierrors"
)

// CacheHandler demonstrates TTL caching of an expensive computation. Entries
// live for 10 seconds with a 5 second janitor; concurrent requests for a
// cold key collapse into one computation.
type CacheHandler struct {
	translator *apierrors.Translator
	logger     *slog.Logger
	cache      *gocache.Cache
	group      singleflight.Group
	compute    func(numbers []int64) int64
}

// NewCacheHandler creates a new cache demo handler
func NewCacheHandler(translator *apierrors.Translator, logger *slog.Logger) *CacheHandler {
	return &CacheHandler{
		translator: translator,
		logger:     logger.With(slog.String("handler", "cache")),
		cache:      gocache.New(10*time.Second, 5*time.Second),
		compute:    sum,
	}
}

// Name implements registry.Module
func (h *CacheHandler) Name() string { return "cache" }

// Prefix implements registry.Module
func (h *CacheHandler) Prefix() string { return "" }

// Tags implements registry.Module
func (h *CacheHandler) Tags() []string { return []string{"diagnostics"} }

// Routes returns the cache demo router.
func (h *CacheHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/status", h.Status)
	return r
}

// CacheStatusRequest is the POST payload.
type CacheStatusRequest struct {
	Numbers []int64 `json:"numbers" validate:"required,min=1"`
}

// Bind implements the render.Binder interface
func (c *CacheStatusRequest) Bind(r *http.Request) error {
	return validate.Struct(c)
}

// CacheStatusResponse is the POST response body.
type CacheStatusResponse struct {
	Status    string `json:"status"`
	CachedSum int64  `json:"cached_sum"`
	FromCache bool   `json:"from_cache"`
}

// Status handles POST /status
func (h *CacheHandler) Status(w http.ResponseWriter, r *http.Request) {
	req := &CacheStatusRequest{}
	if err := render.Bind(r, req); err != nil {
		h.translator.Respond(w, r, bindError(err))
		return
	}

	key := cacheKey(req.Numbers)
	if cached, ok := h.cache.Get(key); ok {
		render.JSON(w, r, CacheStatusResponse{
			Status:    "Timed cache is operational",
			CachedSum: cached.(int64),
			FromCache: true,
		})
		return
	}

	value, _, _ := h.group.Do(key, func() (interface{}, error) {
		result := h.compute(req.Numbers)
		h.cache.SetDefault(key, result)
		return result, nil
	})

	render.JSON(w, r, CacheStatusResponse{
		Status:    "Timed cache is operational",
		CachedSum: value.(int64),
		FromCache: false,
	})
}

func sum(numbers []int64) int64 {
	var total int64
	for _, n := range numbers {
		total += n
	}
	return total
}

func cacheKey(numbers []int64) string {
	// The raw slice is the key; formatting keeps distinct inputs distinct.
	buf := make([]byte, 0, len(numbers)*8)
	for _, n := range numbers {
		for i := 0; i < 8; i++ {
			buf = append(buf, byte(n>>(8*i)))
		}
	}
	return string(buf)
}
