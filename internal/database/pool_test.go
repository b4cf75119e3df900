package database

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restmold/internal/config"
)

func testPool() *Pool {
	cfg := config.Default().Database
	return NewPool(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestPoolColdState(t *testing.T) {
	p := testPool()

	assert.False(t, p.Initialized())

	_, err := p.Session(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = p.Querier()
	assert.ErrorIs(t, err, ErrNotInitialized)

	err = p.Ping(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = p.Stat()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestPoolDisposeBeforeInit(t *testing.T) {
	p := testPool()

	// must not panic, and the pool stays cold
	p.Dispose()
	p.Dispose()
	assert.False(t, p.Initialized())
}

func TestWithSessionPropagatesColdPoolError(t *testing.T) {
	p := testPool()

	called := false
	err := p.WithSession(context.Background(), func(ctx context.Context, s *Session) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.False(t, called)
}

func TestInitBadDSNFails(t *testing.T) {
	cfg := config.Default().Database
	cfg.Host = "127.0.0.1"
	cfg.Port = 1 // nothing listens here
	cfg.PoolTimeout = 50 * time.Millisecond
	p := NewPool(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := p.Init(ctx)
	require.Error(t, err)
	assert.False(t, p.Initialized())
}
