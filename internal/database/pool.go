package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"restmold/internal/config"
)

// ErrNotInitialized is returned when a session is requested before Init or
// after Dispose.
var ErrNotInitialized = errors.New("database pool is not initialized")

// Querier is the subset of pgx used by repositories. Both pgxpool.Pool and
// pgx.Tx satisfy it, so repository code runs identically inside and outside
// a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool owns the process's database connections. It is constructed cold and
// connects on Init; Dispose returns it to the cold state so it can be
// re-initialized, which integration tests rely on.
type Pool struct {
	cfg    config.DatabaseConfig
	logger *slog.Logger

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewPool creates an unconnected pool handle.
func NewPool(cfg config.DatabaseConfig, logger *slog.Logger) *Pool {
	return &Pool{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "database")),
	}
}

// Init opens the connection pool and verifies connectivity. Calling Init on
// an already initialized pool is a no-op.
func (p *Pool) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool != nil {
		return nil
	}

	poolCfg, err := pgxpool.ParseConfig(p.cfg.DSN())
	if err != nil {
		return fmt.Errorf("parsing database config: %w", err)
	}

	// The pool keeps PoolSize connections warm and may grow by MaxOverflow
	// more under load.
	poolCfg.MinConns = int32(p.cfg.PoolSize)
	poolCfg.MaxConns = int32(p.cfg.PoolSize + p.cfg.MaxOverflow)
	poolCfg.MaxConnLifetime = p.cfg.ConnMaxLifetime
	poolCfg.HealthCheckPeriod = p.cfg.HealthCheck
	poolCfg.ConnConfig.ConnectTimeout = p.cfg.PoolTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("pinging database: %w", err)
	}

	p.pool = pool
	p.logger.InfoContext(ctx, "database pool initialized",
		slog.String("host", p.cfg.Host),
		slog.String("database", p.cfg.Name),
		slog.Int("min_conns", p.cfg.PoolSize),
		slog.Int("max_conns", p.cfg.PoolSize+p.cfg.MaxOverflow),
	)
	return nil
}

// Dispose closes all connections and resets the pool so a later Init starts
// fresh. Safe to call multiple times and on a never-initialized pool.
func (p *Pool) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool == nil {
		return
	}
	p.pool.Close()
	p.pool = nil
	p.logger.Info("database pool disposed")
}

// Initialized reports whether the pool currently holds connections.
func (p *Pool) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool != nil
}

// Ping verifies a connection can be acquired.
func (p *Pool) Ping(ctx context.Context) error {
	pool, err := p.get()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// Querier returns the raw pool for non-transactional reads.
func (p *Pool) Querier() (Querier, error) {
	return p.get()
}

// Session begins a transaction-scoped unit of work. The caller must finish
// it with Commit or Close; Close rolls back anything uncommitted.
func (p *Pool) Session(ctx context.Context) (*Session, error) {
	pool, err := p.get()
	if err != nil {
		return nil, err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Session{tx: tx}, nil
}

// WithSession runs fn inside a session and guarantees rollback of anything
// fn did not commit, on error, panic, and context cancellation alike.
// Committing is fn's responsibility; WithSession never commits on its own.
func (p *Pool) WithSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	session, err := p.Session(ctx)
	if err != nil {
		return err
	}
	defer session.Close(ctx)

	return fn(ctx, session)
}

func (p *Pool) get() (*pgxpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool == nil {
		return nil, ErrNotInitialized
	}
	return p.pool, nil
}

// Stat exposes pool utilization for the health endpoint.
func (p *Pool) Stat() (*pgxpool.Stat, error) {
	pool, err := p.get()
	if err != nil {
		return nil, err
	}
	return pool.Stat(), nil
}

// Session is one transaction. All repository mutations flush statements
// through it immediately but nothing persists until Commit.
type Session struct {
	tx     pgx.Tx
	closed bool
}

// Exec implements Querier
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.tx.Exec(ctx, sql, args...)
}

// Query implements Querier
func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return s.tx.Query(ctx, sql, args...)
}

// QueryRow implements Querier
func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.tx.QueryRow(ctx, sql, args...)
}

// Commit makes the session's work durable.
func (s *Session) Commit(ctx context.Context) error {
	if s.closed {
		return pgx.ErrTxClosed
	}
	s.closed = true
	return s.tx.Commit(ctx)
}

// Rollback discards the session's uncommitted work.
func (s *Session) Rollback(ctx context.Context) error {
	if s.closed {
		return pgx.ErrTxClosed
	}
	s.closed = true
	return s.tx.Rollback(ctx)
}

// Close rolls back if the session was never committed or rolled back. It is
// the deferred safety net on every session exit path.
func (s *Session) Close(ctx context.Context) {
	if s.closed {
		return
	}
	s.closed = true
	// Rollback with a fresh context so cleanup still runs when the request
	// context is already cancelled.
	if err := s.tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Default().Error("session rollback failed", slog.String("error", err.Error()))
	}
}
