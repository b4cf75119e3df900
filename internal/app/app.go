package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"restmold/internal/apierrors"
	"restmold/internal/config"
	"restmold/internal/database"
	"restmold/internal/httpclient"
	"restmold/internal/infrastructure"
	"restmold/internal/metrics"
	customMiddleware "restmold/internal/middleware"
	"restmold/internal/registry"
	handlers "restmold/internal/transport/http"
)

// Application is the main dependency container. Construction wires every
// component in startup order: configuration, logger, database pool, HTTP
// client, then routes. Stop tears them down in reverse.
type Application struct {
	Config     *config.Config
	Logger     *slog.Logger
	Router     *chi.Mux
	Server     *http.Server
	Pool       *database.Pool
	HTTPClient *httpclient.Client
	Registry   *registry.Registry
	Metrics    *metrics.Metrics
	Translator *apierrors.Translator
}

// Options tweaks assembly for tests and alternative entry points.
type Options struct {
	// ConfigDir is where base.yaml and <env>.yaml are searched. Empty means
	// "config".
	ConfigDir string
	// SkipDatabase leaves the pool cold. Handlers answer 503 for data
	// endpoints until Init is called; useful for smoke tests.
	SkipDatabase bool
}

// New constructs the application. The database pool is initialized eagerly
// unless opts.SkipDatabase is set; a failed Init is fatal so the process
// does not come up half-wired.
func New(ctx context.Context, opts Options) (*Application, error) {
	dir := opts.ConfigDir
	if dir == "" {
		dir = "config"
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment))

	app := &Application{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initializeServices(ctx, opts); err != nil {
		return nil, err
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices brings up the stateful dependencies in order.
func (a *Application) initializeServices(ctx context.Context, opts Options) error {
	a.Pool = database.NewPool(a.Config.Database, a.Logger)

	if !opts.SkipDatabase {
		if err := a.Pool.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize database pool: %w", err)
		}

		if a.Config.Database.MigrateOnStart {
			if err := database.Migrate(a.Config.Database, a.Logger); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}
	}

	a.HTTPClient = httpclient.Shared(a.Config.HTTPClient)
	a.Metrics = metrics.New("restmold")
	a.Translator = apierrors.NewTranslator(a.Logger, a.Config.App.Debug)
	a.Registry = registry.New(registry.Options{BasePrefix: "/api"}, a.Logger)

	return nil
}

// setupRouter builds the middleware chain and mounts every registered module.
// Middleware ordering: RequestID, RealIP, metrics, logger, recoverer, then
// the policy layers.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(a.Metrics.Middleware)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(chimiddleware.StripSlashes)

	if a.Config.CORS.Enabled {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.CORS.AllowedOrigins,
			AllowedMethods: a.Config.CORS.AllowedMethods,
			AllowedHeaders: a.Config.CORS.AllowedHeaders,
			MaxAge:         a.Config.CORS.MaxAge,
			Logger:         a.Logger,
		}))
	}

	if a.Config.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.RateLimit.RPS,
			a.Config.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.NotFound(a.Translator.NotFound)
	r.MethodNotAllowed(a.Translator.MethodNotAllowed)

	if err := a.Registry.Mount(r, a.modules()); err != nil {
		// Module registration is validated before anything is mounted, so a
		// failure here is a programming error, not a runtime condition.
		panic(fmt.Sprintf("route registration failed: %v", err))
	}

	r.Handle("/metrics", a.Metrics.Handler())

	a.Router = r
}

// modules is the single registration list. Adding an endpoint group means
// adding its handler here.
func (a *Application) modules() []registry.Module {
	return []registry.Module{
		handlers.NewHealthHandler(a.Pool, a.Registry, a.Config.App.Name, a.Config.App.Version, a.Logger),
		handlers.NewProductHandler(a.Pool, a.Translator, a.Logger),
		handlers.NewEventHandler(a.Pool, a.Translator, a.Logger),
		handlers.NewImageHandler(a.Pool, a.Translator, a.Logger),
		handlers.NewDemoHandler(a.Translator, a.Logger),
		handlers.NewCacheHandler(a.Translator, a.Logger),
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start begins serving in a goroutine. A listener failure cancels the
// supplied context so Run can unwind.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting HTTP server",
		slog.String("address", a.Server.Addr),
		slog.Int("modules", len(a.Registry.MountedModules())))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Stop shuts everything down in reverse startup order: HTTP server first so
// no new work arrives, then the outbound client, then the database pool.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.HTTPClient.CloseIdleConnections()
	a.Pool.Dispose()

	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.ErrorContext(ctx, "Error closing log file", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
