// Package app provides application initialization and lifecycle management.
// It orchestrates configuration loading, logging, the database pool, the
// shared outbound HTTP client, route registration and graceful shutdown.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from files and environment
//	2. Initialize the structured logger
//	3. Initialize the database connection pool (and run migrations)
//	4. Construct the shared HTTP client, metrics and error translator
//	5. Register route modules and build the middleware chain
//	6. Configure and start the HTTP server
//
// # Usage
//
//	application, err := app.New(ctx, app.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// SIGINT and SIGTERM trigger shutdown in reverse startup order: the HTTP
// server stops accepting work, the outbound client drops idle connections,
// then the database pool is disposed. A re-created application can call
// Init on a disposed pool again.
//
// All initialization errors are returned to the caller; the package does
// not call os.Exit() directly.
package app
