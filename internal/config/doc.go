// Package config provides centralized configuration management.
// It resolves configuration in layers, validates the result, and exposes a
// type-safe, immutable Config to the rest of the application.
//
// # Configuration Sources
//
// Configuration is resolved from the following layers, later layers winning:
//
//	1. Built-in defaults (Default)
//	2. config/base.yaml
//	3. config/<env>.yaml, where env comes from APP_ENV
//	4. RESTMOLD_* environment variables
//	5. Secret sources for credential fields
//
// # Environment Variables
//
// All environment variable overrides follow the pattern RESTMOLD_<SECTION>_<FIELD>:
//
//	RESTMOLD_SERVER_PORT=8080
//	RESTMOLD_DATABASE_HOST=db.internal
//	RESTMOLD_LOGGING_LEVEL=debug
//
// # Secrets
//
// Credential fields are filled by the secret loader, which consults mounted
// secret files, an optional KEY=VALUE secrets file, plain environment
// variables and *_FILE indirection, in that order. A required secret that
// cannot be resolved fails startup with MissingSecretError.
//
// # Caching
//
// Get resolves the configuration once per process and returns the cached
// value afterwards. The returned Config must be treated as read-only;
// ResetCache exists for tests.
package config
