package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix for all environment variable overrides, so the
// server port is RESTMOLD_SERVER_PORT and the database host is
// RESTMOLD_DATABASE_HOST.
const EnvPrefix = "RESTMOLD"

// EnvVar selects which environment layer file is applied on top of base.yaml.
const EnvVar = "APP_ENV"

// Config represents the complete application configuration. It is resolved
// once at startup and treated as immutable afterwards.
type Config struct {
	App        AppConfig        `yaml:"app" envconfig:"APP"`
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Database   DatabaseConfig   `yaml:"database" envconfig:"DATABASE"`
	CORS       CORSConfig       `yaml:"cors" envconfig:"CORS"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	HTTPClient HTTPClientConfig `yaml:"http_client" envconfig:"HTTP_CLIENT"`
	Secrets    SecretsConfig    `yaml:"secrets" envconfig:"SECRETS"`
}

// AppConfig identifies the service and its runtime mode.
type AppConfig struct {
	Name        string `yaml:"name" envconfig:"NAME"`
	Environment string `yaml:"environment" envconfig:"ENVIRONMENT"`
	Debug       bool   `yaml:"debug" envconfig:"DEBUG"`
	Version     string `yaml:"version" envconfig:"VERSION"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig contains connection pool configuration. PoolSize is the
// number of connections kept open; MaxOverflow is how many extra may be
// opened under load, so the pool ceiling is PoolSize+MaxOverflow.
type DatabaseConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	User            string        `yaml:"user" envconfig:"USER"`
	Password        string        `yaml:"password" envconfig:"PASSWORD"`
	Name            string        `yaml:"name" envconfig:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" envconfig:"SSL_MODE"`
	PoolSize        int           `yaml:"pool_size" envconfig:"POOL_SIZE"`
	MaxOverflow     int           `yaml:"max_overflow" envconfig:"MAX_OVERFLOW"`
	PoolTimeout     time.Duration `yaml:"pool_timeout" envconfig:"POOL_TIMEOUT"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME"`
	HealthCheck     time.Duration `yaml:"health_check" envconfig:"HEALTH_CHECK"`
	MigrateOnStart  bool          `yaml:"migrate_on_start" envconfig:"MIGRATE_ON_START"`
}

// DSN renders the pool connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// CORSConfig contains cross-origin configuration
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" envconfig:"ENABLED"`
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	AllowedMethods []string `yaml:"allowed_methods" envconfig:"ALLOWED_METHODS"`
	AllowedHeaders []string `yaml:"allowed_headers" envconfig:"ALLOWED_HEADERS"`
	MaxAge         int      `yaml:"max_age" envconfig:"MAX_AGE"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// HTTPClientConfig configures the shared outbound HTTP client.
type HTTPClientConfig struct {
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	MaxRetries      int           `yaml:"max_retries" envconfig:"MAX_RETRIES"`
	RetryBackoff    time.Duration `yaml:"retry_backoff" envconfig:"RETRY_BACKOFF"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" envconfig:"IDLE_CONN_TIMEOUT"`
}

// SecretsConfig controls where the secret loader looks.
type SecretsConfig struct {
	// Dir holds mounted secret files, one file per secret name.
	Dir string `yaml:"dir" envconfig:"DIR"`
	// File is a KEY=VALUE secrets file merged before env lookup.
	File string `yaml:"file" envconfig:"FILE"`
}

// Load resolves configuration in layers: built-in defaults, then
// <dir>/base.yaml, then <dir>/<env>.yaml, then RESTMOLD_* environment
// variables, then secret resolution for credential fields. Later layers win.
func Load(dir string) (*Config, error) {
	cfg := Default()

	env := os.Getenv(EnvVar)
	if env == "" {
		env = "development"
	}
	cfg.App.Environment = env

	for _, name := range []string{"base.yaml", env + ".yaml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

var (
	cacheMu sync.Mutex
	cached  *Config
)

// Get returns the process-wide configuration, resolving it on first call and
// returning the cached value afterwards. Config files are searched under
// ./config.
func Get() (*Config, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cached != nil {
		return cached, nil
	}
	cfg, err := Load("config")
	if err != nil {
		return nil, err
	}
	cached = cfg
	return cached, nil
}

// ResetCache discards the cached configuration so the next Get resolves
// again. Intended for tests.
func ResetCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cached = nil
}

// applyFile overlays one YAML layer onto cfg. Keys absent from the file keep
// their current values.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolveSecrets fills credential fields from the secret sources. A value
// already present from file or env layers acts as the default, so mounted
// secrets win over config files but an explicit value survives when no
// secret exists.
func (c *Config) resolveSecrets() error {
	loader := NewLoader(c.Secrets.Dir, c.Secrets.File)

	password, err := loader.Resolve("database_password", SecretOptions{
		Default:  c.Database.Password,
		Required: c.App.Environment == "production",
	})
	if err != nil {
		return fmt.Errorf("resolving database password: %w", err)
	}
	c.Database.Password = password

	user, err := loader.Resolve("database_user", SecretOptions{Default: c.Database.User})
	if err != nil {
		return fmt.Errorf("resolving database user: %w", err)
	}
	c.Database.User = user

	return nil
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Database.PoolSize <= 0 {
		return fmt.Errorf("database pool size must be positive")
	}
	if c.Database.MaxOverflow < 0 {
		return fmt.Errorf("database max overflow must not be negative")
	}
	if c.CORS.Enabled && len(c.CORS.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified when CORS is enabled")
	}
	if c.HTTPClient.MaxRetries < 0 {
		return fmt.Errorf("http client max retries must not be negative")
	}
	switch c.Logging.Output {
	case "stdout", "file", "both":
	default:
		return fmt.Errorf("invalid logging output: %q", c.Logging.Output)
	}
	return nil
}

// IsProduction reports whether the resolved environment is production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Default returns the built-in configuration, the bottom layer of resolution.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "restmold",
			Environment: "development",
			Debug:       false,
			Version:     "dev",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  30 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "",
			Name:            "restmold",
			SSLMode:         "disable",
			PoolSize:        5,
			MaxOverflow:     10,
			PoolTimeout:     15 * time.Second,
			ConnMaxLifetime: 15 * time.Minute,
			HealthCheck:     time.Minute,
			MigrateOnStart:  false,
		},
		CORS: CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     100,
			Burst:   50,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "stdout",
			FilePath: "logs/app.log",
		},
		HTTPClient: HTTPClientConfig{
			Timeout:         30 * time.Second,
			MaxRetries:      3,
			RetryBackoff:    500 * time.Millisecond,
			MaxIdleConns:    100,
			IdleConnTimeout: 90 * time.Second,
		},
		Secrets: SecretsConfig{
			Dir:  "",
			File: "",
		},
	}
}
