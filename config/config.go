/*
config.go - Process configuration

PURPOSE:
  Holds everything the server needs at startup: listen address, log level,
  which store backend to open, Realtime Database credentials, JWT secret and
  CORS origins. The payout rules themselves are NOT here; they live in the
  tier config document inside the store (see factory/config.go).

LAYERING (low -> high precedence):
  1. New() defaults
  2. YAML file named by SALES_CONFIG
  3. Environment variables with prefix SALES_ (SALES_RTDB_URL -> rtdb_url)
  4. Command-line flags applied by cmd/server

  A .env file in the working directory is loaded into the environment first
  (LoadDotEnv). Variables already set in the environment win over .env.

SEE ALSO:
  - loader.go: Load
  - cmd/server/main.go: Flags and wiring
*/
package config

import (
	"errors"
	"time"

	"github.com/warp/sales-engine/resilience"
	"github.com/warp/sales-engine/store/rtdb"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRTDB   = "rtdb"
	BackendMemory = "memory"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the backend: sqlite, rtdb or memory.
	Store string `koanf:"store"`

	// SQLitePath is the database file. ":memory:" keeps it in RAM.
	SQLitePath string `koanf:"sqlite_path"`

	RTDBURL     string        `koanf:"rtdb_url"`
	RTDBAuth    string        `koanf:"rtdb_auth"`
	RTDBTimeout time.Duration `koanf:"rtdb_timeout"`
	RTDBRetries int           `koanf:"rtdb_retries"`
	RTDBBackoff time.Duration `koanf:"rtdb_backoff"`

	// JWTSecret verifies HS256 bearer tokens. Empty disables auth, which is
	// only meant for local runs.
	JWTSecret string `koanf:"jwt_secret"`

	// CORSOrigins lists allowed origins. Comma-separated in the environment.
	CORSOrigins []string `koanf:"cors_origins"`

	// Scenarios mounts the demo data loaders under /api/scenarios.
	Scenarios bool `koanf:"scenarios"`

	// Timezone is written into the starter tier config when the store has
	// none yet.
	Timezone string `koanf:"timezone"`
}

// New returns the defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		Addr:        ":8080",
		Store:       BackendSQLite,
		SQLitePath:  "sales.db",
		RTDBTimeout: 10 * time.Second,
		RTDBRetries: 3,
		RTDBBackoff: 200 * time.Millisecond,
		CORSOrigins: []string{"*"},
		Timezone:    "America/Sao_Paulo",
	}
}

// AuthEnabled reports whether bearer tokens are checked.
func (c *Config) AuthEnabled() bool { return c.JWTSecret != "" }

// RTDB builds the REST client configuration.
func (c *Config) RTDB() rtdb.Config {
	return rtdb.Config{
		BaseURL:   c.RTDBURL,
		AuthToken: c.RTDBAuth,
		Timeout:   c.RTDBTimeout,
		Resilience: resilience.Config{
			MaxRetries:     c.RTDBRetries,
			InitialBackoff: c.RTDBBackoff,
		},
	}
}
