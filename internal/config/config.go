// Package config loads the server binary's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config for cmd/dbserver. Defaults are provided via struct tags.
type Config struct {
	// DBPath is the SQLite file. ENV: ADK_MCP_DB_PATH
	DBPath string `env:"ADK_MCP_DB_PATH,default=adk_local_mcp.db"`
	// Seed creates and fills the sample tables when DBPath does not exist yet.
	Seed bool `env:"ADK_MCP_SEED,default=true"`

	// LogFile receives JSON logs; "-" logs to stderr. Stdout is never used.
	LogFile  string `env:"ADK_MCP_LOG_FILE,default=mcp_server_activity.log"`
	LogLevel string `env:"ADK_MCP_LOG_LEVEL,default=info"`

	MaxFrameBytes int           `env:"ADK_MCP_MAX_FRAME_BYTES,default=4194304"`
	Pipelining    bool          `env:"ADK_MCP_PIPELINING,default=false"`
	MaxInFlight   int           `env:"ADK_MCP_MAX_IN_FLIGHT,default=8"`
	CallTimeout   time.Duration `env:"ADK_MCP_CALL_TIMEOUT,default=0s"`

	// RedisAddr selects the Redis call journal when set. ENV: REDIS_ADDR
	RedisAddr     string `env:"REDIS_ADDR"`
	JournalKey    string `env:"ADK_MCP_JOURNAL_KEY,default=adk-mcp:journal"`
	JournalMaxLen int64  `env:"ADK_MCP_JOURNAL_MAXLEN,default=10000"`
}

// Load decodes Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("ADK_MCP_DB_PATH must not be empty"))
	}
	if c.MaxFrameBytes <= 0 {
		errs = append(errs, fmt.Errorf("ADK_MCP_MAX_FRAME_BYTES must be positive, got %d", c.MaxFrameBytes))
	}
	if c.MaxInFlight <= 0 {
		errs = append(errs, fmt.Errorf("ADK_MCP_MAX_IN_FLIGHT must be positive, got %d", c.MaxInFlight))
	}
	if c.CallTimeout < 0 {
		errs = append(errs, fmt.Errorf("ADK_MCP_CALL_TIMEOUT must not be negative, got %s", c.CallTimeout))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Level parses LogLevel (debug, info, warn, error).
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("ADK_MCP_LOG_LEVEL: %w", err)
	}
	return l, nil
}
