// Package config loads flowctl configuration from a YAML file overlaid with
// environment variables (optionally read from a .env file).
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/flowstudio-go/graph/store"
)

// Environment variables that override the YAML file.
const (
	EnvDispatchURL   = "FLOWCTL_DISPATCH_URL"
	EnvDispatchToken = "FLOWCTL_DISPATCH_TOKEN"
	EnvStoreDriver   = "FLOWCTL_STORE_DRIVER"
	EnvStoreDSN      = "FLOWCTL_STORE_DSN"
	EnvAppID         = "FLOWCTL_APP_ID"
	EnvLogFormat     = "FLOWCTL_LOG_FORMAT"
	EnvHistoryDepth  = "FLOWCTL_HISTORY_CAPACITY"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverRedis  = "redis"
)

// Config is the complete flowctl configuration.
type Config struct {
	AppID    string         `yaml:"app_id"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Store    StoreConfig    `yaml:"store"`
	History  HistoryConfig  `yaml:"history"`
	Log      LogConfig      `yaml:"log"`
}

// DispatchConfig locates the service that executes debug steps.
type DispatchConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`

	// Attempts per step, counting the first. 1 disables retries.
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// StoreConfig selects the version store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// HistoryConfig tunes the undo/redo manager.
type HistoryConfig struct {
	Capacity   int           `yaml:"capacity"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// LogConfig controls event output.
type LogConfig struct {
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file or env is present.
func Default() Config {
	return Config{
		AppID:    "default",
		Dispatch: DispatchConfig{Timeout: 60 * time.Second, MaxAttempts: 1, RetryBackoff: 500 * time.Millisecond},
		Store:    StoreConfig{Driver: DriverSQLite, DSN: "./flows.db"},
		History:  HistoryConfig{Capacity: 100},
		Log:      LogConfig{Format: "text"},
	}
}

// Load reads path (skipped when empty), loads envFile into the process
// environment when it exists, applies environment overrides and validates.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		EnvDispatchURL:   &c.Dispatch.URL,
		EnvDispatchToken: &c.Dispatch.Token,
		EnvStoreDriver:   &c.Store.Driver,
		EnvStoreDSN:      &c.Store.DSN,
		EnvAppID:         &c.AppID,
		EnvLogFormat:     &c.Log.Format,
	}
	for name, dst := range overrides {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv(EnvHistoryDepth); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHistoryDepth, err)
		}
		c.History.Capacity = n
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.AppID == "" {
		return errors.New("config: app_id is required")
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverMySQL, DriverRedis:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.History.Capacity < 1 {
		return errors.New("config: history.capacity must be at least 1")
	}
	if c.Dispatch.MaxAttempts < 1 {
		return errors.New("config: dispatch.max_attempts must be at least 1")
	}
	if c.History.RetryDelay < 0 || c.Dispatch.Timeout < 0 || c.Dispatch.RetryBackoff < 0 {
		return errors.New("config: durations must not be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// OpenStore opens the configured version store.
func (c Config) OpenStore(ctx context.Context) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch c.Store.Driver {
	case DriverMemory:
		return store.NewMemStore(), nil
	case DriverSQLite:
		s, err = openStore(store.NewSQLiteStore(c.Store.DSN))
	case DriverMySQL:
		s, err = openStore(store.NewMySQLStore(c.Store.DSN))
	case DriverRedis:
		s, err = openStore(store.NewRedisStore(ctx, c.Store.DSN))
	default:
		err = fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return s, err
}

// openStore keeps a failed constructor's nil pointer out of the interface.
func openStore[S store.Store](s S, err error) (store.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
