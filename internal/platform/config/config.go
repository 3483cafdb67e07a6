// Package config holds runtime settings for the game server.
// Values come from a profile, an optional YAML file and COOKIE_* environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all tunable parameters.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Game    GameConfig    `yaml:"game"`
	Network NetworkConfig `yaml:"network"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig selects the persistence store.
type StorageConfig struct {
	Driver       string `yaml:"driver"`
	Path         string `yaml:"path"` // sqlite file
	DSN          string `yaml:"dsn"`  // postgres connection string
	SaveKey      string `yaml:"save_key"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	Journal      bool   `yaml:"journal"`
}

// GameConfig controls the engine loops.
type GameConfig struct {
	TickInterval     time.Duration `yaml:"tick_interval"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
	MaxTickSeconds   float64       `yaml:"max_tick_seconds"`
	HistorySize      int           `yaml:"history_size"`
}

// NetworkConfig controls WebSocket buffering and rate limits.
type NetworkConfig struct {
	BroadcastBuffer      int     `yaml:"broadcast_buffer"`
	ClientSendBuffer     int     `yaml:"client_send_buffer"`
	MaxMessagesPerSecond float64 `yaml:"max_messages_per_second"`
	MessageBurst         int     `yaml:"message_burst"`
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{
			Driver:       DriverSQLite,
			Path:         "data/cookies.db",
			SaveKey:      "cookieClickerSave",
			MaxOpenConns: numCPU * 2,
			MaxIdleConns: numCPU,
			Journal:      true,
		},
		Game: GameConfig{
			TickInterval:     time.Second / 60, // animation-frame cadence
			AutosaveInterval: time.Minute,
			MaxTickSeconds:   60,
			HistorySize:      512,
		},
		Network: NetworkConfig{
			BroadcastBuffer:      256,
			ClientSendBuffer:     64,
			MaxMessagesPerSecond: 30, // generous for fast clickers
			MessageBurst:         60,
		},
	}
}

// LowResourceConfig returns minimal settings for development and tests.
func LowResourceConfig() *Config {
	cfg := DefaultConfig()
	cfg.Storage.Driver = DriverMemory
	cfg.Storage.MaxOpenConns = 2
	cfg.Storage.MaxIdleConns = 1
	cfg.Storage.Journal = false
	cfg.Game.TickInterval = 100 * time.Millisecond
	cfg.Game.HistorySize = 64
	cfg.Network.BroadcastBuffer = 16
	cfg.Network.ClientSendBuffer = 8
	return cfg
}

// Load builds a config from defaults, the YAML file at path (if any) and the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	str("COOKIE_ADDR", &c.Server.Addr)
	str("COOKIE_STORAGE_DRIVER", &c.Storage.Driver)
	str("COOKIE_DB_PATH", &c.Storage.Path)
	str("COOKIE_DATABASE_URL", &c.Storage.DSN)
	str("COOKIE_SAVE_KEY", &c.Storage.SaveKey)
	if err := dur("COOKIE_TICK_INTERVAL", &c.Game.TickInterval); err != nil {
		return err
	}
	if err := dur("COOKIE_AUTOSAVE_INTERVAL", &c.Game.AutosaveInterval); err != nil {
		return err
	}
	if v, ok := lookup("COOKIE_MAX_TICK_SECONDS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid COOKIE_MAX_TICK_SECONDS: %w", err)
		}
		c.Game.MaxTickSeconds = f
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Storage.SaveKey == "" {
		errs = append(errs, errors.New("storage.save_key must not be empty"))
	}
	if c.Game.TickInterval <= 0 {
		errs = append(errs, errors.New("game.tick_interval must be positive"))
	}
	if c.Game.AutosaveInterval <= 0 {
		errs = append(errs, errors.New("game.autosave_interval must be positive"))
	}
	if c.Game.MaxTickSeconds <= 0 {
		errs = append(errs, errors.New("game.max_tick_seconds must be positive"))
	}
	if c.Network.MaxMessagesPerSecond <= 0 || c.Network.MessageBurst <= 0 {
		errs = append(errs, errors.New("network rate limit must be positive"))
	}
	return errors.Join(errs...)
}
