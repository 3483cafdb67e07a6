package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if err := LowResourceConfig().Validate(); err != nil {
		t.Fatalf("low resource config invalid: %v", err)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.yaml")
	data := []byte(`
server:
  addr: ":9090"
storage:
  driver: memory
  save_key: slot1
game:
  autosave_interval: 30s
  max_tick_seconds: 5
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Storage.Driver != DriverMemory || cfg.Storage.SaveKey != "slot1" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Game.AutosaveInterval != 30*time.Second || cfg.Game.MaxTickSeconds != 5 {
		t.Errorf("game values not applied: %+v", cfg.Game)
	}
	if cfg.Game.TickInterval != DefaultConfig().Game.TickInterval {
		t.Errorf("expected untouched tick interval to keep default, got %v", cfg.Game.TickInterval)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"COOKIE_STORAGE_DRIVER":    "postgres",
		"COOKIE_DATABASE_URL":      "postgres://localhost/cookies?sslmode=disable",
		"COOKIE_AUTOSAVE_INTERVAL": "2m",
	}
	cfg := DefaultConfig()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.Storage.Driver != DriverPostgres || cfg.Game.AutosaveInterval != 2*time.Minute {
		t.Errorf("env not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Driver = "mongo"
	cfg.Game.MaxTickSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}

	cfg = DefaultConfig()
	cfg.Storage.Driver = DriverPostgres
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}
