package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8460 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8460)
	}
	if cfg.Economics.MinStake != 100_000 {
		t.Errorf("Economics.MinStake = %d, want 100000", cfg.Economics.MinStake)
	}
	if cfg.Economics.BaseReward != 1_000 {
		t.Errorf("Economics.BaseReward = %d, want 1000", cfg.Economics.BaseReward)
	}
	if cfg.Verifier.Mode != "permissive" {
		t.Errorf("Verifier.Mode = %q, want permissive", cfg.Verifier.Mode)
	}
	if cfg.Lifecycle.RejectPolicy != "retry" {
		t.Errorf("Lifecycle.RejectPolicy = %q, want retry", cfg.Lifecycle.RejectPolicy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero min stake", func(c *Config) { c.Economics.MinStake = 0 }, true},
		{"negative base reward", func(c *Config) { c.Economics.BaseReward = -1 }, true},
		{"delegated without url", func(c *Config) { c.Verifier.Mode = "delegated" }, true},
		{"delegated with url", func(c *Config) {
			c.Verifier.Mode = "delegated"
			c.Verifier.URL = "http://verifier:9000"
		}, false},
		{"groth16 without key", func(c *Config) { c.Verifier.Mode = "groth16" }, true},
		{"unknown verifier", func(c *Config) { c.Verifier.Mode = "psychic" }, true},
		{"terminate policy", func(c *Config) { c.Lifecycle.RejectPolicy = "terminate" }, false},
		{"unknown policy", func(c *Config) { c.Lifecycle.RejectPolicy = "shrug" }, true},
		{"genesis balances", func(c *Config) {
			c.Ledger.Genesis = map[string]int64{"alice": 10_000_000}
		}, false},
		{"negative genesis balance", func(c *Config) {
			c.Ledger.Genesis = map[string]int64{"alice": -1}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_FileOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("COPROC_HOME", home)

	toml := []byte("[api]\nport = 9999\n\n[economics]\nbase_reward = 7000\n\n[ledger.genesis]\nalice = 10000000\n")
	if err := os.WriteFile(filepath.Join(home, "config.toml"), toml, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("API.Port = %d, want 9999 from file", cfg.API.Port)
	}
	if cfg.Economics.BaseReward != 7000 {
		t.Errorf("BaseReward = %d, want 7000 from file", cfg.Economics.BaseReward)
	}
	if cfg.Ledger.Genesis["alice"] != 10_000_000 {
		t.Errorf("Ledger.Genesis[alice] = %d, want 10000000 from file", cfg.Ledger.Genesis["alice"])
	}
	// Untouched fields keep defaults
	if cfg.Economics.MinStake != 100_000 {
		t.Errorf("MinStake = %d, want default retained", cfg.Economics.MinStake)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Setenv("COPROC_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Errorf("missing file should yield defaults")
	}
}
