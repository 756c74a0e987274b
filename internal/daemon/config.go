// Package daemon manages the co-processor daemon lifecycle and
// configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	API       APIConfig       `toml:"api"`
	Economics EconomicsConfig `toml:"economics"`
	Verifier  VerifierConfig  `toml:"verifier"`
	Lifecycle LifecycleConfig `toml:"lifecycle"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging"`
}

// NodeConfig identifies this node.
type NodeConfig struct {
	ID      string `toml:"id"`
	DataDir string `toml:"data_dir"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	AdminToken string `toml:"admin_token"` // Empty disables the admin surface
}

// EconomicsConfig sets the protocol economics in micro-units.
type EconomicsConfig struct {
	MinStake   int64 `toml:"min_stake"`
	BaseReward int64 `toml:"base_reward"`
}

// VerifierConfig selects and configures the proof gateway.
type VerifierConfig struct {
	Mode             string `toml:"mode"` // permissive | delegated | groth16
	URL              string `toml:"url"`  // Delegated verifier base URL
	VerifyingKeyPath string `toml:"verifying_key_path"`
}

// LifecycleConfig tunes the task state machine.
type LifecycleConfig struct {
	RejectPolicy string `toml:"reject_policy"` // retry | terminate
}

// LedgerConfig seeds the in-process ledger. Genesis balances are minted at
// startup so demo deployments have funded accounts; a chain-backed adapter
// ignores this section.
type LedgerConfig struct {
	Genesis map[string]int64 `toml:"genesis"` // account -> micro-units
}

// TelemetryConfig controls observability endpoints.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	home := coprocHome()
	return Config{
		Node: NodeConfig{
			DataDir: home,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8460,
		},
		Economics: EconomicsConfig{
			MinStake:   100_000, // 0.1 native units
			BaseReward: 1_000,   // 0.001 native units
		},
		Verifier: VerifierConfig{
			Mode: "permissive",
		},
		Lifecycle: LifecycleConfig{
			RejectPolicy: "retry",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(home, "coproc.log"),
		},
	}
}

// LoadConfig reads config from ~/.coproc/config.toml, falling back to
// defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(coprocHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.Economics.MinStake <= 0 {
		return fmt.Errorf("economics.min_stake must be positive")
	}
	if c.Economics.BaseReward <= 0 {
		return fmt.Errorf("economics.base_reward must be positive")
	}
	switch c.Verifier.Mode {
	case "", "permissive":
	case "delegated":
		if c.Verifier.URL == "" {
			return fmt.Errorf("verifier.url is required in delegated mode")
		}
	case "groth16":
		if c.Verifier.VerifyingKeyPath == "" {
			return fmt.Errorf("verifier.verifying_key_path is required in groth16 mode")
		}
	default:
		return fmt.Errorf("unknown verifier.mode %q", c.Verifier.Mode)
	}
	switch c.Lifecycle.RejectPolicy {
	case "", "retry", "terminate":
	default:
		return fmt.Errorf("unknown lifecycle.reject_policy %q", c.Lifecycle.RejectPolicy)
	}
	for account, amount := range c.Ledger.Genesis {
		if amount <= 0 {
			return fmt.Errorf("ledger.genesis balance for %q must be positive, got %d", account, amount)
		}
	}
	return nil
}

// SaveConfig writes the config to ~/.coproc/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(coprocHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// coprocHome returns the data directory.
func coprocHome() string {
	if env := os.Getenv("COPROC_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".coproc")
}

// Home is exported for use by other packages.
func Home() string {
	return coprocHome()
}
