// Package health provides periodic health checks: database liveness, the
// settlement ledger's double-entry invariant, escrow conservation, and
// data directory sanity.
package health

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coproc-network/coproc/internal/domain"
	"github.com/coproc-network/coproc/internal/infra/ledger"
	"github.com/coproc-network/coproc/internal/infra/sqlite"
)

// Check defines a single health check.
type Check struct {
	Name    string
	CheckFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker creates a health checker with the standard checks.
func NewChecker(db *sqlite.DB, dataDir string) *Checker {
	return &Checker{
		interval: 60 * time.Second,
		checks: []Check{
			{
				Name: "sqlite",
				CheckFn: func(ctx context.Context) error {
					return db.Ping()
				},
			},
			{
				Name: "ledger_balance",
				CheckFn: func(ctx context.Context) error {
					return checkLedgerBalanced(db)
				},
			},
			{
				Name: "escrow_conservation",
				CheckFn: func(ctx context.Context) error {
					return checkEscrowConservation(db)
				},
			},
			{
				Name: "data_dir",
				CheckFn: func(ctx context.Context) error {
					return checkDataDir(dataDir)
				},
			},
		},
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Healthy = false
			s.Error = err.Error()
		} else {
			s.Healthy = true
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy reports whether all checks pass, with the failing detail if
// not.
func (c *Checker) IsHealthy() (bool, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var failures []string
	for _, s := range c.statuses {
		if !s.Healthy {
			failures = append(failures, fmt.Sprintf("%s: %s", s.Name, s.Error))
		}
	}
	if len(failures) > 0 {
		return false, strings.Join(failures, "; ")
	}
	return true, ""
}

// ─── Check Implementations ──────────────────────────────────────────────────

// checkLedgerBalanced verifies the double-entry invariant:
// SUM(debits) == SUM(credits) across the whole settlement ledger.
func checkLedgerBalanced(db *sqlite.DB) error {
	debits, credits, err := db.LedgerSums()
	if err != nil {
		return fmt.Errorf("ledger sums: %w", err)
	}
	if debits != credits {
		return fmt.Errorf("ledger imbalance: debits %d != credits %d", debits, credits)
	}
	return nil
}

// checkEscrowConservation verifies that the escrow vault's book balance
// equals the total reward of still-PENDING tasks. Settled tasks have
// released or refunded their escrow exactly once, so anything else in the
// vault is a leak.
func checkEscrowConservation(db *sqlite.DB) error {
	vault, err := db.AccountBalance(ledger.EscrowVault)
	if err != nil {
		return fmt.Errorf("vault balance: %w", err)
	}
	pending, err := db.SumRewards(domain.TaskPending)
	if err != nil {
		return fmt.Errorf("pending rewards: %w", err)
	}
	if vault != pending {
		return fmt.Errorf("escrow vault %d != pending rewards %d", vault, pending)
	}
	return nil
}

func checkDataDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
