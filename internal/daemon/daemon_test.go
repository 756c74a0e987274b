package daemon

import (
	"context"
	"testing"
)

// A daemon wired from config with genesis balances must be able to fund
// real operations out of the box.
func TestNewWithConfig_GenesisFundsOperations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Node.DataDir = t.TempDir()
	cfg.Ledger.Genesis = map[string]int64{"op-1": 150_000}

	d, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	defer d.Close()

	bal, err := d.Ledger.Balance(context.Background(), "op-1")
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if bal != 150_000 {
		t.Fatalf("genesis balance = %d, want 150000", bal)
	}

	if _, err := d.Operators.Register(context.Background(), "op-1", cfg.Economics.MinStake); err != nil {
		t.Fatalf("Register() with genesis funds error: %v", err)
	}
}
