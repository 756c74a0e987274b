package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/coproc-network/coproc/internal/domain"
	"github.com/coproc-network/coproc/internal/infra/ledger"
	"github.com/coproc-network/coproc/internal/infra/sqlite"
)

const testBaseReward = 1_000

func newTestEngine(t *testing.T) (*Engine, *ledger.Local) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	l := ledger.NewLocal()
	l.Mint("alice", 1_000_000)
	return NewEngine(db, l, testBaseReward), l
}

func TestComputeReward(t *testing.T) {
	e, _ := newTestEngine(t)

	cases := []struct {
		complexity int64
		want       int64
	}{
		{0, 1_000},
		{50, 1_000},   // Below the first step
		{99, 1_000},
		{100, 2_000},  // Doubles at 100
		{150, 2_000},
		{199, 2_000},
		{200, 3_000},  // Triples at 200
	}
	for _, c := range cases {
		if got := e.ComputeReward(c.complexity); got != c.want {
			t.Errorf("ComputeReward(%d) = %d, want %d", c.complexity, got, c.want)
		}
	}
}

func TestSetBaseReward(t *testing.T) {
	e, _ := newTestEngine(t)

	if err := e.SetBaseReward(5_000); err != nil {
		t.Fatalf("SetBaseReward() error: %v", err)
	}
	if got := e.ComputeReward(100); got != 10_000 {
		t.Errorf("ComputeReward(100) after change = %d, want 10000", got)
	}

	if err := e.SetBaseReward(0); err == nil {
		t.Error("SetBaseReward(0) succeeded, want error")
	}
}

func TestEscrow_MovesPayment(t *testing.T) {
	e, l := newTestEngine(t)
	ctx := context.Background()

	if err := e.Escrow(ctx, "task-1", "alice", 2_000); err != nil {
		t.Fatalf("Escrow() error: %v", err)
	}

	vault, _ := l.Balance(ctx, ledger.EscrowVault)
	alice, _ := l.Balance(ctx, "alice")
	if vault != 2_000 || alice != 998_000 {
		t.Errorf("balances vault=%d alice=%d, want 2000/998000", vault, alice)
	}
}

func TestEscrow_InsufficientFunds(t *testing.T) {
	e, l := newTestEngine(t)
	ctx := context.Background()

	err := e.Escrow(ctx, "task-1", "pauper", 2_000)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("Escrow() error = %v, want ErrInsufficientFunds", err)
	}

	vault, _ := l.Balance(ctx, ledger.EscrowVault)
	if vault != 0 {
		t.Errorf("vault = %d, want 0 after failed escrow", vault)
	}
}

func TestRelease_AccruesWithoutTransfer(t *testing.T) {
	e, l := newTestEngine(t)
	ctx := context.Background()

	e.Escrow(ctx, "task-1", "alice", 2_000)
	if err := e.Release(ctx, "task-1", "op-1", 2_000); err != nil {
		t.Fatalf("Release() error: %v", err)
	}

	accrued, err := e.Accrued(ctx, "op-1")
	if err != nil {
		t.Fatalf("Accrued() error: %v", err)
	}
	if accrued != 2_000 {
		t.Errorf("accrued = %d, want 2000", accrued)
	}

	// Funds remain in the vault until claimed
	vault, _ := l.Balance(ctx, ledger.EscrowVault)
	op, _ := l.Balance(ctx, "op-1")
	if vault != 2_000 || op != 0 {
		t.Errorf("balances vault=%d op=%d, want 2000/0", vault, op)
	}
}

// Two tasks settling for the same operator release concurrently; the book
// must count every reward. Running balances written from stale reads would
// silently drop accruals.
func TestRelease_ConcurrentSameOperator(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			taskID := fmt.Sprintf("task-%d", i)
			e.Escrow(ctx, taskID, "alice", 1)
			if err := e.Release(ctx, taskID, "op-1", 1); err != nil {
				t.Errorf("Release(%s) error: %v", taskID, err)
			}
		}(i)
	}
	wg.Wait()

	accrued, err := e.Accrued(ctx, "op-1")
	if err != nil {
		t.Fatalf("Accrued() error: %v", err)
	}
	if accrued != n {
		t.Errorf("accrued = %d, want %d", accrued, n)
	}
}

func TestRefund_ReturnsEscrow(t *testing.T) {
	e, l := newTestEngine(t)
	ctx := context.Background()

	e.Escrow(ctx, "task-1", "alice", 2_000)
	if err := e.Refund(ctx, "task-1", "alice", 2_000); err != nil {
		t.Fatalf("Refund() error: %v", err)
	}

	alice, _ := l.Balance(ctx, "alice")
	vault, _ := l.Balance(ctx, ledger.EscrowVault)
	if alice != 1_000_000 || vault != 0 {
		t.Errorf("balances alice=%d vault=%d, want 1000000/0", alice, vault)
	}
}

func TestClaim_TransfersAndZeroes(t *testing.T) {
	e, l := newTestEngine(t)
	ctx := context.Background()

	e.Escrow(ctx, "task-1", "alice", 2_000)
	e.Release(ctx, "task-1", "op-1", 2_000)

	amount, err := e.Claim(ctx, "op-1")
	if err != nil {
		t.Fatalf("Claim() error: %v", err)
	}
	if amount != 2_000 {
		t.Errorf("claimed = %d, want 2000", amount)
	}

	op, _ := l.Balance(ctx, "op-1")
	if op != 2_000 {
		t.Errorf("operator balance = %d, want 2000", op)
	}

	// Second claim finds nothing
	if _, err := e.Claim(ctx, "op-1"); !errors.Is(err, domain.ErrNoRewardsToClaim) {
		t.Errorf("second Claim() error = %v, want ErrNoRewardsToClaim", err)
	}
}

func TestClaim_Empty(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Claim(context.Background(), "op-1")
	if !errors.Is(err, domain.ErrNoRewardsToClaim) {
		t.Errorf("Claim() error = %v, want ErrNoRewardsToClaim", err)
	}
}

func TestClaim_TransferFailureRestoresAccrual(t *testing.T) {
	e, l := newTestEngine(t)
	ctx := context.Background()

	e.Escrow(ctx, "task-1", "alice", 2_000)
	e.Release(ctx, "task-1", "op-1", 2_000)

	l.FailNextTransfer(domain.ErrTransferFailed)
	if _, err := e.Claim(ctx, "op-1"); err == nil {
		t.Fatal("Claim() succeeded despite transfer failure")
	}

	// Accrual fully restored; a retry succeeds
	accrued, _ := e.Accrued(ctx, "op-1")
	if accrued != 2_000 {
		t.Errorf("accrued after failed claim = %d, want 2000", accrued)
	}
	amount, err := e.Claim(ctx, "op-1")
	if err != nil || amount != 2_000 {
		t.Errorf("retry Claim() = %d, %v, want 2000, nil", amount, err)
	}
}

// Concurrent claims for one operator: exactly one succeeds, the rest see
// ErrNoRewardsToClaim, and exactly one payment leaves the vault.
func TestClaim_Concurrent(t *testing.T) {
	e, l := newTestEngine(t)
	ctx := context.Background()

	e.Escrow(ctx, "task-1", "alice", 2_000)
	e.Release(ctx, "task-1", "op-1", 2_000)

	const claimers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var paid, empty int

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Claim(ctx, "op-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				paid++
			case errors.Is(err, domain.ErrNoRewardsToClaim):
				empty++
			default:
				t.Errorf("unexpected Claim() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if paid != 1 || empty != claimers-1 {
		t.Errorf("paid=%d empty=%d, want 1/%d", paid, empty, claimers-1)
	}
	op, _ := l.Balance(ctx, "op-1")
	if op != 2_000 {
		t.Errorf("operator balance = %d, want exactly 2000", op)
	}
}
