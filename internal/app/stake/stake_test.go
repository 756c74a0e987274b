package stake

import (
	"context"
	"errors"
	"testing"

	"github.com/coproc-network/coproc/internal/domain"
	"github.com/coproc-network/coproc/internal/infra/events"
	"github.com/coproc-network/coproc/internal/infra/ledger"
	"github.com/coproc-network/coproc/internal/infra/sqlite"
)

const testMinStake = 100_000 // 0.1 native units

func newTestRegistry(t *testing.T) (*Registry, *ledger.Local) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	l := ledger.NewLocal()
	l.Mint("op-1", 1_000_000)
	l.Mint("op-2", 1_000_000)
	return NewRegistry(db, l, events.NewEmitter(db), testMinStake), l
}

func TestRegistry_Register(t *testing.T) {
	r, l := newTestRegistry(t)
	ctx := context.Background()

	op, err := r.Register(ctx, "op-1", testMinStake)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if op.Reputation != domain.BaselineReputation {
		t.Errorf("reputation = %d, want %d", op.Reputation, domain.BaselineReputation)
	}

	// Stake actually moved into the vault
	vault, _ := l.Balance(ctx, ledger.StakeVault)
	if vault != testMinStake {
		t.Errorf("stake vault = %d, want %d", vault, testMinStake)
	}
}

func TestRegistry_Register_Twice(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	r.Register(ctx, "op-1", testMinStake)
	_, err := r.Register(ctx, "op-1", testMinStake)
	if !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Errorf("second Register() error = %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegistry_Register_BelowMinimum(t *testing.T) {
	r, l := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Register(ctx, "op-1", testMinStake-1)
	if !errors.Is(err, domain.ErrInsufficientStake) {
		t.Errorf("Register() error = %v, want ErrInsufficientStake", err)
	}

	// Nothing moved
	vault, _ := l.Balance(ctx, ledger.StakeVault)
	if vault != 0 {
		t.Errorf("stake vault = %d, want 0 after failed registration", vault)
	}
}

func TestRegistry_Register_TransferFails(t *testing.T) {
	r, l := newTestRegistry(t)
	ctx := context.Background()

	l.FailNextTransfer(domain.ErrTransferFailed)
	if _, err := r.Register(ctx, "op-1", testMinStake); err == nil {
		t.Fatal("Register() succeeded despite transfer failure")
	}

	// No operator record was created
	if _, err := r.Get(ctx, "op-1"); !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("Get() after failed register = %v, want ErrNotRegistered", err)
	}
}

func TestRegistry_Slash(t *testing.T) {
	r, l := newTestRegistry(t)
	ctx := context.Background()

	r.Register(ctx, "op-1", 500_000)
	op, err := r.Slash(ctx, "op-1", 200_000, "double submission")
	if err != nil {
		t.Fatalf("Slash() error: %v", err)
	}
	if op.Stake != 300_000 {
		t.Errorf("stake = %d, want 300000", op.Stake)
	}
	if op.Reputation != domain.BaselineReputation-SlashReputationPenalty {
		t.Errorf("reputation = %d, want %d", op.Reputation, domain.BaselineReputation-SlashReputationPenalty)
	}

	treasury, _ := l.Balance(ctx, ledger.Treasury)
	if treasury != 200_000 {
		t.Errorf("treasury = %d, want 200000", treasury)
	}
}

func TestRegistry_Slash_ExceedsStake(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	r.Register(ctx, "op-1", testMinStake)
	_, err := r.Slash(ctx, "op-1", testMinStake+1, "test")
	if !errors.Is(err, domain.ErrInsufficientStakeToSlash) {
		t.Errorf("Slash() error = %v, want ErrInsufficientStakeToSlash", err)
	}

	// Stake untouched and never clamped
	op, _ := r.Get(ctx, "op-1")
	if op.Stake != testMinStake {
		t.Errorf("stake = %d, want %d", op.Stake, testMinStake)
	}
}

func TestRegistry_Slash_Unknown(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Slash(context.Background(), "ghost", 1, "test")
	if !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("Slash() error = %v, want ErrNotRegistered", err)
	}
}

func TestRegistry_Slash_ReputationFloor(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	r.Register(ctx, "op-1", 900_000)
	for i := 0; i < 12; i++ {
		if _, err := r.Slash(ctx, "op-1", 1_000, "repeat offender"); err != nil {
			t.Fatalf("Slash() #%d error: %v", i, err)
		}
	}

	op, _ := r.Get(ctx, "op-1")
	if op.Reputation != 0 {
		t.Errorf("reputation = %d, want floor 0", op.Reputation)
	}
}

func TestRegistry_IsEligible(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if ok, _ := r.IsEligible(ctx, "op-1"); ok {
		t.Error("unregistered operator reported eligible")
	}

	r.Register(ctx, "op-1", testMinStake)
	if ok, _ := r.IsEligible(ctx, "op-1"); !ok {
		t.Error("registered operator at minimum stake reported ineligible")
	}

	// Slashing below the minimum revokes eligibility without deregistering
	r.Slash(ctx, "op-1", 1, "dip below minimum")
	if ok, _ := r.IsEligible(ctx, "op-1"); ok {
		t.Error("operator below minimum stake reported eligible")
	}
	if _, err := r.Get(ctx, "op-1"); err != nil {
		t.Errorf("slashed operator disappeared: %v", err)
	}
}

func TestRegistry_BumpReputation(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	r.Register(ctx, "op-1", testMinStake)
	for i := 0; i < domain.MaxReputation; i++ {
		r.BumpReputation(ctx, "op-1")
	}

	op, _ := r.Get(ctx, "op-1")
	if op.Reputation != domain.MaxReputation {
		t.Errorf("reputation = %d, want cap %d", op.Reputation, domain.MaxReputation)
	}
	if op.TasksCompleted != int64(domain.MaxReputation) {
		t.Errorf("tasks completed = %d, want %d", op.TasksCompleted, domain.MaxReputation)
	}
}
