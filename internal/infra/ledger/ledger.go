// Package ledger abstracts the external execution environment that holds
// native-asset balances. The protocol core never moves funds directly; it
// asks the adapter for atomic transfers and treats any failure as a failure
// of the enclosing operation, never as implicit success.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coproc-network/coproc/internal/domain"
)

// Well-known custody accounts. Operator and requester accounts are their
// identity strings.
const (
	EscrowVault = "escrow_vault" // Task-scoped custody pending outcome
	StakeVault  = "stake_vault"  // Operator collateral
	Treasury    = "treasury"     // Slashed stake and protocol fees
)

// Adapter is the boundary to the external ledger environment: atomic
// transfers with an explicit success/failure signal and a monotonic clock.
type Adapter interface {
	// Transfer moves amount from one account to another, atomically.
	// Returns domain.ErrInsufficientFunds if the source balance is short.
	Transfer(ctx context.Context, from, to string, amount int64) error

	// Balance returns the current balance of an account.
	Balance(ctx context.Context, account string) (int64, error)

	// Now returns the ledger's notion of current time.
	Now() time.Time
}

// Local is an in-process account book for demo deployments and tests.
// It satisfies the same atomicity contract a real ledger provides: a
// transfer either fully applies or not at all.
type Local struct {
	mu       sync.Mutex
	balances map[string]int64

	// failNext, when set, makes the next Transfer fail with the given
	// error. Used by tests to exercise rollback paths.
	failNext error
}

// NewLocal creates an empty local ledger.
func NewLocal() *Local {
	return &Local{balances: make(map[string]int64)}
}

// Mint credits an account out of thin air. Test and bootstrap use only;
// a real ledger has no such primitive.
func (l *Local) Mint(account string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

// FailNextTransfer arms a one-shot transfer failure.
func (l *Local) FailNextTransfer(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = err
}

// Transfer implements Adapter.
func (l *Local) Transfer(ctx context.Context, from, to string, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive, got %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failNext != nil {
		err := l.failNext
		l.failNext = nil
		return err
	}

	if l.balances[from] < amount {
		return fmt.Errorf("%w: account %s has %d, need %d",
			domain.ErrInsufficientFunds, from, l.balances[from], amount)
	}

	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// Balance implements Adapter.
func (l *Local) Balance(ctx context.Context, account string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

// Now implements Adapter.
func (l *Local) Now() time.Time { return time.Now() }
