// Package settlement implements the escrow and reward economics.
//
// Money enters escrow when a computation is requested and leaves exactly
// once: released to the winning operator's accrual on acceptance, or
// refunded to the requester on rejection-terminal or cancellation. Released
// rewards sit in a per-operator accrual account until the operator claims
// them, at which point the funds move out through the external ledger
// adapter. Every movement writes a matched DEBIT/CREDIT pair to the
// settlement ledger; equal sums across the ledger are the audit invariant.
package settlement

import (
	"context"
	"fmt"
	"sync"

	"github.com/coproc-network/coproc/internal/domain"
	"github.com/coproc-network/coproc/internal/infra/ledger"
	"github.com/coproc-network/coproc/internal/infra/metrics"
	"github.com/coproc-network/coproc/internal/infra/sqlite"
)

// Engine manages escrow, reward accrual, and claims.
type Engine struct {
	db     *sqlite.DB
	ledger ledger.Adapter

	rewardMu   sync.RWMutex
	baseReward int64

	claimMu sync.Mutex
	claims  map[string]*sync.Mutex // Per-operator claim locks
}

// NewEngine creates the settlement engine. baseReward is in micro-units.
func NewEngine(db *sqlite.DB, l ledger.Adapter, baseReward int64) *Engine {
	return &Engine{
		db:         db,
		ledger:     l,
		baseReward: baseReward,
		claims:     make(map[string]*sync.Mutex),
	}
}

// accrualAccount is the book account holding an operator's unclaimed
// rewards.
func accrualAccount(operatorID string) string {
	return "rewards:" + operatorID
}

// ComputeReward prices a task by complexity. The formula is a step
// function: the reward doubles at complexity 100, triples at 200, and so
// on. Pricing policy is a deployment decision; only this function encodes
// it.
func (e *Engine) ComputeReward(complexity int64) int64 {
	e.rewardMu.RLock()
	defer e.rewardMu.RUnlock()
	return e.baseReward * (1 + complexity/100)
}

// BaseReward returns the current base reward in micro-units.
func (e *Engine) BaseReward() int64 {
	e.rewardMu.RLock()
	defer e.rewardMu.RUnlock()
	return e.baseReward
}

// SetBaseReward changes the pricing base. Admin operation; applies to
// tasks created after the change.
func (e *Engine) SetBaseReward(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("base reward must be positive, got %d", amount)
	}
	e.rewardMu.Lock()
	defer e.rewardMu.Unlock()
	e.baseReward = amount
	return nil
}

// Escrow moves the requester's payment into the escrow vault. Called
// before the task exists; a failure here means no task is ever created.
func (e *Engine) Escrow(ctx context.Context, taskID, requester string, amount int64) error {
	if err := e.ledger.Transfer(ctx, requester, ledger.EscrowVault, amount); err != nil {
		return fmt.Errorf("escrow payment: %w", err)
	}
	if err := e.db.RecordDoubleEntry(e.ledger.Now(), domain.TxEscrow, requester, ledger.EscrowVault,
		amount, taskID, fmt.Sprintf("escrow for task %s", taskID)); err != nil {
		return err
	}
	metrics.EscrowLocked.Add(float64(amount))
	return nil
}

// Release credits the task's escrowed reward to the operator's accrual
// balance. No external transfer happens here; the funds stay in the vault
// until the operator claims. The caller guarantees exactly-once per task by
// invoking this only on the winning PENDING→COMPLETED transition.
func (e *Engine) Release(ctx context.Context, taskID, operatorID string, amount int64) error {
	if err := e.db.RecordDoubleEntry(e.ledger.Now(), domain.TxReward, ledger.EscrowVault,
		accrualAccount(operatorID), amount, taskID,
		fmt.Sprintf("reward for task %s", taskID)); err != nil {
		return err
	}
	metrics.EscrowLocked.Sub(float64(amount))
	metrics.RewardsPaid.Add(float64(amount))
	return nil
}

// Refund returns the task's escrow to the requester on rejection-terminal
// or cancellation.
func (e *Engine) Refund(ctx context.Context, taskID, requester string, amount int64) error {
	if err := e.ledger.Transfer(ctx, ledger.EscrowVault, requester, amount); err != nil {
		return fmt.Errorf("refund escrow: %w", err)
	}
	if err := e.db.RecordDoubleEntry(e.ledger.Now(), domain.TxRefund, ledger.EscrowVault, requester,
		amount, taskID, fmt.Sprintf("refund for task %s", taskID)); err != nil {
		return err
	}
	metrics.EscrowLocked.Sub(float64(amount))
	metrics.RefundsIssued.Add(float64(amount))
	return nil
}

// Accrued returns the operator's unclaimed reward balance.
func (e *Engine) Accrued(_ context.Context, operatorID string) (int64, error) {
	return e.db.AccountBalance(accrualAccount(operatorID))
}

// Claim transfers the operator's full accrued balance out of the vault.
//
// The accrual is zeroed in the book before the external transfer runs; if
// the transfer fails the zeroing is reversed with a compensating entry.
// The per-operator lock makes the read-zero-transfer sequence atomic, so
// concurrent claims cannot double-pay.
func (e *Engine) Claim(ctx context.Context, operatorID string) (int64, error) {
	lock := e.claimLock(operatorID)
	lock.Lock()
	defer lock.Unlock()

	amount, err := e.Accrued(ctx, operatorID)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, domain.ErrNoRewardsToClaim
	}

	// Zero the accrual first
	if err := e.db.RecordDoubleEntry(e.ledger.Now(), domain.TxClaim, accrualAccount(operatorID),
		operatorID, amount, "", "reward claim"); err != nil {
		return 0, err
	}

	if err := e.ledger.Transfer(ctx, ledger.EscrowVault, operatorID, amount); err != nil {
		// Restore the accrual so nothing is lost
		if rerr := e.db.RecordDoubleEntry(e.ledger.Now(), domain.TxClaim, operatorID,
			accrualAccount(operatorID), amount, "", "reward claim reversal"); rerr != nil {
			return 0, fmt.Errorf("claim transfer failed (%v) and reversal failed: %w", err, rerr)
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}

	metrics.RewardsClaimed.Add(float64(amount))
	return amount, nil
}

// Withdraw moves treasury funds (accumulated slashes) to a recipient.
// Admin operation.
func (e *Engine) Withdraw(ctx context.Context, recipient string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("withdraw amount must be positive, got %d", amount)
	}
	if err := e.ledger.Transfer(ctx, ledger.Treasury, recipient, amount); err != nil {
		return fmt.Errorf("treasury withdrawal: %w", err)
	}
	return e.db.RecordDoubleEntry(e.ledger.Now(), domain.TxWithdraw, ledger.Treasury, recipient,
		amount, "", fmt.Sprintf("treasury withdrawal to %s", recipient))
}

func (e *Engine) claimLock(operatorID string) *sync.Mutex {
	e.claimMu.Lock()
	defer e.claimMu.Unlock()
	l, ok := e.claims[operatorID]
	if !ok {
		l = &sync.Mutex{}
		e.claims[operatorID] = l
	}
	return l
}
