// Package stake implements the operator registry: registration with a
// minimum stake, eligibility checks, reputation tracking, and slashing.
//
// Stake moves through the external ledger adapter into the stake vault on
// registration and from the vault to the treasury on slashing. The registry
// never mints or burns; every stake movement has a matched double entry in
// the settlement ledger.
package stake

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coproc-network/coproc/internal/domain"
	"github.com/coproc-network/coproc/internal/infra/events"
	"github.com/coproc-network/coproc/internal/infra/ledger"
	"github.com/coproc-network/coproc/internal/infra/metrics"
	"github.com/coproc-network/coproc/internal/infra/sqlite"
)

// SlashReputationPenalty is deducted from reputation on every slash,
// floored at zero.
const SlashReputationPenalty = 10

// Registry manages operator registration, stake, and reputation.
type Registry struct {
	db       *sqlite.DB
	ledger   ledger.Adapter
	emitter  *events.Emitter
	minStake int64

	mu sync.Mutex // Serializes register/slash/bump for one-writer discipline
}

// NewRegistry creates the operator registry. minStake is in micro-units.
func NewRegistry(db *sqlite.DB, l ledger.Adapter, em *events.Emitter, minStake int64) *Registry {
	return &Registry{db: db, ledger: l, emitter: em, minStake: minStake}
}

// MinStake returns the configured minimum stake in micro-units.
func (r *Registry) MinStake() int64 { return r.minStake }

// Register enrolls a new operator with the given stake. The stake transfer
// happens before the record is created; a failed transfer leaves no trace.
func (r *Registry) Register(ctx context.Context, operatorID string, stakeAmount int64) (*domain.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.GetOperator(operatorID); err == nil {
		return nil, domain.ErrAlreadyRegistered
	}
	if stakeAmount < r.minStake {
		return nil, fmt.Errorf("%w: %s < %s minimum", domain.ErrInsufficientStake,
			domain.FormatAmount(stakeAmount), domain.FormatAmount(r.minStake))
	}

	if err := r.ledger.Transfer(ctx, operatorID, ledger.StakeVault, stakeAmount); err != nil {
		return nil, fmt.Errorf("stake deposit: %w", err)
	}
	if err := r.db.RecordDoubleEntry(r.ledger.Now(), domain.TxStake, operatorID, ledger.StakeVault,
		stakeAmount, "", fmt.Sprintf("stake deposit by %s", operatorID)); err != nil {
		return nil, err
	}

	now := r.ledger.Now()
	op := domain.Operator{
		ID:           operatorID,
		Stake:        stakeAmount,
		Reputation:   domain.BaselineReputation,
		Registered:   true,
		RegisteredAt: now,
		LastActiveAt: now,
	}
	if err := r.db.UpsertOperator(op); err != nil {
		return nil, err
	}

	metrics.OperatorsRegistered.Inc()
	r.emitter.Emit(domain.Event{
		Type:     domain.EventOperatorRegistered,
		Operator: operatorID,
		Amount:   stakeAmount,
	})
	return &op, nil
}

// Slash confiscates part of an operator's stake to the treasury and docks
// reputation. The amount must not exceed the current stake; the operation
// fails rather than clamps.
func (r *Registry) Slash(ctx context.Context, operatorID string, amount int64, reason string) (*domain.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.db.GetOperator(operatorID)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("slash amount must be positive, got %d", amount)
	}
	if amount > op.Stake {
		return nil, fmt.Errorf("%w: %s > %s staked", domain.ErrInsufficientStakeToSlash,
			domain.FormatAmount(amount), domain.FormatAmount(op.Stake))
	}

	if err := r.ledger.Transfer(ctx, ledger.StakeVault, ledger.Treasury, amount); err != nil {
		return nil, fmt.Errorf("slash transfer: %w", err)
	}
	if err := r.db.RecordDoubleEntry(r.ledger.Now(), domain.TxSlash, ledger.StakeVault, ledger.Treasury,
		amount, "", fmt.Sprintf("slash %s: %s", operatorID, reason)); err != nil {
		return nil, err
	}

	op.Stake -= amount
	op.Reputation -= SlashReputationPenalty
	if op.Reputation < 0 {
		op.Reputation = 0
	}
	if err := r.db.UpsertOperator(*op); err != nil {
		return nil, err
	}

	metrics.StakeSlashed.Add(float64(amount))
	r.emitter.Emit(domain.Event{
		Type:     domain.EventOperatorSlashed,
		Operator: operatorID,
		Amount:   amount,
		Reason:   reason,
	})
	return op, nil
}

// IsEligible reports whether the operator may submit proofs: registered
// with stake at or above the minimum. Callers re-check at submission time
// because slashing can drop an operator below the bar at any point.
func (r *Registry) IsEligible(_ context.Context, operatorID string) (bool, error) {
	op, err := r.db.GetOperator(operatorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotRegistered) {
			return false, nil
		}
		return false, err
	}
	return op.Eligible(r.minStake), nil
}

// BumpReputation rewards a completed task: +1 reputation up to the cap,
// increments the completion counter, and refreshes last-active.
func (r *Registry) BumpReputation(_ context.Context, operatorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.db.GetOperator(operatorID)
	if err != nil {
		return err
	}
	if op.Reputation < domain.MaxReputation {
		op.Reputation++
	}
	op.TasksCompleted++
	op.LastActiveAt = r.ledger.Now()
	return r.db.UpsertOperator(*op)
}

// Get returns a single operator record.
func (r *Registry) Get(_ context.Context, operatorID string) (*domain.Operator, error) {
	return r.db.GetOperator(operatorID)
}

// List returns all operators, largest stake first.
func (r *Registry) List(_ context.Context) ([]domain.Operator, error) {
	return r.db.ListOperators()
}
