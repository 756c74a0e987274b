// Package lifecycle drives tasks through their state machine. It is the
// only component that performs cross-store transitions: requests create
// escrow and a task, proof submissions settle them, cancellations refund
// them. Stores never call each other; everything flows through here.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/coproc-network/coproc/internal/app/settlement"
	"github.com/coproc-network/coproc/internal/app/stake"
	"github.com/coproc-network/coproc/internal/domain"
	"github.com/coproc-network/coproc/internal/infra/events"
	"github.com/coproc-network/coproc/internal/infra/metrics"
	"github.com/coproc-network/coproc/internal/infra/taskstore"
	"github.com/coproc-network/coproc/internal/infra/verify"
)

// RejectPolicy controls what happens to a task when a proof is rejected.
type RejectPolicy string

const (
	// RejectRetry leaves the task PENDING so another operator can try.
	RejectRetry RejectPolicy = "retry"
	// RejectTerminate moves the task to REJECTED and refunds the escrow.
	RejectTerminate RejectPolicy = "terminate"
)

// Settlement is the escrow surface the controller drives. The concrete
// engine satisfies it; tests substitute failing implementations to
// exercise the compensation paths.
type Settlement interface {
	ComputeReward(complexity int64) int64
	Escrow(ctx context.Context, taskID, requester string, amount int64) error
	Release(ctx context.Context, taskID, operatorID string, amount int64) error
	Refund(ctx context.Context, taskID, requester string, amount int64) error
	Claim(ctx context.Context, operatorID string) (int64, error)
}

var _ Settlement = (*settlement.Engine)(nil)

// Controller owns the task state machine.
type Controller struct {
	tasks      *taskstore.Store
	operators  *stake.Registry
	settlement Settlement
	gateway    verify.Gateway
	emitter    *events.Emitter
	policy     RejectPolicy
}

// NewController wires the lifecycle controller.
func NewController(tasks *taskstore.Store, operators *stake.Registry, s Settlement,
	g verify.Gateway, em *events.Emitter, policy RejectPolicy) *Controller {
	if policy == "" {
		policy = RejectRetry
	}
	return &Controller{
		tasks:      tasks,
		operators:  operators,
		settlement: s,
		gateway:    g,
		emitter:    em,
		policy:     policy,
	}
}

// RequestComputation accepts a computation request, escrows the reward, and
// creates the PENDING task.
//
// The payment must cover the computed reward; only the reward amount is
// escrowed, any surplus stays with the requester. Escrow happens before the
// task becomes visible, and a failed create refunds the escrow, so there is
// no state in which funds are locked without a task or a task exists
// without funds.
func (c *Controller) RequestComputation(ctx context.Context, requester string, input []byte, payment int64) (*domain.Task, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("input must not be empty")
	}

	complexity := int64(len(input))
	reward := c.settlement.ComputeReward(complexity)
	if payment < reward {
		return nil, fmt.Errorf("%w: offered %s, need %s", domain.ErrInsufficientPayment,
			domain.FormatAmount(payment), domain.FormatAmount(reward))
	}

	nonce, err := c.tasks.NextNonce(requester)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	commitment := domain.CommitInput(input)
	task := domain.Task{
		ID:              domain.DeriveTaskID(commitment, requester, now, nonce),
		Requester:       requester,
		InputCommitment: commitment,
		Complexity:      complexity,
		Reward:          reward,
		State:           domain.TaskPending,
		Nonce:           nonce,
		CreatedAt:       now,
	}

	if err := c.settlement.Escrow(ctx, task.ID, requester, reward); err != nil {
		return nil, err
	}
	if err := c.tasks.Create(task); err != nil {
		// Unwind so no funds are orphaned
		if rerr := c.settlement.Refund(ctx, task.ID, requester, reward); rerr != nil {
			log.Printf("[lifecycle] orphaned escrow for task %s: %v", task.ID, rerr)
		}
		return nil, err
	}

	metrics.TasksRequested.Inc()
	metrics.TasksPending.Inc()
	c.emitter.Emit(domain.Event{
		Type:       domain.EventComputationRequested,
		TaskID:     task.ID,
		Requester:  requester,
		Complexity: complexity,
		Amount:     reward,
	})
	return &task, nil
}

// SubmitProof processes an operator's claim on a task.
//
// Order matters for funds-safety: eligibility and task state are checked,
// the gateway verdict is obtained, and only then does any state change. On
// acceptance the compare-and-swap completion runs first; reputation and
// reward release follow only if this call won the race.
func (c *Controller) SubmitProof(ctx context.Context, operatorID, taskID string, sub verify.Submission) (*domain.Task, error) {
	eligible, err := c.operators.IsEligible(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, domain.ErrNotEligibleOperator
	}

	var settled *domain.Task
	err = c.tasks.WithLock(taskID, func() error {
		task, err := c.tasks.Get(taskID)
		if err != nil {
			return err
		}
		if task.IsTerminal() {
			return domain.ErrTaskAlreadyCompleted
		}

		start := time.Now()
		ok, verr := c.gateway.Verify(ctx, *task, sub)
		metrics.VerifyLatency.WithLabelValues(c.gateway.Name()).Observe(time.Since(start).Seconds())

		if !ok {
			// An unreachable verifier is not a verdict: the task stays
			// untouched and the operator can retry once it recovers.
			if errors.Is(verr, domain.ErrVerifierUnavailable) {
				metrics.ProofVerifications.WithLabelValues(c.gateway.Name(), "unavailable").Inc()
				return verr
			}
			metrics.ProofVerifications.WithLabelValues(c.gateway.Name(), "rejected").Inc()
			return c.reject(ctx, task, operatorID, verr)
		}
		metrics.ProofVerifications.WithLabelValues(c.gateway.Name(), "accepted").Inc()

		now := time.Now()
		if err := c.tasks.MarkCompleted(taskID, operatorID, sub.ResultHash, now); err != nil {
			return err
		}
		if err := c.settlement.Release(ctx, taskID, operatorID, task.Reward); err != nil {
			// The completion committed but the reward did not: reopen the
			// task so the escrow stays accounted to a PENDING task rather
			// than stranded against a settled one.
			if rerr := c.tasks.Reopen(taskID); rerr != nil {
				log.Printf("[lifecycle] reopen %s after failed release: %v", taskID, rerr)
			}
			return fmt.Errorf("release reward: %w", err)
		}
		if err := c.operators.BumpReputation(ctx, operatorID); err != nil {
			log.Printf("[lifecycle] reputation bump for %s failed: %v", operatorID, err)
		}

		metrics.TasksPending.Dec()
		metrics.TasksSettled.WithLabelValues(string(domain.TaskCompleted)).Inc()
		metrics.TaskLifetime.Observe(now.Sub(task.CreatedAt).Seconds())
		c.emitter.Emit(domain.Event{
			Type:       domain.EventProofSubmitted,
			TaskID:     taskID,
			Operator:   operatorID,
			ResultHash: sub.ResultHash,
		})
		c.emitter.Emit(domain.Event{
			Type:     domain.EventRewardPaid,
			TaskID:   taskID,
			Operator: operatorID,
			Amount:   task.Reward,
		})

		task.State = domain.TaskCompleted
		task.AssignedOperator = operatorID
		task.ResultHash = sub.ResultHash
		task.CompletedAt = now
		settled = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// reject handles a failed verification under the configured policy. Runs
// inside the task lock.
func (c *Controller) reject(ctx context.Context, task *domain.Task, operatorID string, verr error) error {
	reason := "proof rejected"
	if verr != nil {
		reason = verr.Error()
	}
	c.emitter.Emit(domain.Event{
		Type:     domain.EventProofRejected,
		TaskID:   task.ID,
		Operator: operatorID,
		Reason:   reason,
	})

	if c.policy == RejectTerminate {
		now := time.Now()
		if err := c.tasks.MarkRejected(task.ID, now); err != nil {
			return err
		}
		if err := c.settlement.Refund(ctx, task.ID, task.Requester, task.Reward); err != nil {
			if rerr := c.tasks.Reopen(task.ID); rerr != nil {
				log.Printf("[lifecycle] reopen %s after failed refund: %v", task.ID, rerr)
			}
			return fmt.Errorf("refund escrow: %w", err)
		}
		metrics.TasksPending.Dec()
		metrics.TasksSettled.WithLabelValues(string(domain.TaskRejected)).Inc()
		metrics.TaskLifetime.Observe(now.Sub(task.CreatedAt).Seconds())
	}

	switch {
	case verr == nil:
		return domain.ErrProofRejected
	case errors.Is(verr, domain.ErrProofRejected):
		return verr
	default:
		return fmt.Errorf("%w: %v", domain.ErrProofRejected, verr)
	}
}

// CancelTask lets the requester withdraw a still-PENDING task and recover
// the full escrow.
func (c *Controller) CancelTask(ctx context.Context, requester, taskID string) (*domain.Task, error) {
	var cancelled *domain.Task
	err := c.tasks.WithLock(taskID, func() error {
		task, err := c.tasks.Get(taskID)
		if err != nil {
			return err
		}
		if task.Requester != requester {
			return domain.ErrUnauthorized
		}
		if task.IsTerminal() {
			return domain.ErrTaskNotCancellable
		}

		now := time.Now()
		if err := c.tasks.MarkCancelled(taskID, now); err != nil {
			return err
		}
		if err := c.settlement.Refund(ctx, taskID, requester, task.Reward); err != nil {
			if rerr := c.tasks.Reopen(taskID); rerr != nil {
				log.Printf("[lifecycle] reopen %s after failed refund: %v", taskID, rerr)
			}
			return fmt.Errorf("refund escrow: %w", err)
		}

		metrics.TasksPending.Dec()
		metrics.TasksSettled.WithLabelValues(string(domain.TaskCancelled)).Inc()
		metrics.TaskLifetime.Observe(now.Sub(task.CreatedAt).Seconds())
		c.emitter.Emit(domain.Event{
			Type:      domain.EventTaskCancelled,
			TaskID:    taskID,
			Requester: requester,
			Amount:    task.Reward,
		})

		task.State = domain.TaskCancelled
		task.CompletedAt = now
		cancelled = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// Benchmark asks the verification gateway for its proving-cost estimate.
// Only the delegated gateway can answer; other modes report unavailable.
func (c *Controller) Benchmark(ctx context.Context, proofHash string) (*verify.BenchmarkResult, error) {
	d, ok := c.gateway.(*verify.Delegated)
	if !ok {
		return nil, fmt.Errorf("%w: %s gateway has no benchmark support",
			domain.ErrVerifierUnavailable, c.gateway.Name())
	}
	return d.Benchmark(ctx, proofHash)
}

// ClaimRewards transfers the operator's accrued rewards out and emits the
// claim event.
func (c *Controller) ClaimRewards(ctx context.Context, operatorID string) (int64, error) {
	amount, err := c.settlement.Claim(ctx, operatorID)
	if err != nil {
		return 0, err
	}
	c.emitter.Emit(domain.Event{
		Type:     domain.EventRewardClaimed,
		Operator: operatorID,
		Amount:   amount,
	})
	return amount, nil
}
