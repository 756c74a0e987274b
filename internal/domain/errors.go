package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency. Every failure path
// in the protocol surfaces one of these named conditions, never a generic
// failure.

var (
	// Operator registration and staking
	ErrAlreadyRegistered        = errors.New("operator already registered")
	ErrNotRegistered            = errors.New("operator not registered")
	ErrInsufficientStake        = errors.New("stake below required minimum")
	ErrInsufficientStakeToSlash = errors.New("slash amount exceeds current stake")
	ErrNotEligibleOperator      = errors.New("operator not eligible to submit proofs")

	// Task lifecycle
	ErrDuplicateTask        = errors.New("task with this identifier already exists")
	ErrTaskNotFound         = errors.New("task not found")
	ErrTaskAlreadyCompleted = errors.New("task already settled")
	ErrTaskNotCancellable   = errors.New("task can no longer be cancelled")

	// Payments and settlement
	ErrInsufficientPayment = errors.New("payment below computed reward")
	ErrInsufficientFunds   = errors.New("insufficient funds for transfer")
	ErrNoRewardsToClaim    = errors.New("no accrued rewards to claim")
	ErrTransferFailed      = errors.New("external transfer failed")

	// Verification
	ErrEmptyProof          = errors.New("proof bytes are empty")
	ErrProofRejected       = errors.New("proof rejected")
	ErrVerifierUnavailable = errors.New("external verifier unavailable")

	// Administration
	ErrUnauthorized = errors.New("caller is not the administrative identity")
)
