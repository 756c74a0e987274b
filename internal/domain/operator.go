package domain

import "time"

// Reputation bounds. New operators start at the baseline; successful
// completions move the score up, slashing moves it down. The score never
// leaves [0, MaxReputation].
const (
	BaselineReputation = 100
	MaxReputation      = 200
)

// Operator is a staked participant eligible to fulfill tasks.
type Operator struct {
	ID             string    `json:"id"`
	Stake          int64     `json:"stake"`      // Collateral; register increases, slash decreases
	Reputation     int       `json:"reputation"` // Bounded [0, MaxReputation]
	TasksCompleted int64     `json:"tasks_completed"`
	Registered     bool      `json:"registered"`
	RegisteredAt   time.Time `json:"registered_at"`
	LastActiveAt   time.Time `json:"last_active_at,omitempty"`
}

// Eligible reports whether the operator may submit proofs given the
// current minimum stake. Re-checked at submission time, not just at
// registration: a slashed operator can fall below the bar without an
// explicit unregistration.
func (o *Operator) Eligible(minStake int64) bool {
	return o.Registered && o.Stake >= minStake
}
