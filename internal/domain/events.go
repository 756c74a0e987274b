package domain

import "time"

// EventType identifies a protocol state transition notification.
type EventType string

const (
	EventComputationRequested EventType = "COMPUTATION_REQUESTED"
	EventProofSubmitted       EventType = "PROOF_SUBMITTED"
	EventProofRejected        EventType = "PROOF_REJECTED"
	EventRewardPaid           EventType = "REWARD_PAID"
	EventRewardClaimed        EventType = "REWARD_CLAIMED"
	EventOperatorRegistered   EventType = "OPERATOR_REGISTERED"
	EventOperatorSlashed      EventType = "OPERATOR_SLASHED"
	EventTaskCancelled        EventType = "TASK_CANCELLED"
)

// Event is an append-only record of a protocol state transition, produced
// for external consumers (dashboards, auditors). Fields not relevant for a
// given type are left zero.
type Event struct {
	ID         string    `json:"id"` // UUID
	Type       EventType `json:"type"`
	TaskID     string    `json:"task_id,omitempty"`
	Requester  string    `json:"requester,omitempty"`
	Operator   string    `json:"operator,omitempty"`
	Complexity int64     `json:"complexity,omitempty"`
	Amount     int64     `json:"amount,omitempty"` // Reward, stake, or slash amount
	ResultHash string    `json:"result_hash,omitempty"`
	Reason     string    `json:"reason,omitempty"` // Human-readable, preserved for audit
	At         time.Time `json:"at"`
}
