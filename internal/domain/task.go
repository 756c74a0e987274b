// Package domain holds the core protocol types.
// A Task is a funded unit of off-chain computation that flows through:
// request → escrow → proof submission → verification → settlement.
package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// TaskState tracks the task lifecycle.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskCompleted TaskState = "COMPLETED"
	TaskRejected  TaskState = "REJECTED"
	TaskCancelled TaskState = "CANCELLED"
)

// Task is a unit of requested off-chain work with an escrowed reward.
type Task struct {
	ID               string    `json:"id"`
	Requester        string    `json:"requester"`
	InputCommitment  string    `json:"input_commitment"` // SHA-256 of the input data
	Complexity       int64     `json:"complexity"`       // Input byte length; drives the reward
	Reward           int64     `json:"reward"`           // Escrowed at creation, immutable
	State            TaskState `json:"state"`
	AssignedOperator string    `json:"assigned_operator,omitempty"` // Set on acceptance
	ResultHash       string    `json:"result_hash,omitempty"`       // Set on acceptance
	Nonce            uint64    `json:"nonce"`                       // Per-requester, part of ID derivation
	CreatedAt        time.Time `json:"created_at"`
	CompletedAt      time.Time `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the task has reached a final state.
func (t *Task) IsTerminal() bool {
	return t.State == TaskCompleted || t.State == TaskRejected || t.State == TaskCancelled
}

// Duration returns how long the task took from creation to settlement
// (0 if not yet settled).
func (t *Task) Duration() time.Duration {
	if t.CompletedAt.IsZero() {
		return 0
	}
	return t.CompletedAt.Sub(t.CreatedAt)
}

// DeriveTaskID computes the collision-resistant task identifier:
// SHA-256 over (input commitment, requester, creation time, per-requester
// nonce). The nonce disambiguates identical requests from the same sender
// landing in the same time quantum.
func DeriveTaskID(inputCommitment, requester string, createdAt time.Time, nonce uint64) string {
	h := sha256.New()
	h.Write([]byte(inputCommitment))
	h.Write([]byte(requester))

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(createdAt.UnixNano()))
	binary.BigEndian.PutUint64(buf[8:], nonce)
	h.Write(buf[:])

	return hex.EncodeToString(h.Sum(nil))
}

// CommitInput returns the hex SHA-256 commitment of raw input data.
func CommitInput(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}
