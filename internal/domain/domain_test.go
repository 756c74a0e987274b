package domain

import (
	"testing"
	"time"
)

// ─── Task ID Derivation ─────────────────────────────────────────────────────

func TestDeriveTaskID_Deterministic(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := DeriveTaskID("commit", "alice", at, 1)
	b := DeriveTaskID("commit", "alice", at, 1)
	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("ID length = %d, want 64 hex chars", len(a))
	}
}

func TestDeriveTaskID_NonceDisambiguates(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := DeriveTaskID("commit", "alice", at, 1)
	b := DeriveTaskID("commit", "alice", at, 2)
	if a == b {
		t.Error("identical request in same time quantum must get distinct ID via nonce")
	}
}

func TestDeriveTaskID_DistinctSenders(t *testing.T) {
	at := time.Now()
	if DeriveTaskID("c", "alice", at, 0) == DeriveTaskID("c", "bob", at, 0) {
		t.Error("different requesters produced the same task ID")
	}
}

// ─── Task State ─────────────────────────────────────────────────────────────

func TestTask_IsTerminal(t *testing.T) {
	cases := []struct {
		state TaskState
		want  bool
	}{
		{TaskPending, false},
		{TaskCompleted, true},
		{TaskRejected, true},
		{TaskCancelled, true},
	}
	for _, c := range cases {
		task := Task{State: c.state}
		if task.IsTerminal() != c.want {
			t.Errorf("IsTerminal(%s) = %v, want %v", c.state, !c.want, c.want)
		}
	}
}

// ─── Operator Eligibility ───────────────────────────────────────────────────

func TestOperator_Eligible(t *testing.T) {
	op := Operator{ID: "op-1", Stake: 100_000, Registered: true}

	if !op.Eligible(100_000) {
		t.Error("operator at exactly minimum stake should be eligible")
	}
	if op.Eligible(100_001) {
		t.Error("operator below minimum stake should not be eligible")
	}

	op.Registered = false
	if op.Eligible(1) {
		t.Error("unregistered operator should never be eligible")
	}
}

// ─── Amount Formatting ──────────────────────────────────────────────────────

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		micro int64
		want  string
	}{
		{0, "0.000000"},
		{2_000, "0.002000"},
		{100_000, "0.100000"},
		{1_000_000, "1.000000"},
		{1_500_000, "1.500000"},
	}
	for _, c := range cases {
		if got := FormatAmount(c.micro); got != c.want {
			t.Errorf("FormatAmount(%d) = %s, want %s", c.micro, got, c.want)
		}
	}
}
