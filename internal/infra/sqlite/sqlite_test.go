package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/coproc-network/coproc/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestTask(id string) domain.Task {
	return domain.Task{
		ID:              id,
		Requester:       "alice",
		InputCommitment: "deadbeef",
		Complexity:      150,
		Reward:          2000,
		State:           domain.TaskPending,
		Nonce:           0,
		CreatedAt:       time.Now(),
	}
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_Migrates(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

// ─── Task Repository ────────────────────────────────────────────────────────

func TestInsertTask_Duplicate(t *testing.T) {
	db := newTestDB(t)

	task := newTestTask("task-1")
	if err := db.InsertTask(task); err != nil {
		t.Fatalf("InsertTask() error: %v", err)
	}
	if err := db.InsertTask(task); !errors.Is(err, domain.ErrDuplicateTask) {
		t.Errorf("InsertTask() duplicate error = %v, want ErrDuplicateTask", err)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetTask("missing")
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("GetTask() error = %v, want ErrTaskNotFound", err)
	}
}

func TestGetTask_RoundTrip(t *testing.T) {
	db := newTestDB(t)

	task := newTestTask("task-1")
	if err := db.InsertTask(task); err != nil {
		t.Fatalf("InsertTask() error: %v", err)
	}

	got, err := db.GetTask("task-1")
	if err != nil {
		t.Fatalf("GetTask() error: %v", err)
	}
	if got.Requester != "alice" || got.Complexity != 150 || got.Reward != 2000 {
		t.Errorf("GetTask() = %+v, fields mismatch", got)
	}
	if got.State != domain.TaskPending {
		t.Errorf("state = %s, want PENDING", got.State)
	}
	if got.AssignedOperator != "" {
		t.Errorf("assigned operator = %q, want empty", got.AssignedOperator)
	}
}

func TestTransitionTask_FirstWins(t *testing.T) {
	db := newTestDB(t)

	if err := db.InsertTask(newTestTask("task-1")); err != nil {
		t.Fatalf("InsertTask() error: %v", err)
	}

	err := db.TransitionTask("task-1", domain.TaskCompleted, "op-1", "abc123", time.Now())
	if err != nil {
		t.Fatalf("TransitionTask() error: %v", err)
	}

	// Second transition must observe the terminal state.
	err = db.TransitionTask("task-1", domain.TaskCompleted, "op-2", "def456", time.Now())
	if !errors.Is(err, domain.ErrTaskAlreadyCompleted) {
		t.Errorf("second TransitionTask() error = %v, want ErrTaskAlreadyCompleted", err)
	}

	got, _ := db.GetTask("task-1")
	if got.AssignedOperator != "op-1" || got.ResultHash != "abc123" {
		t.Errorf("winner overwritten: operator=%s result=%s", got.AssignedOperator, got.ResultHash)
	}
}

func TestTransitionTask_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.TransitionTask("missing", domain.TaskCompleted, "op-1", "abc", time.Now())
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("TransitionTask() error = %v, want ErrTaskNotFound", err)
	}
}

func TestReopenTask(t *testing.T) {
	db := newTestDB(t)

	if err := db.InsertTask(newTestTask("task-1")); err != nil {
		t.Fatalf("InsertTask() error: %v", err)
	}
	if err := db.TransitionTask("task-1", domain.TaskCompleted, "op-1", "abc123", time.Now()); err != nil {
		t.Fatalf("TransitionTask() error: %v", err)
	}

	if err := db.ReopenTask("task-1"); err != nil {
		t.Fatalf("ReopenTask() error: %v", err)
	}
	got, _ := db.GetTask("task-1")
	if got.State != domain.TaskPending || got.AssignedOperator != "" || got.ResultHash != "" {
		t.Errorf("reopened task = %+v, want PENDING with settlement fields cleared", got)
	}

	// Reopening a pending task is a no-op, a missing one is an error
	if err := db.ReopenTask("task-1"); err != nil {
		t.Errorf("ReopenTask() on pending task error = %v, want nil", err)
	}
	if err := db.ReopenTask("missing"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("ReopenTask() on missing task error = %v, want ErrTaskNotFound", err)
	}
}

func TestListTasks_StateFilter(t *testing.T) {
	db := newTestDB(t)

	db.InsertTask(newTestTask("task-1"))
	db.InsertTask(newTestTask("task-2"))
	db.TransitionTask("task-2", domain.TaskCancelled, "", "", time.Now())

	pending, err := db.ListTasks(domain.TaskPending, 10)
	if err != nil {
		t.Fatalf("ListTasks() error: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "task-1" {
		t.Errorf("pending tasks = %+v, want [task-1]", pending)
	}

	all, _ := db.ListTasks("", 10)
	if len(all) != 2 {
		t.Errorf("all tasks = %d, want 2", len(all))
	}
}

func TestNextNonce_Monotonic(t *testing.T) {
	db := newTestDB(t)

	for want := uint64(0); want < 3; want++ {
		got, err := db.NextNonce("alice")
		if err != nil {
			t.Fatalf("NextNonce() error: %v", err)
		}
		if got != want {
			t.Errorf("NextNonce() = %d, want %d", got, want)
		}
	}

	// Independent counter per requester
	got, _ := db.NextNonce("bob")
	if got != 0 {
		t.Errorf("NextNonce(bob) = %d, want 0", got)
	}
}

// ─── Operator Repository ────────────────────────────────────────────────────

func TestUpsertOperator_RoundTrip(t *testing.T) {
	db := newTestDB(t)

	op := domain.Operator{
		ID: "op-1", Stake: 100_000, Reputation: 100, Registered: true,
		RegisteredAt: time.Now(), LastActiveAt: time.Now(),
	}
	if err := db.UpsertOperator(op); err != nil {
		t.Fatalf("UpsertOperator() error: %v", err)
	}

	got, err := db.GetOperator("op-1")
	if err != nil {
		t.Fatalf("GetOperator() error: %v", err)
	}
	if got.Stake != 100_000 || !got.Registered {
		t.Errorf("GetOperator() = %+v, fields mismatch", got)
	}

	op.Stake = 50_000
	op.TasksCompleted = 3
	if err := db.UpsertOperator(op); err != nil {
		t.Fatalf("UpsertOperator() update error: %v", err)
	}
	got, _ = db.GetOperator("op-1")
	if got.Stake != 50_000 || got.TasksCompleted != 3 {
		t.Errorf("updated operator = %+v, fields mismatch", got)
	}
}

func TestGetOperator_NotRegistered(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetOperator("missing")
	if !errors.Is(err, domain.ErrNotRegistered) {
		t.Errorf("GetOperator() error = %v, want ErrNotRegistered", err)
	}
}

func TestListOperators_StakeOrder(t *testing.T) {
	db := newTestDB(t)

	now := time.Now()
	db.UpsertOperator(domain.Operator{ID: "small", Stake: 100, RegisteredAt: now, LastActiveAt: now})
	db.UpsertOperator(domain.Operator{ID: "large", Stake: 900, RegisteredAt: now, LastActiveAt: now})

	ops, err := db.ListOperators()
	if err != nil {
		t.Fatalf("ListOperators() error: %v", err)
	}
	if len(ops) != 2 || ops[0].ID != "large" {
		t.Errorf("ListOperators() order = %+v, want large first", ops)
	}
}

// ─── Settlement Ledger ──────────────────────────────────────────────────────

func TestInsertLedgerEntry(t *testing.T) {
	db := newTestDB(t)

	id, err := db.InsertLedgerEntry(domain.LedgerEntry{
		Timestamp: time.Now(), Type: domain.TxEscrow, EntryType: domain.EntryCredit,
		Account: "escrow_vault", Amount: 2000, TaskID: "task-1", Balance: 2000,
	})
	if err != nil {
		t.Fatalf("InsertLedgerEntry() error: %v", err)
	}
	if id < 1 {
		t.Errorf("id = %d, want >= 1", id)
	}
}

func TestAccountBalance_Empty(t *testing.T) {
	db := newTestDB(t)

	bal, err := db.AccountBalance("escrow_vault")
	if err != nil {
		t.Fatalf("AccountBalance() error: %v", err)
	}
	if bal != 0 {
		t.Errorf("balance = %d, want 0", bal)
	}
}

func TestAccountBalance_LatestEntry(t *testing.T) {
	db := newTestDB(t)

	db.InsertLedgerEntry(domain.LedgerEntry{
		Timestamp: time.Now(), Type: domain.TxEscrow, EntryType: domain.EntryCredit,
		Account: "escrow_vault", Amount: 2000, Balance: 2000,
	})
	db.InsertLedgerEntry(domain.LedgerEntry{
		Timestamp: time.Now(), Type: domain.TxReward, EntryType: domain.EntryDebit,
		Account: "escrow_vault", Amount: 2000, Balance: 0,
	})

	bal, _ := db.AccountBalance("escrow_vault")
	if bal != 0 {
		t.Errorf("balance = %d, want 0", bal)
	}
}

func TestLedgerSums_Balanced(t *testing.T) {
	db := newTestDB(t)

	db.InsertLedgerEntry(domain.LedgerEntry{
		Timestamp: time.Now(), Type: domain.TxEscrow, EntryType: domain.EntryDebit,
		Account: "alice", Amount: 2000, Balance: -2000,
	})
	db.InsertLedgerEntry(domain.LedgerEntry{
		Timestamp: time.Now(), Type: domain.TxEscrow, EntryType: domain.EntryCredit,
		Account: "escrow_vault", Amount: 2000, Balance: 2000,
	})

	debits, credits, err := db.LedgerSums()
	if err != nil {
		t.Fatalf("LedgerSums() error: %v", err)
	}
	if debits != credits {
		t.Errorf("debits = %d, credits = %d, want equal", debits, credits)
	}
}

// ─── Event Log ──────────────────────────────────────────────────────────────

func TestInsertEvent_List(t *testing.T) {
	db := newTestDB(t)

	err := db.InsertEvent(domain.Event{
		ID: "ev-1", Type: domain.EventComputationRequested,
		TaskID: "task-1", Requester: "alice", Complexity: 150, Amount: 2000,
		At: time.Now(),
	})
	if err != nil {
		t.Fatalf("InsertEvent() error: %v", err)
	}
	db.InsertEvent(domain.Event{
		ID: "ev-2", Type: domain.EventRewardPaid,
		TaskID: "task-1", Operator: "op-1", Amount: 2000, At: time.Now(),
	})

	byType, err := db.ListEvents(domain.EventRewardPaid, "", 10)
	if err != nil {
		t.Fatalf("ListEvents() error: %v", err)
	}
	if len(byType) != 1 || byType[0].Operator != "op-1" {
		t.Errorf("ListEvents(REWARD_PAID) = %+v, want one entry for op-1", byType)
	}

	byTask, _ := db.ListEvents("", "task-1", 10)
	if len(byTask) != 2 {
		t.Errorf("ListEvents(task-1) = %d entries, want 2", len(byTask))
	}
}
