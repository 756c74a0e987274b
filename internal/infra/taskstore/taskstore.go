// Package taskstore provides the authoritative task repository with
// per-task serialization. The sqlite layer already guarantees that state
// transitions are atomic compare-and-swap updates; the lock added here
// extends that atomicity over the verify-then-settle window so that escrow
// movements and the state transition commit as one logical step.
package taskstore

import (
	"sync"
	"time"

	"github.com/coproc-network/coproc/internal/domain"
	"github.com/coproc-network/coproc/internal/infra/sqlite"
)

// Store is the task repository.
type Store struct {
	db *sqlite.DB

	mu    sync.Mutex
	locks map[string]*taskLock
}

// taskLock is reference-counted so entries can be reclaimed once no
// goroutine holds or waits on them.
type taskLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a task store backed by the given database.
func New(db *sqlite.DB) *Store {
	return &Store{db: db, locks: make(map[string]*taskLock)}
}

// Create persists a new task. Returns domain.ErrDuplicateTask when the
// identifier already exists.
func (s *Store) Create(task domain.Task) error {
	return s.db.InsertTask(task)
}

// Get retrieves a task by ID.
func (s *Store) Get(id string) (*domain.Task, error) {
	return s.db.GetTask(id)
}

// List returns tasks, optionally filtered by state (""), newest first.
func (s *Store) List(state domain.TaskState, limit int) ([]domain.Task, error) {
	return s.db.ListTasks(state, limit)
}

// Count returns the number of tasks in the given state ("" for all).
func (s *Store) Count(state domain.TaskState) (int64, error) {
	return s.db.CountTasks(state)
}

// NextNonce returns the per-requester monotonic counter used in task ID
// derivation.
func (s *Store) NextNonce(requester string) (uint64, error) {
	return s.db.NextNonce(requester)
}

// MarkCompleted transitions a PENDING task to COMPLETED, recording the
// winning operator and result hash. Exactly one caller succeeds per task.
func (s *Store) MarkCompleted(id, operator, resultHash string, at time.Time) error {
	return s.db.TransitionTask(id, domain.TaskCompleted, operator, resultHash, at)
}

// MarkRejected transitions a PENDING task to REJECTED.
func (s *Store) MarkRejected(id string, at time.Time) error {
	return s.db.TransitionTask(id, domain.TaskRejected, "", "", at)
}

// MarkCancelled transitions a PENDING task to CANCELLED.
func (s *Store) MarkCancelled(id string, at time.Time) error {
	return s.db.TransitionTask(id, domain.TaskCancelled, "", "", at)
}

// Reopen reverts a terminal task to PENDING. Used only as the compensating
// step when a settlement write failed after the transition committed; call
// it while holding the task's lock.
func (s *Store) Reopen(id string) error {
	return s.db.ReopenTask(id)
}

// WithLock runs fn while holding the task's lock. Concurrent submissions,
// cancellations, and settlement for the same task serialize here; different
// tasks proceed in parallel.
func (s *Store) WithLock(id string, fn func() error) error {
	l := s.acquire(id)
	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		s.release(id, l)
	}()
	return fn()
}

func (s *Store) acquire(id string) *taskLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &taskLock{}
		s.locks[id] = l
	}
	l.refs++
	return l
}

func (s *Store) release(id string, l *taskLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}
