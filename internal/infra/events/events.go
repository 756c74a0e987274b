// Package events records and broadcasts protocol state transitions.
//
// Every transition is written to the append-only event log before it is
// fanned out to live subscribers, so the persisted log is the source of
// truth and the broadcast is best-effort. Slow subscribers are dropped
// rather than allowed to stall settlement.
package events

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coproc-network/coproc/internal/domain"
	"github.com/coproc-network/coproc/internal/infra/sqlite"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind is unsubscribed.
const subscriberBuffer = 64

// Emitter persists events and fans them out to subscribers.
type Emitter struct {
	db *sqlite.DB

	mu   sync.Mutex
	subs map[chan domain.Event]struct{}
}

// NewEmitter creates an event emitter backed by the given database.
func NewEmitter(db *sqlite.DB) *Emitter {
	return &Emitter{db: db, subs: make(map[chan domain.Event]struct{})}
}

// Emit assigns the event an ID and timestamp, appends it to the log, and
// broadcasts it. A persistence failure is logged but never propagated;
// event emission must not fail the state transition it describes.
func (e *Emitter) Emit(ev domain.Event) {
	ev.ID = uuid.NewString()
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	if err := e.db.InsertEvent(ev); err != nil {
		log.Printf("[events] append %s failed: %v", ev.Type, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber stalled; cut it loose.
			delete(e.subs, ch)
			close(ch)
		}
	}
}

// Subscribe registers a live event listener. The caller must drain the
// channel and call the returned cancel function when done.
func (e *Emitter) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subs[ch]; ok {
			delete(e.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Recent returns persisted events newest first, optionally filtered by type
// or task ID ("" for no filter).
func (e *Emitter) Recent(evType domain.EventType, taskID string, limit int) ([]domain.Event, error) {
	return e.db.ListEvents(evType, taskID, limit)
}

// Subscribers reports the current live listener count.
func (e *Emitter) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}
