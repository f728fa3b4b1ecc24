// Package question correlates outstanding blocking questions with the next
// inbound answer. Entries are matched oldest-first; by contract only one
// question is meaningfully outstanding system-wide (behavior with several
// is undefined and intentionally left that way).
package question

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"relay/pkg/protocol"
)

// Notifier delivers the question text to the chat transport. Production
// impl sends through the bridge; tests capture the text.
type Notifier func(ctx context.Context, text string) error

// pending is one outstanding question awaiting its answer.
type pending struct {
	id      string
	created time.Time
	answer  chan string
}

// Registry tracks outstanding questions.
//
// Thread-safe: the entry list is protected by a mutex. Each Ask suspends
// its own caller on a per-entry channel.
type Registry struct {
	notify Notifier

	mu      sync.Mutex
	entries []*pending

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// NewRegistry creates a Registry that delivers questions via notify.
// A nil notifier means questions are registered without outward delivery
// (useful in tests).
func NewRegistry(notify Notifier) *Registry {
	return &Registry{notify: notify, nowFunc: time.Now}
}

// Ask delivers the question and suspends until an answer arrives, the
// timeout elapses, or ctx is cancelled. Timeout removes the entry and
// returns TimeoutError; a matched answer resolves and removes it.
func (r *Registry) Ask(ctx context.Context, question string, timeout time.Duration) (string, error) {
	entry := &pending{
		id:      uuid.New().String(),
		created: r.nowFunc(),
		answer:  make(chan string, 1),
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()

	if r.notify != nil {
		if err := r.notify(ctx, question); err != nil {
			if !r.remove(entry.id) {
				return <-entry.answer, nil
			}
			return "", &protocol.BridgeUnavailableError{Reason: err.Error()}
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case text := <-entry.answer:
		return text, nil
	case <-timer.C:
		// Answer may have popped the entry between the timer firing and us
		// taking the lock. remove reporting the entry gone means the answer
		// is already buffered; returning TimeoutError there would silently
		// drop a consumed message.
		if !r.remove(entry.id) {
			return <-entry.answer, nil
		}
		return "", &protocol.TimeoutError{QuestionID: entry.id, Timeout: timeout.String()}
	case <-ctx.Done():
		if !r.remove(entry.id) {
			return <-entry.answer, nil
		}
		return "", ctx.Err()
	}
}

// Answer resolves the oldest pending question with text. Returns false
// when nothing is pending, so the router can fall through to normal
// message handling.
func (r *Registry) Answer(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) == 0 {
		return false
	}
	oldest := r.entries[0]
	r.entries = r.entries[1:]
	oldest.answer <- text
	return true
}

// PendingCount returns the number of outstanding questions.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// remove deletes the entry with the given id. Returns false when the entry
// is already gone: Answer pops and sends while holding the lock, so a false
// return guarantees the answer channel is populated.
func (r *Registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}
