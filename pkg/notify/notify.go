// Package notify delivers short user-facing messages about operations that
// finished or failed in the background.
package notify

import (
	"log"
	"sync"
	"time"
)

// Lifetime is how long a toast stays visible.
const Lifetime = 3 * time.Second

// Level tags a message.
type Level string

const (
	Info  Level = "info"
	Error Level = "error"
)

// Notifier receives messages.
type Notifier interface {
	Notify(level Level, msg string)
}

// Toast is a queued message.
type Toast struct {
	ID      int       `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Expires time.Time `json:"expires"`
}

// Queue keeps recent toasts in memory until they expire. Safe for concurrent
// use.
type Queue struct {
	mu     sync.Mutex
	now    func() time.Time
	life   time.Duration
	nextID int
	toasts []Toast
}

// NewQueue returns a queue using the wall clock.
func NewQueue() *Queue {
	return &Queue{now: time.Now, life: Lifetime}
}

// Notify enqueues a toast.
func (q *Queue) Notify(level Level, msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.toasts = append(q.expired(q.now()), Toast{
		ID:      q.nextID,
		Level:   level,
		Message: msg,
		Expires: q.now().Add(q.life),
	})
}

// Active returns the toasts that have not expired.
func (q *Queue) Active() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.toasts = q.expired(q.now())
	out := make([]Toast, len(q.toasts))
	copy(out, q.toasts)
	return out
}

// expired drops toasts past their expiry in place.
func (q *Queue) expired(now time.Time) []Toast {
	kept := q.toasts[:0]
	for _, t := range q.toasts {
		if now.Before(t.Expires) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Log writes messages to the standard logger.
type Log struct{}

func (Log) Notify(level Level, msg string) {
	log.Printf("[%s] %s", level, msg)
}

// Multi fans a message out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(level Level, msg string) {
	for _, n := range m {
		n.Notify(level, msg)
	}
}
