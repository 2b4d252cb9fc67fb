package queue

import (
	"errors"
	"sync/atomic"

	"sensebridge/internal/models"
)

// ErrQueueFull is returned by Submit when the intake buffer is at capacity.
// The newest intent is rejected; callers are sensing threads that must never
// block.
var ErrQueueFull = errors.New("event queue full")

// Intake is a bounded multi-producer/single-consumer FIFO buffer between the
// detectors and the dispatcher.
type Intake struct {
	ch      chan models.EventIntent
	dropped atomic.Uint64
}

// New builds an Intake with the given capacity.
func New(capacity int) *Intake {
	return &Intake{ch: make(chan models.EventIntent, capacity)}
}

// Submit enqueues an intent without blocking. On overflow the intent is
// rejected and the drop counter incremented.
func (q *Intake) Submit(intent models.EventIntent) error {
	select {
	case q.ch <- intent:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// C exposes the consumer side. Exactly one consumer drains it.
func (q *Intake) C() <-chan models.EventIntent {
	return q.ch
}

// Len reports the number of queued intents.
func (q *Intake) Len() int {
	return len(q.ch)
}

// Dropped reports how many intents were rejected on overflow.
func (q *Intake) Dropped() uint64 {
	return q.dropped.Load()
}
