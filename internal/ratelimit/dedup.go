package ratelimit

import (
	"sync"
	"time"
)

// Deduper suppresses repeat notifications of the same event type inside a
// fixed window. The check-and-set is atomic per call so two concurrent
// intents of one type cannot both pass.
type Deduper struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time

	suppressed uint64
}

// NewDeduper builds a Deduper with the given suppression window.
func NewDeduper(window time.Duration) *Deduper {
	return &Deduper{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// Allow reports whether an event of this type at time now may notify, and if
// so records it. Entries only move forward in time.
func (d *Deduper) Allow(eventType string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.last[eventType]; ok {
		if now.Before(last) {
			// out-of-order intent; the newer notification already won
			d.suppressed++
			return false
		}
		if now.Sub(last) < d.window {
			d.suppressed++
			return false
		}
	}
	d.last[eventType] = now
	return true
}

// Suppressed reports how many events the window has rejected.
func (d *Deduper) Suppressed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressed
}

// Reset forgets all recorded event times. Used between stop/start cycles.
func (d *Deduper) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = make(map[string]time.Time)
}
