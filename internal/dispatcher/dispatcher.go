package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"sensebridge/internal/catalog"
	"sensebridge/internal/logging"
	"sensebridge/internal/models"
	"sensebridge/internal/queue"
	"sensebridge/internal/ratelimit"
	"sensebridge/internal/sequencer"
	"sensebridge/internal/telemetry"
)

// ErrShutdownTimeout reports that the consumption loop did not exit within
// the stop bound.
var ErrShutdownTimeout = errors.New("dispatcher did not stop within timeout")

// Dispatcher drains the intake queue, applies the dedup and catalog policy,
// and fans intents out to the per-channel sequencers. It never waits for a
// channel: each sequencer runs its own loop and Fire never blocks.
type Dispatcher struct {
	queue      *queue.Intake
	deduper    *ratelimit.Deduper
	catalog    *catalog.Catalog
	sequencers []*sequencer.Sequencer
	hub        *telemetry.Hub
	logger     *logging.Logger
	timeout    time.Duration

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New constructs a stopped Dispatcher.
func New(q *queue.Intake, dd *ratelimit.Deduper, cat *catalog.Catalog, seqs []*sequencer.Sequencer, hub *telemetry.Hub, logger *logging.Logger, shutdownTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		queue:      q,
		deduper:    dd,
		catalog:    cat,
		sequencers: seqs,
		hub:        hub,
		logger:     logger,
		timeout:    shutdownTimeout,
	}
}

// Running reports the dispatcher state.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Start launches the channel sequencers and the consumption loop.
// Idempotent: starting twice is a warning, not an error.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		d.logger.Warnf("Dispatcher already running")
		return
	}
	d.running = true
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.done = make(chan struct{})

	for _, s := range d.sequencers {
		s.Start()
	}
	go d.loop()
	d.logger.Infof("Dispatcher started with %d channels", len(d.sequencers))
}

// Stop signals the loop to exit, joins it within the bounded timeout, then
// stops every channel. After Stop returns no new actuation begins. A loop or
// sequencer that misses its bound is logged at error severity and shutdown
// proceeds anyway.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	done := d.done
	d.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(d.timeout):
		d.logger.Errorf("%v", ErrShutdownTimeout)
	}

	for _, s := range d.sequencers {
		if err := s.Stop(d.timeout); err != nil {
			d.logger.Errorf("Channel stop failed: %v", err)
		}
	}
	d.logger.Infof("Dispatcher stopped")
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		select {
		case <-d.ctx.Done():
			return
		case intent := <-d.queue.C():
			d.process(intent)
		}
	}
}

// process handles one intent. Any panic while processing is contained: a
// single malformed event must never terminate the consumption loop.
func (d *Dispatcher) process(intent models.EventIntent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("Recovered processing %s: %v", intent.EventType, r)
		}
	}()

	spec, known := d.catalog.Resolve(intent.EventType)
	if !known && intent.EventType != models.SpeechEventType {
		d.logger.Warnf("Unknown event type: %s", intent.EventType)
		d.hub.Emit(telemetry.Event{
			Type:      telemetry.TypeNotificationSuppressed,
			EventType: intent.EventType,
			Outcome:   "unknown_event_type",
		})
		return
	}

	if !d.deduper.Allow(intent.EventType, intent.Timestamp) {
		d.logger.Debugf("Skipping duplicate notification: %s", intent.EventType)
		d.hub.Emit(telemetry.Event{
			Type:      telemetry.TypeNotificationSuppressed,
			EventType: intent.EventType,
			Outcome:   "duplicate",
		})
		return
	}

	// Speech bypasses the catalog: it is a text-display intent only.
	if intent.EventType == models.SpeechEventType {
		if intent.Payload == "" {
			return
		}
		d.hub.Emit(telemetry.Event{
			Type:      telemetry.TypeSpeechText,
			EventType: intent.EventType,
			Detail:    intent.Payload,
		})
		d.logger.Infof("Speech notification: %s", intent.Payload)
		return
	}

	for _, s := range d.sequencers {
		s.Fire(models.FireRequest{
			EventType: intent.EventType,
			Label:     spec.Label,
			Pattern:   d.patternFor(s.Channel(), spec),
			Priority:  spec.Priority,
			Timestamp: intent.Timestamp,
		})
	}
	d.logger.Infof("Notification dispatched: %s (priority %s)", intent.EventType, spec.Priority)
}

// patternFor picks the channel's pattern. The smart-home light tracks the
// visual flash pattern.
func (d *Dispatcher) patternFor(ch models.Channel, spec catalog.EventSpec) models.Pattern {
	switch ch {
	case models.ChannelHaptic:
		return d.catalog.HapticPattern(spec.HapticPattern)
	default:
		return d.catalog.VisualPattern(spec.VisualPattern)
	}
}
