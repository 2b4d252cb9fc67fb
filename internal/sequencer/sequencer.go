package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sensebridge/internal/drivers"
	"sensebridge/internal/logging"
	"sensebridge/internal/models"
	"sensebridge/internal/telemetry"
)

// ErrShutdownTimeout reports that the sequencer loop did not exit within the
// stop bound. Logged at error severity by the caller; shutdown proceeds
// regardless so the process is never blocked from exiting.
var ErrShutdownTimeout = errors.New("sequencer did not stop within timeout")

// driverError marks a failed actuator call. Recoverable: the rest of the
// current pattern is skipped and the channel serves the next request.
type driverError struct {
	op  string
	err error
}

func (e *driverError) Error() string {
	return fmt.Sprintf("driver %s failed: %v", e.op, e.err)
}

func (e *driverError) Unwrap() error { return e.err }

// Sequencer executes timed patterns against one channel driver. It owns the
// channel's state exclusively: a single goroutine consumes fire requests in
// strict arrival order, with no overlap between patterns. A High-priority
// request preempts a running lower-priority pattern.
type Sequencer struct {
	channel     models.Channel
	driver      drivers.Driver
	cooldown    time.Duration
	callTimeout time.Duration
	requests    chan models.FireRequest
	hub         *telemetry.Hub
	logger      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// abort cancels the in-flight pattern; current is its priority.
	// Written by the loop goroutine, read by Fire callers.
	mu      sync.Mutex
	abort   context.CancelFunc
	current models.Priority

	// lastFire is touched only by the loop goroutine.
	lastFire time.Time
}

// New builds a stopped Sequencer for one channel.
func New(channel models.Channel, driver drivers.Driver, cooldown, callTimeout time.Duration, hub *telemetry.Hub, logger *logging.Logger) *Sequencer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sequencer{
		channel:     channel,
		driver:      driver,
		cooldown:    cooldown,
		callTimeout: callTimeout,
		requests:    make(chan models.FireRequest, 16),
		hub:         hub,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Channel reports which output modality this sequencer drives.
func (s *Sequencer) Channel() models.Channel {
	return s.channel
}

// Start launches the consumption loop. A stopped sequencer may be started
// again; the dispatcher serializes start/stop cycles.
func (s *Sequencer) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})
	go s.loop()
}

// Stop aborts any in-flight pattern, waits for the loop to exit within
// timeout, and issues a final safety deactivate. Returns ErrShutdownTimeout
// if the loop did not terminate in time; the deactivate still happens.
func (s *Sequencer) Stop(timeout time.Duration) error {
	s.cancel()

	var err error
	select {
	case <-s.done:
	case <-time.After(timeout):
		err = fmt.Errorf("%s: %w", s.channel, ErrShutdownTimeout)
	}

	// guaranteed cleanup: the actuator must be off after Stop returns
	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()
	if derr := s.driver.Deactivate(ctx); derr != nil {
		s.logger.Errorf("Final deactivate on %s failed: %v", s.channel, derr)
	}
	return err
}

// Fire enqueues a request without blocking the dispatcher. An accepted
// High-priority request then preempts a running lower-priority pattern so
// its own steps start from a deactivated actuator. The enqueue comes first:
// a request the buffer cannot hold must not kill the pattern in flight.
func (s *Sequencer) Fire(req models.FireRequest) {
	select {
	case s.requests <- req:
	default:
		s.logger.Warnf("Sequencer %s queue full, dropping %s", s.channel, req.EventType)
		s.emitSuppressed(req, "queue_full")
		return
	}

	if req.Priority == models.PriorityHigh {
		s.preemptLower()
	}
}

// preemptLower cancels the in-flight pattern if it runs below High priority.
func (s *Sequencer) preemptLower() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abort != nil && s.current < models.PriorityHigh {
		s.logger.Debugf("Preempting %s priority pattern on %s", s.current, s.channel)
		s.abort()
	}
}

func (s *Sequencer) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Sequencer %s stopped", s.channel)
			return
		case req := <-s.requests:
			s.handle(req)
		}
	}
}

// handle applies the channel-level priority cooldown and runs the pattern.
func (s *Sequencer) handle(req models.FireRequest) {
	if req.Priority < models.PriorityHigh && !s.lastFire.IsZero() && time.Since(s.lastFire) < s.cooldown {
		s.logger.Debugf("Skipping %s priority request on %s (cooldown)", req.Priority, s.channel)
		s.emitSuppressed(req, "cooldown")
		return
	}

	stepCtx, abort := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.abort = abort
	s.current = req.Priority
	s.mu.Unlock()

	err := s.runPattern(stepCtx, req.Pattern)

	s.mu.Lock()
	s.abort = nil
	s.mu.Unlock()
	abort()

	s.lastFire = time.Now()

	switch {
	case err == nil:
		s.hub.Emit(telemetry.Event{
			Type:      telemetry.TypeNotificationSent,
			EventType: req.EventType,
			Channel:   s.channel.String(),
			Priority:  req.Priority.String(),
			Outcome:   "delivered",
			Detail:    req.Label,
		})
	case errors.Is(err, context.Canceled) && s.ctx.Err() != nil:
		// shutdown; the loop exits on the next select
	case errors.Is(err, context.Canceled):
		s.emitSuppressed(req, "preempted")
	default:
		s.logger.Errorf("Pattern %s on %s failed: %v", req.Pattern.Name, s.channel, err)
		s.hub.Emit(telemetry.Event{
			Type:      telemetry.TypeChannelError,
			EventType: req.EventType,
			Channel:   s.channel.String(),
			Priority:  req.Priority.String(),
			Outcome:   "error",
			Detail:    err.Error(),
		})
	}
}

// runPattern executes steps strictly in order, abortable at every step
// boundary. Every activate is paired with a deactivate, so partial execution
// on abort still leaves the actuator off.
func (s *Sequencer) runPattern(ctx context.Context, p models.Pattern) error {
	for _, step := range p.Steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if step.Intensity <= 0 {
			if err := hold(ctx, step.Duration); err != nil {
				return err
			}
			continue
		}

		if err := s.activate(step.Intensity); err != nil {
			return err
		}
		holdErr := hold(ctx, step.Duration)
		if err := s.deactivate(); err != nil {
			return err
		}
		if holdErr != nil {
			return holdErr
		}
	}
	return nil
}

// activate calls the driver under its own short timeout; hardware latency
// must never stall the loop past the call bound.
func (s *Sequencer) activate(intensity float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()
	if err := s.driver.Activate(ctx, intensity); err != nil {
		return &driverError{op: "activate", err: err}
	}
	return nil
}

func (s *Sequencer) deactivate() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()
	if err := s.driver.Deactivate(ctx); err != nil {
		return &driverError{op: "deactivate", err: err}
	}
	return nil
}

func (s *Sequencer) emitSuppressed(req models.FireRequest, reason string) {
	s.hub.Emit(telemetry.Event{
		Type:      telemetry.TypeNotificationSuppressed,
		EventType: req.EventType,
		Channel:   s.channel.String(),
		Priority:  req.Priority.String(),
		Outcome:   reason,
	})
}

func hold(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
