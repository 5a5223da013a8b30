// Package timer implements the per-step countdown engine: many
// independently pausable timers keyed by step id, each ticking down once
// per second on its own goroutine and invoking listener callbacks on tick
// and completion.
package timer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbenzarti/forkbook/internal/domain"
	"github.com/kbenzarti/forkbook/internal/logger"
)

// PrepTimerStepID is the synthetic step id reserved for the overall
// recipe prep-time timer, distinct from any real step id.
const PrepTimerStepID = "global_prep_timer"

// Listener receives timer callbacks. OnTick fires once per second with the
// remaining whole seconds; OnFinish fires exactly once when a timer reaches
// zero, after which no further callbacks are delivered for that id.
type Listener interface {
	OnTick(stepID string, remainingSeconds int64)
	OnFinish(stepID string)
}

// Option configures the engine.
type Option func(*Engine)

// WithTickInterval overrides the one-second tick. Each tick still counts as
// one second of timer progress; tests use this to run timers fast.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.tickInterval = d
	}
}

// Engine owns the registry of running timers. All state lives behind one
// mutex; the per-timer goroutines publish into it and never share anything
// else. Timers run truly concurrently: pausing one does not affect another.
type Engine struct {
	log          *logger.Logger
	tickInterval time.Duration

	mu     sync.Mutex
	timers map[string]*countdown
}

// countdown is the state of one running timer. The tick loop keeps running
// while paused (the flag is consulted each tick); resume therefore needs no
// timing reconstruction.
type countdown struct {
	stepID string
	cancel context.CancelFunc

	mu        sync.Mutex
	remaining int64
	paused    bool
}

// New creates a timer engine.
func New(log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		log:          log,
		tickInterval: 1 * time.Second,
		timers:       make(map[string]*countdown),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a countdown for stepID. The timer ticks down once per
// second, calling listener.OnTick with the remaining seconds, and
// listener.OnFinish exactly once at zero, after which the timer is removed.
// Starting a step id that already has a timer returns
// domain.ErrAlreadyExists; the engine never merges or restarts in place.
func (e *Engine) Start(ctx context.Context, stepID string, info domain.TimerInfo, listener Listener) error {
	if info.DurationSeconds <= 0 {
		return fmt.Errorf("%w: timer duration must be positive", domain.ErrValidation)
	}

	e.mu.Lock()
	if _, ok := e.timers[stepID]; ok {
		e.mu.Unlock()
		return fmt.Errorf("timer for step %s: %w", stepID, domain.ErrAlreadyExists)
	}
	tctx, cancel := context.WithCancel(ctx)
	c := &countdown{
		stepID:    stepID,
		cancel:    cancel,
		remaining: info.DurationSeconds,
	}
	e.timers[stepID] = c
	e.mu.Unlock()

	e.log.Debug("timer started for step %s (%ds)", stepID, info.DurationSeconds)
	go e.run(tctx, c, listener)
	return nil
}

// run is one timer's tick loop. The one-second wait is its only suspension
// point; within one timer, ticks are strictly decreasing in wall-clock
// order.
func (e *Engine) run(ctx context.Context, c *countdown, listener Listener) {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}

			c.mu.Lock()
			if c.paused {
				c.mu.Unlock()
				continue
			}
			c.remaining--
			remaining := c.remaining
			c.mu.Unlock()

			if remaining > 0 {
				listener.OnTick(c.stepID, remaining)
				continue
			}

			// Remove before notifying so the id is free to start again
			// from inside OnFinish. Removal is compare-and-remove: if a
			// Cancel raced us here it already took the entry, and the
			// finish must not be delivered after Cancel returned.
			if !e.removeIf(c.stepID, c) {
				return
			}
			c.cancel()
			e.log.Debug("timer finished for step %s", c.stepID)
			listener.OnFinish(c.stepID)
			return
		}
	}
}

// Pause suspends a timer. While paused no callbacks fire and remaining time
// does not change; the underlying tick loop keeps running. Unknown ids are
// ignored.
func (e *Engine) Pause(stepID string) {
	if c := e.get(stepID); c != nil {
		c.mu.Lock()
		c.paused = true
		c.mu.Unlock()
		e.log.Debug("timer paused for step %s", stepID)
	}
}

// Resume continues a paused timer from the exact remaining value it was
// paused at. Unknown ids are ignored.
func (e *Engine) Resume(stepID string) {
	if c := e.get(stepID); c != nil {
		c.mu.Lock()
		c.paused = false
		c.mu.Unlock()
		e.log.Debug("timer resumed for step %s", stepID)
	}
}

// Cancel stops a timer and removes all state for its id. No further
// callbacks fire. Unknown ids are ignored.
func (e *Engine) Cancel(stepID string) {
	e.mu.Lock()
	c, ok := e.timers[stepID]
	delete(e.timers, stepID)
	e.mu.Unlock()

	if ok {
		c.cancel()
		e.log.Debug("timer cancelled for step %s", stepID)
	}
}

// CancelAll cancels every active timer. Running timers are scoped to one
// version's viewing session, so this is invoked when the user switches
// recipe or version.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	cancelled := make([]*countdown, 0, len(e.timers))
	for _, c := range e.timers {
		cancelled = append(cancelled, c)
	}
	e.timers = make(map[string]*countdown)
	e.mu.Unlock()

	for _, c := range cancelled {
		c.cancel()
	}
	if len(cancelled) > 0 {
		e.log.Debug("cancelled %d timers", len(cancelled))
	}
}

// Remaining reports the remaining seconds of a timer and whether one exists
// for stepID.
func (e *Engine) Remaining(stepID string) (int64, bool) {
	c := e.get(stepID)
	if c == nil {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining, true
}

// Paused reports whether a timer exists for stepID and is paused.
func (e *Engine) Paused(stepID string) bool {
	c := e.get(stepID)
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (e *Engine) get(stepID string) *countdown {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timers[stepID]
}

// removeIf removes the registry entry for stepID only if it is still this
// exact countdown. Reports whether the caller won the removal; losing means
// a Cancel (or a replacement timer) got there first.
func (e *Engine) removeIf(stepID string, c *countdown) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timers[stepID] != c {
		return false
	}
	delete(e.timers, stepID)
	return true
}
