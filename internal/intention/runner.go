package intention

import (
	"context"
	"errors"
	"log"
	"time"

	"gridcourier/internal/domain"
)

// Validator decides whether the head intention is still worth pursuing
// given the current beliefs (a Deliver while not carrying, a Pickup
// whose parcel is gone, and so on).
type Validator func(domain.Predicate) bool

// Tracer records decision events; the trace store implements it and a
// nil tracer disables tracing.
type Tracer interface {
	Trace(actor, action, reason string, payload any)
}

// Runner is the revision loop: one goroutine consuming the queue head,
// validating it, achieving it through the plan library, and popping it
// on completion or failure. At most one intention executes at a time.
type Runner struct {
	queue    *Queue
	library  Library
	validate Validator
	tick     time.Duration
	logger   *log.Logger
	tracer   Tracer
}

func NewRunner(queue *Queue, library Library, validate Validator, tick time.Duration, logger *log.Logger, tracer Tracer) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	if validate == nil {
		validate = func(domain.Predicate) bool { return true }
	}
	return &Runner{
		queue:    queue,
		library:  library,
		validate: validate,
		tick:     tick,
		logger:   logger,
		tracer:   tracer,
	}
}

// Run blocks until the context is cancelled. Errors from individual
// intentions are recovered here; only context cancellation ends the
// loop.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		head := r.queue.Head()
		if head == nil {
			select {
			case <-ctx.Done():
				return
			case <-r.queue.Wake():
			case <-ticker.C:
			}
			continue
		}

		if !r.validate(head.Predicate) {
			r.trace("intention_dropped", "predicate no longer valid", head.Predicate)
			r.queue.Pop(head)
			continue
		}

		err := head.Achieve(ctx, r.library)
		switch {
		case err == nil:
			r.trace("intention_achieved", "plan completed", head.Predicate)
		case errors.Is(err, domain.ErrStopped):
			r.trace("intention_stopped", "superseded by a better option", head.Predicate)
		case errors.Is(err, context.Canceled):
			return
		default:
			r.logger.Printf("intention failed type=%s dest=%s: %v",
				head.Predicate.Type, head.Predicate.Destination.Key(), err)
			r.trace("intention_failed", err.Error(), head.Predicate)
		}
		r.queue.Pop(head)

		// Yield between intentions so freshly arrived sensor events win
		// the race against immediate re-execution.
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func (r *Runner) trace(action, reason string, payload any) {
	if r.tracer == nil {
		return
	}
	r.tracer.Trace("intention-runner", action, reason, payload)
}
