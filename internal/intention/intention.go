// Package intention implements the commitment half of the decision
// loop: intentions wrap committed predicates, the queue revises them as
// better options arrive, and the runner drives plan execution.
package intention

import (
	"context"
	"errors"
	"sync"

	"gridcourier/internal/domain"
)

// Plan executes a committed predicate. Stop must be observed
// cooperatively at every suspension point.
type Plan interface {
	Execute(ctx context.Context, pred domain.Predicate) error
	Stop()
}

// PlanFactory pairs the applicability test with a constructor, mirroring
// the plan library contract: the first applicable plan runs, the next is
// tried on plan error.
type PlanFactory struct {
	AppliesTo func(domain.DesireType) bool
	New       func(parent *Intention) Plan
}

// Library is the ordered plan library.
type Library []PlanFactory

// Intention is a committed predicate plus lifecycle state. The queue
// owns its intentions; a running plan holds a non-owning back-reference
// to its parent solely for hierarchical cancellation.
type Intention struct {
	Predicate domain.Predicate

	mu        sync.Mutex
	started   bool
	stopped   bool
	executing bool
	finished  bool
	plan      Plan
}

func New(pred domain.Predicate) *Intention {
	return &Intention{Predicate: pred}
}

// Stop requests cooperative cancellation and propagates it to the
// currently running plan, which in turn stops its sub-intentions.
func (i *Intention) Stop() {
	i.mu.Lock()
	i.stopped = true
	plan := i.plan
	i.mu.Unlock()
	if plan != nil {
		plan.Stop()
	}
}

func (i *Intention) Stopped() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stopped
}

func (i *Intention) Executing() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.executing
}

func (i *Intention) Finished() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.finished
}

func (i *Intention) setPlan(p Plan) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stopped {
		return false
	}
	i.plan = p
	return true
}

func (i *Intention) clearPlan() {
	i.mu.Lock()
	i.plan = nil
	i.mu.Unlock()
}

// Achieve walks the plan library: the first applicable plan is
// instantiated and executed; on plan error the next applicable one is
// tried. Observing the stop flag aborts with ErrStopped. With no
// applicable plan the intention fails with ErrNoApplicablePlan.
func (i *Intention) Achieve(ctx context.Context, lib Library) error {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return domain.ErrStopped
	}
	i.started = true
	i.executing = true
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.executing = false
		i.mu.Unlock()
	}()

	var lastErr error
	applicable := false
	for _, factory := range lib {
		if !factory.AppliesTo(i.Predicate.Type) {
			continue
		}
		applicable = true

		plan := factory.New(i)
		if !i.setPlan(plan) {
			return domain.ErrStopped
		}
		err := plan.Execute(ctx, i.Predicate)
		i.clearPlan()

		if err == nil {
			i.mu.Lock()
			i.finished = true
			i.mu.Unlock()
			return nil
		}
		if errors.Is(err, domain.ErrStopped) || errors.Is(err, context.Canceled) {
			return err
		}
		lastErr = err
	}
	if !applicable {
		return domain.ErrNoApplicablePlan
	}
	return lastErr
}
