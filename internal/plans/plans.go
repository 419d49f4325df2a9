// Package plans turns committed predicates into sequences of primitive
// actuator calls. Plans are selected by predicate type through the
// intention library; each observes a cooperative stop flag at every
// suspension point and propagates cancellation to its sub-intentions.
package plans

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"gridcourier/internal/beliefs"
	"gridcourier/internal/domain"
	"gridcourier/internal/intention"
)

// Actuator is the outbound simulator contract used by plans.
type Actuator interface {
	Move(ctx context.Context, m domain.Move) error
	Pickup(ctx context.Context) ([]domain.Parcel, error)
	Drop(ctx context.Context) ([]domain.Parcel, error)
}

// BeliefSource is the slice of the belief set plans read and mutate.
type BeliefSource interface {
	Snapshot() beliefs.Snapshot
	AddCarryingParcel(domain.Parcel)
	ClearCarryingParcels()
}

// Coordinator re-broadcasts the partitioning after pickups and drops in
// cooperative mode. A nil coordinator disables the hook.
type Coordinator interface {
	OwnsPartitioning() bool
	RecomputeAndBroadcast(ctx context.Context)
}

// Env bundles the collaborators every plan needs.
type Env struct {
	Beliefs     BeliefSource
	Actuator    Actuator
	Coordinator Coordinator
	Logger      *log.Logger
}

func (e Env) logger() *log.Logger {
	if e.Logger == nil {
		return log.Default()
	}
	return e.Logger
}

// Library builds the ordered plan library for the runner: pickup and
// deliver wrap movement with their actuator verb, go-to serves both
// navigation desires.
func Library(env Env) intention.Library {
	return intention.Library{
		{
			AppliesTo: func(t domain.DesireType) bool { return t == domain.DesirePickup },
			New:       func(parent *intention.Intention) intention.Plan { return newPickUpPlan(env, parent) },
		},
		{
			AppliesTo: func(t domain.DesireType) bool { return t == domain.DesireDeliver },
			New:       func(parent *intention.Intention) intention.Plan { return newDeliverPlan(env, parent) },
		},
		{
			AppliesTo: func(t domain.DesireType) bool {
				return t == domain.DesireGoTo || t == domain.DesireExploration
			},
			New: func(parent *intention.Intention) intention.Plan { return newGoToPlan(env, parent) },
		},
	}
}

// base carries the stop flag and the non-owning parent handle shared by
// all plans. Sub-intentions registered here are stopped alongside the
// plan.
type base struct {
	env    Env
	parent *intention.Intention

	stopFlag atomic.Bool
	mu       sync.Mutex
	subs     []*intention.Intention
}

func (b *base) Stop() {
	b.stopFlag.Store(true)
	b.mu.Lock()
	subs := append([]*intention.Intention(nil), b.subs...)
	b.mu.Unlock()
	for _, sub := range subs {
		sub.Stop()
	}
}

func (b *base) stopped(ctx context.Context) bool {
	return b.stopFlag.Load() || ctx.Err() != nil
}

// runSub achieves a sub-intention owned by this plan; the registration
// makes hierarchical cancellation reach it.
func (b *base) runSub(ctx context.Context, pred domain.Predicate, lib intention.Library) error {
	if b.stopped(ctx) {
		return domain.ErrStopped
	}
	sub := intention.New(pred)
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub.Achieve(ctx, lib)
}

// gotoLibrary is the single-entry library used for movement
// sub-intentions.
func gotoLibrary(env Env) intention.Library {
	return intention.Library{{
		AppliesTo: func(t domain.DesireType) bool {
			return t == domain.DesireGoTo || t == domain.DesireExploration
		},
		New: func(parent *intention.Intention) intention.Plan { return newGoToPlan(env, parent) },
	}}
}
