package plans

import (
	"context"
	"fmt"

	"gridcourier/internal/domain"
	"gridcourier/internal/intention"
)

// DeliverPlan moves to the delivery tile through a go-to sub-intention
// and drops the carried parcels, emptying the inventory.
type DeliverPlan struct {
	base
}

func newDeliverPlan(env Env, parent *intention.Intention) *DeliverPlan {
	return &DeliverPlan{base: base{env: env, parent: parent}}
}

func (p *DeliverPlan) Execute(ctx context.Context, pred domain.Predicate) error {
	sub := domain.Predicate{Type: domain.DesireGoTo, Destination: pred.Destination}
	if err := p.runSub(ctx, sub, gotoLibrary(p.env)); err != nil {
		return fmt.Errorf("deliver at %s: %w", pred.Destination.Key(), err)
	}
	if p.stopped(ctx) {
		return domain.ErrStopped
	}

	dropped, err := p.env.Actuator.Drop(ctx)
	if err != nil {
		return fmt.Errorf("deliver at %s: %w", pred.Destination.Key(), err)
	}
	p.env.Beliefs.ClearCarryingParcels()
	p.env.logger().Printf("delivered %d parcel(s) at %s", len(dropped), pred.Destination.Key())

	if c := p.env.Coordinator; c != nil && c.OwnsPartitioning() {
		c.RecomputeAndBroadcast(ctx)
	}
	return nil
}
