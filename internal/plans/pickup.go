package plans

import (
	"context"
	"fmt"

	"gridcourier/internal/domain"
	"gridcourier/internal/intention"
)

// PickUpPlan moves to the parcel tile through a go-to sub-intention and
// issues the pickup. Collected parcels join the carried inventory; in
// cooperative mode the partitioning owner re-broadcasts afterwards since
// the parcel set changed.
type PickUpPlan struct {
	base
}

func newPickUpPlan(env Env, parent *intention.Intention) *PickUpPlan {
	return &PickUpPlan{base: base{env: env, parent: parent}}
}

func (p *PickUpPlan) Execute(ctx context.Context, pred domain.Predicate) error {
	sub := domain.Predicate{Type: domain.DesireGoTo, Destination: pred.Destination}
	if err := p.runSub(ctx, sub, gotoLibrary(p.env)); err != nil {
		return fmt.Errorf("pickup %s: %w", pred.ParcelID, err)
	}
	if p.stopped(ctx) {
		return domain.ErrStopped
	}

	parcels, err := p.env.Actuator.Pickup(ctx)
	if err != nil {
		return fmt.Errorf("pickup %s: %w", pred.ParcelID, err)
	}
	for _, parcel := range parcels {
		p.env.Beliefs.AddCarryingParcel(parcel)
	}
	p.env.logger().Printf("picked up %d parcel(s) at %s", len(parcels), pred.Destination.Key())

	if c := p.env.Coordinator; c != nil && c.OwnsPartitioning() {
		c.RecomputeAndBroadcast(ctx)
	}
	return nil
}
