// Package utility scores candidate actions against the current belief
// snapshot. All scores are reward per millisecond of plan time; minus
// infinity marks unreachable candidates.
package utility

import (
	"math"
	"time"

	"gridcourier/internal/beliefs"
	"gridcourier/internal/domain"
	"gridcourier/internal/grid"
)

// NegInf is the score of an unreachable candidate.
var NegInf = math.Inf(-1)

const (
	threatBaseWeight      = 0.3
	threatDirectionWeight = 0.7
)

// ClosestDelivery returns the delivery zone with the minimal A* cost
// from the given position, false when none is reachable.
func ClosestDelivery(snap beliefs.Snapshot, from domain.Point) (domain.Point, int, bool) {
	if snap.Grid == nil {
		return domain.Point{}, 0, false
	}
	occupied := snap.OccupiedFn()
	best := domain.Point{}
	bestCost := -1
	for _, zone := range snap.Delivery {
		cost := grid.Distance(snap.Grid, from, zone, occupied)
		if cost < 0 {
			continue
		}
		if bestCost < 0 || cost < bestCost {
			best, bestCost = zone, cost
		}
	}
	if bestCost < 0 {
		return domain.Point{}, 0, false
	}
	return best, bestCost, true
}

// ParcelUtility scores picking up p from the agent's current position
// and carrying everything to the nearest delivery zone. The model
// discounts the carried load and the target parcel by the decay steps
// spent travelling, and the target additionally by the adversarial
// threat.
func ParcelUtility(snap beliefs.Snapshot, p domain.ExtendedParcel) float64 {
	if snap.Grid == nil || !snap.HasSelf {
		return NegInf
	}
	occupied := snap.OccupiedFn()
	pickupCost := grid.Distance(snap.Grid, snap.Self.Pos(), p.Pos(), occupied)
	if pickupCost < 0 {
		return NegInf
	}
	_, deliveryCost, ok := ClosestDelivery(snap, p.Pos())
	if !ok {
		return NegInf
	}

	stepMS := float64(snap.MovementDuration.Milliseconds())
	pickupMS := float64(pickupCost) * stepMS
	deliveryMS := float64(deliveryCost) * stepMS
	totalMS := pickupMS + deliveryMS
	if totalMS == 0 {
		return 0
	}

	decaysPickup := decaySteps(pickupMS, snap.DecayInterval)
	decaysDelivery := decaySteps(deliveryMS, snap.DecayInterval)
	carried := float64(snap.CarriedReward)
	n := float64(snap.CarriedCount)

	carriedFinal := carried - decaysPickup*n - decaysDelivery*(n+1)
	if carriedFinal < 0 {
		carriedFinal = 0
	}

	threat := ParcelThreat(snap, p.Parcel)
	targetFinal := float64(p.Reward) - decaysPickup - threat - decaysDelivery*(n+1)
	if targetFinal < 0 {
		targetFinal = 0
	}

	return (carriedFinal + targetFinal) / totalMS
}

// DeliveryUtility scores carrying the current load to the nearest
// delivery zone.
func DeliveryUtility(snap beliefs.Snapshot) float64 {
	if snap.Grid == nil || !snap.HasSelf {
		return NegInf
	}
	_, cost, ok := ClosestDelivery(snap, snap.Self.Pos())
	if !ok {
		return NegInf
	}
	totalMS := float64(cost) * float64(snap.MovementDuration.Milliseconds())
	if totalMS == 0 {
		return 0
	}
	decays := decaySteps(totalMS, snap.DecayInterval)
	final := float64(snap.CarriedReward) - decays*float64(snap.CarriedCount)
	if final < 0 {
		final = 0
	}
	return final / totalMS
}

// ParcelThreat estimates the risk of a competitor reaching p first. Each
// adversary contributes reward/d^2 scaled by a resting weight, plus a
// directional term when it is moving toward the parcel.
func ParcelThreat(snap beliefs.Snapshot, p domain.Parcel) float64 {
	if snap.Grid == nil {
		return 0
	}
	occupied := snap.OccupiedFn()
	threat := 0.0
	for _, a := range snap.OtherAgents {
		d := grid.Distance(snap.Grid, a.FloorPos(), p.Pos(), occupied)
		if d < 1 {
			continue
		}
		proximity := float64(p.Reward) / float64(d*d)
		threat += proximity * threatBaseWeight

		if !a.IsMoving() {
			continue
		}
		vx, vy := a.MovementDirection()
		wx := float64(p.X) - a.X
		wy := float64(p.Y) - a.Y
		k := float64(vx)*wx + float64(vy)*wy
		if k <= 0 {
			continue
		}
		norm := math.Hypot(wx, wy)
		if norm == 0 {
			continue
		}
		threat += proximity * threatDirectionWeight * k / norm
	}
	return threat
}

// TourForParcel builds the two-stop tour (pickup then nearest delivery)
// with its cached utility. The runtime commits one stop at a time.
func TourForParcel(snap beliefs.Snapshot, p domain.ExtendedParcel) (domain.Tour, bool) {
	zone, _, ok := ClosestDelivery(snap, p.Pos())
	if !ok {
		return domain.Tour{}, false
	}
	parcel := p.Parcel
	return domain.Tour{
		Stops: []domain.TourStop{
			{Type: domain.TourStopPickup, Position: p.Pos(), Parcel: &parcel},
			{Type: domain.TourStopDelivery, Position: zone},
		},
		Utility: ParcelUtility(snap, p),
	}, true
}

func decaySteps(travelMS float64, interval time.Duration) float64 {
	ms := float64(interval.Milliseconds())
	if ms <= 0 {
		return 0
	}
	return math.Ceil(travelMS / ms)
}
