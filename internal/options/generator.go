// Package options turns belief snapshots into candidate intentions. The
// generator runs after every relevant sensor update and on the
// queue-empty callback; it proposes at most one predicate per run and
// lets the preemption policy arbitrate against the current commitment.
package options

import (
	"log"
	"math"

	"gridcourier/internal/beliefs"
	"gridcourier/internal/domain"
	"gridcourier/internal/intention"
	"gridcourier/internal/policy"
	"gridcourier/internal/utility"
)

// Queue is the slice of the intention queue the generator drives.
type Queue interface {
	Current() (domain.Predicate, bool)
	Push(pred domain.Predicate) bool
}

type Generator struct {
	beliefs *beliefs.Set
	queue   Queue
	policy  *policy.Engine
	logger  *log.Logger
	tracer  intention.Tracer

	exploreIdx int
}

func New(b *beliefs.Set, q Queue, p *policy.Engine, logger *log.Logger, tracer intention.Tracer) *Generator {
	if logger == nil {
		logger = log.Default()
	}
	if p == nil {
		p = policy.New(policy.DefaultMargin)
	}
	return &Generator{beliefs: b, queue: q, policy: p, logger: logger, tracer: tracer}
}

// Generate evaluates the current snapshot and pushes the best option, if
// any beats the current intention.
func (g *Generator) Generate() {
	snap := g.beliefs.Snapshot()
	if !snap.HasSelf || snap.Grid == nil {
		return
	}
	self := snap.Self.Pos()
	selfID := snap.Self.ID

	// Immediate opportunities on the current tile short-circuit scoring.
	if p, ok := parcelOnTile(snap, self); ok {
		g.propose(domain.Predicate{
			Type:        domain.DesirePickup,
			Destination: self,
			ParcelID:    p.ID,
			Utility:     math.Inf(1),
		}, "standing on parcel")
		return
	}
	if snap.CarriedCount > 0 && snap.Grid.At(self) == domain.TileDelivery {
		g.propose(domain.Predicate{
			Type:        domain.DesireDeliver,
			Destination: self,
			Utility:     math.Inf(1),
		}, "standing on delivery zone")
		return
	}

	best, hasBest := g.bestParcelOption(snap, selfID)

	if snap.CarriedCount > 0 {
		if zone, _, ok := utility.ClosestDelivery(snap, self); ok {
			deliver := domain.Predicate{
				Type:        domain.DesireDeliver,
				Destination: zone,
				Utility:     utility.DeliveryUtility(snap),
			}
			if !hasBest || deliver.Utility > best.Utility {
				best, hasBest = deliver, true
			}
		}
	}

	if hasBest && best.Utility > 0 {
		g.propose(best, "best scored option")
		return
	}
	if _, busy := g.queue.Current(); !busy {
		if dest, ok := g.explorationTarget(snap, selfID, self); ok {
			g.propose(domain.Predicate{
				Type:        domain.DesireExploration,
				Destination: dest,
			}, "no positive option, exploring")
		}
	}
}

func (g *Generator) bestParcelOption(snap beliefs.Snapshot, selfID string) (domain.Predicate, bool) {
	var best domain.Predicate
	bestScore := utility.NegInf
	for _, p := range snap.Parcels {
		if p.CarriedBy != "" || p.Reward <= 0 {
			continue
		}
		if owner, claimed := snap.Partitioning[p.Pos().Key()]; claimed && owner != selfID {
			continue
		}
		score := utility.ParcelUtility(snap, p)
		if math.IsInf(score, -1) || score <= bestScore {
			continue
		}
		bestScore = score
		best = domain.Predicate{
			Type:        domain.DesirePickup,
			Destination: p.Pos(),
			ParcelID:    p.ID,
			Utility:     score,
		}
	}
	return best, !math.IsInf(bestScore, -1)
}

// explorationTarget rotates through the agent's assigned generators, or
// all of them when no partitioning is in effect, skipping the tile the
// agent already stands on.
func (g *Generator) explorationTarget(snap beliefs.Snapshot, selfID string, self domain.Point) (domain.Point, bool) {
	candidates := make([]domain.Point, 0, len(snap.Generators))
	for _, gen := range snap.Generators {
		if len(snap.Partitioning) > 0 && !snap.Partitioning.AssignedTo(gen, selfID) {
			continue
		}
		if gen == self {
			continue
		}
		candidates = append(candidates, gen)
	}
	if len(candidates) == 0 {
		for _, gen := range snap.Generators {
			if gen != self {
				candidates = append(candidates, gen)
			}
		}
	}
	if len(candidates) == 0 {
		return domain.Point{}, false
	}
	dest := candidates[g.exploreIdx%len(candidates)]
	g.exploreIdx++
	return dest, true
}

func (g *Generator) propose(pred domain.Predicate, reason string) {
	current, hasCurrent := g.queue.Current()
	adopt, why := g.policy.ShouldAdopt(current, hasCurrent, pred)
	if !adopt {
		return
	}
	if !g.queue.Push(pred) {
		return
	}
	g.logger.Printf("option adopted type=%s dest=%s utility=%.4f (%s)",
		pred.Type, pred.Destination.Key(), pred.Utility, reason)
	if g.tracer != nil {
		g.tracer.Trace("option-generator", "option_pushed", reason+"; "+why, pred)
	}
}

func parcelOnTile(snap beliefs.Snapshot, tile domain.Point) (domain.ExtendedParcel, bool) {
	for _, p := range snap.Parcels {
		if p.CarriedBy == "" && p.Reward > 0 && p.Pos() == tile {
			return p, true
		}
	}
	return domain.ExtendedParcel{}, false
}
