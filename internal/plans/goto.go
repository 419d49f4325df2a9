package plans

import (
	"context"
	"fmt"

	"gridcourier/internal/domain"
	"gridcourier/internal/grid"
	"gridcourier/internal/intention"
)

// GoToPlan walks the agent to the predicate destination along an A*
// path, excluding tiles currently believed occupied. The path is
// computed once; a refused step surfaces as ErrMoveFailed so the runner
// can revise.
type GoToPlan struct {
	base
}

func newGoToPlan(env Env, parent *intention.Intention) *GoToPlan {
	return &GoToPlan{base: base{env: env, parent: parent}}
}

func (p *GoToPlan) Execute(ctx context.Context, pred domain.Predicate) error {
	snap := p.env.Beliefs.Snapshot()
	if snap.Grid == nil || !snap.HasSelf {
		return fmt.Errorf("go-to %s: %w", pred.Destination.Key(), domain.ErrStateMismatch)
	}

	path, err := grid.FindPath(snap.Grid, snap.Self.Pos(), pred.Destination, snap.OccupiedFn())
	if err != nil {
		return fmt.Errorf("go-to %s: %w", pred.Destination.Key(), err)
	}

	for i, mv := range path.Moves {
		if p.stopped(ctx) {
			return domain.ErrStopped
		}
		if err := p.env.Actuator.Move(ctx, mv); err != nil {
			return fmt.Errorf("go-to %s step %d (%s): %w", pred.Destination.Key(), i, mv, err)
		}
	}
	return nil
}
