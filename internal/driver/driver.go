// Package driver assembles the decision loop: sensor events feed the
// belief set, belief changes trigger option generation, and the runner
// executes the winning intentions through the plan library.
package driver

import (
	"context"
	"log"
	"sync"
	"time"

	"gridcourier/internal/beliefs"
	"gridcourier/internal/comms"
	"gridcourier/internal/domain"
	"gridcourier/internal/grid"
	"gridcourier/internal/intention"
	"gridcourier/internal/options"
	"gridcourier/internal/plans"
	"gridcourier/internal/policy"
	"gridcourier/internal/transport/ws"
)

type Options struct {
	Beliefs  *beliefs.Set
	Actuator plans.Actuator

	// Comms is nil in single-agent mode.
	Comms *comms.Node

	Policy       *policy.Engine
	LoopInterval time.Duration
	Logger       *log.Logger
	Tracer       intention.Tracer
}

type Driver struct {
	beliefs   *beliefs.Set
	queue     *intention.Queue
	runner    *intention.Runner
	generator *options.Generator
	comms     *comms.Node
	logger    *log.Logger

	genMu sync.Mutex
}

func New(opts Options) *Driver {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Policy == nil {
		opts.Policy = policy.New(policy.DefaultMargin)
	}

	d := &Driver{
		beliefs: opts.Beliefs,
		comms:   opts.Comms,
		logger:  opts.Logger,
	}

	env := plans.Env{
		Beliefs:  opts.Beliefs,
		Actuator: opts.Actuator,
		Logger:   opts.Logger,
	}
	if opts.Comms != nil {
		env.Coordinator = opts.Comms
	}

	d.queue = intention.NewQueue(opts.Logger)
	d.queue.OnEmpty(d.Generate)
	d.generator = options.New(opts.Beliefs, d.queue, opts.Policy, opts.Logger, opts.Tracer)
	d.runner = intention.NewRunner(d.queue, plans.Library(env), d.validate, opts.LoopInterval, opts.Logger, opts.Tracer)
	return d
}

// Queue exposes the intention queue, mainly to tests and diagnostics.
func (d *Driver) Queue() *intention.Queue {
	return d.queue
}

// Generate runs one option-generation pass. Safe to call from sensor,
// runner and comms goroutines.
func (d *Driver) Generate() {
	d.genMu.Lock()
	defer d.genMu.Unlock()
	d.generator.Generate()
}

// Run blocks until the context is cancelled.
func (d *Driver) Run(ctx context.Context) {
	d.runner.Run(ctx)
}

// validate drops head intentions the beliefs no longer support.
func (d *Driver) validate(p domain.Predicate) bool {
	snap := d.beliefs.Snapshot()
	switch p.Type {
	case domain.DesireDeliver:
		return snap.CarriedCount > 0
	case domain.DesirePickup:
		for _, parcel := range snap.Parcels {
			if parcel.ID == p.ParcelID {
				return parcel.CarriedBy == "" || parcel.CarriedBy == snap.Self.ID
			}
		}
		return false
	}
	return true
}

// Handlers adapts the driver to the transport's sensor callbacks. Every
// belief-changing event triggers a generation pass, and local sensing is
// forwarded to the teammate.
func (d *Driver) Handlers(ctx context.Context) ws.Handlers {
	return ws.Handlers{
		OnYou: func(a domain.Agent) {
			d.beliefs.UpdateFromYou(a)
			if d.comms != nil {
				d.comms.ShareMyInfo(ctx, a)
			}
			d.Generate()
		},
		OnConfig: func(cfg domain.GameConfig) {
			d.beliefs.UpdateFromConfig(cfg)
		},
		OnMap: func(width, height int, tiles []grid.Tile) {
			d.beliefs.UpdateFromMap(width, height, tiles)
		},
		OnParcels: func(parcels []domain.Parcel) {
			d.beliefs.UpdateFromParcels(parcels)
			if d.comms != nil {
				d.comms.ShareParcels(ctx, parcels)
			}
			d.Generate()
		},
		OnAgents: func(agents []domain.Agent) {
			d.beliefs.UpdateFromAgents(agents)
			if d.comms != nil {
				d.comms.ShareAgents(ctx, agents)
			}
			d.Generate()
		},
	}
}
