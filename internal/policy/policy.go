// Package policy decides whether a freshly generated option is worth
// adopting over the current commitment. Keeping the rule in one place
// stops the option generator and the queue from disagreeing about
// preemption.
package policy

import (
	"fmt"
	"math"

	"gridcourier/internal/domain"
)

// DefaultMargin is the utility improvement a candidate must show over
// the current intention before it preempts it. The margin damps
// oscillation between near-equal options as rewards decay.
const DefaultMargin = 0.05

type Engine struct {
	margin float64
}

func New(margin float64) *Engine {
	if margin < 0 {
		margin = DefaultMargin
	}
	return &Engine{margin: margin}
}

// ShouldAdopt reports whether candidate should be pushed given the
// current head predicate. hasCurrent is false when the queue is empty,
// in which case any finite-utility candidate is adopted.
func (e *Engine) ShouldAdopt(current domain.Predicate, hasCurrent bool, candidate domain.Predicate) (bool, string) {
	if math.IsInf(candidate.Utility, -1) {
		return false, "candidate unreachable"
	}
	if !hasCurrent {
		return true, "queue empty"
	}
	if candidate.Same(current) {
		return false, "already committed"
	}
	if math.IsInf(candidate.Utility, 1) {
		return true, "immediate opportunity"
	}
	if candidate.Utility > current.Utility+e.margin {
		return true, fmt.Sprintf("utility %.4f beats %.4f by more than %.2f",
			candidate.Utility, current.Utility, e.margin)
	}
	return false, fmt.Sprintf("utility %.4f within margin of current %.4f",
		candidate.Utility, current.Utility)
}
