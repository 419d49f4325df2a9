package utility

import (
	"sort"

	"gridcourier/internal/domain"
	"gridcourier/internal/grid"
)

// ComputePartitioning splits the parcel generators among the given
// agents in two phases: a Voronoi assignment by A* distance, then a
// capacity rebalancing so the load differs by at most one generator.
// The result is deterministic for a given grid and agent positions:
// agents are ordered lexicographically by id, generators in row-major
// order, and every tie breaks toward the earlier entry.
func ComputePartitioning(world *grid.Grid, agents []domain.Agent) domain.Partitioning {
	if world == nil || len(agents) == 0 {
		return domain.Partitioning{}
	}
	ordered := append([]domain.Agent(nil), agents...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	generators := world.ParcelGenerators()
	if len(generators) == 0 {
		return domain.Partitioning{}
	}

	// dist[g][a] is the A* cost from agent a to generator g on the bare
	// grid; occupancy is transient and would make the split unstable.
	dist := make([][]int, len(generators))
	owner := make([]int, len(generators))
	for gi, gen := range generators {
		dist[gi] = make([]int, len(ordered))
		best := -1
		for ai, agent := range ordered {
			d := grid.Distance(world, agent.Pos(), gen, nil)
			if d < 0 {
				d = gen.ManhattanTo(agent.Pos()) + world.Width()*world.Height()
			}
			dist[gi][ai] = d
			if best < 0 || d < dist[gi][best] {
				best = ai
			}
		}
		owner[gi] = best
	}

	rebalance(generators, dist, owner, len(ordered))

	out := make(domain.Partitioning, len(generators))
	for gi, gen := range generators {
		out[gen.Key()] = ordered[owner[gi]].ID
	}
	return out
}

// rebalance moves single generators from overloaded to underloaded
// agents, each time choosing the move with the minimal distance penalty,
// until every agent is within its capacity or no valid move remains.
func rebalance(generators []domain.Point, dist [][]int, owner []int, agentCount int) {
	capacity := make([]int, agentCount)
	base := len(generators) / agentCount
	extra := len(generators) % agentCount
	for ai := range capacity {
		capacity[ai] = base
		if ai < extra {
			capacity[ai]++
		}
	}

	load := make([]int, agentCount)
	for _, o := range owner {
		load[o]++
	}

	for {
		over := -1
		for ai := range load {
			if load[ai] > capacity[ai] {
				over = ai
				break
			}
		}
		if over < 0 {
			return
		}

		bestGen, bestTarget, bestPenalty := -1, -1, 0
		for gi := range generators {
			if owner[gi] != over {
				continue
			}
			for ai := 0; ai < agentCount; ai++ {
				if ai == over || load[ai] >= capacity[ai] {
					continue
				}
				penalty := dist[gi][ai] - dist[gi][over]
				if bestGen < 0 || penalty < bestPenalty {
					bestGen, bestTarget, bestPenalty = gi, ai, penalty
				}
			}
		}
		if bestGen < 0 {
			return
		}
		owner[bestGen] = bestTarget
		load[over]--
		load[bestTarget]++
	}
}
