package grid

import (
	"container/heap"

	"gridcourier/internal/domain"
)

// Path is a sequence of primitive moves and its uniform step cost.
type Path struct {
	Moves []domain.Move
	Cost  int
}

var neighborMoves = [4]domain.Move{domain.MoveUp, domain.MoveRight, domain.MoveDown, domain.MoveLeft}

// FindPath runs A* with the Manhattan heuristic and uniform step cost 1.
// Neighbours exclude non-walkable tiles and tiles in the occupancy set.
// Both endpoints must be walkable and unoccupied, otherwise the search
// fails with ErrPathNotFound. start == goal yields an empty path of cost
// 0. Ties in the open set break by insertion order.
func FindPath(g *Grid, start, goal domain.Point, occupied Occupied) (Path, error) {
	if !g.Walkable(start) || !g.Walkable(goal) {
		return Path{}, domain.ErrPathNotFound
	}
	if occupied != nil && (occupied(start) || occupied(goal)) {
		return Path{}, domain.ErrPathNotFound
	}
	if start == goal {
		return Path{Moves: []domain.Move{}, Cost: 0}, nil
	}

	open := &openSet{}
	heap.Init(open)
	gScore := map[domain.Point]int{start: 0}
	cameFrom := map[domain.Point]domain.Point{}
	closed := map[domain.Point]bool{}

	open.push(start, start.ManhattanTo(goal))

	for open.Len() > 0 {
		current := heap.Pop(open).(*openItem).point
		if current == goal {
			return reconstruct(cameFrom, start, goal), nil
		}
		if closed[current] {
			continue
		}
		closed[current] = true

		for _, mv := range neighborMoves {
			dx, dy := mv.Delta()
			next := domain.Point{X: current.X + dx, Y: current.Y + dy}
			if !g.Walkable(next) {
				continue
			}
			if occupied != nil && occupied(next) {
				continue
			}
			tentative := gScore[current] + 1
			if prev, ok := gScore[next]; ok && tentative >= prev {
				continue
			}
			gScore[next] = tentative
			cameFrom[next] = current
			open.push(next, tentative+next.ManhattanTo(goal))
		}
	}
	return Path{}, domain.ErrPathNotFound
}

func reconstruct(cameFrom map[domain.Point]domain.Point, start, goal domain.Point) Path {
	var reversed []domain.Point
	for at := goal; at != start; at = cameFrom[at] {
		reversed = append(reversed, at)
	}
	moves := make([]domain.Move, 0, len(reversed))
	prev := start
	for i := len(reversed) - 1; i >= 0; i-- {
		moves = append(moves, moveBetween(prev, reversed[i]))
		prev = reversed[i]
	}
	return Path{Moves: moves, Cost: len(moves)}
}

func moveBetween(from, to domain.Point) domain.Move {
	switch {
	case to.X > from.X:
		return domain.MoveRight
	case to.X < from.X:
		return domain.MoveLeft
	case to.Y > from.Y:
		return domain.MoveUp
	default:
		return domain.MoveDown
	}
}

// Distance is FindPath reduced to its cost, with -1 for unreachable.
func Distance(g *Grid, from, to domain.Point, occupied Occupied) int {
	path, err := FindPath(g, from, to, occupied)
	if err != nil {
		return -1
	}
	return path.Cost
}

type openItem struct {
	point    domain.Point
	priority int
	seq      int
}

type openSet struct {
	items []*openItem
	next  int
}

func (s *openSet) push(p domain.Point, priority int) {
	heap.Push(s, &openItem{point: p, priority: priority, seq: s.next})
	s.next++
}

func (s *openSet) Len() int { return len(s.items) }

func (s *openSet) Less(i, j int) bool {
	if s.items[i].priority != s.items[j].priority {
		return s.items[i].priority < s.items[j].priority
	}
	return s.items[i].seq < s.items[j].seq
}

func (s *openSet) Swap(i, j int) {
	s.items[i], s.items[j] = s.items[j], s.items[i]
}

func (s *openSet) Push(x any) {
	s.items = append(s.items, x.(*openItem))
}

func (s *openSet) Pop() any {
	old := s.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	s.items = old[:n-1]
	return item
}
