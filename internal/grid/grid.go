// Package grid holds the immutable world map and the pathfinding
// primitives that operate on it.
package grid

import (
	"sort"

	"gridcourier/internal/domain"
)

// Tile is one entry of the simulator map stream.
type Tile struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Type int `json:"type"`
}

// Grid is an immutable width x height matrix of tile types. Tiles absent
// from the source list are non-walkable.
type Grid struct {
	width  int
	height int
	tiles  []domain.TileType
}

func New(width, height int, tiles []Tile) *Grid {
	g := &Grid{
		width:  width,
		height: height,
		tiles:  make([]domain.TileType, width*height),
	}
	for _, t := range tiles {
		if t.X < 0 || t.X >= width || t.Y < 0 || t.Y >= height {
			continue
		}
		g.tiles[t.Y*width+t.X] = domain.TileType(t.Type)
	}
	return g
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) InBounds(p domain.Point) bool {
	return p.X >= 0 && p.X < g.width && p.Y >= 0 && p.Y < g.height
}

func (g *Grid) At(p domain.Point) domain.TileType {
	if !g.InBounds(p) {
		return domain.TileNonWalkable
	}
	return g.tiles[p.Y*g.width+p.X]
}

func (g *Grid) Walkable(p domain.Point) bool {
	return g.At(p).Walkable()
}

// DeliveryZones lists delivery tiles in deterministic row-major order.
func (g *Grid) DeliveryZones() []domain.Point {
	return g.tilesOfType(domain.TileDelivery)
}

// ParcelGenerators lists generator tiles in deterministic row-major order.
func (g *Grid) ParcelGenerators() []domain.Point {
	return g.tilesOfType(domain.TileParcelGenerator)
}

func (g *Grid) tilesOfType(t domain.TileType) []domain.Point {
	var out []domain.Point
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if g.tiles[y*g.width+x] == t {
				out = append(out, domain.Point{X: x, Y: y})
			}
		}
	}
	return out
}

// Equal reports whether two grids have identical dimensions and tiles.
func (g *Grid) Equal(other *Grid) bool {
	if other == nil || g.width != other.width || g.height != other.height {
		return false
	}
	for i := range g.tiles {
		if g.tiles[i] != other.tiles[i] {
			return false
		}
	}
	return true
}

// Occupied reports whether a tile currently hosts another agent. A nil
// function means nothing is occupied.
type Occupied func(domain.Point) bool

// LongestPath probes the maximal shortest-path cost between any two
// strategic points (parcel generators and delivery zones). Candidate
// pairs are ranked by Manhattan distance and only the top candidates are
// A*-evaluated; the Manhattan distance lower-bounds the A* cost, so the
// true maximum is always among them unless blocked tiles stretch a
// shorter-ranked pair beyond every evaluated one, which the probe accepts
// as an estimate.
func (g *Grid) LongestPath() int {
	points := append(g.ParcelGenerators(), g.DeliveryZones()...)
	type pair struct {
		a, b     domain.Point
		manhattan int
	}
	var pairs []pair
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			pairs = append(pairs, pair{a: points[i], b: points[j], manhattan: points[i].ManhattanTo(points[j])})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].manhattan > pairs[j].manhattan })

	const probeCandidates = 10
	longest := 0
	for i, p := range pairs {
		if i >= probeCandidates {
			break
		}
		path, err := FindPath(g, p.a, p.b, nil)
		if err != nil {
			continue
		}
		if path.Cost > longest {
			longest = path.Cost
		}
	}
	return longest
}
