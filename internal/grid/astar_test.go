package grid

import (
	"errors"
	"testing"

	"gridcourier/internal/domain"
)

func TestFindPathStraightLine(t *testing.T) {
	g, markers := FromASCII("S . P . D")
	start := markers['S'][0]

	path, err := FindPath(g, start, domain.Point{X: 4, Y: 0}, nil)
	if err != nil {
		t.Fatalf("find path: %v", err)
	}
	if path.Cost != 4 {
		t.Fatalf("cost = %d, want 4", path.Cost)
	}
	for i, mv := range path.Moves {
		if mv != domain.MoveRight {
			t.Fatalf("move[%d] = %s, want right", i, mv)
		}
	}
}

func TestFindPathSameStartAndGoal(t *testing.T) {
	g, _ := FromASCII(". . .")
	path, err := FindPath(g, domain.Point{X: 1, Y: 0}, domain.Point{X: 1, Y: 0}, nil)
	if err != nil {
		t.Fatalf("find path: %v", err)
	}
	if path.Cost != 0 || len(path.Moves) != 0 {
		t.Fatalf("expected empty path, got %+v", path)
	}
}

func TestFindPathAroundWalls(t *testing.T) {
	g, _ := FromASCII(
		". # .",
		". # .",
		". . .",
	)
	path, err := FindPath(g, domain.Point{X: 0, Y: 2}, domain.Point{X: 2, Y: 2}, nil)
	if err != nil {
		t.Fatalf("find path: %v", err)
	}
	if path.Cost != 6 {
		t.Fatalf("cost = %d, want 6", path.Cost)
	}
	// Replaying the moves must land on the goal over walkable tiles only.
	at := domain.Point{X: 0, Y: 2}
	for _, mv := range path.Moves {
		dx, dy := mv.Delta()
		at = domain.Point{X: at.X + dx, Y: at.Y + dy}
		if !g.Walkable(at) {
			t.Fatalf("path crosses non-walkable tile %v", at)
		}
	}
	if at != (domain.Point{X: 2, Y: 2}) {
		t.Fatalf("replay landed on %v", at)
	}
}

func TestFindPathRespectsOccupancy(t *testing.T) {
	g, _ := FromASCII(
		". . .",
		". . .",
	)
	blocked := domain.Point{X: 1, Y: 1}
	occupied := func(p domain.Point) bool { return p == blocked }

	path, err := FindPath(g, domain.Point{X: 0, Y: 1}, domain.Point{X: 2, Y: 1}, occupied)
	if err != nil {
		t.Fatalf("find path: %v", err)
	}
	if path.Cost != 4 {
		t.Fatalf("cost = %d, want 4 (detour)", path.Cost)
	}

	// Occupied goal fails outright.
	if _, err := FindPath(g, domain.Point{X: 0, Y: 1}, blocked, occupied); !errors.Is(err, domain.ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound for occupied goal, got %v", err)
	}
}

func TestFindPathUnreachable(t *testing.T) {
	g, _ := FromASCII(
		". # .",
		". # .",
	)
	_, err := FindPath(g, domain.Point{X: 0, Y: 0}, domain.Point{X: 2, Y: 0}, nil)
	if !errors.Is(err, domain.ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound, got %v", err)
	}

	// Non-walkable endpoints fail the precondition.
	if _, err := FindPath(g, domain.Point{X: 1, Y: 0}, domain.Point{X: 2, Y: 0}, nil); !errors.Is(err, domain.ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound for blocked start, got %v", err)
	}
}

func TestDistance(t *testing.T) {
	g, _ := FromASCII(". . D")
	if d := Distance(g, domain.Point{X: 0, Y: 0}, domain.Point{X: 2, Y: 0}, nil); d != 2 {
		t.Fatalf("distance = %d, want 2", d)
	}
	blocked, _ := FromASCII(". # D")
	if d := Distance(blocked, domain.Point{X: 0, Y: 0}, domain.Point{X: 2, Y: 0}, nil); d != -1 {
		t.Fatalf("distance = %d, want -1 for unreachable", d)
	}
}

func TestLongestPath(t *testing.T) {
	g, _ := FromASCII(
		"P . . . D",
	)
	if got := g.LongestPath(); got != 4 {
		t.Fatalf("longest path = %d, want 4", got)
	}

	detour, _ := FromASCII(
		"P # D",
		". # .",
		". . .",
	)
	if got := detour.LongestPath(); got != 6 {
		t.Fatalf("longest path with walls = %d, want 6", got)
	}
}

func TestGridLookups(t *testing.T) {
	g, _ := FromASCII(
		"P . D",
		". # .",
	)
	if g.Width() != 3 || g.Height() != 2 {
		t.Fatalf("dimensions = %dx%d", g.Width(), g.Height())
	}
	if g.At(domain.Point{X: 1, Y: 0}) != domain.TileNonWalkable {
		t.Fatalf("expected wall at (1,0)")
	}
	if g.Walkable(domain.Point{X: -1, Y: 0}) {
		t.Fatalf("out of bounds must not be walkable")
	}
	gens := g.ParcelGenerators()
	if len(gens) != 1 || gens[0] != (domain.Point{X: 0, Y: 1}) {
		t.Fatalf("generators = %v", gens)
	}
	zones := g.DeliveryZones()
	if len(zones) != 1 || zones[0] != (domain.Point{X: 2, Y: 1}) {
		t.Fatalf("delivery zones = %v", zones)
	}
}
