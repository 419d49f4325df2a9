package beliefs

import (
	"testing"
	"time"

	"gridcourier/internal/domain"
	"gridcourier/internal/grid"
)

func testConfig() domain.GameConfig {
	return domain.GameConfig{
		MovementDuration:           domain.Interval{Duration: 100 * time.Millisecond},
		ParcelDecayInterval:        domain.Interval{Duration: time.Second},
		ParcelsObservationDistance: 5,
	}
}

func newTestSet(t *testing.T) (*Set, *time.Time) {
	t.Helper()
	s := New(nil)
	now := time.Now()
	s.now = func() time.Time { return now }
	s.UpdateFromConfig(testConfig())
	s.UpdateFromYou(domain.Agent{ID: "me", X: 0, Y: 0})
	return s, &now
}

func mapTiles(rows ...string) (int, int, []grid.Tile) {
	g, _ := grid.FromASCII(rows...)
	var tiles []grid.Tile
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			p := domain.Point{X: x, Y: y}
			tiles = append(tiles, grid.Tile{X: x, Y: y, Type: int(g.At(p))})
		}
	}
	return g.Width(), g.Height(), tiles
}

func TestUpdateFromMapIdempotent(t *testing.T) {
	s, _ := newTestSet(t)
	w, h, tiles := mapTiles("P . . . D")

	s.UpdateFromMap(w, h, tiles)
	snap := s.Snapshot()
	if len(snap.Generators) != 1 || len(snap.Delivery) != 1 {
		t.Fatalf("strategic points = %d gen, %d del", len(snap.Generators), len(snap.Delivery))
	}
	if snap.LongestPath != 4 {
		t.Fatalf("longest path = %d, want 4", snap.LongestPath)
	}

	s.UpdateFromMap(w, h, tiles)
	again := s.Snapshot()
	if again.LongestPath != snap.LongestPath ||
		len(again.Generators) != len(snap.Generators) ||
		len(again.Delivery) != len(snap.Delivery) {
		t.Fatalf("re-issuing the same map changed derived state")
	}
}

func TestParcelReconciliationIdempotent(t *testing.T) {
	s, _ := newTestSet(t)
	sensed := []domain.Parcel{
		{ID: "p1", X: 1, Y: 0, Reward: 10},
		{ID: "p2", X: 2, Y: 0, Reward: 4},
	}
	s.UpdateFromParcels(sensed)
	first := s.Parcels()
	s.UpdateFromParcels(sensed)
	second := s.Parcels()

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("parcel counts = %d then %d, want 2", len(first), len(second))
	}
	if _, ok := s.ParcelAt(domain.Point{X: 1, Y: 0}); !ok {
		t.Fatalf("active positions lost p1")
	}
}

func TestParcelMissingInsideViewIsRemoved(t *testing.T) {
	s, _ := newTestSet(t)
	s.UpdateFromParcels([]domain.Parcel{{ID: "p1", X: 1, Y: 0, Reward: 10}})

	// (1,0) is within the observation radius of (0,0); an empty sensing
	// there means the parcel is gone.
	s.UpdateFromParcels(nil)
	if got := s.Parcels(); len(got) != 0 {
		t.Fatalf("expected removal of visible missing parcel, got %v", got)
	}
	if _, ok := s.ParcelAt(domain.Point{X: 1, Y: 0}); ok {
		t.Fatalf("active positions kept removed parcel")
	}
}

func TestParcelMissingOutsideViewGoesOutdated(t *testing.T) {
	s, now := newTestSet(t)
	s.UpdateFromParcels([]domain.Parcel{{ID: "far", X: 20, Y: 0, Reward: 3}})

	s.UpdateFromParcels(nil)
	parcels := s.Parcels()
	if len(parcels) != 1 || !parcels[0].Outdated {
		t.Fatalf("expected one outdated parcel, got %+v", parcels)
	}

	// S6: reward 3, decay interval 1s; at +3.5s the parcel is evicted.
	*now = now.Add(3500 * time.Millisecond)
	if got := s.Parcels(); len(got) != 0 {
		t.Fatalf("expected decay eviction, got %+v", got)
	}
	if _, ok := s.ParcelAt(domain.Point{X: 20, Y: 0}); ok {
		t.Fatalf("active positions kept evicted parcel")
	}
}

func TestOutdatedParcelDecaysOnRead(t *testing.T) {
	s, now := newTestSet(t)
	s.UpdateFromParcels([]domain.Parcel{{ID: "far", X: 20, Y: 0, Reward: 5}})
	s.UpdateFromParcels(nil)

	*now = now.Add(2 * time.Second)
	parcels := s.Parcels()
	if len(parcels) != 1 || parcels[0].Reward != 3 {
		t.Fatalf("decayed read = %+v, want reward 3", parcels)
	}
}

func TestOccupancyDecay(t *testing.T) {
	s, now := newTestSet(t)
	w, h, tiles := mapTiles("P . . . D")
	s.UpdateFromMap(w, h, tiles)

	s.UpdateFromAgents([]domain.Agent{{ID: "rival", X: 2, Y: 0}})
	snap := s.Snapshot()
	if !snap.OccupiedFn()(domain.Point{X: 2, Y: 0}) {
		t.Fatalf("tile must be occupied right after sighting")
	}

	// Horizon is longestPath(4) x movementDuration(100ms) = 400ms.
	*now = now.Add(500 * time.Millisecond)
	s.UpdateFromAgents(nil)
	snap = s.Snapshot()
	if snap.OccupiedFn()(domain.Point{X: 2, Y: 0}) {
		t.Fatalf("stale occupancy entry must be forgotten")
	}
	if len(snap.OtherAgents) != 0 {
		t.Fatalf("stale agent sighting must be forgotten, got %v", snap.OtherAgents)
	}
}

func TestTeammateSightingsBypassOccupancy(t *testing.T) {
	s, _ := newTestSet(t)
	s.SetTeammateID("mate")
	s.UpdateFromAgents([]domain.Agent{{ID: "mate", X: 3, Y: 0}})

	snap := s.Snapshot()
	if len(snap.OtherAgents) != 0 {
		t.Fatalf("teammate must not appear among adversaries")
	}
	mate, ok := s.Teammate()
	if !ok || mate.ID != "mate" {
		t.Fatalf("teammate record missing: %+v ok=%v", mate, ok)
	}
}

func TestCarriedInventoryHooks(t *testing.T) {
	s, _ := newTestSet(t)
	s.UpdateFromParcels([]domain.Parcel{{ID: "p1", X: 0, Y: 0, Reward: 10}})

	s.AddCarryingParcel(domain.Parcel{ID: "p1", X: 0, Y: 0, Reward: 10})
	snap := s.Snapshot()
	if snap.CarriedCount != 1 || snap.CarriedReward != 10 {
		t.Fatalf("carried = %d/%d", snap.CarriedCount, snap.CarriedReward)
	}
	if _, ok := s.ParcelAt(domain.Point{X: 0, Y: 0}); ok {
		t.Fatalf("carried parcel must leave active positions")
	}

	s.ClearCarryingParcels()
	snap = s.Snapshot()
	if snap.CarriedCount != 0 || snap.CarriedReward != 0 {
		t.Fatalf("inventory must be empty after drop")
	}
	if got := s.Carrying(); len(got) != 0 {
		t.Fatalf("carrying = %v", got)
	}
}

func TestCarriedBySelfJoinsInventory(t *testing.T) {
	s, _ := newTestSet(t)
	s.UpdateFromParcels([]domain.Parcel{{ID: "p1", X: 0, Y: 0, Reward: 7, CarriedBy: "me"}})
	if got := s.Carrying(); len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("sensor-carried parcel must join inventory, got %v", got)
	}
}
