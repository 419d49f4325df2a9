// Package beliefs maintains the fused world model: self and teammate
// state, parcels with staleness bookkeeping, other agents, tile
// occupancy, the grid and its derived strategic points, and the
// cooperative partitioning. All mutation goes through the driver (sensor
// callbacks) and plan hooks; readers observe consistent snapshots.
package beliefs

import (
	"log"
	"sync"
	"time"

	"gridcourier/internal/domain"
	"gridcourier/internal/grid"
)

type agentSighting struct {
	agent  domain.Agent
	seenAt time.Time
}

type Set struct {
	mu     sync.Mutex
	logger *log.Logger
	now    func() time.Time

	self    domain.Agent
	hasSelf bool

	teammateID  string
	teammate    domain.Agent
	hasTeammate bool

	world         *grid.Grid
	deliveryZones []domain.Point
	generators    []domain.Point
	longestPath   int

	parcels         map[string]domain.ExtendedParcel
	activePositions map[string]string
	carrying        []domain.Parcel

	otherAgents map[string]agentSighting
	occupied    map[string]time.Time

	partitioning domain.Partitioning

	config    domain.GameConfig
	hasConfig bool
}

func New(logger *log.Logger) *Set {
	if logger == nil {
		logger = log.Default()
	}
	return &Set{
		logger:          logger,
		now:             time.Now,
		parcels:         make(map[string]domain.ExtendedParcel),
		activePositions: make(map[string]string),
		otherAgents:     make(map[string]agentSighting),
		occupied:        make(map[string]time.Time),
	}
}

// UpdateFromYou replaces the self state.
func (s *Set) UpdateFromYou(a domain.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.self = a
	s.hasSelf = true
}

// SetTeammateID marks which sensed agent id belongs to the handshake
// partner; its sightings are routed to the teammate slot instead of the
// adversary set.
func (s *Set) SetTeammateID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teammateID = id
	delete(s.otherAgents, id)
}

// UpdateTeammate records the teammate's own agent record, as shared over
// the session channel.
func (s *Set) UpdateTeammate(a domain.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teammate = a
	s.hasTeammate = true
	// The my_info record is authoritative for the teammate's id; the
	// handshake may only have known a display name.
	s.teammateID = a.ID
	delete(s.otherAgents, a.ID)
	if s.teammateID == "" {
		s.teammateID = a.ID
	}
	delete(s.otherAgents, a.ID)
}

// UpdateFromMap caches the grid and recomputes delivery zones, parcel
// generators and the longest-path probe. Re-issuing the same grid is a
// no-op beyond the recomputation, which is deterministic.
func (s *Set) UpdateFromMap(width, height int, tiles []grid.Tile) {
	g := grid.New(width, height, tiles)

	s.mu.Lock()
	if s.world != nil && s.world.Equal(g) {
		s.mu.Unlock()
		return
	}
	s.world = g
	s.deliveryZones = g.DeliveryZones()
	s.generators = g.ParcelGenerators()
	s.mu.Unlock()

	// LongestPath runs A* over strategic pairs; keep it outside the lock.
	longest := g.LongestPath()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.world == g {
		s.longestPath = longest
	}
}

// UpdateFromParcels reconciles a fresh sensor (or teammate) parcel list
// with memory. Received parcels are stored fresh. A known parcel missing
// from the list is removed when its position is evidently visible (it is
// within the parcel observation radius, or another parcel is reported on
// the same tile); otherwise it is marked outdated and its reward frozen
// for lazy decay.
func (s *Set) UpdateFromParcels(sensed []domain.Parcel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	received := make(map[string]bool, len(sensed))
	sensedPositions := make(map[string]bool, len(sensed))
	for _, p := range sensed {
		received[p.ID] = true
		if p.CarriedBy == "" {
			sensedPositions[p.Pos().Key()] = true
		}
		s.parcels[p.ID] = domain.ExtendedParcel{
			Parcel:         p,
			Outdated:       false,
			LastSeenAt:     now,
			LastSeenReward: p.Reward,
		}
		if s.hasSelf && p.CarriedBy == s.self.ID && !s.isCarrying(p.ID) {
			s.carrying = append(s.carrying, p)
		}
	}

	for id, known := range s.parcels {
		if received[id] {
			continue
		}
		pos := known.Pos()
		if s.positionVisible(pos) || sensedPositions[pos.Key()] {
			delete(s.parcels, id)
			continue
		}
		if !known.Outdated {
			known.Outdated = true
			known.LastSeenReward = known.Reward
			known.LastSeenAt = now
			s.parcels[id] = known
		}
	}

	s.rebuildActivePositions(now)
}

func (s *Set) positionVisible(p domain.Point) bool {
	if !s.hasSelf || !s.hasConfig || s.config.ParcelsObservationDistance <= 0 {
		return false
	}
	return s.self.Pos().ManhattanTo(p) < s.config.ParcelsObservationDistance
}

func (s *Set) isCarrying(parcelID string) bool {
	for _, c := range s.carrying {
		if c.ID == parcelID {
			return true
		}
	}
	return false
}

func (s *Set) rebuildActivePositions(now time.Time) {
	decay := s.config.DecayInterval()
	for k := range s.activePositions {
		delete(s.activePositions, k)
	}
	for id, p := range s.parcels {
		if p.CarriedBy != "" {
			continue
		}
		if p.DecayedReward(now, decay) <= 0 {
			continue
		}
		s.activePositions[p.Pos().Key()] = id
	}
}

// UpdateFromAgents refreshes the adversary set and the occupancy map,
// and forgets occupancy entries older than longestPath x movement
// duration.
func (s *Set) UpdateFromAgents(sensed []domain.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	for _, a := range sensed {
		if s.hasSelf && a.ID == s.self.ID {
			continue
		}
		if a.ID == s.teammateID {
			s.teammate = a
			s.hasTeammate = true
			continue
		}
		s.otherAgents[a.ID] = agentSighting{agent: a, seenAt: now}
		s.occupied[a.Pos().Key()] = now
	}

	horizon := s.occupancyHorizon()
	for key, seen := range s.occupied {
		if now.Sub(seen) > horizon {
			delete(s.occupied, key)
		}
	}
	for id, sighting := range s.otherAgents {
		if now.Sub(sighting.seenAt) > horizon {
			delete(s.otherAgents, id)
		}
	}
}

func (s *Set) occupancyHorizon() time.Duration {
	steps := s.longestPath
	if steps <= 0 {
		steps = 1
	}
	return time.Duration(steps) * s.config.MovementStepDuration()
}

// UpdateFromConfig caches the game config.
func (s *Set) UpdateFromConfig(cfg domain.GameConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	s.hasConfig = true
}

// AddCarryingParcel is the plan hook invoked after a successful pickup.
func (s *Set) AddCarryingParcel(p domain.Parcel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isCarrying(p.ID) {
		return
	}
	if s.hasSelf {
		p.CarriedBy = s.self.ID
	}
	s.carrying = append(s.carrying, p)
	if known, ok := s.parcels[p.ID]; ok {
		known.CarriedBy = p.CarriedBy
		s.parcels[p.ID] = known
		delete(s.activePositions, known.Pos().Key())
	}
}

// ClearCarryingParcels is the plan hook invoked after a successful drop.
func (s *Set) ClearCarryingParcels() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.carrying {
		delete(s.parcels, c.ID)
	}
	s.carrying = nil
}

func (s *Set) SetPartitioning(p domain.Partitioning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitioning = p.Clone()
}

// evictDecayed applies lazy decay and drops parcels whose reward reached
// zero. Callers must hold the lock.
func (s *Set) evictDecayed(now time.Time) {
	decay := s.config.DecayInterval()
	evicted := false
	for id, p := range s.parcels {
		if p.DecayedReward(now, decay) <= 0 {
			delete(s.parcels, id)
			evicted = true
		}
	}
	if evicted {
		s.rebuildActivePositions(now)
	}
}

// Self returns the latest self record, false before the first onYou.
func (s *Set) Self() (domain.Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self, s.hasSelf
}

func (s *Set) Teammate() (domain.Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teammate, s.hasTeammate
}

func (s *Set) TeammateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teammateID
}

func (s *Set) Grid() *grid.Grid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world
}

func (s *Set) Config() (domain.GameConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config, s.hasConfig
}

func (s *Set) LongestPath() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.longestPath
}

// Parcels returns all known parcels after lazy decay and eviction.
func (s *Set) Parcels() []domain.ExtendedParcel {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictDecayed(now)
	decay := s.config.DecayInterval()
	out := make([]domain.ExtendedParcel, 0, len(s.parcels))
	for _, p := range s.parcels {
		p.Reward = p.DecayedReward(now, decay)
		out = append(out, p)
	}
	return out
}

// ParcelAt answers the O(1) "is there a parcel under me" query.
func (s *Set) ParcelAt(pos domain.Point) (domain.ExtendedParcel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictDecayed(now)
	id, ok := s.activePositions[pos.Key()]
	if !ok {
		return domain.ExtendedParcel{}, false
	}
	p := s.parcels[id]
	p.Reward = p.DecayedReward(now, s.config.DecayInterval())
	return p, true
}

// Carrying returns the carried inventory.
func (s *Set) Carrying() []domain.Parcel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Parcel, len(s.carrying))
	copy(out, s.carrying)
	return out
}

// Snapshot captures everything the utility evaluator and option
// generator need, as plain values safe to read without the lock.
type Snapshot struct {
	Self        domain.Agent
	HasSelf     bool
	Grid        *grid.Grid
	Occupied    map[string]bool
	Parcels     []domain.ExtendedParcel
	OtherAgents []domain.Agent
	Delivery    []domain.Point
	Generators  []domain.Point
	LongestPath int

	CarriedReward int
	CarriedCount  int

	MovementDuration time.Duration
	DecayInterval    time.Duration

	TeammateID   string
	Partitioning domain.Partitioning
}

// OccupiedFn adapts the snapshot occupancy to the pathfinder contract.
// The self tile is never considered occupied.
func (snap Snapshot) OccupiedFn() grid.Occupied {
	self := snap.Self.Pos().Key()
	return func(p domain.Point) bool {
		key := p.Key()
		if key == self {
			return false
		}
		return snap.Occupied[key]
	}
}

func (s *Set) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictDecayed(now)
	decay := s.config.DecayInterval()

	snap := Snapshot{
		Self:             s.self,
		HasSelf:          s.hasSelf,
		Grid:             s.world,
		Occupied:         make(map[string]bool, len(s.occupied)),
		Parcels:          make([]domain.ExtendedParcel, 0, len(s.parcels)),
		OtherAgents:      make([]domain.Agent, 0, len(s.otherAgents)),
		Delivery:         append([]domain.Point(nil), s.deliveryZones...),
		Generators:       append([]domain.Point(nil), s.generators...),
		LongestPath:      s.longestPath,
		MovementDuration: s.config.MovementStepDuration(),
		DecayInterval:    decay,
		TeammateID:       s.teammateID,
		Partitioning:     s.partitioning.Clone(),
	}
	for key := range s.occupied {
		snap.Occupied[key] = true
	}
	for _, p := range s.parcels {
		p.Reward = p.DecayedReward(now, decay)
		snap.Parcels = append(snap.Parcels, p)
	}
	for _, sighting := range s.otherAgents {
		snap.OtherAgents = append(snap.OtherAgents, sighting.agent)
	}
	for _, c := range s.carrying {
		snap.CarriedReward += c.Reward
		snap.CarriedCount++
	}
	return snap
}
