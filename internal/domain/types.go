package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Move string

const (
	MoveUp    Move = "up"
	MoveDown  Move = "down"
	MoveLeft  Move = "left"
	MoveRight Move = "right"
)

// Delta returns the grid displacement of one step in this direction.
// The origin is the bottom-left corner: up increases y, right increases x.
func (m Move) Delta() (dx, dy int) {
	switch m {
	case MoveUp:
		return 0, 1
	case MoveDown:
		return 0, -1
	case MoveLeft:
		return -1, 0
	case MoveRight:
		return 1, 0
	}
	return 0, 0
}

// TileType uses the canonical encoding of the simulator map stream:
// 0=NonWalkable, 1=ParcelGenerator, 2=Delivery, 3=Walkable. The legacy
// dialect (1=Walkable, 2=Delivery) is not supported.
type TileType int

const (
	TileNonWalkable     TileType = 0
	TileParcelGenerator TileType = 1
	TileDelivery        TileType = 2
	TileWalkable        TileType = 3
)

func (t TileType) Walkable() bool {
	return t != TileNonWalkable
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Key renders the point as "x,y", the form used by partitioning and
// occupancy maps on the wire.
func (p Point) Key() string {
	return strconv.Itoa(p.X) + "," + strconv.Itoa(p.Y)
}

func (p Point) ManhattanTo(q Point) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y)
}

func ParsePointKey(key string) (Point, error) {
	parts := strings.SplitN(key, ",", 2)
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("invalid point key %q", key)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Point{}, fmt.Errorf("invalid point key %q: %w", key, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Point{}, fmt.Errorf("invalid point key %q: %w", key, err)
	}
	return Point{X: x, Y: y}, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Agent is a sensed agent. Positions are fractional while the agent is
// between tiles; the fractional part encodes movement direction
// (>0.5 toward +1, <0.5 toward -1).
type Agent struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Score   int     `json:"score"`
	Penalty float64 `json:"penalty,omitempty"`
}

// Pos rounds the fractional position to the nearest tile.
func (a Agent) Pos() Point {
	return Point{X: int(math.Round(a.X)), Y: int(math.Round(a.Y))}
}

// FloorPos is the tile an in-transit agent is stepping out of; for an
// agent at rest it equals Pos.
func (a Agent) FloorPos() Point {
	return Point{X: int(math.Floor(a.X)), Y: int(math.Floor(a.Y))}
}

func (a Agent) IsMoving() bool {
	return a.X != math.Trunc(a.X) || a.Y != math.Trunc(a.Y)
}

// MovementDirection decodes the per-axis direction from the fractional
// part polarity. Zero on an axis means no motion along it.
func (a Agent) MovementDirection() (dx, dy int) {
	return axisDirection(a.X), axisDirection(a.Y)
}

func axisDirection(v float64) int {
	frac := v - math.Floor(v)
	if frac == 0 {
		return 0
	}
	if frac > 0.5 {
		return 1
	}
	return -1
}

type Parcel struct {
	ID        string `json:"id"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Reward    int    `json:"reward"`
	CarriedBy string `json:"carriedBy,omitempty"`
}

func (p Parcel) Pos() Point {
	return Point{X: p.X, Y: p.Y}
}

// ExtendedParcel is a belief-set parcel with staleness bookkeeping. An
// outdated parcel was known but fell outside the last sensing radius; its
// reward decays from LastSeenReward by one unit per decay interval.
type ExtendedParcel struct {
	Parcel
	Outdated       bool
	LastSeenAt     time.Time
	LastSeenReward int
}

// DecayedReward applies the lazy decay policy at the given instant.
func (p ExtendedParcel) DecayedReward(now time.Time, decayInterval time.Duration) int {
	if !p.Outdated || decayInterval <= 0 {
		return p.Reward
	}
	elapsed := now.Sub(p.LastSeenAt)
	if elapsed <= 0 {
		return p.LastSeenReward
	}
	decays := int(elapsed / decayInterval)
	reward := p.LastSeenReward - decays
	if reward < 0 {
		return 0
	}
	return reward
}

type DesireType string

const (
	DesirePickup      DesireType = "pickup"
	DesireDeliver     DesireType = "deliver"
	DesireExploration DesireType = "exploration"
	DesireGoTo        DesireType = "goto"
)

// Predicate is a typed goal with its score. ParcelID is set iff the type
// is DesirePickup.
type Predicate struct {
	Type        DesireType `json:"type"`
	Destination Point      `json:"destination"`
	ParcelID    string     `json:"parcel_id,omitempty"`
	Utility     float64    `json:"utility"`
}

// Same reports whether two predicates describe the same goal, ignoring
// the utility field.
func (p Predicate) Same(q Predicate) bool {
	return p.Type == q.Type && p.Destination == q.Destination && p.ParcelID == q.ParcelID
}

// Partitioning maps parcel-generator tile keys ("x,y") to the agent id
// responsible for them.
type Partitioning map[string]string

func (p Partitioning) AssignedTo(pt Point, agentID string) bool {
	owner, ok := p[pt.Key()]
	return ok && owner == agentID
}

// Clone returns a deep copy; partitionings cross goroutine boundaries on
// every broadcast.
func (p Partitioning) Clone() Partitioning {
	if p == nil {
		return nil
	}
	out := make(Partitioning, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

type TourStopType string

const (
	TourStopPickup   TourStopType = "pickup"
	TourStopDelivery TourStopType = "delivery"
)

// TourStop is one leg of a multi-stop plan produced by the utility
// evaluator. The runtime commits one stop at a time.
type TourStop struct {
	Type     TourStopType
	Position Point
	Parcel   *Parcel
}

type Tour struct {
	Stops   []TourStop
	Utility float64
}

// Interval is a simulator duration in the compact wire encoding
// `\d+(ms|s|m|h)?` (default unit ms) or the literal `infinite`. Numeric
// JSON values are taken as milliseconds.
type Interval struct {
	Duration time.Duration
	Infinite bool
}

func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Interval{}, fmt.Errorf("empty interval")
	}
	if s == "infinite" {
		return Interval{Infinite: true}, nil
	}
	unit := time.Millisecond
	digits := s
	switch {
	case strings.HasSuffix(s, "ms"):
		digits = strings.TrimSuffix(s, "ms")
	case strings.HasSuffix(s, "s"):
		digits, unit = strings.TrimSuffix(s, "s"), time.Second
	case strings.HasSuffix(s, "m"):
		digits, unit = strings.TrimSuffix(s, "m"), time.Minute
	case strings.HasSuffix(s, "h"):
		digits, unit = strings.TrimSuffix(s, "h"), time.Hour
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return Interval{}, fmt.Errorf("invalid interval %q", s)
	}
	return Interval{Duration: time.Duration(n) * unit}, nil
}

func (i *Interval) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		i.Duration = time.Duration(v) * time.Millisecond
		i.Infinite = false
		return nil
	case string:
		parsed, err := ParseInterval(v)
		if err != nil {
			return err
		}
		*i = parsed
		return nil
	default:
		return fmt.Errorf("interval must be a number or string, got %T", raw)
	}
}

func (i Interval) MarshalJSON() ([]byte, error) {
	if i.Infinite {
		return json.Marshal("infinite")
	}
	return json.Marshal(i.Duration.Milliseconds())
}

// GameConfig mirrors the simulator's CONFIG event. Field names follow the
// upstream wire format.
type GameConfig struct {
	MapFile                    string   `json:"MAP_FILE"`
	ParcelsGenerationInterval  Interval `json:"PARCELS_GENERATION_INTERVAL"`
	ParcelsMax                 int      `json:"PARCELS_MAX"`
	MovementSteps              int      `json:"MOVEMENT_STEPS"`
	MovementDuration           Interval `json:"MOVEMENT_DURATION"`
	AgentsObservationDistance  int      `json:"AGENTS_OBSERVATION_DISTANCE"`
	ParcelsObservationDistance int      `json:"PARCELS_OBSERVATION_DISTANCE"`
	AgentTimeout               Interval `json:"AGENT_TIMEOUT"`
	ParcelRewardAvg            int      `json:"PARCEL_REWARD_AVG"`
	ParcelRewardVariance       int      `json:"PARCEL_REWARD_VARIANCE"`
	ParcelDecayInterval        Interval `json:"PARCEL_DECADING_INTERVAL"`
	RandomlyMovingAgents       int      `json:"RANDOMLY_MOVING_AGENTS"`
	AgentSpeed                 float64  `json:"AGENT_SPEED"`
	Clock                      Interval `json:"CLOCK"`
}

// MovementStepDuration is the wall-clock cost of one grid step. Falls
// back to 50ms, the simulator default, when the config has not arrived.
func (c GameConfig) MovementStepDuration() time.Duration {
	if c.MovementDuration.Duration > 0 {
		return c.MovementDuration.Duration
	}
	return 50 * time.Millisecond
}

// DecayInterval returns the parcel decay period; zero means no decay
// (the simulator's "infinite").
func (c GameConfig) DecayInterval() time.Duration {
	if c.ParcelDecayInterval.Infinite {
		return 0
	}
	return c.ParcelDecayInterval.Duration
}

// Message is an inbound teammate payload delivered by the transport.
// Reply is non-nil only for ask-style requests and must be invoked at
// most once.
type Message struct {
	From    string
	To      string
	Payload []byte
	Reply   func([]byte) error
}
