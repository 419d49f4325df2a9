package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Interval
		err  bool
	}{
		{name: "bare millis", in: "400", want: Interval{Duration: 400 * time.Millisecond}},
		{name: "explicit ms", in: "250ms", want: Interval{Duration: 250 * time.Millisecond}},
		{name: "seconds", in: "2s", want: Interval{Duration: 2 * time.Second}},
		{name: "minutes", in: "1m", want: Interval{Duration: time.Minute}},
		{name: "hours", in: "1h", want: Interval{Duration: time.Hour}},
		{name: "infinite", in: "infinite", want: Interval{Infinite: true}},
		{name: "uppercase infinite", in: "INFINITE", want: Interval{Infinite: true}},
		{name: "garbage", in: "soon", err: true},
		{name: "negative", in: "-5s", err: true},
		{name: "empty", in: "", err: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseInterval(tc.in)
			if tc.err {
				if err == nil {
					t.Fatalf("ParseInterval(%q) expected error, got %+v", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInterval(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ParseInterval(%q)=%+v want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestGameConfigDecode(t *testing.T) {
	raw := []byte(`{
		"MAP_FILE": "default_map",
		"PARCELS_GENERATION_INTERVAL": "2s",
		"PARCELS_MAX": 10,
		"MOVEMENT_DURATION": 500,
		"PARCEL_DECADING_INTERVAL": "1s",
		"CLOCK": 50
	}`)
	var cfg GameConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.ParcelsGenerationInterval.Duration != 2*time.Second {
		t.Fatalf("generation interval = %v", cfg.ParcelsGenerationInterval.Duration)
	}
	if cfg.MovementStepDuration() != 500*time.Millisecond {
		t.Fatalf("movement duration = %v", cfg.MovementStepDuration())
	}
	if cfg.DecayInterval() != time.Second {
		t.Fatalf("decay interval = %v", cfg.DecayInterval())
	}

	var infinite GameConfig
	if err := json.Unmarshal([]byte(`{"PARCEL_DECADING_INTERVAL":"infinite"}`), &infinite); err != nil {
		t.Fatalf("decode infinite: %v", err)
	}
	if infinite.DecayInterval() != 0 {
		t.Fatalf("infinite decay should disable decay, got %v", infinite.DecayInterval())
	}
}

func TestAgentMotionInference(t *testing.T) {
	still := Agent{ID: "a", X: 3, Y: 4}
	if still.IsMoving() {
		t.Fatalf("integer position must not be moving")
	}

	moving := Agent{ID: "a", X: 3.6, Y: 4}
	if !moving.IsMoving() {
		t.Fatalf("fractional position must be moving")
	}
	dx, dy := moving.MovementDirection()
	if dx != 1 || dy != 0 {
		t.Fatalf("direction = (%d,%d), want (1,0)", dx, dy)
	}

	backing := Agent{ID: "a", X: 3.4, Y: 4}
	dx, dy = backing.MovementDirection()
	if dx != -1 || dy != 0 {
		t.Fatalf("direction = (%d,%d), want (-1,0)", dx, dy)
	}

	vertical := Agent{ID: "a", X: 3, Y: 4.7}
	dx, dy = vertical.MovementDirection()
	if dx != 0 || dy != 1 {
		t.Fatalf("direction = (%d,%d), want (0,1)", dx, dy)
	}
}

func TestPointKeyRoundTrip(t *testing.T) {
	p := Point{X: 7, Y: -2}
	got, err := ParsePointKey(p.Key())
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	if got != p {
		t.Fatalf("round trip %v -> %v", p, got)
	}
	if _, err := ParsePointKey("7"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}

func TestDecayedReward(t *testing.T) {
	t0 := time.Now()
	p := ExtendedParcel{
		Parcel:         Parcel{ID: "p1", X: 1, Y: 1, Reward: 3},
		Outdated:       true,
		LastSeenAt:     t0,
		LastSeenReward: 3,
	}
	if got := p.DecayedReward(t0.Add(500*time.Millisecond), time.Second); got != 3 {
		t.Fatalf("reward before first decay = %d", got)
	}
	if got := p.DecayedReward(t0.Add(2500*time.Millisecond), time.Second); got != 1 {
		t.Fatalf("reward after 2 decays = %d", got)
	}
	if got := p.DecayedReward(t0.Add(10*time.Second), time.Second); got != 0 {
		t.Fatalf("reward must clamp at 0, got %d", got)
	}

	fresh := ExtendedParcel{Parcel: Parcel{ID: "p2", Reward: 5}}
	if got := fresh.DecayedReward(t0.Add(time.Hour), time.Second); got != 5 {
		t.Fatalf("fresh parcel must not decay, got %d", got)
	}
}
