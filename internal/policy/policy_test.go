package policy

import (
	"math"
	"testing"

	"gridcourier/internal/domain"
)

func TestShouldAdopt(t *testing.T) {
	e := New(0.05)
	current := domain.Predicate{Type: domain.DesirePickup, Destination: domain.Point{X: 2}, ParcelID: "p1", Utility: 0.02}

	cases := []struct {
		name       string
		hasCurrent bool
		candidate  domain.Predicate
		want       bool
	}{
		{"empty queue adopts", false, domain.Predicate{Type: domain.DesireExploration, Utility: 0}, true},
		{"unreachable never adopts", false, domain.Predicate{Utility: math.Inf(-1)}, false},
		{"same predicate is a no-op", true, domain.Predicate{Type: domain.DesirePickup, Destination: domain.Point{X: 2}, ParcelID: "p1", Utility: 9}, false},
		{"within margin keeps current", true, domain.Predicate{Type: domain.DesirePickup, ParcelID: "p2", Utility: 0.06}, false},
		{"beyond margin preempts", true, domain.Predicate{Type: domain.DesirePickup, ParcelID: "p2", Utility: 0.08}, true},
		{"infinite utility always preempts", true, domain.Predicate{Type: domain.DesireDeliver, Utility: math.Inf(1)}, true},
	}
	for _, tc := range cases {
		got, reason := e.ShouldAdopt(current, tc.hasCurrent, tc.candidate)
		if got != tc.want {
			t.Fatalf("%s: adopt = %v (%s), want %v", tc.name, got, reason, tc.want)
		}
	}
}

func TestNegativeMarginFallsBackToDefault(t *testing.T) {
	e := New(-1)
	current := domain.Predicate{Type: domain.DesireGoTo, Utility: 0.10}
	candidate := domain.Predicate{Type: domain.DesirePickup, ParcelID: "p", Utility: 0.14}
	if ok, _ := e.ShouldAdopt(current, true, candidate); ok {
		t.Fatalf("0.14 must not beat 0.10 under the default 0.05 margin")
	}
	candidate.Utility = 0.16
	if ok, _ := e.ShouldAdopt(current, true, candidate); !ok {
		t.Fatalf("0.16 must beat 0.10 under the default 0.05 margin")
	}
}
