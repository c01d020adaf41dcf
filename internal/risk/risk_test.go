package risk

import "testing"

func TestAllow(t *testing.T) {
	limits := Limits{MaxNotionalPerTrade: 50}
	if !limits.Allow(49.9) {
		t.Fatalf("expected notional under limit to pass")
	}
	if limits.Allow(50.1) {
		t.Fatalf("expected notional above limit to fail")
	}
	if !(Limits{}).Allow(1e9) {
		t.Fatalf("unset limit should allow any notional")
	}
}

func TestAllowOpen(t *testing.T) {
	limits := Limits{MaxOpenPositions: 3}
	if !limits.AllowOpen(2) {
		t.Fatalf("expected open below cap to pass")
	}
	if limits.AllowOpen(3) {
		t.Fatalf("expected open at cap to fail")
	}
}

func TestClampLeverage(t *testing.T) {
	limits := Limits{MaxLeverage: 10}
	if got := limits.ClampLeverage(15); got != 10 {
		t.Fatalf("expected clamp to 10, got %d", got)
	}
	if got := limits.ClampLeverage(5); got != 5 {
		t.Fatalf("expected 5 untouched, got %d", got)
	}
	if got := limits.ClampLeverage(0); got != 1 {
		t.Fatalf("expected floor of 1, got %d", got)
	}
}
