package integration

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"daisybot-go/internal/exchange"
	"daisybot-go/internal/score"
	"daisybot-go/internal/signal"
	"daisybot-go/internal/sim"
)

// Drives the stub feeds through scoring into the engine and checks that
// strong regimes open positions, weak ones stay flat, and stale
// positions leave through the time exit.
func TestSimFlowOpensAndExpiresPositions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	symbols := []string{"BTC", "ETH", "SOL"}
	feed := exchange.NewFeed(exchange.ProviderStub, symbols, zerolog.Nop())
	analytics := exchange.NewAnalytics(exchange.ProviderStub, symbols, zerolog.Nop())

	prices, err := feed.Fetch(ctx)
	if err != nil {
		t.Fatalf("feed.Fetch returned error: %v", err)
	}
	indicators, err := analytics.Fetch(ctx)
	if err != nil {
		t.Fatalf("analytics.Fetch returned error: %v", err)
	}
	if len(prices) != len(symbols) || len(indicators) != len(symbols) {
		t.Fatalf("expected stub coverage for all symbols, got %d prices / %d indicators", len(prices), len(indicators))
	}

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start
	engine := sim.New(sim.Params{},
		sim.WithRand(rand.New(rand.NewSource(7))),
		sim.WithClock(func() time.Time { return now }),
		sim.WithLogger(zerolog.Nop()),
	)

	signals := make([]signal.Signal, 0, len(symbols))
	for sym, ind := range indicators {
		signals = append(signals, score.Compute(sym, ind))
	}

	result := engine.Tick(signals, prices)
	if len(result.Opened) != 2 {
		t.Fatalf("expected 2 positions from stub regimes, got %d", len(result.Opened))
	}
	directions := map[string]sim.Direction{}
	for _, pos := range result.Opened {
		directions[pos.Symbol] = pos.Direction
	}
	if directions["BTC"] != sim.Long {
		t.Fatalf("expected long BTC, got %+v", directions)
	}
	if directions["ETH"] != sim.Short {
		t.Fatalf("expected short ETH, got %+v", directions)
	}
	if _, ok := directions["SOL"]; ok {
		t.Fatalf("neutral SOL should not open a position")
	}

	// Past the hold limit every open position must be evicted.
	now = start.Add(10 * time.Minute)
	result = engine.Tick(nil, prices)
	if len(result.Closed) != 2 {
		t.Fatalf("expected 2 time exits, got %d", len(result.Closed))
	}
	for _, pos := range result.Closed {
		if pos.ExitReason != sim.ExitTimeLimit {
			t.Fatalf("expected time exit for %s, got %s", pos.Symbol, pos.ExitReason)
		}
	}

	snap := engine.Snapshot()
	if len(snap.Open) != 0 {
		t.Fatalf("expected empty book after exits, got %d open", len(snap.Open))
	}
	if len(snap.Closed) != 2 {
		t.Fatalf("expected 2 closed trades in history, got %d", len(snap.Closed))
	}
	if snap.Equity != snap.StartingBalance+snap.RealizedPnL {
		t.Fatalf("equity identity broken: %.4f vs %.4f", snap.Equity, snap.StartingBalance+snap.RealizedPnL)
	}
}
