package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestStubFetchCoversAllSymbols(t *testing.T) {
	feed := NewFeed(ProviderStub, []string{"BTC", "ETH", "btc", " "}, zerolog.Nop())

	prices, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("expected 2 symbols, got %d: %+v", len(prices), prices)
	}
	for _, sym := range []string{"BTC", "ETH"} {
		if prices[sym] <= 0 {
			t.Fatalf("expected positive price for %s, got %.2f", sym, prices[sym])
		}
	}

	again, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatalf("second Fetch returned error: %v", err)
	}
	if again["BTC"] <= prices["BTC"] {
		t.Fatalf("stub price should drift upward: %.2f then %.2f", prices["BTC"], again["BTC"])
	}
}

func TestAsterFetchMapsTrackedPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/ticker/24hr" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","lastPrice":"50123.45"},
			{"symbol":"ETHUSDT","lastPrice":"3010.10"},
			{"symbol":"DOGEUSDT","lastPrice":"bogus"},
			{"symbol":"PEPEUSDT","lastPrice":"0.000001"}
		]`))
	}))
	defer srv.Close()

	feed := NewFeed(ProviderAster, []string{"BTC", "ETH", "DOGE"}, zerolog.Nop(), WithBaseURL(srv.URL))
	prices, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if prices["BTC"] != 50123.45 || prices["ETH"] != 3010.10 {
		t.Fatalf("unexpected prices: %+v", prices)
	}
	if _, ok := prices["DOGE"]; ok {
		t.Fatalf("invalid price should be dropped, got %+v", prices)
	}
	if _, ok := prices["PEPE"]; ok {
		t.Fatalf("untracked pair leaked into result: %+v", prices)
	}
}

func TestAsterFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	feed := NewFeed(ProviderAster, []string{"BTC"}, zerolog.Nop(), WithBaseURL(srv.URL))
	if _, err := feed.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error on bad status")
	}
}

func TestPollDeliversBatches(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	feed := NewFeed(ProviderStub, []string{"BTC"}, zerolog.Nop())
	out := make(chan map[string]float64, 1)
	go func() {
		_ = feed.Poll(ctx, 10*time.Millisecond, out)
	}()

	select {
	case prices := <-out:
		if prices["BTC"] <= 0 {
			t.Fatalf("expected BTC price in polled batch, got %+v", prices)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for polled batch")
	}
}

func TestPollZeroIntervalDefaults(t *testing.T) {
	feed := NewFeed(ProviderStub, []string{"BTC"}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A zero interval must fall back to a sane cadence instead of
	// panicking in time.NewTicker.
	err := feed.Poll(ctx, 0, make(chan map[string]float64, 1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSetSymbolsReplacesTrackedSet(t *testing.T) {
	feed := NewFeed(ProviderStub, []string{"BTC"}, zerolog.Nop())
	feed.SetSymbols([]string{"sol", "SOL", "XRP"})

	prices, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if _, ok := prices["BTC"]; ok {
		t.Fatalf("BTC should no longer be tracked: %+v", prices)
	}
	if len(prices) != 2 {
		t.Fatalf("expected SOL and XRP only, got %+v", prices)
	}
}
