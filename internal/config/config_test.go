package config

import (
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "daisybot-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if cfg.App.MetricsAddr != ":9109" {
		t.Fatalf("unexpected App.MetricsAddr: %s", cfg.App.MetricsAddr)
	}
	if cfg.Market.Provider != "aster" {
		t.Fatalf("unexpected Market.Provider: %s", cfg.Market.Provider)
	}
	if len(cfg.Market.Symbols) != 3 || cfg.Market.Symbols[0] != "BTC" {
		t.Fatalf("unexpected Market.Symbols: %+v", cfg.Market.Symbols)
	}
	if cfg.Market.Quote != "USDT" {
		t.Fatalf("unexpected Market.Quote: %s", cfg.Market.Quote)
	}
	if cfg.Analytics.Provider != "coinglass" {
		t.Fatalf("unexpected Analytics.Provider: %s", cfg.Analytics.Provider)
	}
	if cfg.Analytics.IntervalSecs != 30 {
		t.Fatalf("unexpected Analytics.IntervalSecs: %d", cfg.Analytics.IntervalSecs)
	}
	if cfg.Sim.StartingBalance != 1000 {
		t.Fatalf("unexpected Sim.StartingBalance: %.2f", cfg.Sim.StartingBalance)
	}
	if cfg.Sim.EntryThreshold != 0.35 {
		t.Fatalf("unexpected Sim.EntryThreshold: %.2f", cfg.Sim.EntryThreshold)
	}
	if cfg.Sim.TakeProfitPct != 1.2 {
		t.Fatalf("unexpected Sim.TakeProfitPct: %.2f", cfg.Sim.TakeProfitPct)
	}
	if cfg.Sim.StopLossPct != 0.8 {
		t.Fatalf("unexpected Sim.StopLossPct: %.2f", cfg.Sim.StopLossPct)
	}
	if cfg.Sim.MaxHoldSecs != 360 {
		t.Fatalf("unexpected Sim.MaxHoldSecs: %d", cfg.Sim.MaxHoldSecs)
	}
	if cfg.Sim.MinTradeUSD != 10 || cfg.Sim.MaxTradeUSD != 20 {
		t.Fatalf("unexpected trade size bounds: %.2f..%.2f", cfg.Sim.MinTradeUSD, cfg.Sim.MaxTradeUSD)
	}
	if cfg.Sim.MaxPositions != 3 {
		t.Fatalf("unexpected Sim.MaxPositions: %d", cfg.Sim.MaxPositions)
	}
	if cfg.Sim.ClosedCap != 50 || cfg.Sim.EquityCap != 50 {
		t.Fatalf("unexpected history caps: %d, %d", cfg.Sim.ClosedCap, cfg.Sim.EquityCap)
	}
	if cfg.Sim.PriceSecs != 3 || cfg.Sim.EvalSecs != 3 {
		t.Fatalf("unexpected cadences: %d, %d", cfg.Sim.PriceSecs, cfg.Sim.EvalSecs)
	}
	if cfg.Sim.TradesPath != "data/trades.jsonl" {
		t.Fatalf("unexpected Sim.TradesPath: %s", cfg.Sim.TradesPath)
	}
	if len(cfg.Live.Pairs) != 4 || cfg.Live.Pairs[0] != "BTC/USDT" {
		t.Fatalf("unexpected Live.Pairs: %+v", cfg.Live.Pairs)
	}
	if cfg.Live.SizeMinUSD != 100 || cfg.Live.SizeMaxUSD != 300 {
		t.Fatalf("unexpected live size bounds: %.2f..%.2f", cfg.Live.SizeMinUSD, cfg.Live.SizeMaxUSD)
	}
	if cfg.Live.LeverageMin != 3 || cfg.Live.LeverageMax != 10 {
		t.Fatalf("unexpected leverage bounds: %d..%d", cfg.Live.LeverageMin, cfg.Live.LeverageMax)
	}
	if cfg.Live.WinRate != 0.7 {
		t.Fatalf("unexpected Live.WinRate: %.2f", cfg.Live.WinRate)
	}
	if cfg.Live.RedisAddr != "localhost:6379" {
		t.Fatalf("unexpected Live.RedisAddr: %s", cfg.Live.RedisAddr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &Config{}
	cfg.App.Name = "roundtrip"
	cfg.Sim.EntryThreshold = 0.2

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.App.Name != "roundtrip" || loaded.Sim.EntryThreshold != 0.2 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}
