package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"daisybot-go/internal/config"
	"daisybot-go/internal/exchange"
	"daisybot-go/internal/metrics"
	"daisybot-go/internal/score"
	sig "daisybot-go/internal/signal"
	"daisybot-go/internal/sim"
	"daisybot-go/internal/util"
)

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "internal/config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		bootLog := util.NewLogger("info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	feed := exchange.NewFeed(cfg.Market.Provider, cfg.Market.Symbols, log,
		exchange.WithBaseURL(cfg.Market.BaseURL),
		exchange.WithWSURL(cfg.Market.WSURL),
		exchange.WithQuote(cfg.Market.Quote),
	)
	analytics := exchange.NewAnalytics(cfg.Analytics.Provider, cfg.Market.Symbols, log,
		exchange.WithAnalyticsBaseURL(cfg.Analytics.BaseURL),
		exchange.WithAPIKey(os.Getenv("COINGLASS_API_KEY")),
	)

	prices := make(chan map[string]float64, 8)
	indicators := make(chan map[string]sig.Indicators, 8)
	ticks := make(chan sig.Tick, 1024)

	if cfg.Market.Provider == exchange.ProviderAster {
		go func() {
			if err := feed.Stream(ctx, ticks); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("price stream stopped, polling only")
			}
		}()
	}
	go func() {
		if err := feed.Poll(ctx, time.Duration(cfg.Sim.PriceSecs)*time.Second, prices); err != nil {
			log.Error().Err(err).Msg("price feed stopped")
			cancel()
		}
	}()
	go func() {
		if err := analytics.Poll(ctx, time.Duration(cfg.Analytics.IntervalSecs)*time.Second, indicators); err != nil {
			log.Error().Err(err).Msg("analytics feed stopped")
			cancel()
		}
	}()

	engine := sim.New(sim.Params{
		StartingBalance: cfg.Sim.StartingBalance,
		EntryThreshold:  cfg.Sim.EntryThreshold,
		TakeProfitPct:   cfg.Sim.TakeProfitPct,
		StopLossPct:     cfg.Sim.StopLossPct,
		MaxHold:         time.Duration(cfg.Sim.MaxHoldSecs) * time.Second,
		MinTradeUSD:     cfg.Sim.MinTradeUSD,
		MaxTradeUSD:     cfg.Sim.MaxTradeUSD,
		MaxPositions:    cfg.Sim.MaxPositions,
		ClosedCap:       cfg.Sim.ClosedCap,
		EquityCap:       cfg.Sim.EquityCap,
	}, sim.WithLogger(log))

	var recorder *sim.JSONLRecorder
	if cfg.Sim.TradesPath != "" {
		recorder, err = sim.NewJSONLRecorder(cfg.Sim.TradesPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Sim.TradesPath).Msg("open trade log")
		}
		defer recorder.Close()
	}

	evalEvery := time.Duration(cfg.Sim.EvalSecs) * time.Second
	if evalEvery <= 0 {
		evalEvery = 3 * time.Second
	}
	eval := time.NewTicker(evalEvery)
	defer eval.Stop()

	var (
		lastPrices     map[string]float64
		lastIndicators map[string]sig.Indicators
	)

	log.Info().Str("provider", cfg.Market.Provider).Msg("sim engine started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case p := <-prices:
			if lastPrices == nil {
				lastPrices = make(map[string]float64, len(p))
			}
			for symbol, px := range p {
				lastPrices[symbol] = px
			}
			engine.MarkPrices(p)
		case tk := <-ticks:
			if lastPrices == nil {
				lastPrices = make(map[string]float64)
			}
			lastPrices[tk.Symbol] = tk.Price
			engine.MarkPrice(tk.Symbol, tk.Price)
		case ind := <-indicators:
			lastIndicators = ind
		case <-eval.C:
			if lastPrices == nil || lastIndicators == nil {
				continue
			}
			signals := make([]sig.Signal, 0, len(lastIndicators))
			for symbol, ind := range lastIndicators {
				s := score.Compute(symbol, ind)
				metrics.SignalsTotal.WithLabelValues(symbol, string(s.Label)).Inc()
				signals = append(signals, s)
			}
			result := engine.Tick(signals, lastPrices)
			if recorder != nil {
				for _, pos := range result.Closed {
					recorder.Record(pos)
				}
			}
		}
	}
}
