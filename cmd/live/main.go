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
	"daisybot-go/internal/live"
	"daisybot-go/internal/metrics"
	"daisybot-go/internal/store"
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

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}
	db, err := store.Open(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}

	opts := []live.Option{live.WithLogger(log)}
	if cfg.Live.RedisAddr != "" {
		pub, err := store.NewBroadcaster(cfg.Live.RedisAddr, os.Getenv("REDIS_PASSWORD"), cfg.Live.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Live.RedisAddr).Msg("connect redis")
		}
		defer pub.Close()
		opts = append(opts, live.WithPublisher(pub))
	}

	symbols := make([]string, 0, len(cfg.Live.Pairs))
	for _, pair := range cfg.Live.Pairs {
		symbols = append(symbols, live.BaseSymbol(pair))
	}
	feed := exchange.NewFeed(cfg.Market.Provider, symbols, log,
		exchange.WithBaseURL(cfg.Market.BaseURL),
		exchange.WithQuote(cfg.Market.Quote),
	)

	engine, err := live.New(live.Params{
		StartingBalance: cfg.Live.StartingBalance,
		Pairs:           cfg.Live.Pairs,
		MaxPositions:    cfg.Live.MaxPositions,
		SizeMinUSD:      cfg.Live.SizeMinUSD,
		SizeMaxUSD:      cfg.Live.SizeMaxUSD,
		LeverageMin:     cfg.Live.LeverageMin,
		LeverageMax:     cfg.Live.LeverageMax,
		WinRate:         cfg.Live.WinRate,
	}, db, feed, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("init live engine")
	}

	if trades, err := db.RecentClosedTrades(10); err == nil && len(trades) > 0 {
		log.Info().Int("recent_trades", len(trades)).Msg("resuming existing trading state")
	}

	markEvery := time.Duration(cfg.Live.MarkSecs) * time.Second
	tradeEvery := time.Duration(cfg.Live.TradeSecs) * time.Second

	log.Info().Strs("pairs", cfg.Live.Pairs).Msg("live engine started")
	if err := engine.Run(ctx, markEvery, tradeEvery); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("live engine stopped")
	}
	log.Info().Msg("shutting down")
}
