// Package live drives the persisted trading variant: a win-biased random
// walk over a small pair universe whose every state change is written to
// the relational sink and fanned out to subscribers. Unlike the in-memory
// simulator it holds no authoritative book; the rows are the product.
package live

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"daisybot-go/internal/risk"
	"daisybot-go/internal/store"
)

// Sink is the persistence surface the engine writes through. *store.Store
// implements it; tests substitute an in-memory fake.
type Sink interface {
	EnsureState(startingBalance float64) error
	State() (store.TradingState, error)
	UpdateBalance(balance float64) error
	OpenPositions() ([]store.OpenPosition, error)
	OldestOpenPosition() (*store.OpenPosition, error)
	InsertOpenPosition(pos *store.OpenPosition) error
	UpdateOpenPositionMark(id uint, price, pnl, pnlPercent float64, riskLevel string) error
	DeleteOpenPosition(id uint) error
	InsertClosedTrade(trade *store.ClosedTrade) error
	InsertOrder(order *store.OrderEvent) error
	InsertEquityPoint(balance float64) error
}

// Publisher fans a state-change event out to readers. Optional.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// PriceSource supplies last prices keyed by base symbol.
type PriceSource interface {
	Fetch(ctx context.Context) (map[string]float64, error)
}

// Params tunes the live variant's randomized behaviour.
type Params struct {
	StartingBalance float64  // default 1000
	Pairs           []string // default BTC/ETH/SOL/BNB against USDT
	MaxPositions    int      // default 3
	SizeMinUSD      float64  // default 100
	SizeMaxUSD      float64  // default 300
	LeverageMin     int      // default 3
	LeverageMax     int      // default 10
	WinRate         float64  // default 0.7
	MaxWinUSD       float64  // default 35
	MaxLossUSD      float64  // default 15
	FeeMinFrac      float64  // default 0.001
	FeeMaxFrac      float64  // default 0.003
}

func (p Params) withDefaults() Params {
	if p.StartingBalance <= 0 {
		p.StartingBalance = 1000
	}
	if len(p.Pairs) == 0 {
		p.Pairs = []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "BNB/USDT"}
	}
	if p.MaxPositions <= 0 {
		p.MaxPositions = 3
	}
	if p.SizeMinUSD <= 0 {
		p.SizeMinUSD = 100
	}
	if p.SizeMaxUSD < p.SizeMinUSD {
		p.SizeMaxUSD = p.SizeMinUSD + 200
	}
	if p.LeverageMin <= 0 {
		p.LeverageMin = 3
	}
	if p.LeverageMax < p.LeverageMin {
		p.LeverageMax = 10
	}
	if p.WinRate <= 0 || p.WinRate > 1 {
		p.WinRate = 0.7
	}
	if p.MaxWinUSD <= 0 {
		p.MaxWinUSD = 35
	}
	if p.MaxLossUSD <= 0 {
		p.MaxLossUSD = 15
	}
	if p.FeeMinFrac <= 0 {
		p.FeeMinFrac = 0.001
	}
	if p.FeeMaxFrac < p.FeeMinFrac {
		p.FeeMaxFrac = 0.003
	}
	return p
}

// Engine wires the sink, broadcaster and price source together.
type Engine struct {
	params Params
	limits risk.Limits
	sink   Sink
	pub    Publisher
	prices PriceSource
	rng    *rand.Rand
	now    func() time.Time
	log    zerolog.Logger
}

// Option configures Engine construction.
type Option func(*Engine)

// WithRand injects the random source so tests can pin outcomes.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger attaches a logger for trade events.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithPublisher attaches the pub/sub fan-out.
func WithPublisher(pub Publisher) Option {
	return func(e *Engine) { e.pub = pub }
}

// New builds the engine and seeds the sink's singleton state row.
func New(params Params, sink Sink, prices PriceSource, opts ...Option) (*Engine, error) {
	p := params.withDefaults()
	e := &Engine{
		params: p,
		limits: risk.Limits{
			MaxNotionalPerTrade: p.SizeMaxUSD,
			MaxOpenPositions:    p.MaxPositions,
			MaxLeverage:         p.LeverageMax,
		},
		sink:   sink,
		prices: prices,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := sink.EnsureState(p.StartingBalance); err != nil {
		return nil, fmt.Errorf("ensure trading state: %w", err)
	}
	return e, nil
}

// MarkPositions refreshes current price and leveraged unrealized PnL on
// every open row. Pairs without a price this cycle keep their prior mark.
func (e *Engine) MarkPositions(ctx context.Context) error {
	positions, err := e.sink.OpenPositions()
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return nil
	}

	prices, err := e.prices.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}

	for _, pos := range positions {
		px, ok := prices[BaseSymbol(pos.Pair)]
		if !ok || px <= 0 {
			continue
		}

		change := (px - pos.EntryPrice) / pos.EntryPrice
		if pos.Side == "SHORT" {
			change = -change
		}
		pnlPercent := change * float64(pos.Leverage) * 100
		pnl := pos.SizeUSD * change * float64(pos.Leverage)
		level := riskLevel(pos.Leverage, pnlPercent)

		if err := e.sink.UpdateOpenPositionMark(pos.ID, px, pnl, pnlPercent, level); err != nil {
			e.log.Warn().Err(err).Str("pair", pos.Pair).Msg("mark update failed")
			continue
		}
		e.publish(ctx, store.EventPositionMarked, map[string]any{
			"id": pos.ID, "pair": pos.Pair, "price": px, "pnl": pnl, "pnl_percent": pnlPercent,
		})
	}
	return nil
}

// CloseAndOpen settles the longest-held position with a win-biased random
// outcome, then tries to open a replacement.
func (e *Engine) CloseAndOpen(ctx context.Context) error {
	if err := e.closeOldest(ctx); err != nil {
		return err
	}
	return e.OpenPosition(ctx)
}

func (e *Engine) closeOldest(ctx context.Context) error {
	pos, err := e.sink.OldestOpenPosition()
	if err != nil {
		return err
	}
	if pos == nil {
		return nil
	}

	isWin := e.rng.Float64() < e.params.WinRate
	var realized float64
	if isWin {
		realized = e.rng.Float64() * e.params.MaxWinUSD
	} else {
		realized = -(e.rng.Float64() * e.params.MaxLossUSD)
	}
	realizedPercent := realized / pos.SizeUSD * 100
	fees := pos.SizeUSD * (e.params.FeeMinFrac + e.rng.Float64()*(e.params.FeeMaxFrac-e.params.FeeMinFrac))

	reason := "SL"
	if isWin && e.rng.Float64() < 0.5 {
		reason = "TP"
	}

	now := e.now()
	state, err := e.sink.State()
	if err != nil {
		return err
	}
	newBalance := state.CurrentBalance + realized - fees

	if err := e.sink.UpdateBalance(newBalance); err != nil {
		return err
	}
	if err := e.sink.InsertClosedTrade(&store.ClosedTrade{
		CloseTime:          now,
		Pair:               pos.Pair,
		Side:               pos.Side,
		SizeUSD:            pos.SizeUSD,
		Leverage:           pos.Leverage,
		RealizedPnl:        realized,
		RealizedPnlPercent: realizedPercent,
		CloseReason:        reason,
		HoldTime:           formatHoldTime(now.Sub(pos.EntryTime)),
		Fees:               fees,
	}); err != nil {
		return err
	}
	if err := e.sink.InsertOrder(&store.OrderEvent{
		Timestamp: now, Pair: pos.Pair, Action: "CLOSE", Side: pos.Side,
		SizeUSD: pos.SizeUSD, Leverage: pos.Leverage, Status: "FILLED",
	}); err != nil {
		return err
	}
	if err := e.sink.DeleteOpenPosition(pos.ID); err != nil {
		return err
	}
	if err := e.sink.InsertEquityPoint(newBalance); err != nil {
		return err
	}

	e.publish(ctx, store.EventPositionClosed, map[string]any{
		"pair": pos.Pair, "side": pos.Side, "realized_pnl": realized, "reason": reason,
	})
	e.publish(ctx, store.EventBalance, map[string]any{"balance": newBalance})
	e.publish(ctx, store.EventEquityPoint, map[string]any{"balance": newBalance})

	e.log.Info().
		Str("pair", pos.Pair).
		Str("side", pos.Side).
		Str("reason", reason).
		Float64("realized_pnl", realized).
		Float64("fees", fees).
		Float64("balance", newBalance).
		Msg("live position closed")
	return nil
}

// OpenPosition opens one new random position if a slot is free and a
// price is available. Missing prices skip the open for this cycle.
func (e *Engine) OpenPosition(ctx context.Context) error {
	positions, err := e.sink.OpenPositions()
	if err != nil {
		return err
	}
	if !e.limits.AllowOpen(len(positions)) {
		return nil
	}

	pair := e.params.Pairs[e.rng.Intn(len(e.params.Pairs))]
	side := "LONG"
	if e.rng.Float64() < 0.5 {
		side = "SHORT"
	}
	size := e.params.SizeMinUSD + e.rng.Float64()*(e.params.SizeMaxUSD-e.params.SizeMinUSD)
	leverage := e.limits.ClampLeverage(e.params.LeverageMin + e.rng.Intn(e.params.LeverageMax-e.params.LeverageMin+1))

	prices, err := e.prices.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}
	px, ok := prices[BaseSymbol(pair)]
	if !ok || px <= 0 {
		e.log.Debug().Str("pair", pair).Msg("no price for pair, skipping open")
		return nil
	}

	now := e.now()
	pos := &store.OpenPosition{
		Pair:         pair,
		Side:         side,
		SizeUSD:      size,
		Leverage:     leverage,
		EntryPrice:   px,
		CurrentPrice: px,
		EntryTime:    now,
		RiskLevel:    riskLevel(leverage, 0),
		TPEnabled:    e.rng.Float64() > 0.3,
		SLEnabled:    e.rng.Float64() > 0.2,
	}
	if err := e.sink.InsertOpenPosition(pos); err != nil {
		return err
	}
	if err := e.sink.InsertOrder(&store.OrderEvent{
		Timestamp: now, Pair: pair, Action: "OPEN", Side: side,
		SizeUSD: size, Leverage: leverage, Status: "FILLED",
	}); err != nil {
		return err
	}

	e.publish(ctx, store.EventPositionOpened, map[string]any{
		"pair": pair, "side": side, "size_usd": size, "leverage": leverage, "entry": px,
	})
	e.log.Info().
		Str("pair", pair).
		Str("side", side).
		Int("leverage", leverage).
		Float64("size_usd", size).
		Msg("live position opened")
	return nil
}

// Run drives the two cadences until the context is canceled. Errors are
// logged and the loop continues; a failed cycle is "no update".
func (e *Engine) Run(ctx context.Context, markEvery, tradeEvery time.Duration) error {
	if markEvery <= 0 {
		markEvery = 10 * time.Second
	}
	if tradeEvery <= 0 {
		tradeEvery = 45 * time.Second
	}
	markTicker := time.NewTicker(markEvery)
	defer markTicker.Stop()
	tradeTicker := time.NewTicker(tradeEvery)
	defer tradeTicker.Stop()

	// Fill empty slots on boot so the dashboard is never blank.
	for i := 0; i < e.params.MaxPositions; i++ {
		if err := e.OpenPosition(ctx); err != nil {
			e.log.Warn().Err(err).Msg("initial open failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-markTicker.C:
			if err := e.MarkPositions(ctx); err != nil {
				e.log.Warn().Err(err).Msg("mark cycle failed")
			}
		case <-tradeTicker.C:
			if err := e.CloseAndOpen(ctx); err != nil {
				e.log.Warn().Err(err).Msg("trade cycle failed")
			}
		}
	}
}

func (e *Engine) publish(ctx context.Context, event string, payload any) {
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(ctx, event, payload); err != nil {
		e.log.Warn().Err(err).Str("event", event).Msg("broadcast failed")
	}
}

// riskLevel grades a position by leverage and PnL swing.
func riskLevel(leverage int, pnlPercent float64) string {
	switch {
	case leverage >= 8 || math.Abs(pnlPercent) > 15:
		return "High"
	case leverage >= 5 || math.Abs(pnlPercent) > 8:
		return "Medium"
	default:
		return "Low"
	}
}

// formatHoldTime renders a hold duration the way the dashboard shows it.
func formatHoldTime(d time.Duration) string {
	minutes := int(d.Minutes())
	hours := minutes / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

// BaseSymbol strips the quote from a pair name like "BTC/USDT".
func BaseSymbol(pair string) string {
	return strings.SplitN(pair, "/", 2)[0]
}
