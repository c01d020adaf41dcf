package sim

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"daisybot-go/internal/metrics"
	"daisybot-go/internal/signal"
)

// Params collects the tunable knobs of the position simulator. Entry
// threshold, sizing, and TP/SL constants vary between deployments, so
// they are configuration with documented defaults rather than fixed law.
type Params struct {
	StartingBalance float64       // simulated bankroll, default 1000
	EntryThreshold  float64       // absolute score required to open, default 0.35
	TakeProfitPct   float64       // close when PnL percent reaches this, default 1.2
	StopLossPct     float64       // close when PnL percent reaches the negative of this, default 0.8
	MaxHold         time.Duration // time-based exit, default 6m
	MinTradeUSD     float64       // lower bound of random notional, default 10
	MaxTradeUSD     float64       // upper bound of random notional, default 20
	MaxPositions    int           // global open position cap, default 3
	ClosedCap       int           // closed trades kept, default 50
	EquityCap       int           // equity history points kept, default 50
}

func (p Params) withDefaults() Params {
	if p.StartingBalance <= 0 {
		p.StartingBalance = 1000
	}
	if p.EntryThreshold <= 0 {
		p.EntryThreshold = 0.35
	}
	if p.TakeProfitPct <= 0 {
		p.TakeProfitPct = 1.2
	}
	if p.StopLossPct <= 0 {
		p.StopLossPct = 0.8
	}
	if p.MaxHold <= 0 {
		p.MaxHold = 6 * time.Minute
	}
	if p.MinTradeUSD <= 0 {
		p.MinTradeUSD = 10
	}
	if p.MaxTradeUSD < p.MinTradeUSD {
		p.MaxTradeUSD = p.MinTradeUSD + 10
	}
	if p.MaxPositions <= 0 {
		p.MaxPositions = 3
	}
	if p.ClosedCap <= 0 {
		p.ClosedCap = 50
	}
	if p.EquityCap <= 0 {
		p.EquityCap = 50
	}
	return p
}

// Engine owns the Book and serializes every mutation behind one mutex,
// so overlapping refresh timers can never corrupt the open position set.
type Engine struct {
	mu     sync.Mutex
	params Params
	book   *Book
	rng    *rand.Rand
	now    func() time.Time
	log    zerolog.Logger
}

// Option configures Engine construction.
type Option func(*Engine)

// WithRand injects the random source used for trade sizing so tests can
// pin exact notionals.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger attaches a logger for open/close events.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New builds an engine with zero-value params replaced by defaults.
func New(params Params, opts ...Option) *Engine {
	e := &Engine{
		params: params.withDefaults(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.book = NewBook(e.params.StartingBalance, e.params.ClosedCap, e.params.EquityCap, e.now())
	return e
}

// TickResult reports what one evaluation pass changed.
type TickResult struct {
	Opened []Position
	Closed []Position
}

// MarkPrices refreshes last price and unrealized PnL on every open
// position that has a current price. Symbols without a price keep their
// previous mark; absence of data is never an error.
func (e *Engine) MarkPrices(prices map[string]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.markLocked(prices)
	e.book.appendEquity(e.now())
	metrics.EquityUSD.Set(e.book.Equity())
}

// MarkPrice refreshes one symbol's mark without sampling equity.
// Streaming callers mark per trade; equity sampling stays on the poll
// and eval cadences so a busy stream cannot flush the rolling history.
func (e *Engine) MarkPrice(symbol string, price float64) {
	if price <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if pos, ok := e.book.open[symbol]; ok {
		pos.mark(price)
	}
	metrics.EquityUSD.Set(e.book.Equity())
}

// Tick runs one full evaluation: mark prices, close positions whose exit
// conditions hold (TP before SL before Time), then open new positions
// from the strongest signals while slots remain.
func (e *Engine) Tick(signals []signal.Signal, prices map[string]float64) TickResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.markLocked(prices)
	var res TickResult
	res.Closed = e.evaluateExitsLocked(prices)
	res.Opened = e.evaluateEntriesLocked(signals, prices)
	e.book.appendEquity(e.now())
	metrics.EquityUSD.Set(e.book.Equity())
	return res
}

func (e *Engine) markLocked(prices map[string]float64) {
	for sym, pos := range e.book.open {
		px, ok := prices[sym]
		if !ok || px <= 0 {
			continue
		}
		pos.mark(px)
	}
}

// evaluateExitsLocked closes positions whose exit conditions hold.
// Positions with no price this cycle are left untouched so a stale mark
// never triggers an exit.
func (e *Engine) evaluateExitsLocked(prices map[string]float64) []Position {
	now := e.now()
	var closed []Position

	for _, sym := range e.openSymbolsLocked() {
		pos := e.book.open[sym]
		if px, ok := prices[sym]; !ok || px <= 0 {
			continue
		}
		var reason ExitReason
		switch {
		case pos.PnLPercent >= e.params.TakeProfitPct:
			reason = ExitTakeProfit
		case pos.PnLPercent <= -e.params.StopLossPct:
			reason = ExitStopLoss
		case now.Sub(pos.OpenedAt) >= e.params.MaxHold:
			reason = ExitTimeLimit
		default:
			continue
		}

		e.book.settle(pos, reason, now)
		closed = append(closed, *pos)
		metrics.TradesClosedTotal.WithLabelValues(pos.Symbol, string(reason)).Inc()
		e.log.Info().
			Str("symbol", pos.Symbol).
			Str("direction", string(pos.Direction)).
			Str("reason", string(reason)).
			Float64("pnl_usd", pos.PnLUSD).
			Float64("pnl_pct", pos.PnLPercent).
			Dur("held", pos.HoldTime).
			Msg("position closed")
	}
	return closed
}

func (e *Engine) evaluateEntriesLocked(signals []signal.Signal, prices map[string]float64) []Position {
	if e.book.OpenCount() >= e.params.MaxPositions {
		return nil
	}

	// Strongest conviction first.
	ranked := make([]signal.Signal, len(signals))
	copy(ranked, signals)
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Score) > math.Abs(ranked[j].Score)
	})

	now := e.now()
	var opened []Position
	for _, sig := range ranked {
		if e.book.OpenCount() >= e.params.MaxPositions {
			break
		}
		if e.book.HasOpen(sig.Symbol) {
			continue
		}
		px, ok := prices[sig.Symbol]
		if !ok || px <= 0 {
			continue
		}

		var direction Direction
		switch {
		case sig.Score >= e.params.EntryThreshold:
			direction = Long
		case sig.Score <= -e.params.EntryThreshold:
			direction = Short
		default:
			continue
		}

		size := e.params.MinTradeUSD + e.rng.Float64()*(e.params.MaxTradeUSD-e.params.MinTradeUSD)
		pos := &Position{
			ID:         uuid.NewString(),
			Symbol:     sig.Symbol,
			Direction:  direction,
			EntryPrice: px,
			LastPrice:  px,
			Quantity:   size / px,
			SizeUSD:    size,
			Status:     StatusOpen,
			OpenedAt:   now,
		}
		e.book.add(pos)
		opened = append(opened, *pos)
		metrics.TradesOpenedTotal.WithLabelValues(pos.Symbol, string(direction)).Inc()
		e.log.Info().
			Str("symbol", pos.Symbol).
			Str("direction", string(direction)).
			Float64("entry", px).
			Float64("size_usd", size).
			Float64("score", sig.Score).
			Msg("position opened")
	}
	return opened
}

// openSymbolsLocked returns open symbols sorted for deterministic iteration.
func (e *Engine) openSymbolsLocked() []string {
	syms := make([]string, 0, len(e.book.open))
	for sym := range e.book.open {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// Snapshot is a point-in-time copy of the simulation state for rendering.
type Snapshot struct {
	StartingBalance float64
	RealizedPnL     float64
	UnrealizedPnL   float64
	Equity          float64
	Open            []Position
	Closed          []Position
	EquityHistory   []EquityPoint
}

// Snapshot copies the current state. Open positions come back sorted by
// open time so callers render a stable order.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	open := make([]Position, 0, len(e.book.open))
	for _, pos := range e.book.open {
		open = append(open, *pos)
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].OpenedAt.Equal(open[j].OpenedAt) {
			return open[i].Symbol < open[j].Symbol
		}
		return open[i].OpenedAt.Before(open[j].OpenedAt)
	})

	closed := make([]Position, len(e.book.closed))
	copy(closed, e.book.closed)
	history := make([]EquityPoint, len(e.book.equity))
	copy(history, e.book.equity)

	return Snapshot{
		StartingBalance: e.book.startingBalance,
		RealizedPnL:     e.book.realizedPnL,
		UnrealizedPnL:   e.book.UnrealizedPnL(),
		Equity:          e.book.Equity(),
		Open:            open,
		Closed:          closed,
		EquityHistory:   history,
	}
}
