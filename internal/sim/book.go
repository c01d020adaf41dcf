package sim

import "time"

// EquityPoint is one sample of total account value over time.
type EquityPoint struct {
	Ts     time.Time
	Equity float64
}

// Book holds all mutable simulation state: open positions keyed by
// symbol, recently closed positions (most recent first), the realized
// PnL accumulator, and a rolling equity history. The Engine owns the
// Book and serializes every mutation; Book itself carries no lock.
type Book struct {
	startingBalance float64
	realizedPnL     float64
	open            map[string]*Position
	closed          []Position
	equity          []EquityPoint
	closedCap       int
	equityCap       int
}

// NewBook seeds an empty book with the starting balance and history caps.
func NewBook(startingBalance float64, closedCap, equityCap int, now time.Time) *Book {
	b := &Book{
		startingBalance: startingBalance,
		open:            make(map[string]*Position),
		closedCap:       closedCap,
		equityCap:       equityCap,
	}
	b.appendEquity(now)
	return b
}

// UnrealizedPnL sums unrealized PnL over all open positions.
func (b *Book) UnrealizedPnL() float64 {
	var total float64
	for _, p := range b.open {
		total += p.PnLUSD
	}
	return total
}

// Equity is starting balance plus realized plus unrealized PnL.
func (b *Book) Equity() float64 {
	return b.startingBalance + b.realizedPnL + b.UnrealizedPnL()
}

// RealizedPnL returns the accumulator over all closed positions.
func (b *Book) RealizedPnL() float64 { return b.realizedPnL }

// OpenCount reports how many positions are currently open.
func (b *Book) OpenCount() int { return len(b.open) }

// HasOpen reports whether the symbol already carries an open position.
func (b *Book) HasOpen(symbol string) bool {
	_, ok := b.open[symbol]
	return ok
}

// add registers a freshly opened position. At most one per symbol; a
// second open for the same symbol is ignored by construction.
func (b *Book) add(p *Position) {
	if _, exists := b.open[p.Symbol]; exists {
		return
	}
	b.open[p.Symbol] = p
}

// settle moves an open position into the closed list and realizes its PnL.
func (b *Book) settle(p *Position, reason ExitReason, now time.Time) {
	delete(b.open, p.Symbol)
	p.close(reason, now)
	b.realizedPnL += p.PnLUSD
	b.closed = append([]Position{*p}, b.closed...)
	if b.closedCap > 0 && len(b.closed) > b.closedCap {
		b.closed = b.closed[:b.closedCap]
	}
}

// appendEquity samples current equity into the rolling history.
func (b *Book) appendEquity(now time.Time) {
	b.equity = append(b.equity, EquityPoint{Ts: now, Equity: b.Equity()})
	if b.equityCap > 0 && len(b.equity) > b.equityCap {
		b.equity = b.equity[len(b.equity)-b.equityCap:]
	}
}
