// Package sim runs the simulated leveraged position lifecycle on top of scored signals.
package sim

import "time"

// Direction enumerates which way a simulated position is exposed.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Status tracks the position lifecycle. OPEN moves to CLOSED exactly once.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// ExitReason records why the simulator closed a position.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "TP"
	ExitStopLoss   ExitReason = "SL"
	ExitTimeLimit  ExitReason = "Time"
)

// Position is a single simulated trade. Quantity is SizeUSD divided by
// the entry price; PnL fields are recomputed on every price mark.
type Position struct {
	ID         string
	Symbol     string
	Direction  Direction
	EntryPrice float64
	LastPrice  float64
	Quantity   float64
	SizeUSD    float64
	PnLUSD     float64
	PnLPercent float64
	Status     Status
	OpenedAt   time.Time

	// Populated once closed.
	ExitPrice  float64
	HoldTime   time.Duration
	ExitReason ExitReason
}

// mark refreshes the last observed price and unrealized PnL.
func (p *Position) mark(price float64) {
	p.LastPrice = price
	if p.Direction == Long {
		p.PnLUSD = (price - p.EntryPrice) * p.Quantity
	} else {
		p.PnLUSD = (p.EntryPrice - price) * p.Quantity
	}
	if p.SizeUSD > 0 {
		p.PnLPercent = p.PnLUSD / p.SizeUSD * 100
	}
}

// close finalizes the position at its last observed price.
func (p *Position) close(reason ExitReason, now time.Time) {
	p.Status = StatusClosed
	p.ExitPrice = p.LastPrice
	p.HoldTime = now.Sub(p.OpenedAt)
	p.ExitReason = reason
}
