// Package risk encodes guard rails for the simulated executors.
package risk

type Limits struct {
	MaxNotionalPerTrade float64
	MaxOpenPositions    int
	MaxLeverage         int
}

func (l Limits) Allow(notional float64) bool {
	return l.MaxNotionalPerTrade <= 0 || notional <= l.MaxNotionalPerTrade
}

func (l Limits) AllowOpen(openCount int) bool {
	return l.MaxOpenPositions <= 0 || openCount < l.MaxOpenPositions
}

// ClampLeverage caps requested leverage at the configured maximum.
func (l Limits) ClampLeverage(leverage int) int {
	if leverage < 1 {
		return 1
	}
	if l.MaxLeverage > 0 && leverage > l.MaxLeverage {
		return l.MaxLeverage
	}
	return leverage
}
