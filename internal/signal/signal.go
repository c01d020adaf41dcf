// Package signal standardizes payloads shared between data ingestion and scoring layers.
package signal

import "time"

// Tick models a single last-traded-price observation for an instrument.
type Tick struct {
	Symbol string
	Price  float64
	Ts     time.Time
}

// Indicators is one derivatives-sentiment snapshot for a single instrument.
// Values are validated and defaulted at the feed boundary; downstream code
// never has to guard against missing fields.
type Indicators struct {
	FundingRate     float64 // signed fraction, e.g. 0.0001 = 0.01% per interval
	OIChangePercent float64 // 24h open interest change, percent
	LongShortRatio  float64 // 1.0 = balanced accounts
	LiquidationUSD  float64 // 24h liquidation volume in USD
	Ts              time.Time
}

// Label buckets a score for display.
type Label string

const (
	Bullish Label = "Bullish"
	Bearish Label = "Bearish"
	Neutral Label = "Neutral"
)

// Signal expresses a directional bias derived from an Indicators snapshot.
// The four source readings are carried through for display.
type Signal struct {
	Symbol          string
	Score           float64 // clamped to [-1, 1]; positive long bias, negative short bias
	Label           Label
	FundingRate     float64
	OIChangePercent float64
	LongShortRatio  float64
	LiquidationUSD  float64
	Rationale       string
	Ts              time.Time
}
