// Package store persists the live trading variant's state to Postgres and
// fans every write out over a redis publish/subscribe channel.
package store

import "time"

// TradingState is the singleton balance row, kept at ID 1. The engine
// reads the current balance from here before settling a trade so
// restarts pick up where the last run left off.
type TradingState struct {
	ID              uint `gorm:"primaryKey"`
	StartingBalance float64
	CurrentBalance  float64
	LastUpdated     time.Time
}

// OpenPosition is one live simulated position row.
type OpenPosition struct {
	ID                   uint `gorm:"primaryKey"`
	Pair                 string
	Side                 string
	SizeUSD              float64
	Leverage             int
	EntryPrice           float64
	CurrentPrice         float64
	EntryTime            time.Time
	UnrealizedPnl        float64
	UnrealizedPnlPercent float64
	RiskLevel            string
	TPEnabled            bool
	SLEnabled            bool
}

// ClosedTrade is the permanent record of a settled position.
type ClosedTrade struct {
	ID                 uint `gorm:"primaryKey"`
	CloseTime          time.Time
	Pair               string
	Side               string
	SizeUSD            float64
	Leverage           int
	RealizedPnl        float64
	RealizedPnlPercent float64
	CloseReason        string
	HoldTime           string
	Fees               float64
}

// OrderEvent logs every OPEN/CLOSE the engine performs.
type OrderEvent struct {
	ID        uint `gorm:"primaryKey"`
	Timestamp time.Time
	Pair      string
	Action    string // OPEN or CLOSE
	Side      string
	SizeUSD   float64
	Leverage  int
	Status    string
}

// EquityEntry is one point of the persisted equity curve.
type EquityEntry struct {
	ID        uint `gorm:"primaryKey"`
	Balance   float64
	Timestamp time.Time
}
