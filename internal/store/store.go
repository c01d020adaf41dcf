package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const stateRowID = 1

// Store wraps the relational sink for the live trading variant.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&TradingState{}, &OpenPosition{}, &ClosedTrade{}, &OrderEvent{}, &EquityEntry{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing gorm handle; used by tests with alternate drivers.
func New(db *gorm.DB) *Store { return &Store{db: db} }

// EnsureState seeds the singleton balance row and the first equity point
// if the table is empty.
func (s *Store) EnsureState(startingBalance float64) error {
	var state TradingState
	err := s.db.First(&state, stateRowID).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load trading state: %w", err)
	}

	now := time.Now()
	state = TradingState{
		ID:              stateRowID,
		StartingBalance: startingBalance,
		CurrentBalance:  startingBalance,
		LastUpdated:     now,
	}
	if err := s.db.Create(&state).Error; err != nil {
		return fmt.Errorf("seed trading state: %w", err)
	}
	if err := s.db.Create(&EquityEntry{Balance: startingBalance, Timestamp: now}).Error; err != nil {
		return fmt.Errorf("seed equity history: %w", err)
	}
	return nil
}

// State loads the singleton balance row.
func (s *Store) State() (TradingState, error) {
	var state TradingState
	if err := s.db.First(&state, stateRowID).Error; err != nil {
		return state, fmt.Errorf("load trading state: %w", err)
	}
	return state, nil
}

// UpdateBalance writes a new current balance onto the singleton row.
func (s *Store) UpdateBalance(balance float64) error {
	err := s.db.Model(&TradingState{}).Where("id = ?", stateRowID).Updates(map[string]any{
		"current_balance": balance,
		"last_updated":    time.Now(),
	}).Error
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

// OpenPositions lists every open position row.
func (s *Store) OpenPositions() ([]OpenPosition, error) {
	var positions []OpenPosition
	if err := s.db.Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}
	return positions, nil
}

// OldestOpenPosition returns the longest-held open position, or nil when
// there are none.
func (s *Store) OldestOpenPosition() (*OpenPosition, error) {
	var pos OpenPosition
	err := s.db.Order("entry_time asc").First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load oldest position: %w", err)
	}
	return &pos, nil
}

// InsertOpenPosition stores a freshly opened position.
func (s *Store) InsertOpenPosition(pos *OpenPosition) error {
	if pos == nil {
		return errors.New("position cannot be nil")
	}
	if err := s.db.Create(pos).Error; err != nil {
		return fmt.Errorf("insert open position: %w", err)
	}
	return nil
}

// UpdateOpenPositionMark refreshes price and PnL columns on one row.
func (s *Store) UpdateOpenPositionMark(id uint, price, pnl, pnlPercent float64, riskLevel string) error {
	err := s.db.Model(&OpenPosition{}).Where("id = ?", id).Updates(map[string]any{
		"current_price":          price,
		"unrealized_pnl":         pnl,
		"unrealized_pnl_percent": pnlPercent,
		"risk_level":             riskLevel,
	}).Error
	if err != nil {
		return fmt.Errorf("update position mark: %w", err)
	}
	return nil
}

// DeleteOpenPosition removes a settled position row.
func (s *Store) DeleteOpenPosition(id uint) error {
	if err := s.db.Delete(&OpenPosition{}, id).Error; err != nil {
		return fmt.Errorf("delete open position: %w", err)
	}
	return nil
}

// InsertClosedTrade appends to the permanent trade log.
func (s *Store) InsertClosedTrade(trade *ClosedTrade) error {
	if trade == nil {
		return errors.New("trade cannot be nil")
	}
	if err := s.db.Create(trade).Error; err != nil {
		return fmt.Errorf("insert closed trade: %w", err)
	}
	return nil
}

// InsertOrder appends an OPEN/CLOSE event to the order log.
func (s *Store) InsertOrder(order *OrderEvent) error {
	if order == nil {
		return errors.New("order cannot be nil")
	}
	if err := s.db.Create(order).Error; err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// InsertEquityPoint appends one point to the persisted equity curve.
func (s *Store) InsertEquityPoint(balance float64) error {
	if err := s.db.Create(&EquityEntry{Balance: balance, Timestamp: time.Now()}).Error; err != nil {
		return fmt.Errorf("insert equity point: %w", err)
	}
	return nil
}

// RecentClosedTrades returns the newest n closed trades.
func (s *Store) RecentClosedTrades(n int) ([]ClosedTrade, error) {
	var trades []ClosedTrade
	if err := s.db.Order("close_time desc").Limit(n).Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("list closed trades: %w", err)
	}
	return trades, nil
}
