package sim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TradeRecorder captures closed positions for later inspection.
type TradeRecorder interface {
	Record(Position)
}

// TradeRecord is the JSONL line written per closed position. Hold time
// is flattened to seconds and the close timestamp is derived, so the
// file is greppable without replaying position state.
type TradeRecord struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	Direction  Direction  `json:"direction"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	SizeUSD    float64    `json:"size_usd"`
	PnLUSD     float64    `json:"pnl_usd"`
	PnLPercent float64    `json:"pnl_percent"`
	ExitReason ExitReason `json:"exit_reason"`
	HoldSecs   float64    `json:"hold_secs"`
	OpenedAt   time.Time  `json:"opened_at"`
	ClosedAt   time.Time  `json:"closed_at"`
}

func newTradeRecord(pos Position) TradeRecord {
	return TradeRecord{
		ID:         pos.ID,
		Symbol:     pos.Symbol,
		Direction:  pos.Direction,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  pos.ExitPrice,
		SizeUSD:    pos.SizeUSD,
		PnLUSD:     pos.PnLUSD,
		PnLPercent: pos.PnLPercent,
		ExitReason: pos.ExitReason,
		HoldSecs:   pos.HoldTime.Seconds(),
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   pos.OpenedAt.Add(pos.HoldTime),
	}
}

// JSONLRecorder appends one TradeRecord per closed position as JSON lines.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder creates/opens the target file and returns a recorder.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single closed position to the underlying JSONL file.
func (r *JSONLRecorder) Record(pos Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(newTradeRecord(pos))
}

// Close flushes and closes the file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
