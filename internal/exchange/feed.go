// Package exchange hosts connectors for futures market data and derivatives analytics.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"daisybot-go/internal/metrics"
)

const (
	// ProviderStub emits deterministic synthetic prices (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderAster polls the Aster futures HTTP API (Binance-futures shaped payloads).
	ProviderAster = "aster"
)

const (
	defaultQuote        = "USDT"
	defaultAsterBaseURL = "https://fapi.asterdex.com"
	defaultAsterWSURL   = "wss://fstream.asterdex.com"
)

// Feed fetches last traded prices for a tracked instrument set, batched
// into a single call per cycle regardless of how many symbols are tracked.
type Feed struct {
	provider string
	quote    string
	baseURL  string
	wsURL    string
	log      zerolog.Logger
	client   *http.Client

	mu      sync.RWMutex
	symbols []string
	stubPx  map[string]float64
}

// FeedOption configures Feed construction parameters.
type FeedOption func(*Feed)

// WithBaseURL overrides the HTTP endpoint for the ticker provider.
func WithBaseURL(u string) FeedOption {
	return func(f *Feed) {
		if u != "" {
			f.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithWSURL overrides the websocket endpoint for streaming trades.
func WithWSURL(u string) FeedOption {
	return func(f *Feed) {
		if u != "" {
			f.wsURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithQuote sets the quote asset appended to base symbols on the wire.
func WithQuote(q string) FeedOption {
	return func(f *Feed) {
		if q != "" {
			f.quote = strings.ToUpper(q)
		}
	}
}

// WithHTTPClient injects the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) FeedOption {
	return func(f *Feed) {
		if c != nil {
			f.client = c
		}
	}
}

// NewFeed constructs a price feed backed by the requested provider.
// Symbols are base assets ("BTC"); the quote suffix is handled here so
// the engine never sees exchange-specific pair names.
func NewFeed(provider string, symbols []string, log zerolog.Logger, opts ...FeedOption) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider: strings.ToLower(provider),
		quote:    defaultQuote,
		baseURL:  defaultAsterBaseURL,
		wsURL:    defaultAsterWSURL,
		log:      log,
		client:   &http.Client{Timeout: 10 * time.Second},
		stubPx:   make(map[string]float64),
	}
	f.setSymbols(symbols)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetSymbols replaces the tracked symbol list (deduplicated, sorted for determinism).
func (f *Feed) SetSymbols(symbols []string) {
	f.setSymbols(symbols)
}

func (f *Feed) setSymbols(symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		unique[sym] = struct{}{}
	}
	f.symbols = f.symbols[:0]
	for sym := range unique {
		f.symbols = append(f.symbols, sym)
	}
	sort.Strings(f.symbols)
}

func (f *Feed) snapshotSymbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

// Fetch returns last prices for every tracked symbol it can resolve in
// one batched call. A symbol absent from the result simply has no price
// this cycle; callers skip it and keep prior state.
func (f *Feed) Fetch(ctx context.Context) (map[string]float64, error) {
	switch f.provider {
	case ProviderAster:
		return f.fetchAster(ctx)
	default:
		return f.fetchStub(), nil
	}
}

// fetchStub walks each symbol's price deterministically so offline runs
// still exercise PnL movement.
func (f *Feed) fetchStub() map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float64, len(f.symbols))
	for i, sym := range f.symbols {
		px, ok := f.stubPx[sym]
		if !ok {
			px = 100 * float64(i+1)
		}
		px += 0.1
		f.stubPx[sym] = px
		out[sym] = px
		metrics.TicksTotal.WithLabelValues(sym).Inc()
	}
	return out
}

type asterTicker struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
}

func (f *Feed) fetchAster(ctx context.Context) (map[string]float64, error) {
	url := fmt.Sprintf("%s/fapi/v1/ticker/24hr", f.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build ticker request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		metrics.FeedErrorsTotal.WithLabelValues(ProviderAster).Inc()
		return nil, fmt.Errorf("fetch ticker: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.FeedErrorsTotal.WithLabelValues(ProviderAster).Inc()
		return nil, fmt.Errorf("ticker endpoint returned %d", resp.StatusCode)
	}

	var tickers []asterTicker
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return nil, fmt.Errorf("decode ticker payload: %w", err)
	}

	symbols := f.snapshotSymbols()
	tracked := make(map[string]string, len(symbols)) // pair -> base
	for _, sym := range symbols {
		tracked[sym+f.quote] = sym
	}

	out := make(map[string]float64, len(tracked))
	for _, tk := range tickers {
		base, ok := tracked[strings.ToUpper(tk.Symbol)]
		if !ok {
			continue
		}
		px, err := strconv.ParseFloat(tk.LastPrice, 64)
		if err != nil || px <= 0 {
			f.log.Warn().Str("symbol", tk.Symbol).Str("lastPrice", tk.LastPrice).Msg("invalid ticker price")
			continue
		}
		out[base] = px
		metrics.TicksTotal.WithLabelValues(base).Inc()
	}
	return out, nil
}

// Poll fetches on a fixed cadence and pushes each batch to out until the
// context is canceled. A failed fetch is "no update this cycle". A zero
// or negative interval falls back to 3 seconds.
func (f *Feed) Poll(ctx context.Context, interval time.Duration, out chan<- map[string]float64) error {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			prices, err := f.Fetch(ctx)
			if err != nil {
				f.log.Warn().Err(err).Msg("price poll failed")
				continue
			}
			select {
			case out <- prices:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
