package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"daisybot-go/internal/metrics"
	"daisybot-go/internal/signal"
)

// ProviderCoinglass polls the Coinglass derivatives analytics HTTP API.
const ProviderCoinglass = "coinglass"

const defaultCoinglassBaseURL = "https://open-api-v3.coinglass.com"

// Analytics fetches per-instrument derivatives sentiment snapshots,
// batched over the tracked symbol set. The upstream payloads are loosely
// typed; missing fields are defaulted exactly once here so scoring code
// never sees a partial snapshot.
type Analytics struct {
	provider string
	apiKey   string
	baseURL  string
	log      zerolog.Logger
	client   *http.Client

	mu      sync.RWMutex
	symbols []string
}

// AnalyticsOption configures Analytics construction.
type AnalyticsOption func(*Analytics)

// WithAnalyticsBaseURL overrides the HTTP endpoint, mainly for tests.
func WithAnalyticsBaseURL(u string) AnalyticsOption {
	return func(a *Analytics) {
		if u != "" {
			a.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithAPIKey attaches the provider secret sent on every request.
func WithAPIKey(key string) AnalyticsOption {
	return func(a *Analytics) { a.apiKey = key }
}

// WithAnalyticsHTTPClient injects the HTTP client, mainly for tests.
func WithAnalyticsHTTPClient(c *http.Client) AnalyticsOption {
	return func(a *Analytics) {
		if c != nil {
			a.client = c
		}
	}
}

// NewAnalytics constructs an analytics feed backed by the requested provider.
func NewAnalytics(provider string, symbols []string, log zerolog.Logger, opts ...AnalyticsOption) *Analytics {
	if provider == "" {
		provider = ProviderStub
	}
	a := &Analytics{
		provider: strings.ToLower(provider),
		baseURL:  defaultCoinglassBaseURL,
		log:      log,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	a.setSymbols(symbols)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analytics) setSymbols(symbols []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.symbols = a.symbols[:0]
	seen := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		a.symbols = append(a.symbols, sym)
	}
}

func (a *Analytics) snapshotSymbols() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.symbols))
	copy(out, a.symbols)
	return out
}

// Fetch returns one Indicators snapshot per tracked symbol. A symbol
// whose readings cannot be fetched is simply absent from the result;
// callers keep its previous snapshot for the cycle.
func (a *Analytics) Fetch(ctx context.Context) (map[string]signal.Indicators, error) {
	switch a.provider {
	case ProviderCoinglass:
		return a.fetchCoinglass(ctx)
	default:
		return a.fetchStub(), nil
	}
}

// fetchStub hands out a fixed spread of regimes so offline runs produce
// bullish, bearish, and neutral signals.
func (a *Analytics) fetchStub() map[string]signal.Indicators {
	now := time.Now()
	presets := []signal.Indicators{
		{FundingRate: -0.06, OIChangePercent: 5, LongShortRatio: 0.5, LiquidationUSD: 1_500_000_000},
		{FundingRate: 0.06, OIChangePercent: -5, LongShortRatio: 2.0, LiquidationUSD: 200_000_000},
		{FundingRate: 0.0001, OIChangePercent: 0.5, LongShortRatio: 1.0, LiquidationUSD: 50_000_000},
	}
	out := make(map[string]signal.Indicators)
	for i, sym := range a.snapshotSymbols() {
		ind := presets[i%len(presets)]
		ind.Ts = now
		out[sym] = ind
	}
	return out
}

// coinglassEnvelope mirrors the provider's loosely typed response shape.
// Pointer fields distinguish "absent" from zero so defaulting is explicit.
type coinglassEnvelope struct {
	Success bool          `json:"success"`
	Data    coinglassData `json:"data"`
}

type coinglassData struct {
	WeightedFundingRate *float64 `json:"weightedFundingRate"`
	ChangePercent       *float64 `json:"changePercent"`
	Ratio               *float64 `json:"ratio"`
	TotalLiquidation    *float64 `json:"totalLiquidation"`
}

func (a *Analytics) fetchCoinglass(ctx context.Context) (map[string]signal.Indicators, error) {
	now := time.Now()
	out := make(map[string]signal.Indicators)

	for _, sym := range a.snapshotSymbols() {
		ind, err := a.fetchCoinglassSymbol(ctx, sym)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			metrics.FeedErrorsTotal.WithLabelValues(ProviderCoinglass).Inc()
			a.log.Warn().Err(err).Str("symbol", sym).Msg("analytics fetch failed")
			continue
		}
		ind.Ts = now
		out[sym] = ind
	}
	return out, nil
}

func (a *Analytics) fetchCoinglassSymbol(ctx context.Context, symbol string) (signal.Indicators, error) {
	var ind signal.Indicators
	ind.LongShortRatio = 1 // balanced until the provider says otherwise

	endpoints := []struct {
		path  string
		apply func(coinglassData)
	}{
		{"fundingRate", func(d coinglassData) {
			if d.WeightedFundingRate != nil {
				ind.FundingRate = *d.WeightedFundingRate
			}
		}},
		{"openInterest", func(d coinglassData) {
			if d.ChangePercent != nil {
				ind.OIChangePercent = *d.ChangePercent
			}
		}},
		{"longShortRatio", func(d coinglassData) {
			if d.Ratio != nil && *d.Ratio > 0 {
				ind.LongShortRatio = *d.Ratio
			}
		}},
		{"liquidation", func(d coinglassData) {
			if d.TotalLiquidation != nil && *d.TotalLiquidation >= 0 {
				ind.LiquidationUSD = *d.TotalLiquidation
			}
		}},
	}

	for _, ep := range endpoints {
		env, err := a.getCoinglass(ctx, ep.path, symbol)
		if err != nil {
			return ind, err
		}
		if !env.Success {
			// Provider answered but has no reading; keep the default.
			continue
		}
		ep.apply(env.Data)
	}
	return ind, nil
}

func (a *Analytics) getCoinglass(ctx context.Context, path, symbol string) (coinglassEnvelope, error) {
	var env coinglassEnvelope

	url := fmt.Sprintf("%s/api/futures/%s?symbol=%s", a.baseURL, path, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return env, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("coinglassSecret", a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return env, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return env, fmt.Errorf("%s endpoint returned %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return env, fmt.Errorf("decode %s payload: %w", path, err)
	}
	return env, nil
}

// Poll fetches snapshots on a fixed cadence and pushes each batch to out
// until the context is canceled. Failed cycles are skipped silently so
// prior snapshots stay in force. A zero or negative interval falls back
// to 30 seconds.
func (a *Analytics) Poll(ctx context.Context, interval time.Duration, out chan<- map[string]signal.Indicators) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snapshots, err := a.Fetch(ctx)
			if err != nil {
				a.log.Warn().Err(err).Msg("analytics poll failed")
				continue
			}
			if len(snapshots) == 0 {
				continue
			}
			select {
			case out <- snapshots:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
