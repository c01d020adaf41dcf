package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"daisybot-go/internal/metrics"
	"daisybot-go/internal/signal"
)

type wsEnvelope struct {
	Stream string  `json:"stream"`
	Data   wsTrade `json:"data"`
}

type wsTrade struct {
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}

// Stream pushes live trade prices onto out until the context is canceled.
// It reconnects with exponential backoff on transport errors. Only the
// aster provider streams; stub callers should use Poll instead.
func (f *Feed) Stream(ctx context.Context, out chan<- signal.Tick) error {
	symbols := f.snapshotSymbols()
	if len(symbols) == 0 {
		return fmt.Errorf("ws stream requires at least one symbol")
	}

	streams := make([]string, len(symbols))
	for i, sym := range symbols {
		streams[i] = strings.ToLower(sym+f.quote) + "@aggTrade"
	}

	url := fmt.Sprintf("%s/stream?streams=%s", f.wsURL, strings.Join(streams, "/"))
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consumeStream(ctx, url, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.FeedErrorsTotal.WithLabelValues(f.provider).Inc()
			f.log.Warn().Err(err).Msg("price stream disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (f *Feed) consumeStream(ctx context.Context, url string, out chan<- signal.Tick) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Str("provider", f.provider).Strs("symbols", f.snapshotSymbols()).Msg("connected price stream")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("price stream ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env wsEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode stream message")
			continue
		}

		symbol := f.baseFromStream(env.Stream)
		px, err := strconv.ParseFloat(env.Data.Price, 64)
		if err != nil || px <= 0 {
			f.log.Warn().Str("stream", env.Stream).Msg("invalid price from stream")
			continue
		}

		tick := signal.Tick{
			Symbol: symbol,
			Price:  px,
			Ts:     time.UnixMilli(env.Data.TradeTime),
		}

		select {
		case out <- tick:
			metrics.TicksTotal.WithLabelValues(symbol).Inc()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// baseFromStream recovers the base symbol from a stream name like "btcusdt@aggTrade".
func (f *Feed) baseFromStream(stream string) string {
	pair := strings.ToUpper(strings.SplitN(stream, "@", 2)[0])
	return strings.TrimSuffix(pair, f.quote)
}
