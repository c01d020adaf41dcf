package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event names published on the broadcast channel.
const (
	EventBalance        = "balance"
	EventPositionOpened = "position_opened"
	EventPositionClosed = "position_closed"
	EventPositionMarked = "position_marked"
	EventEquityPoint    = "equity_point"
)

const defaultChannelPrefix = "daisy:live"

// Broadcaster publishes state-change events over redis pub/sub so
// dashboard readers subscribe instead of polling the database.
type Broadcaster struct {
	client *redis.Client
	prefix string
}

// BroadcasterOption configures Broadcaster construction.
type BroadcasterOption func(*Broadcaster)

// WithChannelPrefix overrides the pub/sub channel namespace.
func WithChannelPrefix(prefix string) BroadcasterOption {
	return func(b *Broadcaster) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// NewBroadcaster connects to redis and verifies the connection.
func NewBroadcaster(addr, password string, db int, opts ...BroadcasterOption) (*Broadcaster, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	b := &Broadcaster{client: client, prefix: defaultChannelPrefix}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// envelope is the wire shape published for every event.
type envelope struct {
	Event   string    `json:"event"`
	Ts      time.Time `json:"ts"`
	Payload any       `json:"payload"`
}

// Publish serializes the payload and publishes it on "<prefix>:<event>".
func (b *Broadcaster) Publish(ctx context.Context, event string, payload any) error {
	body, err := json.Marshal(envelope{Event: event, Ts: time.Now(), Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	channel := fmt.Sprintf("%s:%s", b.prefix, event)
	if err := b.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", event, err)
	}
	return nil
}

// Close releases the redis connection.
func (b *Broadcaster) Close() error { return b.client.Close() }
