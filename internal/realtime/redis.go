package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"podcastflow/internal/config"
	"podcastflow/internal/logging"
)

// NewRedisClient builds a client from the realtime config section.
func NewRedisClient(cfg config.Realtime) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// RedisPublisher relays events to other instances over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	origin string
	now    func() time.Time
}

// NewRedisPublisher publishes on prefix+channel and tags messages with origin
// so the local Bridge can skip its own echoes.
func NewRedisPublisher(client *redis.Client, prefix, origin string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix, origin: origin, now: time.Now}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, channel, topic string, data any) error {
	if p == nil || p.client == nil {
		return nil
	}
	raw, err := encodeData(data)
	if err != nil {
		return fmt.Errorf("realtime: encode %s payload: %w", topic, err)
	}
	payload, err := json.Marshal(Message{
		Channel:   channel,
		Topic:     topic,
		Data:      raw,
		Timestamp: p.now().UTC(),
		Origin:    p.origin,
	})
	if err != nil {
		return fmt.Errorf("realtime: encode envelope: %w", err)
	}
	if err := p.client.Publish(ctx, p.prefix+channel, payload).Err(); err != nil {
		return fmt.Errorf("realtime: redis publish %s: %w", topic, err)
	}
	return nil
}

// Bridge copies events published by other instances into the local hub.
type Bridge struct {
	client *redis.Client
	hub    *Hub
	prefix string
	origin string
	logger *slog.Logger
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewBridge wires a Redis subscription to hub. Messages tagged with origin are
// ignored because the local hub already holds them.
func NewBridge(client *redis.Client, hub *Hub, prefix, origin string, logger *slog.Logger) *Bridge {
	return &Bridge{
		client: client,
		hub:    hub,
		prefix: prefix,
		origin: origin,
		logger: logging.NewComponentLogger(logger, "realtime-bridge"),
		done:   make(chan struct{}),
	}
}

// Start subscribes and returns once Redis confirmed the subscription. Events
// are relayed until ctx ends or Close is called.
func (b *Bridge) Start(ctx context.Context) error {
	pattern := b.prefix + channelPrefix + "*"
	pubsub := b.client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("realtime: subscribe %s: %w", pattern, err)
	}
	b.pubsub = pubsub
	b.logger.Info("realtime bridge subscribed", logging.String("pattern", pattern))

	go b.run(ctx, pubsub.Channel())
	return nil
}

// Close stops the subscription and waits for the relay loop to exit.
func (b *Bridge) Close() error {
	if b.pubsub == nil {
		return nil
	}
	err := b.pubsub.Close()
	<-b.done
	return err
}

func (b *Bridge) run(ctx context.Context, messages <-chan *redis.Message) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.relay(msg)
		}
	}
}

func (b *Bridge) relay(msg *redis.Message) {
	var event Message
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		logging.WarnWithContext(b.logger, "discarding malformed realtime message", "realtime_decode_failed",
			logging.String("redis_channel", msg.Channel),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "another publisher is writing a different envelope format"),
		)
		return
	}
	if event.Origin != "" && event.Origin == b.origin {
		return
	}
	if event.Channel == "" {
		event.Channel = strings.TrimPrefix(msg.Channel, b.prefix)
	}
	b.hub.Append(event)
}
