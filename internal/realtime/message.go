package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Message is one event published on a channel.
type Message struct {
	Sequence  uint64          `json:"seq"`
	Channel   string          `json:"channel"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"ts"`
	Origin    string          `json:"origin,omitempty"`
}

// Decode unmarshals the message payload into dest.
func (m Message) Decode(dest any) error {
	if len(m.Data) == 0 {
		return errors.New("realtime: message has no data")
	}
	return json.Unmarshal(m.Data, dest)
}

// Publisher broadcasts a payload on channel under topic.
type Publisher interface {
	Publish(ctx context.Context, channel, topic string, data any) error
}

// MultiPublisher publishes to every wrapped publisher and joins their errors.
type MultiPublisher []Publisher

// Publish implements Publisher.
func (m MultiPublisher) Publish(ctx context.Context, channel, topic string, data any) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, channel, topic, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

func encodeData(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		return json.Marshal(v)
	}
}
