package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultChannelCapacity = 512
	defaultMaxChannels     = 1024
	retiredPerChannel      = 8
)

// Hub stores recent messages per channel and wakes waiters when new messages
// arrive. Sequence numbers are per channel and start at 1. A channel that is
// evicted or forgotten and later recreated continues from its last sequence.
type Hub struct {
	mu          sync.Mutex
	cond        *sync.Cond
	capacity    int
	maxChannels int
	channels    map[string]*channelBuffer
	retired     map[string]uint64 // last sequence of dropped channels
	origin      string
	now         func() time.Time
}

type channelBuffer struct {
	buffer  []Message
	nextSeq uint64
	touched time.Time
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

// WithMaxChannels bounds how many channels are buffered at once. The least
// recently published channel is dropped first.
func WithMaxChannels(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.maxChannels = n
		}
	}
}

// WithOrigin stamps locally published messages with origin.
func WithOrigin(origin string) HubOption {
	return func(h *Hub) {
		h.origin = strings.TrimSpace(origin)
	}
}

// NewHub constructs a hub keeping up to capacity messages per channel.
func NewHub(capacity int, opts ...HubOption) *Hub {
	if capacity <= 0 {
		capacity = defaultChannelCapacity
	}
	h := &Hub{
		capacity:    capacity,
		maxChannels: defaultMaxChannels,
		channels:    make(map[string]*channelBuffer),
		retired:     make(map[string]uint64),
		now:         time.Now,
	}
	h.cond = sync.NewCond(&h.mu)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish encodes data and appends it to channel.
func (h *Hub) Publish(_ context.Context, channel, topic string, data any) error {
	if h == nil {
		return nil
	}
	raw, err := encodeData(data)
	if err != nil {
		return fmt.Errorf("realtime: encode %s payload: %w", topic, err)
	}
	h.Append(Message{Channel: channel, Topic: topic, Data: raw, Origin: h.origin})
	return nil
}

// Append stores msg on its channel, assigning the next sequence number.
func (h *Hub) Append(msg Message) Message {
	if h == nil {
		return msg
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	buf, ok := h.channels[msg.Channel]
	if !ok {
		h.evictLocked()
		buf = &channelBuffer{nextSeq: h.retired[msg.Channel]}
		delete(h.retired, msg.Channel)
		h.channels[msg.Channel] = buf
	}
	buf.nextSeq++
	buf.touched = h.now()
	msg.Sequence = buf.nextSeq
	if msg.Timestamp.IsZero() {
		msg.Timestamp = h.now().UTC()
	}
	if len(buf.buffer) == h.capacity {
		copy(buf.buffer, buf.buffer[1:])
		buf.buffer = buf.buffer[:h.capacity-1]
	}
	buf.buffer = append(buf.buffer, msg)
	h.cond.Broadcast()
	return msg
}

// Fetch returns messages on channel with sequence greater than since. When
// wait is true, Fetch blocks until at least one message is available or the
// context ends.
func (h *Hub) Fetch(ctx context.Context, channel string, since uint64, limit int, wait bool) ([]Message, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		messages, next := h.snapshotLocked(channel, since, limit)
		if len(messages) > 0 || !wait {
			return messages, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Latest reports the newest sequence number on channel.
func (h *Hub) Latest(channel string) uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if buf, ok := h.channels[channel]; ok {
		return buf.nextSeq
	}
	return 0
}

// Forget drops the buffered messages for channel. Its sequence watermark is
// kept so later messages still sort after what subscribers have seen.
func (h *Hub) Forget(channel string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.retireLocked(channel)
	h.mu.Unlock()
}

// Expire forgets channel once after has elapsed, giving late subscribers time
// to read the final messages of a finished project.
func (h *Hub) Expire(channel string, after time.Duration) {
	if h == nil {
		return
	}
	if after <= 0 {
		h.Forget(channel)
		return
	}
	time.AfterFunc(after, func() { h.Forget(channel) })
}

func (h *Hub) snapshotLocked(channel string, since uint64, limit int) ([]Message, uint64) {
	buf, ok := h.channels[channel]
	if !ok || len(buf.buffer) == 0 {
		if ok {
			return nil, buf.nextSeq
		}
		return nil, since
	}
	if since > buf.nextSeq {
		// The cursor belongs to an earlier incarnation of the channel whose
		// watermark was lost; replay what is buffered.
		since = 0
	}
	startIdx := -1
	for i, msg := range buf.buffer {
		if msg.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, buf.nextSeq
	}
	end := startIdx + limit
	if end > len(buf.buffer) {
		end = len(buf.buffer)
	}
	out := make([]Message, end-startIdx)
	copy(out, buf.buffer[startIdx:end])
	return out, out[len(out)-1].Sequence
}

func (h *Hub) evictLocked() {
	if len(h.channels) < h.maxChannels {
		return
	}
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, buf := range h.channels {
		if oldestKey == "" || buf.touched.Before(oldest) {
			oldestKey = key
			oldest = buf.touched
		}
	}
	h.retireLocked(oldestKey)
}

func (h *Hub) retireLocked(channel string) {
	buf, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(h.channels, channel)
	if len(h.retired) >= retiredPerChannel*h.maxChannels {
		for key := range h.retired {
			delete(h.retired, key)
			break
		}
	}
	h.retired[channel] = buf.nextSeq
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
