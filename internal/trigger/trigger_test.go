package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"podcastflow/internal/services"
)

func sampleEvent() UploadEvent {
	duration := 600.0
	return UploadEvent{
		ProjectID:    "p-1",
		FileURL:      "https://blob.example/uploads/u/episode-abc.mp3",
		UserID:       "user-1",
		FileName:     "episode.mp3",
		FileSize:     1024,
		MIMEType:     "audio/mpeg",
		FileDuration: &duration,
	}
}

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafkago.Message
	committed []int64
	cancel    context.CancelFunc
	readErrs  []error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.readErrs) > 0 {
		err := r.readErrs[0]
		r.readErrs = r.readErrs[1:]
		return kafkago.Message{}, err
	}
	if len(r.messages) == 0 {
		r.cancel()
		return kafkago.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func messageFor(t *testing.T, event UploadEvent, offset int64) kafkago.Message {
	t.Helper()
	msg, err := encodeMessage(event)
	if err != nil {
		t.Fatalf("encodeMessage: %v", err)
	}
	msg.Offset = offset
	return msg
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestDecodeEventValidates(t *testing.T) {
	payload, _ := json.Marshal(sampleEvent())
	event, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if event.ProjectID != "p-1" || event.FileDuration == nil || *event.FileDuration != 600 {
		t.Fatalf("unexpected event %+v", event)
	}

	for _, raw := range []string{"", "{not json", `{"projectId":"p"}`} {
		if _, err := DecodeEvent([]byte(raw)); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("DecodeEvent(%q) expected ErrValidation, got %v", raw, err)
		}
	}
}

func TestEncodeMessageKeysByProject(t *testing.T) {
	msg := messageFor(t, sampleEvent(), 0)
	if string(msg.Key) != "p-1" {
		t.Fatalf("expected project key, got %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != uploadEventType {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
	if _, err := encodeMessage(UploadEvent{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestKafkaConsumerCommitsAfterHandling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	second := sampleEvent()
	second.ProjectID = "p-2"
	reader := &fakeReader{
		cancel: cancel,
		messages: []kafkago.Message{
			messageFor(t, sampleEvent(), 10),
			{Offset: 11, Value: []byte("garbage")},
			messageFor(t, second, 12),
		},
	}
	consumer := newKafkaConsumer(reader, "uploads", "group", nil)
	consumer.sleep = noSleep

	var handled []string
	err := consumer.Run(ctx, HandlerFunc(func(_ context.Context, event UploadEvent) error {
		handled = append(handled, event.ProjectID)
		return nil
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(handled) != 2 || handled[0] != "p-1" || handled[1] != "p-2" {
		t.Fatalf("unexpected handled events %v", handled)
	}
	if len(reader.committed) != 3 {
		t.Fatalf("expected all three offsets committed, got %v", reader.committed)
	}
}

func TestKafkaConsumerRetriesTransientHandlerErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{cancel: cancel, messages: []kafkago.Message{messageFor(t, sampleEvent(), 1)}}
	consumer := newKafkaConsumer(reader, "uploads", "group", nil)
	consumer.sleep = noSleep

	calls := 0
	err := consumer.Run(ctx, HandlerFunc(func(context.Context, UploadEvent) error {
		calls++
		if calls < 2 {
			return services.Wrap(services.ErrPersistence, "workflow", "claim", "", errors.New("database is locked"))
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls)
	}
	if len(reader.committed) != 1 {
		t.Fatalf("expected commit after success, got %v", reader.committed)
	}
}

func TestKafkaConsumerDoesNotRetryFatalErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{cancel: cancel, messages: []kafkago.Message{messageFor(t, sampleEvent(), 1)}}
	consumer := newKafkaConsumer(reader, "uploads", "group", nil)
	consumer.sleep = noSleep

	calls := 0
	_ = consumer.Run(ctx, HandlerFunc(func(context.Context, UploadEvent) error {
		calls++
		return services.Wrap(services.ErrFatal, "workflow", "run", "", nil)
	}))
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
	if len(reader.committed) != 1 {
		t.Fatalf("expected fatal failure to be committed, got %v", reader.committed)
	}
}

func TestKafkaConsumerBacksOffOnReadErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{cancel: cancel, readErrs: []error{errors.New("broker down"), errors.New("broker down")}}
	consumer := newKafkaConsumer(reader, "uploads", "group", nil)
	var delays []time.Duration
	consumer.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	if err := consumer.Run(ctx, HandlerFunc(func(context.Context, UploadEvent) error { return nil })); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Fatalf("unexpected backoff %v", delays)
	}
}

type wakeCounter struct{ n int }

func (w *wakeCounter) Wake() { w.n++ }

func TestLocalEmitterWakesManager(t *testing.T) {
	waker := &wakeCounter{}
	emitter := NewLocalEmitter(waker)
	if err := emitter.Emit(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if waker.n != 1 {
		t.Fatalf("expected one wake, got %d", waker.n)
	}
	if err := emitter.Emit(context.Background(), UploadEvent{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if waker.n != 1 {
		t.Fatalf("invalid event must not wake, got %d", waker.n)
	}
}

type recordingWriter struct {
	msgs []kafkago.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestMultiEmitterJoinsErrors(t *testing.T) {
	ok := &recordingWriter{}
	failing := &recordingWriter{err: errors.New("leader not available")}
	emitter := MultiEmitter{
		&KafkaProducer{writer: ok, topic: "uploads"},
		&KafkaProducer{writer: failing, topic: "uploads"},
	}
	err := emitter.Emit(context.Background(), sampleEvent())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(ok.msgs) != 1 {
		t.Fatalf("expected healthy producer to publish, got %d", len(ok.msgs))
	}
}
