package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"podcastflow/internal/config"
	"podcastflow/internal/logging"
	"podcastflow/internal/services"
)

const (
	eventTypeHeader   = "event-type"
	uploadEventType   = "upload.completed"
	handleAttempts    = 3
	maxReadBackoff    = 30 * time.Second
	producerBatchTime = 50 * time.Millisecond
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaConsumer reads upload events from a consumer group and hands them to
// a Handler. Offsets are committed only after the handler returns, so a crash
// mid-run redelivers the event.
type KafkaConsumer struct {
	reader   messageReader
	topic    string
	groupID  string
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
	failures int
}

// NewKafkaConsumer builds a consumer for the configured topic and group.
func NewKafkaConsumer(cfg config.Trigger, logger *slog.Logger) (*KafkaConsumer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "trigger", "kafka consumer", "no brokers configured", nil)
	}
	clog := logging.NewComponentLogger(logger, "kafka-consumer")
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic,
		GroupID:     cfg.KafkaGroupID,
		StartOffset: kafkago.FirstOffset,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...any) {
			clog.Warn("kafka reader: "+fmt.Sprintf(msg, args...),
				logging.String(logging.FieldEventType, "kafka_reader_error"),
			)
		}),
	})
	return newKafkaConsumer(reader, cfg.KafkaTopic, cfg.KafkaGroupID, clog), nil
}

func newKafkaConsumer(reader messageReader, topic, groupID string, logger *slog.Logger) *KafkaConsumer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &KafkaConsumer{
		reader:  reader,
		topic:   topic,
		groupID: groupID,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Run consumes until ctx is cancelled. It returns nil on shutdown.
func (c *KafkaConsumer) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("kafka consumer: nil handler")
	}
	c.logger.Info("kafka consumer started",
		logging.String("topic", c.topic),
		logging.String("group_id", c.groupID),
	)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if waitErr := c.backoff(ctx, err); waitErr != nil {
				return nil
			}
			continue
		}
		c.failures = 0

		if !c.handle(ctx, handler, msg) {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.WarnWithContext(c.logger, "kafka commit failed; event may be redelivered", "kafka_commit_failed",
				logging.Error(err),
				logging.Int64("offset", msg.Offset),
				logging.String(logging.FieldErrorHint, "check broker connectivity"),
			)
		}
	}
}

// handle processes one message and reports whether the offset should be
// committed. It returns false only on shutdown.
func (c *KafkaConsumer) handle(ctx context.Context, handler Handler, msg kafkago.Message) bool {
	event, err := DecodeEvent(msg.Value)
	if err != nil {
		logging.WarnWithContext(c.logger, "dropping malformed upload event", "kafka_event_invalid",
			logging.Error(err),
			logging.Int64("offset", msg.Offset),
			logging.Int("partition", msg.Partition),
		)
		return true
	}

	eventCtx := services.WithProjectID(ctx, event.ProjectID)
	logger := logging.WithContext(eventCtx, c.logger)
	for attempt := 1; attempt <= handleAttempts; attempt++ {
		err = handler.HandleUpload(eventCtx, event)
		if err == nil {
			return true
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return false
		}
		if !services.Retryable(err) || attempt == handleAttempts {
			break
		}
		logger.Debug("upload handler failed; retrying", logging.Attempt(attempt), logging.Error(err))
		if c.sleep(ctx, time.Duration(attempt)*time.Second) != nil {
			return false
		}
	}
	logging.ErrorWithContext(logger, "upload event handling failed", "kafka_event_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "project stays queued for the polling manager"),
	)
	return true
}

func (c *KafkaConsumer) backoff(ctx context.Context, err error) error {
	c.failures++
	if c.failures <= 3 {
		logging.WarnWithContext(c.logger, "kafka read failed", "kafka_read_failed",
			logging.Error(err),
			logging.Int("failures", c.failures),
			logging.String(logging.FieldErrorHint, "check broker connectivity"),
		)
	}
	delay := time.Duration(c.failures) * time.Second
	if delay > maxReadBackoff {
		delay = maxReadBackoff
	}
	return c.sleep(ctx, delay)
}

// Close releases the reader.
func (c *KafkaConsumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// KafkaProducer publishes upload events keyed by project id so redeliveries
// of one project land on one partition.
type KafkaProducer struct {
	writer messageWriter
	topic  string
}

// NewKafkaProducer builds a producer for the configured topic.
func NewKafkaProducer(cfg config.Trigger, logger *slog.Logger) (*KafkaProducer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "trigger", "kafka producer", "no brokers configured", nil)
	}
	plog := logging.NewComponentLogger(logger, "kafka-producer")
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: producerBatchTime,
		RequiredAcks: kafkago.RequireAll,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...any) {
			plog.Warn("kafka writer: "+fmt.Sprintf(msg, args...),
				logging.String(logging.FieldEventType, "kafka_writer_error"),
			)
		}),
	}
	return &KafkaProducer{writer: writer, topic: cfg.KafkaTopic}, nil
}

// Emit implements Emitter.
func (p *KafkaProducer) Emit(ctx context.Context, event UploadEvent) error {
	msg, err := encodeMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return services.Wrap(services.ErrTransient, "trigger", "kafka publish", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeMessage(event UploadEvent) (kafkago.Message, error) {
	if err := event.Validate(); err != nil {
		return kafkago.Message{}, err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("encode upload event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ProjectID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: eventTypeHeader, Value: []byte(uploadEventType)},
		},
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
