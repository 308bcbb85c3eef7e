package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"podcastflow/internal/auth"
	"podcastflow/internal/blob"
	"podcastflow/internal/config"
	"podcastflow/internal/generation"
	"podcastflow/internal/llm"
	"podcastflow/internal/logging"
	"podcastflow/internal/notifications"
	"podcastflow/internal/realtime"
	"podcastflow/internal/store"
	"podcastflow/internal/transcription"
	"podcastflow/internal/trigger"
	"podcastflow/internal/workflow"
)

// Build opens every collaborator named by cfg and returns a daemon ready to
// Start. On error, anything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Daemon, err error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	var closers []io.Closer
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i].Close()
			}
		}
	}()

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	closers = append(closers, st)

	blobs, err := blob.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open blob storage: %w", err)
	}
	authenticator, err := auth.New(cfg.Auth)
	if err != nil {
		return nil, err
	}
	tokens, err := realtime.NewTokenIssuer(cfg.Realtime.TokenSecret,
		time.Duration(cfg.Realtime.TokenTTLSeconds)*time.Second, "podcastflow")
	if err != nil {
		return nil, err
	}

	origin := uuid.NewString()
	hub := realtime.NewHub(cfg.Realtime.BufferSize, realtime.WithOrigin(origin))
	var (
		publisher realtime.Publisher = hub
		bridge    *realtime.Bridge
	)
	if cfg.Realtime.RedisEnabled {
		client := realtime.NewRedisClient(cfg.Realtime)
		closers = append(closers, client)
		publisher = realtime.MultiPublisher{hub, realtime.NewRedisPublisher(client, cfg.Realtime.ChannelPrefix, origin)}
		bridge = realtime.NewBridge(client, hub, cfg.Realtime.ChannelPrefix, origin, logger)
	}

	completer, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	transcriber := transcription.NewClient(transcription.ConfigFromSettings(cfg.Transcription),
		transcription.WithLogger(logger),
		transcription.WithSourceOpener(blobs),
	)
	notifier := notifications.NewService(cfg.Notifications)

	orchestrator := workflow.NewOrchestrator(cfg, st, transcriber, generation.Tasks(completer, logger),
		workflow.WithPublisher(publisher),
		workflow.WithCaptions(blobs),
		workflow.WithNotifier(notifier),
		workflow.WithChannelExpiry(hub, time.Duration(cfg.Realtime.RetentionSeconds)*time.Second),
		workflow.WithLogger(logger),
	)
	manager := workflow.NewManager(cfg, st, orchestrator, logger)

	emitters := trigger.MultiEmitter{trigger.NewLocalEmitter(manager)}
	var consumer Consumer
	if cfg.Trigger.KafkaEnabled {
		producer, err := trigger.NewKafkaProducer(cfg.Trigger, logger)
		if err != nil {
			return nil, err
		}
		closers = append(closers, producer)
		emitters = append(emitters, producer)

		kafkaConsumer, err := trigger.NewKafkaConsumer(cfg.Trigger, logger)
		if err != nil {
			return nil, err
		}
		consumer = kafkaConsumer
	}

	d, err := New(cfg, Components{
		Store:        st,
		Blobs:        blobs,
		Hub:          hub,
		Tokens:       tokens,
		Auth:         authenticator,
		Orchestrator: orchestrator,
		Manager:      manager,
		Emitter:      emitters,
		Consumer:     consumer,
		Bridge:       bridge,
		Notifier:     notifier,
		Closers:      closers[1:],
	}, logger)
	if err != nil {
		if consumer != nil {
			_ = consumer.Close()
		}
		return nil, err
	}
	return d, nil
}
