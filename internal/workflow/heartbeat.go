package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"podcastflow/internal/logging"
	"podcastflow/internal/services"
)

// HeartbeatMonitor keeps processing projects alive and finds runs whose
// owner stopped beating.
type HeartbeatMonitor struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewHeartbeatMonitor creates a monitor.
func NewHeartbeatMonitor(store Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HeartbeatMonitor{
		store:    store,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
	}
}

// ReclaimStale returns processing projects whose heartbeat is older than the
// timeout. The store refreshes their heartbeat as part of the claim, so only
// one caller gets each id.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) ([]string, error) {
	if h == nil || h.timeout <= 0 {
		return nil, nil
	}
	ids, err := h.store.ClaimStale(ctx, h.now().Add(-h.timeout))
	if err != nil {
		return ids, err
	}
	if len(ids) > 0 {
		h.logger.Info("reclaimed stale runs", logging.Int("count", len(ids)))
	}
	return ids, nil
}

// StartLoop refreshes the heartbeat of projectID until ctx is cancelled or
// the project leaves processing.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, projectID string) {
	defer wg.Done()
	if h == nil || h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, logging.NewComponentLogger(h.logger, "workflow-heartbeat"))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := h.store.Touch(ctx, projectID)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled):
				return
			case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrNotFound):
				logger.Debug("heartbeat stopped; project left processing")
				return
			default:
				logger.Warn("heartbeat update failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_failed"),
					logging.String(logging.FieldErrorHint, "check database access"),
					logging.String(logging.FieldImpact, "run may be reclaimed by another worker"),
				)
			}
		}
	}
}
