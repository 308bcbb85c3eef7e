package workflow

import (
	"context"
	"errors"
	"time"

	"podcastflow/internal/logging"
)

func (o *Orchestrator) notifyCompleted(ctx context.Context, projectID string, elapsed time.Duration) {
	p, err := o.store.GetProject(ctx, projectID)
	if err != nil || p == nil {
		return
	}
	if err := o.notifier.NotifyProjectCompleted(ctx, p, elapsed); err != nil {
		o.logNotifyError(ctx, err)
	}
}

func (o *Orchestrator) notifyFailed(ctx context.Context, projectID string) {
	p, err := o.store.GetProject(ctx, projectID)
	if err != nil || p == nil {
		return
	}
	if err := o.notifier.NotifyProjectFailed(ctx, p); err != nil {
		o.logNotifyError(ctx, err)
	}
}

func (o *Orchestrator) logNotifyError(ctx context.Context, err error) {
	logger := logging.WithContext(ctx, o.logger)
	if errors.Is(err, context.Canceled) {
		logger.Debug("shutting down, notification skipped")
		return
	}
	logging.WarnWithContext(logger, "notification failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		logging.String(logging.FieldImpact, "no push notification for this project"),
	)
}
