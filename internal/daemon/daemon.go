package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"podcastflow/internal/api"
	"podcastflow/internal/auth"
	"podcastflow/internal/blob"
	"podcastflow/internal/config"
	"podcastflow/internal/logging"
	"podcastflow/internal/notifications"
	"podcastflow/internal/realtime"
	"podcastflow/internal/store"
	"podcastflow/internal/trigger"
	"podcastflow/internal/workflow"
)

// Consumer delivers upload events from an external transport.
type Consumer interface {
	Run(ctx context.Context, handler trigger.Handler) error
	Close() error
}

// Components are the collaborators a daemon runs. Store, Hub, Orchestrator
// and Manager are required.
type Components struct {
	Store        *store.Store
	Blobs        *blob.Store
	Hub          *realtime.Hub
	Tokens       *realtime.TokenIssuer
	Auth         *auth.Authenticator
	Orchestrator *workflow.Orchestrator
	Manager      *workflow.Manager
	Emitter      trigger.Emitter
	Consumer     Consumer
	Bridge       *realtime.Bridge
	Notifier     notifications.Service
	// Closers are released after everything else stops, in order.
	Closers []io.Closer
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	parts  Components
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	Transports   []string
}

// New constructs a daemon around parts.
func New(cfg *config.Config, parts Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || parts.Store == nil || parts.Hub == nil || parts.Orchestrator == nil || parts.Manager == nil {
		return nil, errors.New("daemon requires config, store, hub, orchestrator and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if parts.Notifier == nil {
		parts.Notifier = notifications.NewService(cfg.Notifications)
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		parts:    parts,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	srv, err := newAPIServer(cfg.Paths.APIBind, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock and launches the workflow manager, the API
// server and any configured transports.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another podcastflow daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	fail := func(err error) error {
		cancel()
		d.parts.Manager.Stop()
		_ = d.lock.Unlock()
		return err
	}

	if err := d.parts.Manager.Start(runCtx); err != nil {
		return fail(fmt.Errorf("start workflow: %w", err))
	}
	if d.parts.Bridge != nil {
		if err := d.parts.Bridge.Start(runCtx); err != nil {
			return fail(fmt.Errorf("start realtime bridge: %w", err))
		}
	}
	if err := d.api.start(runCtx); err != nil {
		return fail(err)
	}
	if d.parts.Consumer != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.parts.Consumer.Run(runCtx, d.parts.Orchestrator); err != nil {
				logging.ErrorWithContext(d.logger, "upload event consumer stopped", "consumer_stopped",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check kafka brokers; uploads still start via polling"),
				)
			}
		}()
	}

	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("podcastflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. Runs in
// flight stay processing and resume on the next start.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.parts.Manager.Stop()
	if d.parts.Consumer != nil {
		if err := d.parts.Consumer.Close(); err != nil {
			d.logger.Warn("failed to close event consumer", logging.Error(err))
		}
	}
	d.wg.Wait()
	if d.parts.Bridge != nil {
		if err := d.parts.Bridge.Close(); err != nil {
			d.logger.Warn("failed to close realtime bridge", logging.Error(err))
		}
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("podcastflow daemon stopped")
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	for _, c := range d.parts.Closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.parts.Store != nil {
		if err := d.parts.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Addr returns the API listen address once started.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.parts.Manager.Status(ctx),
		DatabasePath: d.parts.Store.Path(),
		LockFilePath: d.lockPath,
		Transports:   d.transports(),
	}
	if status.Running {
		status.StartedAt = d.startedAt
	}
	return status
}

func (d *Daemon) transports() []string {
	out := []string{"poll"}
	if d.parts.Emitter != nil {
		out = append(out, "local")
	}
	if d.parts.Consumer != nil {
		out = append(out, "kafka")
	}
	if d.parts.Bridge != nil {
		out = append(out, "redis")
	}
	return out
}

// TestNotification sends a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.parts.Notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func (d *Daemon) statusPayload(ctx context.Context) api.DaemonStatus {
	status := d.Status(ctx)
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Transports:   status.Transports,
	}
	if status.Running {
		payload.Uptime = time.Since(status.StartedAt).Round(time.Second).String()
	}
	return payload
}
