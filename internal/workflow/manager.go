package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"podcastflow/internal/config"
	"podcastflow/internal/logging"
	"podcastflow/internal/project"
	"podcastflow/internal/trigger"
)

const defaultErrorRetryInterval = 5 * time.Second

// Manager polls the store for work and hands it to the Orchestrator.
type Manager struct {
	orchestrator       *Orchestrator
	store              Store
	logger             *slog.Logger
	heartbeat          *HeartbeatMonitor
	pollInterval       time.Duration
	errorRetryInterval time.Duration
	maxConcurrent      int

	wake  chan struct{}
	slots chan struct{}

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	inflight  map[string]struct{}
	lastErr   error
	startedAt time.Time
}

// NewManager constructs a manager around orchestrator.
func NewManager(cfg *config.Config, store Store, orchestrator *Orchestrator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow-manager")
	maxConcurrent := cfg.Workflow.MaxConcurrentRuns
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Manager{
		orchestrator: orchestrator,
		store:        store,
		logger:       logger,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		pollInterval:       time.Duration(cfg.Workflow.PollInterval) * time.Second,
		errorRetryInterval: defaultErrorRetryInterval,
		maxConcurrent:      maxConcurrent,
		wake:               make(chan struct{}, 1),
		slots:              make(chan struct{}, maxConcurrent),
		inflight:           make(map[string]struct{}),
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.orchestrator == nil {
		m.mu.Unlock()
		return errors.New("workflow orchestrator not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.startedAt = time.Now()
	m.wg.Add(1)
	m.mu.Unlock()

	go m.loop(runCtx)
	m.logger.Info("workflow manager started",
		logging.Int("max_concurrent_runs", m.maxConcurrent),
		logging.Duration("poll_interval", m.pollInterval),
	)
	return nil
}

// Stop cancels the loop and waits for in-flight runs. Interrupted runs stay
// in processing and are resumed after the heartbeat timeout.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow manager stopped")
}

// Wake asks the loop to poll now instead of waiting for the next tick.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := m.tick(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.handleTickError(ctx, err)
			continue
		}
		m.waitForWork(ctx)
	}
}

// tick resumes stale runs, then starts runs for uploaded projects.
func (m *Manager) tick(ctx context.Context) error {
	stale, err := m.heartbeat.ReclaimStale(ctx)
	if err != nil {
		logging.WarnWithContext(m.logger, "reclaim stale runs failed; stuck projects may remain", "heartbeat_reclaim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}
	for _, id := range stale {
		if !m.dispatch(ctx, id, func(runCtx context.Context) error {
			return m.orchestrator.Resume(runCtx, id)
		}) {
			return ctx.Err()
		}
	}

	uploaded, err := m.store.ListByStatus(ctx, project.StatusUploaded, m.maxConcurrent)
	if err != nil {
		return err
	}
	for _, p := range uploaded {
		event := trigger.EventFromProject(p)
		if !m.dispatch(ctx, p.ID, func(runCtx context.Context) error {
			return m.orchestrator.HandleUpload(runCtx, event)
		}) {
			return ctx.Err()
		}
	}
	return nil
}

// dispatch starts fn in a goroutine once a run slot is free. It returns
// false when ctx ends first.
func (m *Manager) dispatch(ctx context.Context, id string, fn func(context.Context) error) bool {
	m.mu.Lock()
	if _, busy := m.inflight[id]; busy {
		m.mu.Unlock()
		return true
	}
	m.mu.Unlock()

	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		return false
	}

	m.mu.Lock()
	m.inflight[id] = struct{}{}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.inflight, id)
			m.mu.Unlock()
			<-m.slots
			m.Wake()
		}()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.setLastError(err)
			logging.WarnWithContext(m.logger.With(logging.ProjectID(id)), "run ended with an unrecorded error", "run_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "project will be retried on a later tick"),
			)
		}
	}()
	return true
}

func (m *Manager) handleTickError(ctx context.Context, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(m.logger, "failed to poll for uploaded projects", "workflow_poll_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.errorRetryInterval):
	}
}

func (m *Manager) waitForWork(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}
