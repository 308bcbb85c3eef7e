package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"podcastflow/internal/config"
	"podcastflow/internal/services"
)

// Store is the SQLite-backed persistence gateway for project records.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
	busy busyPolicy
}

// connectionPragmas are applied once per Open; busy_timeout makes SQLite wait
// on its own before busyPolicy takes over.
var connectionPragmas = []string{
	"journal_mode=WAL",
	"foreign_keys = ON",
	"busy_timeout = 5000",
}

// busyPolicy retries statements that fail with SQLITE_BUSY using doubling
// delays.
type busyPolicy struct {
	attempts int
	first    time.Duration
	ceiling  time.Duration
}

var defaultBusyPolicy = busyPolicy{attempts: 5, first: 10 * time.Millisecond, ceiling: 200 * time.Millisecond}

func (p busyPolicy) run(ctx context.Context, op func() error) error {
	delay := p.first
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !databaseLocked(err) || attempt >= p.attempts {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, p.ceiling)
	}
}

// databaseLocked reports SQLITE_BUSY, either through the driver's result
// code or its message.
func databaseLocked(err error) bool {
	const sqliteBusy = 5
	var coded interface{ Code() int }
	if errors.As(err, &coded) && coded.Code()&0xff == sqliteBusy {
		return true
	}
	text := err.Error()
	return strings.Contains(text, "SQLITE_BUSY") || strings.Contains(text, "database is locked")
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var result sql.Result
	err := s.busy.run(ctx, func() error {
		var execErr error
		result, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return result, err
}

// withTx runs fn in a transaction. A busy database retries the whole unit.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return s.busy.run(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if fnErr := fn(tx); fnErr != nil {
			_ = tx.Rollback()
			return fnErr
		}
		return tx.Commit()
	})
}

// Open creates the data directory when needed and opens the project
// database inside it.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the database at dbPath and migrates it to the current
// schema version.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	s := &Store{db: db, path: dbPath, now: time.Now, busy: defaultBusyPolicy}
	if err := s.configure(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure(ctx context.Context) error {
	for _, pragma := range connectionPragmas {
		if _, err := s.db.ExecContext(ctx, "PRAGMA "+pragma); err != nil {
			return fmt.Errorf("pragma %s: %w", pragma, err)
		}
	}
	return s.migrate(ctx)
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database handle. It is safe on a nil Store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return persistenceErr("ping", s.db.PingContext(ensureContext(ctx)))
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}

// persistenceErr marks raw database failures as ErrPersistence. Cancellation
// and errors that already carry a domain marker pass through.
func persistenceErr(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("store: %s: %w", operation, err)
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrValidation):
		return err
	default:
		return services.Wrap(services.ErrPersistence, "store", operation, "", err)
	}
}
