package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"podcastflow/internal/llm"
	"podcastflow/internal/logging"
	"podcastflow/internal/project"
	"podcastflow/internal/services"
)

// ErrNoChapters is returned when a chapter-timed artifact is requested for a
// transcript without chapters.
var ErrNoChapters = errors.New("no chapters available")

// Generator produces one generation artifact from a transcript. The returned
// value has the type project.Bundle.Set expects for Job().
type Generator interface {
	Job() project.Job
	Generate(ctx context.Context, transcript *project.Transcript) (any, error)
}

// Tasks returns the six generators in canonical job order.
func Tasks(completer llm.Completer, logger *slog.Logger) []Generator {
	base := modelTask{completer: completer, logger: logging.NewComponentLogger(nonNil(logger), "generation")}
	return []Generator{
		KeyMoments{},
		Summary{base},
		SocialPosts{base},
		Titles{base},
		Hashtags{base},
		YouTubeTimestamps{base},
	}
}

// OutputError reports model output that could not be used: unparseable JSON
// or a reply that violates the artifact's shape.
type OutputError struct {
	Job project.Job
	Err error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("%s: unusable model output: %v", e.Job, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

type modelTask struct {
	completer llm.Completer
	logger    *slog.Logger
}

// ask runs a single completion, decodes it into target and runs check on the
// decoded value.
func (m modelTask) ask(ctx context.Context, job project.Job, system, user string, target any, check func() error) error {
	if m.completer == nil {
		return services.Wrap(services.ErrConfiguration, "generation", string(job), "no model configured", nil)
	}
	content, err := m.completer.CompleteJSON(ctx, system, user)
	if err != nil {
		return err
	}
	if err := llm.DecodeJSON(content, target); err != nil {
		return &OutputError{Job: job, Err: err}
	}
	if check != nil {
		if err := check(); err != nil {
			return &OutputError{Job: job, Err: err}
		}
	}
	return nil
}

// fallback logs the reason a deterministic derivation replaced model output.
func (m modelTask) fallback(ctx context.Context, job project.Job, err error) {
	logger := logging.WithContext(ctx, m.logger)
	logging.WarnWithContext(logger, "model output unusable; using deterministic fallback", "generation_fallback",
		logging.Job(string(job)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the configured model supports JSON output"),
		logging.String(logging.FieldImpact, "artifact derived from transcript chapters"),
	)
}

func isOutputError(err error) bool {
	var outErr *OutputError
	return errors.As(err, &outErr)
}

func nonNil(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return logging.NewNop()
	}
	return logger
}
