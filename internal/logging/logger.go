package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"podcastflow/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	Development bool
	// InstanceID tags every record so output from several daemons sharing a
	// realtime bus can be told apart.
	InstanceID string
	// ComponentLevels overrides the minimum level per component name, as
	// passed to NewComponentLogger.
	ComponentLevels map[string]string
}

type handlerFactory func(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler

var formats = map[string]handlerFactory{
	"console": newPrettyHandler,
	"json":    newJSONHandler,
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	factory, ok := formats[format]
	if !ok {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	writer, err := openWriters(outputs)
	if err != nil {
		return nil, err
	}

	base := parseLevel(opts.Level)
	// The shared handler must admit the most verbose override; the component
	// handler filters back down per record.
	floor := new(slog.LevelVar)
	floor.Set(base)
	for _, raw := range opts.ComponentLevels {
		floor.Set(min(floor.Level(), parseLevel(raw)))
	}

	handler := factory(writer, floor, opts.Development || base <= slog.LevelDebug)
	handler = newComponentLevelHandler(handler, base, opts.ComponentLevels)
	if id := strings.TrimSpace(opts.InstanceID); id != "" {
		handler = newInstanceHandler(handler, id)
	}
	return slog.New(handler), nil
}

// NewFromConfig logs to stdout and, when cfg names a log directory, also to
// podcastflow.log inside it.
func NewFromConfig(cfg *config.Config, instanceID string) (*slog.Logger, error) {
	opts := Options{Level: "info", Format: "console", InstanceID: instanceID}
	if cfg == nil {
		return New(opts)
	}
	opts.Level = cfg.Logging.Level
	opts.Format = cfg.Logging.Format
	opts.ComponentLevels = cfg.Logging.ComponentLevels
	opts.OutputPaths = []string{"stdout"}
	if dir := cfg.Paths.LogDir; dir != "" {
		opts.OutputPaths = append(opts.OutputPaths, filepath.Join(dir, "podcastflow.log"))
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// openWriters resolves each distinct output path to stdout, stderr or an
// appended file, creating parent directories as needed.
func openWriters(paths []string) (io.Writer, error) {
	seen := make(map[string]bool, len(paths))
	writers := make([]io.Writer, 0, len(paths))
	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		w, err := openWriter(path)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func openWriter(path string) (io.Writer, error) {
	switch path {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("log directory for %s: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}
