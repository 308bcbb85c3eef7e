package logging

import (
	"strings"
	"time"
)

// StatusSampler thins out repeated provider status lines while polling. It
// emits on every status change and otherwise at most once per interval.
type StatusSampler struct {
	interval time.Duration
	last     string
	lastAt   time.Time
}

// NewStatusSampler returns a sampler that repeats an unchanged status every
// interval. A non-positive interval repeats it every minute.
func NewStatusSampler(interval time.Duration) *StatusSampler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatusSampler{interval: interval}
}

// ShouldLog reports whether status observed at now should be logged.
func (s *StatusSampler) ShouldLog(status string, now time.Time) bool {
	if s == nil {
		return true
	}
	status = strings.TrimSpace(status)
	if status != s.last || s.lastAt.IsZero() || now.Sub(s.lastAt) >= s.interval {
		s.last = status
		s.lastAt = now
		return true
	}
	return false
}
