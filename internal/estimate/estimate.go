// Package estimate predicts transcription turnaround from media duration.
package estimate

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

const (
	// BestFactor is the fastest observed real-time factor.
	BestFactor = 0.008
	// ConservativeFactor is the typical real-world real-time factor.
	ConservativeFactor = 0.25

	minBestSeconds         = 30
	minConservativeSeconds = 60
	// DefaultDurationSeconds is assumed when neither duration nor size is known.
	DefaultDurationSeconds = 1800
	// SecondsPerMiB approximates duration from file size for compressed audio.
	SecondsPerMiB = 8
)

// Estimate is a processing-time range in whole seconds.
type Estimate struct {
	BestCase     int64 `json:"bestCase"`
	Conservative int64 `json:"conservative"`
	Average      int64 `json:"average"`
}

// ForDuration estimates processing time for media of the given length. A
// non-positive duration uses DefaultDurationSeconds. Average is the mean of
// the raw values, before the minimums apply.
func ForDuration(durationSeconds float64) Estimate {
	if durationSeconds <= 0 {
		durationSeconds = DefaultDurationSeconds
	}
	best := int64(math.Round(durationSeconds * BestFactor))
	conservative := int64(math.Round(durationSeconds * ConservativeFactor))
	return Estimate{
		BestCase:     max(minBestSeconds, best),
		Conservative: max(minConservativeSeconds, conservative),
		Average:      int64(math.Round(float64(best+conservative) / 2)),
	}
}

// ForUpload estimates from a known duration, falling back to the file size.
func ForUpload(durationSeconds *float64, sizeBytes int64) Estimate {
	if durationSeconds != nil && *durationSeconds > 0 {
		return ForDuration(*durationSeconds)
	}
	return ForDuration(DurationFromSize(sizeBytes))
}

// DurationFromSize approximates media length from its size. Zero means
// unknown.
func DurationFromSize(sizeBytes int64) float64 {
	if sizeBytes <= 0 {
		return 0
	}
	return float64(sizeBytes) / (1024 * 1024) * SecondsPerMiB
}

// FormatTimeEstimate renders seconds as a rounded-up count of seconds,
// minutes or hours.
func FormatTimeEstimate(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%d seconds", int64(math.Ceil(seconds)))
	case seconds < 3600:
		return fmt.Sprintf("%d minutes", int64(math.Ceil(seconds/60)))
	default:
		return fmt.Sprintf("%d hours", int64(math.Ceil(seconds/3600)))
	}
}

// FormatTimeRange renders "best - conservative".
func FormatTimeRange(best, conservative int64) string {
	return FormatTimeEstimate(float64(best)) + " - " + FormatTimeEstimate(float64(conservative))
}

// String implements fmt.Stringer.
func (e Estimate) String() string {
	return FormatTimeRange(e.BestCase, e.Conservative)
}

// FormatFileSize renders a byte count in binary units.
func FormatFileSize(sizeBytes int64) string {
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	return humanize.IBytes(uint64(sizeBytes))
}
