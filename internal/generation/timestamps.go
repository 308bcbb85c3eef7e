package generation

import (
	"fmt"
	"math"
)

// FormatClock renders seconds as zero-padded HH:MM:SS.
func FormatClock(seconds float64) string {
	h, m, s := splitSeconds(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatYouTubeTimestamp renders seconds as M:SS, or H:MM:SS from one hour
// on. Hours are not padded.
func FormatYouTubeTimestamp(seconds float64) string {
	h, m, s := splitSeconds(seconds)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func splitSeconds(seconds float64) (int64, int64, int64) {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	return total / 3600, (total % 3600) / 60, total % 60
}
