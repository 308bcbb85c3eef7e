package transcription

import (
	"fmt"
	"math"
	"strings"

	"podcastflow/internal/project"
)

// RenderSRT formats transcript segments as SubRip captions. Segments without
// text are skipped and cues are renumbered from 1.
func RenderSRT(transcript *project.Transcript) string {
	if transcript == nil {
		return ""
	}
	var b strings.Builder
	cue := 0
	for _, segment := range transcript.Segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		end := segment.End
		if end < segment.Start {
			end = segment.Start
		}
		cue++
		if cue > 1 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", cue, FormatSRTTimestamp(segment.Start), FormatSRTTimestamp(end), text)
	}
	return b.String()
}

// FormatSRTTimestamp renders seconds as HH:MM:SS,mmm.
func FormatSRTTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	totalMillis := int64(math.Round(seconds * 1000))
	hours := totalMillis / 3_600_000
	minutes := (totalMillis % 3_600_000) / 60_000
	secs := (totalMillis % 60_000) / 1000
	millis := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
