package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"podcastflow/internal/project"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiDim    = "\x1b[2m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

// statusColor picks the ANSI color for a project, phase or job status.
func statusColor(status string) string {
	switch status {
	case string(project.StatusCompleted):
		return ansiGreen
	case string(project.StatusFailed):
		return ansiRed
	case string(project.StatusProcessing), string(project.JobRunning):
		return ansiYellow
	case string(project.StatusUploaded):
		return ansiBlue
	case string(project.JobPending):
		return ansiDim
	default:
		return ""
	}
}

func colorStatus(status string, colorize bool) string {
	if !colorize {
		return status
	}
	if color := statusColor(status); color != "" {
		return color + status + ansiReset
	}
	return status
}

// renderStatusLine formats "  label:   [status] message".
func renderStatusLine(label, status, message string, colorize bool) string {
	text := fmt.Sprintf("[%s]", colorStatus(status, colorize))
	if message != "" {
		text += " " + message
	}
	return fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", text)
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
