package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"podcastflow/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and workflow status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.status(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}
			stdout := cmd.OutOrStdout()
			for _, line := range renderDaemonStatus(status, shouldColorize(stdout)) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderDaemonStatus(status api.DaemonStatus, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	state := "stopped"
	if status.Running {
		state = "running"
	}
	lines = append(lines,
		renderStatusLine("State", state, "pid "+strconv.Itoa(status.PID), colorize),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Uptime:", valueOr(status.Uptime, "-")),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Database:", status.DatabasePath),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Transports:", strings.Join(status.Transports, ", ")),
		"",
	)
	lines = append(lines, renderSectionHeader("Workflow", colorize)...)
	lines = append(lines,
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Polling:", yesNo(status.Workflow.Running)),
		fmt.Sprintf("%s%-*s %d", statusIndent, statusLabelWidth, "Active runs:", len(status.Workflow.ActiveRuns)),
	)
	if status.Workflow.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", "failed", status.Workflow.LastError, colorize))
	}

	keys := make([]string, 0, len(status.Workflow.ProjectStats))
	for key := range status.Workflow.ProjectStats {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		lines = append(lines, renderStatusLine("Projects", key, strconv.Itoa(status.Workflow.ProjectStats[key]), colorize))
	}
	return lines
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
