package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"podcastflow/internal/api"
	"podcastflow/internal/estimate"
	"podcastflow/internal/project"
	"podcastflow/internal/realtime"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Inspect and submit projects",
	}
	projectCmd.AddCommand(newProjectListCommand(ctx))
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	projectCmd.AddCommand(newProjectCreateCommand(ctx))
	projectCmd.AddCommand(newProjectWatchCommand(ctx))
	return projectCmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var cursor string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your projects, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			page, err := client.listProjects(cmd.Context(), limit, cursor, strings.TrimSpace(status))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, page)
			}
			stdout := cmd.OutOrStdout()
			if len(page.Projects) == 0 {
				fmt.Fprintln(stdout, "No projects found")
				return nil
			}
			fmt.Fprintln(stdout, renderProjectTable(page.Projects, shouldColorize(stdout)))
			if page.NextCursor != "" {
				fmt.Fprintf(stdout, "More results: --cursor %s\n", page.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (uploaded, processing, completed, failed)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Resume after a previous page")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Page size (default 20, max 100)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderProjectTable(views []api.ProjectView, colorize bool) string {
	rows := make([][]string, 0, len(views))
	for _, view := range views {
		if view.Project == nil {
			continue
		}
		rows = append(rows, []string{
			view.ID,
			view.FileName,
			estimate.FormatFileSize(view.FileSize),
			colorStatus(string(view.Status), colorize),
			string(view.Progress.Transcription),
			string(view.Progress.Generation),
			view.CreatedAt.Local().Format(time.DateTime),
		})
	}
	return renderTable([]column{
		{title: "ID"},
		{title: "File"},
		{title: "Size", right: true},
		{title: "Status"},
		{title: "Transcription"},
		{title: "Generation"},
		{title: "Created"},
	}, rows)
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project with its generated content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			view, err := client.project(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, view)
			}
			stdout := cmd.OutOrStdout()
			for _, line := range renderProjectDetail(view, shouldColorize(stdout)) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderProjectDetail(view api.ProjectView, colorize bool) []string {
	p := view.Project
	if p == nil {
		return []string{"Project not found"}
	}
	pairs := [][2]string{
		{"ID", p.ID},
		{"File", p.FileName},
		{"Format", p.FileFormat},
		{"Size", estimate.FormatFileSize(p.FileSize)},
		{"Status", colorStatus(string(p.Status), colorize)},
		{"Created", p.CreatedAt.Local().Format(time.DateTime)},
	}
	if p.CompletedAt != nil {
		pairs = append(pairs, [2]string{"Completed", p.CompletedAt.Local().Format(time.DateTime)})
	}
	if p.Metrics != nil && p.Metrics.TotalProcessingTimeMS > 0 {
		elapsed := time.Duration(p.Metrics.TotalProcessingTimeMS) * time.Millisecond
		pairs = append(pairs, [2]string{"Processing time", elapsed.Round(time.Second).String()})
	}
	if p.Error != nil {
		pairs = append(pairs, [2]string{"Error", fmt.Sprintf("%s (%s)", p.Error.Message, p.Error.Step)})
	}

	lines := []string{renderPairs(pairs), ""}
	lines = append(lines, renderSectionHeader("Jobs", colorize)...)
	for _, job := range project.AllJobs() {
		lines = append(lines, renderStatusLine(string(job), string(p.JobStatus.Get(job)), "", colorize))
	}

	if p.Summary != nil && p.Summary.TLDR != "" {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Summary", colorize)...)
		lines = append(lines, p.Summary.TLDR)
	}
	if p.Titles != nil && len(p.Titles.PodcastTitles) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Titles", colorize)...)
		for _, title := range p.Titles.PodcastTitles {
			lines = append(lines, "- "+title)
		}
	}
	if len(p.YouTubeTimestamps) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Chapters", colorize)...)
		for _, ts := range p.YouTubeTimestamps {
			lines = append(lines, ts.Timestamp+" "+ts.Description)
		}
	}
	if p.Captions != nil && p.Captions.SRTURL != "" {
		lines = append(lines, "", "Captions: "+p.Captions.SRTURL)
	}
	return lines
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var duration float64
	var size int64
	var watch bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "create <file-or-url>",
		Short: "Upload a local file (or register a hosted one) and start processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			req, err := buildCreateRequest(cmd.Context(), client, strings.TrimSpace(args[0]), size)
			if err != nil {
				return err
			}
			if duration > 0 {
				req.FileDuration = &duration
			}
			resp, err := client.createProject(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Created project %s\n", resp.ProjectID)
			fmt.Fprintf(stdout, "Estimated processing time: %s\n", resp.Estimate.Formatted)
			if !watch {
				return nil
			}
			return watchProject(cmd.Context(), client, resp.ProjectID, stdout, shouldColorize(stdout))
		},
	}
	cmd.Flags().Float64Var(&duration, "duration", 0, "Media duration in seconds, when known")
	cmd.Flags().Int64Var(&size, "size", 0, "File size in bytes for hosted URLs")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow progress until the project finishes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// buildCreateRequest uploads target when it is a local path. A URL is
// registered as-is.
func buildCreateRequest(ctx context.Context, client *apiClient, target string, size int64) (api.CreateProjectRequest, error) {
	if parsed, err := url.Parse(target); err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") {
		name := path.Base(parsed.Path)
		if name == "" || name == "/" || name == "." {
			return api.CreateProjectRequest{}, fmt.Errorf("cannot derive a file name from %s", target)
		}
		return api.CreateProjectRequest{
			FileURL:  target,
			FileName: name,
			FileSize: size,
			MIMEType: contentTypeFor(name),
		}, nil
	}

	info, err := os.Stat(target)
	if err != nil {
		return api.CreateProjectRequest{}, fmt.Errorf("stat %s: %w", target, err)
	}
	if info.IsDir() {
		return api.CreateProjectRequest{}, fmt.Errorf("%s is a directory", target)
	}
	uploaded, err := client.upload(ctx, target)
	if err != nil {
		return api.CreateProjectRequest{}, fmt.Errorf("upload: %w", err)
	}
	return api.CreateProjectRequest{
		FileURL:  uploaded.URL,
		FileName: info.Name(),
		FileSize: uploaded.Size,
		MIMEType: uploaded.ContentType,
	}, nil
}

func newProjectWatchCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Stream live progress for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			watchCtx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				watchCtx, cancel = context.WithTimeout(watchCtx, timeout)
				defer cancel()
			}
			stdout := cmd.OutOrStdout()
			return watchProject(watchCtx, client, strings.TrimSpace(args[0]), stdout, shouldColorize(stdout))
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits indefinitely)")
	return cmd
}

// watchProject replays the project channel from the start and follows it
// until the project reaches a terminal status.
func watchProject(ctx context.Context, client *apiClient, projectID string, out io.Writer, colorize bool) error {
	token, err := client.realtimeToken(ctx, projectID)
	if err != nil {
		return err
	}
	tracker := realtime.NewProgressTracker()
	generationDone := realtime.ProcessingTopic(realtime.StepGeneration, realtime.EventComplete)

	var since uint64
	for {
		resp, err := client.events(ctx, token.Token, since, true)
		if err != nil {
			return err
		}
		since = resp.Next

		finished := false
		checkStatus := len(resp.Events) == 0
		for _, msg := range resp.Events {
			if !tracker.Apply(msg) {
				continue
			}
			if update, ok := tracker.Latest(updateKey(msg)); ok {
				fmt.Fprintln(out, renderUpdate(update, colorize))
			}
			switch {
			case msg.Topic == generationDone:
				finished = true
			case strings.HasSuffix(msg.Topic, ":"+realtime.EventFailed):
				checkStatus = true
			}
		}

		if !finished && checkStatus {
			view, err := client.project(ctx, projectID)
			if err != nil {
				return err
			}
			finished = view.Project != nil && view.Status.IsTerminal()
		}
		if finished {
			return printWatchSummary(ctx, client, projectID, tracker, out, colorize)
		}
	}
}

func updateKey(msg realtime.Message) string {
	parts := strings.SplitN(msg.Topic, ":", 3)
	if len(parts) < 2 {
		return msg.Topic
	}
	if parts[0] == realtime.FamilyResults {
		return msg.Topic
	}
	return parts[1]
}

func renderUpdate(update realtime.Update, colorize bool) string {
	message := update.Message
	if update.Progress > 0 {
		message = strings.TrimSpace(message + " " + strconv.Itoa(update.Progress) + "%")
	}
	return renderStatusLine(update.Key, update.Status, message, colorize)
}

func printWatchSummary(ctx context.Context, client *apiClient, projectID string, tracker *realtime.ProgressTracker, out io.Writer, colorize bool) error {
	view, err := client.project(ctx, projectID)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderStatusLine("transcription", string(tracker.TranscriptionPhase()), "", colorize))
	fmt.Fprintln(out, renderStatusLine("generation", string(tracker.GenerationPhase()), "", colorize))
	if view.Project == nil {
		return nil
	}
	fmt.Fprintln(out, renderStatusLine("project", string(view.Status), "", colorize))
	if view.Status == project.StatusFailed {
		message := "processing failed"
		if view.Error != nil {
			message = fmt.Sprintf("%s failed: %s", view.Error.Step, view.Error.Message)
		}
		return errors.New(message)
	}
	return nil
}
