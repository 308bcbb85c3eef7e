package store

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"podcastflow/internal/project"
	"podcastflow/internal/services"
)

// timestampLayout is fixed-width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const projectColumns = "id, user_id, input_url, file_name, file_size, file_duration, file_format, mime_type, status, transcript_json, key_moments_json, summary_json, social_posts_json, titles_json, hashtags_json, youtube_timestamps_json, captions_json, metrics_json, error_message, error_step, error_timestamp, error_status_code, created_at, updated_at, completed_at, last_heartbeat"

// resultColumns maps each generation job to the column holding its payload.
var resultColumns = map[project.Job]string{
	project.JobKeyMoments:        "key_moments_json",
	project.JobSummary:           "summary_json",
	project.JobSocial:            "social_posts_json",
	project.JobTitles:            "titles_json",
	project.JobHashtags:          "hashtags_json",
	project.JobYouTubeTimestamps: "youtube_timestamps_json",
}

func scanProject(scanner interface{ Scan(dest ...any) error }) (*project.Project, error) {
	var (
		p               project.Project
		statusStr       string
		fileDuration    sql.NullFloat64
		transcriptRaw   sql.NullString
		keyMomentsRaw   sql.NullString
		summaryRaw      sql.NullString
		socialRaw       sql.NullString
		titlesRaw       sql.NullString
		hashtagsRaw     sql.NullString
		timestampsRaw   sql.NullString
		captionsRaw     sql.NullString
		metricsRaw      sql.NullString
		errorMessage    sql.NullString
		errorStep       sql.NullString
		errorTimeRaw    sql.NullString
		errorStatusCode sql.NullInt64
		createdRaw      string
		updatedRaw      string
		completedRaw    sql.NullString
		heartbeatRaw    sql.NullString
	)

	if err := scanner.Scan(
		&p.ID,
		&p.UserID,
		&p.InputURL,
		&p.FileName,
		&p.FileSize,
		&fileDuration,
		&p.FileFormat,
		&p.MIMEType,
		&statusStr,
		&transcriptRaw,
		&keyMomentsRaw,
		&summaryRaw,
		&socialRaw,
		&titlesRaw,
		&hashtagsRaw,
		&timestampsRaw,
		&captionsRaw,
		&metricsRaw,
		&errorMessage,
		&errorStep,
		&errorTimeRaw,
		&errorStatusCode,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	p.Status = project.Status(statusStr)
	if fileDuration.Valid {
		duration := fileDuration.Float64
		p.FileDuration = &duration
	}

	decoders := []struct {
		column string
		raw    sql.NullString
		dest   any
	}{
		{"transcript_json", transcriptRaw, &p.Transcript},
		{"key_moments_json", keyMomentsRaw, &p.KeyMoments},
		{"summary_json", summaryRaw, &p.Summary},
		{"social_posts_json", socialRaw, &p.SocialPosts},
		{"titles_json", titlesRaw, &p.Titles},
		{"hashtags_json", hashtagsRaw, &p.Hashtags},
		{"youtube_timestamps_json", timestampsRaw, &p.YouTubeTimestamps},
		{"captions_json", captionsRaw, &p.Captions},
		{"metrics_json", metricsRaw, &p.Metrics},
	}
	for _, d := range decoders {
		if !d.raw.Valid {
			continue
		}
		if err := json.Unmarshal([]byte(d.raw.String), d.dest); err != nil {
			return nil, fmt.Errorf("decode %s for project %s: %w", d.column, p.ID, err)
		}
	}
	// An empty list is a valid result and must stay distinguishable from "not produced".
	if keyMomentsRaw.Valid && p.KeyMoments == nil {
		p.KeyMoments = []project.KeyMoment{}
	}
	if timestampsRaw.Valid && p.YouTubeTimestamps == nil {
		p.YouTubeTimestamps = []project.YouTubeTimestamp{}
	}

	if errorMessage.Valid {
		failure := &project.Failure{Message: errorMessage.String, Step: errorStep.String}
		if ts, err := parseTimeString(errorTimeRaw.String); err == nil {
			failure.Timestamp = ts
		}
		if errorStatusCode.Valid && errorStatusCode.Int64 > 0 {
			failure.Details = &project.FailureDetails{StatusCode: int(errorStatusCode.Int64)}
		}
		p.Error = failure
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		p.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		p.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			p.CompletedAt = &completed
		}
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			p.LastHeartbeat = &heartbeat
		}
	}
	p.JobStatus = project.NewJobStatuses()
	return &p, nil
}

func marshalColumn(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "store", "encode payload", "", err)
	}
	return string(data), nil
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func statusArgs[T ~string](values []T) []any {
	args := make([]any, 0, len(values))
	for _, v := range values {
		args = append(args, string(v))
	}
	return args
}

// encodeCursor packs the sort key of the last row on a page.
func encodeCursor(createdAt, id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(createdAt + "|" + id))
}

func decodeCursor(cursor string) (string, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(cursor))
	if err != nil {
		return "", "", services.Wrap(services.ErrValidation, "store", "decode cursor", "malformed cursor", err)
	}
	createdAt, id, ok := strings.Cut(string(raw), "|")
	if !ok || createdAt == "" || id == "" {
		return "", "", services.Wrap(services.ErrValidation, "store", "decode cursor", "malformed cursor", nil)
	}
	return createdAt, id, nil
}
