package workflow

import (
	"context"

	"podcastflow/internal/logging"
	"podcastflow/internal/project"
	"podcastflow/internal/realtime"
)

var jobLabels = map[project.Job]string{
	project.JobTranscription:     "transcript",
	project.JobKeyMoments:        "key moments",
	project.JobSummary:           "summary",
	project.JobSocial:            "social posts",
	project.JobTitles:            "titles",
	project.JobHashtags:          "hashtags",
	project.JobYouTubeTimestamps: "YouTube timestamps",
}

func jobLabel(job project.Job) string {
	if label, ok := jobLabels[job]; ok {
		return label
	}
	return string(job)
}

// publish is fire-and-forget: a failed publish is logged and dropped.
func (o *Orchestrator) publish(ctx context.Context, projectID, topic string, data any) {
	if err := o.publisher.Publish(ctx, realtime.ChannelFor(projectID), topic, data); err != nil {
		logging.WithContext(ctx, o.logger).Debug("realtime publish failed",
			logging.String("topic", topic),
			logging.Error(err),
		)
	}
}

func (o *Orchestrator) publishProcessing(ctx context.Context, projectID, step, event string, status project.PhaseStatus, message string, progress int) {
	o.publish(ctx, projectID, realtime.ProcessingTopic(step, event), realtime.ProcessingUpdate{
		Step:     step,
		Status:   string(status),
		Message:  message,
		Progress: progress,
	})
}

func (o *Orchestrator) publishGeneration(ctx context.Context, projectID string, job project.Job, event string, status project.JobStatus, message string) {
	o.publish(ctx, projectID, realtime.GenerationTopic(job, event), realtime.GenerationUpdate{
		Job:     string(job),
		Status:  string(status),
		Message: message,
	})
}

func (o *Orchestrator) publishResult(ctx context.Context, projectID, kind string, content any) {
	o.publish(ctx, projectID, realtime.ResultsTopic(kind), realtime.ResultUpdate{
		Type:    kind,
		Content: content,
	})
}
