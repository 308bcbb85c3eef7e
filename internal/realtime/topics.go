package realtime

import (
	"strings"

	"podcastflow/internal/project"
)

// Topic families a subscription token may grant.
const (
	FamilyProcessing = "processing"
	FamilyAIStream   = "ai_stream"
	FamilyProgress   = "progress"
	FamilyResults    = "results"
)

// Topic events.
const (
	EventStart    = "start"
	EventComplete = "complete"
	EventFailed   = "failed"
)

// Pipeline steps announced on processing topics.
const (
	StepTranscription = "transcription"
	StepGeneration    = "generation"
)

const channelPrefix = "project:"

// ChannelFor returns the realtime channel of a project.
func ChannelFor(projectID string) string {
	return channelPrefix + projectID
}

// ProjectFromChannel extracts the project id from a channel name.
func ProjectFromChannel(channel string) (string, bool) {
	id, ok := strings.CutPrefix(channel, channelPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// DefaultTopics is the topic family set granted to a project owner.
func DefaultTopics() []string {
	return []string{FamilyProcessing, FamilyAIStream, FamilyProgress, FamilyResults}
}

// ProcessingTopic names a pipeline phase event, e.g. processing:transcription:start.
func ProcessingTopic(step, event string) string {
	return "processing:" + step + ":" + event
}

// GenerationTopic names a generation job event, e.g. ai-generation:summary:complete.
func GenerationTopic(job project.Job, event string) string {
	return "ai-generation:" + string(job) + ":" + event
}

// ProgressTopic names an incremental progress event for step.
func ProgressTopic(step string) string {
	return "progress:" + step
}

// ResultsTopic announces that a result of kind is available.
func ResultsTopic(kind string) string {
	return "results:" + kind
}

// TopicFamily maps a topic onto the family a token must grant, or "" when
// the topic belongs to no family.
func TopicFamily(topic string) string {
	prefix, _, _ := strings.Cut(topic, ":")
	switch prefix {
	case "processing":
		return FamilyProcessing
	case "ai-generation":
		return FamilyAIStream
	case "progress":
		return FamilyProgress
	case "results":
		return FamilyResults
	default:
		return ""
	}
}

// ProcessingUpdate is the payload of processing topics.
type ProcessingUpdate struct {
	Step     string `json:"step"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

// GenerationUpdate is the payload of ai-generation topics.
type GenerationUpdate struct {
	Job     string `json:"job"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ResultUpdate is the payload of results topics.
type ResultUpdate struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// splitTopic returns the subject and event of a three-part topic.
func splitTopic(topic string) (family, subject, event string) {
	parts := strings.SplitN(topic, ":", 3)
	switch len(parts) {
	case 3:
		return TopicFamily(topic), parts[1], parts[2]
	case 2:
		return TopicFamily(topic), parts[1], ""
	default:
		return TopicFamily(topic), "", ""
	}
}
