package realtime

import (
	"sync"
	"time"

	"podcastflow/internal/project"
)

// Update is the latest known state of one step or job.
type Update struct {
	Key       string    `json:"key"`
	Topic     string    `json:"topic"`
	Family    string    `json:"family"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Progress  int       `json:"progress,omitempty"`
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
}

// ProgressTracker folds a project's message stream into the latest update
// per step or job, in first-seen order.
type ProgressTracker struct {
	mu     sync.Mutex
	order  []string
	latest map[string]Update
	seen   map[string]struct{}
	jobs   project.JobStatuses
}

// NewProgressTracker returns an empty tracker with every job pending.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		latest: make(map[string]Update),
		seen:   make(map[string]struct{}),
		jobs:   project.NewJobStatuses(),
	}
}

// Apply records msg. It reports false for duplicates and for topics outside
// the known families.
func (t *ProgressTracker) Apply(msg Message) bool {
	family, subject, event := splitTopic(msg.Topic)
	if family == "" || subject == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	dedupe := msg.Topic + "\x00" + string(msg.Data)
	if _, ok := t.seen[dedupe]; ok {
		return false
	}
	t.seen[dedupe] = struct{}{}

	update := Update{
		Key:       subject,
		Topic:     msg.Topic,
		Family:    family,
		Status:    event,
		Sequence:  msg.Sequence,
		Timestamp: msg.Timestamp,
	}
	switch family {
	case FamilyProcessing, FamilyProgress:
		var payload ProcessingUpdate
		if err := msg.Decode(&payload); err == nil {
			update.Message = payload.Message
			update.Progress = payload.Progress
			if payload.Status != "" {
				update.Status = payload.Status
			}
		}
	case FamilyAIStream:
		var payload GenerationUpdate
		if err := msg.Decode(&payload); err == nil {
			update.Message = payload.Message
		}
	case FamilyResults:
		update.Key = ResultsTopic(subject)
		update.Status = EventComplete
	}

	if _, ok := t.latest[update.Key]; !ok {
		t.order = append(t.order, update.Key)
	}
	t.latest[update.Key] = update
	t.applyJobLocked(family, subject, event)
	return true
}

func (t *ProgressTracker) applyJobLocked(family, subject, event string) {
	var job project.Job
	switch family {
	case FamilyProcessing:
		if subject != StepTranscription {
			return
		}
		job = project.JobTranscription
	case FamilyAIStream:
		parsed, ok := project.ParseJob(subject)
		if !ok {
			return
		}
		job = parsed
	default:
		return
	}

	var next project.JobStatus
	switch event {
	case EventStart:
		next = project.JobRunning
	case EventComplete:
		next = project.JobCompleted
	case EventFailed:
		next = project.JobFailed
	default:
		return
	}
	// Events may arrive late or twice; never move a job backward.
	if current := t.jobs.Get(job); current.IsTerminal() || current == next {
		return
	}
	t.jobs[job] = next
}

// Snapshot returns the latest updates in first-seen order.
func (t *ProgressTracker) Snapshot() []Update {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Update, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.latest[key])
	}
	return out
}

// Latest returns the update stored under key.
func (t *ProgressTracker) Latest(key string) (Update, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	update, ok := t.latest[key]
	return update, ok
}

// JobStatuses returns a copy of the job statuses observed so far.
func (t *ProgressTracker) JobStatuses() project.JobStatuses {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(project.JobStatuses, len(t.jobs))
	for job, status := range t.jobs {
		out[job] = status
	}
	return out
}

// TranscriptionPhase derives the transcription phase from observed events.
func (t *ProgressTracker) TranscriptionPhase() project.PhaseStatus {
	return t.JobStatuses().TranscriptionPhase()
}

// GenerationPhase derives the generation phase from observed events.
func (t *ProgressTracker) GenerationPhase() project.PhaseStatus {
	return t.JobStatuses().GenerationPhase()
}
