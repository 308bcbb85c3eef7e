package project

import "strings"

// Status is the overall lifecycle of a project.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// JobStatus is the lifecycle of one tracked job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobSkipped   JobStatus = "skipped"
)

// Job names one unit of work tracked in the project's job status map.
type Job string

const (
	JobTranscription     Job = "transcription"
	JobKeyMoments        Job = "keyMoments"
	JobSummary           Job = "summary"
	JobSocial            Job = "social"
	JobTitles            Job = "titles"
	JobHashtags          Job = "hashtags"
	JobYouTubeTimestamps Job = "youtubeTimestamps"
)

// PhaseStatus is the coarse status of a pipeline phase derived from its jobs.
type PhaseStatus string

const (
	PhasePending   PhaseStatus = "pending"
	PhaseRunning   PhaseStatus = "running"
	PhaseCompleted PhaseStatus = "completed"
	PhaseFailed    PhaseStatus = "failed"
)

// generationJobs lists the six generation jobs in canonical order. The order
// breaks ties when two jobs fail at the same instant.
var generationJobs = []Job{
	JobKeyMoments,
	JobSummary,
	JobSocial,
	JobTitles,
	JobHashtags,
	JobYouTubeTimestamps,
}

// AllJobs returns every tracked job, transcription first.
func AllJobs() []Job {
	return append([]Job{JobTranscription}, generationJobs...)
}

// GenerationJobs returns the generation jobs in canonical order.
func GenerationJobs() []Job {
	return append([]Job(nil), generationJobs...)
}

// JobOrder returns the canonical position of job, or -1 when unknown.
func JobOrder(job Job) int {
	for idx, candidate := range AllJobs() {
		if candidate == job {
			return idx
		}
	}
	return -1
}

// ParseJob converts a string into a known Job.
func ParseJob(value string) (Job, bool) {
	trimmed := strings.TrimSpace(value)
	for _, job := range AllJobs() {
		if strings.EqualFold(string(job), trimmed) {
			return job, true
		}
	}
	return "", false
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	switch status := Status(strings.ToLower(strings.TrimSpace(value))); status {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed:
		return status, true
	default:
		return "", false
	}
}

// IsTerminal reports whether no further status change is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsTerminal reports whether the job reached its final value.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobSkipped
}

// statusPredecessors maps each project status to the statuses it may be
// entered from. Statuses only move forward.
var statusPredecessors = map[Status][]Status{
	StatusProcessing: {StatusUploaded},
	StatusCompleted:  {StatusProcessing},
	StatusFailed:     {StatusProcessing},
}

var jobPredecessors = map[JobStatus][]JobStatus{
	JobRunning:   {JobPending},
	JobCompleted: {JobRunning},
	JobFailed:    {JobRunning},
	JobSkipped:   {JobPending},
}

// StatusPredecessors returns the statuses from which a project may enter next.
func StatusPredecessors(next Status) []Status {
	return append([]Status(nil), statusPredecessors[next]...)
}

// JobStatusPredecessors returns the job statuses that may precede next.
func JobStatusPredecessors(next JobStatus) []JobStatus {
	return append([]JobStatus(nil), jobPredecessors[next]...)
}

// CanTransition reports whether a project may move from -> to.
func CanTransition(from, to Status) bool {
	for _, allowed := range statusPredecessors[to] {
		if allowed == from {
			return true
		}
	}
	return false
}

// CanTransitionJob reports whether a job may move from -> to.
func CanTransitionJob(from, to JobStatus) bool {
	for _, allowed := range jobPredecessors[to] {
		if allowed == from {
			return true
		}
	}
	return false
}

// DeriveAggregateStatus collapses job statuses into one phase status:
// any failure wins, then all-terminal means completed, then any progress
// means running. No jobs, or only pending jobs, is pending.
func DeriveAggregateStatus(statuses ...JobStatus) PhaseStatus {
	if len(statuses) == 0 {
		return PhasePending
	}
	var done, pending int
	for _, status := range statuses {
		switch status {
		case JobFailed:
			return PhaseFailed
		case JobCompleted, JobSkipped:
			done++
		case JobRunning:
		default:
			pending++
		}
	}
	switch {
	case done == len(statuses):
		return PhaseCompleted
	case pending == len(statuses):
		return PhasePending
	default:
		return PhaseRunning
	}
}

// JobStatuses maps each job to its status.
type JobStatuses map[Job]JobStatus

// NewJobStatuses returns a map with every job pending.
func NewJobStatuses() JobStatuses {
	out := make(JobStatuses, len(generationJobs)+1)
	for _, job := range AllJobs() {
		out[job] = JobPending
	}
	return out
}

// Get returns the status for job, defaulting to pending when absent.
func (m JobStatuses) Get(job Job) JobStatus {
	if status, ok := m[job]; ok && status != "" {
		return status
	}
	return JobPending
}

// TranscriptionPhase derives the transcription phase status.
func (m JobStatuses) TranscriptionPhase() PhaseStatus {
	return DeriveAggregateStatus(m.Get(JobTranscription))
}

// GenerationPhase derives the generation phase status over the six generation jobs.
func (m JobStatuses) GenerationPhase() PhaseStatus {
	statuses := make([]JobStatus, 0, len(generationJobs))
	for _, job := range generationJobs {
		statuses = append(statuses, m.Get(job))
	}
	return DeriveAggregateStatus(statuses...)
}
