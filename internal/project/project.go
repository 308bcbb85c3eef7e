package project

import "time"

// Project is the unit of work and of persisted state.
type Project struct {
	ID           string   `json:"id"`
	UserID       string   `json:"userId"`
	InputURL     string   `json:"inputUrl"`
	FileName     string   `json:"fileName"`
	FileSize     int64    `json:"fileSize"`
	FileDuration *float64 `json:"fileDuration,omitempty"`
	FileFormat   string   `json:"fileFormat"`
	MIMEType     string   `json:"mimeType"`

	Status    Status      `json:"status"`
	JobStatus JobStatuses `json:"jobStatus"`

	Transcript        *Transcript        `json:"transcript,omitempty"`
	KeyMoments        []KeyMoment        `json:"keyMoments"`
	Summary           *Summary           `json:"summary,omitempty"`
	SocialPosts       *SocialPosts       `json:"socialPosts,omitempty"`
	Titles            *Titles            `json:"titles,omitempty"`
	Hashtags          *Hashtags          `json:"hashtags,omitempty"`
	YouTubeTimestamps []YouTubeTimestamp `json:"youtubeTimestamps"`
	Captions          *Captions          `json:"captions,omitempty"`
	Metrics           *Metrics           `json:"metrics,omitempty"`
	Error             *Failure           `json:"error,omitempty"`

	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	LastHeartbeat *time.Time `json:"-"`
}

// NewProject carries the immutable input of a project at creation time.
type NewProject struct {
	ID           string
	UserID       string
	InputURL     string
	FileName     string
	FileSize     int64
	FileDuration *float64
	MIMEType     string
}

// Failure is the error slot written once when a project fails.
type Failure struct {
	Message   string          `json:"message"`
	Step      string          `json:"step"`
	Timestamp time.Time       `json:"timestamp"`
	Details   *FailureDetails `json:"details,omitempty"`
}

// FailureDetails carries provider context for a failure.
type FailureDetails struct {
	StatusCode int `json:"statusCode,omitempty"`
}

// Metrics records processing cost for a completed run.
type Metrics struct {
	TotalProcessingTimeMS int64 `json:"totalProcessingTime,omitempty"`
	TranscriptionTokens   int64 `json:"transcriptionTokens,omitempty"`
	GenerationTokens      int64 `json:"generationTokens,omitempty"`
}

// Captions references the rendered SRT file.
type Captions struct {
	SRTURL  string `json:"srtUrl"`
	RawText string `json:"rawText"`
}

// HasResult reports whether the payload produced by job is present.
func (p *Project) HasResult(job Job) bool {
	if p == nil {
		return false
	}
	switch job {
	case JobTranscription:
		return p.Transcript != nil
	case JobKeyMoments:
		return p.KeyMoments != nil
	case JobSummary:
		return p.Summary != nil
	case JobSocial:
		return p.SocialPosts != nil
	case JobTitles:
		return p.Titles != nil
	case JobHashtags:
		return p.Hashtags != nil
	case JobYouTubeTimestamps:
		return p.YouTubeTimestamps != nil
	default:
		return false
	}
}

// Bundle assembles the persisted generation results. Missing results leave
// the corresponding field nil.
func (p *Project) Bundle() Bundle {
	if p == nil {
		return Bundle{}
	}
	return Bundle{
		KeyMoments:        p.KeyMoments,
		Summary:           p.Summary,
		SocialPosts:       p.SocialPosts,
		Titles:            p.Titles,
		Hashtags:          p.Hashtags,
		YouTubeTimestamps: p.YouTubeTimestamps,
	}
}
