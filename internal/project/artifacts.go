package project

// Summary is the summary generation result.
type Summary struct {
	Full     string   `json:"full"`
	Bullets  []string `json:"bullets"`
	Insights []string `json:"insights"`
	TLDR     string   `json:"tldr"`
}

// KeyMoment is one chapter-derived highlight.
type KeyMoment struct {
	Time        string  `json:"time"`
	Timestamp   float64 `json:"timestamp"`
	Text        string  `json:"text"`
	Description string  `json:"description"`
}

// SocialPosts holds one post per platform.
type SocialPosts struct {
	Twitter   string `json:"twitter"`
	LinkedIn  string `json:"linkedin"`
	Instagram string `json:"instagram"`
	TikTok    string `json:"tiktok"`
	YouTube   string `json:"youtube"`
	Facebook  string `json:"facebook"`
}

// Titles holds title suggestions and SEO keywords.
type Titles struct {
	YouTubeShort  []string `json:"youtubeShort"`
	YouTubeLong   []string `json:"youtubeLong"`
	PodcastTitles []string `json:"podcastTitles"`
	SEOKeywords   []string `json:"seoKeywords"`
}

// Hashtags holds hashtags per platform.
type Hashtags struct {
	YouTube   []string `json:"youtube"`
	Instagram []string `json:"instagram"`
	TikTok    []string `json:"tiktok"`
	LinkedIn  []string `json:"linkedin"`
	Twitter   []string `json:"twitter"`
}

// YouTubeTimestamp is one chapter marker for a video description.
type YouTubeTimestamp struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
}

// Bundle is the joined set of all six generation outputs.
type Bundle struct {
	KeyMoments        []KeyMoment        `json:"keyMoments"`
	Summary           *Summary           `json:"summary"`
	SocialPosts       *SocialPosts       `json:"socialPosts"`
	Titles            *Titles            `json:"titles"`
	Hashtags          *Hashtags          `json:"hashtags"`
	YouTubeTimestamps []YouTubeTimestamp `json:"youtubeTimestamps"`
}

// Artifact returns the result held for job, or nil when absent.
func (b Bundle) Artifact(job Job) any {
	switch job {
	case JobKeyMoments:
		if b.KeyMoments == nil {
			return nil
		}
		return b.KeyMoments
	case JobSummary:
		if b.Summary == nil {
			return nil
		}
		return b.Summary
	case JobSocial:
		if b.SocialPosts == nil {
			return nil
		}
		return b.SocialPosts
	case JobTitles:
		if b.Titles == nil {
			return nil
		}
		return b.Titles
	case JobHashtags:
		if b.Hashtags == nil {
			return nil
		}
		return b.Hashtags
	case JobYouTubeTimestamps:
		if b.YouTubeTimestamps == nil {
			return nil
		}
		return b.YouTubeTimestamps
	default:
		return nil
	}
}

// Set stores artifact as the result for job. It reports false when the
// artifact type does not match the job.
func (b *Bundle) Set(job Job, artifact any) bool {
	switch job {
	case JobKeyMoments:
		v, ok := artifact.([]KeyMoment)
		if ok {
			b.KeyMoments = v
		}
		return ok
	case JobSummary:
		v, ok := artifact.(*Summary)
		if ok {
			b.Summary = v
		}
		return ok
	case JobSocial:
		v, ok := artifact.(*SocialPosts)
		if ok {
			b.SocialPosts = v
		}
		return ok
	case JobTitles:
		v, ok := artifact.(*Titles)
		if ok {
			b.Titles = v
		}
		return ok
	case JobHashtags:
		v, ok := artifact.(*Hashtags)
		if ok {
			b.Hashtags = v
		}
		return ok
	case JobYouTubeTimestamps:
		v, ok := artifact.([]YouTubeTimestamp)
		if ok {
			b.YouTubeTimestamps = v
		}
		return ok
	default:
		return false
	}
}

// Missing lists generation jobs without a result, in canonical order.
func (b Bundle) Missing() []Job {
	var missing []Job
	for _, job := range generationJobs {
		if b.Artifact(job) == nil {
			missing = append(missing, job)
		}
	}
	return missing
}

// Complete reports whether all six results are present.
func (b Bundle) Complete() bool {
	return len(b.Missing()) == 0
}
