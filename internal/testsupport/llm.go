package testsupport

import (
	"context"
	"strings"
	"sync"

	"podcastflow/internal/project"
)

// promptMarkers identify which generation task a user prompt belongs to.
var promptMarkers = []struct {
	job    project.Job
	marker string
}{
	{project.JobSummary, `"bullets"`},
	{project.JobSocial, `"twitter": at most`},
	{project.JobTitles, `"youtubeShort"`},
	{project.JobHashtags, `"instagram": 6 to 8`},
	{project.JobYouTubeTimestamps, `"titles" array`},
}

// PromptJob reports the generation job a prompt was built for.
func PromptJob(prompt string) project.Job {
	for _, m := range promptMarkers {
		if strings.Contains(prompt, m.marker) {
			return m.job
		}
	}
	return ""
}

// ScriptedCompleter answers completions with canned replies per job.
type ScriptedCompleter struct {
	mu      sync.Mutex
	replies map[project.Job]string
	errs    map[project.Job]error
	calls   map[project.Job]int
	hook    func(job project.Job)
}

// NewScriptedCompleter returns a completer seeded with ValidReplies.
func NewScriptedCompleter() *ScriptedCompleter {
	return &ScriptedCompleter{
		replies: ValidReplies(),
		errs:    map[project.Job]error{},
		calls:   map[project.Job]int{},
	}
}

// SetReply overrides the reply for job.
func (s *ScriptedCompleter) SetReply(job project.Job, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[job] = content
}

// SetError makes every call for job fail with err.
func (s *ScriptedCompleter) SetError(job project.Job, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[job] = err
}

// OnCall registers a hook run before each reply.
func (s *ScriptedCompleter) OnCall(hook func(job project.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Calls returns how many completions were requested for job.
func (s *ScriptedCompleter) Calls(job project.Job) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[job]
}

// CompleteJSON implements llm.Completer.
func (s *ScriptedCompleter) CompleteJSON(ctx context.Context, _ string, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	job := PromptJob(userPrompt)
	s.mu.Lock()
	s.calls[job]++
	hook := s.hook
	reply, err := s.replies[job], s.errs[job]
	s.mu.Unlock()
	if hook != nil {
		hook(job)
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

// ValidReplies returns well-formed model replies for every model-backed job.
func ValidReplies() map[project.Job]string {
	return map[project.Job]string{
		project.JobSummary: `{
			"full": "The hosts open the show and talk about Go before wrapping up.",
			"bullets": ["Opening", "Why Go", "Concurrency", "Tooling", "Wrap-up"],
			"insights": ["Start small", "Measure first", "Keep it simple"],
			"tldr": "A short episode about Go."
		}`,
		project.JobSocial: `{
			"twitter": "New episode about Go!",
			"linkedin": "We discuss Go in depth.",
			"instagram": "Go time 🎙️",
			"tiktok": "Go in 60 seconds",
			"youtube": "Full episode about Go.",
			"facebook": "Listen to our Go episode."
		}`,
		project.JobTitles: `{
			"youtubeShort": ["Why Go Wins", "Go in Practice", "Simple Go"],
			"youtubeLong": ["Why Go Wins for Backend Services", "Go in Practice: Lessons From Production", "Simple Go: Writing Clear Code"],
			"podcastTitles": ["Going Places", "The Go Episode", "Gophers Unite"],
			"seoKeywords": ["go", "golang", "backend", "concurrency", "podcast"]
		}`,
		project.JobHashtags: `{
			"youtube": ["#Go", "#Golang", "#Coding", "#Backend", "#Podcast"],
			"instagram": ["#Go", "#Golang", "#Coding", "#Dev", "#Tech", "#Podcast"],
			"tiktok": ["#Go", "#Golang", "#Coding", "#Dev", "#Tech"],
			"linkedin": ["#Go", "#Golang", "#Engineering", "#Backend", "#Careers"],
			"twitter": ["#Go", "#Golang", "#Coding", "#Dev", "#Tech"]
		}`,
		project.JobYouTubeTimestamps: `{"titles": [{"index": 0, "title": "Welcome In"}, {"index": 1, "title": "Final Thoughts"}]}`,
	}
}
