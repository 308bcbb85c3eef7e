package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"podcastflow/internal/project"
	"podcastflow/internal/services"
)

// maxYouTubeChapters is the most chapter markers a video description accepts.
const maxYouTubeChapters = 100

const youtubeSystemPrompt = "You are a YouTube content expert who creates engaging, clickable titles for video chapters. You make titles punchy and compelling while staying true to the content. Respond with JSON only."

// YouTubeTimestamps keeps chapter timing and asks the model for a short
// title per chapter.
type YouTubeTimestamps struct {
	modelTask
}

// Job implements Generator.
func (YouTubeTimestamps) Job() project.Job { return project.JobYouTubeTimestamps }

type chapterTitles struct {
	Titles []struct {
		Index *int   `json:"index"`
		Title string `json:"title"`
	} `json:"titles"`
}

// Generate implements Generator. Chapters without a model title keep their
// headline; any model failure other than cancellation falls back to headlines
// for every chapter.
func (y YouTubeTimestamps) Generate(ctx context.Context, transcript *project.Transcript) (any, error) {
	chapters := transcript.Chapters
	if len(chapters) == 0 {
		return nil, services.Wrap(services.ErrFatal, "generation", string(project.JobYouTubeTimestamps), "", ErrNoChapters)
	}
	if len(chapters) > maxYouTubeChapters {
		chapters = chapters[:maxYouTubeChapters]
	}

	titles := map[int]string{}
	var reply chapterTitles
	err := y.ask(ctx, project.JobYouTubeTimestamps, youtubeSystemPrompt, youtubePrompt(chapters), &reply, nil)
	switch {
	case err == nil:
		for _, item := range reply.Titles {
			if item.Index == nil {
				continue
			}
			if title := strings.TrimSpace(item.Title); title != "" {
				titles[*item.Index] = title
			}
		}
	case errors.Is(err, context.Canceled):
		return nil, err
	default:
		y.fallback(ctx, project.JobYouTubeTimestamps, err)
	}

	out := make([]project.YouTubeTimestamp, 0, len(chapters))
	for i, ch := range chapters {
		out = append(out, project.YouTubeTimestamp{
			Timestamp:   FormatYouTubeTimestamp(float64(ch.StartMS / 1000)),
			Description: firstNonEmpty(titles[i], ch.Headline),
		})
	}
	return out, nil
}

func youtubePrompt(chapters []project.Chapter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I have %d chapters from a podcast with their timestamps and descriptions. Create a punchy, clickable 3-6 word title for each chapter to use as a YouTube timestamp.\n\nCHAPTERS:\n", len(chapters))
	for i, ch := range chapters {
		fmt.Fprintf(&b, "%d. [%ds] %s - %s\n", i, ch.StartMS/1000, ch.Headline, ch.Summary)
	}
	b.WriteString(`
Return a JSON object with a "titles" array where each item has "index" (the chapter number above, starting at 0) and "title".
Example: {"titles":[{"index":0,"title":"Welcome and Intro"},{"index":1,"title":"Building Financial Security"}]}`)
	return b.String()
}
