package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"podcastflow/internal/project"
)

const summarySystemPrompt = "You are an expert podcast editor who writes accurate, well-structured episode summaries. Respond with JSON only."

// Summary produces the overview, bullets, insights and tl;dr.
type Summary struct {
	modelTask
}

// Job implements Generator.
func (Summary) Job() project.Job { return project.JobSummary }

// Generate implements Generator.
func (s Summary) Generate(ctx context.Context, transcript *project.Transcript) (any, error) {
	var out project.Summary
	err := s.ask(ctx, project.JobSummary, summarySystemPrompt, summaryPrompt(transcript), &out, func() error {
		return normalizeSummary(&out)
	})
	if err == nil {
		return &out, nil
	}
	if !isOutputError(err) {
		return nil, err
	}
	s.fallback(ctx, project.JobSummary, err)
	return summaryFallback(transcript), nil
}

func summaryPrompt(t *project.Transcript) string {
	return transcriptContext(t) + `

Summarize this podcast episode. Return a JSON object with:
- "full": a comprehensive overview of 200-300 words
- "bullets": 5 to 7 key points covering the main topics
- "insights": 3 to 5 actionable insights or takeaways
- "tldr": a one-sentence summary`
}

func normalizeSummary(s *project.Summary) error {
	var err error
	s.Full = strings.TrimSpace(s.Full)
	s.TLDR = strings.TrimSpace(s.TLDR)
	if s.Full == "" {
		return errors.New("full: empty")
	}
	if s.TLDR == "" {
		return errors.New("tldr: empty")
	}
	if s.Bullets, err = checkCount("bullets", cleanList(s.Bullets), 5, 7); err != nil {
		return err
	}
	if s.Insights, err = checkCount("insights", cleanList(s.Insights), 3, 5); err != nil {
		return err
	}
	return nil
}

func summaryFallback(t *project.Transcript) *project.Summary {
	sentences := splitSentences(t.Text)
	var chapterLines, gists []string
	for _, ch := range t.Chapters {
		if ch.Summary != "" {
			chapterLines = append(chapterLines, ch.Summary)
		}
		if line := strings.TrimSpace(ch.Headline); line != "" && ch.Summary != "" {
			gists = append(gists, fmt.Sprintf("%s: %s", line, ch.Summary))
		}
	}

	full := strings.Join(chapterLines, " ")
	if full == "" {
		full = strings.Join(firstN(sentences, 6), " ")
	}
	if full == "" {
		full = "This episode has no transcribed speech to summarize."
	}

	bullets := fill(append([]string(nil), gists...), 5, sentences...)
	bullets = fill(bullets, 5,
		"The episode opens with context for the conversation.",
		"The hosts work through the main topic in detail.",
		"Examples ground the discussion in practice.",
		"The conversation closes with final reflections.",
		"Listeners get pointers for further exploration.",
	)
	insights := fill(nil, 3, reverse(sentences)...)
	insights = fill(insights, 3,
		"Revisit the key moments for the most useful segments.",
		"Apply one idea from the episode this week.",
		"Share the episode with someone who would benefit.",
	)

	tldr := "A podcast episode."
	if hs := headlines(t); len(hs) > 0 {
		tldr = "An episode covering " + joinHuman(firstN(hs, 3)) + "."
	} else if len(sentences) > 0 {
		tldr = sentences[0]
	}

	return &project.Summary{
		Full:     full,
		Bullets:  firstN(bullets, 7),
		Insights: firstN(insights, 5),
		TLDR:     tldr,
	}
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func reverse(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return out
}

func joinHuman(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
