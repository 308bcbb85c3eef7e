package generation

import (
	"context"

	"podcastflow/internal/project"
)

const titlesSystemPrompt = "You are a podcast growth expert who writes titles that are accurate, specific and compelling. Respond with JSON only."

// Titles suggests video and episode titles plus SEO keywords.
type Titles struct {
	modelTask
}

// Job implements Generator.
func (Titles) Job() project.Job { return project.JobTitles }

// Generate implements Generator.
func (g Titles) Generate(ctx context.Context, transcript *project.Transcript) (any, error) {
	var out project.Titles
	err := g.ask(ctx, project.JobTitles, titlesSystemPrompt, titlesPrompt(transcript), &out, func() error {
		return normalizeTitles(&out)
	})
	if err == nil {
		return &out, nil
	}
	if !isOutputError(err) {
		return nil, err
	}
	g.fallback(ctx, project.JobTitles, err)
	return titlesFallback(transcript), nil
}

func titlesPrompt(t *project.Transcript) string {
	return transcriptContext(t) + `

Suggest titles for this episode. Return a JSON object with:
- "youtubeShort": exactly 3 hook-focused YouTube titles of 40-60 characters
- "youtubeLong": exactly 3 keyword-rich YouTube titles of 70-100 characters
- "podcastTitles": exactly 3 creative, descriptive episode titles
- "seoKeywords": 5 to 10 SEO keywords`
}

func normalizeTitles(t *project.Titles) error {
	var err error
	if t.YouTubeShort, err = checkCount("youtubeShort", cleanList(t.YouTubeShort), 3, 3); err != nil {
		return err
	}
	if t.YouTubeLong, err = checkCount("youtubeLong", cleanList(t.YouTubeLong), 3, 3); err != nil {
		return err
	}
	if t.PodcastTitles, err = checkCount("podcastTitles", cleanList(t.PodcastTitles), 3, 3); err != nil {
		return err
	}
	if t.SEOKeywords, err = checkCount("seoKeywords", cleanList(t.SEOKeywords), 5, 10); err != nil {
		return err
	}
	return nil
}

func titlesFallback(t *project.Transcript) *project.Titles {
	topics := headlines(t)
	words := keywords(t, 10)

	var short, long, podcast []string
	for _, topic := range topics {
		short = append(short, truncateRunes(titleCase(topic), 60))
		podcast = append(podcast, "Episode: "+titleCase(topic))
	}
	for _, word := range words {
		short = append(short, "Inside "+titleCase(word))
	}
	short = fill(short, 3, "Episode Highlights", "The Full Conversation", "What You Missed")

	if len(topics) > 0 {
		long = append(long, titleCase(joinHuman(firstN(topics, 3)))+": The Full Conversation")
	}
	if len(words) > 0 {
		long = append(long, "Everything We Learned About "+titleCase(joinHuman(firstN(words, 3))))
	}
	long = fill(long, 3,
		"The Complete Episode With Key Moments, Insights and Takeaways",
		"Full Podcast Episode: Highlights, Chapters and Big Ideas",
		"Watch the Whole Conversation With Timestamps and Summary",
	)

	for _, word := range words {
		podcast = append(podcast, "Talking "+titleCase(word))
	}
	podcast = fill(podcast, 3, "The Conversation", "Behind the Episode", "Notes From the Show")

	seo := fill(append([]string(nil), words...), 5, "podcast", "interview", "episode", "highlights", "discussion")

	return &project.Titles{
		YouTubeShort:  firstN(short, 3),
		YouTubeLong:   firstN(long, 3),
		PodcastTitles: firstN(podcast, 3),
		SEOKeywords:   firstN(seo, 10),
	}
}
