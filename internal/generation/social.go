package generation

import (
	"context"
	"fmt"
	"strings"

	"podcastflow/internal/project"
)

// TwitterLimit is the maximum length of the Twitter post in runes.
const TwitterLimit = 280

const socialSystemPrompt = "You are a social media strategist who writes platform-native posts promoting podcast episodes. Respond with JSON only."

// SocialPosts writes one promotional post per platform.
type SocialPosts struct {
	modelTask
}

// Job implements Generator.
func (SocialPosts) Job() project.Job { return project.JobSocial }

// Generate implements Generator.
func (s SocialPosts) Generate(ctx context.Context, transcript *project.Transcript) (any, error) {
	var out project.SocialPosts
	err := s.ask(ctx, project.JobSocial, socialSystemPrompt, socialPrompt(transcript), &out, func() error {
		return normalizeSocial(&out)
	})
	if err == nil {
		return &out, nil
	}
	if !isOutputError(err) {
		return nil, err
	}
	s.fallback(ctx, project.JobSocial, err)
	return socialFallback(transcript), nil
}

func socialPrompt(t *project.Transcript) string {
	return transcriptContext(t) + fmt.Sprintf(`

Write one post promoting this episode for each platform. Return a JSON object with:
- "twitter": at most %d characters
- "linkedin": professional tone, 1-2 paragraphs
- "instagram": engaging caption with emoji
- "tiktok": short, casual caption
- "youtube": detailed video description
- "facebook": conversational and shareable`, TwitterLimit)
}

func normalizeSocial(p *project.SocialPosts) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"twitter", &p.Twitter},
		{"linkedin", &p.LinkedIn},
		{"instagram", &p.Instagram},
		{"tiktok", &p.TikTok},
		{"youtube", &p.YouTube},
		{"facebook", &p.Facebook},
	}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			return fmt.Errorf("%s: empty post", f.name)
		}
	}
	p.Twitter = clipPost(p.Twitter, TwitterLimit)
	return nil
}

func socialFallback(t *project.Transcript) *project.SocialPosts {
	topics := headlines(t)
	lead := "a new conversation worth your time"
	if len(topics) > 0 {
		lead = topics[0]
	}
	var tags []string
	for _, word := range keywords(t, 3) {
		if tag := hashtag(word); tag != "" {
			tags = append(tags, tag)
		}
	}
	tags = append(tags, "#Podcast")
	tagLine := strings.Join(tags, " ")

	var chapterList strings.Builder
	for _, ch := range t.Chapters {
		fmt.Fprintf(&chapterList, "%s %s\n", FormatYouTubeTimestamp(ch.StartSeconds()), ch.Headline)
	}
	covered := joinHuman(firstN(topics, 3))
	if covered == "" {
		covered = lead
	}

	return &project.SocialPosts{
		Twitter:   clipPost(fmt.Sprintf("New episode: %s. Listen now! %s", lead, tagLine), TwitterLimit),
		LinkedIn:  fmt.Sprintf("Our latest episode is out. We cover %s.\n\nGive it a listen and share your takeaways.", covered),
		Instagram: fmt.Sprintf("🎙️ New episode: %s ✨\n\n%s", lead, tagLine),
		TikTok:    fmt.Sprintf("%s 🎧 %s", lead, tagLine),
		YouTube:   strings.TrimSpace(fmt.Sprintf("In this episode we cover %s.\n\n%s", covered, chapterList.String())),
		Facebook:  fmt.Sprintf("New episode just dropped! We talk about %s. Let us know what you think.", covered),
	}
}
