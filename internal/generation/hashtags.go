package generation

import (
	"context"
	"strings"

	"podcastflow/internal/project"
)

const hashtagsSystemPrompt = "You are a social media strategist who picks relevant, discoverable hashtags for each platform. Respond with JSON only."

var genericHashtags = []string{
	"#Podcast", "#PodcastEpisode", "#NewEpisode", "#Podcasting", "#PodcastLife",
	"#ListenNow", "#Conversation", "#Interview", "#Learning", "#Storytelling",
}

// Hashtags suggests hashtags per platform.
type Hashtags struct {
	modelTask
}

// Job implements Generator.
func (Hashtags) Job() project.Job { return project.JobHashtags }

// Generate implements Generator.
func (h Hashtags) Generate(ctx context.Context, transcript *project.Transcript) (any, error) {
	var out project.Hashtags
	err := h.ask(ctx, project.JobHashtags, hashtagsSystemPrompt, hashtagsPrompt(transcript), &out, func() error {
		return normalizeHashtags(&out)
	})
	if err == nil {
		return &out, nil
	}
	if !isOutputError(err) {
		return nil, err
	}
	h.fallback(ctx, project.JobHashtags, err)
	return hashtagsFallback(transcript), nil
}

func hashtagsPrompt(t *project.Transcript) string {
	return transcriptContext(t) + `

Suggest hashtags for promoting this episode. Every hashtag starts with # and contains no spaces. Return a JSON object with:
- "youtube": exactly 5 broad-reach hashtags
- "instagram": 6 to 8 hashtags mixing niche and broad
- "tiktok": 5 to 6 trending-style hashtags
- "linkedin": exactly 5 professional hashtags
- "twitter": exactly 5 concise hashtags`
}

type hashtagRule struct {
	name     string
	tags     *[]string
	min, max int
}

func hashtagRules(h *project.Hashtags) []hashtagRule {
	return []hashtagRule{
		{"youtube", &h.YouTube, 5, 5},
		{"instagram", &h.Instagram, 6, 8},
		{"tiktok", &h.TikTok, 5, 6},
		{"linkedin", &h.LinkedIn, 5, 5},
		{"twitter", &h.Twitter, 5, 5},
	}
}

func normalizeHashtags(h *project.Hashtags) error {
	for _, rule := range hashtagRules(h) {
		tags := make([]string, 0, len(*rule.tags))
		for _, raw := range *rule.tags {
			if tag := normalizeTag(raw); tag != "" {
				tags = append(tags, tag)
			}
		}
		checked, err := checkCount(rule.name, cleanList(tags), rule.min, rule.max)
		if err != nil {
			return err
		}
		*rule.tags = checked
	}
	return nil
}

// normalizeTag keeps tags the model already wrote as single tokens and
// camel-cases anything containing spaces.
func normalizeTag(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.ContainsAny(raw, " \t") {
		return hashtag(raw)
	}
	if !strings.HasPrefix(raw, "#") {
		raw = "#" + raw
	}
	if raw == "#" {
		return ""
	}
	return raw
}

func hashtagsFallback(t *project.Transcript) *project.Hashtags {
	var topical []string
	for _, word := range keywords(t, 8) {
		if tag := hashtag(word); tag != "" {
			topical = append(topical, tag)
		}
	}
	var out project.Hashtags
	for _, rule := range hashtagRules(&out) {
		tags := fill(append([]string(nil), topical...), rule.min, genericHashtags...)
		*rule.tags = firstN(tags, rule.max)
	}
	return &out
}
