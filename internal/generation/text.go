package generation

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"podcastflow/internal/project"
)

const excerptLimit = 12000

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "also": {}, "because": {}, "been": {}, "before": {},
	"being": {}, "could": {}, "didn't": {}, "does": {}, "doing": {}, "don't": {}, "going": {},
	"have": {}, "here": {}, "it's": {}, "just": {}, "know": {}, "like": {}, "little": {},
	"make": {}, "many": {}, "more": {}, "most": {}, "much": {}, "really": {}, "right": {},
	"said": {}, "same": {}, "should": {}, "some": {}, "something": {}, "such": {}, "than": {},
	"that": {}, "that's": {}, "their": {}, "them": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "thing": {}, "things": {}, "think": {}, "this": {}, "those": {}, "through": {},
	"very": {}, "want": {}, "well": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "will": {}, "with": {}, "would": {}, "yeah": {}, "your": {},
	"you're": {}, "we're": {}, "i'm": {}, "into": {}, "from": {}, "over": {}, "only": {},
	"other": {}, "kind": {}, "lot": {}, "okay": {}, "actually": {}, "even": {}, "every": {},
}

func titleCase(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

// transcriptContext renders the prompt section shared by the model tasks.
func transcriptContext(t *project.Transcript) string {
	var b strings.Builder
	b.WriteString("TRANSCRIPT:\n")
	b.WriteString(truncateRunes(strings.TrimSpace(t.Text), excerptLimit))
	if len(t.Chapters) > 0 {
		b.WriteString("\n\nCHAPTERS:\n")
		for _, ch := range t.Chapters {
			fmt.Fprintf(&b, "[%s] %s - %s\n", FormatYouTubeTimestamp(ch.StartSeconds()), ch.Headline, ch.Summary)
		}
	}
	return b.String()
}

// splitSentences breaks text on terminal punctuation followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(strings.TrimSpace(text))
	for i, r := range runes {
		b.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// keywords ranks content words by frequency. Chapter headline words weigh
// triple; ties keep first appearance order.
func keywords(t *project.Transcript, limit int) []string {
	counts := map[string]int{}
	order := map[string]int{}
	add := func(text string, weight int) {
		for _, field := range strings.Fields(strings.ToLower(text)) {
			word := strings.TrimFunc(field, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r)
			})
			if utf8.RuneCountInString(word) < 4 {
				continue
			}
			if _, skip := stopwords[word]; skip {
				continue
			}
			if _, seen := order[word]; !seen {
				order[word] = len(order)
			}
			counts[word] += weight
		}
	}
	for _, ch := range t.Chapters {
		add(ch.Headline, 3)
	}
	add(t.Text, 1)

	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return order[words[i]] < order[words[j]]
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

// cleanList trims entries, drops blanks and case-insensitive duplicates.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// fill appends pool entries not yet present until items has at least n.
func fill(items []string, n int, pool ...string) []string {
	items = cleanList(items)
	for _, candidate := range pool {
		if len(items) >= n {
			break
		}
		items = cleanList(append(items, candidate))
	}
	return items
}

// checkCount validates len(items) within [minN, maxN] and trims any excess.
func checkCount(field string, items []string, minN, maxN int) ([]string, error) {
	if len(items) < minN {
		return items, fmt.Errorf("%s: want at least %d entries, got %d", field, minN, len(items))
	}
	if len(items) > maxN {
		items = items[:maxN]
	}
	return items, nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// clipPost shortens s to at most limit runes, cutting at a word boundary
// and marking the cut with an ellipsis.
func clipPost(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	cut := []rune(s)[:limit-1]
	if idx := strings.LastIndexFunc(string(cut), unicode.IsSpace); idx > 0 {
		cut = []rune(strings.TrimSpace(string(cut)[:idx]))
	}
	return string(cut) + "…"
}

// hashtag turns a phrase into a single #CamelCase tag.
func hashtag(phrase string) string {
	var b strings.Builder
	for _, word := range strings.Fields(titleCase(strings.TrimPrefix(strings.TrimSpace(phrase), "#"))) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "#" + b.String()
}

func headlines(t *project.Transcript) []string {
	out := make([]string, 0, len(t.Chapters))
	for _, ch := range t.Chapters {
		if h := strings.TrimSpace(ch.Headline); h != "" {
			out = append(out, h)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
