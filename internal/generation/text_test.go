package generation

import (
	"testing"

	"podcastflow/internal/project"
)

func TestFormatTimestamps(t *testing.T) {
	cases := []struct {
		seconds float64
		clock   string
		youtube string
	}{
		{0, "00:00:00", "0:00"},
		{59.9, "00:00:59", "0:59"},
		{605, "00:10:05", "10:05"},
		{3600, "01:00:00", "1:00:00"},
		{36125, "10:02:05", "10:02:05"},
		{-3, "00:00:00", "0:00"},
	}
	for _, tc := range cases {
		if got := FormatClock(tc.seconds); got != tc.clock {
			t.Fatalf("FormatClock(%v) = %q, want %q", tc.seconds, got, tc.clock)
		}
		if got := FormatYouTubeTimestamp(tc.seconds); got != tc.youtube {
			t.Fatalf("FormatYouTubeTimestamp(%v) = %q, want %q", tc.seconds, got, tc.youtube)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Hello there. Version 1.2 is out! Is it? trailing")
	want := []string{"Hello there.", "Version 1.2 is out!", "Is it?", "trailing"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestKeywordsWeighsHeadlines(t *testing.T) {
	transcript := &project.Transcript{
		Text:     "golang golang testing testing testing with that",
		Chapters: []project.Chapter{{Headline: "Golang basics"}},
	}
	got := keywords(transcript, 2)
	if len(got) != 2 || got[0] != "golang" || got[1] != "basics" {
		t.Fatalf("unexpected keywords %v", got)
	}
}

func TestHashtag(t *testing.T) {
	cases := map[string]string{
		"machine learning": "#MachineLearning",
		"#already":         "#Already",
		"rock & roll":      "#RockRoll",
		"  ":               "",
	}
	for in, want := range cases {
		if got := hashtag(in); got != want {
			t.Fatalf("hashtag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClipPost(t *testing.T) {
	if got := clipPost("short", 280); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := clipPost("alpha beta gamma", 12); got != "alpha beta…" {
		t.Fatalf("unexpected %q", got)
	}
}
