package testsupport

import (
	"context"
	"testing"

	"podcastflow/internal/config"
	"podcastflow/internal/project"
	"podcastflow/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewProject creates an uploaded project owned by userID.
func NewProject(t testing.TB, st *store.Store, userID, fileName string) *project.Project {
	t.Helper()

	p, err := st.CreateProject(context.Background(), project.NewProject{
		UserID:   userID,
		InputURL: "https://files.test/uploads/" + userID + "/" + fileName,
		FileName: fileName,
		FileSize: 4 << 20,
		MIMEType: "audio/mpeg",
	})
	if err != nil {
		t.Fatalf("store.CreateProject: %v", err)
	}
	return p
}

// SampleTranscript returns a three-segment transcript with two chapters.
func SampleTranscript() *project.Transcript {
	return &project.Transcript{
		Text: "Welcome to the show. Today we talk about Go. Thanks for listening.",
		Segments: []project.Segment{
			{ID: 0, Start: 0, End: 4.2, Text: "Welcome to the show."},
			{ID: 1, Start: 4.2, End: 300, Text: "Today we talk about Go."},
			{ID: 2, Start: 300, End: 600, Text: "Thanks for listening."},
		},
		Chapters: []project.Chapter{
			{StartMS: 0, EndMS: 300000, Headline: "Introduction", Summary: "The hosts open the show.", Gist: "intro"},
			{StartMS: 300000, EndMS: 600000, Headline: "Closing thoughts", Summary: "Wrap-up and thanks.", Gist: "outro"},
		},
	}
}
