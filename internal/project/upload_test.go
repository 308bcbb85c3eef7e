package project_test

import (
	"errors"
	"testing"

	"podcastflow/internal/project"
	"podcastflow/internal/services"
)

func TestFileFormat(t *testing.T) {
	cases := map[string]string{
		"episode.MP3":      "mp3",
		"show.final.m4a":   "m4a",
		"noextension":      "unknown",
		"":                 "unknown",
		"  interview.wav ": "wav",
	}
	for in, want := range cases {
		if got := project.FileFormat(in); got != want {
			t.Fatalf("FileFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMIMEAllowList(t *testing.T) {
	for _, value := range []string{"audio/mpeg", "AUDIO/MPEG", "video/mp4; codecs=avc1", "audio/x-m4a", "video/x-matroska"} {
		if !project.IsAllowedMIMEType(value) {
			t.Fatalf("expected %q to be allowed", value)
		}
	}
	for _, value := range []string{"", "application/pdf", "image/png", "text/plain"} {
		if project.IsAllowedMIMEType(value) {
			t.Fatalf("expected %q to be rejected", value)
		}
	}
	if project.NormalizeMIMEType("") != project.DefaultMIMEType {
		t.Fatal("expected default mime type for empty value")
	}
}

func TestValidateUpload(t *testing.T) {
	if err := project.ValidateUpload("a.mp3", 1024, "audio/mpeg", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cases := []struct {
		name string
		size int64
		mime string
	}{
		{"a.mp3", project.MaxFileSize + 1, "audio/mpeg"},
		{"a.pdf", 10, "application/pdf"},
		{"", 10, "audio/mpeg"},
		{"a.mp3", 0, "audio/mpeg"},
	}
	for _, tc := range cases {
		err := project.ValidateUpload(tc.name, tc.size, tc.mime, 0)
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%+v: expected validation error, got %v", tc, err)
		}
	}
	if err := project.ValidateUpload("a.mp3", 2048, "audio/mpeg", 1024); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected custom cap to apply, got %v", err)
	}
}

func TestBundleSetAndMissing(t *testing.T) {
	var b project.Bundle
	if b.Complete() {
		t.Fatal("empty bundle must not be complete")
	}
	if !b.Set(project.JobKeyMoments, []project.KeyMoment{}) {
		t.Fatal("expected key moments to be accepted")
	}
	if b.Set(project.JobSummary, "wrong type") {
		t.Fatal("expected mismatched artifact to be rejected")
	}
	b.Set(project.JobSummary, &project.Summary{})
	b.Set(project.JobSocial, &project.SocialPosts{})
	b.Set(project.JobTitles, &project.Titles{})
	b.Set(project.JobHashtags, &project.Hashtags{})
	missing := b.Missing()
	if len(missing) != 1 || missing[0] != project.JobYouTubeTimestamps {
		t.Fatalf("unexpected missing jobs %v", missing)
	}
	b.Set(project.JobYouTubeTimestamps, []project.YouTubeTimestamp{{Timestamp: "0:00", Description: "Intro"}})
	if !b.Complete() {
		t.Fatal("expected complete bundle")
	}
}
