package main

import (
	"encoding/json"
	"testing"

	"podcastflow/internal/estimate"
	"podcastflow/internal/testsupport"
)

func TestEstimateFromDuration(t *testing.T) {
	out, _, err := runCLI(t, []string{"estimate", "--duration", "3600"}, "")
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	requireContains(t, out, "30 seconds - 15 minutes")
	requireContains(t, out, "3600 seconds")
}

func TestEstimateFromSizeAsJSON(t *testing.T) {
	out, _, err := runCLI(t, []string{"estimate", "--size", "8MiB", "--json"}, "")
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	var got estimate.Estimate
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 8 MiB is assumed to be 64 seconds of audio.
	if got.BestCase != 30 || got.Conservative != 60 || got.Average != 9 {
		t.Fatalf("unexpected estimate %+v", got)
	}
}

func TestEstimateFromFile(t *testing.T) {
	path := testsupport.WriteMediaFile(t, t.TempDir(), "episode.mp3", 2*1024*1024)

	out, _, err := runCLI(t, []string{"estimate", path}, "")
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	requireContains(t, out, "2.0 MiB")
	requireContains(t, out, "16 seconds")
}

func TestEstimateRequiresInput(t *testing.T) {
	if _, _, err := runCLI(t, []string{"estimate"}, ""); err == nil {
		t.Fatal("expected error without input")
	}
	if _, _, err := runCLI(t, []string{"estimate", "--size", "lots"}, ""); err == nil {
		t.Fatal("expected error for unparsable size")
	}
}
