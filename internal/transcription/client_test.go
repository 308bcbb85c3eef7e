package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"podcastflow/internal/services"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type fakeProvider struct {
	t           *testing.T
	polls       atomic.Int32
	submitted   submitRequest
	finalStatus string
	errorText   string
	uploads     atomic.Int32
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/upload", func(w http.ResponseWriter, r *http.Request) {
		f.uploads.Add(1)
		body, _ := io.ReadAll(r.Body)
		if string(body) != "local-bytes" {
			f.t.Errorf("unexpected upload body %q", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.test/upload/1"})
	})
	mux.HandleFunc("POST /v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"})
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&f.submitted); err != nil {
			f.t.Errorf("decode submit: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": "queued"})
	})
	mux.HandleFunc("GET /v2/transcript/tr-1", func(w http.ResponseWriter, r *http.Request) {
		if f.polls.Add(1) < 3 {
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": "processing"})
			return
		}
		if f.finalStatus == statusError {
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": "error", "error": f.errorText})
			return
		}
		_, _ = w.Write([]byte(`{
			"id": "tr-1",
			"status": "completed",
			"text": "Hello there. Welcome to the show.",
			"utterances": [{"speaker": "A", "start": 0, "end": 4000, "text": "Hello there.", "confidence": 0.91}],
			"chapters": [
				{"start": 0, "end": 60000, "headline": "Intro", "summary": "The hosts say hello.", "gist": "hello"},
				{"start": 60000, "end": 120000, "headline": "Main topic", "summary": "They talk.", "gist": "talk"}
			]
		}`))
	})
	mux.HandleFunc("GET /v2/transcript/tr-1/sentences", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sentences": [
			{"text": "Hello there.", "start": 0, "end": 1500, "words": [{"text": "Hello", "start": 0, "end": 700}, {"text": "there.", "start": 700, "end": 1500}]},
			{"text": "Welcome to the show.", "start": 1600, "end": 4000}
		]}`))
	})
	return mux
}

func TestTranscribeHappyPath(t *testing.T) {
	provider := &fakeProvider{t: t}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, SpeakerLabels: true, AutoChapters: true}, WithSleeper(noSleep))
	transcript, err := client.Transcribe(context.Background(), "https://files.test/a.mp3")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !provider.submitted.SpeakerLabels || !provider.submitted.AutoChapters || provider.submitted.AudioURL != "https://files.test/a.mp3" {
		t.Fatalf("unexpected submit payload %+v", provider.submitted)
	}
	if len(transcript.Segments) != 2 || transcript.Segments[1].Start != 1.6 || len(transcript.Segments[0].Words) != 2 {
		t.Fatalf("unexpected segments %+v", transcript.Segments)
	}
	if len(transcript.Chapters) != 2 || transcript.Chapters[1].StartMS != 60000 || transcript.Chapters[0].Headline != "Intro" {
		t.Fatalf("unexpected chapters %+v", transcript.Chapters)
	}
	if len(transcript.Speakers) != 1 || transcript.Speakers[0].End != 4 {
		t.Fatalf("unexpected speakers %+v", transcript.Speakers)
	}
	if provider.polls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", provider.polls.Load())
	}
}

func TestTranscribeProviderErrorIsFatal(t *testing.T) {
	provider := &fakeProvider{t: t, finalStatus: statusError, errorText: "unsupported codec"}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL}, WithSleeper(noSleep))
	_, err := client.Transcribe(context.Background(), "https://files.test/a.mp3")
	if !errors.Is(err, services.ErrFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unsupported codec") {
		t.Fatalf("expected provider message, got %v", err)
	}
}

func TestTranscribeUnauthorizedIsFatalWithoutRetry(t *testing.T) {
	provider := &fakeProvider{t: t}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	client := NewClient(Config{APIKey: "wrong", BaseURL: server.URL}, WithSleeper(noSleep))
	_, err := client.Transcribe(context.Background(), "https://files.test/a.mp3")
	if !errors.Is(err, services.ErrFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if code := services.StatusCode(err); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestTranscribeRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "key", BaseURL: server.URL, RetryAttempts: 4},
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}),
		WithRetryBackoff(time.Second, 3*time.Second),
	)
	_, err := client.Transcribe(context.Background(), "https://files.test/a.mp3")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatalf("expected retryable error")
	}
	if calls.Load() != 4 {
		t.Fatalf("expected 4 calls, got %d", calls.Load())
	}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("unexpected sleeps %v", slept)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("sleep %d: got %v want %v", i, slept[i], want[i])
		}
	}
}

type localOpener struct{}

func (localOpener) OpenLocal(_ context.Context, url string) (io.ReadCloser, bool, error) {
	if !strings.HasPrefix(url, "http://127.0.0.1/files/") {
		return nil, false, nil
	}
	return io.NopCloser(strings.NewReader("local-bytes")), true, nil
}

func TestTranscribeUploadsLocalSources(t *testing.T) {
	provider := &fakeProvider{t: t}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL}, WithSleeper(noSleep), WithSourceOpener(localOpener{}))
	if _, err := client.Transcribe(context.Background(), "http://127.0.0.1/files/uploads/u/a.mp3"); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if provider.uploads.Load() != 1 {
		t.Fatalf("expected one upload, got %d", provider.uploads.Load())
	}
	if provider.submitted.AudioURL != "https://cdn.test/upload/1" {
		t.Fatalf("expected upload url to be submitted, got %q", provider.submitted.AudioURL)
	}
}

func TestTranscribeRequiresURLAndKey(t *testing.T) {
	client := NewClient(Config{APIKey: "key"})
	if _, err := client.Transcribe(context.Background(), " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	client = NewClient(Config{})
	if _, err := client.Transcribe(context.Background(), "https://x"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
