package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"podcastflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "transcription", "submit", "rate limited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcription", "submit", "rate limited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", services.Wrap(services.ErrTransient, "titles", "llm", "", nil), true},
		{"persistence", services.Wrap(services.ErrPersistence, "summary", "save", "", nil), true},
		{"fatal", services.Wrap(services.ErrFatal, "transcription", "poll", "unsupported codec", nil), false},
		{"validation", services.Wrap(services.ErrValidation, "upload", "", "too large", nil), false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"canceled", fmt.Errorf("call: %w", context.Canceled), false},
		{"plain", errors.New("mystery"), false},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.want {
			t.Fatalf("%s: Retryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestStatusCodeFromProviderError(t *testing.T) {
	perr := &services.ProviderError{Provider: "assemblyai", StatusCode: 503, Message: "unavailable"}
	err := services.Wrap(services.ErrTransient, "transcription", "submit", "", perr)
	if code := services.StatusCode(err); code != 503 {
		t.Fatalf("expected status 503, got %d", code)
	}
	if services.StatusCode(errors.New("plain")) != 0 {
		t.Fatal("expected zero status for plain error")
	}
}

func TestKindAndMessage(t *testing.T) {
	err := services.Wrap(services.ErrFatal, "transcription", "", "unsupported codec", nil)
	if kind := services.Kind(err); kind != "fatal_provider" {
		t.Fatalf("unexpected kind %q", kind)
	}
	if msg := services.Message(err); msg != "transcription: unsupported codec" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	type input struct {
		FileURL  string `json:"fileUrl" validate:"required"`
		FileName string `json:"fileName" validate:"required"`
		Size     int64  `json:"fileSize" validate:"gte=0"`
	}
	err := services.ValidateStruct("create project", input{FileName: "a.mp3", Size: -1})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "fileUrl is required") || !strings.Contains(msg, "fileSize must be >= 0") {
		t.Fatalf("unexpected message %q", msg)
	}
	if err := services.ValidateStruct("create project", input{FileURL: "u", FileName: "n"}); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}
