package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"podcastflow/internal/config"
	"podcastflow/internal/project"
)

const (
	userAgent      = "podcastflow/0.1"
	defaultTimeout = 10 * time.Second
	errorBodyLimit = 2048
)

// Service defines the notification surface used by the workflow.
type Service interface {
	NotifyProjectCompleted(ctx context.Context, p *project.Project, elapsed time.Duration) error
	NotifyProjectFailed(ctx context.Context, p *project.Project) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a no-op one when no topic is
// configured.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ntfyService{
		topic:  topic,
		http:   &http.Client{Timeout: timeout},
		events: map[string]bool{eventCompleted: cfg.Completed, eventFailed: cfg.Failed, eventTest: true},
	}
}

const (
	eventCompleted = "completed"
	eventFailed    = "failed"
	eventTest      = "test"
)

// message is one ntfy publication. Title, tags and priority travel as
// headers and body is the plain-text message.
type message struct {
	event    string
	title    string
	body     string
	priority string
}

func (m message) headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Title", m.title)
	tags := []string{"podcastflow", m.event}
	if m.event != eventTest {
		tags = []string{"podcastflow", "project", m.event}
	}
	h.Set("Tags", strings.Join(tags, ","))
	if m.priority != "" {
		h.Set("Priority", m.priority)
	}
	return h
}

type ntfyService struct {
	topic  string
	http   *http.Client
	events map[string]bool
}

func (n *ntfyService) NotifyProjectCompleted(ctx context.Context, p *project.Project, elapsed time.Duration) error {
	if p == nil {
		return nil
	}
	lines := []string{"✅ Ready: " + describe(p)}
	if elapsed > 0 {
		lines = append(lines, "Processed in "+elapsed.Round(time.Second).String())
	}
	return n.publish(ctx, message{
		event: eventCompleted,
		title: "podcastflow - Complete",
		body:  strings.Join(lines, "\n"),
	})
}

func (n *ntfyService) NotifyProjectFailed(ctx context.Context, p *project.Project) error {
	if p == nil {
		return nil
	}
	lines := []string{"❌ Failed: " + describe(p)}
	if failure := p.Error; failure != nil {
		if failure.Step != "" {
			lines = append(lines, "Step: "+failure.Step)
		}
		if text := strings.TrimSpace(failure.Message); text != "" {
			lines = append(lines, "Error: "+text)
		}
	}
	return n.publish(ctx, message{
		event:    eventFailed,
		title:    "podcastflow - Failed",
		body:     strings.Join(lines, "\n"),
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.publish(ctx, message{
		event:    eventTest,
		title:    "podcastflow - Test",
		body:     "🧪 Notification system test",
		priority: "low",
	})
}

// describe names a project by file, falling back to its id, with the size
// appended when known.
func describe(p *project.Project) string {
	name := strings.TrimSpace(p.FileName)
	if name == "" {
		name = p.ID
	}
	if p.FileSize > 0 {
		name += " (" + humanize.IBytes(uint64(p.FileSize)) + ")"
	}
	return name
}

func (n *ntfyService) publish(ctx context.Context, msg message) error {
	if n == nil || !n.events[msg.event] {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.topic, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("ntfy %s: build request: %w", msg.event, err)
	}
	req.Header = msg.headers()

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy %s: %w", msg.event, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyProjectCompleted(context.Context, *project.Project, time.Duration) error {
	return nil
}

func (noopService) NotifyProjectFailed(context.Context, *project.Project) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
