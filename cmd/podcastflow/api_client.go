package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"podcastflow/internal/api"
	"podcastflow/internal/project"
	"podcastflow/internal/realtime"
)

// apiClient calls the daemon HTTP API.
type apiClient struct {
	base   string
	header string
	value  string
	http   *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: base,
		http: &http.Client{Timeout: 2 * time.Minute},
	}
}

// apiError is a non-2xx response decoded from the daemon.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

func (c *apiClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if c.header != "" {
		req.Header.Set(c.header, c.value)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapDialError(err, c.base)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload api.ErrorResponse
		_ = json.Unmarshal(data, &payload)
		return &apiError{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *apiClient) status(ctx context.Context) (api.DaemonStatus, error) {
	var resp api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, "", &resp)
	return resp, err
}

func (c *apiClient) listProjects(ctx context.Context, limit int, cursor, status string) (api.ProjectListResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if status != "" {
		query.Set("status", status)
	}
	path := "/api/projects"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp api.ProjectListResponse
	err := c.do(ctx, http.MethodGet, path, nil, "", &resp)
	return resp, err
}

func (c *apiClient) project(ctx context.Context, id string) (api.ProjectView, error) {
	var resp api.ProjectView
	err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, "", &resp)
	return resp, err
}

func (c *apiClient) createProject(ctx context.Context, req api.CreateProjectRequest) (api.CreateProjectResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return api.CreateProjectResponse{}, err
	}
	var resp api.CreateProjectResponse
	err = c.do(ctx, http.MethodPost, "/api/projects", bytes.NewReader(body), "application/json", &resp)
	return resp, err
}

// upload streams a local file to the daemon as a multipart form.
func (c *apiClient) upload(ctx context.Context, path string) (api.UploadResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return api.UploadResponse{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
		header.Set("Content-Type", contentTypeFor(path))
		part, err := form.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	var resp api.UploadResponse
	err = c.do(ctx, http.MethodPost, "/api/upload", pr, form.FormDataContentType(), &resp)
	_ = pr.Close()
	return resp, err
}

func (c *apiClient) realtimeToken(ctx context.Context, projectID string) (api.RealtimeTokenResponse, error) {
	var resp api.RealtimeTokenResponse
	err := c.do(ctx, http.MethodGet, "/api/realtime/token?projectId="+url.QueryEscape(projectID), nil, "", &resp)
	return resp, err
}

func (c *apiClient) events(ctx context.Context, token string, since uint64, follow bool) (realtime.EventsResponse, error) {
	query := url.Values{}
	query.Set("token", token)
	query.Set("since", strconv.FormatUint(since, 10))
	if follow {
		query.Set("follow", "1")
	}
	var resp realtime.EventsResponse
	err := c.do(ctx, http.MethodGet, "/api/realtime/events?"+query.Encode(), nil, "", &resp)
	return resp, err
}

func (c *apiClient) testNotification(ctx context.Context) (api.NotificationTestResponse, error) {
	var resp api.NotificationTestResponse
	err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, "", &resp)
	return resp, err
}

var audioContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/x-m4a",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".weba": "audio/webm",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
}

// contentTypeFor guesses the upload content type from the file extension.
func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if value, ok := audioContentTypes[ext]; ok {
		return value
	}
	if value := mime.TypeByExtension(ext); value != "" {
		return project.NormalizeMIMEType(value)
	}
	return project.DefaultMIMEType
}

func wrapDialError(err error, base string) error {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: %s refused the connection; start it with `podcastflow serve`", base)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}
