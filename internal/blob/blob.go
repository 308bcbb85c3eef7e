// Package blob stores uploaded media and rendered captions behind a small
// backend interface with local filesystem and S3 implementations.
package blob

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	"podcastflow/internal/config"
	"podcastflow/internal/project"
	"podcastflow/internal/services"
)

// Object describes a stored blob.
type Object struct {
	Key         string `json:"pathname"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// Backend persists bytes under a key and reports their public URL.
type Backend interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	URL(key string) string
	// OpenLocal opens url when it refers to a blob only this process can
	// serve. It reports false for publicly reachable URLs.
	OpenLocal(ctx context.Context, url string) (io.ReadCloser, bool, error)
}

// Store applies upload rules on top of a Backend.
type Store struct {
	backend Backend
	maxSize int64
	suffix  func() string
}

// New wraps backend. maxSize <= 0 uses project.MaxFileSize.
func New(backend Backend, maxSize int64) *Store {
	if maxSize <= 0 {
		maxSize = project.MaxFileSize
	}
	return &Store{backend: backend, maxSize: maxSize, suffix: randomSuffix}
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg config.Storage) (*Store, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case config.StorageS3:
		backend, err = NewS3(ctx, cfg)
	case config.StorageLocal, "":
		backend, err = NewLocal(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		err = services.Wrap(services.ErrConfiguration, "blob", "open", fmt.Sprintf("unsupported backend %q", cfg.Backend), nil)
	}
	if err != nil {
		return nil, err
	}
	return New(backend, int64(cfg.MaxFileSizeMB)*1024*1024), nil
}

// MaxSize returns the upload size cap in bytes.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Backend exposes the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Upload validates and stores a user's media file under a randomly suffixed
// key: uploads/<user>/<stem>-<rand>.<ext>.
func (s *Store) Upload(ctx context.Context, userID, fileName, contentType string, size int64, body io.Reader) (Object, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Object{}, services.Wrap(services.ErrUnauthorized, "blob", "upload", "user id required", nil)
	}
	contentType = project.NormalizeMIMEType(contentType)
	if err := project.ValidateUpload(fileName, size, contentType, s.maxSize); err != nil {
		return Object{}, err
	}
	key := UploadKey(userID, fileName, s.suffix())
	limited := &limitedReader{r: body, remaining: s.maxSize}
	if err := s.backend.Put(ctx, key, limited, size, contentType); err != nil {
		if limited.exceeded {
			return Object{}, services.Wrap(services.ErrValidation, "blob", "upload",
				fmt.Sprintf("file exceeds limit of %d bytes", s.maxSize), nil)
		}
		return Object{}, fmt.Errorf("blob: upload: %w", err)
	}
	return Object{Key: key, URL: s.backend.URL(key), Size: size, ContentType: contentType}, nil
}

// PutCaptions stores rendered SRT captions for a project.
func (s *Store) PutCaptions(ctx context.Context, projectID, srt string) (Object, error) {
	key := "captions/" + sanitizeSegment(projectID) + ".srt"
	const contentType = "application/x-subrip"
	if err := s.backend.Put(ctx, key, strings.NewReader(srt), int64(len(srt)), contentType); err != nil {
		return Object{}, fmt.Errorf("blob: put captions: %w", err)
	}
	return Object{Key: key, URL: s.backend.URL(key), Size: int64(len(srt)), ContentType: contentType}, nil
}

// OpenLocal implements transcription.SourceOpener.
func (s *Store) OpenLocal(ctx context.Context, url string) (io.ReadCloser, bool, error) {
	return s.backend.OpenLocal(ctx, url)
}

// UploadKey builds the storage key for an upload.
func UploadKey(userID, fileName, suffix string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	ext := path.Ext(base)
	stem := sanitizeSegment(strings.TrimSuffix(base, ext))
	if stem == "" {
		stem = "upload"
	}
	key := fmt.Sprintf("uploads/%s/%s-%s", sanitizeSegment(userID), stem, suffix)
	if ext = strings.ToLower(sanitizeSegment(strings.TrimPrefix(ext, "."))); ext != "" {
		key += "." + ext
	}
	return key
}

// sanitizeSegment keeps letters, digits, dash, underscore and dot, replacing
// runs of anything else with a single dash.
func sanitizeSegment(value string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(value) {
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-.")
}

func randomSuffix() string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("blob: read random: %v", err))
	}
	return hex.EncodeToString(buf[:])
}

// limitedReader fails once more than remaining bytes are read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.exceeded = true
		return n, errTooLarge
	}
	return n, err
}

var errTooLarge = errors.New("blob exceeds size limit")
