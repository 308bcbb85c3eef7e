package project

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"podcastflow/internal/services"
)

// MaxFileSize is the default upload size cap (100 MiB).
const MaxFileSize int64 = 100 * 1024 * 1024

// DefaultMIMEType is recorded when the client omits a content type.
const DefaultMIMEType = "application/octet-stream"

// UnknownFileFormat is recorded when the file name has no extension.
const UnknownFileFormat = "unknown"

var allowedMIMETypes = []string{
	"audio/mpeg",
	"audio/mp3",
	"audio/mp4",
	"audio/m4a",
	"audio/x-m4a",
	"audio/wav",
	"audio/x-wav",
	"audio/wave",
	"audio/aac",
	"audio/aacp",
	"audio/ogg",
	"audio/opus",
	"audio/webm",
	"audio/flac",
	"audio/x-flac",
	"audio/3gpp",
	"audio/3gpp2",
	"video/mp4",
	"video/webm",
	"video/quicktime",
	"video/x-msvideo",
	"video/x-matroska",
}

var allowedMIMESet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(allowedMIMETypes))
	for _, value := range allowedMIMETypes {
		set[value] = struct{}{}
	}
	return set
}()

// AllowedMIMETypes returns the accepted upload content types.
func AllowedMIMETypes() []string {
	return append([]string(nil), allowedMIMETypes...)
}

// NormalizeMIMEType lowercases a content type and drops parameters. An empty
// value becomes DefaultMIMEType.
func NormalizeMIMEType(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultMIMEType
	}
	if mediaType, _, err := mime.ParseMediaType(value); err == nil {
		return strings.ToLower(mediaType)
	}
	if idx := strings.IndexByte(value, ';'); idx >= 0 {
		value = value[:idx]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

// IsAllowedMIMEType reports whether value is an accepted audio/video type.
func IsAllowedMIMEType(value string) bool {
	_, ok := allowedMIMESet[NormalizeMIMEType(value)]
	return ok
}

// FileFormat returns the lower-cased extension of name without the dot, or
// "unknown".
func FileFormat(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(strings.TrimSpace(name)), ".")
	if ext == "" {
		return UnknownFileFormat
	}
	return strings.ToLower(ext)
}

// ValidateUpload checks the size cap and MIME allow-list. maxSize <= 0 uses
// MaxFileSize.
func ValidateUpload(fileName string, size int64, mimeType string, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = MaxFileSize
	}
	if strings.TrimSpace(fileName) == "" {
		return services.Wrap(services.ErrValidation, "upload", "", "file name is required", nil)
	}
	if size <= 0 {
		return services.Wrap(services.ErrValidation, "upload", "", "file is empty", nil)
	}
	if size > maxSize {
		return services.Wrap(services.ErrValidation, "upload", "",
			fmt.Sprintf("file size %d exceeds limit of %d bytes", size, maxSize), nil)
	}
	if !IsAllowedMIMEType(mimeType) {
		return services.Wrap(services.ErrValidation, "upload", "",
			fmt.Sprintf("unsupported file type %q", NormalizeMIMEType(mimeType)), nil)
	}
	return nil
}
