package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// id3Header makes fake uploads start like a tagged MP3.
var id3Header = []byte("ID3\x04\x00\x00\x00\x00\x00\x00")

// WriteMediaFile creates name under dir holding size bytes of fake audio and
// returns its path. Sizes smaller than the ID3 header are rounded up.
func WriteMediaFile(t testing.TB, dir, name string, size int64) string {
	t.Helper()

	size = max(size, int64(len(id3Header)))
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	body := bytes.Repeat([]byte{0xFF}, int(size))
	copy(body, id3Header)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
