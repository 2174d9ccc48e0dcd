package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	errs "photobackup/pkg/errors"
)

// PartSuffix is appended to a destination while its body is being written
const PartSuffix = ".part"

// maxSegmentBytes keeps generated names under common filesystem limits
const maxSegmentBytes = 200

// EnsureDir creates path and any missing parents. It succeeds when the
// directory already exists and fails with an io error when path exists but
// is not a directory.
func EnsureDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return errs.New(errs.ErrorTypeIO, "%s exists and is not a directory", path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return errs.Wrap(errs.ErrorTypeIO, err, "stat %s", path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "create directory %s", path)
	}
	return nil
}

// SanitizeSegment returns name as a single path segment: trimmed, with path
// separators and control characters replaced by '_'. Names that are empty
// or consist only of dots yield "", which callers treat as invalid.
func SanitizeSegment(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte('_')
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())

	if strings.Trim(out, ".") == "" {
		return ""
	}
	return truncate(out, maxSegmentBytes)
}

// AlbumPath joins root and the sanitized album name
func AlbumPath(root, name string) (string, error) {
	seg := SanitizeSegment(name)
	if seg == "" {
		return "", errs.New(errs.ErrorTypeIO, "album name %q is not a valid directory name", name)
	}
	return filepath.Join(root, seg), nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// Manager writes photo bodies to disk and keeps running totals
type Manager struct {
	savedBytes int64
}

// NewManager creates a new storage manager
func NewManager() *Manager {
	return &Manager{}
}

// Exists reports whether path is an existing non-empty regular file
func (m *Manager) Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// Save streams r into path. The parent directory is created if needed. On
// any failure the partial file is removed and an io error is returned.
func (m *Manager) Save(r io.Reader, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, errs.Wrap(errs.ErrorTypeIO, err, "create directory for %s", path)
	}

	tempFile := path + PartSuffix
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeIO, err, "create temporary file %s", tempFile)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return n, errs.Wrap(errs.ErrorTypeIO, err, "write %s", path)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return n, errs.Wrap(errs.ErrorTypeIO, closeErr, "close %s", tempFile)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return n, errs.Wrap(errs.ErrorTypeIO, err, "rename %s", tempFile)
	}

	atomic.AddInt64(&m.savedBytes, n)
	return n, nil
}

// SavedBytes returns the number of bytes written by this manager
func (m *Manager) SavedBytes() int64 {
	return atomic.LoadInt64(&m.savedBytes)
}
