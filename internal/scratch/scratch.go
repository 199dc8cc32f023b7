// Package scratch manages the temporary directory movies are downloaded
// into.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const partSuffix = ".part"

// Dir is a scratch directory. Files are named with a timestamp and a
// random suffix so concurrent downloads never collide.
type Dir struct {
	path string
}

// New creates the directory if needed.
func New(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string { return d.path }

// Name returns a fresh file name keeping the extension of original.
func (d *Dir) Name(prefix, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("%s-%s-%s%s", prefix, time.Now().Format("20060102-150405"), uuid.NewString()[:8], ext)
}

// Reserve returns a temporary path to write to and the final path it is
// committed to.
func (d *Dir) Reserve(original string) (partPath, finalPath string, err error) {
	if _, err := os.Stat(d.path); err != nil {
		if err := os.MkdirAll(d.path, 0o755); err != nil {
			return "", "", fmt.Errorf("create scratch dir: %w", err)
		}
	}
	finalPath = filepath.Join(d.path, d.Name("movie", original))
	return finalPath + partSuffix, finalPath, nil
}

// Commit moves a finished download to its final path.
func (d *Dir) Commit(partPath, finalPath string) error {
	if err := os.Rename(partPath, finalPath); err != nil {
		return fmt.Errorf("commit %s: %w", filepath.Base(finalPath), err)
	}
	return nil
}

// Discard removes a partial download.
func (d *Dir) Discard(partPath string) {
	_ = os.Remove(partPath)
}

// WriteFile atomically writes data under a fresh name derived from
// original and returns its path.
func (d *Dir) WriteFile(prefix, original string, data []byte) (string, error) {
	path := filepath.Join(d.path, d.Name(prefix, original))
	if err := writeAtomic(path, data); err != nil {
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

// Cleanup removes regular files older than maxAge, including abandoned
// partial downloads, and returns how many were removed.
func (d *Dir) Cleanup(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return 0, fmt.Errorf("read scratch dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(d.path, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
