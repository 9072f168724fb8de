package blobstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Local stores blobs as files in a directory. URLs are formed from
// BaseURL, which should be where Handler is mounted.
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates the directory if needed.
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create %s: %w", dir, err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes data under a fresh random name.
func (l *Local) Put(ctx context.Context, name, mimeType string, data []byte) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.New().String() + extensionFor(name, mimeType)
	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("blobstore: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("blobstore: write %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("blobstore: close %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, id)); err != nil {
		return nil, fmt.Errorf("blobstore: store %s: %w", id, err)
	}

	return &Object{
		PublicID:     id,
		URL:          l.baseURL + "/" + id,
		Bytes:        int64(len(data)),
		ResourceType: resourceType(mimeType),
	}, nil
}

// Handler serves stored blobs. Mount it under the path BaseURL points to,
// with the prefix stripped.
func (l *Local) Handler() http.Handler {
	return http.FileServer(http.Dir(l.dir))
}

// Sweep deletes blobs older than maxAge and returns how many were removed.
func (l *Local) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return 0, fmt.Errorf("blobstore: list %s: %w", l.dir, err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(l.dir, e.Name())); err != nil {
			slog.Warn("failed to remove expired blob", "name", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
