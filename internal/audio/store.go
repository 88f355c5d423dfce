// Package audio handles transient audio artifacts: a local file store keyed
// by conversation identity, plus adapters delegating to the external
// speech-to-text and text-to-speech provider.
package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Store owns a directory of transient audio artifacts. The directory is
// created lazily before every write; same-named files are overwritten
// (last writer wins, callers correlate names by conversation id).
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a Store rooted at dir. The directory is not created
// until the first Persist call.
func NewStore(dir string) *Store {
	return &Store{dir: dir, logger: slog.Default()}
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Persist writes r to a file named name inside the store directory and
// returns the full path. Any directory component in name is discarded so
// uploaded filenames cannot escape the store.
func (s *Store) Persist(name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating audio directory %q: %w", s.dir, err)
	}

	path := filepath.Join(s.dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating audio file %q: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close() //nolint:errcheck
		return "", fmt.Errorf("writing audio file %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing audio file %q: %w", path, err)
	}
	return path, nil
}

// Remove deletes an artifact. Best-effort: a missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing audio file %q: %w", path, err)
	}
	return nil
}

// Sweep removes artifacts whose modification time is older than maxAge and
// returns how many were removed. A missing store directory is a no-op.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading audio directory %q: %w", s.dir, err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to sweep audio artifact", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Janitor sweeps expired artifacts every interval until ctx is done. It
// returns nil on context cancellation so it can run under an errgroup next
// to the HTTP server.
func (s *Store) Janitor(ctx context.Context, interval, maxAge time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := s.Sweep(maxAge)
			if err != nil {
				s.logger.Warn("audio sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("swept expired audio artifacts", "removed", removed)
			}
		}
	}
}
