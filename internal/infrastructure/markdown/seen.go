package markdown

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"SelfLetter/internal/ports"
)

// SeenFileName is the ledger of URLs whose item completed every sink.
const SeenFileName = ".seen-urls"

// SeenIndex answers duplicate-URL lookups from a ledger file in the output
// tree. Only Remember appends to it, so summary files left behind by a
// partially failed save never count as seen.
type SeenIndex struct {
	path string

	mu     sync.Mutex
	loaded bool
	urls   map[string]struct{}
}

var _ ports.SeenIndex = (*SeenIndex)(nil)

// NewSeenIndex reads dir/.seen-urls lazily on the first lookup.
func NewSeenIndex(dir string) *SeenIndex {
	return &SeenIndex{path: filepath.Join(dir, SeenFileName)}
}

// Seen reports whether the URL was remembered by a completed item.
func (s *SeenIndex) Seen(_ context.Context, sourceURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return false, err
	}
	_, ok := s.urls[strings.TrimSpace(sourceURL)]
	return ok, nil
}

// Remember appends the URL to the ledger.
func (s *SeenIndex) Remember(_ context.Context, sourceURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil
	}
	if _, ok := s.urls[sourceURL]; ok {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	if _, err := f.WriteString(sourceURL + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}

	s.urls[sourceURL] = struct{}{}
	return nil
}

func (s *SeenIndex) load() error {
	if s.loaded {
		return nil
	}
	urls := map[string]struct{}{}

	f, err := os.Open(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("open %s: %w", s.path, err)
	default:
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				urls[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read %s: %w", s.path, err)
		}
	}

	s.urls = urls
	s.loaded = true
	return nil
}
