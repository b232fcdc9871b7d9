package markdown

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"SelfLetter/internal/domain"
	"SelfLetter/internal/ports"
)

// Sink writes one Markdown file per summary under a date/kind tree.
type Sink struct {
	dir    string
	loc    *time.Location
	logger *slog.Logger
}

var _ ports.SummarySink = (*Sink)(nil)

// NewSink roots the output tree at dir; days are computed in loc.
func NewSink(dir string, loc *time.Location, log *slog.Logger) *Sink {
	if loc == nil {
		loc = time.UTC
	}
	return &Sink{dir: dir, loc: loc, logger: log}
}

// Save writes the summary, appending -N to the slug on collision.
func (s *Sink) Save(_ context.Context, result domain.SummaryResult) error {
	doc, err := Render(result)
	if err != nil {
		return err
	}

	rel := filepath.FromSlash(RelativePath(result, s.loc))
	folder := filepath.Join(s.dir, filepath.Dir(rel))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", folder, err)
	}

	base := strings.TrimSuffix(filepath.Base(rel), ".md")
	name := base + ".md"
	for n := 1; ; n++ {
		target := filepath.Join(folder, name)
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			name = fmt.Sprintf("%s-%d.md", base, n)
			continue
		}
		if err != nil {
			return fmt.Errorf("create %s: %w", target, err)
		}

		_, writeErr := f.Write(doc)
		closeErr := f.Close()
		if writeErr != nil {
			return fmt.Errorf("write %s: %w", target, writeErr)
		}
		if closeErr != nil {
			return fmt.Errorf("close %s: %w", target, closeErr)
		}
		if s.logger != nil {
			s.logger.Info("summary saved", "path", target)
		}
		return nil
	}
}
