package markdown

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"SelfLetter/internal/domain"
	"SelfLetter/internal/ports"
)

// ErrNoSummaries means the requested day has nothing to combine.
var ErrNoSummaries = errors.New("no summaries for day")

var kindOrder = []string{
	string(domain.KindArxiv),
	string(domain.KindHuggingFace),
	string(domain.KindVideo),
	string(domain.KindBlog),
}

// Combiner merges one day's summary files into daily-newsletter.md.
type Combiner struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.NewsletterBuilder = (*Combiner)(nil)

// NewCombiner reads from the same tree the Sink writes.
func NewCombiner(dir string, log *slog.Logger) *Combiner {
	return &Combiner{dir: dir, now: time.Now, logger: log}
}

type entry struct {
	FrontMatter
	body string
}

// Combine writes the newsletter for day and returns its path.
func (c *Combiner) Combine(_ context.Context, day time.Time) (string, error) {
	date := day.Format(dayLayout)
	dateDir := filepath.Join(c.dir, date)

	grouped, err := c.collect(dateDir)
	if err != nil {
		return "", err
	}
	if len(grouped) == 0 {
		return "", fmt.Errorf("%w %s", ErrNoSummaries, date)
	}

	target := filepath.Join(dateDir, newsletterName)
	if err := os.WriteFile(target, []byte(c.render(date, grouped)), 0o644); err != nil {
		return "", fmt.Errorf("write newsletter: %w", err)
	}
	if c.logger != nil {
		c.logger.Info("newsletter combined", "path", target)
	}
	return target, nil
}

func (c *Combiner) collect(dateDir string) (map[string][]entry, error) {
	kinds, err := os.ReadDir(dateDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dateDir, err)
	}

	grouped := map[string][]entry{}
	for _, kind := range kinds {
		if !kind.IsDir() {
			continue
		}
		files, err := filepath.Glob(filepath.Join(dateDir, kind.Name(), "*.md"))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind.Name(), err)
		}
		sort.Strings(files)

		for _, file := range files {
			raw, err := os.ReadFile(file)
			if err != nil {
				c.warn("cannot read summary", "path", file, "error", err)
				continue
			}
			fm, body, err := Parse(raw)
			if err != nil {
				c.warn("cannot parse summary", "path", file, "error", err)
				continue
			}
			if fm.Title == "" {
				fm.Title = "Untitled"
			}
			grouped[kind.Name()] = append(grouped[kind.Name()], entry{FrontMatter: fm, body: body})
		}
	}
	return grouped, nil
}

func (c *Combiner) render(date string, grouped map[string][]entry) string {
	var b strings.Builder
	total := 0
	for _, entries := range grouped {
		total += len(entries)
	}

	fmt.Fprintf(&b, "# Daily Newsletter - %s\n\n", date)
	fmt.Fprintf(&b, "*Generated on %s*\n\n", c.now().UTC().Format("2006-01-02 15:04:05 UTC"))
	b.WriteString("## Table of Contents\n\n")
	fmt.Fprintf(&b, "**Total items: %d**\n\n", total)

	ordered := orderKinds(grouped)
	for _, kind := range ordered {
		fmt.Fprintf(&b, "- [%s](#%s) (%d items)\n", heading(kind), kind, len(grouped[kind]))
	}
	b.WriteString("\n---\n\n")

	for _, kind := range ordered {
		entries := grouped[kind]
		fmt.Fprintf(&b, "## %s\n\n*%d item(s)*\n\n", heading(kind), len(entries))
		for i, e := range entries {
			fmt.Fprintf(&b, "### %d. %s\n\n", i+1, e.Title)
			fmt.Fprintf(&b, "**Source:** [%s](%s)\n\n", e.SourceURL, e.SourceURL)
			b.WriteString(e.body)
			b.WriteString("\n\n---\n\n")
		}
	}

	fmt.Fprintf(&b, "*End of newsletter for %s*\n", date)
	return b.String()
}

func orderKinds(grouped map[string][]entry) []string {
	var ordered []string
	known := map[string]bool{}
	for _, k := range kindOrder {
		known[k] = true
		if _, ok := grouped[k]; ok {
			ordered = append(ordered, k)
		}
	}
	var rest []string
	for k := range grouped {
		if !known[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

func heading(kind string) string {
	if kind == "" {
		return kind
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}

func (c *Combiner) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
