package markdown

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"SelfLetter/internal/domain"
)

var fixedDay = time.Date(2026, 5, 6, 23, 30, 0, 0, time.UTC)

func result(title, url string, kind domain.SourceKind) domain.SummaryResult {
	return domain.SummaryResult{
		Title:       title,
		SourceURL:   url,
		SourceKind:  kind,
		SummaryText: "## What did the author accomplish ?\n\n- Things\n",
		Language:    "en",
		GeneratedAt: fixedDay,
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Attention Is All You Need!", "attention-is-all-you-need"},
		{"  --Hello__World--  ", "hello-world"},
		{"C++ & Go: a   comparison", "c-go-a-comparison"},
		{"Über Größe", "über-größe"},
		{"???", "untitled"},
		{"", "untitled"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	t.Parallel()

	doc, err := Render(result(`Quotes "and": colons`, "https://example.com/a", domain.KindBlog))
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !strings.HasPrefix(string(doc), "---\ntitle: ") {
		t.Fatalf("unexpected document start: %q", doc)
	}

	fm, body, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if fm.Title != `Quotes "and": colons` || fm.SourceURL != "https://example.com/a" || fm.Type != "blog" || fm.Language != "en" {
		t.Fatalf("unexpected front matter: %+v", fm)
	}
	if fm.Date != "2026-05-06T23:30:00Z" {
		t.Fatalf("unexpected date: %s", fm.Date)
	}
	if !strings.HasPrefix(body, "## What did the author accomplish ?") {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestSinkWritesTreeWithCollisionSuffix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink := NewSink(dir, time.UTC, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := sink.Save(ctx, result("Same Title", "https://example.com/x", domain.KindArxiv)); err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
	}

	for _, name := range []string{"same-title.md", "same-title-1.md", "same-title-2.md"} {
		if _, err := os.Stat(filepath.Join(dir, "2026-05-06", "arxiv", name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestSinkUsesLocationForDay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	loc := time.FixedZone("UTC+2", 2*60*60)
	if err := NewSink(dir, loc, nil).Save(context.Background(), result("", "https://example.com/untitled", domain.KindBlog)); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "2026-05-07", "blog", "httpsexamplecomuntitled.md")); err != nil {
		t.Fatalf("expected file in next day folder: %v", err)
	}
}

func TestSeenIndexIgnoresSummaryFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	if err := NewSink(dir, time.UTC, nil).Save(ctx, result("Old", "https://example.com/old", domain.KindBlog)); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	index := NewSeenIndex(dir)
	if seen, err := index.Seen(ctx, "https://example.com/old"); err != nil || seen {
		t.Fatalf("a written summary alone must not count as seen, got %v, %v", seen, err)
	}
}

func TestSeenIndexPersistsRememberedURLs(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	ctx := context.Background()

	index := NewSeenIndex(dir)
	if seen, err := index.Seen(ctx, "https://arxiv.org/abs/2501.00001"); err != nil || seen {
		t.Fatalf("missing ledger: got %v, %v", seen, err)
	}
	for _, u := range []string{"https://arxiv.org/abs/2501.00001", "https://arxiv.org/html/2501.00001", "https://arxiv.org/abs/2501.00001", ""} {
		if err := index.Remember(ctx, u); err != nil {
			t.Fatalf("Remember(%q) error: %v", u, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(dir, SeenFileName))
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if got := strings.Count(string(raw), "\n"); got != 2 {
		t.Fatalf("expected 2 ledger lines, got %d:\n%s", got, raw)
	}

	fresh := NewSeenIndex(dir)
	for _, u := range []string{"https://arxiv.org/abs/2501.00001", "https://arxiv.org/html/2501.00001"} {
		if seen, err := fresh.Seen(ctx, u); err != nil || !seen {
			t.Fatalf("expected %s seen after reload, got %v, %v", u, seen, err)
		}
	}
	if seen, _ := fresh.Seen(ctx, "https://example.com/new"); seen {
		t.Fatalf("unknown url must not be seen")
	}
}

func TestCombinerGroupsByKind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	sink := NewSink(dir, time.UTC, nil)
	for _, r := range []domain.SummaryResult{
		result("A blog post", "https://blog.example/a", domain.KindBlog),
		result("A paper", "https://arxiv.org/abs/2501.00001", domain.KindArxiv),
		result("Another paper", "https://arxiv.org/abs/2501.00002", domain.KindArxiv),
	} {
		if err := sink.Save(ctx, r); err != nil {
			t.Fatalf("Save error: %v", err)
		}
	}

	combiner := NewCombiner(dir, nil)
	combiner.now = func() time.Time { return fixedDay }
	path, err := combiner.Combine(ctx, fixedDay)
	if err != nil {
		t.Fatalf("Combine error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read newsletter: %v", err)
	}
	text := string(raw)

	for _, want := range []string{
		"# Daily Newsletter - 2026-05-06",
		"**Total items: 3**",
		"- [Arxiv](#arxiv) (2 items)",
		"### 2. Another paper",
		"**Source:** [https://blog.example/a](https://blog.example/a)",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("newsletter missing %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "## Arxiv") > strings.Index(text, "## Blog") {
		t.Fatalf("arxiv section must precede blog section")
	}

	if _, err := combiner.Combine(ctx, fixedDay.AddDate(0, 0, 1)); !errors.Is(err, ErrNoSummaries) {
		t.Fatalf("expected ErrNoSummaries, got %v", err)
	}
}
