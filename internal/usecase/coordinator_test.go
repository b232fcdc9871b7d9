package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"SelfLetter/internal/classify"
	"SelfLetter/internal/domain"
	"SelfLetter/internal/infrastructure/markdown"
	"SelfLetter/internal/ports"
)

type fakeQueue struct {
	mu        sync.Mutex
	items     []domain.InboxItem
	listErr   error
	updateErr error
	updates   map[string]domain.ItemUpdate
	limit     int
}

func (q *fakeQueue) Pending(_ context.Context, limit int) ([]domain.InboxItem, error) {
	q.limit = limit
	if q.listErr != nil {
		return nil, q.listErr
	}
	return q.items, nil
}

func (q *fakeQueue) Update(_ context.Context, id string, update domain.ItemUpdate) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.updates == nil {
		q.updates = map[string]domain.ItemUpdate{}
	}
	q.updates[id] = update
	return q.updateErr
}

type fakeExtractor struct {
	fail map[string]error
}

func (e *fakeExtractor) Extract(_ context.Context, class domain.Classification, rawURL string) (domain.ExtractedContent, error) {
	if err := e.fail[rawURL]; err != nil {
		return domain.ExtractedContent{}, err
	}
	return domain.ExtractedContent{
		SourceKind:   class.Kind,
		CanonicalURL: rawURL,
		Text:         "body of " + rawURL,
		Title:        "Title of " + rawURL,
		Language:     "en",
	}, nil
}

type fakeSummarizer struct {
	err      error
	requests []ports.SummaryRequest
}

func (s *fakeSummarizer) Summarize(_ context.Context, req ports.SummaryRequest) (string, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	return "summary of " + req.URL, nil
}

type fakeSink struct {
	err   error
	saved []domain.SummaryResult
}

func (s *fakeSink) Save(_ context.Context, result domain.SummaryResult) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, result)
	return nil
}

type fakeSeen struct {
	urls map[string]bool
}

func (s *fakeSeen) Seen(_ context.Context, u string) (bool, error) {
	return s.urls[u], nil
}

func (s *fakeSeen) Remember(_ context.Context, u string) error {
	if s.urls == nil {
		s.urls = map[string]bool{}
	}
	s.urls[u] = true
	return nil
}

type fakeNewsletter struct {
	calls int
}

func (n *fakeNewsletter) Combine(context.Context, time.Time) (string, error) {
	n.calls++
	return "newsletter/daily.md", nil
}

type fakeMailer struct {
	paths []string
	err   error
}

func (m *fakeMailer) SendNewsletter(_ context.Context, _ time.Time, path string) error {
	m.paths = append(m.paths, path)
	return m.err
}

type fakeNotifier struct {
	digests []string
}

func (n *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	n.digests = append(n.digests, digest)
	return nil
}

func newTestCoordinator(q *fakeQueue, ex *fakeExtractor, sum *fakeSummarizer, sink *fakeSink, seen ports.SeenIndex) *Coordinator {
	c := NewCoordinator(CoordinatorConfig{MaxRetries: 3}, CoordinatorDeps{
		Queue:      q,
		Classifier: classify.Classifier{},
		Extractor:  ex,
		Summarizer: sum,
		Sink:       sink,
		Seen:       seen,
	})
	c.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return c
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{}
	for i, u := range []string{"https://a.dev/1", "https://a.dev/2", "https://a.dev/3", "https://a.dev/4", "https://a.dev/5"} {
		q.items = append(q.items, domain.InboxItem{ID: string(rune('1' + i)), URL: u})
	}
	ex := &fakeExtractor{fail: map[string]error{"https://a.dev/3": errors.New("http 503")}}
	sink := &fakeSink{}
	news := &fakeNewsletter{}
	notify := &fakeNotifier{}
	mailer := &fakeMailer{err: errors.New("smtp down")}

	c := newTestCoordinator(q, ex, &fakeSummarizer{}, sink, &fakeSeen{})
	c.newsletter = news
	c.mailer = mailer
	c.notifier = notify

	report, err := c.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if report.Attempted != 5 || report.Done != 4 || report.Retryable != 1 || report.Terminal != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(sink.saved) != 4 {
		t.Fatalf("expected 4 saved results, got %d", len(sink.saved))
	}

	failed := q.updates["3"]
	if failed.Processed || failed.RetryCount != 1 || !strings.Contains(failed.LastError, "http 503") {
		t.Fatalf("unexpected update for failed item: %+v", failed)
	}
	if done := q.updates["5"]; !done.Processed || done.LastError != "" {
		t.Fatalf("unexpected update for item after failure: %+v", done)
	}
	if news.calls != 1 || len(notify.digests) != 1 {
		t.Fatalf("post-run hooks: newsletter=%d digests=%d", news.calls, len(notify.digests))
	}
	if len(mailer.paths) != 1 || mailer.paths[0] != "newsletter/daily.md" {
		t.Fatalf("newsletter not mailed: %v", mailer.paths)
	}
	if q.limit != defaultBatchSize {
		t.Fatalf("expected default batch size, got %d", q.limit)
	}
}

func TestRunBatchRetryExhaustion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		retryCount    int
		wantProcessed bool
		wantRetry     int
		wantState     domain.ItemState
		wantError     string
	}{
		{"first failure", 0, false, 1, domain.StateFailedRetryable, "summarization: rate limited"},
		{"last allowed attempt", 2, true, 3, domain.StateFailedTerminal, "summarization: rate limited"},
		{"already exhausted", 3, true, 3, domain.StateFailedTerminal, "max retries (3) exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := &fakeQueue{items: []domain.InboxItem{{ID: "x", URL: "https://a.dev/x", RetryCount: tt.retryCount}}}
			c := newTestCoordinator(q, &fakeExtractor{}, &fakeSummarizer{err: errors.New("rate limited")}, &fakeSink{}, nil)

			report, err := c.RunBatch(context.Background())
			if err != nil {
				t.Fatalf("RunBatch: %v", err)
			}
			got := q.updates["x"]
			if got.Processed != tt.wantProcessed || got.RetryCount != tt.wantRetry {
				t.Fatalf("update = %+v", got)
			}
			if report.Outcomes[0].State != tt.wantState {
				t.Fatalf("state = %s, want %s", report.Outcomes[0].State, tt.wantState)
			}
			if got.LastError != tt.wantError {
				t.Fatalf("LastError = %q, want %q", got.LastError, tt.wantError)
			}
		})
	}
}

func TestRunBatchMissingURLIsTerminal(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{items: []domain.InboxItem{{ID: "blank", URL: "  "}}}
	sum := &fakeSummarizer{}
	c := newTestCoordinator(q, &fakeExtractor{}, sum, &fakeSink{}, nil)
	c.cfg.URLProperty = "Link"

	report, err := c.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	got := q.updates["blank"]
	if !got.Processed || got.RetryCount != 0 || !strings.Contains(got.LastError, "missing URL property 'Link'") {
		t.Fatalf("unexpected update: %+v", got)
	}
	if report.Terminal != 1 || len(sum.requests) != 0 {
		t.Fatalf("unexpected report %+v, summarizer calls %d", report, len(sum.requests))
	}
}

func TestRunBatchSkipsDuplicates(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{items: []domain.InboxItem{{ID: "dup", URL: "https://a.dev/old", RetryCount: 1}}}
	seen := &fakeSeen{urls: map[string]bool{"https://a.dev/old": true}}
	sum := &fakeSummarizer{}
	news := &fakeNewsletter{}
	c := newTestCoordinator(q, &fakeExtractor{}, sum, &fakeSink{}, seen)
	c.newsletter = news

	report, err := c.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if report.Done != 1 || report.Skipped != 1 || len(report.Results) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if got := q.updates["dup"]; !got.Processed || got.LastError != "" || got.RetryCount != 1 {
		t.Fatalf("unexpected update: %+v", got)
	}
	if len(sum.requests) != 0 || news.calls != 0 {
		t.Fatalf("duplicate must not be summarized or trigger the newsletter")
	}
}

func TestRunBatchRemembersURLsAndUsesItemTitle(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{items: []domain.InboxItem{{ID: "1", URL: "https://a.dev/post", Title: "My title"}}}
	seen := &fakeSeen{}
	sum := &fakeSummarizer{}
	sink := &fakeSink{}
	c := newTestCoordinator(q, &fakeExtractor{}, sum, sink, seen)

	if _, err := c.RunBatch(context.Background()); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if !seen.urls["https://a.dev/post"] {
		t.Fatalf("url not remembered")
	}
	if sum.requests[0].Title != "My title" {
		t.Fatalf("title = %q", sum.requests[0].Title)
	}
	res := sink.saved[0]
	if res.SummaryText != "summary of https://a.dev/post" || res.SourceKind != domain.KindBlog || res.Language != "en" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunBatchSinkFailureIsRetryable(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{items: []domain.InboxItem{{ID: "1", URL: "https://a.dev/post"}}}
	seen := &fakeSeen{}
	c := newTestCoordinator(q, &fakeExtractor{}, &fakeSummarizer{}, &fakeSink{err: errors.New("disk full")}, seen)

	report, err := c.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if report.Retryable != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !strings.HasPrefix(q.updates["1"].LastError, "persistence:") {
		t.Fatalf("unexpected error: %q", q.updates["1"].LastError)
	}
	if seen.urls["https://a.dev/post"] {
		t.Fatalf("failed item must not be remembered")
	}
}

func TestRunBatchRetriesPartialFanOutUntilEverySinkSaved(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	q := &fakeQueue{items: []domain.InboxItem{{ID: "1", URL: "https://a.dev/my_post"}}}
	remote := &fakeSink{err: errors.New("notion 502")}
	fan := NewFanOutSink(
		NamedSink{Name: "markdown", Sink: markdown.NewSink(dir, time.UTC, nil)},
		NamedSink{Name: "notion", Sink: remote},
	)

	first := newTestCoordinator(q, &fakeExtractor{}, &fakeSummarizer{}, nil, markdown.NewSeenIndex(dir))
	first.sink = fan
	report, err := first.RunBatch(ctx)
	if err != nil {
		t.Fatalf("first RunBatch: %v", err)
	}
	if report.Retryable != 1 || q.updates["1"].Processed {
		t.Fatalf("first run: report %+v update %+v", report, q.updates["1"])
	}

	q.items[0].RetryCount = q.updates["1"].RetryCount
	q.items[0].LastError = q.updates["1"].LastError
	remote.err = nil

	second := newTestCoordinator(q, &fakeExtractor{}, &fakeSummarizer{}, nil, markdown.NewSeenIndex(dir))
	second.sink = fan
	report, err = second.RunBatch(ctx)
	if err != nil {
		t.Fatalf("second RunBatch: %v", err)
	}
	if report.Done != 1 || report.Skipped != 0 {
		t.Fatalf("second run must summarize again, got %+v", report)
	}
	if len(remote.saved) != 1 {
		t.Fatalf("notion sink never received the summary")
	}
	if got := q.updates["1"]; !got.Processed || got.LastError != "" {
		t.Fatalf("unexpected final update: %+v", got)
	}

	third := newTestCoordinator(q, &fakeExtractor{}, &fakeSummarizer{}, nil, markdown.NewSeenIndex(dir))
	third.sink = fan
	report, err = third.RunBatch(ctx)
	if err != nil {
		t.Fatalf("third RunBatch: %v", err)
	}
	if report.Skipped != 1 {
		t.Fatalf("completed url must be a duplicate on the next run, got %+v", report)
	}
}

func TestRunBatchCountsUpdateFailures(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{
		items:     []domain.InboxItem{{ID: "1", URL: "https://a.dev/1"}, {ID: "2", URL: "https://a.dev/2"}},
		updateErr: errors.New("conflict"),
	}
	c := newTestCoordinator(q, &fakeExtractor{}, &fakeSummarizer{}, &fakeSink{}, nil)

	report, err := c.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if report.Attempted != 2 || report.UpdateFailures != 2 || report.Done != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestRunBatchListFailureAborts(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{listErr: errors.New("unauthorized")}
	c := newTestCoordinator(q, &fakeExtractor{}, &fakeSummarizer{}, &fakeSink{}, nil)

	report, err := c.RunBatch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("expected list error, got %v", err)
	}
	if report.Attempted != 0 {
		t.Fatalf("nothing should be attempted: %+v", report)
	}
}

func TestRunBatchTruncatesErrors(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{items: []domain.InboxItem{{ID: "1", URL: "https://a.dev/1"}}}
	long := errors.New(strings.Repeat("é", 50))
	c := newTestCoordinator(q, &fakeExtractor{fail: map[string]error{"https://a.dev/1": long}}, &fakeSummarizer{}, &fakeSink{}, nil)
	c.cfg.MaxErrorLength = 20

	if _, err := c.RunBatch(context.Background()); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if got := []rune(q.updates["1"].LastError); len(got) != 20 {
		t.Fatalf("expected 20 runes, got %d", len(got))
	}
}

func TestFanOutSinkStopsAtFirstError(t *testing.T) {
	t.Parallel()

	first := &fakeSink{}
	broken := &fakeSink{err: errors.New("boom")}
	last := &fakeSink{}
	fan := NewFanOutSink(
		NamedSink{Name: "markdown", Sink: first},
		NamedSink{Name: "notion", Sink: broken},
		NamedSink{Name: "skip", Sink: nil},
		NamedSink{Name: "sql", Sink: last},
	)
	if fan.Len() != 3 {
		t.Fatalf("Len = %d", fan.Len())
	}

	err := fan.Save(context.Background(), domain.SummaryResult{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "notion sink") {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.saved) != 1 || len(last.saved) != 0 {
		t.Fatalf("first=%d last=%d", len(first.saved), len(last.saved))
	}
}

func TestBuildDigestEscapesTitlesAndURLs(t *testing.T) {
	t.Parallel()

	digest := BuildDigest(Report{
		Skipped:  1,
		Terminal: 2,
		Results: []domain.SummaryResult{
			{Title: "snake_case <b>bold</b> & *stars*", SourceKind: domain.KindBlog, SourceURL: "https://example.com/my_post?a=1&b=\"x\""},
		},
	})
	if !strings.Contains(digest, `<a href="https://example.com/my_post?a=1&amp;b=&#34;x&#34;">snake_case &lt;b&gt;bold&lt;/b&gt; &amp; *stars*</a> (blog)`) {
		t.Fatalf("link not escaped: %s", digest)
	}
	if !strings.Contains(digest, "1 summarized, 1 duplicates, 2 failed") {
		t.Fatalf("unexpected header: %s", digest)
	}
}
