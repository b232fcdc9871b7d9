package ports

import (
	"context"
	"time"

	"SelfLetter/internal/domain"
)

// InboxQueue is the external record store holding submitted links.
type InboxQueue interface {
	// Pending returns up to limit unprocessed items in store-defined order.
	Pending(ctx context.Context, limit int) ([]domain.InboxItem, error)
	Update(ctx context.Context, id string, update domain.ItemUpdate) error
}

// ContentExtractor resolves a classified link to clean text.
type ContentExtractor interface {
	Extract(ctx context.Context, class domain.Classification, rawURL string) (domain.ExtractedContent, error)
}

// SummaryRequest is the input for a single completion call.
type SummaryRequest struct {
	Title string
	URL   string
	Text  string
}

// Summarizer produces prose from extracted content.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// SummarySink persists completed summaries (files, Notion, SQL, S3).
type SummarySink interface {
	Save(ctx context.Context, result domain.SummaryResult) error
}

// SeenIndex remembers source URLs that already produced a summary.
type SeenIndex interface {
	Seen(ctx context.Context, sourceURL string) (bool, error)
	Remember(ctx context.Context, sourceURL string) error
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// NewsletterBuilder combines the summaries written for one day.
type NewsletterBuilder interface {
	Combine(ctx context.Context, day time.Time) (string, error)
}

// NewsletterMailer delivers a combined newsletter file.
type NewsletterMailer interface {
	SendNewsletter(ctx context.Context, day time.Time, path string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
