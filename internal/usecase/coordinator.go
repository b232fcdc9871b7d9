package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"SelfLetter/internal/classify"
	"SelfLetter/internal/domain"
	"SelfLetter/internal/ports"
)

const (
	defaultBatchSize      = 100
	defaultMaxRetries     = 3
	defaultMaxErrorLength = 2000
	defaultURLProperty    = "URL"
)

// CoordinatorConfig bounds a single run.
type CoordinatorConfig struct {
	BatchSize      int
	MaxRetries     int
	MaxErrorLength int
	// URLProperty names the queue field reported when an item has no URL.
	URLProperty string
	Location    *time.Location
}

// CoordinatorDeps wires all driven adapters into the queue coordinator.
type CoordinatorDeps struct {
	Queue      ports.InboxQueue
	Classifier classify.Classifier
	Extractor  ports.ContentExtractor
	Summarizer ports.Summarizer
	Sink       ports.SummarySink
	Seen       ports.SeenIndex
	Newsletter ports.NewsletterBuilder
	Mailer     ports.NewsletterMailer
	Notifier   ports.Notifier
	Logger     *slog.Logger
}

// ItemOutcome is the final state of one item in a run.
type ItemOutcome struct {
	ItemID    string
	URL       string
	State     domain.ItemState
	Error     string
	Duplicate bool
}

// Report summarizes one batch.
type Report struct {
	Attempted      int
	Done           int
	Skipped        int
	Retryable      int
	Terminal       int
	UpdateFailures int
	Results        []domain.SummaryResult
	Outcomes       []ItemOutcome
}

// Coordinator drains the inbox one item at a time.
type Coordinator struct {
	cfg        CoordinatorConfig
	queue      ports.InboxQueue
	classifier classify.Classifier
	extractor  ports.ContentExtractor
	summarizer ports.Summarizer
	sink       ports.SummarySink
	seen       ports.SeenIndex
	newsletter ports.NewsletterBuilder
	mailer     ports.NewsletterMailer
	notifier   ports.Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewCoordinator constructs the orchestration component.
func NewCoordinator(cfg CoordinatorConfig, deps CoordinatorDeps) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MaxErrorLength <= 0 {
		cfg.MaxErrorLength = defaultMaxErrorLength
	}
	if cfg.URLProperty == "" {
		cfg.URLProperty = defaultURLProperty
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Coordinator{
		cfg:        cfg,
		queue:      deps.Queue,
		classifier: deps.Classifier,
		extractor:  deps.Extractor,
		summarizer: deps.Summarizer,
		sink:       deps.Sink,
		seen:       deps.Seen,
		newsletter: deps.Newsletter,
		mailer:     deps.Mailer,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// RunBatch processes one bounded batch of pending items. Only a failure to
// list the queue (or a cancelled context) is returned as an error; item
// failures are recorded on the items and in the report.
func (c *Coordinator) RunBatch(ctx context.Context) (Report, error) {
	var report Report
	if c.queue == nil {
		return report, errors.New("coordinator has no queue")
	}

	items, err := c.queue.Pending(ctx, c.cfg.BatchSize)
	if err != nil {
		return report, fmt.Errorf("list pending: %w", err)
	}
	c.info("batch started", "pending", len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			c.info("batch interrupted", "attempted", report.Attempted)
			return report, err
		}

		report.Attempted++
		outcome, result, update := c.process(ctx, item)

		if err := c.queue.Update(ctx, item.ID, update); err != nil {
			report.UpdateFailures++
			c.error("queue update failed", "item", item.ID, "error", err)
		}

		switch outcome.State {
		case domain.StateDone:
			report.Done++
			if outcome.Duplicate {
				report.Skipped++
			}
		case domain.StateFailedRetryable:
			report.Retryable++
		case domain.StateFailedTerminal:
			report.Terminal++
		}
		if result != nil {
			report.Results = append(report.Results, *result)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	c.info("batch finished",
		"attempted", report.Attempted,
		"done", report.Done,
		"skipped", report.Skipped,
		"retryable", report.Retryable,
		"terminal", report.Terminal,
		"update_failures", report.UpdateFailures,
	)

	if len(report.Results) > 0 {
		c.afterRun(ctx, report)
	}
	return report, nil
}

// process drives one item to a final state and returns the update to commit.
func (c *Coordinator) process(ctx context.Context, item domain.InboxItem) (ItemOutcome, *domain.SummaryResult, domain.ItemUpdate) {
	rawURL := strings.TrimSpace(item.URL)
	outcome := ItemOutcome{ItemID: item.ID, URL: rawURL, State: domain.StatePending}

	if rawURL == "" {
		return c.fail(outcome, item, domain.NewMissingInputError(c.cfg.URLProperty))
	}

	if item.RetryCount >= c.cfg.MaxRetries {
		outcome.State = domain.StateFailedTerminal
		outcome.Error = fmt.Sprintf("max retries (%d) exceeded", c.cfg.MaxRetries)
		c.warn("item terminal", "item", item.ID, "url", rawURL, "retries", item.RetryCount)
		return outcome, nil, domain.ItemUpdate{Processed: true, LastError: outcome.Error, RetryCount: item.RetryCount}
	}

	if c.seen != nil {
		seen, err := c.seen.Seen(ctx, rawURL)
		if err != nil {
			c.warn("seen index lookup failed", "url", rawURL, "error", err)
		} else if seen {
			c.info("duplicate url, skipping", "item", item.ID, "url", rawURL)
			outcome.State = domain.StateDone
			outcome.Duplicate = true
			return outcome, nil, domain.ItemUpdate{Processed: true, RetryCount: item.RetryCount}
		}
	}

	class := c.classifier.Classify(rawURL)

	outcome.State = domain.StateExtracting
	c.debug("item state", "item", item.ID, "state", outcome.State, "kind", class.Kind)
	if c.extractor == nil {
		return c.fail(outcome, item, domain.NewExtractionError(errors.New("no extractor configured")))
	}
	content, err := c.extractor.Extract(ctx, class, rawURL)
	if err != nil {
		return c.fail(outcome, item, domain.NewExtractionError(err))
	}
	if strings.TrimSpace(content.Text) == "" {
		return c.fail(outcome, item, domain.NewExtractionError(errors.New("content too short")))
	}
	if content.CanonicalURL == "" {
		content.CanonicalURL = rawURL
	}

	outcome.State = domain.StateSummarizing
	c.debug("item state", "item", item.ID, "state", outcome.State, "canonical_url", content.CanonicalURL)
	if c.summarizer == nil {
		return c.fail(outcome, item, domain.NewSummarizationError(errors.New("no summarizer configured")))
	}
	title := firstNonBlank(item.Title, content.Title, content.CanonicalURL)
	summary, err := c.summarizer.Summarize(ctx, ports.SummaryRequest{
		Title: title,
		URL:   content.CanonicalURL,
		Text:  content.Text,
	})
	if err != nil {
		return c.fail(outcome, item, domain.NewSummarizationError(err))
	}

	result := domain.SummaryResult{
		Title:        title,
		SourceURL:    content.CanonicalURL,
		SubmittedURL: rawURL,
		SourceKind:   content.SourceKind,
		SummaryText:  summary,
		Language:     content.Language,
		GeneratedAt:  c.now().In(c.cfg.Location),
	}
	if result.SourceKind == "" {
		result.SourceKind = class.Kind
	}

	outcome.State = domain.StatePersisting
	c.debug("item state", "item", item.ID, "state", outcome.State)
	if c.sink != nil {
		if err := c.sink.Save(ctx, result); err != nil {
			return c.fail(outcome, item, domain.NewPersistenceError(err))
		}
	}

	if c.seen != nil {
		for _, u := range uniqueStrings(rawURL, content.CanonicalURL) {
			if err := c.seen.Remember(ctx, u); err != nil {
				c.warn("seen index update failed", "url", u, "error", err)
			}
		}
	}

	outcome.State = domain.StateDone
	c.info("item done", "item", item.ID, "url", rawURL, "kind", result.SourceKind, "title", title)
	return outcome, &result, domain.ItemUpdate{Processed: true, RetryCount: item.RetryCount}
}

// fail records err against the item. Retryable kinds become terminal once
// the incremented retry count reaches the maximum.
func (c *Coordinator) fail(outcome ItemOutcome, item domain.InboxItem, err error) (ItemOutcome, *domain.SummaryResult, domain.ItemUpdate) {
	msg := c.truncate(err.Error())
	outcome.Error = msg

	kind, _ := domain.KindOf(err)
	if !kind.Retryable() {
		outcome.State = domain.StateFailedTerminal
		c.warn("item terminal", "item", item.ID, "url", outcome.URL, "error", msg)
		return outcome, nil, domain.ItemUpdate{Processed: true, LastError: msg, RetryCount: item.RetryCount}
	}

	retry := item.RetryCount + 1
	if retry >= c.cfg.MaxRetries {
		outcome.State = domain.StateFailedTerminal
		c.warn("item terminal after retries", "item", item.ID, "url", outcome.URL, "retries", retry, "error", msg)
		return outcome, nil, domain.ItemUpdate{Processed: true, LastError: msg, RetryCount: retry}
	}

	outcome.State = domain.StateFailedRetryable
	c.warn("item failed", "item", item.ID, "url", outcome.URL, "retries", retry, "error", msg)
	return outcome, nil, domain.ItemUpdate{Processed: false, LastError: msg, RetryCount: retry}
}

func (c *Coordinator) afterRun(ctx context.Context, report Report) {
	if c.newsletter != nil {
		day := c.now().In(c.cfg.Location)
		path, err := c.newsletter.Combine(ctx, day)
		if err != nil {
			c.warn("newsletter combine failed", "error", err)
		} else {
			c.info("newsletter ready", "path", path)
			if c.mailer != nil {
				if err := c.mailer.SendNewsletter(ctx, day, path); err != nil {
					c.warn("newsletter email failed", "path", path, "error", err)
				}
			}
		}
	}
	if c.notifier != nil {
		if err := c.notifier.PublishDigest(ctx, BuildDigest(report)); err != nil {
			c.warn("digest notification failed", "error", err)
		}
	}
}

func (c *Coordinator) truncate(msg string) string {
	if utf8.RuneCountInString(msg) <= c.cfg.MaxErrorLength {
		return msg
	}
	return string([]rune(msg)[:c.cfg.MaxErrorLength])
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func uniqueStrings(values ...string) []string {
	var out []string
	for _, v := range values {
		if v == "" {
			continue
		}
		dup := false
		for _, o := range out {
			if o == v {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

func (c *Coordinator) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Coordinator) info(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Coordinator) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Coordinator) error(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
