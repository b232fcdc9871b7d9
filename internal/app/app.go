package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"SelfLetter/internal/classify"
	"SelfLetter/internal/config"
	"SelfLetter/internal/domain"
	"SelfLetter/internal/extraction"
	"SelfLetter/internal/infrastructure/dedup"
	"SelfLetter/internal/infrastructure/llm"
	"SelfLetter/internal/infrastructure/mail"
	"SelfLetter/internal/infrastructure/markdown"
	"SelfLetter/internal/infrastructure/notion"
	"SelfLetter/internal/infrastructure/objectstore"
	"SelfLetter/internal/infrastructure/parser"
	"SelfLetter/internal/infrastructure/scheduler"
	"SelfLetter/internal/infrastructure/storage"
	"SelfLetter/internal/infrastructure/telegram"
	"SelfLetter/internal/logging"
	"SelfLetter/internal/ports"
	"SelfLetter/internal/usecase"
)

// ErrNewsletterDisabled is returned when no markdown output tree is configured.
var ErrNewsletterDisabled = errors.New("newsletter requires the markdown sink")

// ErrEmailDisabled is returned when SMTP delivery is not configured.
var ErrEmailDisabled = errors.New("newsletter email is not configured")

// ErrEnqueueUnsupported is returned when the queue backend is not SQL.
var ErrEnqueueUnsupported = errors.New("enqueue is only supported by the sql queue")

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg         config.Config
	logger      *slog.Logger
	coordinator *usecase.Coordinator
	scheduler   *usecase.Scheduler
	combiner    *markdown.Combiner
	mailer      *mail.Mailer
	store       *storage.SQLStore
	closers     []io.Closer
}

// New validates cfg and builds every adapter it selects.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithFormat(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &Application{cfg: cfg, logger: baseLogger}
	loc := cfg.Scheduler.Location()

	var notionClient *notion.Client
	if cfg.Notion.Token != "" {
		notionClient = notion.NewClient(cfg.Notion, logging.Component(baseLogger, "notion"))
	}

	if needsDatabase(cfg) {
		store, err := a.openStore(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
	}

	var queue ports.InboxQueue
	switch cfg.Queue.Backend {
	case config.QueueSQL:
		queue = a.store
	default:
		queue = notion.NewQueue(notionClient, cfg.Notion.SourceDatabaseID, cfg.Notion.Source)
	}

	sinks, err := a.buildSinks(ctx, notionClient, loc)
	if err != nil {
		a.Close()
		return nil, err
	}

	seen, err := a.buildSeenIndex(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.HasSink(config.SinkMarkdown) && cfg.Output.Newsletter {
		a.combiner = markdown.NewCombiner(cfg.Output.Dir, logging.Component(baseLogger, "newsletter"))
	}

	if cfg.Notifications.Email.Enabled() {
		a.mailer = mail.NewMailer(cfg.Notifications.Email, logging.Component(baseLogger, "mail"))
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram)
	}

	urlProperty := cfg.Notion.Source.URL
	if cfg.Queue.Backend == config.QueueSQL {
		urlProperty = "url"
	}

	deps := usecase.CoordinatorDeps{
		Queue:      queue,
		Classifier: classify.Classifier{DistinguishOther: cfg.Queue.DistinguishOther},
		Extractor:  buildExtractor(cfg.Extraction, baseLogger),
		Summarizer: llm.NewChatGPTClient(cfg.ChatGPT, logging.Component(baseLogger, "llm")),
		Sink:       sinks,
		Seen:       seen,
		Logger:     logging.Component(baseLogger, "coordinator"),
	}
	if a.combiner != nil {
		deps.Newsletter = a.combiner
	}
	if a.mailer != nil {
		deps.Mailer = a.mailer
	}
	if notifier != nil {
		deps.Notifier = notifier
	}

	a.coordinator = usecase.NewCoordinator(usecase.CoordinatorConfig{
		BatchSize:      cfg.Queue.BatchSize,
		MaxRetries:     cfg.Queue.MaxRetries,
		MaxErrorLength: cfg.Queue.MaxErrorLength,
		URLProperty:    urlProperty,
		Location:       loc,
	}, deps)

	driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, loc, logging.Component(baseLogger, "scheduler"))
	a.scheduler = usecase.NewScheduler(driver, a.coordinator, logging.Component(baseLogger, "scheduler"))

	return a, nil
}

// Run performs a single batch over the inbox.
func (a *Application) Run(ctx context.Context) (usecase.Report, error) {
	return a.coordinator.RunBatch(ctx)
}

// Schedule runs batches on the cron expression until ctx is cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "timezone", a.cfg.Scheduler.Location().String())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	err := a.scheduler.Stop(stopCtx)

	if last, runs, ok := a.scheduler.Last(); ok {
		a.logger.Info("scheduler stopped", "runs", runs, "last_trigger", last.Trigger, "last_done", last.Report.Done)
	} else {
		a.logger.Info("scheduler stopped before the first run")
	}
	return err
}

// Newsletter combines the summaries written for day.
func (a *Application) Newsletter(ctx context.Context, day time.Time) (string, error) {
	if a.combiner == nil {
		return "", ErrNewsletterDisabled
	}
	return a.combiner.Combine(ctx, day.In(a.cfg.Scheduler.Location()))
}

// MailNewsletter emails an already combined newsletter file.
func (a *Application) MailNewsletter(ctx context.Context, day time.Time, path string) error {
	if a.mailer == nil {
		return ErrEmailDisabled
	}
	return a.mailer.SendNewsletter(ctx, day.In(a.cfg.Scheduler.Location()), path)
}

// Enqueue adds a link to the SQL inbox.
func (a *Application) Enqueue(ctx context.Context, rawURL, title string) (string, error) {
	if a.cfg.Queue.Backend != config.QueueSQL || a.store == nil {
		return "", ErrEnqueueUnsupported
	}
	return a.store.Enqueue(ctx, rawURL, title)
}

// Close releases database and cache connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) openStore(ctx context.Context) (*storage.SQLStore, error) {
	dialect, err := storage.ParseDialect(a.cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(ctx, dialect, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db)
	if err := storage.Migrate(ctx, db); err != nil {
		return nil, err
	}
	a.logger.Debug("database ready", "driver", string(dialect))
	return storage.NewSQLStore(db, dialect), nil
}

func (a *Application) buildSinks(ctx context.Context, client *notion.Client, loc *time.Location) (*usecase.FanOutSink, error) {
	var named []usecase.NamedSink
	for _, name := range a.cfg.Output.Sinks {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case config.SinkMarkdown:
			named = append(named, usecase.NamedSink{Name: name, Sink: markdown.NewSink(a.cfg.Output.Dir, loc, logging.Component(a.logger, "sink.markdown"))})
		case config.SinkNotion:
			named = append(named, usecase.NamedSink{Name: name, Sink: notion.NewSink(client, a.cfg.Notion.DestDatabaseID, a.cfg.Notion.Dest)})
		case config.SinkSQL:
			named = append(named, usecase.NamedSink{Name: name, Sink: a.store})
		case config.SinkS3:
			s3Sink, err := objectstore.NewS3Sink(ctx, a.cfg.S3, loc, logging.Component(a.logger, "sink.s3"))
			if err != nil {
				return nil, err
			}
			named = append(named, usecase.NamedSink{Name: name, Sink: s3Sink})
		}
	}
	return usecase.NewFanOutSink(named...), nil
}

func (a *Application) buildSeenIndex(ctx context.Context) (ports.SeenIndex, error) {
	switch a.cfg.Queue.SeenIndex {
	case config.SeenMarkdown:
		return markdown.NewSeenIndex(a.cfg.Output.Dir), nil
	case config.SeenSQL:
		return a.store, nil
	case config.SeenRedis:
		index, err := dedup.NewRedisIndex(ctx, a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, index)
		return index, nil
	default:
		return nil, nil
	}
}

func buildExtractor(cfg config.ExtractionConfig, log *slog.Logger) *parser.StrategyExtractor {
	fetcher := parser.NewFetcher(&http.Client{Timeout: cfg.Timeout}, cfg.UserAgent)

	var primary parser.Reader
	switch cfg.Reader {
	case config.ReaderReadability:
		primary = parser.NewReadabilityReader(fetcher)
	default:
		primary = parser.NewRemoteReader(fetcher, cfg.ReaderURL)
	}

	arxiv := parser.NewArxivStrategy(fetcher, cfg.ArxivBaseURL, cfg.MinHTMLChars, logging.Component(log, "strategy.arxiv"))
	generic := parser.NewGenericStrategy(primary, parser.NewRawTextReducer(fetcher), logging.Component(log, "strategy.generic"))
	hf := parser.NewHuggingFaceStrategy(generic, arxiv, cfg.MinChars, logging.Component(log, "strategy.huggingface"))

	registry := extraction.NewRegistry()
	registry.Register(arxiv, domain.KindArxiv)
	registry.Register(hf, domain.KindHuggingFace)
	registry.Register(generic, domain.KindBlog, domain.KindVideo)
	registry.SetFallback(generic)

	return parser.NewStrategyExtractor(registry, cfg.MinChars, parser.NewLanguageDetector(cfg.Languages), logging.Component(log, "extractor"))
}

func needsDatabase(cfg config.Config) bool {
	return cfg.Queue.Backend == config.QueueSQL ||
		cfg.HasSink(config.SinkSQL) ||
		cfg.Queue.SeenIndex == config.SeenSQL
}
