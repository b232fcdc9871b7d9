package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "SELFLETTER_CONFIG"

	QueueNotion = "notion"
	QueueSQL    = "sql"

	SinkMarkdown = "markdown"
	SinkNotion   = "notion"
	SinkSQL      = "sql"
	SinkS3       = "s3"

	SeenNone     = ""
	SeenMarkdown = "markdown"
	SeenSQL      = "sql"
	SeenRedis    = "redis"

	ReaderRemote      = "remote"
	ReaderReadability = "readability"
)

//go:embed summary_prompt.md
var defaultPromptTemplate string

// Config holds high-level settings required across the application.
// It is built once by Load and passed by value afterwards.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Queue         QueueConfig        `yaml:"queue"`
	Notion        NotionConfig       `yaml:"notion"`
	Database      DatabaseConfig     `yaml:"database"`
	Extraction    ExtractionConfig   `yaml:"extraction"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Output        OutputConfig       `yaml:"output"`
	S3            S3Config           `yaml:"s3"`
	Redis         RedisConfig        `yaml:"redis"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects the slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// QueueConfig controls how the inbox is drained.
type QueueConfig struct {
	Backend          string `yaml:"backend"`
	BatchSize        int    `yaml:"batchSize"`
	MaxRetries       int    `yaml:"maxRetries"`
	MaxErrorLength   int    `yaml:"maxErrorLength"`
	SeenIndex        string `yaml:"seenIndex"`
	DistinguishOther bool   `yaml:"distinguishOther"`
}

// NotionConfig addresses the source and destination databases.
type NotionConfig struct {
	Token            string           `yaml:"token"`
	BaseURL          string           `yaml:"baseUrl"`
	Version          string           `yaml:"version"`
	SourceDatabaseID string           `yaml:"sourceDatabaseId"`
	DestDatabaseID   string           `yaml:"destDatabaseId"`
	Source           SourceProperties `yaml:"source"`
	Dest             DestProperties   `yaml:"dest"`
}

// SourceProperties names the inbox database columns. Title, Error and Retry
// are optional; empty names are never read or written.
type SourceProperties struct {
	URL   string `yaml:"url"`
	Title string `yaml:"title"`
	Done  string `yaml:"done"`
	Error string `yaml:"error"`
	Retry string `yaml:"retry"`
}

// DestProperties names the summary database columns.
type DestProperties struct {
	Title   string `yaml:"title"`
	URL     string `yaml:"url"`
	Type    string `yaml:"type"`
	Summary string `yaml:"summary"`
	Date    string `yaml:"date"`
}

// DatabaseConfig describes the SQL record store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ExtractionConfig tunes the fetchers and content thresholds.
type ExtractionConfig struct {
	UserAgent    string        `yaml:"userAgent"`
	Timeout      time.Duration `yaml:"timeout"`
	MinChars     int           `yaml:"minChars"`
	MinHTMLChars int           `yaml:"minHtmlChars"`
	ArxivBaseURL string        `yaml:"arxivBaseUrl"`
	Reader       string        `yaml:"reader"`
	ReaderURL    string        `yaml:"readerUrl"`
	Languages    []string      `yaml:"languages"`
}

// ChatGPTConfig defines how to contact the OpenAI-compatible completion API.
type ChatGPTConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"apiKey"`
	SystemPrompt   string        `yaml:"systemPrompt"`
	PromptFile     string        `yaml:"promptFile"`
	PromptTemplate string        `yaml:"-"`
	MaxChars       int           `yaml:"maxChars"`
	MaxTokens      int           `yaml:"maxTokens"`
	Temperature    float64       `yaml:"temperature"`
	Timeout        time.Duration `yaml:"timeout"`
}

// OutputConfig lists the summary sinks and the local output tree.
type OutputConfig struct {
	Sinks      []string `yaml:"sinks"`
	Dir        string   `yaml:"dir"`
	Newsletter bool     `yaml:"newsletter"`
}

// S3Config addresses the object-store sink.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// RedisConfig addresses the Redis seen index.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Email    EmailConfig    `yaml:"email"`
}

// EmailConfig addresses the SMTP server that receives the daily newsletter.
// Port 465 uses implicit TLS; other ports upgrade with STARTTLS when offered.
type EmailConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	To       []string      `yaml:"to"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Enabled reports whether credentials and a recipient are present.
func (e EmailConfig) Enabled() bool {
	return e.User != "" && e.Password != "" && len(e.To) > 0
}

// Sender returns From, defaulting to the SMTP user.
func (e EmailConfig) Sender() string {
	if e.From != "" {
		return e.From
	}
	return e.User
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads the file named by SELFLETTER_CONFIG (if any) and applies
// environment overrides.
func Load() (Config, error) {
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile layers defaults, the YAML file at path (may be empty) and the
// environment.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	cfg.bindTimezone()

	if err := cfg.loadPrompt(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("env %s: %w", name, err))
			return
		}
		*dst = n
	}

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	str("QUEUE_BACKEND", &c.Queue.Backend)
	num("BATCH_SIZE", &c.Queue.BatchSize)
	num("MAX_RETRIES", &c.Queue.MaxRetries)
	str("SEEN_INDEX", &c.Queue.SeenIndex)

	str("NOTION_TOKEN", &c.Notion.Token)
	str("NOTION_SOURCE_DB_ID", &c.Notion.SourceDatabaseID)
	str("NOTION_DEST_DB_ID", &c.Notion.DestDatabaseID)
	str("NOTION_PROP_URL", &c.Notion.Source.URL)
	str("NOTION_PROP_TITLE", &c.Notion.Source.Title)
	str("NOTION_PROP_DONE", &c.Notion.Source.Done)
	str("NOTION_PROP_ERR", &c.Notion.Source.Error)
	str("NOTION_PROP_RETRY", &c.Notion.Source.Retry)
	str("NOTION_DEST_PROP_TITLE", &c.Notion.Dest.Title)
	str("NOTION_DEST_PROP_URL", &c.Notion.Dest.URL)
	str("NOTION_DEST_PROP_TYPE", &c.Notion.Dest.Type)
	str("NOTION_DEST_PROP_SUMM", &c.Notion.Dest.Summary)
	str("NOTION_DEST_PROP_DATE", &c.Notion.Dest.Date)

	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_DSN", &c.Database.DSN)

	str("USER_AGENT", &c.Extraction.UserAgent)
	str("READER_URL", &c.Extraction.ReaderURL)

	str("API_KEY", &c.ChatGPT.APIKey)
	str("MODEL", &c.ChatGPT.Model)
	str("ENDPOINT", &c.ChatGPT.Endpoint)
	str("PROMPT_FILE", &c.ChatGPT.PromptFile)
	num("MAX_CHARS", &c.ChatGPT.MaxChars)

	str("OUTPUT_DIR", &c.Output.Dir)
	if v := os.Getenv("OUTPUT_SINKS"); v != "" {
		c.Output.Sinks = splitList(v)
	}

	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_PREFIX", &c.S3.Prefix)
	str("AWS_REGION", &c.S3.Region)

	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)

	str("CRON_EXPRESSION", &c.Scheduler.CronExpression)
	str("TIMEZONE", &c.Scheduler.Timezone)

	str("TELEGRAM_BOT_TOKEN", &c.Notifications.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &c.Notifications.Telegram.ChatID)

	str("SMTP_HOST", &c.Notifications.Email.Host)
	num("SMTP_PORT", &c.Notifications.Email.Port)
	str("SMTP_USER", &c.Notifications.Email.User)
	str("SMTP_PASS", &c.Notifications.Email.Password)
	str("EMAIL_FROM", &c.Notifications.Email.From)
	if v := os.Getenv("EMAIL_TO"); v != "" {
		c.Notifications.Email.To = splitList(v)
	}

	return errors.Join(errs...)
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func (c *Config) loadPrompt() error {
	if c.ChatGPT.PromptFile == "" {
		c.ChatGPT.PromptTemplate = defaultPromptTemplate
		return nil
	}
	raw, err := os.ReadFile(c.ChatGPT.PromptFile)
	if err != nil {
		return fmt.Errorf("read prompt %s: %w", c.ChatGPT.PromptFile, err)
	}
	c.ChatGPT.PromptTemplate = string(raw)
	return nil
}

// HasSink reports whether the named sink is configured.
func (c Config) HasSink(name string) bool {
	for _, s := range c.Output.Sinks {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// Validate checks that the selected backends have what they need.
func (c Config) Validate() error {
	var errs []error

	switch c.Queue.Backend {
	case QueueNotion:
		if c.Notion.Token == "" {
			errs = append(errs, errors.New("NOTION_TOKEN is required for the notion queue"))
		}
		if c.Notion.SourceDatabaseID == "" {
			errs = append(errs, errors.New("NOTION_SOURCE_DB_ID is required for the notion queue"))
		}
		if c.Notion.Source.URL == "" || c.Notion.Source.Done == "" {
			errs = append(errs, errors.New("notion url and done property names are required"))
		}
	case QueueSQL:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the sql queue"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown queue backend %q", c.Queue.Backend))
	}

	if c.ChatGPT.APIKey == "" {
		errs = append(errs, errors.New("API_KEY is required"))
	}
	if c.ChatGPT.Endpoint == "" || c.ChatGPT.Model == "" {
		errs = append(errs, errors.New("chatgpt endpoint and model are required"))
	}
	if c.ChatGPT.MaxChars <= 0 {
		errs = append(errs, errors.New("MAX_CHARS must be positive"))
	}
	if c.Queue.MaxRetries <= 0 {
		errs = append(errs, errors.New("MAX_RETRIES must be positive"))
	}
	if c.Queue.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}

	if len(c.Output.Sinks) == 0 {
		errs = append(errs, errors.New("at least one output sink is required"))
	}
	for _, sink := range c.Output.Sinks {
		switch strings.ToLower(strings.TrimSpace(sink)) {
		case SinkMarkdown:
			if c.Output.Dir == "" {
				errs = append(errs, errors.New("OUTPUT_DIR is required for the markdown sink"))
			}
		case SinkNotion:
			if c.Notion.Token == "" || c.Notion.DestDatabaseID == "" {
				errs = append(errs, errors.New("NOTION_TOKEN and NOTION_DEST_DB_ID are required for the notion sink"))
			}
		case SinkSQL:
			if c.Database.DSN == "" {
				errs = append(errs, errors.New("DATABASE_DSN is required for the sql sink"))
			}
		case SinkS3:
			if c.S3.Bucket == "" {
				errs = append(errs, errors.New("S3_BUCKET is required for the s3 sink"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown sink %q", sink))
		}
	}

	switch c.Queue.SeenIndex {
	case SeenNone, "none":
	case SeenMarkdown:
		if c.Output.Dir == "" {
			errs = append(errs, errors.New("OUTPUT_DIR is required for the markdown seen index"))
		}
	case SeenSQL:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the sql seen index"))
		}
	case SeenRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis seen index"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown seen index %q", c.Queue.SeenIndex))
	}

	if email := c.Notifications.Email; email.Enabled() {
		if !c.HasSink(SinkMarkdown) || !c.Output.Newsletter {
			errs = append(errs, errors.New("newsletter email requires the markdown sink with newsletter enabled"))
		}
		if email.Host == "" || email.Port <= 0 {
			errs = append(errs, errors.New("SMTP_HOST and SMTP_PORT are required for newsletter email"))
		}
	}

	switch c.Extraction.Reader {
	case ReaderRemote, ReaderReadability:
	default:
		errs = append(errs, fmt.Errorf("unknown reader %q", c.Extraction.Reader))
	}

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Queue: QueueConfig{
			Backend:        QueueNotion,
			BatchSize:      100,
			MaxRetries:     3,
			MaxErrorLength: 2000,
			SeenIndex:      SeenMarkdown,
		},
		Notion: NotionConfig{
			BaseURL: "https://api.notion.com",
			Version: "2022-06-28",
			Source: SourceProperties{
				URL:   "URL",
				Title: "Name",
				Done:  "Summarized",
				Error: "Last error",
				Retry: "Retry count",
			},
			Dest: DestProperties{
				Title:   "Name",
				URL:     "Source URL",
				Type:    "Type",
				Summary: "Summary",
				Date:    "Added",
			},
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: ""},
		Extraction: ExtractionConfig{
			UserAgent:    "SelfLetterBot/1.0",
			Timeout:      60 * time.Second,
			MinChars:     200,
			MinHTMLChars: 500,
			ArxivBaseURL: "https://arxiv.org",
			Reader:       ReaderRemote,
			ReaderURL:    "https://r.jina.ai/",
			Languages:    []string{"english", "german", "french", "spanish", "russian", "chinese"},
		},
		ChatGPT: ChatGPTConfig{
			Endpoint:    "https://openrouter.ai/api/v1/chat/completions",
			Model:       "gpt-4o-mini",
			MaxChars:    120000,
			MaxTokens:   16384,
			Temperature: 0.7,
			Timeout:     120 * time.Second,
		},
		Output: OutputConfig{
			Sinks:      []string{SinkMarkdown},
			Dir:        "newsletter",
			Newsletter: true,
		},
		Redis: RedisConfig{Key: "selfletter:seen"},
		Scheduler: SchedulerConfig{
			CronExpression: "0 6 * * *",
			Timezone:       defaultTimezone,
			location:       tz,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
			Email: EmailConfig{
				Host:    "smtp.gmail.com",
				Port:    465,
				Timeout: 30 * time.Second,
			},
		},
	}
}
