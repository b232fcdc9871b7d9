package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"SelfLetter/internal/config"
)

const (
	defaultBaseURL  = "https://api.notion.com"
	defaultVersion  = "2022-06-28"
	richTextChunk   = 1800
	maxRichTextRuns = 100
	maxPageSize     = 100
)

// APIError is a non-2xx answer of the Notion API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion error %d %s: %s", e.Status, e.Code, e.Message)
}

// missingProperty reports a validation error about an unknown property.
func (e *APIError) missingProperty() bool {
	msg := strings.ToLower(e.Message)
	return e.Status == http.StatusBadRequest &&
		(strings.Contains(msg, "does not exist") || strings.Contains(msg, "is not a property that exists"))
}

// Client is a minimal Notion REST client.
type Client struct {
	baseURL    string
	token      string
	version    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client from configuration.
func NewClient(cfg config.NotionConfig, log *slog.Logger) *Client {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	version := cfg.Version
	if version == "" {
		version = defaultVersion
	}
	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		version:    version,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.token == "" {
		return fmt.Errorf("notion client misconfigured")
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal notion payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		apiErr := &APIError{}
		if json.Unmarshal(payload, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(payload))
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode notion response: %w", err)
	}
	return nil
}

func (c *Client) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

type textContent struct {
	Content string `json:"content"`
}

type richText struct {
	Type      string       `json:"type,omitempty"`
	Text      *textContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

// property is the subset of a Notion page property this package reads.
type property struct {
	Type     string     `json:"type"`
	URL      *string    `json:"url"`
	Title    []richText `json:"title"`
	RichText []richText `json:"rich_text"`
	Number   *float64   `json:"number"`
	Checkbox *bool      `json:"checkbox"`
}

type page struct {
	ID         string              `json:"id"`
	Properties map[string]property `json:"properties"`
}

func plainText(parts []richText) string {
	var sb strings.Builder
	for _, p := range parts {
		if p.PlainText != "" {
			sb.WriteString(p.PlainText)
		} else if p.Text != nil {
			sb.WriteString(p.Text.Content)
		}
	}
	return strings.TrimSpace(sb.String())
}

// richTextChunks splits s into text runs of at most 1800 runes.
func richTextChunks(s string) []richText {
	if s == "" {
		return []richText{{Type: "text", Text: &textContent{Content: ""}}}
	}

	var out []richText
	for s != "" && len(out) < maxRichTextRuns {
		cut := len(s)
		if utf8.RuneCountInString(s) > richTextChunk {
			cut = 0
			for i := 0; i < richTextChunk; i++ {
				_, size := utf8.DecodeRuneInString(s[cut:])
				cut += size
			}
		}
		out = append(out, richText{Type: "text", Text: &textContent{Content: s[:cut]}})
		s = s[cut:]
	}
	return out
}
