package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"SelfLetter/internal/config"
	"SelfLetter/internal/domain"
	"SelfLetter/internal/ports"
)

// EmptySummary stands in for a completion that returned no text.
const EmptySummary = "(empty summary)"

const defaultPrompt = "Summarize the following content:\n\nTitle: {title}\nURL: {url}\n\nCONTENT:\n{content}\n"

// ChatGPTClient implements ports.Summarizer backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	template     string
	maxChars     int
	maxTokens    int
	temperature  float64
	httpClient   *http.Client
	logger       *slog.Logger
}

var _ ports.Summarizer = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig, log *slog.Logger) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	template := cfg.PromptTemplate
	if strings.TrimSpace(template) == "" {
		template = defaultPrompt
	}
	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: strings.TrimSpace(cfg.SystemPrompt),
		template:     template,
		maxChars:     cfg.MaxChars,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Summarize truncates the text, renders the prompt and performs one completion
// call. Every failure is returned as a summarization error.
func (c *ChatGPTClient) Summarize(ctx context.Context, req ports.SummaryRequest) (string, error) {
	if c == nil {
		return "", domain.NewSummarizationError(errors.New("chatgpt client is nil"))
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", domain.NewSummarizationError(errors.New("chatgpt client misconfigured"))
	}

	text := TruncateRunes(req.Text, c.maxChars)
	c.debug("summarize", "url", req.URL, "chars", utf8.RuneCountInString(text))

	messages := make([]chatMessage, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: BuildPrompt(c.template, req.Title, req.URL, text)})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", domain.NewSummarizationError(fmt.Errorf("marshal chatgpt payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewSummarizationError(fmt.Errorf("new request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", domain.NewSummarizationError(fmt.Errorf("send completion: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", domain.NewSummarizationError(fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", domain.NewSummarizationError(fmt.Errorf("decode completion: %w", err))
	}

	summary, err := collectContent(decoded)
	if err != nil {
		return "", domain.NewSummarizationError(err)
	}
	if summary == "" {
		return EmptySummary, nil
	}
	return summary, nil
}

// collectContent returns the text of the first choice. Content is either a
// plain string or a list of typed parts.
func collectContent(resp chatResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", nil
	}
	raw := bytes.TrimSpace(resp.Choices[0].Message.Content)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode content: %w", err)
		}
		return strings.TrimSpace(s), nil
	case '[':
		var parts []contentPart
		if err := json.Unmarshal(raw, &parts); err != nil {
			return "", fmt.Errorf("decode content parts: %w", err)
		}
		var sb strings.Builder
		for _, part := range parts {
			if part.Type != "" && part.Type != "text" {
				continue
			}
			sb.WriteString(part.Text)
		}
		return strings.TrimSpace(sb.String()), nil
	default:
		return "", fmt.Errorf("unexpected content shape %q", string(raw[:1]))
	}
}

func (c *ChatGPTClient) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
