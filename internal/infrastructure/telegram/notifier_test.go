package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"SelfLetter/internal/config"
)

func TestPublishDigestSplitsLongMessages(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		path  string
		texts []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		path = r.URL.Path
		texts = append(texts, req.Text)
		mu.Unlock()
		if req.ChatID != "42" || req.ParseMode != "HTML" || !req.DisableWebPagePreview {
			t.Errorf("unexpected request: %+v", req)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "123:abc", ChatID: "42", BaseURL: server.URL})
	if err := n.PublishDigest(context.Background(), strings.Repeat("ы", 5000)); err != nil {
		t.Fatalf("PublishDigest error: %v", err)
	}

	if path != "/bot123:abc/sendMessage" {
		t.Fatalf("unexpected path: %s", path)
	}
	if len(texts) != 2 || utf8.RuneCountInString(texts[0]) != maxMessageLen || utf8.RuneCountInString(texts[1]) != 5000-maxMessageLen {
		t.Fatalf("unexpected parts: %d", len(texts))
	}
}

func TestSplitMessagePrefersNewlines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"short", "hello", 10, []string{"hello"}},
		{"newline", "aaaa\nbbbb\ncc", 10, []string{"aaaa\nbbbb", "cc"}},
		{"hard cut", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitMessage(tt.text, tt.limit)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("splitMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPublishDigestErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "t", ChatID: "c", BaseURL: server.URL})
	err := n.PublishDigest(context.Background(), "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest || !strings.Contains(apiErr.Description, "chat not found") {
		t.Fatalf("expected telegram API error, got %v", err)
	}

	if err := NewNotifier(config.TelegramConfig{}).PublishDigest(context.Background(), "hi"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}
