package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SelfLetter/internal/domain"
	"SelfLetter/internal/extraction"
)

const abstractPage = `<html><head><title>[2501.12345] Sample Paper</title></head><body>
<div id="header"><a href="/">arXiv</a></div>
<h1 class="title mathjax"><span class="descriptor">Title:</span>Sample Paper About Things</h1>
<blockquote class="abstract mathjax"><span class="descriptor">Abstract:</span>We study things and find that they are interesting.</blockquote>
</body></html>`

func htmlRendering(body string) string {
	return `<html><head><title>Sample Paper</title><script>var x = 1;</script></head><body>
<nav>navigation links</nav>
<article class="ltx_document">
<h1 class="ltx_title ltx_title_document">Sample Paper About Things</h1>
<p>` + body + `</p>
<p>Second paragraph.</p>
</article>
<footer>footer text</footer>
</body></html>`
}

func newArxivServer(t *testing.T, html string, htmlStatus int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "TestBot/1.0" {
			t.Errorf("unexpected user agent %q", got)
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/html/"):
			w.WriteHeader(htmlStatus)
			_, _ = w.Write([]byte(html))
		case strings.HasPrefix(r.URL.Path, "/abs/"):
			_, _ = w.Write([]byte(abstractPage))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestArxivStrategyPrefersHTML(t *testing.T) {
	t.Parallel()

	server := newArxivServer(t, htmlRendering(strings.Repeat("Long paper body sentence. ", 40)), http.StatusOK)
	defer server.Close()

	strategy := NewArxivStrategy(NewFetcher(server.Client(), "TestBot/1.0"), server.URL, 500, nil)
	content, err := strategy.Extract(context.Background(), extraction.Request{
		URL:            "https://arxiv.org/abs/2501.12345v2",
		Classification: domain.Classification{Kind: domain.KindArxiv, PaperID: "2501.12345"},
	})
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	if content.CanonicalURL != server.URL+"/html/2501.12345" {
		t.Fatalf("unexpected canonical url: %s", content.CanonicalURL)
	}
	if content.Title != "Sample Paper About Things" {
		t.Fatalf("unexpected title: %q", content.Title)
	}
	if strings.Contains(content.Text, "navigation links") || strings.Contains(content.Text, "var x") {
		t.Fatalf("boilerplate leaked into text: %q", content.Text)
	}
	if !strings.Contains(content.Text, "Second paragraph.") {
		t.Fatalf("missing body text: %q", content.Text)
	}
}

func TestArxivStrategyFallsBackToAbstract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		html   string
		status int
	}{
		{"missing rendering", "not found", http.StatusNotFound},
		{"near empty rendering", htmlRendering("tiny"), http.StatusOK},
		{"error page", htmlRendering("No HTML for '2501.12345'. " + strings.Repeat("filler ", 200)), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newArxivServer(t, tt.html, tt.status)
			defer server.Close()

			strategy := NewArxivStrategy(NewFetcher(server.Client(), "TestBot/1.0"), server.URL, 500, nil)
			content, err := strategy.Extract(context.Background(), extraction.Request{
				URL: "arXiv:2501.12345",
			})
			if err != nil {
				t.Fatalf("Extract error: %v", err)
			}

			if content.CanonicalURL != server.URL+"/abs/2501.12345" {
				t.Fatalf("unexpected canonical url: %s", content.CanonicalURL)
			}
			want := "Sample Paper About Things\n\nWe study things and find that they are interesting."
			if content.Text != want {
				t.Fatalf("unexpected text:\n%q\nwant\n%q", content.Text, want)
			}
			if content.Title != "Sample Paper About Things" {
				t.Fatalf("unexpected title: %q", content.Title)
			}
		})
	}
}

func TestArxivStrategyKeepsPaperMentioningErrorCodes(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("Long paper body sentence. ", 40) +
		"Crawlers hit error 404 on a third of the links, and some hosts say no HTML for bots."
	server := newArxivServer(t, htmlRendering(body), http.StatusOK)
	defer server.Close()

	strategy := NewArxivStrategy(NewFetcher(server.Client(), "TestBot/1.0"), server.URL, 500, nil)
	content, err := strategy.Extract(context.Background(), extraction.Request{
		URL: "arXiv:2501.12345",
	})
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	if content.CanonicalURL != server.URL+"/html/2501.12345" {
		t.Fatalf("paper was rejected as an error page: %s", content.CanonicalURL)
	}
	if !strings.Contains(content.Text, "error 404") {
		t.Fatalf("missing body text: %q", content.Text)
	}
}

func TestArxivStrategyRequiresID(t *testing.T) {
	t.Parallel()

	strategy := NewArxivStrategy(nil, "http://127.0.0.1:0", 0, nil)
	if _, err := strategy.Extract(context.Background(), extraction.Request{URL: "https://example.com"}); err == nil {
		t.Fatalf("expected error without arxiv id")
	}
}
