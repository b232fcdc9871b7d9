package parser

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	readability "github.com/go-shiori/go-readability"
)

const defaultReaderURL = "https://r.jina.ai/"

// ReadResult is the main content of a page as returned by a Reader.
type ReadResult struct {
	Title string
	Text  string
}

// Reader reduces a URL to readable main-content text.
type Reader interface {
	Read(ctx context.Context, rawURL string) (ReadResult, error)
}

var remoteHeaderPrefixes = []string{
	"URL Source:",
	"Published Time:",
	"Markdown Content:",
	"Warning:",
}

// RemoteReader delegates to a "reduce URL to readable text" service that takes
// the target URL appended to its base URL.
type RemoteReader struct {
	fetcher *Fetcher
	baseURL string
}

var _ Reader = (*RemoteReader)(nil)

// NewRemoteReader wires the service base URL; it defaults to https://r.jina.ai/.
func NewRemoteReader(fetcher *Fetcher, baseURL string) *RemoteReader {
	if fetcher == nil {
		fetcher = NewFetcher(nil, "")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultReaderURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &RemoteReader{fetcher: fetcher, baseURL: baseURL}
}

// Read fetches the reduced text and splits off the service's header lines.
func (r *RemoteReader) Read(ctx context.Context, rawURL string) (ReadResult, error) {
	body, err := r.fetcher.Get(ctx, r.baseURL+rawURL)
	if err != nil {
		return ReadResult{}, fmt.Errorf("reader service: %w", err)
	}
	return parseRemoteOutput(string(body)), nil
}

func parseRemoteOutput(raw string) ReadResult {
	var (
		result ReadResult
		kept   []string
	)
	for _, line := range strings.Split(NormalizeText(raw), "\n") {
		trimmed := strings.TrimSpace(line)
		if result.Title == "" && strings.HasPrefix(trimmed, "Title:") {
			result.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "Title:"))
			continue
		}
		if hasAnyPrefix(trimmed, remoteHeaderPrefixes) {
			continue
		}
		kept = append(kept, line)
	}
	result.Text = NormalizeText(strings.Join(kept, "\n"))
	return result
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// ReadabilityReader runs main-content extraction locally and renders it as Markdown.
type ReadabilityReader struct {
	fetcher   *Fetcher
	converter *md.Converter
}

var _ Reader = (*ReadabilityReader)(nil)

// NewReadabilityReader wires the fetcher and a Markdown converter.
func NewReadabilityReader(fetcher *Fetcher) *ReadabilityReader {
	if fetcher == nil {
		fetcher = NewFetcher(nil, "")
	}
	return &ReadabilityReader{fetcher: fetcher, converter: md.NewConverter("", true, nil)}
}

// Read fetches the page and keeps only the readability article body.
func (r *ReadabilityReader) Read(ctx context.Context, rawURL string) (ReadResult, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return ReadResult{}, fmt.Errorf("parse url: %w", err)
	}

	body, err := r.fetcher.Get(ctx, rawURL)
	if err != nil {
		return ReadResult{}, err
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return ReadResult{}, fmt.Errorf("readability: %w", err)
	}

	text := article.TextContent
	if strings.TrimSpace(article.Content) != "" {
		if markdown, convErr := r.converter.ConvertString(article.Content); convErr == nil && strings.TrimSpace(markdown) != "" {
			text = markdown
		}
	}

	return ReadResult{
		Title: strings.TrimSpace(article.Title),
		Text:  NormalizeText(text),
	}, nil
}

// RawTextReducer is the last-resort reader: raw HTML with script, style and
// noscript removed, collapsed to non-empty lines.
type RawTextReducer struct {
	fetcher *Fetcher
}

var _ Reader = (*RawTextReducer)(nil)

// NewRawTextReducer wires the fetcher.
func NewRawTextReducer(fetcher *Fetcher) *RawTextReducer {
	if fetcher == nil {
		fetcher = NewFetcher(nil, "")
	}
	return &RawTextReducer{fetcher: fetcher}
}

// Read fetches the raw page and reduces it to text.
func (r *RawTextReducer) Read(ctx context.Context, rawURL string) (ReadResult, error) {
	doc, err := r.fetcher.Document(ctx, rawURL)
	if err != nil {
		return ReadResult{}, err
	}

	title := documentTitle(doc)
	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}
	return ReadResult{
		Title: title,
		Text:  reduceSelection(root, "script, style, noscript"),
	}, nil
}
