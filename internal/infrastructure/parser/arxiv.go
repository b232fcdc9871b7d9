package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"SelfLetter/internal/classify"
	"SelfLetter/internal/domain"
	"SelfLetter/internal/extraction"
)

const (
	arxivBaseURL        = "https://arxiv.org"
	defaultMinHTMLChars = 500
	arxivStripSelector  = "script, style, noscript, nav, header, footer, .ltx_page_header, .ltx_page_footer"
)

var arxivErrorMarkers = []string{
	"no html for",
	"html is not available for the source",
	"error 404",
}

// arxivHeaderRunes bounds the leading page text searched for error markers,
// so papers that merely mention an HTTP error in their body are kept.
const arxivHeaderRunes = 400

var errHTMLUnavailable = errors.New("arxiv html rendering unavailable")

// ArxivStrategy reads the HTML rendering of a paper and falls back to its abstract page.
type ArxivStrategy struct {
	fetcher      *Fetcher
	baseURL      string
	minHTMLChars int
	logger       *slog.Logger
}

var _ extraction.Strategy = (*ArxivStrategy)(nil)

// NewArxivStrategy wires the fetcher; baseURL defaults to https://arxiv.org.
func NewArxivStrategy(fetcher *Fetcher, baseURL string, minHTMLChars int, log *slog.Logger) *ArxivStrategy {
	if fetcher == nil {
		fetcher = NewFetcher(nil, "")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = arxivBaseURL
	}
	if minHTMLChars <= 0 {
		minHTMLChars = defaultMinHTMLChars
	}
	return &ArxivStrategy{
		fetcher:      fetcher,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		minHTMLChars: minHTMLChars,
		logger:       log,
	}
}

// Name identifies the strategy inside the registry.
func (a *ArxivStrategy) Name() string {
	return "arxiv"
}

// Extract resolves the paper id and returns the best text available for it.
func (a *ArxivStrategy) Extract(ctx context.Context, req extraction.Request) (domain.ExtractedContent, error) {
	id := req.Classification.PaperID
	if id == "" {
		id = classify.ArxivID(req.URL)
	}
	if id == "" {
		return domain.ExtractedContent{}, fmt.Errorf("no arxiv id in %s", req.URL)
	}

	htmlURL := a.baseURL + "/html/" + id
	content, err := a.fromHTML(ctx, htmlURL)
	if err == nil {
		a.debug("arxiv html rendering used", "id", id, "chars", utf8.RuneCountInString(content.Text))
		content.Title = firstNonEmpty(content.Title, "arXiv:"+id)
		return content, nil
	}
	a.debug("arxiv html rendering rejected, using abstract page", "id", id, "error", err)

	absURL := a.baseURL + "/abs/" + id
	content, absErr := a.fromAbstract(ctx, absURL)
	if absErr != nil {
		return domain.ExtractedContent{}, fmt.Errorf("arxiv %s: html: %v; abstract: %w", id, err, absErr)
	}
	content.Title = firstNonEmpty(content.Title, "arXiv:"+id)
	return content, nil
}

func (a *ArxivStrategy) fromHTML(ctx context.Context, pageURL string) (domain.ExtractedContent, error) {
	doc, err := a.fetcher.Document(ctx, pageURL)
	if err != nil {
		return domain.ExtractedContent{}, err
	}

	title := strings.Join(strings.Fields(doc.Find("h1.ltx_title_document").First().Text()), " ")
	if title == "" {
		title = documentTitle(doc)
	}

	if marker := errorMarker(doc); marker != "" {
		return domain.ExtractedContent{}, fmt.Errorf("%w: page contains %q", errHTMLUnavailable, marker)
	}

	root := doc.Find("article, .ltx_page_main, main").First()
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	text := reduceSelection(root, arxivStripSelector)
	if utf8.RuneCountInString(text) < a.minHTMLChars {
		return domain.ExtractedContent{}, fmt.Errorf("%w: only %d chars", errHTMLUnavailable, utf8.RuneCountInString(text))
	}

	return domain.ExtractedContent{
		SourceKind:   domain.KindArxiv,
		CanonicalURL: pageURL,
		Text:         text,
		Title:        title,
	}, nil
}

// errorMarker returns the first error marker found in the page title,
// the top-level headings or the leading body text.
func errorMarker(doc *goquery.Document) string {
	head := strings.Join(strings.Fields(doc.Find("body").First().Text()), " ")
	if runes := []rune(head); len(runes) > arxivHeaderRunes {
		head = string(runes[:arxivHeaderRunes])
	}
	region := strings.ToLower(strings.Join([]string{
		doc.Find("title").First().Text(),
		doc.Find("h1").First().Text(),
		head,
	}, " "))
	for _, marker := range arxivErrorMarkers {
		if strings.Contains(region, marker) {
			return marker
		}
	}
	return ""
}

func (a *ArxivStrategy) fromAbstract(ctx context.Context, pageURL string) (domain.ExtractedContent, error) {
	doc, err := a.fetcher.Document(ctx, pageURL)
	if err != nil {
		return domain.ExtractedContent{}, err
	}

	title, abstract := parseAbstractPage(doc)
	text := strings.TrimSpace(title + "\n\n" + abstract)
	if abstract == "" {
		text = reduceSelection(doc.Find("body").First(), "script, style, noscript, nav, header, footer")
	}

	return domain.ExtractedContent{
		SourceKind:   domain.KindArxiv,
		CanonicalURL: pageURL,
		Text:         text,
		Title:        title,
	}, nil
}

func parseAbstractPage(doc *goquery.Document) (string, string) {
	title := strings.Join(strings.Fields(doc.Find("h1.title").First().Text()), " ")
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	abstract := strings.Join(strings.Fields(doc.Find("blockquote.abstract").First().Text()), " ")
	abstract = strings.TrimSpace(strings.TrimPrefix(abstract, "Abstract:"))

	return title, abstract
}

func (a *ArxivStrategy) debug(msg string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
