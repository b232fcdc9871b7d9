package parser

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const blockSelector = "p, div, br, li, dt, dd, tr, pre, blockquote, section, article, figcaption, h1, h2, h3, h4, h5, h6"

var titleSkipWords = map[string]struct{}{
	"abstract": {},
	"arxiv":    {},
	"title":    {},
	"youtube":  {},
	"video":    {},
}

// NormalizeText converts line endings, trims trailing spaces and collapses
// runs of blank lines. Applying it twice yields the same bytes.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if strings.TrimSpace(line) == "" {
			if len(out) > 0 {
				blank = true
			}
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// Viable reports whether text is long enough to be worth summarizing.
func Viable(text string, minChars int) bool {
	trimmed := strings.TrimSpace(text)
	return trimmed != "" && utf8.RuneCountInString(trimmed) >= minChars
}

// reduceSelection strips the given nodes and returns the remaining text as
// non-empty, whitespace-collapsed lines.
func reduceSelection(sel *goquery.Selection, strip string) string {
	if strip != "" {
		sel.Find(strip).Remove()
	}
	sel.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(sel.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func documentTitle(doc *goquery.Document) string {
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}

// guessTitle picks the first plausible heading line of extracted text.
func guessTitle(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		line = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
		n := utf8.RuneCountInString(line)
		if n <= 10 || n >= 200 {
			continue
		}
		if _, skip := titleSkipWords[strings.ToLower(line)]; skip {
			continue
		}
		return line
	}
	return ""
}

// fallbackTitle names a page by its host when nothing better is known.
func fallbackTitle(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return fmt.Sprintf("Article from %s", parsed.Host)
}
