package markdown

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"SelfLetter/internal/domain"
)

const (
	dayLayout      = "2006-01-02"
	newsletterName = "daily-newsletter.md"
	fence          = "---"
)

var (
	nonWordExpr  = regexp.MustCompile(`[^\p{L}\p{N}_\s-]+`)
	separatorExp = regexp.MustCompile(`[\s_]+`)
	dashRunExpr  = regexp.MustCompile(`-+`)
)

// FrontMatter is the YAML header of every summary file.
type FrontMatter struct {
	Title        string `yaml:"title"`
	SourceURL    string `yaml:"source_url"`
	SubmittedURL string `yaml:"submitted_url,omitempty"`
	Type         string `yaml:"type"`
	Language     string `yaml:"language,omitempty"`
	Date         string `yaml:"date"`
}

// Slugify turns a title into a file-name-safe slug.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonWordExpr.ReplaceAllString(s, "")
	s = separatorExp.ReplaceAllString(s, "-")
	s = dashRunExpr.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if runes := []rune(s); len(runes) > 120 {
		s = strings.Trim(string(runes[:120]), "-")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// RelativePath is <YYYY-MM-DD>/<kind>/<slug>.md for the result's day in loc.
func RelativePath(result domain.SummaryResult, loc *time.Location) string {
	return path.Join(dayOf(result, loc), kindDir(result.SourceKind), Slugify(displayTitle(result))+".md")
}

// Render produces the Markdown document with its front matter.
func Render(result domain.SummaryResult) ([]byte, error) {
	fm := FrontMatter{
		Title:     displayTitle(result),
		SourceURL: result.SourceURL,
		Type:      string(result.SourceKind),
		Language:  result.Language,
		Date:      result.GeneratedAt.UTC().Format(time.RFC3339),
	}
	if result.SubmittedURL != result.SourceURL {
		fm.SubmittedURL = result.SubmittedURL
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshal front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(fence + "\n")
	buf.Write(header)
	buf.WriteString(fence + "\n\n")
	buf.WriteString(strings.TrimSpace(result.SummaryText))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// Parse splits a summary document into its front matter and body.
func Parse(raw []byte) (FrontMatter, string, error) {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	if !strings.HasPrefix(text, fence+"\n") {
		return FrontMatter{}, "", errors.New("missing front matter")
	}
	rest := text[len(fence)+1:]
	end := strings.Index(rest, "\n"+fence+"\n")
	if end < 0 {
		if !strings.HasSuffix(rest, "\n"+fence) {
			return FrontMatter{}, "", errors.New("unterminated front matter")
		}
		end = len(rest) - len(fence) - 1
	}

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return FrontMatter{}, "", fmt.Errorf("parse front matter: %w", err)
	}
	body := ""
	if after := end + len(fence) + 2; after < len(rest) {
		body = rest[after:]
	}
	return fm, strings.TrimSpace(body), nil
}

func displayTitle(result domain.SummaryResult) string {
	if strings.TrimSpace(result.Title) != "" {
		return result.Title
	}
	return result.SourceURL
}

func dayOf(result domain.SummaryResult, loc *time.Location) string {
	at := result.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	if loc != nil {
		at = at.In(loc)
	}
	return at.Format(dayLayout)
}

func kindDir(kind domain.SourceKind) string {
	if kind == "" {
		return string(domain.KindOther)
	}
	return string(kind)
}
