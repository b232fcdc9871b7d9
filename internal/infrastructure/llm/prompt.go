package llm

import (
	"strings"
	"unicode/utf8"
)

const untitled = "(untitled)"

// TruncateRunes cuts s to at most limit runes. A non-positive limit keeps s.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// BuildPrompt fills the {title}, {url} and {content} placeholders.
func BuildPrompt(template, title, url, content string) string {
	if strings.TrimSpace(title) == "" {
		title = untitled
	}
	return strings.NewReplacer(
		"{title}", title,
		"{url}", url,
		"{content}", content,
	).Replace(template)
}
