package usecase

import (
	"fmt"
	"html"
	"strings"
)

// BuildDigest renders a short run report in Telegram's HTML message format.
// Titles and URLs are escaped so any character in them is sent literally.
func BuildDigest(report Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>SelfLetter</b>: %d summarized", len(report.Results))
	if report.Skipped > 0 {
		fmt.Fprintf(&b, ", %d duplicates", report.Skipped)
	}
	if report.Retryable > 0 {
		fmt.Fprintf(&b, ", %d to retry", report.Retryable)
	}
	if report.Terminal > 0 {
		fmt.Fprintf(&b, ", %d failed", report.Terminal)
	}
	b.WriteString("\n\n")

	for _, r := range report.Results {
		title := r.Title
		if strings.TrimSpace(title) == "" {
			title = r.SourceURL
		}
		fmt.Fprintf(&b, "• <a href=\"%s\">%s</a> (%s)\n",
			html.EscapeString(r.SourceURL), html.EscapeString(title), html.EscapeString(string(r.SourceKind)))
	}
	return strings.TrimRight(b.String(), "\n")
}
