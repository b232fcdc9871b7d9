package classify

import (
	"net/url"
	"regexp"
	"strings"

	"SelfLetter/internal/domain"
)

var (
	arxivPathExpr  = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf|html)/(\d{4}\.\d{4,5})(?:v\d+)?`)
	arxivTokenExpr = regexp.MustCompile(`(?i)\barxiv:(\d{4}\.\d{4,5})(?:v\d+)?`)
	hfPaperExpr    = regexp.MustCompile(`(?i)huggingface\.co/papers/(\d{4}\.\d{4,5})`)
	videoExpr      = regexp.MustCompile(`(?i)(?:youtube\.com/(?:watch\?|embed/|shorts/|live/)|youtu\.be/[A-Za-z0-9_-]+|vimeo\.com/\d+)`)
)

// Classifier maps raw URLs to source kinds without network access.
type Classifier struct {
	// DistinguishOther maps links without an http(s) scheme or host to KindOther
	// instead of the blog default.
	DistinguishOther bool
}

// Classify runs the default classifier.
func Classify(rawURL string) domain.Classification {
	return Classifier{}.Classify(rawURL)
}

// Classify applies the rules in priority order: arXiv, Hugging Face papers, video hosts, blog.
func (c Classifier) Classify(rawURL string) domain.Classification {
	raw := strings.TrimSpace(rawURL)

	if id := ArxivID(raw); id != "" {
		return domain.Classification{Kind: domain.KindArxiv, PaperID: id}
	}

	if m := hfPaperExpr.FindStringSubmatch(raw); m != nil {
		return domain.Classification{Kind: domain.KindHuggingFace, PaperID: m[1]}
	}

	if videoExpr.MatchString(raw) {
		return domain.Classification{Kind: domain.KindVideo}
	}

	if c.DistinguishOther && !isWebURL(raw) {
		return domain.Classification{Kind: domain.KindOther}
	}

	return domain.Classification{Kind: domain.KindBlog}
}

// ArxivID extracts the normalized arXiv identifier, version suffix stripped.
func ArxivID(raw string) string {
	if m := arxivPathExpr.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := arxivTokenExpr.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

func isWebURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}
