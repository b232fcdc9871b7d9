package domain

import "time"

// SourceKind tags which extraction strategy applies to a link.
type SourceKind string

const (
	KindArxiv       SourceKind = "arxiv"
	KindHuggingFace SourceKind = "huggingface"
	KindBlog        SourceKind = "blog"
	KindVideo       SourceKind = "video"
	KindOther       SourceKind = "other"
)

// Classification is the classifier verdict for a raw URL.
type Classification struct {
	Kind SourceKind
	// PaperID is the normalized arXiv identifier (e.g. 2501.12345) when known.
	PaperID string
}

// ExtractedContent is the transient text resolved for one inbox item.
type ExtractedContent struct {
	SourceKind   SourceKind
	CanonicalURL string
	Text         string
	Title        string
	Language     string
}

// SummaryResult is what sinks persist for a completed item.
type SummaryResult struct {
	Title     string
	SourceURL string
	// SubmittedURL is the inbox link when it differs from SourceURL.
	SubmittedURL string
	SourceKind   SourceKind
	SummaryText  string
	Language     string
	GeneratedAt  time.Time
}
