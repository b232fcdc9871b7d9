package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"SelfLetter/internal/domain"
	"SelfLetter/internal/extraction"
)

// GenericStrategy asks a primary reader for main content and falls back to a
// raw-HTML reduction when the reader fails or returns nothing.
type GenericStrategy struct {
	primary  Reader
	fallback Reader
	logger   *slog.Logger
}

var _ extraction.Strategy = (*GenericStrategy)(nil)

// NewGenericStrategy wires both readers; fallback may be nil.
func NewGenericStrategy(primary, fallback Reader, log *slog.Logger) *GenericStrategy {
	return &GenericStrategy{primary: primary, fallback: fallback, logger: log}
}

// Name identifies the strategy inside the registry.
func (g *GenericStrategy) Name() string {
	return "generic"
}

// Extract reads the link with the primary reader, then the fallback.
func (g *GenericStrategy) Extract(ctx context.Context, req extraction.Request) (domain.ExtractedContent, error) {
	if g.primary == nil && g.fallback == nil {
		return domain.ExtractedContent{}, errors.New("generic strategy has no readers")
	}

	var (
		result     ReadResult
		primaryErr error
	)
	if g.primary != nil {
		result, primaryErr = g.primary.Read(ctx, req.URL)
	}

	if primaryErr != nil || strings.TrimSpace(result.Text) == "" {
		if g.fallback == nil {
			if primaryErr != nil {
				return domain.ExtractedContent{}, primaryErr
			}
			return domain.ExtractedContent{}, fmt.Errorf("reader returned no text for %s", req.URL)
		}

		g.debug("primary reader gave nothing, reducing raw html", "url", req.URL, "error", primaryErr)
		fallback, err := g.fallback.Read(ctx, req.URL)
		if err != nil {
			if primaryErr != nil {
				return domain.ExtractedContent{}, fmt.Errorf("reader: %v; raw html: %w", primaryErr, err)
			}
			return domain.ExtractedContent{}, fmt.Errorf("raw html: %w", err)
		}
		fallback.Title = firstNonEmpty(result.Title, fallback.Title)
		result = fallback
	}

	text := NormalizeText(result.Text)
	title := firstNonEmpty(result.Title, guessTitle(text), fallbackTitle(req.URL))

	return domain.ExtractedContent{
		SourceKind:   req.Classification.Kind,
		CanonicalURL: req.URL,
		Text:         text,
		Title:        title,
	}, nil
}

func (g *GenericStrategy) debug(msg string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}

// HuggingFaceStrategy reads the paper page generically and, when that yields
// too little, resolves the underlying arXiv paper instead.
type HuggingFaceStrategy struct {
	generic  extraction.Strategy
	arxiv    extraction.Strategy
	minChars int
	logger   *slog.Logger
}

var _ extraction.Strategy = (*HuggingFaceStrategy)(nil)

// NewHuggingFaceStrategy wires the generic and arXiv strategies.
func NewHuggingFaceStrategy(generic, arxiv extraction.Strategy, minChars int, log *slog.Logger) *HuggingFaceStrategy {
	return &HuggingFaceStrategy{generic: generic, arxiv: arxiv, minChars: minChars, logger: log}
}

// Name identifies the strategy inside the registry.
func (h *HuggingFaceStrategy) Name() string {
	return "huggingface"
}

// Extract prefers the page itself and falls back to arXiv by paper id.
func (h *HuggingFaceStrategy) Extract(ctx context.Context, req extraction.Request) (domain.ExtractedContent, error) {
	content, err := h.generic.Extract(ctx, req)
	if err == nil && Viable(content.Text, h.minChars) {
		return content, nil
	}
	if req.Classification.PaperID == "" || h.arxiv == nil {
		return content, err
	}

	if h.logger != nil {
		h.logger.Debug("huggingface page too thin, resolving arxiv paper", "paper", req.Classification.PaperID, "error", err)
	}
	paper, arxivErr := h.arxiv.Extract(ctx, extraction.Request{
		URL:            req.URL,
		Classification: domain.Classification{Kind: domain.KindArxiv, PaperID: req.Classification.PaperID},
	})
	if arxivErr != nil {
		if err != nil {
			return domain.ExtractedContent{}, fmt.Errorf("page: %v; arxiv: %w", err, arxivErr)
		}
		return content, nil
	}
	paper.SourceKind = domain.KindHuggingFace
	return paper, nil
}
