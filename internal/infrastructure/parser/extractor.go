package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"SelfLetter/internal/domain"
	"SelfLetter/internal/extraction"
	"SelfLetter/internal/ports"
)

// DefaultMinChars is the shortest extracted text worth a completion call.
const DefaultMinChars = 200

// ErrContentTooShort signals a blocked or boilerplate-only fetch.
var ErrContentTooShort = errors.New("content too short")

// StrategyExtractor implements ContentExtractor via registered strategies.
type StrategyExtractor struct {
	registry *extraction.Registry
	minChars int
	detector *LanguageDetector
	logger   *slog.Logger
}

var _ ports.ContentExtractor = (*StrategyExtractor)(nil)

// NewStrategyExtractor wires the registry with the minimum viable text length.
func NewStrategyExtractor(reg *extraction.Registry, minChars int, detector *LanguageDetector, log *slog.Logger) *StrategyExtractor {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	return &StrategyExtractor{
		registry: reg,
		minChars: minChars,
		detector: detector,
		logger:   log,
	}
}

// Extract resolves the strategy for the link's kind and validates its output.
// Every failure is returned as an extraction error.
func (s *StrategyExtractor) Extract(ctx context.Context, class domain.Classification, rawURL string) (domain.ExtractedContent, error) {
	if s.registry == nil {
		return domain.ExtractedContent{}, domain.NewExtractionError(fmt.Errorf("extraction registry is not configured"))
	}

	strategy, err := s.registry.Resolve(class.Kind)
	if err != nil {
		return domain.ExtractedContent{}, domain.NewExtractionError(err)
	}

	s.debug("extract", "url", rawURL, "kind", class.Kind, "strategy", strategy.Name())
	content, err := strategy.Extract(ctx, extraction.Request{URL: rawURL, Classification: class})
	if err != nil {
		return domain.ExtractedContent{}, domain.NewExtractionError(fmt.Errorf("%s: %w", strategy.Name(), err))
	}

	content.Text = NormalizeText(content.Text)
	if !Viable(content.Text, s.minChars) {
		s.debug("content below threshold", "url", rawURL, "chars", utf8.RuneCountInString(content.Text), "min", s.minChars)
		return domain.ExtractedContent{}, domain.NewExtractionError(ErrContentTooShort)
	}

	if content.SourceKind == "" {
		content.SourceKind = class.Kind
	}
	if content.CanonicalURL == "" {
		content.CanonicalURL = rawURL
	}
	if content.Title == "" {
		content.Title = firstNonEmpty(guessTitle(content.Text), fallbackTitle(rawURL))
	}
	content.Language = s.detector.Detect(content.Text)

	s.debug("extracted", "url", content.CanonicalURL, "chars", utf8.RuneCountInString(content.Text), "language", content.Language)
	return content, nil
}

func (s *StrategyExtractor) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
