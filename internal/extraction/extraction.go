package extraction

import (
	"context"
	"fmt"

	"SelfLetter/internal/domain"
)

// Request carries everything a strategy needs to resolve a link.
type Request struct {
	URL            string
	Classification domain.Classification
}

// Strategy captures a single per-kind extraction implementation (arXiv, generic reader, etc.).
type Strategy interface {
	Name() string
	Extract(ctx context.Context, req Request) (domain.ExtractedContent, error)
}

// Registry keeps a mapping from source kinds to their strategies.
type Registry struct {
	strategies map[domain.SourceKind]Strategy
	fallback   Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[domain.SourceKind]Strategy{}}
}

// Register adds or replaces the strategy for the given kinds.
func (r *Registry) Register(strategy Strategy, kinds ...domain.SourceKind) {
	if r.strategies == nil {
		r.strategies = map[domain.SourceKind]Strategy{}
	}
	for _, kind := range kinds {
		r.strategies[kind] = strategy
	}
}

// SetFallback selects the strategy used for kinds nothing was registered for.
func (r *Registry) SetFallback(strategy Strategy) {
	r.fallback = strategy
}

// Resolve returns the strategy for a kind or an error if none applies.
func (r *Registry) Resolve(kind domain.SourceKind) (Strategy, error) {
	if strategy, ok := r.strategies[kind]; ok {
		return strategy, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("no extraction strategy registered for %s", kind)
}
