package extraction

import (
	"context"
	"testing"

	"SelfLetter/internal/domain"
)

type namedStrategy string

func (n namedStrategy) Name() string { return string(n) }

func (n namedStrategy) Extract(context.Context, Request) (domain.ExtractedContent, error) {
	return domain.ExtractedContent{}, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedStrategy("arxiv"), domain.KindArxiv)
	reg.Register(namedStrategy("generic"), domain.KindBlog, domain.KindVideo)

	tests := []struct {
		kind domain.SourceKind
		want string
	}{
		{domain.KindArxiv, "arxiv"},
		{domain.KindBlog, "generic"},
		{domain.KindVideo, "generic"},
	}
	for _, tt := range tests {
		s, err := reg.Resolve(tt.kind)
		if err != nil {
			t.Fatalf("resolve %s: %v", tt.kind, err)
		}
		if s.Name() != tt.want {
			t.Fatalf("resolve %s = %s, want %s", tt.kind, s.Name(), tt.want)
		}
	}

	if _, err := reg.Resolve(domain.KindOther); err == nil {
		t.Fatalf("expected error for unregistered kind")
	}

	reg.SetFallback(namedStrategy("generic"))
	s, err := reg.Resolve(domain.KindOther)
	if err != nil || s.Name() != "generic" {
		t.Fatalf("fallback resolve = %v, %v", s, err)
	}
}
