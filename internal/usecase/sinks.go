package usecase

import (
	"context"
	"fmt"

	"SelfLetter/internal/domain"
	"SelfLetter/internal/ports"
)

// NamedSink labels a sink for error messages.
type NamedSink struct {
	Name string
	Sink ports.SummarySink
}

// FanOutSink saves to each sink in order and stops at the first failure.
type FanOutSink struct {
	sinks []NamedSink
}

var _ ports.SummarySink = (*FanOutSink)(nil)

// NewFanOutSink keeps the non-nil sinks.
func NewFanOutSink(sinks ...NamedSink) *FanOutSink {
	out := &FanOutSink{}
	for _, s := range sinks {
		if s.Sink != nil {
			out.sinks = append(out.sinks, s)
		}
	}
	return out
}

// Len reports how many sinks are configured.
func (f *FanOutSink) Len() int {
	return len(f.sinks)
}

// Save writes the result to every sink.
func (f *FanOutSink) Save(ctx context.Context, result domain.SummaryResult) error {
	for _, s := range f.sinks {
		if err := s.Sink.Save(ctx, result); err != nil {
			return fmt.Errorf("%s sink: %w", s.Name, err)
		}
	}
	return nil
}
