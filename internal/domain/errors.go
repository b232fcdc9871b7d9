package domain

import (
	"errors"
	"fmt"
)

// ErrorKind tags pipeline failures so the coordinator can route them.
type ErrorKind string

const (
	ErrMissingInput  ErrorKind = "missing_input"
	ErrExtraction    ErrorKind = "extraction"
	ErrSummarization ErrorKind = "summarization"
	ErrPersistence   ErrorKind = "persistence"
)

// Retryable reports whether an item failing with this kind is attempted again on the next run.
func (k ErrorKind) Retryable() bool {
	return k != ErrMissingInput
}

// PipelineError carries an error kind through the pipeline.
type PipelineError struct {
	Kind ErrorKind
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewMissingInputError reports an item that lacks a required property.
func NewMissingInputError(property string) error {
	return &PipelineError{Kind: ErrMissingInput, Err: fmt.Errorf("missing URL property '%s'", property)}
}

// NewExtractionError wraps a fetch or content failure.
func NewExtractionError(err error) error {
	return wrapKind(ErrExtraction, err)
}

// NewSummarizationError wraps a completion endpoint failure.
func NewSummarizationError(err error) error {
	return wrapKind(ErrSummarization, err)
}

// NewPersistenceError wraps a sink write failure.
func NewPersistenceError(err error) error {
	return wrapKind(ErrPersistence, err)
}

func wrapKind(kind ErrorKind, err error) error {
	var pe *PipelineError
	if errors.As(err, &pe) && pe.Kind == kind {
		return err
	}
	return &PipelineError{Kind: kind, Err: err}
}

// KindOf returns the kind of the outermost PipelineError in err's chain.
// Untagged errors are reported with ok == false.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
