package provider

import (
	"context"
	"errors"
	"fmt"
)

// Provider is a single LLM backend able to serve completion calls.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ErrorClass is the normalized failure classification surfaced to callers.
// The orchestration layer never inspects provider-specific error shapes,
// only this classification.
type ErrorClass int

const (
	Retryable ErrorClass = iota
	NonRetryable
)

func (c ErrorClass) String() string {
	if c == NonRetryable {
		return "non-retryable"
	}
	return "retryable"
}

// CallError wraps a provider failure with its normalized class.
type CallError struct {
	Provider string
	Class    ErrorClass
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("provider %s (%s): %v", e.Provider, e.Class, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// NewCallError builds a classified provider error.
func NewCallError(provider string, class ErrorClass, err error) *CallError {
	return &CallError{Provider: provider, Class: class, Err: err}
}

// ClassOf extracts the normalized class from an error chain. Unclassified
// errors default to retryable so fallback keeps moving.
func ClassOf(err error) ErrorClass {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return Retryable
}

// ErrExhausted is returned only after every configured provider was tried.
type ErrExhausted struct {
	Attempts []error
}

func (e *ErrExhausted) Error() string {
	return fmt.Sprintf("all %d providers exhausted: %v", len(e.Attempts), errors.Join(e.Attempts...))
}

// IsExhausted reports whether err means the whole provider chain failed.
func IsExhausted(err error) bool {
	var ee *ErrExhausted
	return errors.As(err, &ee)
}
