package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUpstream marks a failed call to a model provider.
	ErrUpstream = errors.New("models: upstream failure")
	// ErrTimeout marks a model call that exceeded its deadline.
	ErrTimeout = errors.New("models: timeout")
)

// ErrModelUnavailable reports a provider that could not be reached or
// answered with something other than a model response.
type ErrModelUnavailable struct {
	Provider string
	Body     string
	Cause    error
}

func (e *ErrModelUnavailable) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("model %s unavailable: %v", e.Provider, e.Cause)
	case e.Body != "":
		return fmt.Sprintf("model %s unavailable: %s", e.Provider, e.Body)
	}
	return fmt.Sprintf("model %s unavailable", e.Provider)
}

func (e *ErrModelUnavailable) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrUpstream) match an unavailable provider.
func (e *ErrModelUnavailable) Is(target error) bool { return target == ErrUpstream }

// HandleError classifies SDK errors. Every result matches ErrUpstream;
// deadline expiry also matches ErrTimeout.
func HandleError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %w", ErrUpstream, ErrTimeout, err)
	}
	if errors.Is(err, ErrUpstream) {
		return err
	}

	errStr := strings.ToLower(err.Error())

	if containsAny(errStr, "401", "403", "unauthorized", "invalid api key", "api key", "forbidden") {
		return fmt.Errorf("%w: authentication failed: %w", ErrUpstream, err)
	}

	if containsAny(errStr, "429", "rate limit", "quota", "too many requests") {
		return fmt.Errorf("%w: rate limited: %w", ErrUpstream, err)
	}

	if containsAny(errStr, "context length", "too many tokens", "max tokens", "token limit") {
		return fmt.Errorf("%w: context too long: %w", ErrUpstream, err)
	}

	if containsAny(errStr, "model not found", "404", "not found") {
		return fmt.Errorf("%w: model not found: %w", ErrUpstream, err)
	}

	if containsAny(errStr, "timeout", "deadline exceeded") {
		return fmt.Errorf("%w: %w: %w", ErrUpstream, ErrTimeout, err)
	}

	if containsAny(errStr, "connection", "eof", "dial", "refused") {
		return fmt.Errorf("%w: connection error: %w", ErrUpstream, err)
	}

	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
