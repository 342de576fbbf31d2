package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Domain const errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrCircuitOpen       = errors.New("circuit breaker is open")
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (e ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", e.Errors[0].Error())
}

func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// ConfigurationError indicates missing or contradictory provider settings.
// It is an operator error, surfaced before any network attempt and never retried.
type ConfigurationError struct {
	Reason string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("provider configuration: %s", e.Reason)
}

func NewConfigurationError(reason string) ConfigurationError {
	return ConfigurationError{Reason: reason}
}

// FailureKind classifies a send failure so that retry and circuit breaker
// decisions are made by inspecting data rather than matching error types.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureNetwork     FailureKind = "network"
	FailureTransient   FailureKind = "provider_transient"
	FailurePermanent   FailureKind = "provider_permanent"
	FailureCircuitOpen FailureKind = "circuit_open"
)

// MaxErrorBodyBytes bounds how much of a provider error body is retained.
const MaxErrorBodyBytes = 1024

// SendError is the typed outcome of a failed send. StatusCode and Body are
// populated for provider HTTP errors; Body is truncated to MaxErrorBodyBytes.
type SendError struct {
	Kind       FailureKind
	StatusCode int
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Body != "":
		return fmt.Sprintf("send failed (%s, status %d): %s", e.Kind, e.StatusCode, e.Body)
	case e.StatusCode > 0:
		return fmt.Sprintf("send failed (%s, status %d)", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("send failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("send failed (%s)", e.Kind)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the pipeline may issue another attempt for this
// failure: timeouts, network errors, and 429/5xx provider responses.
func (e *SendError) Retryable() bool {
	switch e.Kind {
	case FailureTimeout, FailureNetwork, FailureTransient:
		return true
	}
	return false
}

// CountsTowardBreaker reports whether this failure is a provider-health
// signal. 4xx responses, including 429, indicate bad input or throttling of
// this caller and are excluded from breaker accounting.
func (e *SendError) CountsTowardBreaker() bool {
	switch e.Kind {
	case FailureTimeout, FailureNetwork:
		return true
	case FailureTransient:
		return e.StatusCode >= 500
	}
	return false
}

// NewSendError builds a SendError, truncating body to MaxErrorBodyBytes.
// The cut backs up to a rune boundary so the retained body stays valid UTF-8.
func NewSendError(kind FailureKind, statusCode int, body string, err error) *SendError {
	if len(body) > MaxErrorBodyBytes {
		cut := MaxErrorBodyBytes
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return &SendError{
		Kind:       kind,
		StatusCode: statusCode,
		Body:       body,
		Err:        err,
	}
}
