package domain

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSendError_Retryable(t *testing.T) {
	tests := []struct {
		name string
		err  *SendError
		want bool
	}{
		{"timeout", NewSendError(FailureTimeout, 0, "", nil), true},
		{"network", NewSendError(FailureNetwork, 0, "", errors.New("connection refused")), true},
		{"server error", NewSendError(FailureTransient, 503, "unavailable", nil), true},
		{"throttled", NewSendError(FailureTransient, 429, "too many requests", nil), true},
		{"bad request", NewSendError(FailurePermanent, 400, "invalid To", nil), false},
		{"unauthorized", NewSendError(FailurePermanent, 401, "", nil), false},
		{"circuit open", NewSendError(FailureCircuitOpen, 0, "", ErrCircuitOpen), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Retryable())
		})
	}
}

func TestSendError_CountsTowardBreaker(t *testing.T) {
	tests := []struct {
		name string
		err  *SendError
		want bool
	}{
		{"timeout", NewSendError(FailureTimeout, 0, "", nil), true},
		{"network", NewSendError(FailureNetwork, 0, "", errors.New("reset by peer")), true},
		{"server error", NewSendError(FailureTransient, 500, "", nil), true},
		{"bad gateway", NewSendError(FailureTransient, 502, "", nil), true},
		{"throttled is excluded", NewSendError(FailureTransient, 429, "", nil), false},
		{"bad request is excluded", NewSendError(FailurePermanent, 400, "", nil), false},
		{"circuit open is excluded", NewSendError(FailureCircuitOpen, 0, "", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.CountsTowardBreaker())
		})
	}
}

func TestNewSendError_TruncatesBody(t *testing.T) {
	body := strings.Repeat("x", MaxErrorBodyBytes+500)
	err := NewSendError(FailurePermanent, 400, body, nil)

	assert.Len(t, err.Body, MaxErrorBodyBytes)
}

func TestNewSendError_TruncatesOnRuneBoundary(t *testing.T) {
	// Three-byte runes do not divide MaxErrorBodyBytes evenly, so a byte-index
	// cut would land mid-rune.
	body := strings.Repeat("界", MaxErrorBodyBytes/3+10)
	err := NewSendError(FailurePermanent, 400, body, nil)

	assert.LessOrEqual(t, len(err.Body), MaxErrorBodyBytes)
	assert.True(t, utf8.ValidString(err.Body))
}

func TestSendError_Unwrap(t *testing.T) {
	inner := errors.New("dial tcp: i/o timeout")
	err := NewSendError(FailureNetwork, 0, "", inner)

	assert.ErrorIs(t, err, inner)
}

func TestSendError_Error(t *testing.T) {
	withBody := NewSendError(FailurePermanent, 400, "invalid To", nil)
	assert.Contains(t, withBody.Error(), "status 400")
	assert.Contains(t, withBody.Error(), "invalid To")

	wrapped := NewSendError(FailureNetwork, 0, "", errors.New("connection refused"))
	assert.Contains(t, wrapped.Error(), "connection refused")
}
