package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	req := SendRequest{
		To:        "+15551234567",
		Body:      "hello",
		MediaURLs: []string{"https://example.com/cat.png"},
	}

	msg := NewMessage(req)

	assert.NotEqual(t, "", msg.ID.String())
	assert.Equal(t, req.To, msg.To)
	assert.Equal(t, req.Body, msg.Body)
	assert.Equal(t, req.MediaURLs, msg.MediaURLs)
	assert.Equal(t, StatusAccepted, msg.Status)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.Equal(t, msg.CreatedAt, msg.UpdatedAt)
}

func TestNewMessage_BodyOnly(t *testing.T) {
	msg := NewMessage(SendRequest{To: "+15551234567", Body: "hi"})

	// Must be an empty slice, not nil: the storage column is NOT NULL and a
	// nil slice would be written as NULL.
	require.NotNil(t, msg.MediaURLs)
	assert.Empty(t, msg.MediaURLs)
}

func TestMessage_MarkAsSent(t *testing.T) {
	msg := NewMessage(SendRequest{To: "+15551234567", Body: "hello"})
	msg.MarkAsSending()
	assert.Equal(t, StatusSending, msg.Status)

	result := &SendResult{
		Provider:   "twilio",
		MessageID:  "SM123",
		Status:     "queued",
		MessageURI: "https://api.twilio.com/2010-04-01/Accounts/AC1/Messages/SM123.json",
	}
	msg.MarkAsSent(result)

	assert.Equal(t, StatusSent, msg.Status)
	require.NotNil(t, msg.Provider)
	assert.Equal(t, "twilio", *msg.Provider)
	require.NotNil(t, msg.ProviderID)
	assert.Equal(t, "SM123", *msg.ProviderID)
	require.NotNil(t, msg.SentAt)
}

func TestMessage_MarkAsFailed(t *testing.T) {
	msg := NewMessage(SendRequest{To: "+15551234567", Body: "hello"})
	msg.MarkAsFailed(FailureTimeout, "attempt timed out after 10s")

	assert.Equal(t, StatusFailed, msg.Status)
	require.NotNil(t, msg.FailureKind)
	assert.Equal(t, "timeout", *msg.FailureKind)
	require.NotNil(t, msg.ErrorMessage)
	assert.Equal(t, "attempt timed out after 10s", *msg.ErrorMessage)
	assert.Nil(t, msg.SentAt)
}

func TestStatus_IsValid(t *testing.T) {
	for _, s := range []Status{StatusAccepted, StatusSending, StatusSent, StatusFailed} {
		assert.True(t, s.IsValid(), string(s))
	}
	assert.False(t, Status("queued").IsValid())
	assert.False(t, Status("").IsValid())
}
