package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAccepted Status = "accepted"
	StatusSending  Status = "sending"
	StatusSent     Status = "sent"
	StatusFailed   Status = "failed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusAccepted, StatusSending, StatusSent, StatusFailed:
		return true
	}
	return false
}

// SendRequest is the inbound payload for a single message send.
type SendRequest struct {
	To        string   `json:"to"`
	Body      string   `json:"body,omitempty"`
	MediaURLs []string `json:"mediaUrls,omitempty"`
}

// SendResult is the provider's acknowledgement of an accepted message.
// Immutable once constructed; produced only on a 2xx provider response.
type SendResult struct {
	Provider   string `json:"provider"`
	MessageID  string `json:"providerMessageId"`
	Status     string `json:"status"`
	MessageURI string `json:"providerMessageUri,omitempty"`
}

// Message is the persisted record of one relay attempt through the service.
type Message struct {
	ID           uuid.UUID  `json:"id"`
	To           string     `json:"to"`
	Body         string     `json:"body,omitempty"`
	MediaURLs    []string   `json:"media_urls,omitempty"`
	Status       Status     `json:"status"`
	Provider     *string    `json:"provider,omitempty"`
	ProviderID   *string    `json:"provider_message_id,omitempty"`
	FailureKind  *string    `json:"failure_kind,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func NewMessage(req SendRequest) *Message {
	// The media_urls column is NOT NULL; a nil slice would be stored as NULL.
	mediaURLs := req.MediaURLs
	if mediaURLs == nil {
		mediaURLs = []string{}
	}

	now := time.Now().UTC()
	return &Message{
		ID:        uuid.New(),
		To:        req.To,
		Body:      req.Body,
		MediaURLs: mediaURLs,
		Status:    StatusAccepted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkAsSending updates the message status to sending
func (m *Message) MarkAsSending() {
	m.Status = StatusSending
	m.UpdatedAt = time.Now().UTC()
}

// MarkAsSent records the provider acknowledgement on the message
func (m *Message) MarkAsSent(result *SendResult) {
	m.Status = StatusSent
	m.Provider = &result.Provider
	m.ProviderID = &result.MessageID
	now := time.Now().UTC()
	m.SentAt = &now
	m.UpdatedAt = now
}

// MarkAsFailed records the failure kind and message
func (m *Message) MarkAsFailed(kind FailureKind, errorMsg string) {
	m.Status = StatusFailed
	k := string(kind)
	m.FailureKind = &k
	m.ErrorMessage = &errorMsg
	m.UpdatedAt = time.Now().UTC()
}

type MessageFilter struct {
	Status    *Status
	To        *string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

type MessageListResult struct {
	Messages   []*Message `json:"messages"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	Update(ctx context.Context, message *Message) error
	List(ctx context.Context, filter MessageFilter) (*MessageListResult, error)
}

// MessageProvider abstracts the external messaging gateway.
type MessageProvider interface {
	// Send relays a validated request to the provider and returns its
	// acknowledgement, or a *SendError classified per FailureKind.
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

// RateLimiter bounds the send rate per destination address.
type RateLimiter interface {
	Allow(ctx context.Context, destination string) (bool, error)
}
