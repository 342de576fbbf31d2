package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/relaypoint/message-relay/internal/domain"
)

// MessageService orchestrates one relay: validate, rate-limit, record,
// send through the provider, record the outcome.
type MessageService struct {
	repo            domain.MessageRepository
	provider        domain.MessageProvider
	rateLimiter     domain.RateLimiter
	logger          *slog.Logger
	statusBroadcast func(message *domain.Message)
}

// NewMessageService creates a new MessageService
func NewMessageService(
	repo domain.MessageRepository,
	provider domain.MessageProvider,
	rateLimiter domain.RateLimiter,
	logger *slog.Logger,
) *MessageService {
	return &MessageService{
		repo:        repo,
		provider:    provider,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// SetStatusBroadcast sets the function to broadcast status updates
func (s *MessageService) SetStatusBroadcast(fn func(message *domain.Message)) {
	s.statusBroadcast = fn
}

// SendOutcome pairs the stored message record with the provider result.
type SendOutcome struct {
	Message *domain.Message    `json:"message"`
	Result  *domain.SendResult `json:"result,omitempty"`
}

// Send validates and relays a single message. Invalid input never reaches
// the provider; resilience (timeout, retry, breaker) lives inside the
// provider's pipeline, not here.
func (s *MessageService) Send(ctx context.Context, req domain.SendRequest) (*SendOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	allowed, err := s.rateLimiter.Allow(ctx, req.To)
	if err != nil {
		// A rate limiter outage must not block sends.
		s.logger.Warn("rate limiter unavailable", "error", err)
	} else if !allowed {
		return nil, domain.ErrRateLimitExceeded
	}

	message := domain.NewMessage(req)
	if err := s.repo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to record message: %w", err)
	}

	message.MarkAsSending()
	if err := s.repo.Update(ctx, message); err != nil {
		return nil, err
	}
	s.broadcastStatus(message)

	result, err := s.provider.Send(ctx, req)
	if err != nil {
		return s.recordFailure(ctx, message, err)
	}

	message.MarkAsSent(result)
	if err := s.repo.Update(ctx, message); err != nil {
		return nil, err
	}
	s.broadcastStatus(message)

	s.logger.Info("message sent",
		"message_id", message.ID,
		"provider_message_id", result.MessageID,
		"status", result.Status,
	)

	return &SendOutcome{Message: message, Result: result}, nil
}

// recordFailure persists the failure kind on the record, then propagates the
// original error so the handler can map it to a response.
func (s *MessageService) recordFailure(ctx context.Context, message *domain.Message, sendErr error) (*SendOutcome, error) {
	kind := domain.FailureNetwork
	var typed *domain.SendError
	if errors.As(sendErr, &typed) {
		kind = typed.Kind
	}

	message.MarkAsFailed(kind, sendErr.Error())
	if err := s.repo.Update(ctx, message); err != nil {
		s.logger.Error("failed to record send failure", "message_id", message.ID, "error", err)
	}
	s.broadcastStatus(message)

	s.logger.Warn("message failed",
		"message_id", message.ID,
		"failure_kind", kind,
		"error", sendErr,
	)

	return nil, sendErr
}

// GetByID retrieves a message record by ID
func (s *MessageService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	return s.repo.GetByID(ctx, id)
}

// List lists message records with filters
func (s *MessageService) List(ctx context.Context, filter domain.MessageFilter) (*domain.MessageListResult, error) {
	return s.repo.List(ctx, filter)
}

func (s *MessageService) broadcastStatus(message *domain.Message) {
	if s.statusBroadcast != nil {
		s.statusBroadcast(message)
	}
}
