package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/relaypoint/message-relay/internal/domain"
)

// MessageRepository implements domain.MessageRepository using PostgreSQL
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message record
func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) error {
	query := `
		INSERT INTO messages (
			id, recipient, body, media_urls, status, provider, provider_id,
			failure_kind, error_message, sent_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		m.ID, m.To, m.Body, m.MediaURLs, m.Status, m.Provider, m.ProviderID,
		m.FailureKind, m.ErrorMessage, m.SentAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// GetByID retrieves a message by ID
func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT id, recipient, body, media_urls, status, provider, provider_id,
			failure_kind, error_message, sent_at, created_at, updated_at
		FROM messages
		WHERE id = $1
	`

	row := r.db.Pool.QueryRow(ctx, query, id)

	m := &domain.Message{}
	err := row.Scan(
		&m.ID, &m.To, &m.Body, &m.MediaURLs, &m.Status, &m.Provider, &m.ProviderID,
		&m.FailureKind, &m.ErrorMessage, &m.SentAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	return m, nil
}

// Update updates an existing message record
func (r *MessageRepository) Update(ctx context.Context, m *domain.Message) error {
	query := `
		UPDATE messages SET
			status = $2, provider = $3, provider_id = $4, failure_kind = $5,
			error_message = $6, sent_at = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query,
		m.ID, m.Status, m.Provider, m.ProviderID, m.FailureKind,
		m.ErrorMessage, m.SentAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// List lists messages with filters and pagination
func (r *MessageRepository) List(ctx context.Context, filter domain.MessageFilter) (*domain.MessageListResult, error) {
	conditions := []string{"1=1"}
	args := []any{}
	argIndex := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("recipient = $%d", argIndex))
		args = append(args, *filter.To)
		argIndex++
	}

	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.StartDate)
		argIndex++
	}

	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *filter.EndDate)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM messages WHERE %s", whereClause)
	var total int64
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT id, recipient, body, media_urls, status, provider, provider_id,
			failure_kind, error_message, sent_at, created_at, updated_at
		FROM messages
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argIndex, argIndex+1)

	args = append(args, pageSize, offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		m := &domain.Message{}
		err := rows.Scan(
			&m.ID, &m.To, &m.Body, &m.MediaURLs, &m.Status, &m.Provider, &m.ProviderID,
			&m.FailureKind, &m.ErrorMessage, &m.SentAt, &m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &domain.MessageListResult{
		Messages:   messages,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}
