package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatserver/internal/domain"
	apperrors "chatserver/pkg/errors"
	"chatserver/pkg/logger"
)

// MessageRepository - долговременное хранилище сообщений
type MessageRepository interface {
	// AddMessage присваивает сообщению идентификатор
	AddMessage(ctx context.Context, msg *domain.Message) error
	GetMessage(ctx context.Context, id int64) (*domain.Message, error)
	// UpdateDelivery сохраняет статус и список получателей уже сохраненного сообщения
	UpdateDelivery(ctx context.Context, msg *domain.Message) error
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

func (r *messageRepository) AddMessage(ctx context.Context, msg *domain.Message) error {
	body, err := json.Marshal(msg.Body)
	if err != nil {
		return fmt.Errorf("failed to marshal message body: %w", err)
	}

	query := `
		INSERT INTO chat_messages (
			message_id, meeting_id, sender, channel, status,
			body, recipients, shared_with, in_reply_to, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err = r.db.QueryRow(ctx, query,
		msg.MessageID, msg.ContainerID, msg.Sender, string(msg.Channel), string(msg.Status),
		body, nonNil(msg.Recipients), nonNil(msg.SharedWith), msg.InReplyTo, msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		r.log.Error("Failed to store chat message", "error", err, "message_id", msg.MessageID)
		return fmt.Errorf("failed to store message: %w", err)
	}

	return nil
}

func (r *messageRepository) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	query := `
		SELECT id, message_id, meeting_id, sender, channel, status,
		       body, recipients, shared_with, in_reply_to, created_at
		FROM chat_messages
		WHERE id = $1
	`

	var (
		msg     domain.Message
		channel string
		status  string
		body    []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&msg.ID, &msg.MessageID, &msg.ContainerID, &msg.Sender, &channel, &status,
		&body, &msg.Recipients, &msg.SharedWith, &msg.InReplyTo, &msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to get chat message", "error", err, "id", id)
		return nil, err
	}

	msg.Channel = domain.Channel(channel)
	msg.Status = domain.Status(status)
	if err := json.Unmarshal(body, &msg.Body); err != nil {
		return nil, fmt.Errorf("failed to decode message body: %w", err)
	}

	return &msg, nil
}

func (r *messageRepository) UpdateDelivery(ctx context.Context, msg *domain.Message) error {
	query := `
		UPDATE chat_messages
		SET status = $2, shared_with = $3
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, msg.ID, string(msg.Status), nonNil(msg.SharedWith))
	if err != nil {
		r.log.Error("Failed to update chat message", "error", err, "id", msg.ID)
		return fmt.Errorf("failed to update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrMessageNotFound
	}

	return nil
}

// pgx пишет nil срез как NULL, а колонки объявлены NOT NULL
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
