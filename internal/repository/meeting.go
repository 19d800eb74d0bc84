package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatserver/internal/domain"
	apperrors "chatserver/pkg/errors"
	"chatserver/pkg/logger"
)

// MeetingRecordRepository хранит историю встреч в Postgres
type MeetingRecordRepository interface {
	Create(ctx context.Context, record *domain.MeetingRecord) error
	MarkEnded(ctx context.Context, record *domain.MeetingRecord) error
	GetByID(ctx context.Context, id string) (*domain.MeetingRecord, error)
}

type meetingRecordRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMeetingRecordRepository(db *pgxpool.Pool, log logger.Logger) MeetingRecordRepository {
	return &meetingRecordRepository{db: db, log: log}
}

func (r *meetingRecordRepository) Create(ctx context.Context, record *domain.MeetingRecord) error {
	query := `
		INSERT INTO meetings (id, container_id, creator, moderated, message_count, occupants, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.ContainerID, record.Creator, record.Moderated,
		record.MessageCount, nonNil(record.Occupants), record.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create meeting record", "error", err, "meeting_id", record.ID)
		return err
	}

	return nil
}

func (r *meetingRecordRepository) MarkEnded(ctx context.Context, record *domain.MeetingRecord) error {
	endedAt := time.Now()
	if record.EndedAt != nil {
		endedAt = *record.EndedAt
	}

	query := `
		UPDATE meetings
		SET ended_at = $2, message_count = $3, occupants = $4, moderated = $5
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		record.ID, endedAt, record.MessageCount, nonNil(record.Occupants), record.Moderated,
	)
	if err != nil {
		r.log.Error("Failed to mark meeting ended", "error", err, "meeting_id", record.ID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrMeetingNotFound
	}

	return nil
}

func (r *meetingRecordRepository) GetByID(ctx context.Context, id string) (*domain.MeetingRecord, error) {
	query := `
		SELECT id, container_id, creator, moderated, message_count, occupants, created_at, ended_at
		FROM meetings
		WHERE id = $1
	`

	record := &domain.MeetingRecord{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&record.ID, &record.ContainerID, &record.Creator, &record.Moderated,
		&record.MessageCount, &record.Occupants, &record.CreatedAt, &record.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMeetingNotFound
		}
		r.log.Error("Failed to get meeting record", "error", err, "meeting_id", id)
		return nil, err
	}

	return record, nil
}
