package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chatserver/internal/domain"
	"chatserver/pkg/logger"
)

const (
	// Префиксы ключей Redis
	TranscriptKeyPrefix      = "chat:transcript:%s:%s"
	TranscriptIndexKeyPrefix = "chat:transcripts:%s"
	AbandonedKeyPrefix       = "chat:meeting:%s:abandoned"
)

// TranscriptRepository - записи сообщений встречи для каждого владельца транскрипта
type TranscriptRepository interface {
	AppendMessage(ctx context.Context, meetingID string, owners []string, msg *domain.Message) error
	GetTranscript(ctx context.Context, meetingID, owner string, limit int) ([]*domain.Message, error)
	ListTranscripts(ctx context.Context, owner string) ([]domain.TranscriptSummary, error)
	// ArchiveAbandoned сохраняет неодобренное сообщение встречи, которая закончилась
	ArchiveAbandoned(ctx context.Context, meetingID string, pending domain.PendingMessage) error
}

type transcriptRepository struct {
	rdb *redis.Client
	ttl time.Duration
	log logger.Logger
}

func NewTranscriptRepository(rdb *redis.Client, ttl time.Duration, log logger.Logger) TranscriptRepository {
	return &transcriptRepository{
		rdb: rdb,
		ttl: ttl,
		log: log,
	}
}

func transcriptKey(meetingID, owner string) string {
	return fmt.Sprintf(TranscriptKeyPrefix, meetingID, owner)
}

func transcriptIndexKey(owner string) string {
	return fmt.Sprintf(TranscriptIndexKeyPrefix, owner)
}

func abandonedKey(meetingID string) string {
	return fmt.Sprintf(AbandonedKeyPrefix, meetingID)
}

func (r *transcriptRepository) AppendMessage(ctx context.Context, meetingID string, owners []string, msg *domain.Message) error {
	if len(owners) == 0 {
		return nil
	}

	messageJSON, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("Failed to marshal message", "error", err)
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// timestamp в миллисекундах как score для сортировки
	score := float64(msg.CreatedAt.UnixMilli())

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, owner := range owners {
			key := transcriptKey(meetingID, owner)
			pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: messageJSON})
			pipe.Expire(ctx, key, r.ttl)

			index := transcriptIndexKey(owner)
			pipe.ZAdd(ctx, index, redis.Z{Score: score, Member: meetingID})
			pipe.Expire(ctx, index, r.ttl)
		}
		return nil
	})
	if err != nil {
		r.log.Error("Failed to append transcript message", "error", err, "meeting_id", meetingID)
		return fmt.Errorf("failed to append transcript: %w", err)
	}

	return nil
}

func (r *transcriptRepository) GetTranscript(ctx context.Context, meetingID, owner string, limit int) ([]*domain.Message, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	// Последние N сообщений, от новых к старым
	messagesJSON, err := r.rdb.ZRevRange(ctx, transcriptKey(meetingID, owner), 0, stop).Result()
	if err != nil {
		if err == redis.Nil {
			return []*domain.Message{}, nil
		}
		r.log.Error("Failed to get transcript", "error", err, "meeting_id", meetingID)
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	messages := make([]*domain.Message, 0, len(messagesJSON))
	for i := len(messagesJSON) - 1; i >= 0; i-- {
		var message domain.Message
		if err := json.Unmarshal([]byte(messagesJSON[i]), &message); err != nil {
			r.log.Warn("Failed to unmarshal transcript message", "error", err)
			continue
		}
		messages = append(messages, &message)
	}

	return messages, nil
}

func (r *transcriptRepository) ListTranscripts(ctx context.Context, owner string) ([]domain.TranscriptSummary, error) {
	entries, err := r.rdb.ZRevRangeWithScores(ctx, transcriptIndexKey(owner), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []domain.TranscriptSummary{}, nil
		}
		r.log.Error("Failed to list transcripts", "error", err, "owner", owner)
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}

	counts := make([]*redis.IntCmd, len(entries))
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, e := range entries {
			counts[i] = pipe.ZCard(ctx, transcriptKey(fmt.Sprint(e.Member), owner))
		}
		return nil
	})
	if err != nil {
		r.log.Error("Failed to count transcript messages", "error", err, "owner", owner)
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}

	summaries := make([]domain.TranscriptSummary, 0, len(entries))
	for i, e := range entries {
		// ключ транскрипта мог истечь раньше индекса
		if counts[i].Val() == 0 {
			continue
		}
		summaries = append(summaries, domain.TranscriptSummary{
			MeetingID:     fmt.Sprint(e.Member),
			MessageCount:  counts[i].Val(),
			LastMessageAt: time.UnixMilli(int64(e.Score)),
		})
	}

	return summaries, nil
}

func (r *transcriptRepository) ArchiveAbandoned(ctx context.Context, meetingID string, pending domain.PendingMessage) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending message: %w", err)
	}

	key := abandonedKey(meetingID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		r.log.Error("Failed to archive abandoned message", "error", err, "meeting_id", meetingID)
		return fmt.Errorf("failed to archive abandoned message: %w", err)
	}

	return nil
}
