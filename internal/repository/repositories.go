package repository

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"chatserver/pkg/logger"
)

type Repositories struct {
	Meetings       MeetingStorage
	MeetingRecords MeetingRecordRepository
	Messages       MessageRepository
	Containers     ContainerRepository
	Transcripts    TranscriptRepository
	Audit          AuditRepository
	RateLimit      RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, transcriptTTL time.Duration, log logger.Logger) *Repositories {
	repos := &Repositories{
		Meetings:       NewMeetingStorage(),
		MeetingRecords: NewMeetingRecordRepository(db, log),
		Messages:       NewMessageRepository(db, log),
		Containers:     NewContainerRepository(db, log),
		Transcripts:    NewTranscriptRepository(redis, transcriptTTL, log),
		Audit:          NewAuditRepository(db, log),
		RateLimit:      NewRateLimitRepository(redis, log),
	}

	log.Info("Repositories initialized", "transcript_ttl", transcriptTTL.String())

	return repos
}
