package service

import (
	"context"

	"chatserver/internal/domain"
	"chatserver/internal/repository"
	"chatserver/pkg/logger"
)

const defaultTranscriptLimit = 500

type TranscriptService interface {
	EventSubscriber
	GetTranscript(ctx context.Context, meetingID, username string, limit int) (*domain.Transcript, error)
	ListTranscripts(ctx context.Context, username string) ([]domain.TranscriptSummary, error)
}

type transcriptService struct {
	repo repository.TranscriptRepository
	log  logger.Logger
}

func NewTranscriptService(repo repository.TranscriptRepository, log logger.Logger) TranscriptService {
	return &transcriptService{repo: repo, log: log}
}

func (s *transcriptService) HandleEvent(ctx context.Context, evt domain.MeetingEvent) {
	var err error
	switch evt.Type {
	case domain.MeetingMessagePosted, domain.MeetingMessageShadowed:
		if evt.Message == nil {
			return
		}
		err = s.repo.AppendMessage(ctx, evt.MeetingID, evt.Usernames, evt.Message)
	case domain.MeetingPendingAbandoned:
		if evt.Pending == nil {
			return
		}
		err = s.repo.ArchiveAbandoned(ctx, evt.MeetingID, *evt.Pending)
	default:
		return
	}
	if err != nil {
		s.log.Warn("Failed to record transcript event", "error", err, "type", evt.Type, "meeting_id", evt.MeetingID)
	}
}

func (s *transcriptService) GetTranscript(ctx context.Context, meetingID, username string, limit int) (*domain.Transcript, error) {
	if limit <= 0 || limit > defaultTranscriptLimit {
		limit = defaultTranscriptLimit
	}
	messages, err := s.repo.GetTranscript(ctx, meetingID, username, limit)
	if err != nil {
		return nil, err
	}
	return &domain.Transcript{MeetingID: meetingID, Owner: username, Messages: messages}, nil
}

func (s *transcriptService) ListTranscripts(ctx context.Context, username string) ([]domain.TranscriptSummary, error) {
	return s.repo.ListTranscripts(ctx, username)
}
