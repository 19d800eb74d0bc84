package service

import (
	"context"
	"time"

	"chatserver/internal/domain"
	"chatserver/internal/repository"
	"chatserver/pkg/logger"
)

// MeetingHistoryService хранит записи о встречах после их выселения из памяти
type MeetingHistoryService interface {
	EventSubscriber
	GetRecord(ctx context.Context, meetingID string) (*domain.MeetingRecord, error)
}

type meetingHistoryService struct {
	repo repository.MeetingRecordRepository
	log  logger.Logger
}

func NewMeetingHistoryService(repo repository.MeetingRecordRepository, log logger.Logger) MeetingHistoryService {
	return &meetingHistoryService{repo: repo, log: log}
}

func (s *meetingHistoryService) HandleEvent(ctx context.Context, evt domain.MeetingEvent) {
	if evt.Info == nil {
		return
	}

	record := &domain.MeetingRecord{
		ID:           evt.MeetingID,
		ContainerID:  evt.ContainerID,
		Creator:      evt.Info.Creator,
		Moderated:    evt.Info.Moderated,
		MessageCount: evt.Info.MessageCount,
		Occupants:    evt.Usernames,
		CreatedAt:    evt.Info.CreatedAt,
	}

	var err error
	switch evt.Type {
	case domain.MeetingCreated:
		err = s.repo.Create(ctx, record)
	case domain.MeetingEnded:
		endedAt := evt.At
		if endedAt.IsZero() {
			endedAt = time.Now()
		}
		record.EndedAt = &endedAt
		err = s.repo.MarkEnded(ctx, record)
	default:
		return
	}
	if err != nil {
		s.log.Warn("Failed to record meeting history", "error", err, "type", evt.Type, "meeting_id", evt.MeetingID)
	}
}

func (s *meetingHistoryService) GetRecord(ctx context.Context, meetingID string) (*domain.MeetingRecord, error) {
	return s.repo.GetByID(ctx, meetingID)
}
