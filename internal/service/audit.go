package service

import (
	"context"
	"time"

	"chatserver/internal/domain"
	"chatserver/internal/repository"
	"chatserver/pkg/logger"
)

// AuditService пишет журнал модерации и жизненного цикла встреч
type AuditService interface {
	EventSubscriber
	LogEvent(ctx context.Context, actor, actorRole, meetingID, eventType string, payload map[string]interface{}) error
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actor, actorRole, meetingID, eventType string, payload map[string]interface{}) error {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	auditLog := &domain.AuditLog{
		EventTime:     time.Now(),
		ActorUsername: actor,
		ActorRole:     actorRole,
		MeetingID:     meetingID,
		EventType:     eventType,
		Payload:       payload,
	}

	return s.auditRepo.CreateLog(ctx, auditLog)
}

func (s *auditService) HandleEvent(ctx context.Context, evt domain.MeetingEvent) {
	eventType, role, payload, ok := auditEntryFor(evt)
	if !ok {
		return
	}
	if err := s.LogEvent(ctx, evt.Actor, role, evt.MeetingID, eventType, payload); err != nil {
		s.log.Warn("Failed to write audit log", "error", err, "event_type", eventType, "meeting_id", evt.MeetingID)
	}
}

// auditEntryFor отбирает события, которые попадают в журнал аудита
func auditEntryFor(evt domain.MeetingEvent) (string, string, map[string]interface{}, bool) {
	payload := map[string]interface{}{}
	if evt.ContainerID != "" {
		payload["container_id"] = evt.ContainerID
	}

	switch evt.Type {
	case domain.MeetingCreated:
		payload["occupants"] = evt.Usernames
		return domain.EventTypeMeetingCreated, domain.ActorRoleUser, payload, true
	case domain.MeetingEnded:
		payload["occupants"] = evt.Usernames
		if evt.Info != nil {
			payload["message_count"] = evt.Info.MessageCount
		}
		return domain.EventTypeMeetingEnded, domain.ActorRoleSystem, payload, true
	case domain.MeetingModerationChanged:
		payload["moderators"] = evt.Usernames
		if evt.Info != nil {
			payload["moderated"] = evt.Info.Moderated
		}
		return domain.EventTypeModerationChanged, domain.ActorRoleModerator, payload, true
	case domain.MeetingUserShadowed:
		payload["usernames"] = evt.Usernames
		return domain.EventTypeUserShadowed, domain.ActorRoleModerator, payload, true
	case domain.MeetingMessageHeld:
		if evt.Pending != nil {
			payload["message_id"] = evt.Pending.MessageID
		}
		return domain.EventTypeMessageHeld, domain.ActorRoleUser, payload, true
	case domain.MeetingMessageApproved:
		if evt.Pending != nil {
			payload["message_id"] = evt.Pending.MessageID
		}
		return domain.EventTypeMessageApproved, domain.ActorRoleModerator, payload, true
	case domain.MeetingPendingAbandoned:
		if evt.Pending != nil {
			payload["message_id"] = evt.Pending.MessageID
			payload["store_id"] = evt.Pending.StoreID
		}
		return domain.EventTypePendingAbandoned, domain.ActorRoleSystem, payload, true
	default:
		return "", "", nil, false
	}
}
