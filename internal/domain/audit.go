package domain

import (
	"time"
)

type AuditLog struct {
	ID            int64                  `json:"id"`
	EventTime     time.Time              `json:"event_time"`
	ActorUsername string                 `json:"actor_username,omitempty"`
	ActorRole     string                 `json:"actor_role"`
	MeetingID     string                 `json:"meeting_id,omitempty"`
	EventType     string                 `json:"event_type"`
	Payload       map[string]interface{} `json:"payload"`
}

const (
	ActorRoleUser      = "user"
	ActorRoleModerator = "moderator"
	ActorRoleSystem    = "system"
)

const (
	EventTypeMeetingCreated    = "MEETING_CREATED"
	EventTypeMeetingEnded      = "MEETING_ENDED"
	EventTypeModerationChanged = "MODERATION_CHANGED"
	EventTypeUserShadowed      = "USER_SHADOWED"
	EventTypeMessageHeld       = "MESSAGE_HELD"
	EventTypeMessageApproved   = "MESSAGE_APPROVED"
	EventTypePendingAbandoned  = "PENDING_ABANDONED"
)
