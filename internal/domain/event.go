package domain

import "time"

// События, отправляемые клиентам
const (
	EventEnteredRoom              = "chat_enteredRoom"
	EventExitedRoom               = "chat_exitedRoom"
	EventRoomMembershipChanged    = "chat_roomMembershipChanged"
	EventRoomModerationChanged    = "chat_roomModerationChanged"
	EventRecvMessage              = "chat_recvMessage"
	EventRecvMessageForModeration = "chat_recvMessageForModeration"
	EventRecvMessageForShadow     = "chat_recvMessageForShadow"
	EventRecvMessageForAttention  = "chat_recvMessageForAttention"
	EventFailedToEnterRoom        = "chat_failedToEnterRoom"
	EventFailedToPostMessage      = "chat_failedToPostMessage"
)

// MeetingEventType - уведомления для внешних подписчиков (аудит, транскрипты, метрики)
type MeetingEventType string

const (
	MeetingCreated           MeetingEventType = "meeting_created"
	MeetingEnded             MeetingEventType = "meeting_ended"
	MeetingRoomEntered       MeetingEventType = "room_entered"
	MeetingRoomExited        MeetingEventType = "room_exited"
	MeetingMembershipChanged MeetingEventType = "membership_changed"
	MeetingModerationChanged MeetingEventType = "moderation_changed"
	MeetingMessagePosted     MeetingEventType = "message_posted"
	MeetingMessageHeld       MeetingEventType = "message_held"
	MeetingMessageShadowed   MeetingEventType = "message_shadowed"
	MeetingMessageApproved   MeetingEventType = "message_approved"
	MeetingUserShadowed      MeetingEventType = "user_shadowed"
	MeetingPendingAbandoned  MeetingEventType = "pending_abandoned"
)

// MeetingEvent - снимок изменения; не содержит ссылок на изменяемое состояние
type MeetingEvent struct {
	Type        MeetingEventType
	MeetingID   string
	ContainerID string
	Actor       string
	Usernames   []string
	Message     *Message
	Pending     *PendingMessage
	Info        *RoomInfo
	At          time.Time
}
