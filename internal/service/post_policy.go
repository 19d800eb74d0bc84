package service

import (
	"context"
	"fmt"
	"time"

	"chatserver/internal/domain"
	"chatserver/internal/repository"
	apperrors "chatserver/pkg/errors"
	"chatserver/pkg/logger"
)

// PostResult - итог обработки сообщения политикой встречи
type PostResult int

const (
	// PostRejected - не доставлено (неверные данные или нет прав, вызывающему не различить)
	PostRejected PostResult = iota
	// PostDelivered - доставлено части комнаты, в счетчик не входит
	PostDelivered
	// PostCounted - доставлено всей комнате, считается одним новым сообщением
	PostCounted
	// PostQueued - поставлено в очередь модерации
	PostQueued
	// PostSuppressed - принято, но намеренно не доставлено
	PostSuppressed
)

func (r PostResult) Ok() bool {
	return r != PostRejected
}

func (r PostResult) String() string {
	switch r {
	case PostDelivered:
		return "delivered"
	case PostCounted:
		return "counted"
	case PostQueued:
		return "queued"
	case PostSuppressed:
		return "suppressed"
	default:
		return "rejected"
	}
}

// PostPolicy решает судьбу каждого входящего сообщения встречи.
// Вызывается под блокировкой встречи.
type PostPolicy interface {
	PostMessage(ctx context.Context, msg *domain.Message) (PostResult, error)
	ApproveMessage(ctx context.Context, messageID string) (PostResult, error)
	AddModerator(name string) bool
	ShadowUser(name string) bool
}

type policyDeps struct {
	sessions  SessionDirectory
	messages  repository.MessageRepository
	events    EventNotifier
	maxLength int
	now       func() time.Time
	log       logger.Logger
}

// newPostPolicy выводит политику из текущего состояния встречи
func newPostPolicy(meeting *domain.Meeting, deps *policyDeps) PostPolicy {
	base := meetingPostPolicy{policyDeps: deps, meeting: meeting}
	if state := meeting.ModerationState(); state != nil {
		return &moderatedPostPolicy{meetingPostPolicy: base, state: state}
	}
	return &base
}

type meetingPostPolicy struct {
	*policyDeps
	meeting *domain.Meeting
}

func (p *meetingPostPolicy) PostMessage(ctx context.Context, msg *domain.Message) (PostResult, error) {
	switch msg.Channel {
	case domain.ChannelDefault, domain.ChannelWhisper:
		if err := p.checkSize(msg); err != nil {
			return PostRejected, err
		}
		return p.deliver(ctx, msg, nil)
	case domain.ChannelState:
		return p.postState(msg), nil
	default:
		p.log.Debug("Channel not supported in unmoderated meeting",
			"meeting_id", p.meeting.ID, "channel", msg.Channel, "sender", msg.Sender)
		return PostRejected, nil
	}
}

func (p *meetingPostPolicy) ApproveMessage(_ context.Context, messageID string) (PostResult, error) {
	p.log.Warn("Approval requested in unmoderated meeting", "meeting_id", p.meeting.ID, "message_id", messageID)
	return PostRejected, nil
}

func (p *meetingPostPolicy) AddModerator(name string) bool {
	p.log.Warn("Cannot add moderator to unmoderated meeting", "meeting_id", p.meeting.ID, "username", name)
	return false
}

func (p *meetingPostPolicy) ShadowUser(name string) bool {
	p.log.Warn("Cannot shadow user in unmoderated meeting", "meeting_id", p.meeting.ID, "username", name)
	return false
}

func (p *meetingPostPolicy) checkSize(msg *domain.Message) error {
	if n := msg.Body.Length(); n > p.maxLength {
		return fmt.Errorf("%w: %d exceeds %d", apperrors.ErrMessageTooBig, n, p.maxLength)
	}
	return nil
}

// treatLikeDefault - адресовано ли сообщение всей комнате
func (p *meetingPostPolicy) treatLikeDefault(msg *domain.Message) bool {
	return msg.Channel == domain.ChannelDefault ||
		msg.Channel == domain.ChannelState ||
		msg.RecipientsWithoutSender().Len() == 0
}

func (p *meetingPostPolicy) recipientNames(msg *domain.Message) domain.NameSet {
	occupants := p.meeting.Occupants()
	if p.treatLikeDefault(msg) {
		return occupants
	}
	return occupants.Intersect(msg.RecipientsWithSender())
}

// isToAll - получатели совпадают со всей комнатой за вычетом excluded
func (p *meetingPostPolicy) isToAll(msg *domain.Message, names, excluded domain.NameSet) bool {
	if p.treatLikeDefault(msg) {
		return true
	}
	return names.Equal(p.meeting.Occupants().Minus(excluded))
}

func (p *meetingPostPolicy) postState(msg *domain.Message) PostResult {
	state, ok := msg.Body.Field(domain.BodyKeyState)
	if !ok || !domain.IsValidState(state) {
		return PostRejected
	}
	msg.Body = msg.Body.Only(domain.BodyKeyState)
	msg.ContainerID = p.meeting.ID

	for _, name := range p.recipientNames(msg).Sorted() {
		p.sessions.SendEventToUser(name, domain.EventRecvMessage, msg)
	}
	return PostDelivered
}

// deliver - общий путь доставки: статус, сохранение, рассылка, уведомление
func (p *meetingPostPolicy) deliver(ctx context.Context, msg *domain.Message, excluded domain.NameSet) (PostResult, error) {
	names := p.recipientNames(msg)
	toAll := p.isToAll(msg, names, excluded)

	owners := p.meeting.AdditionalTranscriptNames()
	owners.Add(msg.Sender)

	msg.Status = domain.StatusPosted
	msg.ContainerID = p.meeting.ID
	msg.SharedWith = names.Union(owners).Sorted()

	// сохраняем до рассылки: при ошибке не доставляется никому
	if err := p.save(ctx, msg); err != nil {
		return PostRejected, err
	}

	for _, name := range names.Sorted() {
		p.sessions.SendEventToUser(name, domain.EventRecvMessage, msg)
	}
	p.notify(domain.MeetingMessagePosted, msg, owners.Union(names))

	if toAll {
		return PostCounted, nil
	}
	return PostDelivered, nil
}

func (p *meetingPostPolicy) save(ctx context.Context, msg *domain.Message) error {
	if !msg.Stored() {
		return p.messages.AddMessage(ctx, msg)
	}
	return p.messages.UpdateDelivery(ctx, msg)
}

func (p *meetingPostPolicy) notify(t domain.MeetingEventType, msg *domain.Message, usernames domain.NameSet) {
	p.events.Notify(domain.MeetingEvent{
		Type:        t,
		MeetingID:   p.meeting.ID,
		ContainerID: p.meeting.ContainerID,
		Actor:       msg.Sender,
		Usernames:   usernames.Sorted(),
		Message:     msg.Clone(),
		At:          p.now(),
	})
}
