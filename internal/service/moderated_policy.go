package service

import (
	"context"
	"fmt"

	"chatserver/internal/domain"
	apperrors "chatserver/pkg/errors"
)

// moderatedPostPolicy - сообщения не-модераторов в DEFAULT попадают в очередь
type moderatedPostPolicy struct {
	meetingPostPolicy
	state *domain.ModerationState
}

func (p *moderatedPostPolicy) PostMessage(ctx context.Context, msg *domain.Message) (PostResult, error) {
	var (
		result PostResult
		err    error
	)

	switch msg.Channel {
	case domain.ChannelState:
		// состояние присутствия в модерируемой комнате не рассылается
		return PostSuppressed, nil
	case domain.ChannelWhisper:
		result, err = p.handleWhisper(ctx, msg)
	case domain.ChannelDefault:
		result, err = p.handleDefault(ctx, msg)
	case domain.ChannelContent:
		result, err = p.handleContent(ctx, msg)
	case domain.ChannelMeta:
		result, err = p.handleMeta(ctx, msg)
	case domain.ChannelPoll:
		result, err = p.handlePoll(ctx, msg)
	default:
		result = PostRejected
	}

	if result == PostRejected && err == nil {
		p.log.Debug("Message rejected by moderation policy",
			"meeting_id", p.meeting.ID, "channel", msg.Channel, "sender", msg.Sender)
	}
	return result, err
}

func (p *moderatedPostPolicy) isModerator(msg *domain.Message) bool {
	return p.state.IsModerator(msg.Sender)
}

// bypass - модератор пишет так же, как в немодерируемой комнате
func (p *moderatedPostPolicy) bypass(ctx context.Context, msg *domain.Message) (PostResult, error) {
	if err := p.checkSize(msg); err != nil {
		return PostRejected, err
	}
	return p.deliver(ctx, msg, p.state.Moderators())
}

func (p *moderatedPostPolicy) handleDefault(ctx context.Context, msg *domain.Message) (PostResult, error) {
	if p.isModerator(msg) {
		return p.bypass(ctx, msg)
	}
	if err := p.checkSize(msg); err != nil {
		return PostRejected, err
	}
	if msg.MessageID == "" {
		// без идентификатора сообщение нельзя одобрить; Chatserver всегда его присваивает
		p.log.Error("Refusing to hold message without id", "meeting_id", p.meeting.ID, "sender", msg.Sender)
		return PostRejected, nil
	}
	if p.state.IsPending(msg.MessageID) {
		err := fmt.Errorf("%w: %s", apperrors.ErrDuplicatePending, msg.MessageID)
		p.log.Error("Refusing to hold message", "error", err, "meeting_id", p.meeting.ID)
		return PostRejected, err
	}

	msg.ContainerID = p.meeting.ID
	msg.Status = domain.StatusPending
	if !msg.Stored() {
		if err := p.messages.AddMessage(ctx, msg); err != nil {
			return PostRejected, err
		}
	}
	if err := p.state.HoldMessage(msg, p.now()); err != nil {
		return PostRejected, err
	}

	moderators := p.state.Moderators()
	for _, name := range moderators.Sorted() {
		p.sessions.SendEventToUser(name, domain.EventRecvMessageForModeration, msg)
	}

	pending := domain.PendingMessage{MessageID: msg.MessageID, StoreID: msg.ID, Sender: msg.Sender, HeldAt: p.now()}
	p.events.Notify(domain.MeetingEvent{
		Type:        domain.MeetingMessageHeld,
		MeetingID:   p.meeting.ID,
		ContainerID: p.meeting.ContainerID,
		Actor:       msg.Sender,
		Usernames:   moderators.Sorted(),
		Message:     msg.Clone(),
		Pending:     &pending,
		At:          pending.HeldAt,
	})
	return PostQueued, nil
}

func (p *moderatedPostPolicy) handleWhisper(ctx context.Context, msg *domain.Message) (PostResult, error) {
	if p.isModerator(msg) {
		return p.bypass(ctx, msg)
	}

	others := msg.RecipientsWithoutSender()
	if others.Len() == 0 {
		// шепот без адресатов - это сообщение всем, поэтому он проходит модерацию как DEFAULT,
		// а не доставляется сразу (пустой список адресатов не считается разрешенным шепотом)
		msg.Channel = domain.ChannelDefault
		return p.handleDefault(ctx, msg)
	}

	moderators := p.state.Moderators()
	if others.Len() > 1 && p.isToAll(msg, p.recipientNames(msg), moderators) {
		msg.Channel = domain.ChannelDefault
		return p.handleDefault(ctx, msg)
	}

	if !others.SubsetOf(moderators) && others.Len() != 1 {
		return PostRejected, nil
	}

	if err := p.checkSize(msg); err != nil {
		return PostRejected, err
	}
	if err := p.shadow(ctx, msg, moderators); err != nil {
		return PostRejected, err
	}
	// разрешенный шепот не входит в счетчик сообщений комнаты
	if _, err := p.deliver(ctx, msg, moderators); err != nil {
		return PostRejected, err
	}
	return PostDelivered, nil
}

// shadow отправляет модераторам копию шепота затененного пользователя
func (p *moderatedPostPolicy) shadow(ctx context.Context, msg *domain.Message, moderators domain.NameSet) error {
	if !p.state.AnyShadowed(msg.RecipientsWithSender()) {
		return nil
	}

	shadowed := msg.Clone()
	shadowed.ID = 0
	shadowed.Status = domain.StatusShadowed
	shadowed.ContainerID = p.meeting.ID
	shadowed.SharedWith = moderators.Sorted()
	if err := p.messages.AddMessage(ctx, shadowed); err != nil {
		return err
	}

	for _, name := range moderators.Sorted() {
		p.sessions.SendEventToUser(name, domain.EventRecvMessageForShadow, shadowed)
	}
	p.notify(domain.MeetingMessageShadowed, shadowed, moderators)
	return nil
}

func (p *moderatedPostPolicy) handleContent(ctx context.Context, msg *domain.Message) (PostResult, error) {
	if !p.isModerator(msg) {
		return PostRejected, nil
	}
	ntiid, ok := msg.Body.Field(domain.BodyKeyNTIID)
	if !ok || !domain.IsValidContentID(ntiid) {
		return PostRejected, nil
	}

	msg.Body = msg.Body.Only(domain.BodyKeyNTIID)
	msg.Recipients = nil
	return p.deliver(ctx, msg, p.state.Moderators())
}

func (p *moderatedPostPolicy) handleMeta(ctx context.Context, msg *domain.Message) (PostResult, error) {
	if !p.isModerator(msg) {
		return PostRejected, nil
	}
	channel, _ := msg.Body.Field(domain.BodyKeyChannel)
	if !domain.Channel(channel).Valid() {
		return PostRejected, nil
	}

	keys := []string{domain.BodyKeyChannel, domain.BodyKeyAction}
	action, _ := msg.Body.Field(domain.BodyKeyAction)
	switch action {
	case domain.MetaActionPin:
		ntiid, _ := msg.Body.Field(domain.BodyKeyNTIID)
		if !domain.IsValidContentID(ntiid) {
			return PostRejected, nil
		}
		keys = append(keys, domain.BodyKeyNTIID)
	case domain.MetaActionClearPinned:
	default:
		return PostRejected, nil
	}

	msg.Body = msg.Body.Only(keys...)
	msg.Recipients = nil
	return p.deliver(ctx, msg, p.state.Moderators())
}

func (p *moderatedPostPolicy) handlePoll(ctx context.Context, msg *domain.Message) (PostResult, error) {
	moderators := p.state.Moderators()
	if p.isModerator(msg) {
		msg.Recipients = nil
		return p.deliver(ctx, msg, moderators)
	}
	// ответ на опрос видят только модераторы
	if msg.InReplyTo == "" {
		return PostRejected, nil
	}
	msg.Recipients = moderators.Sorted()
	return p.deliver(ctx, msg, moderators)
}

func (p *moderatedPostPolicy) ApproveMessage(ctx context.Context, messageID string) (PostResult, error) {
	pending, ok := p.state.ApproveMessage(messageID)
	if !ok {
		p.log.Warn("Approving message that is not pending", "meeting_id", p.meeting.ID, "message_id", messageID)
		return PostRejected, nil
	}

	msg, err := p.messages.GetMessage(ctx, pending.StoreID)
	if err != nil {
		p.log.Error("Failed to load pending message", "error", err,
			"meeting_id", p.meeting.ID, "message_id", messageID, "store_id", pending.StoreID)
		return PostRejected, err
	}

	msg.Status = domain.StatusPosted
	return p.deliver(ctx, msg, p.state.Moderators())
}

func (p *moderatedPostPolicy) AddModerator(name string) bool {
	added := p.state.AddModerator(name)

	info := p.meeting.Info()
	for _, occupant := range p.meeting.OccupantNames() {
		p.sessions.SendEventToUser(occupant, domain.EventRoomModerationChanged, info)
	}
	return added
}

func (p *moderatedPostPolicy) ShadowUser(name string) bool {
	return p.state.ShadowUser(name)
}
