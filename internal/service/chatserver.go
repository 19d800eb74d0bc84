package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chatserver/internal/config"
	"chatserver/internal/domain"
	"chatserver/internal/repository"
	"chatserver/pkg/logger"
)

// сколько раз участник группы пытается войти, если чужое создание встречи сорвалось
const maxContainerAttempts = 3

// SessionsValidator может отклонить набор сессий будущей комнаты
type SessionsValidator func(sessions []*domain.Session) bool

// Chatserver - точка входа транспорта: комнаты, вход и выход, отправка сообщений, модерация.
// Отказы (нет комнаты, нет прав, неверные данные) возвращаются как nil/false/PostRejected.
type Chatserver interface {
	PostMessageToRoom(ctx context.Context, roomID string, msg *domain.Message) (PostResult, error)
	CreateRoomFromSpec(ctx context.Context, spec *domain.RoomSpec, validator SessionsValidator) *domain.Meeting
	EnterMeetingInContainer(ctx context.Context, spec *domain.RoomSpec) *domain.Meeting
	EnterExistingMeeting(ctx context.Context, roomID, occupant string) *domain.Meeting
	ExitMeeting(ctx context.Context, roomID, username string) bool
	GetMeeting(roomID string) *domain.Meeting
	RoomInfo(roomID string) (domain.RoomInfo, bool)

	MakeModerated(ctx context.Context, roomID, username string, flag bool) *domain.Meeting
	ApproveMessage(ctx context.Context, roomID, moderator, messageID string) (PostResult, error)
	ShadowUsers(ctx context.Context, roomID, actor string, usernames []string) bool

	GetSessionFor(username, sessionID string) *domain.Session
	SendEventToUser(username, event string, args ...interface{})
}

type chatserver struct {
	sessions   SessionDirectory
	meetings   repository.MeetingStorage
	containers MeetingContainerStorage
	authz      Authorizer
	events     EventNotifier
	deps       *policyDeps
	log        logger.Logger
}

func NewChatserver(
	sessions SessionDirectory,
	meetings repository.MeetingStorage,
	containers MeetingContainerStorage,
	authz Authorizer,
	messages repository.MessageRepository,
	events EventNotifier,
	cfg config.ChatConfig,
	log logger.Logger,
) Chatserver {
	return &chatserver{
		sessions:   sessions,
		meetings:   meetings,
		containers: containers,
		authz:      authz,
		events:     events,
		deps: &policyDeps{
			sessions:  sessions,
			messages:  messages,
			events:    events,
			maxLength: cfg.MaxMessageLength,
			now:       time.Now,
			log:       log,
		},
		log: log,
	}
}

func (c *chatserver) policyFor(m *domain.Meeting) PostPolicy {
	return newPostPolicy(m, c.deps)
}

func (c *chatserver) GetMeeting(roomID string) *domain.Meeting {
	return c.meetings.Get(roomID)
}

func (c *chatserver) RoomInfo(roomID string) (domain.RoomInfo, bool) {
	m := c.meetings.Get(roomID)
	if m == nil {
		return domain.RoomInfo{}, false
	}
	m.Lock()
	defer m.Unlock()
	return m.Info(), true
}

func (c *chatserver) GetSessionFor(username, sessionID string) *domain.Session {
	return c.sessions.GetSessionFor(username, sessionID)
}

func (c *chatserver) SendEventToUser(username, event string, args ...interface{}) {
	c.sessions.SendEventToUser(username, event, args...)
}

func (c *chatserver) PostMessageToRoom(ctx context.Context, roomID string, msg *domain.Message) (PostResult, error) {
	m := c.meetings.Get(roomID)
	if m == nil {
		c.log.Debug("Dropping message to unknown room", "room_id", roomID, "sender", msg.Sender)
		return PostRejected, nil
	}

	if msg.Channel == "" {
		msg.Channel = domain.ChannelDefault
	}
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = c.deps.now()
	}

	recipients := domain.NewNameSet(msg.Recipients...)
	if recipients.Len() == 1 && recipients.Has(msg.Sender) {
		c.log.Debug("Dropping message addressed only to its sender", "room_id", roomID, "sender", msg.Sender)
		return PostRejected, nil
	}

	m.Lock()
	defer m.Unlock()

	if !m.IsActive() {
		c.log.Debug("Dropping message to inactive room", "room_id", roomID, "sender", msg.Sender)
		return PostRejected, nil
	}
	if !m.HasOccupant(msg.Sender) {
		c.log.Debug("Dropping message from non-occupant", "room_id", roomID, "sender", msg.Sender)
		return PostRejected, nil
	}

	result, err := c.policyFor(m).PostMessage(ctx, msg)
	if result == PostCounted {
		m.MessageCount++
	}
	return result, err
}

func (c *chatserver) CreateRoomFromSpec(ctx context.Context, spec *domain.RoomSpec, validator SessionsValidator) *domain.Meeting {
	if spec.Creator == "" && len(spec.Occupants) > 0 {
		spec.Creator = spec.Occupants[0].Username
	}

	container := c.containers.Get(ctx, spec.ContainerID)
	if container == nil {
		meeting := domain.NewMeeting(spec.ContainerID)
		meeting.Lock()
		defer meeting.Unlock()
		return c.activate(ctx, nil, meeting, spec, validator)
	}

	// встреча создается уже заблокированной: второй участник группы получит ее
	// с created=false и дождется конца создания в reenter
	factory := func() *domain.Meeting {
		m := domain.NewMeeting(spec.ContainerID)
		m.Lock()
		return m
	}

	for attempt := 0; attempt < maxContainerAttempts; attempt++ {
		m, created := container.CreateOrEnterMeeting(ctx, c, spec, factory)
		if m == nil {
			c.log.Debug("Container refused meeting", "container_id", spec.ContainerID, "creator", spec.Creator)
			return nil
		}
		if !created {
			if entered := c.reenter(m, spec.Creator); entered != nil {
				return entered
			}
			// создание у другого участника не удалось, пробуем сами
			continue
		}

		// офлайн участники группы все равно получают транскрипт
		for _, name := range spec.OccupantNames() {
			m.AddAdditionalTranscriptName(name)
		}
		room := c.activate(ctx, container, m, spec, validator)
		m.Unlock()
		return room
	}

	c.log.Warn("Gave up entering container meeting", "container_id", spec.ContainerID, "creator", spec.Creator)
	return nil
}

// activate регистрирует новую встречу. Вызывается под блокировкой встречи,
// поэтому читатели не увидят ее недостроенной.
func (c *chatserver) activate(ctx context.Context, container MeetingContainer, meeting *domain.Meeting, spec *domain.RoomSpec, validator SessionsValidator) *domain.Meeting {
	sessions, names := c.resolveSessions(spec)
	if len(sessions) == 0 {
		c.log.Debug("No live sessions for room", "creator", spec.Creator)
		c.releaseCreation(ctx, container, meeting)
		return nil
	}
	if validator != nil && !validator(sessions) {
		c.log.Debug("Sessions rejected by validator", "creator", spec.Creator, "sessions", len(sessions))
		c.releaseCreation(ctx, container, meeting)
		return nil
	}

	meeting.Creator = spec.Creator
	meeting.InReplyTo = spec.InReplyTo

	meeting.SetActive(true)
	if err := c.meetings.AddRoom(meeting); err != nil {
		meeting.SetActive(false)
		c.log.Error("Failed to register meeting", "error", err, "meeting_id", meeting.ID)
		c.releaseCreation(ctx, container, meeting)
		return nil
	}

	info := meeting.Info()
	c.events.Notify(domain.MeetingEvent{
		Type:        domain.MeetingCreated,
		MeetingID:   meeting.ID,
		ContainerID: meeting.ContainerID,
		Actor:       meeting.Creator,
		Usernames:   names,
		Info:        &info,
	})
	c.addOccupants(meeting, names...)

	c.log.Info("Meeting created", "meeting_id", meeting.ID, "creator", meeting.Creator, "occupants", len(names))
	return meeting
}

// releaseCreation освобождает группу до снятия блокировки встречи,
// чтобы ожидающий участник мог создать встречу заново
func (c *chatserver) releaseCreation(ctx context.Context, container MeetingContainer, meeting *domain.Meeting) {
	if container != nil {
		container.MeetingBecameEmpty(ctx, c, meeting)
	}
}

func (c *chatserver) reenter(m *domain.Meeting, username string) *domain.Meeting {
	m.Lock()
	defer m.Unlock()

	if !m.IsActive() {
		return nil
	}
	c.addOccupants(m, username)
	return m
}

func (c *chatserver) resolveSessions(spec *domain.RoomSpec) ([]*domain.Session, []string) {
	seen := domain.NewNameSet()
	sessions := make([]*domain.Session, 0, len(spec.Occupants))
	names := make([]string, 0, len(spec.Occupants))

	for _, o := range spec.Occupants {
		if seen.Has(o.Username) {
			continue
		}
		s := c.sessions.GetSessionFor(o.Username, o.SessionID)
		if s == nil {
			c.log.Debug("Dropping occupant without live session", "username", o.Username)
			continue
		}
		seen.Add(o.Username)
		sessions = append(sessions, s)
		names = append(names, o.Username)
	}
	return sessions, names
}

func (c *chatserver) EnterMeetingInContainer(ctx context.Context, spec *domain.RoomSpec) *domain.Meeting {
	container := c.containers.Get(ctx, spec.ContainerID)
	if container == nil {
		c.log.Debug("Unknown meeting container", "container_id", spec.ContainerID)
		return nil
	}
	if spec.Creator == "" && len(spec.Occupants) > 0 {
		spec.Creator = spec.Occupants[0].Username
	}

	if m := container.EnterActiveMeeting(ctx, c, spec); m != nil {
		if entered := c.reenter(m, spec.Creator); entered != nil {
			return entered
		}
	}
	return c.CreateRoomFromSpec(ctx, spec, nil)
}

func (c *chatserver) EnterExistingMeeting(ctx context.Context, roomID, occupant string) *domain.Meeting {
	m := c.meetings.Get(roomID)
	if m == nil {
		return nil
	}

	m.Lock()
	defer m.Unlock()

	if !m.IsActive() {
		return nil
	}
	if !c.authz.Permits(m, []string{occupant}, domain.ActionEnter) {
		c.log.Debug("Entry not permitted", "room_id", roomID, "username", occupant)
		return nil
	}
	c.addOccupants(m, occupant)
	return m
}

// addOccupants вызывается под блокировкой встречи
func (c *chatserver) addOccupants(m *domain.Meeting, names ...string) {
	existing := m.OccupantNames()
	added := m.AddOccupantNames(names...)
	if len(added) == 0 {
		return
	}

	info := m.Info()
	for _, name := range added {
		c.sessions.SendEventToUser(name, domain.EventEnteredRoom, info)
	}
	for _, name := range existing {
		c.sessions.SendEventToUser(name, domain.EventRoomMembershipChanged, info)
	}

	c.notify(m, domain.MeetingRoomEntered, "", added, &info)
	if len(existing) > 0 {
		c.notify(m, domain.MeetingMembershipChanged, "", existing, &info)
	}
}

func (c *chatserver) ExitMeeting(ctx context.Context, roomID, username string) bool {
	m := c.meetings.Get(roomID)
	if m == nil {
		return false
	}

	m.Lock()
	defer m.Unlock()

	if !m.RemoveOccupantName(username) {
		return false
	}

	info := m.Info()
	c.sessions.SendEventToUser(username, domain.EventExitedRoom, info)
	remaining := m.OccupantNames()
	for _, name := range remaining {
		c.sessions.SendEventToUser(name, domain.EventRoomMembershipChanged, info)
	}
	c.notify(m, domain.MeetingRoomExited, username, []string{username}, &info)

	if len(remaining) > 0 {
		return true
	}

	m.SetActive(false)
	if container := c.containers.Get(ctx, m.ContainerID); container != nil {
		container.MeetingBecameEmpty(ctx, c, m)
	}
	// контейнер мог снова активировать встречу
	if !m.IsActive() {
		c.evict(m)
	}
	return true
}

// evict удаляет пустую встречу; неодобренные сообщения уходят в архив брошенных
func (c *chatserver) evict(m *domain.Meeting) {
	c.abandonPending(m)
	c.meetings.Delete(m.ID)

	info := m.Info()
	c.notify(m, domain.MeetingEnded, "", m.HistoricalOccupantNames(), &info)
	c.log.Info("Meeting ended", "meeting_id", m.ID, "messages", m.MessageCount)
}

func (c *chatserver) abandonPending(m *domain.Meeting) {
	state := m.ModerationState()
	if state == nil {
		return
	}
	for _, p := range state.Drain() {
		pending := p
		c.events.Notify(domain.MeetingEvent{
			Type:        domain.MeetingPendingAbandoned,
			MeetingID:   m.ID,
			ContainerID: m.ContainerID,
			Actor:       pending.Sender,
			Pending:     &pending,
		})
	}
}

func (c *chatserver) MakeModerated(_ context.Context, roomID, username string, flag bool) *domain.Meeting {
	m := c.meetings.Get(roomID)
	if m == nil {
		return nil
	}

	m.Lock()
	defer m.Unlock()

	if !m.IsActive() {
		return nil
	}
	if !c.authz.Permits(m, []string{username}, domain.ActionModerate) {
		c.log.Debug("Moderation change not permitted", "room_id", roomID, "username", username)
		return nil
	}

	if flag {
		m.SetModerated(true)
		c.policyFor(m).AddModerator(username)
	} else {
		state := m.ModerationState()
		if state == nil {
			return m
		}
		if !state.IsModerator(username) {
			return nil
		}
		c.abandonPending(m)
		m.SetModerated(false)

		info := m.Info()
		for _, name := range m.OccupantNames() {
			c.sessions.SendEventToUser(name, domain.EventRoomModerationChanged, info)
		}
	}

	info := m.Info()
	c.notify(m, domain.MeetingModerationChanged, username, info.Moderators, &info)
	return m
}

func (c *chatserver) ApproveMessage(ctx context.Context, roomID, moderator, messageID string) (PostResult, error) {
	m := c.meetings.Get(roomID)
	if m == nil {
		return PostRejected, nil
	}

	m.Lock()
	defer m.Unlock()

	state := m.ModerationState()
	if !m.IsActive() || state == nil || !state.IsModerator(moderator) {
		return PostRejected, nil
	}

	result, err := c.policyFor(m).ApproveMessage(ctx, messageID)
	if result == PostCounted {
		m.MessageCount++
	}
	if result.Ok() {
		c.events.Notify(domain.MeetingEvent{
			Type:        domain.MeetingMessageApproved,
			MeetingID:   m.ID,
			ContainerID: m.ContainerID,
			Actor:       moderator,
			Pending:     &domain.PendingMessage{MessageID: messageID},
		})
	}
	return result, err
}

func (c *chatserver) ShadowUsers(_ context.Context, roomID, actor string, usernames []string) bool {
	m := c.meetings.Get(roomID)
	if m == nil {
		return false
	}

	m.Lock()
	defer m.Unlock()

	if !m.IsActive() || !m.Moderated() {
		return false
	}
	if !c.authz.Permits(m, []string{actor}, domain.ActionModerate) {
		return false
	}

	policy := c.policyFor(m)
	for _, name := range domain.NewNameSet(usernames...).Sorted() {
		if policy.ShadowUser(name) {
			c.notify(m, domain.MeetingUserShadowed, actor, []string{name}, nil)
		}
	}
	return true
}

func (c *chatserver) notify(m *domain.Meeting, t domain.MeetingEventType, actor string, usernames []string, info *domain.RoomInfo) {
	c.events.Notify(domain.MeetingEvent{
		Type:        t,
		MeetingID:   m.ID,
		ContainerID: m.ContainerID,
		Actor:       actor,
		Usernames:   usernames,
		Info:        info,
	})
}
