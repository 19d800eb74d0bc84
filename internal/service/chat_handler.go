package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"chatserver/internal/domain"
	apperrors "chatserver/pkg/errors"
	"chatserver/pkg/logger"
)

// ChatHandler - операции чата от имени одной сессии. Не предназначен для конкурентного использования:
// транспорт вызывает его из цикла чтения своего подключения.
type ChatHandler struct {
	chatserver     Chatserver
	session        *domain.Session
	roomsIModerate domain.NameSet
	roomsImIn      domain.NameSet
	log            logger.Logger
}

func NewChatHandler(chatserver Chatserver, session *domain.Session, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatserver:     chatserver,
		session:        session,
		roomsIModerate: domain.NewNameSet(),
		roomsImIn:      domain.NewNameSet(),
		log:            log.With("username", session.Owner, "session_id", session.ID),
	}
}

func (h *ChatHandler) Username() string {
	return h.session.Owner
}

// PostMessage отправляет сообщение во все комнаты из msg.Rooms.
// Ошибка возвращается только для ErrMessageTooBig, остальные отказы - false.
func (h *ChatHandler) PostMessage(ctx context.Context, msg *domain.Message) (bool, error) {
	msg.Sender = h.session.Owner
	msg.SenderSessionID = h.session.ID
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}

	rooms := domain.NewNameSet(msg.Rooms...).Sorted()
	if len(rooms) == 0 {
		return false, nil
	}

	ok := true
	for _, roomID := range rooms {
		m := msg
		if len(rooms) > 1 {
			m = msg.Clone()
			m.Rooms = []string{roomID}
		}

		result, err := h.chatserver.PostMessageToRoom(ctx, roomID, m)
		if err != nil {
			if errors.Is(err, apperrors.ErrMessageTooBig) {
				return false, err
			}
			h.log.Error("Failed to post message", "error", err, "room_id", roomID, "message_id", m.MessageID)
			ok = false
			continue
		}
		ok = ok && result.Ok()
	}
	return ok, nil
}

// EnterRoom: существующая комната по RoomID, встреча группы по ContainerID
// или новая комната с перечисленными участниками
func (h *ChatHandler) EnterRoom(ctx context.Context, spec *domain.RoomSpec) *domain.Meeting {
	owner := h.session.Owner
	self := domain.OccupantRef{Username: owner, SessionID: h.session.ID}
	spec.Creator = owner

	var room *domain.Meeting
	switch {
	case spec.RoomID != "":
		room = h.chatserver.EnterExistingMeeting(ctx, spec.RoomID, owner)
	case len(spec.Occupants) == 0 && spec.ContainerID != "":
		spec.Occupants = []domain.OccupantRef{self}
		room = h.chatserver.EnterMeetingInContainer(ctx, spec)
	default:
		spec.WithoutOccupant(owner)
		spec.Occupants = append(spec.Occupants, self)
		// нельзя создать комнату с самим собой
		room = h.chatserver.CreateRoomFromSpec(ctx, spec, func(sessions []*domain.Session) bool {
			return len(sessions) > 1
		})
	}

	if room == nil {
		h.chatserver.SendEventToUser(owner, domain.EventFailedToEnterRoom, spec)
		return nil
	}
	h.roomsImIn.Add(room.ID)
	return room
}

func (h *ChatHandler) ExitRoom(ctx context.Context, roomID string) bool {
	h.roomsImIn.Remove(roomID)
	h.roomsIModerate.Remove(roomID)
	return h.chatserver.ExitMeeting(ctx, roomID, h.session.Owner)
}

func (h *ChatHandler) MakeModerated(ctx context.Context, roomID string, flag bool) *domain.Meeting {
	room := h.chatserver.MakeModerated(ctx, roomID, h.session.Owner, flag)
	if room == nil {
		return nil
	}
	if flag {
		h.roomsIModerate.Add(roomID)
	} else {
		h.roomsIModerate.Remove(roomID)
	}
	return room
}

// ApproveMessages ищет каждое сообщение в комнатах пользователя; права модератора проверяет Chatserver
func (h *ChatHandler) ApproveMessages(ctx context.Context, messageIDs []string) int {
	approved := 0
	rooms := h.roomsIModerate.Union(h.roomsImIn).Sorted()
	for _, id := range messageIDs {
		for _, roomID := range rooms {
			result, err := h.chatserver.ApproveMessage(ctx, roomID, h.session.Owner, id)
			if err != nil {
				h.log.Error("Failed to approve message", "error", err, "room_id", roomID, "message_id", id)
				continue
			}
			if result.Ok() {
				approved++
				break
			}
		}
	}
	return approved
}

// FlagMessagesToUsers привлекает внимание пользователей к сообщениям
func (h *ChatHandler) FlagMessagesToUsers(messageIDs, usernames []string) bool {
	if len(messageIDs) == 0 || len(usernames) == 0 {
		return false
	}
	for _, name := range domain.NewNameSet(usernames...).Sorted() {
		h.chatserver.SendEventToUser(name, domain.EventRecvMessageForAttention, messageIDs)
	}
	return true
}

func (h *ChatHandler) ShadowUsers(ctx context.Context, roomID string, usernames []string) bool {
	return h.chatserver.ShadowUsers(ctx, roomID, h.session.Owner, usernames)
}

// Destroy выводит пользователя из комнат, если у него не осталось других сессий.
// Сессия должна быть уже снята с регистрации.
func (h *ChatHandler) Destroy(ctx context.Context) {
	if h.chatserver.GetSessionFor(h.session.Owner, "") != nil {
		return
	}
	for _, roomID := range h.roomsImIn.Sorted() {
		h.chatserver.ExitMeeting(ctx, roomID, h.session.Owner)
	}
	h.roomsImIn = domain.NewNameSet()
	h.roomsIModerate = domain.NewNameSet()
}
