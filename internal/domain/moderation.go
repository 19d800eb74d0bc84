package domain

import (
	"fmt"
	"sort"
	"time"

	apperrors "chatserver/pkg/errors"
)

// PendingMessage - непрозрачная ссылка на сообщение, ожидающее одобрения модератора
type PendingMessage struct {
	MessageID string    `json:"message_id"`
	StoreID   int64     `json:"store_id"`
	Sender    string    `json:"sender"`
	HeldAt    time.Time `json:"held_at"`
}

// ModerationState принадлежит Meeting и изменяется только под ее блокировкой
type ModerationState struct {
	moderators NameSet
	shadowed   NameSet
	pending    map[string]PendingMessage
}

func NewModerationState() *ModerationState {
	return &ModerationState{
		moderators: NewNameSet(),
		shadowed:   NewNameSet(),
		pending:    make(map[string]PendingMessage),
	}
}

// AddModerator идемпотентен, возвращает true при первом добавлении
func (s *ModerationState) AddModerator(name string) bool {
	return s.moderators.Add(name)
}

func (s *ModerationState) IsModerator(name string) bool {
	return s.moderators.Has(name)
}

func (s *ModerationState) Moderators() NameSet {
	return s.moderators.Clone()
}

func (s *ModerationState) ModeratorNames() []string {
	return s.moderators.Sorted()
}

func (s *ModerationState) ShadowUser(name string) bool {
	return s.shadowed.Add(name)
}

func (s *ModerationState) IsShadowed(name string) bool {
	return s.shadowed.Has(name)
}

func (s *ModerationState) ShadowedUsernames() []string {
	return s.shadowed.Sorted()
}

// AnyShadowed - есть ли среди имен хотя бы одно затененное
func (s *ModerationState) AnyShadowed(names NameSet) bool {
	for n := range names {
		if s.shadowed.Has(n) {
			return true
		}
	}
	return false
}

// HoldMessage ставит сохраненное сообщение в очередь. Повторная вставка - ошибка вызывающего.
func (s *ModerationState) HoldMessage(msg *Message, heldAt time.Time) error {
	if msg.MessageID == "" {
		return fmt.Errorf("%w: message id is required", apperrors.ErrBadRequest)
	}
	if _, ok := s.pending[msg.MessageID]; ok {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicatePending, msg.MessageID)
	}
	s.pending[msg.MessageID] = PendingMessage{
		MessageID: msg.MessageID,
		StoreID:   msg.ID,
		Sender:    msg.Sender,
		HeldAt:    heldAt,
	}
	return nil
}

// ApproveMessage извлекает сообщение из очереди ровно один раз
func (s *ModerationState) ApproveMessage(messageID string) (PendingMessage, bool) {
	p, ok := s.pending[messageID]
	if ok {
		delete(s.pending, messageID)
	}
	return p, ok
}

func (s *ModerationState) IsPending(messageID string) bool {
	_, ok := s.pending[messageID]
	return ok
}

func (s *ModerationState) PendingCount() int {
	return len(s.pending)
}

// Drain очищает очередь и возвращает ее содержимое в порядке поступления
func (s *ModerationState) Drain() []PendingMessage {
	out := make([]PendingMessage, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HeldAt.Equal(out[j].HeldAt) {
			return out[i].MessageID < out[j].MessageID
		}
		return out[i].HeldAt.Before(out[j].HeldAt)
	})
	s.pending = make(map[string]PendingMessage)
	return out
}
