package repository

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"chatserver/internal/domain"
	apperrors "chatserver/pkg/errors"
)

// MeetingStorage - реестр активных встреч в памяти процесса.
// Добавление и удаление атомарны относительно Get.
type MeetingStorage interface {
	// AddRoom присваивает встрече идентификатор и регистрирует ее
	AddRoom(meeting *domain.Meeting) error
	Get(id string) *domain.Meeting
	Delete(id string) bool
	Len() int
}

type meetingStorage struct {
	mu       sync.RWMutex
	meetings map[string]*domain.Meeting
	newID    func() string
}

func NewMeetingStorage() MeetingStorage {
	return &meetingStorage{
		meetings: make(map[string]*domain.Meeting),
		newID:    uuid.NewString,
	}
}

func (s *meetingStorage) AddRoom(meeting *domain.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if meeting.ID == "" {
		meeting.ID = s.newID()
	}
	if _, ok := s.meetings[meeting.ID]; ok {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateMeeting, meeting.ID)
	}
	s.meetings[meeting.ID] = meeting
	return nil
}

func (s *meetingStorage) Get(id string) *domain.Meeting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meetings[id]
}

func (s *meetingStorage) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[id]; !ok {
		return false
	}
	delete(s.meetings, id)
	return true
}

func (s *meetingStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meetings)
}
