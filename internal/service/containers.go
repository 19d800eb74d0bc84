package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatserver/internal/domain"
	"chatserver/internal/repository"
	apperrors "chatserver/pkg/errors"
	"chatserver/pkg/logger"
)

const containerRefreshInterval = 5 * time.Minute

// MeetingFactory создает новую, еще не зарегистрированную встречу
type MeetingFactory func() *domain.Meeting

// MeetingContainer - постоянный контекст (группа, секция курса), в котором проходят встречи
type MeetingContainer interface {
	// CreateOrEnterMeeting может запретить создание (nil), вернуть активную или еще создаваемую
	// встречу (created=false) или создать новую через factory. Может заменить список участников в spec.
	CreateOrEnterMeeting(ctx context.Context, cs Chatserver, spec *domain.RoomSpec, factory MeetingFactory) (meeting *domain.Meeting, created bool)
	EnterActiveMeeting(ctx context.Context, cs Chatserver, spec *domain.RoomSpec) *domain.Meeting
	MeetingBecameEmpty(ctx context.Context, cs Chatserver, meeting *domain.Meeting)
}

type MeetingContainerStorage interface {
	Get(ctx context.Context, containerID string) MeetingContainer
}

// groupContainer - одна активная встреча на группу, участники ограничены составом группы
type groupContainer struct {
	mu       sync.Mutex
	record   *domain.ContainerRecord
	members  domain.NameSet
	loadedAt time.Time
	active   *domain.Meeting
}

func newGroupContainer(record *domain.ContainerRecord, loadedAt time.Time) *groupContainer {
	c := &groupContainer{}
	c.refresh(record, loadedAt)
	return c
}

func (c *groupContainer) refresh(record *domain.ContainerRecord, loadedAt time.Time) {
	c.record = record
	c.members = domain.NewNameSet(record.Members...)
	c.loadedAt = loadedAt
}

func (c *groupContainer) CreateOrEnterMeeting(_ context.Context, _ Chatserver, spec *domain.RoomSpec, factory MeetingFactory) (*domain.Meeting, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.members.Has(spec.Creator) {
		return nil, false
	}
	// неактивная c.active еще создается: ее создатель держит блокировку встречи
	if c.active != nil {
		return c.active, false
	}

	// приглашаем всю группу; сессия создателя сохраняется
	occupants := make([]domain.OccupantRef, 0, c.members.Len())
	for _, name := range c.members.Sorted() {
		ref := domain.OccupantRef{Username: name}
		for _, o := range spec.Occupants {
			if o.Username == name {
				ref.SessionID = o.SessionID
			}
		}
		occupants = append(occupants, ref)
	}
	spec.Occupants = occupants

	meeting := factory()
	for name := range c.members {
		meeting.Grant(name, domain.ActionEnter)
	}
	if c.record.Moderated {
		meeting.SetModerated(true)
		for _, name := range c.record.Moderators {
			meeting.ModerationState().AddModerator(name)
			meeting.Grant(name, domain.ActionModerate)
		}
	}

	c.active = meeting
	return meeting, true
}

func (c *groupContainer) EnterActiveMeeting(_ context.Context, _ Chatserver, spec *domain.RoomSpec) *domain.Meeting {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || !c.active.IsActive() {
		return nil
	}
	for _, name := range spec.OccupantNames() {
		if !c.members.Has(name) {
			return nil
		}
	}
	return c.active
}

func (c *groupContainer) MeetingBecameEmpty(_ context.Context, _ Chatserver, meeting *domain.Meeting) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == meeting {
		c.active = nil
	}
}

// containerStorage загружает группы из Postgres и держит их в памяти,
// чтобы помнить активную встречу каждой группы
type containerStorage struct {
	mu         sync.Mutex
	repo       repository.ContainerRepository
	containers map[string]*groupContainer
	now        func() time.Time
	log        logger.Logger
}

func NewMeetingContainerStorage(repo repository.ContainerRepository, log logger.Logger) MeetingContainerStorage {
	return &containerStorage{
		repo:       repo,
		containers: make(map[string]*groupContainer),
		now:        time.Now,
		log:        log,
	}
}

func (s *containerStorage) Get(ctx context.Context, containerID string) MeetingContainer {
	if containerID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok := s.containers[containerID]
	if ok && s.now().Sub(cached.loadedAt) < containerRefreshInterval {
		return cached
	}

	record, err := s.repo.GetByID(ctx, containerID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrContainerNotFound) {
			s.log.Error("Failed to load meeting container", "error", err, "container_id", containerID)
		}
		if ok {
			// устаревшие данные лучше, чем потерянная активная встреча
			return cached
		}
		return nil
	}

	if ok {
		cached.mu.Lock()
		cached.refresh(record, s.now())
		cached.mu.Unlock()
		return cached
	}

	container := newGroupContainer(record, s.now())
	s.containers[containerID] = container
	return container
}
