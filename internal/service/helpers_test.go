package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatserver/internal/config"
	"chatserver/internal/domain"
	"chatserver/internal/repository"
	apperrors "chatserver/pkg/errors"
	"chatserver/pkg/logger"
)

type emitted struct {
	Event string
	Args  []interface{}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *recordingEmitter) Emit(event string, args ...interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{Event: event, Args: args})
	return nil
}

func (e *recordingEmitter) Named(event string) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitted
	for _, ev := range e.events {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (e *recordingEmitter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

type memoryMessageStore struct {
	mu       sync.Mutex
	nextID   int64
	messages map[int64]*domain.Message
	updates  int
	addErr   error
}

func newMemoryMessageStore() *memoryMessageStore {
	return &memoryMessageStore{messages: make(map[int64]*domain.Message)}
}

func (s *memoryMessageStore) AddMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.addErr
	}
	s.nextID++
	msg.ID = s.nextID
	s.messages[msg.ID] = msg.Clone()
	return nil
}

func (s *memoryMessageStore) GetMessage(_ context.Context, id int64) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, apperrors.ErrMessageNotFound
	}
	return msg.Clone(), nil
}

func (s *memoryMessageStore) UpdateDelivery(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	s.messages[msg.ID] = msg.Clone()
	return nil
}

func (s *memoryMessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *memoryMessageStore) WithStatus(status domain.Status) []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for _, m := range s.messages {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.MeetingEvent
}

func (n *recordingNotifier) Notify(evt domain.MeetingEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *recordingNotifier) OfType(t domain.MeetingEventType) []domain.MeetingEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.MeetingEvent
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeContainerStorage struct {
	containers map[string]MeetingContainer
}

func (s *fakeContainerStorage) Get(_ context.Context, id string) MeetingContainer {
	if s == nil || s.containers == nil {
		return nil
	}
	c, ok := s.containers[id]
	if !ok {
		return nil
	}
	return c
}

// testServer собирает Chatserver на фейках и дает доступ к ним из тестов
type testServer struct {
	t          *testing.T
	server     Chatserver
	sessions   SessionDirectory
	meetings   repository.MeetingStorage
	store      *memoryMessageStore
	notifier   *recordingNotifier
	containers *fakeContainerStorage
	emitters   map[string]*recordingEmitter
	clock      time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewNop()
	ts := &testServer{
		t:          t,
		sessions:   NewSessionDirectory(log),
		meetings:   repository.NewMeetingStorage(),
		store:      newMemoryMessageStore(),
		notifier:   &recordingNotifier{},
		containers: &fakeContainerStorage{containers: make(map[string]MeetingContainer)},
		emitters:   make(map[string]*recordingEmitter),
		clock:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	ts.server = NewChatserver(ts.sessions, ts.meetings, ts.containers, NewACLAuthorizer(),
		ts.store, ts.notifier, config.ChatConfig{MaxMessageLength: 1024}, log)
	return ts
}

// connect регистрирует сессию пользователя и возвращает ее эмиттер
func (ts *testServer) connect(username string) *recordingEmitter {
	ts.t.Helper()
	em := &recordingEmitter{}
	ts.clock = ts.clock.Add(time.Second)
	ts.sessions.Register(&domain.Session{
		ID:        username + "-" + ts.clock.Format("150405"),
		Owner:     username,
		CreatedAt: ts.clock,
		Emitter:   em,
	})
	ts.emitters[username] = em
	return em
}

func (ts *testServer) resetEmitters() {
	for _, em := range ts.emitters {
		em.Reset()
	}
}

// room создает комнату с подключенными участниками; первый - создатель
func (ts *testServer) room(names ...string) *domain.Meeting {
	ts.t.Helper()
	occupants := make([]domain.OccupantRef, 0, len(names))
	for _, n := range names {
		if _, ok := ts.emitters[n]; !ok {
			ts.connect(n)
		}
		occupants = append(occupants, domain.OccupantRef{Username: n})
	}
	m := ts.server.CreateRoomFromSpec(context.Background(), &domain.RoomSpec{Occupants: occupants}, nil)
	require.NotNil(ts.t, m)
	ts.resetEmitters()
	return m
}

// moderatedRoom делает комнату модерируемой от имени создателя
func (ts *testServer) moderatedRoom(names ...string) *domain.Meeting {
	ts.t.Helper()
	m := ts.room(names...)
	require.NotNil(ts.t, ts.server.MakeModerated(context.Background(), m.ID, names[0], true))
	ts.resetEmitters()
	return m
}

func (ts *testServer) received(username, event string) []*domain.Message {
	var out []*domain.Message
	for _, ev := range ts.emitters[username].Named(event) {
		if msg, ok := ev.Args[0].(*domain.Message); ok {
			out = append(out, msg)
		}
	}
	return out
}

func (ts *testServer) post(roomID, sender string, channel domain.Channel, body domain.Body, recipients ...string) (*domain.Message, PostResult, error) {
	msg := &domain.Message{
		Sender:     sender,
		Channel:    channel,
		Body:       body,
		Recipients: recipients,
	}
	result, err := ts.server.PostMessageToRoom(context.Background(), roomID, msg)
	return msg, result, err
}
