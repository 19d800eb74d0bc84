package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"chatserver/internal/domain"
	"chatserver/internal/service"
	apperrors "chatserver/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// performRequest прогоняет запрос через роутер от имени пользователя
func performRequest(t *testing.T, method, path, username string, register func(r *gin.Engine)) *httptest.ResponseRecorder {
	t.Helper()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if username != "" {
			c.Set("username", username)
		}
		c.Next()
	})
	register(r)

	req, err := http.NewRequest(method, path, nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

type userEvent struct {
	Username string
	Event    string
	Args     []interface{}
}

// fakeChatserver записывает вызовы; остальные методы интерфейса не используются
type fakeChatserver struct {
	service.Chatserver

	mu         sync.Mutex
	posted     []*domain.Message
	postErr    error
	rooms      map[string]domain.RoomInfo
	entered    []string
	created    []*domain.RoomSpec
	exited     []string
	moderated  map[string]bool
	approved   []string
	shadowed   map[string][]string
	userEvents []userEvent
}

func newFakeChatserver() *fakeChatserver {
	return &fakeChatserver{
		rooms:     make(map[string]domain.RoomInfo),
		moderated: make(map[string]bool),
		shadowed:  make(map[string][]string),
	}
}

func (f *fakeChatserver) PostMessageToRoom(_ context.Context, roomID string, msg *domain.Message) (service.PostResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return service.PostRejected, f.postErr
	}
	f.posted = append(f.posted, msg)
	return service.PostCounted, nil
}

func (f *fakeChatserver) EnterExistingMeeting(_ context.Context, roomID, occupant string) *domain.Meeting {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entered = append(f.entered, roomID)
	return meetingWithID(roomID)
}

func (f *fakeChatserver) CreateRoomFromSpec(_ context.Context, spec *domain.RoomSpec, _ service.SessionsValidator) *domain.Meeting {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, spec)
	return nil
}

func (f *fakeChatserver) ExitMeeting(_ context.Context, roomID, _ string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exited = append(f.exited, roomID)
	return true
}

func (f *fakeChatserver) MakeModerated(_ context.Context, roomID, _ string, flag bool) *domain.Meeting {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moderated[roomID] = flag
	return meetingWithID(roomID)
}

func (f *fakeChatserver) ApproveMessage(_ context.Context, roomID, _, messageID string) (service.PostResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved = append(f.approved, roomID+"/"+messageID)
	return service.PostCounted, nil
}

func (f *fakeChatserver) ShadowUsers(_ context.Context, roomID, _ string, usernames []string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shadowed[roomID] = append(f.shadowed[roomID], usernames...)
	return true
}

func (f *fakeChatserver) SendEventToUser(username, event string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userEvents = append(f.userEvents, userEvent{Username: username, Event: event, Args: args})
}

func (f *fakeChatserver) GetSessionFor(string, string) *domain.Session {
	return nil
}

func (f *fakeChatserver) RoomInfo(roomID string) (domain.RoomInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.rooms[roomID]
	return info, ok
}

func meetingWithID(id string) *domain.Meeting {
	m := domain.NewMeeting("")
	m.ID = id
	return m
}

type fakeHistory struct {
	service.MeetingHistoryService
	records map[string]*domain.MeetingRecord
	err     error
}

func (f *fakeHistory) GetRecord(_ context.Context, meetingID string) (*domain.MeetingRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.records[meetingID]
	if !ok {
		return nil, apperrors.ErrMeetingNotFound
	}
	return record, nil
}

type fakeTranscripts struct {
	service.TranscriptService
	transcripts map[string]*domain.Transcript
	summaries   []domain.TranscriptSummary
	lastLimit   int
	err         error
}

func (f *fakeTranscripts) GetTranscript(_ context.Context, meetingID, username string, limit int) (*domain.Transcript, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if tr, ok := f.transcripts[meetingID+"/"+username]; ok {
		return tr, nil
	}
	return &domain.Transcript{MeetingID: meetingID, Owner: username}, nil
}

func (f *fakeTranscripts) ListTranscripts(context.Context, string) ([]domain.TranscriptSummary, error) {
	return f.summaries, f.err
}

type fakeMedia struct {
	token string
	url   string
	err   error
}

func (f *fakeMedia) GetToken(context.Context, string, string) (string, string, error) {
	return f.token, f.url, f.err
}

type fakeRateLimit struct {
	service.RateLimitService
}

func (fakeRateLimit) NewSessionLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 0)
}
