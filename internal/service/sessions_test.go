package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chatserver/internal/domain"
	"chatserver/pkg/logger"
)

type failingEmitter struct{}

func (failingEmitter) Emit(string, ...interface{}) error {
	return errors.New("connection closed")
}

func TestSessionDirectory(t *testing.T) {
	d := NewSessionDirectory(logger.NewNop())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older := &recordingEmitter{}
	newer := &recordingEmitter{}
	d.Register(&domain.Session{ID: "s1", Owner: "alice", CreatedAt: base, Emitter: older})
	d.Register(&domain.Session{ID: "s2", Owner: "alice", CreatedAt: base.Add(time.Minute), Emitter: newer})
	d.Register(&domain.Session{ID: "s3", Owner: "bob", CreatedAt: base, Emitter: failingEmitter{}})
	d.Register(&domain.Session{ID: "s1", Owner: "mallory", CreatedAt: base})

	assert.Equal(t, 2, d.OnlineCount())
	assert.Equal(t, "s2", d.GetSessionFor("alice", "").ID)
	assert.Equal(t, "s1", d.GetSessionFor("alice", "s1").ID)
	assert.Nil(t, d.GetSessionFor("alice", "s3"))
	assert.Nil(t, d.GetSessionFor("mallory", ""))

	d.SendEventToUser("alice", domain.EventEnteredRoom, "room")
	assert.Len(t, older.Named(domain.EventEnteredRoom), 1)
	assert.Len(t, newer.Named(domain.EventEnteredRoom), 1)

	// ошибка одной сессии не прерывает рассылку
	d.SendEventToUser("bob", domain.EventEnteredRoom, "room")
	d.SendEventToUser("nobody", domain.EventEnteredRoom, "room")

	removed := d.Unregister("s2")
	assert.Equal(t, "alice", removed.Owner)
	assert.Nil(t, d.Unregister("s2"))
	assert.Equal(t, "s1", d.GetSessionFor("alice", "").ID)

	d.Unregister("s1")
	assert.Nil(t, d.GetSessionFor("alice", ""))
	assert.Equal(t, 1, d.OnlineCount())
}
