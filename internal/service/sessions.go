package service

import (
	"sync"

	"chatserver/internal/domain"
	"chatserver/pkg/logger"
)

// SessionDirectory сопоставляет имя пользователя с его живыми подключениями
type SessionDirectory interface {
	Register(session *domain.Session)
	Unregister(sessionID string) *domain.Session
	// GetSessionFor возвращает самую свежую сессию пользователя (или конкретную, если указан sessionID)
	GetSessionFor(username, sessionID string) *domain.Session
	SendEventToUser(username, event string, args ...interface{})
	OnlineCount() int
}

type sessionDirectory struct {
	mu      sync.RWMutex
	byOwner map[string][]*domain.Session
	byID    map[string]*domain.Session
	log     logger.Logger
}

func NewSessionDirectory(log logger.Logger) SessionDirectory {
	return &sessionDirectory{
		byOwner: make(map[string][]*domain.Session),
		byID:    make(map[string]*domain.Session),
		log:     log,
	}
}

func (d *sessionDirectory) Register(session *domain.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byID[session.ID]; ok {
		return
	}
	d.byID[session.ID] = session
	d.byOwner[session.Owner] = append(d.byOwner[session.Owner], session)
}

func (d *sessionDirectory) Unregister(sessionID string) *domain.Session {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, ok := d.byID[sessionID]
	if !ok {
		return nil
	}
	delete(d.byID, sessionID)

	sessions := d.byOwner[session.Owner]
	kept := make([]*domain.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.ID != sessionID {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(d.byOwner, session.Owner)
	} else {
		d.byOwner[session.Owner] = kept
	}
	return session
}

func (d *sessionDirectory) GetSessionFor(username, sessionID string) *domain.Session {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var latest *domain.Session
	for _, s := range d.byOwner[username] {
		if sessionID != "" && s.ID != sessionID {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	return latest
}

func (d *sessionDirectory) SendEventToUser(username, event string, args ...interface{}) {
	d.mu.RLock()
	sessions := make([]*domain.Session, len(d.byOwner[username]))
	copy(sessions, d.byOwner[username])
	d.mu.RUnlock()

	for _, s := range sessions {
		if s.Emitter == nil {
			continue
		}
		if err := s.Emitter.Emit(event, args...); err != nil {
			d.log.Warn("Failed to emit event to session",
				"error", err, "event", event, "username", username, "session_id", s.ID)
		}
	}
}

func (d *sessionDirectory) OnlineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byOwner)
}
