package domain

import (
	"sync"
	"sync/atomic"
	"time"
)

// Meeting - экземпляр комнаты чата. Все изменения выполняются под Lock.
type Meeting struct {
	mu     sync.Mutex
	active atomic.Bool

	ID           string
	ContainerID  string
	Creator      string
	InReplyTo    string
	CreatedAt    time.Time
	MessageCount int

	occupants   NameSet
	historical  NameSet
	transcripts NameSet
	moderation  *ModerationState
	acl         []ACLEntry
}

func NewMeeting(containerID string) *Meeting {
	return &Meeting{
		ContainerID: containerID,
		CreatedAt:   time.Now(),
		occupants:   NewNameSet(),
		historical:  NewNameSet(),
		transcripts: NewNameSet(),
	}
}

func (m *Meeting) Lock() {
	m.mu.Lock()
}

func (m *Meeting) Unlock() {
	m.mu.Unlock()
}

// IsActive можно вызывать без блокировки
func (m *Meeting) IsActive() bool {
	return m.active.Load()
}

func (m *Meeting) SetActive(active bool) {
	m.active.Store(active)
}

func (m *Meeting) Occupants() NameSet {
	return m.occupants.Clone()
}

func (m *Meeting) OccupantNames() []string {
	return m.occupants.Sorted()
}

func (m *Meeting) HasOccupant(name string) bool {
	return m.occupants.Has(name)
}

func (m *Meeting) OccupantCount() int {
	return m.occupants.Len()
}

func (m *Meeting) HistoricalOccupantNames() []string {
	return m.historical.Sorted()
}

func (m *Meeting) WasOccupant(name string) bool {
	return m.historical.Has(name)
}

// AddOccupantNames возвращает только действительно новые имена
func (m *Meeting) AddOccupantNames(names ...string) []string {
	added := make([]string, 0, len(names))
	for _, n := range names {
		if m.occupants.Add(n) {
			added = append(added, n)
		}
		m.historical.Add(n)
	}
	return added
}

func (m *Meeting) RemoveOccupantName(name string) bool {
	return m.occupants.Remove(name)
}

func (m *Meeting) AddAdditionalTranscriptName(name string) {
	m.transcripts.Add(name)
}

func (m *Meeting) AdditionalTranscriptNames() NameSet {
	return m.transcripts.Clone()
}

func (m *Meeting) Moderated() bool {
	return m.moderation != nil
}

func (m *Meeting) ModerationState() *ModerationState {
	return m.moderation
}

// SetModerated включает или выключает модерацию. При включении создается новое состояние.
func (m *Meeting) SetModerated(flag bool) bool {
	if flag == m.Moderated() {
		return false
	}
	if flag {
		m.moderation = NewModerationState()
	} else {
		m.moderation = nil
	}
	return true
}

func (m *Meeting) Grant(username string, actions ...Action) {
	for _, a := range actions {
		if !m.HasGrant(username, a) {
			m.acl = append(m.acl, ACLEntry{Username: username, Action: a})
		}
	}
}

func (m *Meeting) HasGrant(username string, action Action) bool {
	for _, e := range m.acl {
		if e.Username == username && e.Action == action {
			return true
		}
	}
	return false
}

// RoomInfo - внешнее представление комнаты
type RoomInfo struct {
	ID           string    `json:"id"`
	ContainerID  string    `json:"container_id,omitempty"`
	Creator      string    `json:"creator"`
	Active       bool      `json:"active"`
	Moderated    bool      `json:"moderated"`
	Moderators   []string  `json:"moderators,omitempty"`
	Occupants    []string  `json:"occupants"`
	MessageCount int       `json:"message_count"`
	InReplyTo    string    `json:"in_reply_to,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (m *Meeting) Info() RoomInfo {
	info := RoomInfo{
		ID:           m.ID,
		ContainerID:  m.ContainerID,
		Creator:      m.Creator,
		Active:       m.IsActive(),
		Moderated:    m.Moderated(),
		Occupants:    m.OccupantNames(),
		MessageCount: m.MessageCount,
		InReplyTo:    m.InReplyTo,
		CreatedAt:    m.CreatedAt,
	}
	if m.moderation != nil {
		info.Moderators = m.moderation.ModeratorNames()
	}
	return info
}
