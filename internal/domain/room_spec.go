package domain

import (
	"encoding/json"
	"fmt"
)

// OccupantRef - имя пользователя и, возможно, конкретная сессия
type OccupantRef struct {
	Username  string
	SessionID string
}

// UnmarshalJSON принимает "name" или ["name", "session"]
func (o *OccupantRef) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*o = OccupantRef{Username: name}
		return nil
	}
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil || len(pair) == 0 || len(pair) > 2 {
		return fmt.Errorf("invalid occupant %s", string(data))
	}
	*o = OccupantRef{Username: pair[0]}
	if len(pair) == 2 {
		o.SessionID = pair[1]
	}
	return nil
}

func (o OccupantRef) MarshalJSON() ([]byte, error) {
	if o.SessionID == "" {
		return json.Marshal(o.Username)
	}
	return json.Marshal([]string{o.Username, o.SessionID})
}

// RoomSpec - запрос на создание комнаты или вход в нее
type RoomSpec struct {
	RoomID      string        `json:"room_id,omitempty"`
	ContainerID string        `json:"container_id,omitempty"`
	Creator     string        `json:"creator,omitempty"`
	InReplyTo   string        `json:"in_reply_to,omitempty"`
	Occupants   []OccupantRef `json:"occupants,omitempty"`
}

func (s *RoomSpec) OccupantNames() []string {
	names := make([]string, 0, len(s.Occupants))
	for _, o := range s.Occupants {
		names = append(names, o.Username)
	}
	return names
}

// WithoutOccupant убирает все упоминания пользователя
func (s *RoomSpec) WithoutOccupant(username string) {
	kept := s.Occupants[:0]
	for _, o := range s.Occupants {
		if o.Username != username {
			kept = append(kept, o)
		}
	}
	s.Occupants = kept
}
