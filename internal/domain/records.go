package domain

import "time"

// MeetingRecord - сохраненная история встречи (переживает выселение из памяти)
type MeetingRecord struct {
	ID           string     `json:"id"`
	ContainerID  string     `json:"container_id,omitempty"`
	Creator      string     `json:"creator"`
	Moderated    bool       `json:"moderated"`
	MessageCount int        `json:"message_count"`
	Occupants    []string   `json:"occupants"`
	CreatedAt    time.Time  `json:"created_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// HasOccupant - был ли пользователь когда-либо в комнате
func (r *MeetingRecord) HasOccupant(username string) bool {
	for _, o := range r.Occupants {
		if o == username {
			return true
		}
	}
	return username != "" && username == r.Creator
}

const (
	ContainerRoleMember    = "member"
	ContainerRoleModerator = "moderator"
)

// ContainerRecord - постоянная группа, в которой проводятся встречи
type ContainerRecord struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Moderated  bool      `json:"moderated"`
	Members    []string  `json:"members"`
	Moderators []string  `json:"moderators,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
