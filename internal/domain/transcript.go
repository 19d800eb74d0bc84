package domain

import "time"

// TranscriptSummary - краткие сведения о транскрипте пользователя
type TranscriptSummary struct {
	MeetingID     string    `json:"meeting_id"`
	MessageCount  int64     `json:"message_count"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// Transcript - сообщения встречи, видимые пользователю
type Transcript struct {
	MeetingID string     `json:"meeting_id"`
	Owner     string     `json:"owner"`
	Messages  []*Message `json:"messages"`
}
