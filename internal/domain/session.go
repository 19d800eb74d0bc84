package domain

import "time"

// Emitter доставляет событие в конкретное подключение
type Emitter interface {
	Emit(event string, args ...interface{}) error
}

// Session - живая точка доставки пользователя
type Session struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	Emitter   Emitter   `json:"-"`
}
