package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"
)

// Message - сообщение чата. Адресация и отправитель уже проверены транспортом.
type Message struct {
	ID              int64     `json:"-"`
	MessageID       string    `json:"id"`
	Sender          string    `json:"sender"`
	SenderSessionID string    `json:"-"`
	Recipients      []string  `json:"recipients,omitempty"`
	Rooms           []string  `json:"rooms,omitempty"`
	Channel         Channel   `json:"channel,omitempty"`
	Body            Body      `json:"body"`
	Status          Status    `json:"status,omitempty"`
	ContainerID     string    `json:"container_id,omitempty"`
	InReplyTo       string    `json:"in_reply_to,omitempty"`
	SharedWith      []string  `json:"shared_with,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Stored - получил ли message идентификатор в хранилище
func (m *Message) Stored() bool {
	return m.ID != 0
}

func (m *Message) RecipientsWithSender() NameSet {
	s := NewNameSet(m.Recipients...)
	s.Add(m.Sender)
	return s
}

func (m *Message) RecipientsWithoutSender() NameSet {
	s := NewNameSet(m.Recipients...)
	s.Remove(m.Sender)
	return s
}

// Clone делает глубокую копию сообщения
func (m *Message) Clone() *Message {
	c := *m
	c.Recipients = cloneStrings(m.Recipients)
	c.Rooms = cloneStrings(m.Rooms)
	c.SharedWith = cloneStrings(m.SharedWith)
	c.Body = m.Body.Clone()
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// BodyPart - текст или непрозрачный объект (например, canvas)
type BodyPart struct {
	Text string
	Raw  json.RawMessage
}

func TextPart(text string) BodyPart {
	return BodyPart{Text: text}
}

func (p BodyPart) IsText() bool {
	return p.Raw == nil
}

// Len - вклад части в длину сообщения: руны текста, объект считается за единицу
func (p BodyPart) Len() int {
	if p.IsText() {
		return utf8.RuneCountInString(p.Text)
	}
	return 1
}

func (p BodyPart) MarshalJSON() ([]byte, error) {
	if p.Raw != nil {
		return p.Raw, nil
	}
	return json.Marshal(p.Text)
}

func (p *BodyPart) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = BodyPart{Text: s}
		return nil
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	*p = BodyPart{Raw: raw}
	return nil
}

// Body - последовательность частей (DEFAULT/WHISPER) или небольшая карта (STATE/CONTENT/META/POLL)
type Body struct {
	Parts  []BodyPart
	Fields map[string]string
}

func TextBody(parts ...string) Body {
	b := Body{Parts: make([]BodyPart, 0, len(parts))}
	for _, p := range parts {
		b.Parts = append(b.Parts, TextPart(p))
	}
	return b
}

func FieldsBody(fields map[string]string) Body {
	return Body{Fields: fields}
}

func (b Body) IsMapping() bool {
	return b.Fields != nil
}

// Field возвращает значение ключа карты
func (b Body) Field(key string) (string, bool) {
	if b.Fields == nil {
		return "", false
	}
	v, ok := b.Fields[key]
	return v, ok
}

// Length - суммарная длина всех частей
func (b Body) Length() int {
	n := 0
	for _, p := range b.Parts {
		n += p.Len()
	}
	return n
}

// Only оставляет в карте только указанные ключи
func (b Body) Only(keys ...string) Body {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := b.Fields[k]; ok {
			out[k] = v
		}
	}
	return Body{Fields: out}
}

func (b Body) Clone() Body {
	c := Body{}
	if b.Parts != nil {
		c.Parts = make([]BodyPart, len(b.Parts))
		copy(c.Parts, b.Parts)
	}
	if b.Fields != nil {
		c.Fields = make(map[string]string, len(b.Fields))
		for k, v := range b.Fields {
			c.Fields[k] = v
		}
	}
	return c
}

func (b Body) MarshalJSON() ([]byte, error) {
	if b.Fields != nil {
		return json.Marshal(b.Fields)
	}
	if b.Parts == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(b.Parts)
}

func (b *Body) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = Body{}
		return nil
	}

	switch data[0] {
	case '[':
		var parts []BodyPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("invalid message body: %w", err)
		}
		*b = Body{Parts: parts}
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("invalid message body: %w", err)
		}
		fields := make(map[string]string, len(raw))
		for k, v := range raw {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				fields[k] = s
				continue
			}
			fields[k] = string(v)
		}
		*b = Body{Fields: fields}
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid message body: %w", err)
		}
		*b = TextBody(s)
	default:
		return fmt.Errorf("invalid message body: unexpected %q", data[0])
	}
	return nil
}
