package domain

import (
	"regexp"
	"strings"
)

// Channel - подпротокол сообщения
type Channel string

const (
	ChannelDefault Channel = "DEFAULT"
	ChannelWhisper Channel = "WHISPER"
	ChannelState   Channel = "STATE"
	ChannelContent Channel = "CONTENT"
	ChannelMeta    Channel = "META"
	ChannelPoll    Channel = "POLL"
)

// Channels - закрытый набор каналов
var Channels = []Channel{ChannelDefault, ChannelWhisper, ChannelState, ChannelContent, ChannelMeta, ChannelPoll}

func (c Channel) Valid() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// Status - статус доставки сообщения
type Status string

const (
	StatusInitial  Status = ""
	StatusPending  Status = "st_PENDING"
	StatusPosted   Status = "st_POSTED"
	StatusShadowed Status = "st_SHADOWED"
)

// Значения STATE канала
var States = []string{"active", "composing", "paused", "inactive", "gone"}

func IsValidState(state string) bool {
	for _, s := range States {
		if s == state {
			return true
		}
	}
	return false
}

// Действия META канала
const (
	MetaActionPin         = "pin"
	MetaActionClearPinned = "clearPinned"
)

// Ключи тела сообщения для канальных протоколов
const (
	BodyKeyState   = "state"
	BodyKeyNTIID   = "ntiid"
	BodyKeyChannel = "channel"
	BodyKeyAction  = "action"
)

var contentIDDate = regexp.MustCompile(`^\d{4}-\d{2}(-\d{2})?$`)

// IsValidContentID проверяет ссылку на контент вида tag:authority,date:specific
func IsValidContentID(id string) bool {
	rest, ok := strings.CutPrefix(id, "tag:")
	if !ok {
		return false
	}
	tagging, specific, ok := strings.Cut(rest, ":")
	if !ok || specific == "" || strings.ContainsAny(specific, " \t\r\n") {
		return false
	}
	authority, date, ok := strings.Cut(tagging, ",")
	if !ok || authority == "" {
		return false
	}
	return contentIDDate.MatchString(date)
}
