package handler

import (
	"chatserver/internal/config"
	"chatserver/internal/service"
	"chatserver/pkg/logger"
)

type Handlers struct {
	Health     *HealthHandler
	Meeting    *MeetingHandler
	Transcript *TranscriptHandler
	Media      *MediaHandler
	WebSocket  *WebSocketHandler
}

func NewHandlers(services *service.Services, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:     NewHealthHandler(services.Sessions),
		Meeting:    NewMeetingHandler(services.Chatserver, services.History, log),
		Transcript: NewTranscriptHandler(services.Transcripts, log),
		Media:      NewMediaHandler(services.Media, log),
		WebSocket:  NewWebSocketHandler(services, cfg.Chat, log),
	}
}
