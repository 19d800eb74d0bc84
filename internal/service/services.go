package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"chatserver/internal/config"
	"chatserver/internal/repository"
	"chatserver/pkg/logger"
)

type Services struct {
	Auth        AuthService
	Sessions    SessionDirectory
	Events      EventDispatcher
	Chatserver  Chatserver
	Transcripts TranscriptService
	History     MeetingHistoryService
	Media       MediaService
	RateLimit   RateLimitService
	Audit       AuditService
	Metrics     *Metrics
}

func NewServices(repos *repository.Repositories, cfg *config.Config, reg prometheus.Registerer, log logger.Logger) *Services {
	metrics := NewMetrics(reg)
	sessions := NewSessionDirectory(log)
	events := NewEventDispatcher(cfg.Chat.EventBuffer, metrics.EventDropped, log)

	services := &Services{
		Auth:        NewAuthService(cfg.JWT, log),
		Sessions:    sessions,
		Events:      events,
		Transcripts: NewTranscriptService(repos.Transcripts, log),
		History:     NewMeetingHistoryService(repos.MeetingRecords, log),
		RateLimit:   NewRateLimitService(repos.RateLimit, cfg.Chat, log),
		Audit:       NewAuditService(repos.Audit, log),
		Metrics:     metrics,
	}

	services.Chatserver = NewChatserver(
		sessions,
		repos.Meetings,
		NewMeetingContainerStorage(repos.Containers, log),
		NewACLAuthorizer(),
		repos.Messages,
		events,
		cfg.Chat,
		log,
	)
	services.Media = NewMediaService(services.Chatserver, cfg.LiveKit, log)

	events.Subscribe(services.Transcripts)
	events.Subscribe(services.History)
	events.Subscribe(services.Audit)
	events.Subscribe(metrics)

	log.Info("Services initialized", "max_message_length", cfg.Chat.MaxMessageLength)

	return services
}
