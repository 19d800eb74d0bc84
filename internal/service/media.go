package service

import (
	"context"
	"errors"

	"github.com/livekit/protocol/auth"

	"chatserver/internal/config"
	apperrors "chatserver/pkg/errors"
	"chatserver/pkg/logger"
)

// MediaService выдает токены LiveKit участникам активной встречи
type MediaService interface {
	GetToken(ctx context.Context, meetingID, username string) (token string, url string, err error)
}

type mediaService struct {
	chatserver Chatserver
	cfg        config.LiveKitConfig
	log        logger.Logger
}

func NewMediaService(chatserver Chatserver, cfg config.LiveKitConfig, log logger.Logger) MediaService {
	return &mediaService{
		chatserver: chatserver,
		cfg:        cfg,
		log:        log,
	}
}

func (s *mediaService) GetToken(ctx context.Context, meetingID, username string) (string, string, error) {
	info, ok := s.chatserver.RoomInfo(meetingID)
	if !ok {
		return "", "", apperrors.ErrMeetingNotFound
	}
	if !info.Active {
		return "", "", apperrors.ErrMeetingInactive
	}
	if !contains(info.Occupants, username) {
		return "", "", apperrors.ErrNotOccupant
	}

	// в модерируемой встрече публиковать медиа могут только модераторы
	canPublish := !info.Moderated || contains(info.Moderators, username)
	canSubscribe := true
	canPublishData := true

	at := auth.NewAccessToken(s.cfg.APIKey, s.cfg.APISecret)
	grant := &auth.VideoGrant{
		RoomJoin:       true,
		Room:           info.ID,
		CanPublish:     &canPublish,
		CanSubscribe:   &canSubscribe,
		CanPublishData: &canPublishData,
	}

	at.AddGrant(grant).
		SetIdentity(username).
		SetName(username).
		SetValidFor(s.cfg.TokenTTL)

	token, err := at.ToJWT()
	if err != nil {
		s.log.Error("Failed to generate LiveKit token", "error", err, "meeting_id", meetingID)
		return "", "", errors.New("failed to generate token")
	}

	return token, s.cfg.PublicLiveKitURL(), nil
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}
