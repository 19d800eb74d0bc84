package service

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"chatserver/internal/config"
	"chatserver/internal/repository"
	"chatserver/pkg/logger"
)

// RateLimitService - лимит HTTP запросов в окне, общий для всех экземпляров через Redis
type RateLimitService interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
	Limit() int
	// NewSessionLimiter - локальный лимит сообщений одного websocket подключения
	NewSessionLimiter() *rate.Limiter
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	limit         int
	window        time.Duration
	perSecond     float64
	burst         int
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, cfg config.ChatConfig, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		limit:         cfg.HTTPRateLimit,
		window:        cfg.HTTPRateWindow,
		perSecond:     cfg.MessagesPerSecond,
		burst:         cfg.MessageBurst,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, key string) (bool, int, error) {
	return s.rateLimitRepo.Allow(ctx, key, s.limit, s.window)
}

func (s *rateLimitService) Limit() int {
	return s.limit
}

func (s *rateLimitService) NewSessionLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(s.perSecond), s.burst)
}
