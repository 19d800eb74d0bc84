package service

import (
	"context"

	"chatserver/internal/config"
	"chatserver/pkg/jwt"
	"chatserver/pkg/logger"
)

// AuthService проверяет access токены. Учетные записи живут во внешней системе,
// которая выпускает токены с тем же секретом.
type AuthService interface {
	ValidateToken(ctx context.Context, tokenString string) (string, error)
}

type authService struct {
	jwtCfg config.JWTConfig
	log    logger.Logger
}

func NewAuthService(jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		jwtCfg: jwtCfg,
		log:    log,
	}
}

func (s *authService) ValidateToken(_ context.Context, tokenString string) (string, error) {
	claims, err := jwt.ParseAccessToken(tokenString, s.jwtCfg.Issuer, s.jwtCfg.AccessSecret)
	if err != nil {
		s.log.Debug("Token rejected", "error", err)
		return "", err
	}
	return claims.Username(), nil
}
