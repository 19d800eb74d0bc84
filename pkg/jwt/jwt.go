package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "chatserver/pkg/errors"
)

// Claims - содержимое access токена. Subject хранит имя пользователя.
type Claims struct {
	jwt.RegisteredClaims
}

// Username возвращает имя пользователя из токена
func (c *Claims) Username() string {
	return c.Subject
}

// GenerateAccessToken подписывает HS256 токен для пользователя
func GenerateAccessToken(username, issuer, secret string, ttl time.Duration) (string, error) {
	if username == "" {
		return "", errors.New("username is required")
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken проверяет подпись, издателя и срок действия токена
func ParseAccessToken(tokenString, issuer, secret string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}
