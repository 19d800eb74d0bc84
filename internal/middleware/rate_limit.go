package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chatserver/internal/service"
	"chatserver/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		log:              log,
	}
}

// Limit считает запросы по пользователю, а до аутентификации - по IP
func (m *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if username := c.GetString("username"); username != "" {
			key = "user:" + username
		}
		limit := m.rateLimitService.Limit()

		allowed, remaining, err := m.rateLimitService.Allow(c.Request.Context(), key)
		if err != nil {
			// без Redis пропускаем запрос: лимит не должен ронять API
			m.log.Error("Rate limit check failed", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
