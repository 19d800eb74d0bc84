package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"chatserver/pkg/logger"
)

func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
		}
		if username := c.GetString("username"); username != "" {
			fields = append(fields, "username", username)
		}

		switch {
		case status >= 500:
			log.Error("Request failed", fields...)
		case status >= 400:
			log.Warn("Request rejected", fields...)
		default:
			log.Info("Request handled", fields...)
		}
	}
}
