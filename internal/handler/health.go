package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatserver/internal/service"
)

type HealthHandler struct {
	sessions service.SessionDirectory
}

func NewHealthHandler(sessions service.SessionDirectory) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"service":      "chatserver",
		"online_users": h.sessions.OnlineCount(),
	})
}
