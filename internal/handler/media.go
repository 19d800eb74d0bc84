package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatserver/internal/service"
	apperrors "chatserver/pkg/errors"
	"chatserver/pkg/logger"
)

type MediaHandler struct {
	mediaService service.MediaService
	log          logger.Logger
}

func NewMediaHandler(mediaService service.MediaService, log logger.Logger) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		log:          log,
	}
}

func (h *MediaHandler) GetToken(c *gin.Context) {
	username := c.GetString("username")

	token, url, err := h.mediaService.GetToken(c.Request.Context(), c.Param("id"), username)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "url": url})
}
