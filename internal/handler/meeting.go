package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chatserver/internal/service"
	apperrors "chatserver/pkg/errors"
	"chatserver/pkg/logger"
)

type MeetingHandler struct {
	chatserver service.Chatserver
	history    service.MeetingHistoryService
	log        logger.Logger
}

func NewMeetingHandler(chatserver service.Chatserver, history service.MeetingHistoryService, log logger.Logger) *MeetingHandler {
	return &MeetingHandler{
		chatserver: chatserver,
		history:    history,
		log:        log,
	}
}

// GetMeeting отдает живую комнату ее участникам, а завершенную - из истории
func (h *MeetingHandler) GetMeeting(c *gin.Context) {
	username := c.GetString("username")
	meetingID := c.Param("id")

	if info, ok := h.chatserver.RoomInfo(meetingID); ok {
		if info.Creator != username && !contains(info.Occupants, username) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this meeting"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"meeting": info, "live": true})
		return
	}

	record, err := h.history.GetRecord(c.Request.Context(), meetingID)
	if err != nil {
		if errors.Is(err, apperrors.ErrMeetingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
			return
		}
		h.log.Error("Failed to load meeting record", "error", err, "meeting_id", meetingID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if !record.HasOccupant(username) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this meeting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meeting": record, "live": false})
}

type TranscriptHandler struct {
	transcripts service.TranscriptService
	log         logger.Logger
}

func NewTranscriptHandler(transcripts service.TranscriptService, log logger.Logger) *TranscriptHandler {
	return &TranscriptHandler{
		transcripts: transcripts,
		log:         log,
	}
}

func (h *TranscriptHandler) ListTranscripts(c *gin.Context) {
	username := c.GetString("username")

	summaries, err := h.transcripts.ListTranscripts(c.Request.Context(), username)
	if err != nil {
		h.log.Error("Failed to list transcripts", "error", err, "username", username)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcripts": summaries})
}

// GetTranscript - транскрипт встречи глазами текущего пользователя
func (h *TranscriptHandler) GetTranscript(c *gin.Context) {
	username := c.GetString("username")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	transcript, err := h.transcripts.GetTranscript(c.Request.Context(), c.Param("id"), username, limit)
	if err != nil {
		h.log.Error("Failed to load transcript", "error", err, "meeting_id", c.Param("id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if len(transcript.Messages) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "transcript not found"})
		return
	}
	c.JSON(http.StatusOK, transcript)
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}
