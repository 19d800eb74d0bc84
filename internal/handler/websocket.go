package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"chatserver/internal/config"
	"chatserver/internal/domain"
	"chatserver/internal/service"
	apperrors "chatserver/pkg/errors"
	"chatserver/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	maxFrameSize   = 64 * 1024
	frameTimeout   = 10 * time.Second
	readBufferSize = 1024
)

// Входящие события клиента
const (
	eventPostMessage        = "chat_postMessage"
	eventEnterRoom          = "chat_enterRoom"
	eventExitRoom           = "chat_exitRoom"
	eventMakeModerated      = "chat_makeModerated"
	eventApproveMessages    = "chat_approveMessages"
	eventFlagMessagesToUser = "chat_flagMessagesToUsers"
	eventShadowUsers        = "chat_shadowUsers"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  readBufferSize,
	WriteBufferSize: readBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin проверяет CORS на уровне прокси
	},
}

type WebSocketHandler struct {
	authService service.AuthService
	chatserver  service.Chatserver
	sessions    service.SessionDirectory
	rateLimit   service.RateLimitService
	metrics     *service.Metrics
	cfg         config.ChatConfig
	log         logger.Logger
}

func NewWebSocketHandler(services *service.Services, cfg config.ChatConfig, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		authService: services.Auth,
		chatserver:  services.Chatserver,
		sessions:    services.Sessions,
		rateLimit:   services.RateLimit,
		metrics:     services.Metrics,
		cfg:         cfg,
		log:         log,
	}
}

func requestToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	token := requestToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
		return
	}
	username, err := h.authService.ValidateToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := newWSClient(h.cfg.SessionSendBuffer)
	session := &domain.Session{
		ID:        uuid.NewString(),
		Owner:     username,
		CreatedAt: time.Now(),
		Emitter:   client,
	}
	h.sessions.Register(session)
	h.metrics.SessionOpened()

	log := h.log.With("username", username, "session_id", session.ID)
	log.Info("Chat session opened")

	s := &socketSession{
		chat:    service.NewChatHandler(h.chatserver, session, h.log),
		client:  client,
		limiter: h.rateLimit.NewSessionLimiter(),
		metrics: h.metrics,
		log:     log,
	}

	go h.writePump(conn, client)
	h.readPump(conn, s)

	h.sessions.Unregister(session.ID)
	client.close()
	s.chat.Destroy(context.Background())
	h.metrics.SessionClosed()
	log.Info("Chat session closed")
}

func (h *WebSocketHandler) readPump(conn *websocket.Conn, s *socketSession) {
	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Unexpected websocket close", "error", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.metrics.FrameRejected("malformed")
			s.log.Debug("Dropping malformed frame", "error", err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
		s.handleFrame(ctx, f)
		cancel()
	}
}

func (h *WebSocketHandler) writePump(conn *websocket.Conn, client *wsClient) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("Failed to write frame", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// socketSession разбирает входящие кадры одной сессии и вызывает ChatHandler
type socketSession struct {
	chat    *service.ChatHandler
	client  domain.Emitter
	limiter *rate.Limiter
	metrics *service.Metrics
	log     logger.Logger
}

func (s *socketSession) handleFrame(ctx context.Context, f frame) {
	if !s.limiter.Allow() {
		s.metrics.FrameRejected("rate_limited")
		s.log.Debug("Dropping frame over rate limit", "name", f.Name)
		return
	}
	if err := s.dispatch(ctx, f); err != nil {
		s.metrics.FrameRejected("invalid")
		s.log.Debug("Rejected frame", "name", f.Name, "error", err)
	}
}

func (s *socketSession) dispatch(ctx context.Context, f frame) error {
	switch f.Name {
	case eventPostMessage:
		var msg domain.Message
		if err := arg(f, 0, &msg); err != nil {
			return err
		}
		if _, err := s.chat.PostMessage(ctx, &msg); err != nil {
			if errors.Is(err, apperrors.ErrMessageTooBig) {
				return s.client.Emit(domain.EventFailedToPostMessage, gin.H{"id": msg.MessageID, "error": err.Error()})
			}
			return err
		}
	case eventEnterRoom:
		var spec domain.RoomSpec
		if err := arg(f, 0, &spec); err != nil {
			return err
		}
		s.chat.EnterRoom(ctx, &spec)
	case eventExitRoom:
		var roomID string
		if err := arg(f, 0, &roomID); err != nil {
			return err
		}
		s.chat.ExitRoom(ctx, roomID)
	case eventMakeModerated:
		var (
			roomID string
			flag   bool
		)
		if err := arg(f, 0, &roomID); err != nil {
			return err
		}
		if err := arg(f, 1, &flag); err != nil {
			return err
		}
		s.chat.MakeModerated(ctx, roomID, flag)
	case eventApproveMessages:
		var ids []string
		if err := arg(f, 0, &ids); err != nil {
			return err
		}
		s.chat.ApproveMessages(ctx, ids)
	case eventFlagMessagesToUser:
		var ids, usernames []string
		if err := arg(f, 0, &ids); err != nil {
			return err
		}
		if err := arg(f, 1, &usernames); err != nil {
			return err
		}
		s.chat.FlagMessagesToUsers(ids, usernames)
	case eventShadowUsers:
		var (
			roomID    string
			usernames []string
		)
		if err := arg(f, 0, &roomID); err != nil {
			return err
		}
		if err := arg(f, 1, &usernames); err != nil {
			return err
		}
		s.chat.ShadowUsers(ctx, roomID, usernames)
	default:
		return fmt.Errorf("%w: unknown event %q", apperrors.ErrBadRequest, f.Name)
	}
	return nil
}

func arg(f frame, i int, v interface{}) error {
	if i >= len(f.Args) {
		return fmt.Errorf("%w: %s expects argument %d", apperrors.ErrBadRequest, f.Name, i+1)
	}
	if err := json.Unmarshal(f.Args[i], v); err != nil {
		return fmt.Errorf("%w: %s argument %d: %v", apperrors.ErrBadRequest, f.Name, i+1, err)
	}
	return nil
}
