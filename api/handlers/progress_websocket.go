package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/ytrelay-go/internal/app"
	"github.com/yourusername/ytrelay-go/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressWebSocketHandler attaches websocket clients to the progress hub
type ProgressWebSocketHandler struct {
	hub    *app.ProgressHub
	logger *zap.Logger
}

// NewProgressWebSocketHandler creates a new websocket handler
func NewProgressWebSocketHandler(hub *app.ProgressHub, log *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{hub: hub, logger: log}
}

// wsSink is a domain.ProgressSink over one websocket connection
type wsSink struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
}

func (s *wsSink) Send(ctx context.Context, event domain.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteJSON(event)
}

func (s *wsSink) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *wsSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.mu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// HandleWebSocket handles GET /ws/:client_id. Frames sent by the client are
// read and discarded; the connection lives until either side closes it.
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	clientID := c.Param("client_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}

	sink := &wsSink{conn: conn}
	defer sink.Close()

	sub := h.hub.Subscribe(clientID, sink)
	defer sub.Close()

	h.logger.Info("WebSocket client connected",
		zap.String("client_id", clientID),
		zap.String("remote_addr", c.Request.RemoteAddr))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := sink.ping(); err != nil {
				h.logger.Debug("WebSocket ping failed", zap.String("client_id", clientID), zap.Error(err))
				return
			}
		case <-done:
			h.logger.Info("WebSocket client disconnected", zap.String("client_id", clientID))
			return
		}
	}
}
