package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/AnTengye/invoicedesk/middleware"
	"github.com/AnTengye/invoicedesk/service"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

// StreamHandler pushes upload task snapshots over a websocket
type StreamHandler struct {
	tracker  *service.UploadTracker
	upgrader websocket.Upgrader
}

func NewStreamHandler(tracker *service.UploadTracker, allowOrigins []string) *StreamHandler {
	return &StreamHandler{
		tracker: tracker,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowOrigins),
		},
	}
}

// Stream sends every change of a visible task as a JSON message until the
// client goes away. A removed task is sent once more with removed set.
func (h *StreamHandler) Stream(c *gin.Context) {
	owner, ok := ownerScope(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "request_id", middleware.GetRequestID(c))
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.tracker.Subscribe()
	defer unsubscribe()

	// Reader: handles pongs and notices the client closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("upload stream read error", "error", err)
				}
				return
			}
		}
	}()

	// Current state first, so a client never misses a task that finished
	// before it connected
	for _, task := range h.tracker.List(owner) {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(task); err != nil {
			return
		}
	}

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case task, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(streamWriteWait))
				return
			}
			if owner != "" && task.Owner != owner {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(task); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func originChecker(allowOrigins []string) func(r *http.Request) bool {
	for _, o := range allowOrigins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowOrigins {
			if o == origin {
				return true
			}
		}
		return false
	}
}
