package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// notificationHub fans command notifications out to websocket subscribers,
// keyed by session id.
type notificationHub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]struct{}
}

func newNotificationHub(logger *zap.Logger) *notificationHub {
	return &notificationHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
		conns:  make(map[string]map[*websocket.Conn]struct{}),
	}
}

// notification is the wire format pushed to subscribers.
type notification struct {
	SessionID string   `json:"sessionId"`
	Command   string   `json:"command,omitempty"`
	Messages  []string `json:"messages"`
}

// Subscribe upgrades the request and registers the connection for the
// session's notifications until the client disconnects.
func (h *notificationHub) Subscribe(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return
	}

	h.mu.Lock()
	if h.conns[sessionID] == nil {
		h.conns[sessionID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[sessionID][conn] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("websocket subscriber added", zap.String("session_id", sessionID))

	// Drain reads until the peer closes; the feed is one-directional.
	go func() {
		defer h.remove(sessionID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish sends messages to every subscriber of the session. Dead
// connections are dropped.
func (h *notificationHub) Publish(sessionID, commandType string, messages []string) {
	if len(messages) == 0 {
		return
	}

	h.mu.RLock()
	subscribers := make([]*websocket.Conn, 0, len(h.conns[sessionID]))
	for conn := range h.conns[sessionID] {
		subscribers = append(subscribers, conn)
	}
	h.mu.RUnlock()

	payload := notification{SessionID: sessionID, Command: commandType, Messages: messages}

	for _, conn := range subscribers {
		if err := conn.WriteJSON(payload); err != nil {
			h.remove(sessionID, conn)
		}
	}
}

func (h *notificationHub) remove(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	if subs, ok := h.conns[sessionID]; ok {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.conns, sessionID)
		}
	}
	h.mu.Unlock()

	conn.Close()
}

// CloseSession disconnects every subscriber of one session.
func (h *notificationHub) CloseSession(sessionID string) {
	h.mu.Lock()
	subs := h.conns[sessionID]
	delete(h.conns, sessionID)
	h.mu.Unlock()

	for conn := range subs {
		conn.Close()
	}
}

// CloseAll disconnects every subscriber. Called on shutdown.
func (h *notificationHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID, subs := range h.conns {
		for conn := range subs {
			conn.Close()
		}
		delete(h.conns, sessionID)
	}
}
