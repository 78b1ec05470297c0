package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sand/chain-feed/backend/internal/core/ports"
)

const writeWait = 10 * time.Second

// Manager upgrades connections and tracks the open ones so they can be closed on shutdown.
type Manager struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewWebSocketManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.conns[conn] = struct{}{}
	m.mu.Unlock()

	return conn, nil
}

func (m *Manager) Release(conn *websocket.Conn) {
	m.mu.Lock()
	delete(m.conns, conn)
	m.mu.Unlock()

	_ = conn.Close()
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// CloseAll closes every tracked connection.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[*websocket.Conn]struct{})
	m.mu.Unlock()

	for conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
}

type WebSocketHandler struct {
	logger            *slog.Logger
	feed              FeedController
	websocketManager  *Manager
	broadcastInterval time.Duration
}

func NewWebSocketHandler(
	logger *slog.Logger,
	feed FeedController,
	websocketManager *Manager,
	broadcastInterval time.Duration,
) *WebSocketHandler {
	if broadcastInterval <= 0 {
		broadcastInterval = ports.DefaultBroadcastInterval
	}
	return &WebSocketHandler{
		logger:            logger,
		feed:              feed,
		websocketManager:  websocketManager,
		broadcastInterval: broadcastInterval,
	}
}

func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/feed", h.HandleConnection)
}

// HandleConnection streams the feed state: once on connect, then at most once per
// broadcast interval while the feed keeps changing.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.websocketManager.Upgrade(w, r)
	if err != nil {
		h.logger.Error("Error upgrading connection", "error", err)
		return
	}
	defer h.websocketManager.Release(conn)

	h.logger.Info("New WebSocket connection", "remote", r.RemoteAddr)

	updates, unsubscribe := h.feed.Subscribe()
	defer unsubscribe()

	// Reader: detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				h.logger.Debug("WebSocket connection closed", "remote", r.RemoteAddr, "error", readErr)
				return
			}
		}
	}()

	if err = h.push(conn); err != nil {
		return
	}

	ticker := time.NewTicker(h.broadcastInterval)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case <-closed:
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			dirty = true
		case <-ticker.C:
			if !dirty {
				continue
			}
			dirty = false
			if err = h.push(conn); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) push(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(h.feed.State()); err != nil {
		h.logger.Error("Error writing feed state", "error", err)
		return err
	}
	return nil
}
