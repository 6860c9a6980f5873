package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yourusername/tunepack-go/internal/domain"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// progressEvent is the wire envelope pushed to WebSocket clients
type progressEvent struct {
	Type     string           `json:"type"` // progress or summary
	Progress *domain.Progress `json:"progress,omitempty"`
	Summary  *domain.Summary  `json:"summary,omitempty"`
}

// ProgressWebSocketHandler streams per-item batch progress and the
// terminal summary to connected WebSocket clients
type ProgressWebSocketHandler struct {
	logger  *zap.Logger
	clients map[*websocket.Conn]chan []byte
	mu      sync.RWMutex
}

// NewProgressWebSocketHandler creates a new WebSocket handler
func NewProgressWebSocketHandler(log *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{
		logger:  log,
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// HandleWebSocket handles WebSocket connections for progress streaming
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan []byte, 64)

	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	h.logger.Info("WebSocket client connected",
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Read messages from client (for ping/pong and close detection)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case data := <-send:
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Error("Failed to send progress event", zap.Error(err))
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// BroadcastProgress pushes one progress update to all connected
// clients. Wire it into the orchestrator's progress callback.
func (h *ProgressWebSocketHandler) BroadcastProgress(p domain.Progress) {
	h.broadcast(progressEvent{Type: "progress", Progress: &p})
}

// BroadcastSummary pushes the terminal batch summary to all connected
// clients
func (h *ProgressWebSocketHandler) BroadcastSummary(summary *domain.Summary) {
	h.broadcast(progressEvent{Type: "summary", Summary: summary})
}

func (h *ProgressWebSocketHandler) broadcast(event progressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal progress event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, send := range h.clients {
		select {
		case send <- data:
		default:
			// slow client, drop the event rather than block the batch
		}
	}
}
