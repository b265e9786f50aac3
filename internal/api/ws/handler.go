// Package ws streams store change events and sync status transitions to the
// dashboard over WebSocket, replacing polling of the settings endpoints.
package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/marksyncy/backend/internal/domain/bookmarks"
	"github.com/marksyncy/backend/internal/domain/gitsync"
	"github.com/marksyncy/backend/internal/infrastructure/kv"
	"github.com/marksyncy/backend/internal/infrastructure/logging"
	"github.com/marksyncy/backend/internal/infrastructure/monitoring"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// settingsKeys are the store keys whose changes are forwarded to clients.
var settingsKeys = map[string]bool{
	kv.KeySyncProvider:    true,
	kv.KeyAutoSyncEnabled: true,
	kv.KeyLastSyncTime:    true,
}

// Handler manages WebSocket connections
type Handler struct {
	manager *bookmarks.Manager
	sync    *gitsync.Client
	store   *kv.Store
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(manager *bookmarks.Manager, sync *gitsync.Client, store *kv.Store, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	return &Handler{
		manager: manager,
		sync:    sync,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleConnection upgrades the request and streams events until the client
// disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	h.send(conn, gin.H{
		"type":    "system",
		"message": "Connected to marksyncy backend",
	})

	changes := h.manager.Subscribe()
	reports := h.sync.Subscribe()
	settings := h.store.Subscribe()

	// Reader goroutine: detect disconnect, forward pings. Writes stay on the
	// select loop because gorilla connections allow one writer at a time.
	done := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(done)
		for {
			var msg struct {
				Type string `json:"type"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	ctx := c.Request.Context()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-pings:
			if err := h.send(conn, gin.H{"type": "pong"}); err != nil {
				return
			}
			h.metrics.RecordWSMessage("out", "pong")
		case ev := <-changes:
			if err := h.send(conn, gin.H{
				"type":      "change",
				"event":     ev,
				"timestamp": time.Now().Unix(),
			}); err != nil {
				return
			}
			h.metrics.RecordWSMessage("out", "change")
		case report := <-reports:
			if err := h.send(conn, gin.H{
				"type":      "sync",
				"report":    report,
				"timestamp": time.Now().Unix(),
			}); err != nil {
				return
			}
			h.metrics.RecordWSMessage("out", "sync")
		case change := <-settings:
			if !settingsKeys[change.Key] {
				continue
			}
			if err := h.send(conn, gin.H{
				"type":      "settings",
				"key":       change.Key,
				"timestamp": time.Now().Unix(),
			}); err != nil {
				return
			}
			h.metrics.RecordWSMessage("out", "settings")
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, data interface{}) error {
	return conn.WriteJSON(data)
}
