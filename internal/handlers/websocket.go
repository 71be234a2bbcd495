package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
)

// WebSocketHub manages active WebSocket connections and pushes extractor
// status lines and collection updates to them
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     arbor.ILogger
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(logger arbor.ILogger) *WebSocketHub {
	hub := &WebSocketHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
	go hub.run()
	return hub
}

// run manages client connections and broadcasts
func (h *WebSocketHub) run() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.logger.Debug().Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			h.logger.Debug().Msg("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warn().Err(err).Msg("Failed to send WebSocket message")
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()

		case <-ticker.C:
			h.SendStatus("online")

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Close disconnects every client and stops the hub
func (h *WebSocketHub) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// SendStatus broadcasts server status to all clients
func (h *WebSocketHub) SendStatus(status string) {
	h.send(map[string]interface{}{
		"type":      "status",
		"status":    status,
		"timestamp": time.Now().Unix(),
	})
}

// Report broadcasts an extractor status line
func (h *WebSocketHub) Report(status string) {
	h.send(map[string]interface{}{
		"type":      "progress",
		"message":   status,
		"timestamp": time.Now().Unix(),
	})
}

// SendCollectionUpdate broadcasts collection updates to all clients
func (h *WebSocketHub) SendCollectionUpdate(eventType string, data interface{}) {
	h.send(map[string]interface{}{
		"type":      eventType,
		"data":      data,
		"timestamp": time.Now().Unix(),
	})
}

// send queues a message, dropping it when the queue is full
func (h *WebSocketHub) send(msg map[string]interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to encode WebSocket message")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn().Msg("WebSocket broadcast queue full, dropping message")
	}
}

// Upgrader for WebSocket connections
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connection requests
func (h *WebSocketHub) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
