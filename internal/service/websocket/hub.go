package websocket

import (
	"context"
	"sync"
	"time"

	"fallwatch/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	broadcastBuffer = 64
	writeTimeout    = 5 * time.Second
)

// HubService fans detection events out to connected viewers.
type HubService struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.RWMutex
	logger    *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, broadcastBuffer),
		logger:    logger,
	}
}

// Run delivers queued messages until ctx is cancelled, then closes every client.
func (h *HubService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case message := <-h.broadcast:
			h.send(message)
		}
	}
}

// send writes message to a snapshot of the viewers. The lock is not held
// during writes.
func (h *HubService) send(message []byte) {
	h.mutex.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		client.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending message: %v", err)
			h.Unregister(client)
		}
	}
}

func (h *HubService) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		client.Close()
		delete(h.clients, client)
	}
}

func (h *HubService) Register(client *websocket.Conn) {
	h.mutex.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mutex.Unlock()

	h.logger.Info("Viewer connected. Total: %d", total)
}

func (h *HubService) Unregister(client *websocket.Conn) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		client.Close()
	}
	total := len(h.clients)
	h.mutex.Unlock()

	if ok {
		h.logger.Info("Viewer disconnected. Total: %d", total)
	}
}

// Broadcast queues message for every viewer. It never blocks; when the queue
// is full the message is dropped.
func (h *HubService) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warning("Broadcast queue full, dropping event")
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
