package notify

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub keeps the open websocket connections of each user. A user may be
// connected from several sessions at once.
type Hub struct {
	clients map[uint]map[string]*websocket.Conn
	mu      sync.RWMutex
	writeMu sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uint]map[string]*websocket.Conn),
	}
}

// Register adds a connection and returns the session key to unregister it with.
func (h *Hub) Register(userID uint, conn *websocket.Conn) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := uuid.NewString()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[string]*websocket.Conn)
	}
	h.clients[userID][key] = conn
	log.Printf("WebSocket client registered: user %d session %s", userID, key)
	return key
}

func (h *Hub) Unregister(userID uint, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sessions, ok := h.clients[userID]
	if !ok {
		return
	}
	if _, ok := sessions[key]; ok {
		delete(sessions, key)
		log.Printf("WebSocket client unregistered: user %d session %s", userID, key)
	}
	if len(sessions) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) Connected(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Send writes message to every session of userID and returns how many
// sessions received it. An offline user is not an error.
func (h *Hub) Send(userID uint, message []byte) (int, error) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[userID]))
	for _, c := range h.clients[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	sent := 0
	var firstErr error
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent++
	}
	return sent, firstErr
}
