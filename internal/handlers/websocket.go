package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/chepyr/go-task-tracker/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskToggled = "task_toggled"
	EventTaskDeleted = "task_deleted"

	wsWriteTimeout = 5 * time.Second
)

type TaskEvent struct {
	Event string      `json:"event"`
	Task  models.Task `json:"task"`
}

// wsClient serializes writes to one connection; gorilla allows a single
// concurrent writer.
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) write(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// WSHub fans task events out to the websocket connections of the task
// owner. The hub mutex guards only the registry; writes happen outside it.
type WSHub struct {
	connections map[uuid.UUID]map[*wsClient]bool
	mutex       sync.Mutex
}

func NewWSHub() *WSHub {
	return &WSHub{connections: make(map[uuid.UUID]map[*wsClient]bool)}
}

func (h *WSHub) add(ownerID uuid.UUID, conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.connections[ownerID] == nil {
		h.connections[ownerID] = make(map[*wsClient]bool)
	}
	h.connections[ownerID][client] = true
	return client
}

func (h *WSHub) remove(ownerID uuid.UUID, client *wsClient) {
	h.mutex.Lock()
	conns := h.connections[ownerID]
	registered := conns[client]
	if registered {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.connections, ownerID)
		}
	}
	h.mutex.Unlock()

	if registered {
		client.conn.Close()
	}
}

// ConnectionCount reports how many sockets are open for ownerID.
func (h *WSHub) ConnectionCount(ownerID uuid.UUID) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections[ownerID])
}

func (h *WSHub) clientsOf(ownerID uuid.UUID) []*wsClient {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	clients := make([]*wsClient, 0, len(h.connections[ownerID]))
	for client := range h.connections[ownerID] {
		clients = append(clients, client)
	}
	return clients
}

// Broadcast sends event to every connection of the task owner. A slow
// socket only delays its own owner's broadcasts.
func (h *WSHub) Broadcast(event string, task models.Task) {
	if h == nil {
		return
	}
	message, err := json.Marshal(TaskEvent{Event: event, Task: task})
	if err != nil {
		log.Printf("Failed to marshal task event: %v", err)
		return
	}

	for _, client := range h.clientsOf(task.OwnerID) {
		if err := client.write(message); err != nil {
			log.Printf("Failed to send WebSocket message: %v", err)
			h.remove(task.OwnerID, client)
		}
	}
}

// CloseAll closes every open socket, used on shutdown.
func (h *WSHub) CloseAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for ownerID, conns := range h.connections {
		for client := range conns {
			client.conn.Close()
		}
		delete(h.connections, ownerID)
	}
}

var upgrader = websocket.Upgrader{
	// Auth is by token, not cookie, so cross-origin pages cannot ride on an
	// existing session.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket handles GET /ws. The client only receives; anything it
// sends is discarded.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userIDFromContext(r.Context())
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if h.WSHub == nil {
		sendError(w, "Live updates are not available", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	client := h.WSHub.add(ownerID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			h.WSHub.remove(ownerID, client)
			return
		}
	}
}
