package kds

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-order-engine/models"
	"github.com/yeremiapane/restaurant-order-engine/notification"
	"github.com/yeremiapane/restaurant-order-engine/utils"
)

// Event types
const (
	EventNotification = "notification"
	EventConnected    = "connected"
)

const writeWait = 5 * time.Second

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	userID uint
	role   models.Role
}

// Hub holds the open websocket connections of customers, restaurants and staff.
type Hub struct {
	clients map[*websocket.Conn]client
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]client)}
}

var defaultHub = NewHub()

// Default is the process-wide hub used by the websocket endpoint.
func Default() *Hub { return defaultHub }

// Register adds a connection for userID and greets it.
func (h *Hub) Register(conn *websocket.Conn, userID uint, role models.Role) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[conn] = client{userID: userID, role: role}
	h.write(conn, Message{Event: EventConnected, Data: map[string]interface{}{"user_id": userID, "role": role}})
	utils.InfoLogger.Debugf("Websocket client connected: user %d (%s), %d open", userID, role, len(h.clients))
}

// Unregister removes and closes a connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	conn.Close()
}

// SendToUser writes msg to every connection of userID and returns how many received it.
func (h *Hub) SendToUser(userID uint, msg Message) int {
	return h.send(msg, func(c client) bool { return c.userID == userID })
}

// Notify pushes a notification to the user's open connections. A user with no
// connection is not an error; the message is still stored elsewhere.
func (h *Hub) Notify(_ context.Context, msg notification.Message) error {
	h.SendToUser(msg.UserID, Message{Event: EventNotification, Data: msg})
	return nil
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

func (h *Hub) send(msg Message, match func(client) bool) int {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Errorf("Error marshaling message: %v", err)
		return 0
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	sent := 0
	for conn, c := range h.clients {
		if !match(c) {
			continue
		}
		if err := h.writeRaw(conn, data); err != nil {
			utils.ErrorLogger.Errorf("Error sending message to user %d: %v", c.userID, err)
			delete(h.clients, conn)
			conn.Close()
			continue
		}
		sent++
	}
	return sent
}

func (h *Hub) write(conn *websocket.Conn, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := h.writeRaw(conn, data); err != nil {
		utils.ErrorLogger.Errorf("Error greeting client: %v", err)
	}
}

func (h *Hub) writeRaw(conn *websocket.Conn, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
