package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tourchat-service/internal/models"
	"tourchat-service/internal/observability"
)

// Hub maintains active websocket rooms: one room per chat for message
// fan-out, and one personal room per user for booking updates. Delivery is
// best-effort; a failed write evicts the connection and the client catches
// up through the paginated history fetch.
type Hub struct {
	chatRooms    map[int]map[*websocket.Conn]bool
	userRooms    map[int]map[*websocket.Conn]bool
	chatConnInfo map[int]map[*websocket.Conn]ConnInfo
	userConnInfo map[int]map[*websocket.Conn]ConnInfo
	mu           sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		chatRooms:    make(map[int]map[*websocket.Conn]bool),
		userRooms:    make(map[int]map[*websocket.Conn]bool),
		chatConnInfo: make(map[int]map[*websocket.Conn]ConnInfo),
		userConnInfo: make(map[int]map[*websocket.Conn]ConnInfo),
	}
}

// AddChatClient registers a websocket connection to a chat room.
func (h *Hub) AddChatClient(chatID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.chatRooms[chatID]; !ok {
		h.chatRooms[chatID] = make(map[*websocket.Conn]bool)
	}
	h.chatRooms[chatID][conn] = true
	if _, ok := h.chatConnInfo[chatID]; !ok {
		h.chatConnInfo[chatID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.chatConnInfo[chatID][conn] = info
}

// RemoveChatClient removes a chat websocket connection.
func (h *Hub) RemoveChatClient(chatID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.chatRooms[chatID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.chatRooms, chatID)
		}
	}
	if infos, ok := h.chatConnInfo[chatID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.chatConnInfo, chatID)
		}
	}
}

// AddUserClient registers a websocket connection to a user's personal room.
func (h *Hub) AddUserClient(userID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.userRooms[userID]; !ok {
		h.userRooms[userID] = make(map[*websocket.Conn]bool)
	}
	h.userRooms[userID][conn] = true
	if _, ok := h.userConnInfo[userID]; !ok {
		h.userConnInfo[userID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.userConnInfo[userID][conn] = info
}

// RemoveUserClient removes a personal-room websocket connection.
func (h *Hub) RemoveUserClient(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.userRooms[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.userRooms, userID)
		}
	}
	if infos, ok := h.userConnInfo[userID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.userConnInfo, userID)
		}
	}
}

// BroadcastNewMessage sends an accepted message to every socket in the
// chat's room.
func (h *Hub) BroadcastNewMessage(chatID int, msg models.Message) {
	conns := h.snapshotRoom(h.chatRooms, chatID)

	event := models.ChatEvent{Type: "message", Message: &msg}
	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveChatClient(chatID, conn)
			h.publishWSError("chat", chatID, conn, err)
		}
	}
}

// BroadcastBookingUpdate notifies a user's personal room of a booking
// status change.
func (h *Hub) BroadcastBookingUpdate(userID int, booking models.Booking) {
	conns := h.snapshotRoom(h.userRooms, userID)

	event := models.UserEvent{Type: "booking_update", Booking: &booking}
	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveUserClient(userID, conn)
			h.publishWSError("user", userID, conn, err)
		}
	}
}

// snapshotRoom copies the room's connections under the lock so broadcasts
// never range a map that joins and leaves mutate concurrently.
func (h *Hub) snapshotRoom(rooms map[int]map[*websocket.Conn]bool, id int) []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*websocket.Conn, 0, len(rooms[id]))
	for conn := range rooms[id] {
		conns = append(conns, conn)
	}
	return conns
}

func (h *Hub) publishWSError(kind string, resourceID int, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(kind, resourceID, conn)
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        kind,
			"resource_id": resourceID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id": info.UserID,
			"role":    info.Role,
			"ip":      info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(kind, "ws_error")
}

func (h *Hub) getConnInfo(kind string, resourceID int, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if kind == "chat" {
		if infos, ok := h.chatConnInfo[resourceID]; ok {
			info, exists := infos[conn]
			return info, exists
		}
		return ConnInfo{}, false
	}
	if infos, ok := h.userConnInfo[resourceID]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}

func wsRoutingKey(kind string) string {
	if kind == "user" {
		return "ws_events.users"
	}
	return "ws_events.chats"
}
