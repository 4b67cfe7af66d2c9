package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tourchat-service/internal/models"
)

func TestHubAddAndRemoveChatClient(t *testing.T) {
	hub := NewHub()

	hub.AddChatClient(1, nil, ConnInfo{ConnID: "c1", UserID: 5})
	if len(hub.chatRooms) != 1 {
		t.Fatalf("expected chat room to be created")
	}

	hub.RemoveChatClient(1, nil)
	if len(hub.chatRooms) != 0 {
		t.Fatalf("expected chat room to be removed")
	}
}

func TestHubAddAndRemoveUserClient(t *testing.T) {
	hub := NewHub()

	hub.AddUserClient(2, nil, ConnInfo{ConnID: "u1", UserID: 2})
	if len(hub.userRooms) != 1 {
		t.Fatalf("expected user room to be created")
	}

	hub.RemoveUserClient(2, nil)
	if len(hub.userRooms) != 0 {
		t.Fatalf("expected user room to be removed")
	}
}

// dialTestConn upgrades one client connection against a throwaway server and
// returns both ends.
func dialTestConn(t *testing.T) (client, server *websocket.Conn, cleanup func()) {
	t.Helper()
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	server = <-serverConns

	return client, server, func() {
		client.Close()
		server.Close()
		srv.Close()
	}
}

func TestHubBroadcastNewMessageDeliversToRoom(t *testing.T) {
	hub := NewHub()
	client, server, cleanup := dialTestConn(t)
	defer cleanup()

	hub.AddChatClient(42, server, ConnInfo{ConnID: newConnID(), UserID: 1})
	hub.BroadcastNewMessage(42, models.Message{ID: 7, ChatID: 42, SenderID: 1, Content: "hi"})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var event models.ChatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.Type != "message" || event.Message == nil || event.Message.Content != "hi" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestHubBroadcastBookingUpdateDeliversToPersonalRoom(t *testing.T) {
	hub := NewHub()
	client, server, cleanup := dialTestConn(t)
	defer cleanup()

	hub.AddUserClient(5, server, ConnInfo{ConnID: newConnID(), UserID: 5})
	hub.BroadcastBookingUpdate(5, models.Booking{ID: 9, TouristID: 5, GuideID: 6, Status: models.BookingConfirmed})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var event models.UserEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.Type != "booking_update" || event.Booking == nil || event.Booking.ID != 9 {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestHubBroadcastWithConcurrentMembershipChurn(t *testing.T) {
	hub := NewHub()
	clientA, serverA, cleanupA := dialTestConn(t)
	defer cleanupA()
	clientB, serverB, cleanupB := dialTestConn(t)
	defer cleanupB()

	for _, c := range []*websocket.Conn{clientA, clientB} {
		go func(c *websocket.Conn) {
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}(c)
	}

	hub.AddChatClient(7, serverA, ConnInfo{ConnID: "a", UserID: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.AddChatClient(7, serverB, ConnInfo{ConnID: "b", UserID: 2})
			hub.RemoveChatClient(7, serverB)
		}
	}()

	for i := 0; i < 200; i++ {
		hub.BroadcastNewMessage(7, models.Message{ID: i, ChatID: 7, SenderID: 1, Content: "x"})
	}
	<-done

	hub.mu.RLock()
	_, stillThere := hub.chatRooms[7][serverA]
	hub.mu.RUnlock()
	if !stillThere {
		t.Fatalf("expected the steady connection to stay registered")
	}
}
