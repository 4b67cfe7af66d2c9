package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	chatsvc "tourchat-service/internal/chat"
	"tourchat-service/internal/middleware"
	"tourchat-service/internal/models"
	"tourchat-service/internal/observability"
	"tourchat-service/internal/repositories"
)

// ChatSocketHandler handles chat-room websocket connections. Membership is
// validated against the chat's participant set before the upgrade, so a
// join request cannot be trusted into someone else's room.
type ChatSocketHandler struct {
	hub       *Hub
	svc       *chatsvc.Service
	jwtSecret string
}

// NewChatSocketHandler constructs a ChatSocketHandler.
func NewChatSocketHandler(hub *Hub, svc *chatsvc.Service, jwtSecret string) *ChatSocketHandler {
	return &ChatSocketHandler{hub: hub, svc: svc, jwtSecret: jwtSecret}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundFrame is what clients send on the socket. Only message frames are
// acted on; anything else keeps the connection alive.
type inboundFrame struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
}

// Handle authenticates, checks room membership, upgrades and serves the
// connection.
func (h *ChatSocketHandler) Handle(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	ctx, span := otel.Tracer("tourchat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := identityFromRequest(c, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.svc.CanJoin(ctx, chatID, identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for chat"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.UserID,
		Role:        identity.Role,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddChatClient(chatID, conn, info)

	observability.IncWSActive("chat")
	observability.IncWSEvent("chat", "ws_connect")
	publishLifecycleEvent(ctx, "chat", chatID, info, "ws_connect", "", 0)

	go h.serve(chatID, conn, info)
}

// serve pumps inbound frames until the peer goes away. Message frames run
// through the same gate sequence as REST posts; rejections are written back
// to this socket only.
func (h *ChatSocketHandler) serve(chatID int, conn *websocket.Conn, info ConnInfo) {
	ctx := context.Background()
	var closeReason string
	defer func() {
		h.hub.RemoveChatClient(chatID, conn)
		observability.DecWSActive("chat")
		observability.IncWSEvent("chat", "ws_disconnect")
		publishLifecycleEvent(ctx, "chat", chatID, info, "ws_disconnect", closeReason, time.Since(info.ConnectedAt).Milliseconds())
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("chat", "ws_error")
				publishLifecycleEvent(ctx, "chat", chatID, info, "ws_error", closeReason, time.Since(info.ConnectedAt).Milliseconds())
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type != "message" {
			continue
		}

		if _, err := h.svc.PostMessage(ctx, info.UserID, chatID, frame.MessageType, frame.Content); err != nil {
			h.writeError(conn, err)
		}
		// Success needs no direct reply; the hub broadcast reaches this
		// socket along with the rest of the room.
	}
}

func (h *ChatSocketHandler) writeError(conn *websocket.Conn, err error) {
	reason := "failed to send message"
	switch {
	case errors.Is(err, chatsvc.ErrChatInactive):
		reason = "conversation closed"
	case errors.Is(err, chatsvc.ErrPersonalInfo):
		reason = "message contains personal contact details"
	case errors.Is(err, chatsvc.ErrRateLimited):
		reason = "too many messages"
	case errors.Is(err, chatsvc.ErrAccessDenied):
		reason = "not a chat member"
	case errors.Is(err, repositories.ErrChatNotFound):
		reason = "chat not found"
	}
	payload, _ := json.Marshal(models.ChatEvent{Type: "error", Error: reason})
	if werr := conn.WriteMessage(websocket.TextMessage, payload); werr != nil {
		log.Printf("websocket write error: %v", werr)
	}
}

// identityFromRequest accepts the token from the Authorization header or,
// for browser websocket clients that cannot set headers, a token query
// parameter.
func identityFromRequest(c *gin.Context, secret string) (middleware.Identity, error) {
	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}
	parts := strings.Split(token, " ")
	if len(parts) != 2 {
		return middleware.Identity{}, errAuth
	}
	return middleware.VerifyToken(secret, parts[1])
}

var errAuth = errors.New("invalid token")

func publishLifecycleEvent(ctx context.Context, kind string, resourceID int, info ConnInfo, event, reason string, durationMS int64) {
	_ = observability.PublishEvent(ctx, wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        kind,
				"resource_id": resourceID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": durationMS,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id": info.UserID,
				"role":    info.Role,
				"ip":      info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
