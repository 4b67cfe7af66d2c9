package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"tourchat-service/internal/observability"
)

// UserSocketHandler serves a user's personal room, which carries booking
// lifecycle updates. The room is always the authenticated user's own; there
// is no room parameter to spoof.
type UserSocketHandler struct {
	hub       *Hub
	jwtSecret string
}

// NewUserSocketHandler constructs a UserSocketHandler.
func NewUserSocketHandler(hub *Hub, jwtSecret string) *UserSocketHandler {
	return &UserSocketHandler{hub: hub, jwtSecret: jwtSecret}
}

// Handle authenticates, upgrades and keeps the connection registered until
// the peer goes away.
func (h *UserSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("tourchat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := identityFromRequest(c, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
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
	h.hub.AddUserClient(identity.UserID, conn, info)

	observability.IncWSActive("user")
	observability.IncWSEvent("user", "ws_connect")
	publishLifecycleEvent(ctx, "user", identity.UserID, info, "ws_connect", "", 0)

	go func() {
		userID := identity.UserID
		var closeReason string
		defer func() {
			h.hub.RemoveUserClient(userID, conn)
			observability.DecWSActive("user")
			observability.IncWSEvent("user", "ws_disconnect")
			publishLifecycleEvent(context.Background(), "user", userID, info, "ws_disconnect", closeReason, time.Since(info.ConnectedAt).Milliseconds())
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("user", "ws_error")
				}
				return
			}
		}
	}()
}
