package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-backend/internal/auth"
	"chat-backend/internal/observability"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (auth.Identity, error)
}

// MembershipChecker reports whether email currently belongs to a chat.
type MembershipChecker interface {
	IsMember(ctx context.Context, chatID, email string) (bool, error)
}

// ChatWebSocketHandler handles chat websocket connections.
type ChatWebSocketHandler struct {
	hub      *Hub
	members  MembershipChecker
	verifier Authenticator
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, members MembershipChecker, verifier Authenticator) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, members: members, verifier: verifier}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers client.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chatID := c.Param("chat_id")
	if _, err := uuid.Parse(chatID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	ctx, span := otel.Tracer("chat-backend/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := h.verifier.Authenticate(ctx, bearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.members.IsMember(ctx, chatID, identity.Email)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for chat"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      identity.ID,
		Email:       identity.Email,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   c.GetString(observability.RequestIDKey),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(chatID, conn, info)
	observability.IncWSActive("chat")
	h.hub.PublishLifecycle(ctx, chatID, info, "ws_connect", "")

	go h.readLoop(context.WithoutCancel(ctx), chatID, conn, info)
}

// readLoop drains client frames and keeps the connection alive with pings
// until either side closes it.
func (h *ChatWebSocketHandler) readLoop(ctx context.Context, chatID string, conn *websocket.Conn, info ConnInfo) {
	done := make(chan struct{})
	var closeReason string
	defer func() {
		close(done)
		if h.hub.RemoveClient(chatID, conn) {
			observability.DecWSActive("chat")
			h.hub.PublishLifecycle(ctx, chatID, info, "ws_disconnect", closeReason)
		}
		conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read ended", "chat_id", chatID, "conn_id", info.ConnID, "err", err)
				observability.IncWSEvent("chat", "ws_error")
			}
			return
		}
	}
}

// bearerToken reads the token from the Authorization header, falling back
// to the token query parameter for browser clients.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}
