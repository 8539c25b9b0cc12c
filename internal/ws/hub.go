package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"chat-backend/internal/models"
	"chat-backend/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	routingKeyConn = "ws_events.chats"
)

// Publisher receives connection lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Frame is the minimal websocket surface the hub writes to.
type Frame interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type client struct {
	conn Frame
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains one room of websocket clients per chat.
type Hub struct {
	rooms     map[string]map[Frame]*client
	mu        sync.RWMutex
	publisher Publisher
}

// NewHub creates an empty hub. publisher may be nil.
func NewHub(publisher Publisher) *Hub {
	return &Hub{
		rooms:     make(map[string]map[Frame]*client),
		publisher: publisher,
	}
}

// AddClient registers a connection in a chat room.
func (h *Hub) AddClient(chatID string, conn Frame, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[Frame]*client)
	}
	h.rooms[chatID][conn] = &client{conn: conn, info: info}
}

// RemoveClient drops a connection from a chat room. It reports whether the
// connection was still registered.
func (h *Hub) RemoveClient(chatID string, conn Frame) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[chatID]
	if !ok {
		return false
	}
	if _, ok := conns[conn]; !ok {
		return false
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.rooms, chatID)
	}
	return true
}

// Clients returns the number of connections in a chat room.
func (h *Hub) Clients(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

func (h *Hub) snapshot(chatID string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.rooms[chatID]))
	for _, c := range h.rooms[chatID] {
		out = append(out, c)
	}
	return out
}

// Broadcast sends event to every client in the chat. A member leaving
// closes their own connections; a deleted chat closes the room.
func (h *Hub) Broadcast(ctx context.Context, event models.ChatEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error("websocket event marshal failed", "type", event.Type, "err", err)
		return
	}

	for _, c := range h.snapshot(event.ChatID) {
		if err := c.write(payload); err != nil {
			log.Warn("websocket write error", "chat_id", event.ChatID, "conn_id", c.info.ConnID, "err", err)
			h.drop(ctx, event.ChatID, c, "ws_error", err.Error())
			continue
		}
		observability.IncWSEvent("chat", event.Type)
		switch {
		case event.Type == models.EventChatDeleted:
			h.drop(ctx, event.ChatID, c, "ws_disconnect", "chat deleted")
		case event.Type == models.EventMemberLeft && event.User == c.info.Email:
			h.drop(ctx, event.ChatID, c, "ws_disconnect", "removed from chat")
		}
	}
}

func (h *Hub) drop(ctx context.Context, chatID string, c *client, event, reason string) {
	_ = c.conn.Close()
	if h.RemoveClient(chatID, c.conn) {
		observability.DecWSActive("chat")
	}
	h.PublishLifecycle(ctx, chatID, c.info, event, reason)
}

// PublishLifecycle reports a connect, disconnect or error to the broker.
func (h *Hub) PublishLifecycle(ctx context.Context, chatID string, info ConnInfo, event, reason string) {
	observability.IncWSEvent("chat", event)
	if h.publisher == nil {
		return
	}
	envelope := LifecycleEvent{
		EventType: "ws_events",
		Name:      event,
		ChatID:    chatID,
		ConnID:    info.ConnID,
		UserID:    info.UserID,
		IP:        info.IP,
		RequestID: info.RequestID,
		TraceID:   info.TraceID,
		Duration:  time.Since(info.ConnectedAt).Milliseconds(),
		Reason:    reason,
	}
	if err := h.publisher.Publish(context.WithoutCancel(ctx), routingKeyConn, envelope); err != nil {
		log.Warn("websocket lifecycle publish failed", "event", event, "err", err)
	}
}

// LifecycleEvent is published for every websocket connect and disconnect.
type LifecycleEvent struct {
	EventType string `json:"event_type"`
	Name      string `json:"event_name"`
	ChatID    string `json:"chat_id"`
	ConnID    string `json:"conn_id"`
	UserID    string `json:"user_id"`
	IP        string `json:"ip"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	Duration  int64  `json:"duration_ms"`
	Reason    string `json:"reason,omitempty"`
}

func (e LifecycleEvent) EventName() string { return e.Name }
