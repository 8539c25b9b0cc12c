// Package notify hands push notifications to the broker for delivery.
// Delivery is fire-and-forget: failures are logged and counted, never
// returned to the workflow that triggered them.
package notify

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"chat-backend/internal/observability"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Payload is what a device receives.
type Payload struct {
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	ChatID string            `json:"chat_id,omitempty"`
	Data   map[string]string `json:"data,omitempty"`
}

// PushJob is the message published for the push worker.
type PushJob struct {
	Tokens     []string `json:"tokens"`
	Payload    Payload  `json:"payload"`
	EnqueuedAt string   `json:"enqueued_at"`
}

func (PushJob) EventName() string { return "push.requested" }

// Notifier delivers payloads to device tokens.
type Notifier interface {
	Notify(ctx context.Context, tokens []string, payload Payload)
}

type BrokerNotifier struct {
	publisher  Publisher
	routingKey string
	timeout    time.Duration
}

func NewBrokerNotifier(publisher Publisher, routingKey string) *BrokerNotifier {
	return &BrokerNotifier{publisher: publisher, routingKey: routingKey, timeout: 3 * time.Second}
}

func (n *BrokerNotifier) Notify(ctx context.Context, tokens []string, payload Payload) {
	tokens = compact(tokens)
	if len(tokens) == 0 {
		return
	}

	// The request may finish before the broker answers.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	job := PushJob{
		Tokens:     tokens,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := n.publisher.Publish(ctx, n.routingKey, job); err != nil {
		observability.IncPushFailure()
		log.Warn("push notification dropped", "chat_id", payload.ChatID, "targets", len(tokens), "err", err)
	}
}

func compact(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Noop discards notifications.
type Noop struct{}

func (Noop) Notify(context.Context, []string, Payload) {}
