package telemetry

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Audit levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

func (e AuditEnvelope) EventName() string { return e.EventType }

type AuditPayload struct {
	Level  string            `json:"level"`
	Action string            `json:"action,omitempty"`
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

// Emit publishes a free-form audit line.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *string) {
	e.publish(ctx, requestID, userID, AuditPayload{Level: level, Text: text})
}

// Action records a completed workflow step, for example "chat.deleted".
// A nil emitter is a no-op so workflows can run without auditing.
func (e *AuditEmitter) Action(ctx context.Context, userID, action string, fields map[string]string) {
	var uid *string
	if userID != "" {
		uid = &userID
	}
	e.publish(ctx, RequestIDFromContext(ctx), uid, AuditPayload{
		Level:  LevelInfo,
		Action: action,
		Text:   action,
		Fields: fields,
	})
}

func (e *AuditEmitter) publish(ctx context.Context, requestID string, userID *string, payload AuditPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	log.Debug("audit emit", "level", payload.Level, "action", payload.Action, "request_id", requestID)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Warn("audit publish failed", "err", err)
	}
}

type requestIDKey struct{}

// WithRequestID attaches the request id that Action stamps on envelopes.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
