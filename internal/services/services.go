// Package services holds the user, chat, message and auth workflows. Every
// workflow validates its input first, then checks existence and permission,
// and only then writes. Multi-document writes go through Store.WithTx.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chat-backend/internal/apperr"
	"chat-backend/internal/auth"
	"chat-backend/internal/models"
	"chat-backend/internal/notify"
	"chat-backend/internal/observability"
	"chat-backend/internal/repositories"
)

var tracer = otel.Tracer("chat-backend/services")

// Broadcaster pushes realtime events to chat subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, event models.ChatEvent)
}

// Auditor records completed workflow steps.
type Auditor interface {
	Action(ctx context.Context, userID, action string, fields map[string]string)
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(context.Context, models.ChatEvent) {}

type noopAuditor struct{}

func (noopAuditor) Action(context.Context, string, string, map[string]string) {}

// Deps are the collaborators shared by the workflows. Only Store is required.
type Deps struct {
	Store    repositories.Store
	Notifier notify.Notifier
	Hub      Broadcaster
	Audit    Auditor
	Now      func() time.Time
	NewID    func() string
}

func (d Deps) withDefaults() Deps {
	if d.Notifier == nil {
		d.Notifier = notify.Noop{}
	}
	if d.Hub == nil {
		d.Hub = noopBroadcaster{}
	}
	if d.Audit == nil {
		d.Audit = noopAuditor{}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}

func start(ctx context.Context, op string, caller auth.Identity) (context.Context, trace.Span) {
	return tracer.Start(ctx, op, trace.WithAttributes(attribute.String("caller.id", caller.ID)))
}

// end records the outcome of op on its span and in the workflow counter.
func end(span trace.Span, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperr.KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.Message(err))
	}
	observability.ObserveWorkflow(op, outcome)
	span.End()
}

// storeErr passes workflow errors through and wraps anything else from the
// store as an upstream failure.
func storeErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Upstream(err, msg)
}

// lookup maps a missing record to NotFound.
func lookup(err error, what string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.NotFound(what + " not found")
	}
	return storeErr(err, "failed to load "+what)
}
