package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"chat-backend/internal/mocks"
)

func TestActionPublishesEnvelope(t *testing.T) {
	pub := &mocks.PublisherMock{}
	emitter := NewAuditEmitter(pub, "audit.chat", "chat-backend", "test")
	emitter.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	pub.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(e AuditEnvelope) bool {
		return e.EventType == "audit_log" &&
			e.RequestID == "req-1" &&
			e.UserID != nil && *e.UserID == "u1" &&
			e.Payload.Action == "chat.deleted" &&
			e.Payload.Fields["chat_id"] == "c1" &&
			e.OccurredAt == "2024-01-02T03:04:05Z"
	})).Return(nil).Once()

	ctx := WithRequestID(context.Background(), "req-1")
	emitter.Action(ctx, "u1", "chat.deleted", map[string]string{"chat_id": "c1"})

	pub.AssertExpectations(t)
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	pub := &mocks.PublisherMock{}
	pub.On("Publish", mock.Anything, "audit.chat", mock.Anything).Return(errors.New("broker down")).Once()

	emitter := NewAuditEmitter(pub, "audit.chat", "chat-backend", "test")
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), LevelInfo, "audit test", "req-1", nil)
	})
	pub.AssertExpectations(t)
}

func TestNilEmitterIsNoop(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Action(context.Background(), "u1", "user.deleted", nil)
	})
}
