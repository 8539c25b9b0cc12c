package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type publisherMock struct{ mock.Mock }

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func TestNotifyPublishesDedupedTokens(t *testing.T) {
	pub := &publisherMock{}
	pub.On("Publish", mock.Anything, "push.message", mock.MatchedBy(func(job PushJob) bool {
		return assert.ObjectsAreEqual([]string{"t1", "t2"}, job.Tokens) && job.Payload.ChatID == "c1"
	})).Return(nil).Once()

	NewBrokerNotifier(pub, "push.message").Notify(context.Background(), []string{"t1", "", "t2", "t1"}, Payload{Title: "a", ChatID: "c1"})

	pub.AssertExpectations(t)
}

func TestNotifySkipsEmptyTargets(t *testing.T) {
	pub := &publisherMock{}
	NewBrokerNotifier(pub, "push.message").Notify(context.Background(), []string{"", ""}, Payload{})
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotifySwallowsPublishFailure(t *testing.T) {
	pub := &publisherMock{}
	pub.On("Publish", mock.Anything, "push.message", mock.Anything).Return(errors.New("broker down")).Once()

	assert.NotPanics(t, func() {
		NewBrokerNotifier(pub, "push.message").Notify(context.Background(), []string{"t1"}, Payload{})
	})
	pub.AssertExpectations(t)
}

func TestNotifyOutlivesCanceledRequest(t *testing.T) {
	pub := &publisherMock{}
	pub.On("Publish", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "push.message", mock.Anything).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewBrokerNotifier(pub, "push.message").Notify(ctx, []string{"t1"}, Payload{})

	pub.AssertExpectations(t)
}
