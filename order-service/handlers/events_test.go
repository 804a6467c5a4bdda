package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/storefront/order-system/order-service/application"
	"github.com/storefront/order-system/order-service/domain"
	"github.com/storefront/order-system/order-service/infrastructure"
	"github.com/storefront/order-system/shared/events"
	"github.com/storefront/order-system/shared/models"
	"github.com/storefront/order-system/shared/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventHandlerFixture(t *testing.T) (*OrderEventHandlers, domain.OrderRepository) {
	t.Helper()
	repo := infrastructure.NewMemoryOrderRepository()
	policy := retry.Policy{MaxAttempts: 1, PerAttemptTimeout: 100 * time.Millisecond, InitialBackoff: time.Millisecond}
	services := &stubServices{}
	saga := application.NewOrderSaga(repo, services, services, services, nopPublisher{}, policy)
	return NewOrderEventHandlers(application.NewResumeOrders(repo, saga, time.Minute)), repo
}

func resumeEvent(requestID string) *events.Event {
	return events.NewEvent(models.GenerateUUID(), events.OrderResumeRequestedEvent,
		map[string]string{"request_id": requestID})
}

func TestOrderEventHandlers_ResumeRequest(t *testing.T) {
	h, repo := newEventHandlerFixture(t)

	order, err := domain.NewOrder("sku-1", 1, "addr-1", "u1", "req-1")
	require.NoError(t, err)
	_, _, err = repo.CreateIfAbsent(context.Background(), order)
	require.NoError(t, err)
	require.NoError(t, repo.Advance(context.Background(), order.ID, domain.OrderStateReserved))

	err = h.Handle(context.Background(), resumeEvent("req-1"))

	require.NoError(t, err)
	stored, err := repo.FindByRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStateFulfilled, stored.State)
}

func TestOrderEventHandlers_ResumeUnknownOrderIsAcked(t *testing.T) {
	h, _ := newEventHandlerFixture(t)

	err := h.Handle(context.Background(), resumeEvent("req-unknown"))

	// A resume request for a vanished order should not poison the queue.
	assert.NoError(t, err)
}

func TestOrderEventHandlers_IgnoresOtherEventTypes(t *testing.T) {
	h, _ := newEventHandlerFixture(t)

	event := events.NewEvent(models.GenerateUUID(), events.OrderCreatedEvent, nil)
	assert.NoError(t, h.Handle(context.Background(), event))
}
