package handlers

import (
	"context"

	"github.com/pkg/errors"
	"github.com/storefront/order-system/order-service/application"
	"github.com/storefront/order-system/order-service/domain"
	"github.com/storefront/order-system/shared/events"
)

// OrderEventHandlers routes queue events to the matching use case. Currently
// the only inbound event is a resume request for an interrupted saga.
type OrderEventHandlers struct {
	resumeOrders *application.ResumeOrders
}

// NewOrderEventHandlers creates new order event handlers
func NewOrderEventHandlers(resumeOrders *application.ResumeOrders) *OrderEventHandlers {
	return &OrderEventHandlers{resumeOrders: resumeOrders}
}

type resumeRequestedData struct {
	RequestID string `json:"request_id"`
}

// Handle implements events.EventHandler
func (h *OrderEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	if event.EventType != events.OrderResumeRequestedEvent {
		return nil
	}

	var data resumeRequestedData
	if err := event.UnmarshalPayload(&data); err != nil {
		return errors.Wrap(err, "invalid resume request payload")
	}

	_, err := h.resumeOrders.ExecuteOne(ctx, data.RequestID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		// Nothing to resume; don't keep the message on the queue.
		return nil
	}
	return err
}
