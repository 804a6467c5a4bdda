package application

import (
	"context"

	"github.com/pkg/errors"
	"github.com/storefront/order-system/order-service/domain"
)

// ErrInvalidCommand is returned when an order submission fails validation
var ErrInvalidCommand = errors.New("invalid command")

// SubmitOrderCommand represents an order submission. RequestID is the
// client-supplied idempotency key.
type SubmitOrderCommand struct {
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	AddressID string `json:"address_id"`
	UserID    string `json:"user_id"`
	RequestID string `json:"request_id"`
}

// SubmitOrder runs the purchase saga for a new order, or short-circuits when
// the requestId was seen before.
type SubmitOrder struct {
	orders domain.OrderRepository
	saga   *OrderSaga
}

// NewSubmitOrder creates a new SubmitOrder use case
func NewSubmitOrder(orders domain.OrderRepository, saga *OrderSaga) *SubmitOrder {
	return &SubmitOrder{
		orders: orders,
		saga:   saga,
	}
}

// Execute submits an order. A resubmission with a requestId whose saga already
// finished returns the recorded outcome without re-running any step; one whose
// saga is still in flight returns ErrOrderInProgress.
func (uc *SubmitOrder) Execute(ctx context.Context, cmd *SubmitOrderCommand) (*SagaOutcome, error) {
	order, err := domain.NewOrder(cmd.ItemID, cmd.Quantity, cmd.AddressID, cmd.UserID, cmd.RequestID)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidCommand, err.Error())
	}

	order, created, err := uc.orders.CreateIfAbsent(ctx, order)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create order")
	}

	if !created {
		if order.State.Terminal() {
			return &SagaOutcome{
				OrderID: order.ID,
				State:   order.State,
				Reason:  order.State.FailureReason(),
			}, nil
		}
		return nil, domain.ErrOrderInProgress
	}

	return uc.saga.Run(ctx, order)
}
