package application

import (
	"context"

	"github.com/pkg/errors"
	"github.com/storefront/order-system/order-service/domain"
	"github.com/storefront/order-system/shared/events"
	"github.com/storefront/order-system/shared/models"
	"github.com/storefront/order-system/shared/retry"
	"github.com/storefront/order-system/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// SagaOutcome is the final position of a saga run and, when the order was
// rejected, a human-readable reason.
type SagaOutcome struct {
	OrderID models.ID
	State   domain.OrderState
	Reason  string
}

// Rejected reports whether the order ended in a failed terminal state.
func (o *SagaOutcome) Rejected() bool {
	return o.State != domain.OrderStateFulfilled
}

// OrderSaga drives an order through reserve -> charge -> ship, compensating
// completed steps in reverse order when a later step fails. The order record
// is advanced in the store before the next action begins and after each
// compensation completes, so the stored state always reflects reality.
//
// The runner itself is stateless: it can pick up an order at any persisted
// non-terminal state, which is what makes crash recovery a plain re-run.
type OrderSaga struct {
	orders      domain.OrderRepository
	inventory   domain.InventoryClient
	payments    domain.PaymentClient
	fulfillment domain.FulfillmentClient
	publisher   events.Publisher
	policy      retry.Policy
}

// NewOrderSaga creates a new saga runner
func NewOrderSaga(
	orders domain.OrderRepository,
	inventory domain.InventoryClient,
	payments domain.PaymentClient,
	fulfillment domain.FulfillmentClient,
	publisher events.Publisher,
	policy retry.Policy,
) *OrderSaga {
	return &OrderSaga{
		orders:      orders,
		inventory:   inventory,
		payments:    payments,
		fulfillment: fulfillment,
		publisher:   publisher,
		policy:      policy,
	}
}

// Run executes the saga from the order's current state until it reaches a
// terminal state. Business failures and exhausted retries both turn into the
// compensation path; only store failures and stalled compensations are
// returned as errors.
func (s *OrderSaga) Run(ctx context.Context, order *domain.Order) (*SagaOutcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "saga.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", order.ID.String()),
		attribute.String("order.request_id", order.RequestID),
		attribute.String("order.state", order.State.String()),
	)

	// Set when a forward step fails with an infrastructure error; its message
	// becomes the outcome reason instead of the canonical business one.
	var stepErr error

	for !order.State.Terminal() {
		switch order.State {
		case domain.OrderStateCreated:
			res, err := s.call(ctx, order, s.inventory.Reserve)
			if err != nil || res.Failed {
				stepErr = err
				if err := s.advance(ctx, order, domain.OrderStateFailedToReserve); err != nil {
					return nil, err
				}
				continue
			}
			if err := s.advance(ctx, order, domain.OrderStateReserved); err != nil {
				return nil, err
			}

		case domain.OrderStateReserved:
			res, err := s.call(ctx, order, s.payments.Charge)
			if err != nil || res.Failed {
				stepErr = err
				if err := s.advance(ctx, order, domain.OrderStateFailedToCharge); err != nil {
					return nil, err
				}
				continue
			}
			if err := s.advance(ctx, order, domain.OrderStatePaid); err != nil {
				return nil, err
			}

		case domain.OrderStatePaid:
			res, err := s.call(ctx, order, s.fulfillment.Ship)
			if err != nil || res.Failed {
				stepErr = err
				if err := s.advance(ctx, order, domain.OrderStateFailedToFulfill); err != nil {
					return nil, err
				}
				continue
			}
			if err := s.advance(ctx, order, domain.OrderStateFulfilled); err != nil {
				return nil, err
			}

		case domain.OrderStateFailedToCharge:
			if err := s.compensate(ctx, order, s.inventory.Unreserve, domain.OrderStateFailedToChargeUnreserved); err != nil {
				return nil, err
			}

		case domain.OrderStateFailedToFulfill:
			if err := s.compensate(ctx, order, s.payments.Refund, domain.OrderStateFailedToFulfillRefunded); err != nil {
				return nil, err
			}

		case domain.OrderStateFailedToFulfillRefunded:
			if err := s.compensate(ctx, order, s.inventory.Unreserve, domain.OrderStateFailedToFulfillUnreserved); err != nil {
				return nil, err
			}

		default:
			return nil, errors.Errorf("saga cannot proceed from state %s", order.State)
		}
	}

	outcome := &SagaOutcome{
		OrderID: order.ID,
		State:   order.State,
		Reason:  order.State.FailureReason(),
	}
	if stepErr != nil {
		outcome.Reason = stepErr.Error()
	}

	if outcome.Rejected() {
		telemetry.RecordCounter(ctx, "saga_failed_total", "Sagas ended in a failed terminal state", 1,
			attribute.String("state", order.State.String()))
	} else {
		telemetry.RecordCounter(ctx, "saga_completed_total", "Sagas ended in FULFILLED", 1)
	}

	return outcome, nil
}

// call runs one forward step through the retry-with-timeout wrapper
func (s *OrderSaga) call(
	ctx context.Context,
	order *domain.Order,
	op func(ctx context.Context, req domain.CallRequest) (domain.CallResult, error),
) (domain.CallResult, error) {
	return retry.Do(ctx, s.policy, func(ctx context.Context) (domain.CallResult, error) {
		return op(ctx, order.CallRequest())
	})
}

// compensate runs one compensating step. Compensations are not themselves
// compensated: when one exhausts its retries the order stays in its current
// intermediate failed state for out-of-band reconciliation.
func (s *OrderSaga) compensate(
	ctx context.Context,
	order *domain.Order,
	op func(ctx context.Context, req domain.CallRequest) (domain.CallResult, error),
	next domain.OrderState,
) error {
	if _, err := s.call(ctx, order, op); err != nil {
		s.publishStalled(ctx, order, err)
		return errors.Wrapf(domain.ErrCompensationStalled, "order %s stuck in %s: %v", order.ID, order.State, err)
	}
	return s.advance(ctx, order, next)
}

func (s *OrderSaga) advance(ctx context.Context, order *domain.Order, next domain.OrderState) error {
	if err := order.Advance(next); err != nil {
		return err
	}
	if err := s.orders.Advance(ctx, order.ID, next); err != nil {
		return errors.Wrap(err, "failed to persist order state")
	}
	s.publishEvents(ctx, order)
	return nil
}

// publishEvents flushes the order's recorded events to SNS. Publishing is
// best effort; the store is the source of truth.
func (s *OrderSaga) publishEvents(ctx context.Context, order *domain.Order) {
	evts := order.Events()
	if len(evts) == 0 {
		return
	}
	order.ClearEvents()
	if err := s.publisher.Publish(ctx, evts...); err != nil {
		telemetry.RecordCounter(ctx, "order_event_publish_failures_total", "Order events that failed to publish", 1)
	}
}

func (s *OrderSaga) publishStalled(ctx context.Context, order *domain.Order, cause error) {
	telemetry.RecordCounter(ctx, "saga_compensation_stalled_total", "Compensations that exhausted retries", 1,
		attribute.String("state", order.State.String()))

	event := events.NewEvent(order.ID, events.OrderCompensationStalledEvent, domain.OrderStateChangedData{
		OrderID:   order.ID,
		RequestID: order.RequestID,
		From:      order.State,
		To:        order.State,
	}).WithMetadata("error", cause.Error())

	if err := s.publisher.Publish(ctx, event); err != nil {
		telemetry.RecordCounter(ctx, "order_event_publish_failures_total", "Order events that failed to publish", 1)
	}
}
