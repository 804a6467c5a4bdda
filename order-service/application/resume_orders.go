package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/storefront/order-system/order-service/domain"
	"github.com/storefront/order-system/shared/telemetry"
)

// ResumeOrders re-drives sagas that were interrupted mid-flight, e.g. by a
// crash of the orchestrator. Because the runner is stateless and every
// transition is durable, resuming is just running the saga again from the
// recorded state.
type ResumeOrders struct {
	orders     domain.OrderRepository
	saga       *OrderSaga
	staleAfter time.Duration
}

// NewResumeOrders creates a new ResumeOrders use case. staleAfter guards
// against picking up sagas that are still actively running in this or another
// process.
func NewResumeOrders(orders domain.OrderRepository, saga *OrderSaga, staleAfter time.Duration) *ResumeOrders {
	return &ResumeOrders{
		orders:     orders,
		saga:       saga,
		staleAfter: staleAfter,
	}
}

// Execute sweeps the store for stale non-terminal orders and re-runs each.
// Returns the number of sagas brought to a terminal state.
func (uc *ResumeOrders) Execute(ctx context.Context) (int, error) {
	stalled, err := uc.orders.FindStalled(ctx, time.Now().Add(-uc.staleAfter))
	if err != nil {
		return 0, errors.Wrap(err, "failed to list stalled orders")
	}

	resumed := 0
	for _, order := range stalled {
		if _, err := uc.saga.Run(ctx, order); err != nil {
			// Stalled compensations stay put for the next sweep or an operator.
			telemetry.RecordCounter(ctx, "saga_resume_failures_total", "Resumed sagas that failed again", 1)
			continue
		}
		resumed++
	}
	return resumed, nil
}

// ExecuteOne resumes a single order identified by its requestId. A terminal
// order is a no-op returning its recorded outcome.
func (uc *ResumeOrders) ExecuteOne(ctx context.Context, requestID string) (*SagaOutcome, error) {
	if requestID == "" {
		return nil, errors.New("request ID is required")
	}

	order, err := uc.orders.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find order")
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	if order.State.Terminal() {
		return &SagaOutcome{
			OrderID: order.ID,
			State:   order.State,
			Reason:  order.State.FailureReason(),
		}, nil
	}
	return uc.saga.Run(ctx, order)
}
