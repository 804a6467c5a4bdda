package application

import (
	"context"
	"testing"

	"github.com/storefront/order-system/order-service/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCommand() *SubmitOrderCommand {
	return &SubmitOrderCommand{
		ItemID:    "sku-1",
		Quantity:  1,
		AddressID: "addr-1",
		UserID:    "u1",
		RequestID: "req-1",
	}
}

func TestSubmitOrder_RunsSagaToCompletion(t *testing.T) {
	f := newSagaFixture()
	uc := NewSubmitOrder(f.repo, f.saga)

	outcome, err := uc.Execute(context.Background(), validCommand())

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStateFulfilled, outcome.State)
	assert.Equal(t, []string{"reserve", "charge", "ship"}, f.services.callLog())
}

func TestSubmitOrder_ValidationFailure(t *testing.T) {
	f := newSagaFixture()
	uc := NewSubmitOrder(f.repo, f.saga)

	cmd := validCommand()
	cmd.Quantity = 0
	_, err := uc.Execute(context.Background(), cmd)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCommand)
	assert.Empty(t, f.services.callLog())
}

func TestSubmitOrder_ResubmissionReturnsRecordedOutcome(t *testing.T) {
	f := newSagaFixture()
	f.services.script("charge", rejected("card declined"))
	uc := NewSubmitOrder(f.repo, f.saga)

	first, err := uc.Execute(context.Background(), validCommand())
	require.NoError(t, err)
	require.Equal(t, domain.OrderStateFailedToChargeUnreserved, first.State)
	callsAfterFirst := len(f.services.callLog())

	second, err := uc.Execute(context.Background(), validCommand())

	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, domain.OrderStateFailedToChargeUnreserved, second.State)
	assert.Equal(t, domain.ReasonPaymentFailed, second.Reason)
	// No step ran again for the replayed requestId.
	assert.Len(t, f.services.callLog(), callsAfterFirst)
}

func TestSubmitOrder_InFlightResubmissionRejected(t *testing.T) {
	f := newSagaFixture()
	uc := NewSubmitOrder(f.repo, f.saga)

	// Simulate a saga another process is still driving.
	order, err := domain.NewOrder("sku-1", 1, "addr-1", "u1", "req-1")
	require.NoError(t, err)
	_, created, err := f.repo.CreateIfAbsent(context.Background(), order)
	require.NoError(t, err)
	require.True(t, created)

	_, err = uc.Execute(context.Background(), validCommand())

	assert.ErrorIs(t, err, domain.ErrOrderInProgress)
	assert.Empty(t, f.services.callLog())
}

func TestSubmitOrder_DifferentRequestIDsAreIndependent(t *testing.T) {
	f := newSagaFixture()
	uc := NewSubmitOrder(f.repo, f.saga)

	first, err := uc.Execute(context.Background(), validCommand())
	require.NoError(t, err)

	cmd := validCommand()
	cmd.RequestID = "req-2"
	second, err := uc.Execute(context.Background(), cmd)
	require.NoError(t, err)

	assert.NotEqual(t, first.OrderID, second.OrderID)
	assert.Equal(t, []string{"reserve", "charge", "ship", "reserve", "charge", "ship"}, f.services.callLog())
}
