package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/storefront/order-system/order-service/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderRowColumns = []string{
	"id", "item_id", "quantity", "address_id", "request_id", "user_id",
	"state", "created_at", "updated_at",
}

func newMockRepository(t *testing.T) (*PostgresOrderRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresOrderRepository(sqlx.NewDb(db, "postgres")), mock
}

func newStoredOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder("sku-1", 2, "addr-1", "u1", "req-1")
	require.NoError(t, err)
	return order
}

func orderRow(order *domain.Order, state domain.OrderState) *sqlmock.Rows {
	return sqlmock.NewRows(orderRowColumns).AddRow(
		order.ID.String(), order.ItemID, order.Quantity, order.AddressID,
		order.RequestID, order.UserID, string(state),
		order.Timestamps.CreatedAt, order.Timestamps.UpdatedAt,
	)
}

func TestPostgresOrderRepository_CreateIfAbsent(t *testing.T) {
	repo, mock := newMockRepository(t)
	order := newStoredOrder(t)

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(order.ID.String(), "sku-1", 2, "addr-1", "req-1", "u1",
			string(domain.OrderStateCreated), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	stored, created, err := repo.CreateIfAbsent(context.Background(), order)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Same(t, order, stored)
}

func TestPostgresOrderRepository_CreateIfAbsentConflictReturnsExisting(t *testing.T) {
	repo, mock := newMockRepository(t)
	existing := newStoredOrder(t)
	duplicate := newStoredOrder(t)

	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE request_id").
		WithArgs("req-1").
		WillReturnRows(orderRow(existing, domain.OrderStateFulfilled))

	stored, created, err := repo.CreateIfAbsent(context.Background(), duplicate)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, stored.ID)
	assert.Equal(t, domain.OrderStateFulfilled, stored.State)
}

func TestPostgresOrderRepository_Advance(t *testing.T) {
	repo, mock := newMockRepository(t)
	order := newStoredOrder(t)

	mock.ExpectExec("UPDATE orders SET state").
		WithArgs(string(domain.OrderStateReserved), sqlmock.AnyArg(), order.ID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Advance(context.Background(), order.ID, domain.OrderStateReserved)
	assert.NoError(t, err)
}

func TestPostgresOrderRepository_AdvanceUnknownOrder(t *testing.T) {
	repo, mock := newMockRepository(t)
	order := newStoredOrder(t)

	mock.ExpectExec("UPDATE orders SET state").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Advance(context.Background(), order.ID, domain.OrderStateReserved)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestPostgresOrderRepository_FindByIDNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	order := newStoredOrder(t)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id").
		WithArgs(order.ID.String()).
		WillReturnRows(sqlmock.NewRows(orderRowColumns))

	found, err := repo.FindByID(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestPostgresOrderRepository_FindByRequestID(t *testing.T) {
	repo, mock := newMockRepository(t)
	order := newStoredOrder(t)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE request_id").
		WithArgs("req-1").
		WillReturnRows(orderRow(order, domain.OrderStatePaid))

	found, err := repo.FindByRequestID(context.Background(), "req-1")

	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, order.ID, found.ID)
	assert.Equal(t, domain.OrderStatePaid, found.State)
	assert.Equal(t, "u1", found.UserID)
}

func TestPostgresOrderRepository_FindByRequestIDRejectsCorruptState(t *testing.T) {
	repo, mock := newMockRepository(t)
	order := newStoredOrder(t)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE request_id").
		WithArgs("req-1").
		WillReturnRows(orderRow(order, "SHIPPED"))

	_, err := repo.FindByRequestID(context.Background(), "req-1")
	assert.ErrorContains(t, err, "invalid order state")
}

func TestPostgresOrderRepository_FindStalled(t *testing.T) {
	repo, mock := newMockRepository(t)
	first := newStoredOrder(t)
	second, err := domain.NewOrder("sku-2", 1, "addr-2", "u2", "req-2")
	require.NoError(t, err)
	cutoff := time.Now().Add(-5 * time.Minute)

	mock.ExpectQuery("(?s)SELECT (.+) FROM orders.+WHERE state NOT IN").
		WithArgs(
			string(domain.OrderStateFulfilled),
			string(domain.OrderStateFailedToReserve),
			string(domain.OrderStateFailedToChargeUnreserved),
			string(domain.OrderStateFailedToFulfillUnreserved),
			cutoff,
		).
		WillReturnRows(orderRow(first, domain.OrderStateReserved).AddRow(
			second.ID.String(), second.ItemID, second.Quantity, second.AddressID,
			second.RequestID, second.UserID, string(domain.OrderStateFailedToCharge),
			second.Timestamps.CreatedAt, second.Timestamps.UpdatedAt,
		))

	stalled, err := repo.FindStalled(context.Background(), cutoff)

	require.NoError(t, err)
	require.Len(t, stalled, 2)
	assert.Equal(t, domain.OrderStateReserved, stalled[0].State)
	assert.Equal(t, domain.OrderStateFailedToCharge, stalled[1].State)
}
