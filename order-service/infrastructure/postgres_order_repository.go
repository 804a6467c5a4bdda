package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/storefront/order-system/order-service/domain"
	"github.com/storefront/order-system/shared/models"
)

// PostgresOrderRepository implements domain.OrderRepository using PostgreSQL.
// The unique index on request_id is what makes CreateIfAbsent atomic under
// concurrent submissions of the same requestId.
type PostgresOrderRepository struct {
	db *sqlx.DB
}

// NewPostgresOrderRepository creates a new PostgresOrderRepository
func NewPostgresOrderRepository(db *sqlx.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

// postgresOrder represents an order row
type postgresOrder struct {
	ID        string    `db:"id"`
	ItemID    string    `db:"item_id"`
	Quantity  int       `db:"quantity"`
	AddressID string    `db:"address_id"`
	RequestID string    `db:"request_id"`
	UserID    string    `db:"user_id"`
	State     string    `db:"state"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CreateIfAbsent inserts the order unless a row with the same request_id
// already exists, in which case the existing row is returned with created=false.
func (r *PostgresOrderRepository) CreateIfAbsent(ctx context.Context, order *domain.Order) (*domain.Order, bool, error) {
	query := `
		INSERT INTO orders (
			id, item_id, quantity, address_id, request_id, user_id, state,
			created_at, updated_at
		) VALUES (
			:id, :item_id, :quantity, :address_id, :request_id, :user_id, :state,
			:created_at, :updated_at
		)
		ON CONFLICT (request_id) DO NOTHING`

	res, err := r.db.NamedExecContext(ctx, query, r.toPostgres(order))
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to insert order")
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read rows affected")
	}
	if inserted == 1 {
		return order, true, nil
	}

	existing, err := r.FindByRequestID(ctx, order.RequestID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, errors.Errorf("order with request ID %s vanished after conflict", order.RequestID)
	}
	return existing, false, nil
}

// Advance writes the order's new state in a single atomic update
func (r *PostgresOrderRepository) Advance(ctx context.Context, id models.ID, state domain.OrderState) error {
	query := `UPDATE orders SET state = $1, updated_at = $2 WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, string(state), time.Now(), id.String())
	if err != nil {
		return errors.Wrap(err, "failed to update order state")
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if updated == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// FindByID finds an order by ID
func (r *PostgresOrderRepository) FindByID(ctx context.Context, id models.ID) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id.String())
}

// FindByRequestID finds an order by its idempotency key
func (r *PostgresOrderRepository) FindByRequestID(ctx context.Context, requestID string) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE request_id = $1`, requestID)
}

// FindStalled returns non-terminal orders not touched since olderThan,
// oldest first
func (r *PostgresOrderRepository) FindStalled(ctx context.Context, olderThan time.Time) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE state NOT IN ($1, $2, $3, $4) AND updated_at < $5
		ORDER BY updated_at ASC`

	var rows []postgresOrder
	err := r.db.SelectContext(ctx, &rows, query,
		string(domain.OrderStateFulfilled),
		string(domain.OrderStateFailedToReserve),
		string(domain.OrderStateFailedToChargeUnreserved),
		string(domain.OrderStateFailedToFulfillUnreserved),
		olderThan,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find stalled orders")
	}

	orders := make([]*domain.Order, len(rows))
	for i, row := range rows {
		order, err := r.toDomain(&row)
		if err != nil {
			return nil, err
		}
		orders[i] = order
	}
	return orders, nil
}

const orderColumns = `id, item_id, quantity, address_id, request_id, user_id, state, created_at, updated_at`

func (r *PostgresOrderRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.Order, error) {
	var row postgresOrder
	err := r.db.GetContext(ctx, &row, query, arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find order")
	}
	return r.toDomain(&row)
}

func (r *PostgresOrderRepository) toPostgres(order *domain.Order) *postgresOrder {
	return &postgresOrder{
		ID:        order.ID.String(),
		ItemID:    order.ItemID,
		Quantity:  order.Quantity,
		AddressID: order.AddressID,
		RequestID: order.RequestID,
		UserID:    order.UserID,
		State:     string(order.State),
		CreatedAt: order.Timestamps.CreatedAt,
		UpdatedAt: order.Timestamps.UpdatedAt,
	}
}

func (r *PostgresOrderRepository) toDomain(row *postgresOrder) (*domain.Order, error) {
	id, err := models.NewID(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid order ID")
	}

	state, err := domain.ParseOrderState(row.State)
	if err != nil {
		return nil, errors.Wrap(err, "invalid order state")
	}

	return &domain.Order{
		ID:        id,
		ItemID:    row.ItemID,
		Quantity:  row.Quantity,
		AddressID: row.AddressID,
		RequestID: row.RequestID,
		UserID:    row.UserID,
		State:     state,
		Timestamps: models.Timestamps{
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		},
	}, nil
}
