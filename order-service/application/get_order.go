package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/storefront/order-system/order-service/domain"
	"github.com/storefront/order-system/shared/models"
)

// GetOrderQuery looks up an order by its ID, falling back to the requestId
// when the argument is not a UUID.
type GetOrderQuery struct {
	OrderID string
}

// GetOrderResponse is the stored order record
type GetOrderResponse struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	Quantity  int       `json:"quantity"`
	AddressID string    `json:"address_id"`
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetOrder use case
type GetOrder struct {
	orders domain.OrderRepository
}

// NewGetOrder creates a new GetOrder use case
func NewGetOrder(orders domain.OrderRepository) *GetOrder {
	return &GetOrder{orders: orders}
}

// Execute executes the query
func (uc *GetOrder) Execute(ctx context.Context, query *GetOrderQuery) (*GetOrderResponse, error) {
	if query.OrderID == "" {
		return nil, errors.New("order ID is required")
	}

	var (
		order *domain.Order
		err   error
	)
	if id, idErr := models.NewID(query.OrderID); idErr == nil {
		order, err = uc.orders.FindByID(ctx, id)
	} else {
		order, err = uc.orders.FindByRequestID(ctx, query.OrderID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find order")
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	return &GetOrderResponse{
		ID:        order.ID.String(),
		ItemID:    order.ItemID,
		Quantity:  order.Quantity,
		AddressID: order.AddressID,
		RequestID: order.RequestID,
		UserID:    order.UserID,
		State:     order.State.String(),
		CreatedAt: order.Timestamps.CreatedAt,
		UpdatedAt: order.Timestamps.UpdatedAt,
	}, nil
}
