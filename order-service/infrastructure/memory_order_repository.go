package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/storefront/order-system/order-service/domain"
	"github.com/storefront/order-system/shared/models"
)

// MemoryOrderRepository implements domain.OrderRepository using in-memory
// maps. Not durable; use only for tests and local development.
type MemoryOrderRepository struct {
	mu          sync.RWMutex
	byID        map[models.ID]*domain.Order
	byRequestID map[string]*domain.Order
}

// NewMemoryOrderRepository creates a new MemoryOrderRepository
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		byID:        make(map[models.ID]*domain.Order),
		byRequestID: make(map[string]*domain.Order),
	}
}

// CreateIfAbsent stores the order unless the requestId was seen before
func (r *MemoryOrderRepository) CreateIfAbsent(ctx context.Context, order *domain.Order) (*domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byRequestID[order.RequestID]; ok {
		return copyOrder(existing), false, nil
	}

	stored := copyOrder(order)
	r.byID[stored.ID] = stored
	r.byRequestID[stored.RequestID] = stored
	return order, true, nil
}

// Advance updates the stored state
func (r *MemoryOrderRepository) Advance(ctx context.Context, id models.ID, state domain.OrderState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.byID[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.State = state
	order.Timestamps = order.Timestamps.Update()
	return nil
}

// FindByID finds an order by ID
func (r *MemoryOrderRepository) FindByID(ctx context.Context, id models.ID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if order, ok := r.byID[id]; ok {
		return copyOrder(order), nil
	}
	return nil, nil
}

// FindByRequestID finds an order by its idempotency key
func (r *MemoryOrderRepository) FindByRequestID(ctx context.Context, requestID string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if order, ok := r.byRequestID[requestID]; ok {
		return copyOrder(order), nil
	}
	return nil, nil
}

// FindStalled returns non-terminal orders not touched since olderThan
func (r *MemoryOrderRepository) FindStalled(ctx context.Context, olderThan time.Time) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stalled []*domain.Order
	for _, order := range r.byID {
		if !order.State.Terminal() && order.Timestamps.UpdatedAt.Before(olderThan) {
			stalled = append(stalled, copyOrder(order))
		}
	}
	return stalled, nil
}

func copyOrder(order *domain.Order) *domain.Order {
	clone := *order
	clone.ClearEvents()
	return &clone
}
