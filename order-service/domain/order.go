package domain

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/storefront/order-system/shared/events"
	"github.com/storefront/order-system/shared/models"
)

// OrderState is the order's position in the purchase saga. States only move
// forward; the FAILED_TO_* chains track how far compensation has progressed.
type OrderState string

const (
	OrderStateCreated                   OrderState = "CREATED"
	OrderStateReserved                  OrderState = "RESERVED"
	OrderStateFailedToReserve           OrderState = "FAILED_TO_RESERVE"
	OrderStatePaid                      OrderState = "PAID"
	OrderStateFailedToCharge            OrderState = "FAILED_TO_CHARGE"
	OrderStateFailedToChargeUnreserved  OrderState = "FAILED_TO_CHARGE_UNRESERVED"
	OrderStateFulfilled                 OrderState = "FULFILLED"
	OrderStateFailedToFulfill           OrderState = "FAILED_TO_FULFILL"
	OrderStateFailedToFulfillRefunded   OrderState = "FAILED_TO_FULFILL_REFUNDED"
	OrderStateFailedToFulfillUnreserved OrderState = "FAILED_TO_FULFILL_UNRESERVED"
)

var allowedTransitions = map[OrderState][]OrderState{
	OrderStateCreated:                 {OrderStateReserved, OrderStateFailedToReserve},
	OrderStateReserved:                {OrderStatePaid, OrderStateFailedToCharge},
	OrderStateFailedToCharge:          {OrderStateFailedToChargeUnreserved},
	OrderStatePaid:                    {OrderStateFulfilled, OrderStateFailedToFulfill},
	OrderStateFailedToFulfill:         {OrderStateFailedToFulfillRefunded},
	OrderStateFailedToFulfillRefunded: {OrderStateFailedToFulfillUnreserved},
}

// ParseOrderState validates a stored state string
func ParseOrderState(s string) (OrderState, error) {
	switch state := OrderState(s); state {
	case OrderStateCreated, OrderStateReserved, OrderStateFailedToReserve,
		OrderStatePaid, OrderStateFailedToCharge, OrderStateFailedToChargeUnreserved,
		OrderStateFulfilled, OrderStateFailedToFulfill,
		OrderStateFailedToFulfillRefunded, OrderStateFailedToFulfillUnreserved:
		return state, nil
	default:
		return "", errors.Errorf("unknown order state %q", s)
	}
}

func (s OrderState) String() string {
	return string(s)
}

// Terminal reports whether the saga is finished, successfully or with every
// compensation applied.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateFulfilled, OrderStateFailedToReserve,
		OrderStateFailedToChargeUnreserved, OrderStateFailedToFulfillUnreserved:
		return true
	}
	return false
}

// CompensationPending reports whether a forward step failed but its
// compensations have not all completed yet.
func (s OrderState) CompensationPending() bool {
	switch s {
	case OrderStateFailedToCharge, OrderStateFailedToFulfill, OrderStateFailedToFulfillRefunded:
		return true
	}
	return false
}

// FailureReason returns the canonical business rejection message for a failed
// state, or "" for non-failed states.
func (s OrderState) FailureReason() string {
	switch s {
	case OrderStateFailedToReserve:
		return ReasonInsufficientInventory
	case OrderStateFailedToCharge, OrderStateFailedToChargeUnreserved:
		return ReasonPaymentFailed
	case OrderStateFailedToFulfill, OrderStateFailedToFulfillRefunded, OrderStateFailedToFulfillUnreserved:
		return ReasonCannotShip
	}
	return ""
}

// Order is the durable saga record. RequestID is the client-supplied
// idempotency key; every downstream call carries it unchanged.
type Order struct {
	ID         models.ID
	ItemID     string
	Quantity   int
	AddressID  string
	UserID     string
	RequestID  string
	State      OrderState
	Timestamps models.Timestamps

	events []*events.Event
}

// NewOrder creates an order in the CREATED state
func NewOrder(itemID string, quantity int, addressID, userID, requestID string) (*Order, error) {
	if itemID == "" {
		return nil, errors.New("item ID is required")
	}
	if quantity <= 0 {
		return nil, errors.New("quantity must be positive")
	}
	if addressID == "" {
		return nil, errors.New("address ID is required")
	}
	if userID == "" {
		return nil, errors.New("user ID is required")
	}
	if requestID == "" {
		return nil, errors.New("request ID is required")
	}

	order := &Order{
		ID:         models.GenerateUUID(),
		ItemID:     itemID,
		Quantity:   quantity,
		AddressID:  addressID,
		UserID:     userID,
		RequestID:  requestID,
		State:      OrderStateCreated,
		Timestamps: models.NewTimestamps(),
	}

	order.recordEvent(events.NewEvent(order.ID, events.OrderCreatedEvent, OrderStateChangedData{
		OrderID:   order.ID,
		RequestID: requestID,
		To:        OrderStateCreated,
	}))
	return order, nil
}

// Advance moves the order to the next saga state
func (o *Order) Advance(next OrderState) error {
	allowed := false
	for _, candidate := range allowedTransitions[o.State] {
		if candidate == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Errorf("illegal transition %s -> %s", o.State, next)
	}

	from := o.State
	o.State = next
	o.Timestamps = o.Timestamps.Update()

	eventType := events.OrderStateChangedEvent
	switch {
	case next == OrderStateFulfilled:
		eventType = events.OrderFulfilledEvent
	case next.Terminal():
		eventType = events.OrderFailedEvent
	}

	o.recordEvent(events.NewEvent(o.ID, eventType, OrderStateChangedData{
		OrderID:   o.ID,
		RequestID: o.RequestID,
		From:      from,
		To:        next,
	}))
	return nil
}

// CallRequest builds the downstream request carrying the idempotency key
func (o *Order) CallRequest() CallRequest {
	return CallRequest{
		ItemID:    o.ItemID,
		Quantity:  o.Quantity,
		AddressID: o.AddressID,
		UserID:    o.UserID,
		RequestID: o.RequestID,
	}
}

// Events returns recorded domain events
func (o *Order) Events() []*events.Event {
	return o.events
}

// ClearEvents clears recorded domain events
func (o *Order) ClearEvents() {
	o.events = nil
}

func (o *Order) recordEvent(event *events.Event) {
	o.events = append(o.events, event)
}

// OrderStateChangedData is the payload of every order lifecycle event
type OrderStateChangedData struct {
	OrderID   models.ID  `json:"order_id"`
	RequestID string     `json:"request_id"`
	From      OrderState `json:"from,omitempty"`
	To        OrderState `json:"to"`
}

// OrderRepository is the durable order state store. CreateIfAbsent is atomic
// per RequestID; Advance is a single write of the state field.
type OrderRepository interface {
	CreateIfAbsent(ctx context.Context, order *Order) (*Order, bool, error)
	Advance(ctx context.Context, id models.ID, state OrderState) error
	FindByID(ctx context.Context, id models.ID) (*Order, error)
	FindByRequestID(ctx context.Context, requestID string) (*Order, error)
	FindStalled(ctx context.Context, olderThan time.Time) ([]*Order, error)
}
