package domain

import "context"

// CallRequest is the request contract shared by every downstream service.
// RequestID is forwarded unchanged so that retries of the same logical order
// are deduplicated downstream.
type CallRequest struct {
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	AddressID string `json:"address_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	RequestID string `json:"request_id"`
}

// CallResult is a downstream outcome. Failed=true is a business rejection
// (e.g. out of stock); infrastructure faults are returned as errors instead.
type CallResult struct {
	Failed bool   `json:"failed"`
	Reason string `json:"reason,omitempty"`
}

// InventoryClient reserves and releases stock
type InventoryClient interface {
	Reserve(ctx context.Context, req CallRequest) (CallResult, error)
	Unreserve(ctx context.Context, req CallRequest) (CallResult, error)
}

// PaymentClient charges and refunds
type PaymentClient interface {
	Charge(ctx context.Context, req CallRequest) (CallResult, error)
	Refund(ctx context.Context, req CallRequest) (CallResult, error)
}

// FulfillmentClient ships packages
type FulfillmentClient interface {
	Ship(ctx context.Context, req CallRequest) (CallResult, error)
}
