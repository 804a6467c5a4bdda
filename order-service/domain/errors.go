package domain

import "github.com/pkg/errors"

// Stable user-facing rejection reasons, one per failure class.
const (
	ReasonInsufficientInventory = "insufficient inventory"
	ReasonPaymentFailed         = "payment failed"
	ReasonCannotShip            = "cannot ship to address"
)

var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderInProgress is returned when a requestId resubmission finds a
	// saga that has not reached a terminal state yet.
	ErrOrderInProgress = errors.New("order already submitted")

	// ErrCompensationStalled is returned when a compensating call exhausted
	// its retries; the order is left in an intermediate failed state and
	// needs manual reconciliation.
	ErrCompensationStalled = errors.New("compensation stalled, manual reconciliation required")
)
