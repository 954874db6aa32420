package reconciler

import "errors"

var (
	// ErrOrderNotFound means the settlement references an order number that
	// does not exist. Orders are created by the checkout flow, never by a
	// webhook.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidTransition means an operator requested a status change that
	// is not adjacent in the fulfillment graph.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPersistence wraps ledger write failures. Events failing with it are
	// unprocessed and safe for the gateway to retry.
	ErrPersistence = errors.New("persistence failure")
)
