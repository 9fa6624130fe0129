package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these so the engine can
// branch with errors.Is instead of inspecting transport detail.
var (
	// General
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Broker API
	ErrBrokerUnavailable    = errors.New("broker API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the broker")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("broker authentication failed (check API keys)")
	ErrInsufficientQty      = errors.New("quantity not available for order")
	ErrOrderNotFound        = errors.New("order not found at the broker")
	ErrOrderPlacementFailed = errors.New("failed to place order")
	ErrOrderCancelFailed    = errors.New("failed to cancel order")

	// Protection engine
	// ErrUnprotected marks the worst per-symbol outcome: the fixed stop was
	// removed for a trailing swap, the trailing submission failed, and the
	// rollback stop submission failed too. The run continues for the
	// remaining symbols but this must be surfaced loudly.
	ErrUnprotected = errors.New("position left without protective order after failed rollback")

	// Journal / snapshot store
	ErrQueryFailed  = errors.New("journal query failed")
	ErrInsertFailed = errors.New("journal insert failed")
)
