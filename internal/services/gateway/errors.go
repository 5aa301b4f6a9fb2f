package gateway

import "errors"

var (
	// ErrInvalidPhone is returned when a number cannot be normalized for
	// the currency's country.
	ErrInvalidPhone = errors.New("invalid phone number")

	// ErrUnknownCurrency is returned for currencies with no country mapping.
	ErrUnknownCurrency = errors.New("unsupported currency")

	// ErrInvalidReference is returned for references outside 8-36 characters.
	ErrInvalidReference = errors.New("invalid gateway reference")

	// ErrInvalidRequest maps gateway HTTP 400: the request itself was bad.
	ErrInvalidRequest = errors.New("gateway rejected request as invalid")

	// ErrUnauthorized maps HTTP 401/403: a configuration problem, fatal and
	// not retryable.
	ErrUnauthorized = errors.New("gateway authorization failed")

	// ErrUnavailable maps HTTP 5xx: retryable infrastructure failure.
	ErrUnavailable = errors.New("gateway unavailable")

	// ErrTimeout means the call did not return in time. The payment may
	// still have gone through; reconciliation must resolve it.
	ErrTimeout = errors.New("gateway call timed out")
)
