package ledger

import "errors"

var (
	ErrInvalidOutcome = errors.New("invalid finalize outcome")
	ErrInvalidState   = errors.New("transaction not in a reservable state")
	ErrInvalidAmount  = errors.New("invalid amount")
)
