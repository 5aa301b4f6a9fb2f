package limits

import (
	"errors"
	"fmt"
)

var (
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrNoProfile     = errors.New("no limit profile for account type")
)

// Limit windows.
const (
	WindowSingle  = "single"
	WindowDaily   = "daily"
	WindowMonthly = "monthly"
)

// LimitError reports which window denied the transaction and the ceiling
// that was hit, so the caller can show the user a concrete reason.
type LimitError struct {
	Window string
	Limit  int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit of %d exceeded", e.Window, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }
