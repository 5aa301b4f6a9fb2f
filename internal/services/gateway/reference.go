package gateway

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	referenceMinLen = 8
	referenceMaxLen = 36
)

// NewReference generates a fresh idempotent reference for one dispatch
// attempt. A retried attempt must generate a new one; references are never
// reused after a gateway ambiguity.
func NewReference() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "YW" + raw[:18]
}

// ValidateReference enforces the 8-36 character contract.
func ValidateReference(ref string) error {
	if len(ref) < referenceMinLen || len(ref) > referenceMaxLen {
		return fmt.Errorf("%w: %d characters", ErrInvalidReference, len(ref))
	}
	return nil
}
