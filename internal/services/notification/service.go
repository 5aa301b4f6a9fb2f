// Package notification is the engine's boundary to the external notification
// collaborator. Dispatch is fire-and-forget: a failed notification never
// affects a transaction's outcome.
package notification

import (
	"context"
	"log"
)

// Events emitted by the engine.
const (
	EventTransactionCompleted = "transaction.completed"
	EventTransactionFailed    = "transaction.failed"
	EventApprovalRequired     = "transaction.approval_required"
	EventStepUpRequired       = "transaction.step_up_required"
)

// Dispatcher delivers an event for a user. Implementations must be safe for
// concurrent use and should never block the caller for long.
type Dispatcher interface {
	Notify(ctx context.Context, userID uint, event string, payload map[string]interface{})
}

// LogDispatcher logs events. It stands in for the real delivery collaborator.
type LogDispatcher struct{}

// NewLogDispatcher creates a log-backed dispatcher.
func NewLogDispatcher() *LogDispatcher { return &LogDispatcher{} }

func (d *LogDispatcher) Notify(ctx context.Context, userID uint, event string, payload map[string]interface{}) {
	log.Printf("notify user %d: %s %v", userID, event, payload)
}
