package models

import (
	"time"
)

// Transaction types
const (
	TransactionTypeDeposit     = "deposit"
	TransactionTypeWithdrawal  = "withdrawal"
	TransactionTypeTransferOut = "transfer_out"
	TransactionTypeTransferIn  = "transfer_in"
	TransactionTypeExchange    = "exchange"
)

// Transaction statuses. A transaction is created once and only moves forward;
// corrections are new compensating transactions, never edits.
const (
	StatusCreated         = "created"
	StatusRejectedLimit   = "rejected_limit"
	StatusScored          = "scored"
	StatusBlocked         = "blocked"
	StatusPendingApproval = "pending_approval"
	StatusPendingGateway  = "pending_gateway"
	StatusGatewayAccepted = "gateway_accepted"
	StatusGatewayRejected = "gateway_rejected"
	StatusCompleted       = "completed"
	StatusFailed          = "failed"
)

// Approval statuses
const (
	ApprovalAuto     = "auto"
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Risk levels
const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// Transaction is one row of the append-only ledger log. Amount is the exact
// signed balance delta in minor units (negative for debits); Fee records how
// much of that delta was fee, for display and reporting only.
type Transaction struct {
	ID               string `gorm:"primarykey;size:36"`
	WalletID         uint   `gorm:"index;not null"`
	UserID           uint   `gorm:"index;not null"`
	Type             string `gorm:"size:16;not null"`
	Amount           int64  `gorm:"not null"`
	Currency         string `gorm:"size:3;not null"`
	Status           string `gorm:"size:20;not null;default:'created'"`
	ApprovalStatus   string `gorm:"size:16;not null;default:'auto'"`
	Fee              int64  `gorm:"not null;default:0"`
	GatewayReference string `gorm:"size:36;index"`
	GatewayID        string `gorm:"size:64"`
	RiskScore        int
	RiskLevel        string `gorm:"size:8"`
	Description      string
	Metadata         JSON `gorm:"type:jsonb"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Terminal reports whether the transaction can no longer change state.
// pending_approval is deliberately not terminal; the approval actor moves it.
func (t *Transaction) Terminal() bool {
	switch t.Status {
	case StatusRejectedLimit, StatusBlocked, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Debit reports whether the transaction takes money out of the wallet.
func (t *Transaction) Debit() bool {
	return t.Amount < 0
}

// HoldPlaced reports whether a debit hold has been applied to the wallet
// for this transaction. Holds are placed when a debit enters pending_gateway.
func (t *Transaction) HoldPlaced() bool {
	if !t.Debit() {
		return false
	}
	switch t.Status {
	case StatusPendingGateway, StatusGatewayAccepted, StatusGatewayRejected:
		return true
	}
	return false
}
