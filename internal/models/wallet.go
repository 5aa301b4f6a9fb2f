package models

import (
	"time"
)

// Wallet statuses
const (
	WalletStatusActive    = "active"
	WalletStatusSuspended = "suspended"
)

// Wallet is a stored-value account in a single currency. Balance is held in
// minor units (cents for KES/TZS, whole shillings for UGX) and is only ever
// mutated by the ledger service.
type Wallet struct {
	ID           uint   `gorm:"primarykey"`
	UserID       uint   `gorm:"uniqueIndex:idx_wallet_user_currency;not null"`
	Currency     string `gorm:"uniqueIndex:idx_wallet_user_currency;size:3;not null"`
	Balance      int64  `gorm:"not null;default:0"`
	Status       string `gorm:"size:16;not null;default:'active'"`
	StatusReason string `gorm:"default:''"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (w *Wallet) Active() bool {
	return w.Status == WalletStatusActive
}
