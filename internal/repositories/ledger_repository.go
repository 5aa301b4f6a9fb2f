package repositories

import (
	"context"
	"errors"
	"time"

	"yawatu/internal/models"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrWalletSuspended     = errors.New("wallet suspended")
	ErrDuplicateWallet     = errors.New("wallet already exists")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
)

// LedgerRepository defines the database operations for wallets and the
// transaction log. The *ForUpdate variants take a row lock and are only
// meaningful inside ExecuteInTransaction; they serialize writers on the
// same wallet while leaving other wallets free.
type LedgerRepository interface {
	// Wallet operations
	CreateWallet(w *models.Wallet) error
	GetWallet(id uint) (*models.Wallet, error)
	GetWalletByUser(userID uint, currency string) (*models.Wallet, error)
	GetWalletForUpdate(id uint) (*models.Wallet, error)
	UpdateWallet(w *models.Wallet) error

	// Transaction log operations
	CreateTransaction(t *models.Transaction) error
	GetTransaction(id string) (*models.Transaction, error)
	GetTransactionForUpdate(id string) (*models.Transaction, error)
	GetTransactionByReference(userID uint, reference string) (*models.Transaction, error)
	UpdateTransaction(t *models.Transaction) error
	ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error)
	ListByStatus(statuses []string, olderThan time.Time, limit int) ([]models.Transaction, error)

	// Window aggregations for limits and risk
	SumCompletedInWindow(ctx context.Context, userID uint, txType string, start, end time.Time) (int64, error)
	CountByUserSince(ctx context.Context, userID uint, since time.Time) (int64, error)

	// ExecuteInTransaction runs fn against a repository bound to one
	// database transaction.
	ExecuteInTransaction(fn func(LedgerRepository) error) error
}
