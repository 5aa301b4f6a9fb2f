package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"yawatu/internal/models"
	"yawatu/internal/repositories"
)

// Finalize outcomes.
const (
	OutcomeCompleted = models.StatusCompleted
	OutcomeFailed    = models.StatusFailed
)

const (
	walletCachePrefix = "wallet:"
	walletCacheTTL    = 5 * time.Minute
)

// Service owns all balance mutations.
type Service interface {
	CreateWallet(ctx context.Context, userID uint, currency string) (*models.Wallet, error)
	GetWallet(ctx context.Context, userID uint, currency string) (*models.Wallet, error)
	BalanceOf(ctx context.Context, walletID uint) (int64, error)

	// Reserve places the debit hold (or stages a credit) for a created
	// transaction and moves it to pending_gateway.
	Reserve(ctx context.Context, transactionID string) (*models.Transaction, error)

	// Finalize settles a transaction. Calling it again on a terminal
	// transaction returns the existing state without re-applying deltas.
	Finalize(ctx context.Context, transactionID string, outcome string) (*models.Transaction, error)

	// CommitTransfer atomically completes an internal transfer: the prepared
	// debit leg plus a freshly written credit leg, both wallets adjusted in
	// one unit. No gateway is involved.
	CommitTransfer(ctx context.Context, outTransactionID string, in *models.Transaction) (*models.Transaction, *models.Transaction, error)
}

// MetricsCollector receives ledger operation metrics.
type MetricsCollector interface {
	RecordOperation(operation string, amount int64)
	RecordError(operation, errType string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOperation(string, int64) {}
func (NoopMetricsCollector) RecordError(string, string)    {}

type service struct {
	repo    repositories.LedgerRepository
	cache   repositories.CacheRepository
	metrics MetricsCollector
}

// NewService creates the ledger service.
func NewService(repo repositories.LedgerRepository, cache repositories.CacheRepository, metrics MetricsCollector) Service {
	if repo == nil {
		panic("repo is required")
	}
	if cache == nil {
		panic("cache is required")
	}
	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}
	return &service{repo: repo, cache: cache, metrics: metrics}
}

func (s *service) CreateWallet(ctx context.Context, userID uint, currency string) (*models.Wallet, error) {
	wallet := &models.Wallet{
		UserID:   userID,
		Currency: currency,
		Balance:  0,
		Status:   models.WalletStatusActive,
	}
	if err := s.repo.CreateWallet(wallet); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	s.cacheWallet(ctx, wallet)
	return wallet, nil
}

func (s *service) GetWallet(ctx context.Context, userID uint, currency string) (*models.Wallet, error) {
	if cached, err := s.cache.Get(ctx, walletKey(userID, currency)); err == nil {
		var w models.Wallet
		if err := json.Unmarshal([]byte(cached), &w); err == nil {
			return &w, nil
		}
	}

	wallet, err := s.repo.GetWalletByUser(userID, currency)
	if err != nil {
		return nil, err
	}
	s.cacheWallet(ctx, wallet)
	return wallet, nil
}

func (s *service) BalanceOf(ctx context.Context, walletID uint) (int64, error) {
	wallet, err := s.repo.GetWallet(walletID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

func (s *service) Reserve(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var out *models.Transaction
	var wallet *models.Wallet

	err := s.repo.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		tx, err := r.GetTransactionForUpdate(transactionID)
		if err != nil {
			return err
		}

		// Retried reserve on a transaction already holding funds is a no-op.
		if tx.Status == models.StatusPendingGateway || tx.Status == models.StatusGatewayAccepted {
			out = tx
			return nil
		}
		if tx.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrInvalidState, tx.ID, tx.Status)
		}

		w, err := r.GetWalletForUpdate(tx.WalletID)
		if err != nil {
			return err
		}
		if !w.Active() {
			return repositories.ErrWalletSuspended
		}

		if tx.Debit() {
			if w.Balance+tx.Amount < 0 {
				return repositories.ErrInsufficientFunds
			}
			w.Balance += tx.Amount
			if err := r.UpdateWallet(w); err != nil {
				return err
			}
			wallet = w
		}

		tx.Status = models.StatusPendingGateway
		if err := r.UpdateTransaction(tx); err != nil {
			return err
		}
		out = tx
		return nil
	})

	if err != nil {
		s.metrics.RecordError("reserve", err.Error())
		return nil, err
	}
	if wallet != nil {
		s.invalidateWallet(ctx, wallet)
	}
	s.metrics.RecordOperation("reserve", out.Amount)
	return out, nil
}

func (s *service) Finalize(ctx context.Context, transactionID string, outcome string) (*models.Transaction, error) {
	if outcome != OutcomeCompleted && outcome != OutcomeFailed {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	var out *models.Transaction
	var wallet *models.Wallet

	err := s.repo.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		tx, err := r.GetTransactionForUpdate(transactionID)
		if err != nil {
			return err
		}

		// Idempotent: a second finalize returns the settled row untouched.
		if tx.Status == models.StatusCompleted || tx.Status == models.StatusFailed {
			out = tx
			return nil
		}

		switch outcome {
		case OutcomeCompleted:
			if tx.Debit() {
				if !tx.HoldPlaced() {
					return fmt.Errorf("%w: completing debit %s without a hold", ErrInvalidState, tx.ID)
				}
				// Hold already moved the balance at reserve time.
			} else if tx.Amount != 0 {
				w, err := r.GetWalletForUpdate(tx.WalletID)
				if err != nil {
					return err
				}
				w.Balance += tx.Amount
				if err := r.UpdateWallet(w); err != nil {
					return err
				}
				wallet = w
			}
			tx.Status = models.StatusCompleted

		case OutcomeFailed:
			if tx.HoldPlaced() {
				w, err := r.GetWalletForUpdate(tx.WalletID)
				if err != nil {
					return err
				}
				w.Balance -= tx.Amount
				if err := r.UpdateWallet(w); err != nil {
					return err
				}
				wallet = w
			}
			tx.Status = models.StatusFailed
		}

		if err := r.UpdateTransaction(tx); err != nil {
			return err
		}
		out = tx
		return nil
	})

	if err != nil {
		s.metrics.RecordError("finalize", err.Error())
		return nil, err
	}
	if wallet != nil {
		s.invalidateWallet(ctx, wallet)
	}
	s.metrics.RecordOperation("finalize", out.Amount)
	return out, nil
}

func (s *service) CommitTransfer(ctx context.Context, outTransactionID string, in *models.Transaction) (*models.Transaction, *models.Transaction, error) {
	var outTx, inTx *models.Transaction
	var fromWallet, toWallet *models.Wallet

	err := s.repo.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		out, err := r.GetTransactionForUpdate(outTransactionID)
		if err != nil {
			return err
		}
		if out.Status == models.StatusCompleted {
			// Retried commit; the credit leg was written in the same unit.
			outTx = out
			return nil
		}
		if out.Terminal() || out.HoldPlaced() {
			return fmt.Errorf("%w: %s is %s", ErrInvalidState, out.ID, out.Status)
		}
		if !out.Debit() {
			return fmt.Errorf("%w: transfer debit leg must be negative", ErrInvalidAmount)
		}

		// Lock both wallets in ascending ID order so concurrent opposite
		// transfers cannot deadlock.
		first, second := out.WalletID, in.WalletID
		if first > second {
			first, second = second, first
		}
		w1, err := r.GetWalletForUpdate(first)
		if err != nil {
			return err
		}
		w2, err := r.GetWalletForUpdate(second)
		if err != nil {
			return err
		}
		from, to := w1, w2
		if from.ID != out.WalletID {
			from, to = w2, w1
		}

		if !from.Active() || !to.Active() {
			return repositories.ErrWalletSuspended
		}
		if from.Balance+out.Amount < 0 {
			return repositories.ErrInsufficientFunds
		}

		from.Balance += out.Amount
		if err := r.UpdateWallet(from); err != nil {
			return err
		}
		to.Balance += in.Amount
		if err := r.UpdateWallet(to); err != nil {
			return err
		}

		out.Status = models.StatusCompleted
		if err := r.UpdateTransaction(out); err != nil {
			return err
		}
		in.Status = models.StatusCompleted
		if err := r.CreateTransaction(in); err != nil {
			return err
		}

		outTx, inTx = out, in
		fromWallet, toWallet = from, to
		return nil
	})

	if err != nil {
		s.metrics.RecordError("transfer", err.Error())
		return nil, nil, err
	}
	if fromWallet != nil {
		s.invalidateWallet(ctx, fromWallet)
	}
	if toWallet != nil {
		s.invalidateWallet(ctx, toWallet)
	}
	s.metrics.RecordOperation("transfer", outTx.Amount)
	return outTx, inTx, nil
}

func walletKey(userID uint, currency string) string {
	return fmt.Sprintf("%s%d:%s", walletCachePrefix, userID, currency)
}

func (s *service) cacheWallet(ctx context.Context, w *models.Wallet) {
	data, err := json.Marshal(w)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, walletKey(w.UserID, w.Currency), string(data), walletCacheTTL); err != nil {
		log.Printf("failed to cache wallet %d: %v", w.ID, err)
	}
}

func (s *service) invalidateWallet(ctx context.Context, w *models.Wallet) {
	if err := s.cache.Delete(ctx, walletKey(w.UserID, w.Currency)); err != nil {
		log.Printf("failed to invalidate wallet cache %d: %v", w.ID, err)
	}
}
