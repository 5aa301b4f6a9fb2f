package ledger

import (
	"context"
	"testing"

	"yawatu/internal/models"
	"yawatu/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (Service, repositories.LedgerRepository) {
	t.Helper()
	repo := repositories.NewMemoryLedgerRepository()
	return NewService(repo, repositories.NewMemoryCache(), NoopMetricsCollector{}), repo
}

func newTestTransaction(wallet *models.Wallet, txType string, amount int64) *models.Transaction {
	return &models.Transaction{
		ID:       uuid.NewString(),
		WalletID: wallet.ID,
		UserID:   wallet.UserID,
		Type:     txType,
		Amount:   amount,
		Currency: wallet.Currency,
		Status:   models.StatusCreated,
	}
}

func TestLedgerService_CreateWallet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	wallet, err := svc.CreateWallet(ctx, 1, "UGX")
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.Balance)
	assert.Equal(t, models.WalletStatusActive, wallet.Status)

	_, err = svc.CreateWallet(ctx, 1, "UGX")
	assert.ErrorIs(t, err, repositories.ErrDuplicateWallet)

	// A second currency for the same user is a distinct wallet.
	_, err = svc.CreateWallet(ctx, 1, "KES")
	assert.NoError(t, err)
}

func TestLedgerService_ReserveDebit(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	wallet, err := svc.CreateWallet(ctx, 1, "UGX")
	require.NoError(t, err)
	wallet.Balance = 100_000
	require.NoError(t, repo.UpdateWallet(wallet))

	t.Run("hold is applied atomically", func(t *testing.T) {
		tx := newTestTransaction(wallet, models.TransactionTypeWithdrawal, -40_000)
		require.NoError(t, repo.CreateTransaction(tx))

		reserved, err := svc.Reserve(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPendingGateway, reserved.Status)

		w, err := repo.GetWallet(wallet.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(60_000), w.Balance)
	})

	t.Run("retried reserve does not double the hold", func(t *testing.T) {
		tx := newTestTransaction(wallet, models.TransactionTypeWithdrawal, -10_000)
		require.NoError(t, repo.CreateTransaction(tx))

		_, err := svc.Reserve(ctx, tx.ID)
		require.NoError(t, err)
		before, _ := repo.GetWallet(wallet.ID)

		_, err = svc.Reserve(ctx, tx.ID)
		require.NoError(t, err)
		after, _ := repo.GetWallet(wallet.ID)
		assert.Equal(t, before.Balance, after.Balance)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		w, _ := repo.GetWallet(wallet.ID)
		tx := newTestTransaction(w, models.TransactionTypeWithdrawal, -(w.Balance + 1))
		require.NoError(t, repo.CreateTransaction(tx))

		_, err := svc.Reserve(ctx, tx.ID)
		assert.ErrorIs(t, err, repositories.ErrInsufficientFunds)

		after, _ := repo.GetWallet(wallet.ID)
		assert.Equal(t, w.Balance, after.Balance)
	})

	t.Run("suspended wallet rejects holds", func(t *testing.T) {
		w, _ := repo.GetWallet(wallet.ID)
		w.Status = models.WalletStatusSuspended
		require.NoError(t, repo.UpdateWallet(w))
		defer func() {
			w.Status = models.WalletStatusActive
			require.NoError(t, repo.UpdateWallet(w))
		}()

		tx := newTestTransaction(w, models.TransactionTypeWithdrawal, -1_000)
		require.NoError(t, repo.CreateTransaction(tx))

		_, err := svc.Reserve(ctx, tx.ID)
		assert.ErrorIs(t, err, repositories.ErrWalletSuspended)
	})
}

func TestLedgerService_Finalize(t *testing.T) {
	ctx := context.Background()

	t.Run("completed credit applies the balance once", func(t *testing.T) {
		svc, repo := newTestService(t)
		wallet, err := svc.CreateWallet(ctx, 1, "UGX")
		require.NoError(t, err)

		tx := newTestTransaction(wallet, models.TransactionTypeDeposit, 50_000)
		require.NoError(t, repo.CreateTransaction(tx))
		_, err = svc.Reserve(ctx, tx.ID)
		require.NoError(t, err)

		// Credits apply nothing at reserve time.
		w, _ := repo.GetWallet(wallet.ID)
		assert.Equal(t, int64(0), w.Balance)

		settled, err := svc.Finalize(ctx, tx.ID, OutcomeCompleted)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, settled.Status)

		w, _ = repo.GetWallet(wallet.ID)
		assert.Equal(t, int64(50_000), w.Balance)

		// Idempotent retry.
		again, err := svc.Finalize(ctx, tx.ID, OutcomeCompleted)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, again.Status)
		w, _ = repo.GetWallet(wallet.ID)
		assert.Equal(t, int64(50_000), w.Balance)
	})

	t.Run("failed debit releases the hold exactly once", func(t *testing.T) {
		svc, repo := newTestService(t)
		wallet, err := svc.CreateWallet(ctx, 1, "UGX")
		require.NoError(t, err)
		wallet.Balance = 100_000
		require.NoError(t, repo.UpdateWallet(wallet))

		tx := newTestTransaction(wallet, models.TransactionTypeWithdrawal, -30_000)
		require.NoError(t, repo.CreateTransaction(tx))
		_, err = svc.Reserve(ctx, tx.ID)
		require.NoError(t, err)

		settled, err := svc.Finalize(ctx, tx.ID, OutcomeFailed)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, settled.Status)

		w, _ := repo.GetWallet(wallet.ID)
		assert.Equal(t, int64(100_000), w.Balance)

		_, err = svc.Finalize(ctx, tx.ID, OutcomeFailed)
		require.NoError(t, err)
		w, _ = repo.GetWallet(wallet.ID)
		assert.Equal(t, int64(100_000), w.Balance)
	})

	t.Run("completing a debit without a hold is rejected", func(t *testing.T) {
		svc, repo := newTestService(t)
		wallet, err := svc.CreateWallet(ctx, 1, "UGX")
		require.NoError(t, err)

		tx := newTestTransaction(wallet, models.TransactionTypeWithdrawal, -5_000)
		require.NoError(t, repo.CreateTransaction(tx))

		_, err = svc.Finalize(ctx, tx.ID, OutcomeCompleted)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("unknown outcome", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Finalize(ctx, "whatever", "reversed")
		assert.ErrorIs(t, err, ErrInvalidOutcome)
	})
}

func TestLedgerService_BalanceMatchesCompletedSum(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	wallet, err := svc.CreateWallet(ctx, 7, "UGX")
	require.NoError(t, err)

	steps := []struct {
		txType  string
		amount  int64
		outcome string
	}{
		{models.TransactionTypeDeposit, 500_000, OutcomeCompleted},
		{models.TransactionTypeWithdrawal, -120_000, OutcomeCompleted},
		{models.TransactionTypeWithdrawal, -80_000, OutcomeFailed},
		{models.TransactionTypeDeposit, 40_000, OutcomeFailed},
		{models.TransactionTypeWithdrawal, -50_000, OutcomeCompleted},
	}

	var completedSum int64
	for _, step := range steps {
		tx := newTestTransaction(wallet, step.txType, step.amount)
		require.NoError(t, repo.CreateTransaction(tx))
		_, err := svc.Reserve(ctx, tx.ID)
		require.NoError(t, err)
		_, err = svc.Finalize(ctx, tx.ID, step.outcome)
		require.NoError(t, err)
		if step.outcome == OutcomeCompleted {
			completedSum += step.amount
		}
	}

	w, err := repo.GetWallet(wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, completedSum, w.Balance)
	assert.Equal(t, int64(330_000), w.Balance)
}

func TestLedgerService_CommitTransfer(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (Service, repositories.LedgerRepository, *models.Wallet, *models.Wallet) {
		svc, repo := newTestService(t)
		from, err := svc.CreateWallet(ctx, 1, "UGX")
		require.NoError(t, err)
		from.Balance = 500_000
		require.NoError(t, repo.UpdateWallet(from))
		to, err := svc.CreateWallet(ctx, 2, "UGX")
		require.NoError(t, err)
		return svc, repo, from, to
	}

	t.Run("moves funds atomically", func(t *testing.T) {
		svc, repo, from, to := setup(t)

		out := newTestTransaction(from, models.TransactionTypeTransferOut, -150_000)
		require.NoError(t, repo.CreateTransaction(out))
		in := newTestTransaction(to, models.TransactionTypeTransferIn, 150_000)

		gotOut, gotIn, err := svc.CommitTransfer(ctx, out.ID, in)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, gotOut.Status)
		assert.Equal(t, models.StatusCompleted, gotIn.Status)

		fromAfter, _ := repo.GetWallet(from.ID)
		toAfter, _ := repo.GetWallet(to.ID)
		assert.Equal(t, int64(350_000), fromAfter.Balance)
		assert.Equal(t, int64(150_000), toAfter.Balance)
	})

	t.Run("insufficient funds leaves both wallets untouched", func(t *testing.T) {
		svc, repo, from, to := setup(t)

		out := newTestTransaction(from, models.TransactionTypeTransferOut, -600_000)
		require.NoError(t, repo.CreateTransaction(out))
		in := newTestTransaction(to, models.TransactionTypeTransferIn, 600_000)

		_, _, err := svc.CommitTransfer(ctx, out.ID, in)
		assert.ErrorIs(t, err, repositories.ErrInsufficientFunds)

		fromAfter, _ := repo.GetWallet(from.ID)
		toAfter, _ := repo.GetWallet(to.ID)
		assert.Equal(t, int64(500_000), fromAfter.Balance)
		assert.Equal(t, int64(0), toAfter.Balance)

		// The credit leg was never written.
		_, err = repo.GetTransaction(in.ID)
		assert.ErrorIs(t, err, repositories.ErrTransactionNotFound)
	})

	t.Run("credit leg must mirror the debit", func(t *testing.T) {
		svc, repo, from, to := setup(t)

		out := newTestTransaction(from, models.TransactionTypeTransferOut, 150_000)
		require.NoError(t, repo.CreateTransaction(out))
		in := newTestTransaction(to, models.TransactionTypeTransferIn, 150_000)

		_, _, err := svc.CommitTransfer(ctx, out.ID, in)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}
