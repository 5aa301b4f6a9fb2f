// Package engine orchestrates the life of a wallet transaction: validate,
// score, hold funds, drive the mobile-money gateway and settle the ledger.
package engine

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"

	"yawatu/internal/clock"
	"yawatu/internal/models"
	"yawatu/internal/repositories"
	"yawatu/internal/services/gateway"
	"yawatu/internal/services/ledger"
	"yawatu/internal/services/limits"
	"yawatu/internal/services/notification"
	"yawatu/internal/services/risk"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Service is the transaction orchestrator.
type Service interface {
	Deposit(ctx context.Context, req DepositRequest) (*models.Transaction, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*models.Transaction, error)
	Transfer(ctx context.Context, req TransferRequest) (*models.Transaction, error)

	// ConfirmStepUp verifies a one-time code and resumes a transaction the
	// risk policy paused for step-up verification.
	ConfirmStepUp(ctx context.Context, transactionID, code string) (*models.Transaction, error)

	// Approve and Reject are the interface exposed to the admin-approval
	// collaborator for transactions in pending_approval.
	Approve(ctx context.Context, transactionID string) (*models.Transaction, error)
	Reject(ctx context.Context, transactionID, reason string) (*models.Transaction, error)

	// Reconcile resolves a non-terminal gateway transaction via the status
	// poll. ReconcileStale sweeps everything old enough to need it.
	Reconcile(ctx context.Context, transactionID string) (*models.Transaction, error)
	ReconcileStale(ctx context.Context) (int, error)

	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error)
}

type service struct {
	repo     repositories.LedgerRepository
	ledger   ledger.Service
	limits   limits.Service
	risk     risk.Service
	gateway  gateway.Client
	cache    repositories.CacheRepository
	notifier notification.Dispatcher
	clock    clock.Clock
	cfg      Config
}

// NewService creates the orchestrator with injected dependencies.
func NewService(
	repo repositories.LedgerRepository,
	ledgerSvc ledger.Service,
	limitSvc limits.Service,
	riskSvc risk.Service,
	gatewayClient gateway.Client,
	cache repositories.CacheRepository,
	notifier notification.Dispatcher,
	clk clock.Clock,
	cfg Config,
) Service {
	if repo == nil {
		panic("repo is required")
	}
	if ledgerSvc == nil {
		panic("ledger service is required")
	}
	if limitSvc == nil {
		panic("limit service is required")
	}
	if riskSvc == nil {
		panic("risk service is required")
	}
	if gatewayClient == nil {
		panic("gateway client is required")
	}
	if cache == nil {
		panic("cache is required")
	}
	if notifier == nil {
		notifier = notification.NewLogDispatcher()
	}
	if clk == nil {
		clk = clock.System()
	}
	return &service{
		repo:     repo,
		ledger:   ledgerSvc,
		limits:   limitSvc,
		risk:     riskSvc,
		gateway:  gatewayClient,
		cache:    cache,
		notifier: notifier,
		clock:    clk,
		cfg:      cfg,
	}
}

func (s *service) Deposit(ctx context.Context, req DepositRequest) (*models.Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	msisdn, err := gateway.NormalizePhone(req.Phone, req.Currency)
	if err != nil {
		return nil, err
	}
	operator := gateway.ResolveOperator(req.Operator, msisdn, req.Currency)

	wallet, err := s.repo.GetWalletByUser(req.UserID, req.Currency)
	if err != nil {
		return nil, err
	}

	tx := s.newTransaction(wallet, models.TransactionTypeDeposit, req.Amount, 0, req.Description)
	tx.Metadata = models.NewJSON(map[string]interface{}{
		"msisdn":       msisdn,
		"operator":     operator,
		"account_type": req.AccountType,
	})
	if err := s.repo.CreateTransaction(tx); err != nil {
		return nil, err
	}

	return s.runPipeline(ctx, tx, req.AccountType, req.Amount)
}

func (s *service) Withdraw(ctx context.Context, req WithdrawRequest) (*models.Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	msisdn, err := gateway.NormalizePhone(req.Phone, req.Currency)
	if err != nil {
		return nil, err
	}
	operator := gateway.ResolveOperator(req.Operator, msisdn, req.Currency)

	wallet, err := s.repo.GetWalletByUser(req.UserID, req.Currency)
	if err != nil {
		return nil, err
	}

	fee := s.withdrawalFee(req.AccountType, req.Amount)
	tx := s.newTransaction(wallet, models.TransactionTypeWithdrawal, -(req.Amount + fee), fee, req.Description)
	tx.Metadata = models.NewJSON(map[string]interface{}{
		"msisdn":       msisdn,
		"operator":     operator,
		"account_type": req.AccountType,
	})
	if err := s.repo.CreateTransaction(tx); err != nil {
		return nil, err
	}

	return s.runPipeline(ctx, tx, req.AccountType, req.Amount)
}

func (s *service) Transfer(ctx context.Context, req TransferRequest) (*models.Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.FromUserID == req.ToUserID {
		return nil, ErrSelfTransfer
	}

	fromWallet, err := s.repo.GetWalletByUser(req.FromUserID, req.Currency)
	if err != nil {
		return nil, fmt.Errorf("source wallet: %w", err)
	}
	toWallet, err := s.repo.GetWalletByUser(req.ToUserID, req.Currency)
	if err != nil {
		return nil, fmt.Errorf("destination wallet: %w", err)
	}

	tx := s.newTransaction(fromWallet, models.TransactionTypeTransferOut, -req.Amount, 0, req.Description)
	tx.GatewayReference = ""
	tx.Metadata = models.NewJSON(map[string]interface{}{
		"account_type": req.AccountType,
		"to_user_id":   float64(toWallet.UserID),
		"to_wallet_id": float64(toWallet.ID),
	})
	if err := s.repo.CreateTransaction(tx); err != nil {
		return nil, err
	}

	return s.runPipeline(ctx, tx, req.AccountType, req.Amount)
}

// runPipeline takes a freshly created transaction through limit and risk
// checks and, when no friction applies, on to execution. The two checks are
// read-only and run in parallel.
func (s *service) runPipeline(ctx context.Context, tx *models.Transaction, accountType string, amount int64) (*models.Transaction, error) {
	now := s.clock.Now()

	var assessment risk.Assessment
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.limits.Check(gctx, tx.UserID, accountType, tx.Type, amount, now)
	})
	g.Go(func() error {
		assessment = s.risk.Assess(gctx, tx.UserID, amount, now)
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, limits.ErrLimitExceeded) {
			tx.Status = models.StatusRejectedLimit
			tx.Description = appendReason(tx.Description, err.Error())
			if uerr := s.repo.UpdateTransaction(tx); uerr != nil {
				return nil, uerr
			}
			return tx, err
		}
		// Internal failure: the row stays in created for later inspection.
		return tx, err
	}

	tx.RiskScore = assessment.Score
	tx.RiskLevel = assessment.Level
	setMeta(tx, "risk_signals", assessment.Signals)
	setMeta(tx, "requires_step_up", assessment.RequiresStepUp)
	setMeta(tx, "requires_manual_approval", assessment.RequiresApproval)

	if assessment.Blocked {
		tx.Status = models.StatusBlocked
		if err := s.repo.UpdateTransaction(tx); err != nil {
			return nil, err
		}
		return tx, ErrRiskBlocked
	}

	tx.Status = models.StatusScored

	if assessment.RequiresApproval {
		tx.Status = models.StatusPendingApproval
		tx.ApprovalStatus = models.ApprovalPending
		if err := s.repo.UpdateTransaction(tx); err != nil {
			return nil, err
		}
		s.emit(tx.UserID, notification.EventApprovalRequired, map[string]interface{}{
			"transaction_id": tx.ID,
			"amount":         tx.Amount,
		})
		return tx, nil
	}

	if assessment.RequiresStepUp {
		setMeta(tx, "step_up_pending", true)
		if err := s.repo.UpdateTransaction(tx); err != nil {
			return nil, err
		}
		code, err := s.issueStepUpCode(ctx, tx.ID)
		if err != nil {
			return nil, err
		}
		s.emit(tx.UserID, notification.EventStepUpRequired, map[string]interface{}{
			"transaction_id": tx.ID,
			"code":           code,
		})
		return tx, nil
	}

	if err := s.repo.UpdateTransaction(tx); err != nil {
		return nil, err
	}
	return s.execute(ctx, tx)
}

// execute performs the money movement for a transaction that has cleared all
// friction: internal transfers commit directly, gateway types are dispatched.
func (s *service) execute(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if tx.Type == models.TransactionTypeTransferOut {
		return s.commitTransfer(ctx, tx)
	}
	return s.dispatch(ctx, tx)
}

func (s *service) commitTransfer(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	toUserID := uint(metaFloat(tx, "to_user_id"))
	toWalletID := uint(metaFloat(tx, "to_wallet_id"))
	if toUserID == 0 || toWalletID == 0 {
		return tx, fmt.Errorf("%w: transfer missing destination", ErrInvalidState)
	}

	in := &models.Transaction{
		ID:          uuid.NewString(),
		WalletID:    toWalletID,
		UserID:      toUserID,
		Type:        models.TransactionTypeTransferIn,
		Amount:      -tx.Amount,
		Currency:    tx.Currency,
		Description: tx.Description,
		Metadata:    models.NewJSON(map[string]interface{}{"counterpart": tx.ID}),
	}

	out, in, err := s.ledger.CommitTransfer(ctx, tx.ID, in)
	if err != nil {
		if errors.Is(err, repositories.ErrInsufficientFunds) || errors.Is(err, repositories.ErrWalletSuspended) {
			if _, ferr := s.ledger.Finalize(ctx, tx.ID, ledger.OutcomeFailed); ferr != nil {
				log.Printf("engine: failed to fail transfer %s: %v", tx.ID, ferr)
			}
		}
		return tx, err
	}

	s.emit(out.UserID, notification.EventTransactionCompleted, completedPayload(out))
	s.emit(in.UserID, notification.EventTransactionCompleted, completedPayload(in))
	return out, nil
}

// dispatch reserves funds and drives the gateway call for deposits and
// withdrawals.
func (s *service) dispatch(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	// A reference may be used once, ever. Reject duplicates locally before
	// any network traffic.
	if existing, err := s.repo.GetTransactionByReference(tx.UserID, tx.GatewayReference); err == nil && existing.ID != tx.ID {
		return tx, ErrDuplicateReference
	}
	ok, err := s.cache.SetNX(ctx, referenceKey(tx.UserID, tx.GatewayReference), tx.ID, s.cfg.ReferenceTTL)
	if err == nil && !ok {
		if owner, gerr := s.cache.Get(ctx, referenceKey(tx.UserID, tx.GatewayReference)); gerr != nil || owner != tx.ID {
			return tx, ErrDuplicateReference
		}
	}

	tx, err = s.ledger.Reserve(ctx, tx.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrInsufficientFunds) || errors.Is(err, repositories.ErrWalletSuspended) {
			failed, ferr := s.ledger.Finalize(ctx, tx.ID, ledger.OutcomeFailed)
			if ferr != nil {
				return tx, ferr
			}
			return failed, err
		}
		return tx, err
	}

	amount, err := gateway.MajorAmount(principalMinor(tx), tx.Currency)
	if err != nil {
		return tx, err
	}
	greq := gateway.Request{
		Reference:   tx.GatewayReference,
		MSISDN:      metaString(tx, "msisdn"),
		Currency:    tx.Currency,
		Amount:      amount,
		Description: tx.Description,
		Operator:    metaString(tx, "operator"),
	}

	var resp *gateway.Response
	if tx.Debit() {
		resp, err = s.gateway.SendPayment(ctx, greq)
	} else {
		resp, err = s.gateway.RequestPayment(ctx, greq)
	}

	switch {
	case err == nil && resp.Success:
		tx.Status = models.StatusGatewayAccepted
		tx.GatewayID = resp.InternalReference
		if uerr := s.repo.UpdateTransaction(tx); uerr != nil {
			return tx, uerr
		}
		return tx, nil

	case err == nil:
		return s.failDispatch(ctx, tx, models.StatusGatewayRejected,
			fmt.Errorf("%w: %s", ErrGatewayRejected, resp.Message))

	case errors.Is(err, gateway.ErrInvalidRequest):
		return s.failDispatch(ctx, tx, models.StatusGatewayRejected, err)

	case errors.Is(err, gateway.ErrUnauthorized):
		// The gateway never accepted the instruction, so releasing the hold
		// is safe. The caller sees a generic service error.
		if _, ferr := s.ledger.Finalize(ctx, tx.ID, ledger.OutcomeFailed); ferr != nil {
			return tx, ferr
		}
		log.Printf("engine: gateway authorization failure on %s: %v", tx.ID, err)
		return tx, ErrGatewayConfig

	default:
		// Timeout or 5xx: the payment may have gone through. Keep the hold,
		// stay pending_gateway and let reconciliation resolve it.
		log.Printf("engine: gateway ambiguous on %s, awaiting reconciliation: %v", tx.ID, err)
		return tx, nil
	}
}

func (s *service) failDispatch(ctx context.Context, tx *models.Transaction, status string, cause error) (*models.Transaction, error) {
	tx.Status = status
	tx.Description = appendReason(tx.Description, cause.Error())
	if err := s.repo.UpdateTransaction(tx); err != nil {
		return tx, err
	}
	failed, err := s.ledger.Finalize(ctx, tx.ID, ledger.OutcomeFailed)
	if err != nil {
		return tx, err
	}
	s.emit(failed.UserID, notification.EventTransactionFailed, failedPayload(failed))
	return failed, cause
}

func (s *service) ConfirmStepUp(ctx context.Context, transactionID, code string) (*models.Transaction, error) {
	tx, err := s.repo.GetTransaction(transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.StatusScored || !metaBool(tx, "step_up_pending") {
		return tx, fmt.Errorf("%w: %s is %s", ErrInvalidState, tx.ID, tx.Status)
	}

	stored, err := s.cache.Get(ctx, stepUpKey(tx.ID))
	if err != nil {
		return tx, ErrStepUpExpired
	}
	if stored != code {
		return tx, ErrInvalidStepUpCode
	}
	if err := s.cache.Delete(ctx, stepUpKey(tx.ID)); err != nil {
		log.Printf("engine: failed to clear step-up code for %s: %v", tx.ID, err)
	}

	setMeta(tx, "step_up_pending", false)
	if err := s.repo.UpdateTransaction(tx); err != nil {
		return tx, err
	}
	return s.execute(ctx, tx)
}

func (s *service) Approve(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.repo.GetTransaction(transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.StatusPendingApproval {
		return tx, fmt.Errorf("%w: %s is %s", ErrInvalidState, tx.ID, tx.Status)
	}

	tx.ApprovalStatus = models.ApprovalApproved
	tx.Status = models.StatusScored
	if err := s.repo.UpdateTransaction(tx); err != nil {
		return tx, err
	}
	return s.execute(ctx, tx)
}

func (s *service) Reject(ctx context.Context, transactionID, reason string) (*models.Transaction, error) {
	tx, err := s.repo.GetTransaction(transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.StatusPendingApproval {
		return tx, fmt.Errorf("%w: %s is %s", ErrInvalidState, tx.ID, tx.Status)
	}

	tx.ApprovalStatus = models.ApprovalRejected
	tx.Description = appendReason(tx.Description, reason)
	if err := s.repo.UpdateTransaction(tx); err != nil {
		return tx, err
	}
	failed, err := s.ledger.Finalize(ctx, tx.ID, ledger.OutcomeFailed)
	if err != nil {
		return tx, err
	}
	s.emit(failed.UserID, notification.EventTransactionFailed, failedPayload(failed))
	return failed, nil
}

func (s *service) Reconcile(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.repo.GetTransaction(transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Terminal() {
		return tx, nil
	}
	if tx.Status != models.StatusPendingGateway && tx.Status != models.StatusGatewayAccepted {
		return tx, fmt.Errorf("%w: %s is %s", ErrInvalidState, tx.ID, tx.Status)
	}

	// When the accept response never arrived we have no internal reference;
	// fall back to our own reference so the poll can still find the payment.
	ref := tx.GatewayID
	if ref == "" {
		ref = tx.GatewayReference
	}

	status, err := s.gateway.CheckStatus(ctx, ref)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidRequest) && tx.GatewayID == "" {
			// The gateway has never seen this payment; it was lost before
			// acceptance and is safe to fail.
			return s.settle(ctx, tx, ledger.OutcomeFailed)
		}
		return tx, err
	}

	switch status.Status {
	case gateway.SettlementSuccessful:
		return s.settle(ctx, tx, ledger.OutcomeCompleted)
	case gateway.SettlementFailed:
		return s.settle(ctx, tx, ledger.OutcomeFailed)
	default:
		return tx, nil
	}
}

func (s *service) settle(ctx context.Context, tx *models.Transaction, outcome string) (*models.Transaction, error) {
	settled, err := s.ledger.Finalize(ctx, tx.ID, outcome)
	if err != nil {
		return tx, err
	}
	if outcome == ledger.OutcomeCompleted {
		s.emit(settled.UserID, notification.EventTransactionCompleted, completedPayload(settled))
	} else {
		s.emit(settled.UserID, notification.EventTransactionFailed, failedPayload(settled))
	}
	return settled, nil
}

// ReconcileStale sweeps non-terminal gateway transactions old enough to need
// resolution and fails undispatched ones past the give-up cutoff.
func (s *service) ReconcileStale(ctx context.Context) (int, error) {
	now := s.clock.Now()
	stale, err := s.repo.ListByStatus(
		[]string{models.StatusPendingGateway, models.StatusGatewayAccepted},
		now.Add(-s.cfg.ReconcileAfter),
		100,
	)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range stale {
		tx := &stale[i]
		settled, err := s.Reconcile(ctx, tx.ID)
		if err != nil {
			log.Printf("engine: reconcile %s: %v", tx.ID, err)
			continue
		}
		if settled.Terminal() {
			resolved++
			continue
		}
		if settled.GatewayID == "" && now.Sub(settled.CreatedAt) > s.cfg.GiveUpAfter {
			if _, err := s.settle(ctx, settled, ledger.OutcomeFailed); err != nil {
				log.Printf("engine: give up %s: %v", tx.ID, err)
				continue
			}
			resolved++
		}
	}
	return resolved, nil
}

func (s *service) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return s.repo.GetTransaction(id)
}

func (s *service) ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error) {
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}

// Helpers

func (s *service) newTransaction(wallet *models.Wallet, txType string, amount, fee int64, description string) *models.Transaction {
	return &models.Transaction{
		ID:               uuid.NewString(),
		WalletID:         wallet.ID,
		UserID:           wallet.UserID,
		Type:             txType,
		Amount:           amount,
		Currency:         wallet.Currency,
		Status:           models.StatusCreated,
		ApprovalStatus:   models.ApprovalAuto,
		Fee:              fee,
		GatewayReference: gateway.NewReference(),
		Description:      description,
		CreatedAt:        s.clock.Now(),
	}
}

func (s *service) withdrawalFee(accountType string, amount int64) int64 {
	pct, ok := s.cfg.WithdrawalFeePercent[accountType]
	if !ok {
		pct = s.cfg.WithdrawalFeePercent["individual"]
	}
	return int64(float64(amount) * pct)
}

func (s *service) issueStepUpCode(ctx context.Context, transactionID string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())
	if err := s.cache.Set(ctx, stepUpKey(transactionID), code, s.cfg.StepUpCodeTTL); err != nil {
		return "", err
	}
	return code, nil
}

func (s *service) emit(userID uint, event string, payload map[string]interface{}) {
	go s.notifier.Notify(context.Background(), userID, event, payload)
}

// principalMinor is the user-facing amount that crosses the gateway: the
// signed ledger delta with the fee component stripped.
func principalMinor(tx *models.Transaction) int64 {
	if tx.Debit() {
		return -tx.Amount - tx.Fee
	}
	return tx.Amount + tx.Fee
}

func referenceKey(userID uint, reference string) string {
	return fmt.Sprintf("gwref:%d:%s", userID, reference)
}

func stepUpKey(transactionID string) string {
	return "stepup:" + transactionID
}

func setMeta(tx *models.Transaction, key string, value interface{}) {
	if tx.Metadata == nil {
		tx.Metadata = models.NewJSON(map[string]interface{}{})
	}
	tx.Metadata[key] = value
}

func metaString(tx *models.Transaction, key string) string {
	if tx.Metadata == nil {
		return ""
	}
	v, _ := tx.Metadata[key].(string)
	return v
}

func metaBool(tx *models.Transaction, key string) bool {
	if tx.Metadata == nil {
		return false
	}
	v, _ := tx.Metadata[key].(bool)
	return v
}

func metaFloat(tx *models.Transaction, key string) float64 {
	if tx.Metadata == nil {
		return 0
	}
	v, _ := tx.Metadata[key].(float64)
	return v
}

func appendReason(description, reason string) string {
	if description == "" {
		return reason
	}
	return description + " (" + reason + ")"
}

func completedPayload(tx *models.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"transaction_id": tx.ID,
		"type":           tx.Type,
		"amount":         tx.Amount,
		"currency":       tx.Currency,
	}
}

func failedPayload(tx *models.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"transaction_id": tx.ID,
		"type":           tx.Type,
		"amount":         tx.Amount,
		"currency":       tx.Currency,
		"reason":         tx.Description,
	}
}
