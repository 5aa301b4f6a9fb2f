package engine

import (
	"time"

	"yawatu/internal/config"
)

// DepositRequest asks the gateway to pull funds from a subscriber's
// mobile-money account into their wallet. Amount is in minor units.
type DepositRequest struct {
	UserID      uint
	AccountType string
	Currency    string
	Amount      int64
	Phone       string
	Operator    string
	Description string
}

// WithdrawRequest pushes funds from a wallet out to a subscriber's
// mobile-money account. The wallet is debited Amount plus the withdrawal fee.
type WithdrawRequest struct {
	UserID      uint
	AccountType string
	Currency    string
	Amount      int64
	Phone       string
	Operator    string
	Description string
}

// TransferRequest moves funds between two wallets internally, without the
// gateway. Limits and risk apply to the debit leg.
type TransferRequest struct {
	FromUserID  uint
	ToUserID    uint
	AccountType string
	Currency    string
	Amount      int64
	Description string
}

// Config holds orchestrator tunables.
type Config struct {
	// WithdrawalFeePercent by account type.
	WithdrawalFeePercent map[string]float64

	// StepUpCodeTTL bounds how long a one-time code stays valid.
	StepUpCodeTTL time.Duration

	// ReferenceTTL bounds the reference-reservation keys in the cache.
	ReferenceTTL time.Duration

	// ReconcileAfter is the minimum age before the background poller picks
	// up a non-terminal gateway transaction.
	ReconcileAfter time.Duration

	// GiveUpAfter is how long an undispatched transaction may sit without
	// any gateway acknowledgement before it is failed and released.
	GiveUpAfter time.Duration
}

// DefaultConfig returns the stock orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		WithdrawalFeePercent: map[string]float64{
			"individual": 0.01,
			"business":   0.0075,
		},
		StepUpCodeTTL:  10 * time.Minute,
		ReferenceTTL:   48 * time.Hour,
		ReconcileAfter: 2 * time.Minute,
		GiveUpAfter:    24 * time.Hour,
	}
}

// ConfigFromEnv overlays the stock configuration with environment overrides.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.StepUpCodeTTL = config.GetDurationEnv("STEP_UP_CODE_TTL", cfg.StepUpCodeTTL)
	cfg.ReferenceTTL = config.GetDurationEnv("REFERENCE_TTL", cfg.ReferenceTTL)
	cfg.ReconcileAfter = config.GetDurationEnv("RECONCILE_AFTER", cfg.ReconcileAfter)
	cfg.GiveUpAfter = config.GetDurationEnv("RECONCILE_GIVE_UP_AFTER", cfg.GiveUpAfter)
	return cfg
}
