package risk

import (
	"time"

	"yawatu/internal/config"
)

// Signal names recorded on an assessment.
const (
	SignalVelocity    = "velocity"
	SignalMagnitude   = "magnitude"
	SignalRoundNumber = "round_number"
	SignalOffHours    = "off_hours"
	SignalDegraded    = "scoring_degraded"
)

// Assessment is the outcome of scoring one transaction attempt. It is
// computed fresh per attempt and folded into the transaction's risk
// metadata, never persisted on its own or reused.
type Assessment struct {
	Score            int
	Level            string
	RequiresStepUp   bool
	RequiresApproval bool
	Blocked          bool
	Signals          []string
}

// Config holds the scoring points and policy thresholds. Amounts are in
// minor units.
type Config struct {
	VelocityWindow time.Duration
	VelocityMax    int64
	VelocityPoints int

	LargeAmount     int64
	MagnitudePoints int

	RoundUnit   int64
	RoundFloor  int64
	RoundPoints int

	OffHoursStart  int
	OffHoursEnd    int
	OffHoursPoints int

	StepUpThreshold   int
	ApprovalThreshold int
	BlockThreshold    int
	MediumAmount      int64
}

// DefaultConfig returns the stock scoring configuration.
func DefaultConfig() Config {
	return Config{
		VelocityWindow: 24 * time.Hour,
		VelocityMax:    5,
		VelocityPoints: 20,

		LargeAmount:     2_000_000,
		MagnitudePoints: 15,

		RoundUnit:   100_000,
		RoundFloor:  500_000,
		RoundPoints: 10,

		OffHoursStart:  22,
		OffHoursEnd:    6,
		OffHoursPoints: 5,

		StepUpThreshold:   15,
		ApprovalThreshold: 30,
		BlockThreshold:    45,
		MediumAmount:      500_000,
	}
}

// ConfigFromEnv overlays the stock configuration with environment overrides.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.VelocityWindow = config.GetDurationEnv("RISK_VELOCITY_WINDOW", cfg.VelocityWindow)
	cfg.VelocityMax = config.GetInt64Env("RISK_VELOCITY_MAX", cfg.VelocityMax)
	cfg.LargeAmount = config.GetInt64Env("RISK_LARGE_AMOUNT", cfg.LargeAmount)
	cfg.MediumAmount = config.GetInt64Env("RISK_MEDIUM_AMOUNT", cfg.MediumAmount)
	cfg.StepUpThreshold = config.GetIntEnv("RISK_STEP_UP_THRESHOLD", cfg.StepUpThreshold)
	cfg.ApprovalThreshold = config.GetIntEnv("RISK_APPROVAL_THRESHOLD", cfg.ApprovalThreshold)
	cfg.BlockThreshold = config.GetIntEnv("RISK_BLOCK_THRESHOLD", cfg.BlockThreshold)
	return cfg
}
