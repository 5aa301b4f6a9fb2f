// Package risk derives a deterministic, explainable 0-100 fraud score from a
// small set of signals and maps it to an authentication/approval decision.
// The scorer decides friction; it never moves money.
package risk

import (
	"context"
	"log"
	"time"

	"yawatu/internal/models"
)

// ActivityReader counts a user's recent transaction attempts.
type ActivityReader interface {
	CountByUserSince(ctx context.Context, userID uint, since time.Time) (int64, error)
}

// Service scores transaction attempts.
type Service interface {
	Assess(ctx context.Context, userID uint, amount int64, now time.Time) Assessment
}

type service struct {
	activity ActivityReader
	cfg      Config
	loc      *time.Location
}

// NewService creates the risk scorer. Off-hours are evaluated in loc.
func NewService(activity ActivityReader, cfg Config, loc *time.Location) Service {
	if activity == nil {
		panic("activity reader is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &service{activity: activity, cfg: cfg, loc: loc}
}

// Assess accumulates points from independent signals and applies the policy
// thresholds. When the velocity query fails the scorer degrades to a
// conservative medium-risk, step-up-required default instead of approving.
func (s *service) Assess(ctx context.Context, userID uint, amount int64, now time.Time) Assessment {
	if amount < 0 {
		amount = -amount
	}

	count, err := s.activity.CountByUserSince(ctx, userID, now.Add(-s.cfg.VelocityWindow))
	if err != nil {
		log.Printf("risk: velocity query failed for user %d, degrading: %v", userID, err)
		return Assessment{
			Score:          s.cfg.StepUpThreshold,
			Level:          models.RiskLevelMedium,
			RequiresStepUp: true,
			Signals:        []string{SignalDegraded},
		}
	}

	var score int
	var signals []string

	if count > s.cfg.VelocityMax {
		score += s.cfg.VelocityPoints
		signals = append(signals, SignalVelocity)
	}
	if amount > s.cfg.LargeAmount {
		score += s.cfg.MagnitudePoints
		signals = append(signals, SignalMagnitude)
	}
	if s.cfg.RoundUnit > 0 && amount > s.cfg.RoundFloor && amount%s.cfg.RoundUnit == 0 {
		score += s.cfg.RoundPoints
		signals = append(signals, SignalRoundNumber)
	}
	hour := now.In(s.loc).Hour()
	if hour >= s.cfg.OffHoursStart || hour < s.cfg.OffHoursEnd {
		score += s.cfg.OffHoursPoints
		signals = append(signals, SignalOffHours)
	}

	if score > 100 {
		score = 100
	}

	a := Assessment{Score: score, Signals: signals, Level: models.RiskLevelLow}
	if score >= s.cfg.StepUpThreshold {
		a.Level = models.RiskLevelMedium
	}
	if score >= s.cfg.ApprovalThreshold {
		a.Level = models.RiskLevelHigh
	}

	if score >= s.cfg.BlockThreshold {
		a.Blocked = true
	}
	if score >= s.cfg.ApprovalThreshold || amount >= s.cfg.LargeAmount {
		a.RequiresApproval = true
	}
	if score >= s.cfg.StepUpThreshold || amount >= s.cfg.MediumAmount {
		a.RequiresStepUp = true
	}

	return a
}
