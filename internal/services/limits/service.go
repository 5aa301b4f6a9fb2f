// Package limits decides whether a candidate transaction fits within the
// per-transaction, daily and monthly caps before any funds move.
package limits

import (
	"context"
	"fmt"
	"time"

	"yawatu/internal/models"
)

// WindowReader aggregates completed transactions over a time window.
type WindowReader interface {
	SumCompletedInWindow(ctx context.Context, userID uint, txType string, start, end time.Time) (int64, error)
}

// ProfileSource looks up the per-account-type ceilings. It is owned by the
// profile collaborator; this engine only reads it.
type ProfileSource interface {
	GetLimitProfile(ctx context.Context, userID uint, accountType string) (*models.LimitProfile, error)
}

// Service checks candidate transactions against policy.
type Service interface {
	Check(ctx context.Context, userID uint, accountType, txType string, amount int64, now time.Time) error
}

type service struct {
	windows  WindowReader
	profiles ProfileSource
	loc      *time.Location
}

// NewService creates the limit evaluator. Calendar boundaries for the daily
// and monthly windows are computed in loc, the operator's business timezone.
func NewService(windows WindowReader, profiles ProfileSource, loc *time.Location) Service {
	if windows == nil {
		panic("window reader is required")
	}
	if profiles == nil {
		panic("profile source is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &service{windows: windows, profiles: profiles, loc: loc}
}

// Check runs the three ceilings cheapest-first: the static single-transaction
// cap disqualifies without touching history, then the daily and monthly
// window sums. Only completed transactions count toward the windows.
func (s *service) Check(ctx context.Context, userID uint, accountType, txType string, amount int64, now time.Time) error {
	profile, err := s.profiles.GetLimitProfile(ctx, userID, accountType)
	if err != nil {
		return fmt.Errorf("failed to load limit profile: %w", err)
	}
	ceiling, ok := profile.CeilingFor(txType)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNoProfile, accountType, txType)
	}

	if amount > ceiling.MaxSingle {
		return &LimitError{Window: WindowSingle, Limit: ceiling.MaxSingle}
	}

	local := now.In(s.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)

	dailyTotal, err := s.windows.SumCompletedInWindow(ctx, userID, txType, dayStart, now)
	if err != nil {
		return fmt.Errorf("failed to compute daily total: %w", err)
	}
	if dailyTotal+amount > ceiling.MaxDaily {
		return &LimitError{Window: WindowDaily, Limit: ceiling.MaxDaily}
	}

	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.loc)
	monthlyTotal, err := s.windows.SumCompletedInWindow(ctx, userID, txType, monthStart, now)
	if err != nil {
		return fmt.Errorf("failed to compute monthly total: %w", err)
	}
	if monthlyTotal+amount > ceiling.MaxMonthly {
		return &LimitError{Window: WindowMonthly, Limit: ceiling.MaxMonthly}
	}

	return nil
}
