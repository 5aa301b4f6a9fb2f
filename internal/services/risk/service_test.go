package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"yawatu/internal/models"

	"github.com/stretchr/testify/assert"
)

type fakeActivity struct {
	count int64
	err   error
}

func (f *fakeActivity) CountByUserSince(ctx context.Context, userID uint, since time.Time) (int64, error) {
	return f.count, f.err
}

// daytime is a weekday afternoon, outside the off-hours band.
var daytime = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func TestRiskService_Assess(t *testing.T) {
	tests := []struct {
		name        string
		amount      int64
		count       int64
		now         time.Time
		wantScore   int
		wantLevel   string
		wantSignals []string
	}{
		{
			name:      "small quiet daytime transaction",
			amount:    50_000,
			now:       daytime,
			wantScore: 0,
			wantLevel: models.RiskLevelLow,
		},
		{
			name:        "velocity alone",
			amount:      50_000,
			count:       6,
			now:         daytime,
			wantScore:   20,
			wantLevel:   models.RiskLevelMedium,
			wantSignals: []string{SignalVelocity},
		},
		{
			name:        "large amount",
			amount:      2_000_001,
			now:         daytime,
			wantScore:   15,
			wantLevel:   models.RiskLevelMedium,
			wantSignals: []string{SignalMagnitude},
		},
		{
			name:        "round amount above the floor",
			amount:      600_000,
			now:         daytime,
			wantScore:   10,
			wantLevel:   models.RiskLevelLow,
			wantSignals: []string{SignalRoundNumber},
		},
		{
			name:      "round amount at the floor does not trigger",
			amount:    500_000,
			now:       daytime,
			wantScore: 0,
			wantLevel: models.RiskLevelLow,
		},
		{
			name:        "off hours",
			amount:      50_000,
			now:         time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC),
			wantScore:   5,
			wantLevel:   models.RiskLevelLow,
			wantSignals: []string{SignalOffHours},
		},
		{
			name:        "early morning counts as off hours",
			amount:      50_000,
			now:         time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC),
			wantScore:   5,
			wantLevel:   models.RiskLevelLow,
			wantSignals: []string{SignalOffHours},
		},
		{
			name:        "all signals stack",
			amount:      3_000_000,
			count:       6,
			now:         time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC),
			wantScore:   50,
			wantLevel:   models.RiskLevelHigh,
			wantSignals: []string{SignalVelocity, SignalMagnitude, SignalRoundNumber, SignalOffHours},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeActivity{count: tt.count}, DefaultConfig(), time.UTC)
			a := svc.Assess(context.Background(), 1, tt.amount, tt.now)

			assert.Equal(t, tt.wantScore, a.Score)
			assert.Equal(t, tt.wantLevel, a.Level)
			assert.ElementsMatch(t, tt.wantSignals, a.Signals)
		})
	}
}

func TestRiskService_PolicyFlags(t *testing.T) {
	t.Run("blocked at the block threshold", func(t *testing.T) {
		svc := NewService(&fakeActivity{count: 6}, DefaultConfig(), time.UTC)
		// velocity 20 + magnitude 15 + round 10 = 45
		a := svc.Assess(context.Background(), 1, 3_000_000, daytime)
		assert.True(t, a.Blocked)
		assert.True(t, a.RequiresApproval)
		assert.True(t, a.RequiresStepUp)
	})

	t.Run("medium amount forces step-up regardless of score", func(t *testing.T) {
		svc := NewService(&fakeActivity{}, DefaultConfig(), time.UTC)
		a := svc.Assess(context.Background(), 1, 550_001, daytime)
		assert.Zero(t, a.Score)
		assert.True(t, a.RequiresStepUp)
		assert.False(t, a.RequiresApproval)
		assert.False(t, a.Blocked)
	})

	t.Run("large amount forces approval regardless of score", func(t *testing.T) {
		svc := NewService(&fakeActivity{}, DefaultConfig(), time.UTC)
		a := svc.Assess(context.Background(), 1, 2_000_001, daytime)
		assert.True(t, a.RequiresApproval)
		assert.False(t, a.Blocked)
	})

	t.Run("debit sign does not change the score", func(t *testing.T) {
		svc := NewService(&fakeActivity{}, DefaultConfig(), time.UTC)
		pos := svc.Assess(context.Background(), 1, 600_000, daytime)
		neg := svc.Assess(context.Background(), 1, -600_000, daytime)
		assert.Equal(t, pos.Score, neg.Score)
	})
}

func TestRiskService_MoreSignalsNeverLowerTheScore(t *testing.T) {
	svc := NewService(&fakeActivity{}, DefaultConfig(), time.UTC)
	busy := NewService(&fakeActivity{count: 10}, DefaultConfig(), time.UTC)

	for _, amount := range []int64{10_000, 600_000, 2_500_000} {
		quiet := svc.Assess(context.Background(), 1, amount, daytime)
		loud := busy.Assess(context.Background(), 1, amount, daytime)
		assert.GreaterOrEqual(t, loud.Score, quiet.Score, "amount %d", amount)
	}
}

func TestRiskService_DegradedScoring(t *testing.T) {
	svc := NewService(&fakeActivity{err: errors.New("db down")}, DefaultConfig(), time.UTC)

	a := svc.Assess(context.Background(), 1, 10_000, daytime)

	// Fail safe, not open: unknown history means step-up, never approval-free.
	assert.Equal(t, models.RiskLevelMedium, a.Level)
	assert.True(t, a.RequiresStepUp)
	assert.False(t, a.Blocked)
	assert.Contains(t, a.Signals, SignalDegraded)
}
