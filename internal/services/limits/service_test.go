package limits

import (
	"context"
	"testing"
	"time"

	"yawatu/internal/models"
	"yawatu/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindows struct {
	dayStart time.Time
	daily    int64
	monthly  int64
	calls    int
}

func (f *fakeWindows) SumCompletedInWindow(ctx context.Context, userID uint, txType string, start, end time.Time) (int64, error) {
	f.calls++
	if start.Equal(f.dayStart) {
		return f.daily, nil
	}
	return f.monthly, nil
}

func testProfiles() map[string]*models.LimitProfile {
	return map[string]*models.LimitProfile{
		AccountTypeIndividual: {
			AccountType: AccountTypeIndividual,
			Ceilings: map[string]models.LimitCeiling{
				models.TransactionTypeWithdrawal: {
					MaxSingle:  2_000_000,
					MaxDaily:   5_000_000,
					MaxMonthly: 50_000_000,
				},
			},
		},
	}
}

func TestLimitService_Check(t *testing.T) {
	// 2025-03-10 14:00 UTC; the daily window starts at midnight UTC.
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	dayStart := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		amount     int64
		daily      int64
		monthly    int64
		wantWindow string
	}{
		{
			name:   "well within all ceilings",
			amount: 100_000,
		},
		{
			name:       "single cap exceeded",
			amount:     2_000_001,
			wantWindow: WindowSingle,
		},
		{
			name:   "exactly at the single cap",
			amount: 2_000_000,
		},
		{
			name:   "exactly fills the daily ceiling",
			amount: 1_000_000,
			daily:  4_000_000,
		},
		{
			name:       "one over the daily ceiling",
			amount:     1_000_001,
			daily:      4_000_000,
			wantWindow: WindowDaily,
		},
		{
			name:       "monthly ceiling exceeded",
			amount:     1_000_000,
			daily:      0,
			monthly:    49_500_000,
			wantWindow: WindowMonthly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows := &fakeWindows{dayStart: dayStart, daily: tt.daily, monthly: tt.monthly}
			svc := NewService(windows, NewStaticSource(testProfiles()), time.UTC)

			err := svc.Check(context.Background(), 1, AccountTypeIndividual, models.TransactionTypeWithdrawal, tt.amount, now)

			if tt.wantWindow == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrLimitExceeded)
			var limitErr *LimitError
			require.ErrorAs(t, err, &limitErr)
			assert.Equal(t, tt.wantWindow, limitErr.Window)
		})
	}
}

func TestLimitService_SingleCapSkipsHistory(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	windows := &fakeWindows{}
	svc := NewService(windows, NewStaticSource(testProfiles()), time.UTC)

	err := svc.Check(context.Background(), 1, AccountTypeIndividual, models.TransactionTypeWithdrawal, 3_000_000, now)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.Zero(t, windows.calls, "single-cap rejection must not query history")
}

func TestLimitService_UnknownProfile(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	svc := NewService(&fakeWindows{}, NewStaticSource(testProfiles()), time.UTC)

	err := svc.Check(context.Background(), 1, "enterprise", models.TransactionTypeWithdrawal, 1_000, now)
	assert.ErrorIs(t, err, ErrNoProfile)

	err = svc.Check(context.Background(), 1, AccountTypeIndividual, models.TransactionTypeExchange, 1_000, now)
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestLimitService_BusinessTimezoneWindows(t *testing.T) {
	kampala, err := time.LoadLocation("Africa/Kampala")
	require.NoError(t, err)

	// 23:30 UTC on March 10 is already March 11 in Kampala (UTC+3), so the
	// daily window must start at Kampala midnight, not UTC midnight.
	now := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	wantDayStart := time.Date(2025, 3, 11, 0, 0, 0, 0, kampala)

	var gotStart time.Time
	windows := &fakeWindows{dayStart: wantDayStart}
	svc := NewService(&recordingWindows{inner: windows, firstStart: &gotStart}, NewStaticSource(testProfiles()), kampala)

	err = svc.Check(context.Background(), 1, AccountTypeIndividual, models.TransactionTypeWithdrawal, 1_000, now)
	require.NoError(t, err)
	assert.True(t, gotStart.Equal(wantDayStart), "daily window start %v, want %v", gotStart, wantDayStart)
}

type recordingWindows struct {
	inner      WindowReader
	firstStart *time.Time
}

func (r *recordingWindows) SumCompletedInWindow(ctx context.Context, userID uint, txType string, start, end time.Time) (int64, error) {
	if r.firstStart.IsZero() {
		*r.firstStart = start
	}
	return r.inner.SumCompletedInWindow(ctx, userID, txType, start, end)
}

func TestCachedSource(t *testing.T) {
	t.Run("falls through and caches", func(t *testing.T) {
		cache := newFakeCache()
		src := NewCachedSource(NewStaticSource(testProfiles()), cache)

		p, err := src.GetLimitProfile(context.Background(), 1, AccountTypeIndividual)
		require.NoError(t, err)
		assert.Equal(t, AccountTypeIndividual, p.AccountType)

		// Second call is served from the cache.
		p2, err := src.GetLimitProfile(context.Background(), 1, AccountTypeIndividual)
		require.NoError(t, err)
		assert.Equal(t, p.AccountType, p2.AccountType)
		assert.Equal(t, 1, cache.sets)
	})

	t.Run("unknown account type propagates", func(t *testing.T) {
		src := NewCachedSource(NewStaticSource(testProfiles()), newFakeCache())
		_, err := src.GetLimitProfile(context.Background(), 1, "enterprise")
		assert.ErrorIs(t, err, ErrNoProfile)
	})
}

// fakeCache counts writes on top of a plain map store.
type fakeCache struct {
	entries map[string]string
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.entries[key]
	if !ok {
		return "", repositories.ErrCacheMiss
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	c.sets++
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func (c *fakeCache) SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error) {
	if _, ok := c.entries[key]; ok {
		return false, nil
	}
	c.entries[key] = value
	return true, nil
}

func (c *fakeCache) Close() error { return nil }
