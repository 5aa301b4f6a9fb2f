package limits

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"yawatu/internal/models"
	"yawatu/internal/repositories"
)

// Account types known to the engine.
const (
	AccountTypeIndividual = "individual"
	AccountTypeBusiness   = "business"
)

const (
	profileCachePrefix = "limit_profile:"
	profileCacheTTL    = 10 * time.Minute
)

// StaticSource serves limit profiles from a fixed table. It stands in for
// the external profile collaborator in deployments that have not wired one.
type StaticSource struct {
	profiles map[string]*models.LimitProfile
}

// NewStaticSource builds a source over the given profiles, keyed by account
// type.
func NewStaticSource(profiles map[string]*models.LimitProfile) *StaticSource {
	return &StaticSource{profiles: profiles}
}

func (s *StaticSource) GetLimitProfile(ctx context.Context, userID uint, accountType string) (*models.LimitProfile, error) {
	p, ok := s.profiles[accountType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProfile, accountType)
	}
	return p, nil
}

// DefaultProfiles returns the stock ceilings, in minor units.
func DefaultProfiles() map[string]*models.LimitProfile {
	individual := map[string]models.LimitCeiling{
		models.TransactionTypeDeposit: {
			MaxSingle:  5_000_000,
			MaxDaily:   10_000_000,
			MaxMonthly: 100_000_000,
		},
		models.TransactionTypeWithdrawal: {
			MaxSingle:  2_000_000,
			MaxDaily:   5_000_000,
			MaxMonthly: 50_000_000,
		},
		"transfer": {
			MaxSingle:  2_000_000,
			MaxDaily:   5_000_000,
			MaxMonthly: 50_000_000,
		},
	}
	business := map[string]models.LimitCeiling{
		models.TransactionTypeDeposit: {
			MaxSingle:  50_000_000,
			MaxDaily:   100_000_000,
			MaxMonthly: 1_000_000_000,
		},
		models.TransactionTypeWithdrawal: {
			MaxSingle:  20_000_000,
			MaxDaily:   50_000_000,
			MaxMonthly: 500_000_000,
		},
		"transfer": {
			MaxSingle:  20_000_000,
			MaxDaily:   50_000_000,
			MaxMonthly: 500_000_000,
		},
	}
	return map[string]*models.LimitProfile{
		AccountTypeIndividual: {AccountType: AccountTypeIndividual, Ceilings: individual},
		AccountTypeBusiness:   {AccountType: AccountTypeBusiness, Ceilings: business},
	}
}

// CachedSource decorates a ProfileSource with a short-lived cache so the
// limit check does not hit the collaborator on every transaction.
type CachedSource struct {
	source ProfileSource
	cache  repositories.CacheRepository
	ttl    time.Duration
}

// NewCachedSource wraps source with caching.
func NewCachedSource(source ProfileSource, cache repositories.CacheRepository) *CachedSource {
	return &CachedSource{source: source, cache: cache, ttl: profileCacheTTL}
}

func (c *CachedSource) GetLimitProfile(ctx context.Context, userID uint, accountType string) (*models.LimitProfile, error) {
	key := fmt.Sprintf("%s%s", profileCachePrefix, accountType)
	if cached, err := c.cache.Get(ctx, key); err == nil {
		var p models.LimitProfile
		if err := json.Unmarshal([]byte(cached), &p); err == nil {
			return &p, nil
		}
	}

	profile, err := c.source.GetLimitProfile(ctx, userID, accountType)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(profile); err == nil {
		if err := c.cache.Set(ctx, key, string(data), c.ttl); err != nil {
			log.Printf("failed to cache limit profile %s: %v", accountType, err)
		}
	}
	return profile, nil
}
