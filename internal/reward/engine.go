// Package reward implements tiered reward allocation over the serialized
// unit pool. Units are rewarded in whole groups of 100: for every complete
// group, each configured tier tags its per-100 quantity of units, oldest
// first. Units outside a whole group wait for a future run.
package reward

import (
	"context"
	"time"

	"go.uber.org/zap"

	"distrigo/backend/internal/cache"
	"distrigo/backend/internal/domain"
	"distrigo/backend/internal/store"
)

// GroupSize is the allocation block: tiers quote quantities per 100 units.
const GroupSize = 100

type Engine struct {
	repo  store.Repository
	cache cache.SummaryCache
	ttl   time.Duration
	log   *zap.Logger
}

func NewEngine(repo store.Repository, summaries cache.SummaryCache, ttl time.Duration, log *zap.Logger) *Engine {
	return &Engine{repo: repo, cache: summaries, ttl: ttl, log: log}
}

func summaryKey(productID string) string {
	return "reward:pool:" + productID
}

// Generate runs one allocation pass for the product. It returns
// store.ErrNotFound when the product has no reward setting. Marking is not
// transactional across tiers; each tier reports how many units it actually
// tagged and Assigned accumulates those counts.
func (e *Engine) Generate(ctx context.Context, productID string) (*domain.RewardGenerationResult, error) {
	setting, err := e.repo.FindRewardSettingByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	unassigned, err := e.repo.CountUnassigned(ctx, productID)
	if err != nil {
		return nil, err
	}

	groups := unassigned / GroupSize
	result := &domain.RewardGenerationResult{
		Eligible:  groups * GroupSize,
		Remaining: unassigned - groups*GroupSize,
	}
	if groups == 0 {
		return result, nil
	}

	// The tier sequence repeats once per whole group, so tier codes
	// interleave across the pool instead of clustering per tier.
	for g := 0; g < groups; g++ {
		for _, tier := range setting.Tiers {
			if tier.QuantityPer100 <= 0 {
				continue
			}
			tagged, err := e.repo.MarkRewarded(ctx, productID, tier.QuantityPer100, tier.Code)
			if err != nil {
				return nil, err
			}
			if tagged < tier.QuantityPer100 {
				e.log.Warn("reward tier under-filled",
					zap.String("product_id", productID),
					zap.String("tier", tier.Name),
					zap.Int("group", g+1),
					zap.Int("requested", tier.QuantityPer100),
					zap.Int("tagged", tagged))
			}
			result.Assigned += tagged
		}
	}

	if err := e.cache.Invalidate(ctx, summaryKey(productID)); err != nil {
		e.log.Warn("pool summary invalidation failed",
			zap.String("product_id", productID), zap.Error(err))
	}

	return result, nil
}

// PoolSummary aggregates the product's placements, serving from cache when a
// fresh summary is available.
func (e *Engine) PoolSummary(ctx context.Context, productID string) (*domain.PoolSummary, error) {
	key := summaryKey(productID)
	if cached, ok, err := e.cache.Get(ctx, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		e.log.Warn("pool summary cache read failed",
			zap.String("product_id", productID), zap.Error(err))
	}

	filters := map[string]string{"product_id": productID}
	head, err := e.repo.Placements().List(ctx, domain.ListOptions{Filters: filters, Limit: 1})
	if err != nil {
		return nil, err
	}

	summary := &domain.PoolSummary{
		ProductID:  productID,
		TotalUnits: head.Total,
		ComputedAt: time.Now().UTC(),
	}

	if head.Total > 0 {
		all, err := e.repo.Placements().List(ctx, domain.ListOptions{Filters: filters, Limit: head.Total})
		if err != nil {
			return nil, err
		}
		for _, p := range all.Items {
			if p.SaleStatus {
				summary.Sold++
			}
			if p.RewardStatus {
				summary.Rewarded++
			} else {
				summary.Unassigned++
			}
		}
	}

	if err := e.cache.Set(ctx, key, summary, e.ttl); err != nil {
		e.log.Warn("pool summary cache write failed",
			zap.String("product_id", productID), zap.Error(err))
	}
	return summary, nil
}
