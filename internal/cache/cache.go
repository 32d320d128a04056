package cache

import (
	"context"
	"time"

	"distrigo/backend/internal/domain"
)

type SummaryCache interface {
	Get(ctx context.Context, key string) (*domain.PoolSummary, bool, error)
	Set(ctx context.Context, key string, value *domain.PoolSummary, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(_ context.Context, _ string) (*domain.PoolSummary, bool, error) {
	return nil, false, nil
}

func (NoopSummaryCache) Set(_ context.Context, _ string, _ *domain.PoolSummary, _ time.Duration) error {
	return nil
}

func (NoopSummaryCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
