package services

import (
	"context"
	"sync"

	"budgetwatch/internal/cache"
	"budgetwatch/internal/core"
	"budgetwatch/internal/engine"
	"budgetwatch/internal/metrics"

	"golang.org/x/sync/singleflight"
)

// AnalyticsService caches analytics per user and as-of day and collapses
// concurrent identical builds.
type AnalyticsService struct {
	aggregator *engine.Aggregator
	cache      cache.Cache[core.Analytics]
	metrics    *metrics.Metrics
	group      singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

func NewAnalyticsService(aggregator *engine.Aggregator, c cache.Cache[core.Analytics], m *metrics.Metrics) *AnalyticsService {
	return &AnalyticsService{
		aggregator:  aggregator,
		cache:       c,
		metrics:     m,
		generations: make(map[string]uint64),
	}
}

func cacheKey(userID string, asOf core.Date) string {
	return userID + "|" + asOf.String()
}

func (s *AnalyticsService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

// Analytics returns the report for userID as of asOf.
func (s *AnalyticsService) Analytics(ctx context.Context, userID string, asOf core.Date) (core.Analytics, error) {
	key := cacheKey(userID, asOf)
	if s.cache != nil {
		if a, ok := s.cache.Get(key); ok {
			s.metrics.CacheLookup(true)
			return a, nil
		}
		s.metrics.CacheLookup(false)
	}

	// The build is shared by every caller waiting on key, so it must not
	// inherit the cancellation of whichever caller started it.
	buildCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		gen := s.generation(userID)
		a, err := s.aggregator.BuildAnalytics(buildCtx, userID, asOf)
		if err != nil {
			return core.Analytics{}, err
		}
		// A write landing mid-build makes the result stale; do not cache it.
		if s.cache != nil && s.generation(userID) == gen {
			s.cache.Set(key, a)
		}
		return a, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return core.Analytics{}, res.Err
		}
		return res.Val.(core.Analytics), nil
	case <-ctx.Done():
		return core.Analytics{}, ctx.Err()
	}
}

// Invalidate drops every cached report of userID.
func (s *AnalyticsService) Invalidate(userID string) {
	s.mu.Lock()
	s.generations[userID]++
	s.mu.Unlock()
	if s.cache != nil {
		s.cache.DeletePrefix(userID + "|")
	}
}

func (s *AnalyticsService) MonthSummary(ctx context.Context, userID string, asOf core.Date) (core.MonthSummary, error) {
	return s.aggregator.BuildMonthSummary(ctx, userID, asOf)
}

func (s *AnalyticsService) BudgetVsActual(ctx context.Context, userID string, asOf core.Date) ([]core.BudgetDelta, error) {
	return s.aggregator.BudgetVsActual(ctx, userID, asOf)
}

func (s *AnalyticsService) MonthTransactions(ctx context.Context, userID string, asOf core.Date) ([]core.Transaction, error) {
	return s.aggregator.MonthTransactions(ctx, userID, asOf)
}

func (s *AnalyticsService) AllTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	return s.aggregator.AllTransactions(ctx, userID)
}
