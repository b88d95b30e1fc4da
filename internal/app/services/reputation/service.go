// Package reputation computes the derived analytics layered on response
// and review rows: per-expert daily quotas and the rolling 30-day
// community ranking. Both are pure functions of persisted rows; nothing
// here keeps incremental state that could drift or corrupt.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/helphub/platform/internal/app/domain/stats"
	"github.com/helphub/platform/internal/app/metrics"
	"github.com/helphub/platform/internal/app/storage"
	"github.com/helphub/platform/pkg/logger"
)

// Ranking window and weights. Raw counts are weighted unnormalized; that
// is a recorded design choice, not an oversight.
const (
	rankingWindow = 30 * 24 * time.Hour
	topHelperSize = 3

	weightRating    = 0.4
	weightResponses = 0.3
	weightBest      = 0.3
)

// Service is the reputation and quota engine.
type Service struct {
	users     storage.UserStore
	responses storage.ResponseStore
	stats     storage.StatsStore
	cache     LeaderboardCache
	log       *logger.Logger
}

// New constructs the engine. cache may be nil, in which case every
// ranking read recomputes from storage.
func New(users storage.UserStore, responses storage.ResponseStore, statsStore storage.StatsStore, cache LeaderboardCache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reputation")
	}
	return &Service{users: users, responses: responses, stats: statsStore, cache: cache, log: log}
}

// AvailableSlots returns how many more responses the expert may give
// today: max(0, dailyRequestLimit - todayResponses). The today count is a
// window query over the current UTC day, never a cached counter, so
// concurrent callers cannot race a stale value. The stats row's lazy
// daily reset runs as a side effect.
func (s *Service) AvailableSlots(ctx context.Context, expertID string) (int, error) {
	u, err := s.users.GetUser(ctx, expertID)
	if err != nil {
		return 0, fmt.Errorf("load expert: %w", err)
	}

	if _, err := s.EnsureDailyReset(ctx, expertID); err != nil {
		return 0, err
	}

	today, err := s.responses.CountResponsesSince(ctx, expertID, stats.StartOfDayUTC(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("count today responses: %w", err)
	}

	slots := u.DailyRequestLimit - today
	if slots < 0 {
		slots = 0
	}
	return slots, nil
}

// EnsureDailyReset zeroes TodayResponses the first time the stats row is
// touched on a new UTC calendar day. It is idempotent and safe to run on
// every read or write; there is no scheduled reset job.
func (s *Service) EnsureDailyReset(ctx context.Context, expertID string) (stats.ExpertStats, error) {
	row, err := s.stats.GetExpertStats(ctx, expertID)
	if errors.Is(err, storage.ErrNotFound) {
		return s.stats.RecomputeExpertStats(ctx, expertID)
	}
	if err != nil {
		return stats.ExpertStats{}, err
	}

	now := time.Now().UTC()
	if stats.SameDayUTC(row.LastResetDate, now) {
		return row, nil
	}

	row.TodayResponses = 0
	row.LastResetDate = stats.StartOfDayUTC(now)
	return s.stats.UpsertExpertStats(ctx, row)
}

// ExpertStats returns the stats row after the lazy daily reset.
func (s *Service) ExpertStats(ctx context.Context, expertID string) (stats.ExpertStats, error) {
	return s.EnsureDailyReset(ctx, expertID)
}

// Recompute rebuilds the stats row from response and review rows.
func (s *Service) Recompute(ctx context.Context, expertID string) (stats.ExpertStats, error) {
	row, err := s.stats.RecomputeExpertStats(ctx, expertID)
	metrics.RecordStorageOp("recompute_expert_stats", err)
	if err != nil {
		return stats.ExpertStats{}, err
	}
	s.InvalidateRanking(ctx)
	return row, nil
}

// TopHelpers returns the community ranking over the rolling 30-day
// window: score = rating*0.4 + responses*0.3 + bestAnswers*0.3, sorted by
// score, then response volume, then user id, truncated to the top 3.
// Users without an in-window response never appear.
func (s *Service) TopHelpers(ctx context.Context) ([]stats.TopHelper, error) {
	if s.cache != nil {
		if helpers, ok := s.cache.Get(ctx); ok {
			return helpers, nil
		}
	}

	start := time.Now()
	aggregates, err := s.stats.RankingAggregates(ctx, time.Now().UTC().Add(-rankingWindow))
	if err != nil {
		return nil, fmt.Errorf("ranking aggregates: %w", err)
	}

	for i := range aggregates {
		aggregates[i].Score = score(aggregates[i])
	}
	sort.Slice(aggregates, func(i, j int) bool {
		a, b := aggregates[i], aggregates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TotalResponses != b.TotalResponses {
			return a.TotalResponses > b.TotalResponses
		}
		return stats.IDLess(a.UserID, b.UserID)
	})
	if len(aggregates) > topHelperSize {
		aggregates = aggregates[:topHelperSize]
	}
	metrics.RecordRankingDuration(time.Since(start))

	if s.cache != nil {
		s.cache.Set(ctx, aggregates)
	}
	return aggregates, nil
}

// Dashboard returns platform-wide counters for the landing page.
func (s *Service) Dashboard(ctx context.Context) (stats.Dashboard, error) {
	return s.stats.DashboardStats(ctx)
}

// InvalidateRanking drops the cached leaderboard after a write that can
// change it. A nil cache makes this a no-op.
func (s *Service) InvalidateRanking(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func score(h stats.TopHelper) float64 {
	return h.AverageRating*weightRating +
		float64(h.TotalResponses)*weightResponses +
		float64(h.BestAnswers)*weightBest
}
