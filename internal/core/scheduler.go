package core

// scheduler.go keeps the catalog gauges current between dashboard visits.
// Refresh errors are logged and the loop keeps going.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultStatsRefreshInterval is used when the configured interval is zero.
const DefaultStatsRefreshInterval = time.Minute

// StartStatsRefresher loads catalog stats immediately, then every interval,
// until ctx is cancelled. Run it in its own goroutine.
func (s *Service) StartStatsRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultStatsRefreshInterval
	}
	slog.Info("stats refresher started", "interval", interval)

	s.refreshStats(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stats refresher stopped")
			return
		case <-ticker.C:
			s.refreshStats(ctx)
		}
	}
}

func (s *Service) refreshStats(ctx context.Context) {
	start := time.Now()
	stats, err := s.Stats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("stats refresh failed", "error", err)
		}
		return
	}
	slog.Debug("stats refreshed",
		"activos", stats.TotalActivos,
		"inactivos", stats.TotalInactivos,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
