package partner

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically closes sessions that have been idle past the
// configured threshold. The clock is injectable so idle behavior is
// testable without real sleep.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	clock    func() time.Time
}

func NewSweeper(manager *Manager, interval time.Duration) *Sweeper {
	return &Sweeper{
		manager:  manager,
		interval: interval,
		clock:    time.Now,
	}
}

// Run blocks until the context is canceled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	slog.Info("idle sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("idle sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) {
	closed := s.manager.CloseIdleSessions(ctx, s.clock())
	if closed > 0 {
		slog.Info("idle sweep closed sessions", "count", closed)
	}
}
