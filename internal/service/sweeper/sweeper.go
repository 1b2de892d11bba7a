package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/shabbenantes/apex-affiliate-api/internal/lib/logger/sl"
)

type ExpiredDeleter interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically removes expired tokens. It runs without any
// coordination with request handling; lookups re-check expiry themselves,
// so a late or missing sweep never affects correctness.
type Sweeper struct {
	log      *slog.Logger
	store    ExpiredDeleter
	interval time.Duration
}

func New(log *slog.Logger, store ExpiredDeleter, interval time.Duration) *Sweeper {
	return &Sweeper{
		log:      log,
		store:    store,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled. Start it in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	const op = "service.sweeper.Run"

	log := s.log.With(slog.String("op", op))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info("sweeper started", slog.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")

			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	const op = "service.sweeper.Sweep"

	log := s.log.With(slog.String("op", op))

	removed, err := s.store.SweepExpired(ctx, time.Now())
	if err != nil {
		log.Error("expiry sweep failed", sl.Err(err))

		return
	}

	if removed > 0 {
		log.Info("expired tokens removed", slog.Int64("count", removed))
	}
}
