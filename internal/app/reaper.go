package app

import (
	"context"
	"log/slog"
	"time"

	"trivia-live/internal/domain"
)

// ReaperConfig tunes the stale-session sweep.
type ReaperConfig struct {
	Interval time.Duration `yaml:"interval"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// DefaultReaperConfig returns the standard sweep cadence.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		Interval: 30 * time.Minute,
		MaxAge:   4 * time.Hour,
	}
}

// Reaper force-finishes abandoned sessions and evicts their live state: any
// non-finished session older than MaxAge, both in memory and in durable
// storage. It runs once at startup and then on every tick.
type Reaper struct {
	service *GameService
	games   GameRepository
	store   DurableStore
	cfg     ReaperConfig
	logger  *slog.Logger
	done    chan struct{}
}

func NewReaper(service *GameService, games GameRepository, store DurableStore, cfg ReaperConfig, logger *slog.Logger) *Reaper {
	return &Reaper{
		service: service,
		games:   games,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (r *Reaper) Start(ctx context.Context) {
	go func() {
		r.Sweep(ctx)

		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep(ctx)
			}
		}
	}()
}

// Stop terminates the sweep loop.
func (r *Reaper) Stop() {
	close(r.done)
}

// Sweep runs one pass over live and durable sessions.
func (r *Reaper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.cfg.MaxAge)

	for _, g := range r.games.All() {
		if g.Phase() == domain.PhaseFinished || g.CreatedAt().After(cutoff) {
			continue
		}
		r.logger.Info("reaping stale session", "session", g.ID(), "created", g.CreatedAt())
		r.service.ForceFinish(ctx, g.ID())
	}

	// Sessions left non-finished in durable storage by an earlier process.
	stale, err := r.store.ListStaleSessions(ctx, cutoff)
	if err != nil {
		r.logger.Warn("stale session listing failed", "error", err)
		return
	}
	for _, id := range stale {
		r.logger.Info("finishing stale durable session", "session", id)
		r.service.ForceFinish(ctx, id)
	}
}
