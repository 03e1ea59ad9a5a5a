package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"priceaction-bot/internal/events"
)

// DefaultInterval between reconciliation ticks.
const DefaultInterval = 15 * time.Minute

// Scheduler reconciles a fixed symbol set on a ticker. Symbols run
// concurrently; each symbol only touches its own state, so there is no
// shared mutable state between them.
type Scheduler struct {
	reconciler *Reconciler
	bus        *events.EventBus
	symbols    []string
	interval   time.Duration
	logger     zerolog.Logger
}

// NewScheduler creates a Scheduler. bus may be nil.
func NewScheduler(reconciler *Reconciler, bus *events.EventBus, symbols []string, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		reconciler: reconciler,
		bus:        bus,
		symbols:    symbols,
		interval:   interval,
		logger:     logger,
	}
}

// Run reconciles immediately, then on every tick until ctx is
// cancelled. One symbol's failure never blocks its siblings.
func (s *Scheduler) Run(ctx context.Context) {
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.EventPipelineStarted, Data: map[string]interface{}{
			"symbols":  s.symbols,
			"interval": s.interval.String(),
		}})
	}
	s.logger.Info().
		Strs("symbols", s.symbols).
		Dur("interval", s.interval).
		Msg("scheduler started")

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if s.bus != nil {
				s.bus.Publish(events.Event{Type: events.EventPipelineStopped})
			}
			s.logger.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	var wg sync.WaitGroup
	for _, symbol := range s.symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			s.reconcileOne(ctx, symbol)
		}(symbol)
	}
	wg.Wait()
}

// reconcileOne isolates panics so a bad symbol cannot take down the
// scheduler.
func (s *Scheduler) reconcileOne(ctx context.Context, symbol string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Interface("panic", rec).Str("symbol", symbol).Msg("reconciliation panicked")
			if s.bus != nil {
				s.bus.PublishError("pipeline", "reconciliation panicked", nil)
			}
		}
	}()

	if _, err := s.reconciler.ReconcileSymbol(ctx, symbol); err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("reconciliation failed")
		if s.bus != nil {
			s.bus.PublishError("pipeline", "reconciliation failed for "+symbol, err)
		}
	}
}
