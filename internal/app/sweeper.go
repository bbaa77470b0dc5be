package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Estimate/internal/clock"
)

// Sweeper calls Sweep every Interval until ctx is done.
type Sweeper struct {
	Clock    clock.Clock
	Interval time.Duration
	Sweep    func() int
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := s.Clock.NewTicker(s.Interval)
	defer ticker.Stop()
	log.Info().Str("module", "app.sweeper").Dur("interval", s.Interval).Msg("sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.sweeper").Msg("sweeper stopped")
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Info().Str("module", "app.sweeper").Int("rooms", n).Msg("cleaned up rooms")
			}
		}
	}
}
