// Package sweeper periodically promotes waiting users for every event.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const DefaultInterval = time.Hour

// Promoter is satisfied by *waitlist.Engine.
type Promoter interface {
	PromoteAll(ctx context.Context) (int, error)
}

type Sweeper struct {
	promoter Promoter
	interval time.Duration
	log      *zerolog.Logger
	done     chan struct{}
	cancel   context.CancelFunc
}

func New(p Promoter, interval time.Duration, log *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		promoter: p,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval until Stop or
// ctx ends.
func (s *Sweeper) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.log.Info().Dur("interval", s.interval).Msg("⏰ promotion sweeper started")

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			s.sweep(cctx)
			select {
			case <-cctx.Done():
				s.log.Info().Msg("🛑 promotion sweeper stopped")
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Sweeper) sweep(ctx context.Context) {
	started := time.Now()
	n, err := s.promoter.PromoteAll(ctx)
	if err != nil && ctx.Err() == nil {
		s.log.Error().Err(err).Int("promoted", n).Msg("promotion sweep finished with errors")
		return
	}
	if n > 0 {
		s.log.Info().Int("promoted", n).Dur("took", time.Since(started)).Msg("promotion sweep finished")
	}
}

func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}
