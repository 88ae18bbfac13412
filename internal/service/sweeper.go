package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SessionSweeper periodically deletes expired refresh sessions.
type SessionSweeper struct {
	refresh  *RefreshTokens
	interval time.Duration
	log      zerolog.Logger
}

func NewSessionSweeper(refresh *RefreshTokens, interval time.Duration, log zerolog.Logger) *SessionSweeper {
	return &SessionSweeper{refresh: refresh, interval: interval, log: log}
}

// Run sweeps once immediately and then every interval until ctx is done.
// A non-positive interval disables the sweeper.
func (s *SessionSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *SessionSweeper) sweepOnce(ctx context.Context) {
	removed, err := s.refresh.Sweep(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
		return
	}
	if removed > 0 {
		s.log.Info().Int64("removed", removed).Msg("expired sessions swept")
	}
}
