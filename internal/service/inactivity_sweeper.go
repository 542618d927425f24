package service

import (
	"context"
	"time"

	"ai-tutoring-be/internal/pkg/logger"
)

const sweepInterval = time.Minute

// IInactivitySweeper periodically abandons sessions that have gone quiet.
type IInactivitySweeper interface {
	Run(ctx context.Context)
}

type inactivitySweeper struct {
	sessionService ISessionService
	timeout        time.Duration
	log            logger.ILogger
}

func NewInactivitySweeper(sessionService ISessionService, timeout time.Duration, log logger.ILogger) IInactivitySweeper {
	return &inactivitySweeper{
		sessionService: sessionService,
		timeout:        timeout,
		log:            log,
	}
}

func (s *inactivitySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.timeout)
			swept, err := s.sessionService.AbandonInactive(ctx, cutoff)
			if err != nil {
				s.log.Warn("sweeper", "inactivity sweep failed", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			if swept > 0 {
				s.log.Info("sweeper", "abandoned idle sessions", map[string]interface{}{
					"count": swept,
				})
			}
		}
	}
}
