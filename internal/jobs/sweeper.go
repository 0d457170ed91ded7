// Package jobs runs periodic maintenance next to the HTTP server.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/lalith-99/ordero/internal/repository"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = time.Minute

// InviteSweeper revokes PENDING invites that were never accepted.
type InviteSweeper struct {
	invites repository.InviteRepository
	ttl     time.Duration
	logger  *zap.Logger
	cron    *cron.Cron
	now     func() time.Time
}

func NewInviteSweeper(invites repository.InviteRepository, ttl time.Duration, logger *zap.Logger) *InviteSweeper {
	return &InviteSweeper{
		invites: invites,
		ttl:     ttl,
		logger:  logger,
		cron:    cron.New(),
		now:     time.Now,
	}
}

// Sweep revokes every PENDING invite older than the TTL.
func (s *InviteSweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.invites.ExpirePending(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("expire invites: %w", err)
	}
	return n, nil
}

// Start schedules Sweep. A zero TTL leaves the sweeper off.
func (s *InviteSweeper) Start(schedule string) error {
	if s.ttl <= 0 {
		s.logger.Info("invite sweeper disabled")
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		n, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Error("invite sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			s.logger.Info("expired stale invites", zap.Int64("count", n))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule invite sweeper: %w", err)
	}
	s.cron.Start()
	s.logger.Info("invite sweeper started",
		zap.String("schedule", schedule),
		zap.Duration("ttl", s.ttl),
	)
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *InviteSweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
