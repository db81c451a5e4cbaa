package service

import (
	"context"
	"log"
	"time"
)

// SweepRepo is the slice of the session repository the sweeper needs.
type SweepRepo interface {
	TerminateExpired(ctx context.Context, now time.Time) (idle, absolute int64, err error)
}

// Sweeper periodically terminates sessions that passed their idle or absolute
// deadline without a validity check noticing. It backstops lazy timeout
// detection so abandoned sessions do not stay active indefinitely.
type Sweeper struct {
	repo     SweepRepo
	interval time.Duration
}

// NewSweeper returns a sweeper over repo. interval <= 0 defaults to 5 minutes.
func NewSweeper(repo SweepRepo, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{repo: repo, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	idle, absolute, err := s.repo.TerminateExpired(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("session sweeper: sweep failed: %v", err)
		return
	}
	if idle > 0 || absolute > 0 {
		log.Printf("session sweeper: terminated %d idle, %d absolute-timeout sessions", idle, absolute)
	}
}
