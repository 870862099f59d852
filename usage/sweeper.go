// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"context"
	"log"
	"time"
)

// DefaultSweepInterval is how often the sweeper looks for past-due users
const DefaultSweepInterval = 24 * time.Hour

// Sweeper periodically runs the bulk counter reset and cache cleanup.
// It runs concurrently with the lazy per-request reset; both triggers are
// idempotent, so whichever fires first wins.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *log.Logger
	stop     chan struct{}
}

// NewSweeper creates a sweeper. A non-positive interval falls back to
// DefaultSweepInterval.
func NewSweeper(service *Service, interval time.Duration, logger *log.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start runs one sweep immediately and then on every tick until Stop is
// called or the context is cancelled. Blocks; run it in a goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop terminates the sweep loop
func (s *Sweeper) Stop() {
	close(s.stop)
}

func (s *Sweeper) sweep(ctx context.Context) {
	affected, err := s.service.ResetMonthlyCounters(ctx)
	if err != nil {
		s.logger.Printf("[Sweeper] Reset sweep failed: %v", err)
		return
	}
	if affected > 0 {
		s.logger.Printf("[Sweeper] Reset sweep completed: %d users", affected)
	}

	s.service.cache.Cleanup(ctx)
}
