/*
scheduler.go - Automated accrual scheduler

PURPOSE:
  Periodically runs the monthly accrual for the current month so
  balances stay current without an operator hitting /accrual/run,
  and sweeps aged comp-off credits past their expiry window.
  Both runs are idempotent (deterministic idempotency keys), so
  firing them on every tick is harmless.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Credits the current calendar month on each tick
  - Expires stale comp-off credits as of today on each tick
  - Skips silently when no policy is configured for the year

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAccrualScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunAccrual endpoint (manual trigger)
  - engine/accrual.go: the run itself
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/warp/leave-engine/engine"
	"github.com/warp/leave-engine/metrics"
)

// AccrualScheduler keeps monthly credits flowing automatically.
type AccrualScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAccrualScheduler creates a new scheduler.
func NewAccrualScheduler(handler *Handler) *AccrualScheduler {
	return &AccrualScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *AccrualScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run()

	log.Printf("[Scheduler] Started with check interval: %v", s.CheckInterval)
}

// Stop stops the scheduler.
func (s *AccrualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (s *AccrualScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.creditCurrentMonth()
	s.expireCompoff()

	for {
		select {
		case <-s.ticker.C:
			s.creditCurrentMonth()
			s.expireCompoff()
		case <-s.stop:
			return
		}
	}
}

func (s *AccrualScheduler) creditCurrentMonth() {
	ctx := context.Background()
	now := s.Now()
	month := engine.Month{Year: now.Year(), Month: now.Month()}

	result, err := s.Handler.Accrual.RunMonthly(ctx, month)
	if err != nil {
		if errors.Is(err, engine.ErrPolicyNotFound) {
			log.Printf("[Scheduler] No policy for %d, skipping accrual", month.Year)
			return
		}
		metrics.AccrualRuns.WithLabelValues("error").Inc()
		log.Printf("[Scheduler] Accrual run for %s failed: %v", month, err)
		return
	}

	metrics.AccrualRuns.WithLabelValues("ok").Inc()
	if result.CreditedCount > 0 {
		log.Printf("[Scheduler] Credited %d entries for %s (%d employees)",
			result.CreditedCount, month, result.TotalEmployeesProcessed)
	}
}

func (s *AccrualScheduler) expireCompoff() {
	ctx := context.Background()
	now := s.Now()
	asOf := engine.NewDate(now.Year(), now.Month(), now.Day())

	expired, err := s.Handler.Compoff.ExpireAll(ctx, asOf)
	if err != nil {
		log.Printf("[Scheduler] Comp-off expiry sweep failed: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("[Scheduler] Expired %d comp-off credits as of %s", expired, asOf)
	}
}

// RunNow triggers an immediate run (for testing/admin).
func (s *AccrualScheduler) RunNow() {
	s.creditCurrentMonth()
	s.expireCompoff()
}
