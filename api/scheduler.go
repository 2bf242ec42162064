/*
scheduler.go - Automated expiry sweep scheduler

PURPOSE:
  Periodically runs the engine's expiry sweep so allocations and projects
  past their end date are completed and closed without waiting for a read
  or a manual trigger.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - The sweep is idempotent, so overlapping or repeated runs are harmless
  - Sweep results are logged for audit

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSweepScheduler(eng, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - engine/sweeper.go: The two-phase sweep itself
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/allocation-engine/engine"
)

// SweepScheduler runs the expiry sweep on a fixed interval.
type SweepScheduler struct {
	Engine        *engine.Engine
	CheckInterval time.Duration
	Enabled       bool

	log    *logrus.Logger
	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweepScheduler creates a new scheduler.
func NewSweepScheduler(eng *engine.Engine, log *logrus.Logger) *SweepScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SweepScheduler{
		Engine:        eng,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		log:           log,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SweepScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		ss.log.Info("sweep scheduler disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	ss.log.WithField("interval", ss.CheckInterval).Info("sweep scheduler started")
}

// Stop stops the scheduler.
func (ss *SweepScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		ss.log.Info("sweep scheduler stopped")
	}
}

func (ss *SweepScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.sweep()

	for {
		select {
		case <-ss.ticker.C:
			ss.sweep()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SweepScheduler) sweep() {
	ctx := context.Background()

	result, err := ss.Engine.CheckExpiredItems(ctx)
	if err != nil {
		ss.log.WithError(err).Error("scheduled sweep failed")
		return
	}
	if result.AllocationsCompleted > 0 || result.ProjectsClosed > 0 {
		ss.log.WithFields(logrus.Fields{
			"allocations_completed": result.AllocationsCompleted,
			"projects_closed":       result.ProjectsClosed,
			"employees_affected":    result.EmployeesAffected,
		}).Info("scheduled sweep completed")
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ss *SweepScheduler) RunNow() {
	ss.sweep()
}
