/*
scheduler.go - Background recompute of dirty periods

PURPOSE:
  Mutating endpoints (re-imports, adjustments, rate changes) mark affected
  open periods as dirty instead of recomputing inline. This scheduler drains
  the dirty set on a fixed interval so summaries converge shortly after a
  burst of edits without recomputing once per keystroke.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Dirty set is deduplicated: N edits to one period cost one recompute
  - Periods that froze (posted/finalized) between marking and draining are
    skipped silently
  - A failed recompute leaves the period dirty for the next tick

CONFIGURATION:
  - CheckInterval: How often to drain (default: 30 seconds)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRecomputeScheduler(engine)
  handler.Scheduler = scheduler
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: MarkDirty call sites
  - payroll/engine.go: Recompute
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/warp/payroll-engine/payroll"
)

// RecomputeScheduler batches summary recomputes for periods whose inputs
// changed.
type RecomputeScheduler struct {
	Engine        *payroll.Engine
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup

	mu    sync.Mutex
	dirty map[payroll.PeriodID]bool
}

// NewRecomputeScheduler creates a new scheduler over the given engine.
func NewRecomputeScheduler(engine *payroll.Engine) *RecomputeScheduler {
	return &RecomputeScheduler{
		Engine:        engine,
		CheckInterval: 30 * time.Second,
		Enabled:       true,
		stop:          make(chan bool),
		dirty:         make(map[payroll.PeriodID]bool),
	}
}

// MarkDirty flags a period for recompute on the next drain.
func (rs *RecomputeScheduler) MarkDirty(periodID payroll.PeriodID) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.dirty[periodID] = true
}

// Start begins the scheduler.
func (rs *RecomputeScheduler) Start() {
	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)
	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler and drains once more.
func (rs *RecomputeScheduler) Stop() {
	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

// RunNow triggers an immediate drain (for testing/admin).
func (rs *RecomputeScheduler) RunNow() {
	rs.drain()
}

func (rs *RecomputeScheduler) run() {
	defer rs.wg.Done()

	for {
		select {
		case <-rs.ticker.C:
			rs.drain()
		case <-rs.stop:
			rs.drain()
			return
		}
	}
}

func (rs *RecomputeScheduler) drain() {
	rs.mu.Lock()
	pending := make([]payroll.PeriodID, 0, len(rs.dirty))
	for id := range rs.dirty {
		pending = append(pending, id)
	}
	rs.dirty = make(map[payroll.PeriodID]bool)
	rs.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	ctx := context.Background()
	recomputed := 0
	for _, id := range pending {
		result, err := rs.Engine.Recompute(ctx, id)
		if err != nil {
			// Frozen or deleted since marking: nothing left to do.
			if errors.Is(err, payroll.ErrPeriodImmutable) || payroll.IsNotFound(err) {
				continue
			}
			log.Printf("[Scheduler] Recompute of %s failed: %v", id, err)
			rs.MarkDirty(id) // retry next tick
			continue
		}
		recomputed++
		for _, f := range result.Failures {
			log.Printf("[Scheduler] Period %s employee %s: %v", id, f.EmployeeID, f.Err)
		}
	}

	if recomputed > 0 {
		log.Printf("[Scheduler] Recomputed %d period(s)", recomputed)
	}
}
