// Package progress reports throughput and ETA for long batch runs.
package progress

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	Processed int
	Total     int
	Percent   float64
	Elapsed   time.Duration
	// ETA is zero until at least one item has been processed.
	ETA time.Duration
}

// Tracker accumulates processed counts against a known total.
type Tracker struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	logger    *slog.Logger
	started   time.Time
	total     int
	processed int
	resumed   int
}

// NewTracker starts timing a run of total items.
func NewTracker(clock clockwork.Clock, logger *slog.Logger, total int) *Tracker {
	return &Tracker{
		clock:   clock,
		logger:  logger,
		started: clock.Now(),
		total:   total,
	}
}

// Resume records items finished by an earlier run so percentages stay
// accurate; they are excluded from the rate.
func (t *Tracker) Resume(done int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed = done
	t.total = max(t.total, done)
	t.started = t.clock.Now()
	t.resumed = done
}

// Update adds n processed items, logs the new snapshot, and returns it.
func (t *Tracker) Update(n int) Snapshot {
	t.mu.Lock()
	t.processed += n
	s := t.snapshotLocked()
	t.mu.Unlock()

	t.logger.Info("progress",
		"processed", s.Processed,
		"total", s.Total,
		"percent", s.Percent,
		"elapsed", s.Elapsed.Round(time.Second).String(),
		"eta", s.ETA.Round(time.Second).String(),
	)
	return s
}

// Snapshot returns the current state without changing it.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	s := Snapshot{
		Processed: t.processed,
		Total:     t.total,
		Elapsed:   t.clock.Since(t.started),
	}
	if t.total > 0 {
		s.Percent = 100 * float64(t.processed) / float64(t.total)
	}

	done := t.processed - t.resumed
	remaining := t.total - t.processed
	if done > 0 && remaining > 0 {
		perItem := s.Elapsed / time.Duration(done)
		s.ETA = perItem * time.Duration(remaining)
	}
	return s
}
