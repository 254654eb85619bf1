package respawn

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/loot/internal/game/grid"
)

// Settings bound the respawn tick.
type Settings struct {
	// BatchSize is the number of tracked containers visited per tick.
	BatchSize int
	// Delay is the time after the last interaction before a refill may start.
	Delay time.Duration
	// Budget is the number of trickle attempts of one refill.
	Budget int
}

// Scheduler visits one batch of tracked containers per tick and starts a
// refill for each that is eligible and permitted.
type Scheduler struct {
	tracker  *Tracker
	settings Settings
	permits  func(grid.Handle) bool
	logger   *zap.Logger
}

// NewScheduler returns a Scheduler over tracker. permits is consulted for
// every eligible container; nil permits every container.
//
// Precondition: settings.BatchSize >= 1; settings.Budget >= 1.
func NewScheduler(tracker *Tracker, settings Settings, permits func(grid.Handle) bool, logger *zap.Logger) *Scheduler {
	if settings.BatchSize < 1 {
		settings.BatchSize = 1
	}
	if settings.Budget < 1 {
		settings.Budget = 1
	}
	return &Scheduler{tracker: tracker, settings: settings, permits: permits, logger: logger}
}

// Settings returns the scheduler's settings.
func (s *Scheduler) Settings() Settings {
	return s.settings
}

// Tick visits the next batch and returns the containers whose refill
// started. The caller drives each returned container's trickle.
//
// Postcondition: every returned handle is Refilling with a full budget.
func (s *Scheduler) Tick(now time.Time) []grid.Handle {
	batch := s.tracker.NextBatch(s.settings.BatchSize)
	var started []grid.Handle
	for _, h := range batch {
		if s.tracker.State(h, now, s.settings.Delay) != RespawnEligible {
			continue
		}
		if s.permits != nil && !s.permits(h) {
			continue
		}
		if s.tracker.BeginRefill(h, s.settings.Budget) {
			started = append(started, h)
		}
	}
	if len(started) > 0 {
		s.logger.Debug("respawn batch",
			zap.Int("visited", len(batch)),
			zap.Int("started", len(started)),
			zap.Int("tracked", s.tracker.Len()),
		)
	}
	return started
}
