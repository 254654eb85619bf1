package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Driver drains a Queue on a ticker.
type Driver struct {
	queue      *Queue
	resolution time.Duration
	logger     *zap.Logger
}

// NewDriver returns a Driver that calls queue.RunDue every resolution.
//
// Precondition: resolution must be > 0.
func NewDriver(queue *Queue, resolution time.Duration, logger *zap.Logger) *Driver {
	if resolution <= 0 {
		panic("schedule.NewDriver: resolution must be > 0")
	}
	return &Driver{queue: queue, resolution: resolution, logger: logger}
}

// Run drains the queue until ctx is cancelled. It blocks.
//
// Postcondition: Returns nil after ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.resolution)
	defer ticker.Stop()
	d.logger.Info("scheduler driver started", zap.Duration("resolution", d.resolution))
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("scheduler driver stopped", zap.Int("pending", d.queue.Len()))
			return nil
		case <-ticker.C:
			d.queue.RunDue()
		}
	}
}
