// Package observability builds the process logger and reports loot engine
// counters through it.
package observability

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/loot/internal/config"
	"github.com/cory-johannsen/loot/internal/game/loot"
	"github.com/cory-johannsen/loot/internal/game/schedule"
)

// NewLogger creates a structured logger from the given logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig, opts ...zap.Option) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
		zapCfg.Sampling = nil
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// StatsSource reports loot engine counters.
type StatsSource interface {
	Stats() loot.Stats
}

// StatsFields converts engine counters to log fields.
func StatsFields(s loot.Stats) []zap.Field {
	return []zap.Field{
		zap.Int("registered", s.Registered),
		zap.Int("cells", s.Cells),
		zap.Int("tracked", s.Tracked),
		zap.Int("refilling", s.Refilling),
		zap.Int("items", s.Items),
		zap.Int("players", s.Players),
		zap.Int("dead_cells", s.DeadCells),
	}
}

// ScheduleStatsReport logs src's counters every interval on sched.
//
// Postcondition: Returns 0 and schedules nothing when interval <= 0.
func ScheduleStatsReport(sched schedule.Scheduler, src StatsSource, interval time.Duration, logger *zap.Logger) schedule.TaskID {
	if interval <= 0 {
		return 0
	}
	return sched.Schedule(func() {
		logger.Info("loot stats", StatsFields(src.Stats())...)
	}, interval, true)
}
