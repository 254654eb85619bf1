// Package main provides the loot server: the loot engine running against the
// simulated host world described by the content directory.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/loot/internal/audit"
	"github.com/cory-johannsen/loot/internal/config"
	"github.com/cory-johannsen/loot/internal/game/dice"
	"github.com/cory-johannsen/loot/internal/game/grid"
	"github.com/cory-johannsen/loot/internal/game/loot"
	"github.com/cory-johannsen/loot/internal/game/lootmap"
	"github.com/cory-johannsen/loot/internal/game/rules"
	"github.com/cory-johannsen/loot/internal/game/schedule"
	"github.com/cory-johannsen/loot/internal/host"
	"github.com/cory-johannsen/loot/internal/observability"
	"github.com/cory-johannsen/loot/internal/scripting"
	"github.com/cory-johannsen/loot/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	var src dice.Source
	if cfg.Engine.Seed != 0 {
		src = dice.NewSeededSource(cfg.Engine.Seed)
		logger.Info("using seeded dice", zap.Uint64("seed", cfg.Engine.Seed))
	} else {
		src = dice.NewCryptoSource()
	}
	roller := dice.NewLoggedRoller(src, logger)

	// Load host content
	contentStart := time.Now()
	defs, err := host.LoadItems(cfg.Host.ItemsDir)
	if err != nil {
		logger.Fatal("loading items", zap.Error(err))
	}
	registry, err := host.NewRegistry(defs)
	if err != nil {
		logger.Fatal("indexing items", zap.Error(err))
	}
	world, err := host.LoadWorldFromFile(cfg.Host.WorldFile, registry)
	if err != nil {
		logger.Fatal("loading world", zap.Error(err))
	}
	logger.Info("host content loaded",
		zap.Int("items", registry.Len()),
		zap.Int("crates", len(world.Crates())),
		zap.Int("players", len(world.Players())),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	lifecycle := server.NewLifecycle(logger)

	var hook rules.Hook
	if cfg.Engine.RulesScript != "" {
		h, err := scripting.LoadDefaultsHook(cfg.Engine.RulesScript, scripting.DefaultInstructionLimit, logger)
		if err != nil {
			logger.Fatal("loading rules script", zap.String("path", cfg.Engine.RulesScript), zap.Error(err))
		}
		logger.Info("rules script loaded", zap.String("path", cfg.Engine.RulesScript), zap.Bool("defines_hook", h.Defined()))
		hook = h
		lifecycle.OnStop("rules-script", h.Close)
	}

	var sink loot.EventSink
	if cfg.Audit.Enabled {
		s := audit.NewSink(cfg.Audit.Dir, cfg.Audit.Prefix, logger)
		sink = s
		lifecycle.OnStop("audit", func() {
			if err := s.Close(); err != nil {
				logger.Error("closing spawn audit", zap.Error(err))
			}
			logger.Info("spawn audit closed", zap.Int64("written", s.Written()), zap.Int64("failed", s.Failed()))
		})
	}

	queue := schedule.NewQueue(schedule.RealClock{}, logger)
	engine := loot.NewEngine(cfg.Engine, loot.Deps{
		Store:     lootmap.NewStore(cfg.Engine.LootMapPath(), cfg.Engine.ValidateSchema, logger),
		Rules:     rules.New(cfg.Engine.ReservedSubstrings, hook),
		World:     world,
		Items:     registry,
		Players:   world,
		Scheduler: queue,
		Roller:    roller,
		Sink:      sink,
		Logger:    logger,
	})
	engine.OnLootReset(func(h grid.Handle, search time.Duration) {
		logger.Debug("crate restocked", zap.String("crate", string(h)), zap.Duration("search", search))
	})

	sim := host.NewSim(world, engine, roller, host.SimConfig{
		Tick:  cfg.Host.WanderTick,
		Step:  cfg.Host.WanderStep,
		Reach: cfg.Host.SearchReach,
	}, logger)
	sim.RegisterAll()
	observability.ScheduleStatsReport(queue, engine, cfg.Logging.StatsInterval, logger)

	ctx := context.Background()
	if err := engine.Initialize(ctx); err != nil {
		logger.Fatal("initializing loot engine", zap.Error(err))
	}

	driver := schedule.NewDriver(queue, cfg.Engine.DriverResolution, logger)
	lifecycle.Add("scheduler", driver.Run)
	lifecycle.Add("host-sim", func(ctx context.Context) error { return sim.Run(ctx, queue) })
	lifecycle.OnStop("loot-engine", engine.Stop)

	logger.Info("loot server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("loot_map", cfg.Engine.LootMapPath()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
