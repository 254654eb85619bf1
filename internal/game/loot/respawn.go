package loot

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/loot/internal/game/dice"
	"github.com/cory-johannsen/loot/internal/game/grid"
	"github.com/cory-johannsen/loot/internal/game/respawn"
)

// updateProximity recomputes the dead and respawn zones from scratch.
func (e *Engine) updateProximity() {
	e.proximity = respawn.ComputeProximity(
		e.players.PlayerPositions(),
		e.grid.CellSize(),
		e.tunables.DeadZoneGridRadius,
		e.tunables.RespawnLootRadius,
	)
}

func (e *Engine) permitsRefill(h grid.Handle) bool {
	if !e.IsRegistered(h) {
		return false
	}
	return e.proximity.Permits(e.cellOf(h))
}

// respawnTick starts a trickle for each container of the next batch that
// became eligible.
func (e *Engine) respawnTick() {
	if !e.initialized || !e.tunables.IsLootEnabled {
		return
	}
	for _, h := range e.respawner.Tick(e.sched.Now()) {
		e.startTrickle(h)
	}
}

// startTrickle schedules h's first trickle attempt after a random delay so
// refills of one batch spread out.
func (e *Engine) startTrickle(h grid.Handle) {
	jitter := dice.Range{
		Min: int(e.cfg.TrickleJitterMin.Milliseconds()),
		Max: int(e.cfg.TrickleJitterMax.Milliseconds()),
	}
	delay := msDuration(e.roller.Roll("trickle_jitter_ms", jitter))
	e.trickles[h] = e.sched.Schedule(func() { e.trickle(h) }, delay, false)
	e.logger.Debug("refill started",
		zap.String("container", string(h)),
		zap.Int("budget", e.tunables.RespawnLootItemThreshold),
		zap.Duration("delay", delay),
	)
}

// trickle is one refill attempt: it spends one budget unit, makes at most
// one weighted draw, and either reschedules itself or resets the container
// once the budget is spent.
func (e *Engine) trickle(h grid.Handle) {
	delete(e.trickles, h)
	if !e.tunables.IsLootEnabled {
		return
	}
	remaining, ok := e.tracker.Consume(h)
	if !ok {
		return
	}
	c, ok := e.world.Container(h)
	if !ok {
		e.logger.Info("refill target vanished", zap.String("container", string(h)))
		e.UnregisterContainer(h)
		return
	}

	if e.permitsRefill(h) {
		if cfg, ok := e.catalog.PickOneByFlags(c.TypeFlags(), e.roller); ok {
			e.insertWithRetry(h, c, cfg, 1, ReasonTrickle)
		}
	}

	if remaining == 0 {
		e.resetContainer(h)
		return
	}
	e.trickles[h] = e.sched.Schedule(func() { e.trickle(h) }, e.cfg.TrickleDelay, false)
}

// resetContainer returns h to Fresh and notifies reset listeners.
func (e *Engine) resetContainer(h grid.Handle) {
	e.tracker.Remove(h)
	search := e.SearchDuration(h)
	for _, fn := range e.resetListeners {
		fn(h, search)
	}
	e.logger.Debug("container reset", zap.String("container", string(h)), zap.Duration("search", search))
}
