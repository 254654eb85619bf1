package respawn

import "github.com/cory-johannsen/loot/internal/game/grid"

// Proximity is a snapshot of the cells around active players. Dead zone
// cells forbid spawning; respawn zone cells permit refills.
type Proximity struct {
	dead    map[grid.Cell]struct{}
	respawn map[grid.Cell]struct{}
	players int
}

// ComputeProximity builds a snapshot from player positions. Radii are in
// cells and measured as Chebyshev distance.
//
// Precondition: cellSize > 0; radii >= 0.
func ComputeProximity(players []grid.Position, cellSize int, deadRadius, respawnRadius int) *Proximity {
	p := &Proximity{
		dead:    make(map[grid.Cell]struct{}),
		respawn: make(map[grid.Cell]struct{}),
		players: len(players),
	}
	for _, pos := range players {
		center := grid.CellAt(pos, cellSize)
		for _, c := range grid.Around(center, deadRadius) {
			p.dead[c] = struct{}{}
		}
		for _, c := range grid.Around(center, respawnRadius) {
			p.respawn[c] = struct{}{}
		}
	}
	return p
}

// InDeadZone reports whether c is within the dead radius of any player.
// A nil Proximity has no dead zone.
func (p *Proximity) InDeadZone(c grid.Cell) bool {
	if p == nil {
		return false
	}
	_, ok := p.dead[c]
	return ok
}

// InRespawnZone reports whether c is within the respawn radius of any player.
func (p *Proximity) InRespawnZone(c grid.Cell) bool {
	if p == nil {
		return false
	}
	_, ok := p.respawn[c]
	return ok
}

// Permits reports whether a refill may target c.
func (p *Proximity) Permits(c grid.Cell) bool {
	return p.InRespawnZone(c) && !p.InDeadZone(c)
}

// DeadCells returns the number of dead zone cells.
func (p *Proximity) DeadCells() int {
	if p == nil {
		return 0
	}
	return len(p.dead)
}

// RespawnCells returns the number of respawn zone cells.
func (p *Proximity) RespawnCells() int {
	if p == nil {
		return 0
	}
	return len(p.respawn)
}

// Players returns the number of player positions in the snapshot.
func (p *Proximity) Players() int {
	if p == nil {
		return 0
	}
	return p.players
}
