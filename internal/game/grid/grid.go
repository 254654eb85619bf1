// Package grid partitions the world's horizontal plane into square cells and
// indexes container handles by the cell they were registered in.
package grid

import (
	"fmt"
	"math"
)

// DefaultCellSize is the cell edge length used when none is configured.
const DefaultCellSize = 100

// Handle is a stable identifier for an externally owned entity. The index
// never holds entity references; callers resolve handles at use time.
type Handle string

// Position is a world-space coordinate. Y is vertical and ignored by the grid.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Cell is the integer key of one grid square.
type Cell struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// String returns the cell in "x:z" form.
func (c Cell) String() string {
	return fmt.Sprintf("%d:%d", c.X, c.Z)
}

// CellAt returns the cell containing pos for the given cell size.
//
// Precondition: cellSize > 0.
// Postcondition: result == (floor(pos.X/cellSize), floor(pos.Z/cellSize)).
func CellAt(pos Position, cellSize int) Cell {
	size := float64(cellSize)
	return Cell{
		X: int(math.Floor(pos.X / size)),
		Z: int(math.Floor(pos.Z / size)),
	}
}

// Around returns every cell within a square of the given Chebyshev radius
// centred on c, including c itself.
//
// Postcondition: len(result) == (2*radius+1)^2 for radius >= 0; empty for radius < 0.
func Around(c Cell, radius int) []Cell {
	if radius < 0 {
		return nil
	}
	out := make([]Cell, 0, (2*radius+1)*(2*radius+1))
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			out = append(out, Cell{X: c.X + dx, Z: c.Z + dz})
		}
	}
	return out
}

// Index maps cells to the set of handles registered inside them.
//
// Invariant: every handle appears in at most one cell per insertion position;
// RemoveByPosition must be given the same position used by InsertByPosition.
//
// Index is not safe for concurrent use; the engine mutates it from its tick only.
type Index struct {
	cellSize int
	cells    map[Cell]map[Handle]struct{}
	size     int
}

// NewIndex returns an empty Index using cellSize.
//
// Precondition: cellSize > 0; non-positive values fall back to DefaultCellSize.
// Postcondition: Len() == 0.
func NewIndex(cellSize int) *Index {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Index{
		cellSize: cellSize,
		cells:    make(map[Cell]map[Handle]struct{}),
	}
}

// CellSize returns the edge length of a cell.
func (i *Index) CellSize() int {
	return i.cellSize
}

// CellOf returns the cell pos falls in under this index's cell size.
func (i *Index) CellOf(pos Position) Cell {
	return CellAt(pos, i.cellSize)
}

// InsertByPosition registers h in the cell containing pos.
//
// Postcondition: h is returned by GetAll and HandlesIn(CellOf(pos)).
// Re-inserting the same handle at a position in the same cell is a no-op.
func (i *Index) InsertByPosition(pos Position, h Handle) {
	c := i.CellOf(pos)
	bucket, ok := i.cells[c]
	if !ok {
		bucket = make(map[Handle]struct{})
		i.cells[c] = bucket
	}
	if _, exists := bucket[h]; exists {
		return
	}
	bucket[h] = struct{}{}
	i.size++
}

// RemoveByPosition unregisters h from the cell containing pos.
//
// Postcondition: returns true iff h was present in that cell; empty cells are dropped.
func (i *Index) RemoveByPosition(pos Position, h Handle) bool {
	c := i.CellOf(pos)
	bucket, ok := i.cells[c]
	if !ok {
		return false
	}
	if _, exists := bucket[h]; !exists {
		return false
	}
	delete(bucket, h)
	i.size--
	if len(bucket) == 0 {
		delete(i.cells, c)
	}
	return true
}

// GetAll returns every registered handle exactly once in unspecified order.
//
// Postcondition: len(result) == Len().
func (i *Index) GetAll() []Handle {
	out := make([]Handle, 0, i.size)
	for _, bucket := range i.cells {
		for h := range bucket {
			out = append(out, h)
		}
	}
	return out
}

// HandlesIn returns the handles registered in c.
func (i *Index) HandlesIn(c Cell) []Handle {
	bucket := i.cells[c]
	out := make([]Handle, 0, len(bucket))
	for h := range bucket {
		out = append(out, h)
	}
	return out
}

// CountIn returns the number of handles registered in c.
func (i *Index) CountIn(c Cell) int {
	return len(i.cells[c])
}

// Len returns the number of registered handles.
func (i *Index) Len() int {
	return i.size
}

// CellCount returns the number of non-empty cells.
func (i *Index) CellCount() int {
	return len(i.cells)
}

// Rebuild returns a new Index with cellSize containing every handle of i,
// re-inserted at the position reported by positionOf. The receiver is not
// modified, so a scan over it may continue while the replacement is built.
//
// Precondition: positionOf must return the position each handle was registered with.
// Postcondition: result.Len() == i.Len().
func (i *Index) Rebuild(cellSize int, positionOf func(Handle) Position) *Index {
	next := NewIndex(cellSize)
	for _, h := range i.GetAll() {
		next.InsertByPosition(positionOf(h), h)
	}
	return next
}
