package weights

import (
	"fmt"

	"wanbingo.sim/internal/sim/catalogs"
	"wanbingo.sim/internal/sim/draw"
)

// Table holds each tile's current weight, indexed like the master list.
type Table struct {
	w []float64
}

// New seeds a table from every tile's baseline y.
func New(tiles *catalogs.Tiles) *Table {
	return &Table{w: tiles.Baselines()}
}

func (t *Table) Len() int { return len(t.w) }

func (t *Table) At(i int) float64 { return t.w[i] }

// Snapshot returns a copy that later updates do not touch.
func (t *Table) Snapshot() []float64 {
	out := make([]float64, len(t.w))
	copy(out, t.w)
	return out
}

// Update re-derives every weight from its tile's baseline: confirmed tiles grow
// (capped at 1), the rest shrink (floored at 0). Previous weights are ignored.
func (t *Table) Update(tiles *catalogs.Tiles, confirmed draw.Set, grow, shrink float64) error {
	if tiles.Len() != len(t.w) {
		return fmt.Errorf("weights: table has %d entries for %d tiles", len(t.w), tiles.Len())
	}
	for i, d := range tiles.Defs {
		if confirmed.Contains(i) {
			t.w[i] = min(1.0, d.Y*grow)
		} else {
			t.w[i] = max(0.0, d.Y*shrink)
		}
	}
	return nil
}
