package board

import "wanbingo.sim/internal/sim/draw"

const (
	Side   = 5
	Size   = Side * Side
	Center = 12
)

// Mask marks which board positions are confirmed.
type Mask [Size]bool

func (m Mask) Count() int {
	n := 0
	for _, ok := range m {
		if ok {
			n++
		}
	}
	return n
}

// Board is one game's draw: master-list indices by position.
type Board [Size]int

// Deal draws a board of distinct tile indices from a master list of n tiles.
func Deal(src draw.Source, n int) Board {
	var b Board
	copy(b[:], draw.Sample(src, Size, n).Indices())
	return b
}

// ConfirmMode selects how the weekly confirmed set maps onto a board.
type ConfirmMode string

const (
	// ConfirmByPosition treats each confirmed master-list index below Size as a board
	// position. Index 12 always marks the center.
	ConfirmByPosition ConfirmMode = "position"
	// ConfirmByIdentity marks a position when the tile dealt there is confirmed.
	// The center is still marked when index 12 is confirmed.
	ConfirmByIdentity ConfirmMode = "identity"
)

func (m ConfirmMode) Valid() bool {
	return m == ConfirmByPosition || m == ConfirmByIdentity
}

// Confirm builds the mask for board b given the week's confirmed set.
func Confirm(b Board, confirmed draw.Set, mode ConfirmMode) Mask {
	var m Mask
	if mode == ConfirmByIdentity {
		for p, idx := range b {
			if confirmed.Contains(idx) {
				m[p] = true
			}
		}
		if confirmed.Contains(Center) {
			m[Center] = true
		}
		return m
	}
	for _, idx := range confirmed.Indices() {
		if idx == Center {
			m[Center] = true
			continue
		}
		if idx >= 0 && idx < len(b) {
			m[idx] = true
		}
	}
	return m
}
