package game

import (
	"errors"
	"fmt"

	"wanbingo.sim/internal/sim/board"
	"wanbingo.sim/internal/sim/catalogs"
	"wanbingo.sim/internal/sim/draw"
)

var (
	// ErrConfig means a board cannot be formed from the master list.
	ErrConfig = errors.New("game: configuration error")
	// ErrInvariant means a board tile could not be resolved in the master list.
	ErrInvariant = errors.New("game: invariant violation")
)

type Result struct {
	Final        float64 `json:"final"`
	PotentialMax float64 `json:"potential_max"`
	Won          bool    `json:"won"`
	Confirmed    int     `json:"confirmed"`
}

// Input is the week-stable state every game reads. Weights is a snapshot and
// must not be written while games run.
type Input struct {
	Tiles     *catalogs.Tiles
	Confirmed draw.Set
	Weights   []float64
	Mode      board.ConfirmMode
}

func (in Input) Check() error {
	if in.Tiles == nil || in.Tiles.Len() < board.Size {
		n := 0
		if in.Tiles != nil {
			n = in.Tiles.Len()
		}
		return fmt.Errorf("%w: need at least %d tiles for a board, have %d", ErrConfig, board.Size, n)
	}
	if len(in.Weights) != in.Tiles.Len() {
		return fmt.Errorf("%w: %d weights for %d tiles", ErrConfig, len(in.Weights), in.Tiles.Len())
	}
	return nil
}

// Simulate deals one board and scores it.
func Simulate(src draw.Source, in Input) (Result, error) {
	if err := in.Check(); err != nil {
		return Result{}, err
	}
	b := board.Deal(src, in.Tiles.Len())
	mode := in.Mode
	if mode == "" {
		mode = board.ConfirmByPosition
	}
	mask := board.Confirm(b, in.Confirmed, mode)
	return Score(in, b, mask)
}

// Score computes the final score (paid only on a win) and the potential max
// (every position, always) for a dealt board.
func Score(in Input, b board.Board, mask board.Mask) (Result, error) {
	res := Result{Won: board.HasWin(mask), Confirmed: mask.Count()}
	for p, idx := range b {
		v, err := value(in, in.Tiles.Defs[idx])
		if err != nil {
			return Result{}, err
		}
		res.PotentialMax += v
		if res.Won && mask[p] {
			res.Final += v
		}
	}
	return res, nil
}

// value resolves the tile's current weight by identity, not by board slot.
func value(in Input, tile catalogs.TileDef) (float64, error) {
	i, ok := in.Tiles.Lookup(tile.ID)
	if !ok {
		return 0, fmt.Errorf("%w: tile %q not in master list", ErrInvariant, tile.ID)
	}
	return tile.X * in.Weights[i], nil
}
