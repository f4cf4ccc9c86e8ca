package week

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"wanbingo.sim/internal/sim/board"
	"wanbingo.sim/internal/sim/catalogs"
	"wanbingo.sim/internal/sim/draw"
	"wanbingo.sim/internal/sim/game"
	"wanbingo.sim/internal/sim/stats"
	"wanbingo.sim/internal/sim/weights"
)

// Ranges bounds the per-week draws. Both ends are inclusive.
type Ranges struct {
	MinGames     int
	MaxGames     int
	MinConfirmed int
	MaxConfirmed int
}

// Driver plays one week at a time. It holds no per-week state.
type Driver struct {
	Tiles   *catalogs.Tiles
	Ranges  Ranges
	Workers int
	Mode    board.ConfirmMode
	Grow    float64
	Shrink  float64

	// NewSource seeds each game. Defaults to draw.NewSource.
	NewSource func() draw.Source
}

type Result struct {
	Week      stats.Week
	Confirmed draw.Set
	Games     []game.Result
}

// RunWeek draws the week's game count and confirmed set from src, plays every
// game in parallel against a frozen weight snapshot, then updates the table.
// A failing game cancels the rest and leaves the table untouched.
func (d *Driver) RunWeek(ctx context.Context, src draw.Source, index int, table *weights.Table) (Result, error) {
	n := d.Tiles.Len()
	games := draw.Between(src, d.Ranges.MinGames, d.Ranges.MaxGames)
	hi := min(d.Ranges.MaxConfirmed, n)
	if d.Ranges.MinConfirmed > hi {
		return Result{}, fmt.Errorf("%w: cannot confirm %d of %d tiles", game.ErrConfig, d.Ranges.MinConfirmed, n)
	}
	count := draw.Between(src, d.Ranges.MinConfirmed, hi)
	confirmed := draw.Sample(src, count, n)

	in := game.Input{
		Tiles:     d.Tiles,
		Confirmed: confirmed,
		Weights:   table.Snapshot(),
		Mode:      d.Mode,
	}
	if err := in.Check(); err != nil {
		return Result{}, err
	}

	newSource := d.NewSource
	if newSource == nil {
		newSource = draw.NewSource
	}
	workers := d.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]game.Result, games)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < games; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := game.Simulate(newSource(), in)
			if err != nil {
				return fmt.Errorf("week %d game %d: %w", index, i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	played := make([]stats.Game, games)
	for i, r := range results {
		played[i] = stats.Game{Final: r.Final, PotentialMax: r.PotentialMax}
	}
	if err := table.Update(d.Tiles, confirmed, d.Grow, d.Shrink); err != nil {
		return Result{}, err
	}
	return Result{
		Week:      stats.NewWeek(index, count, played),
		Confirmed: confirmed,
		Games:     results,
	}, nil
}
