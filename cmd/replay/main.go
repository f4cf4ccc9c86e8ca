package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	persistlog "wanbingo.sim/internal/persistence/log"
	"wanbingo.sim/internal/persistence/snapshot"
	"wanbingo.sim/internal/sim/catalogs"
	"wanbingo.sim/internal/sim/draw"
	"wanbingo.sim/internal/sim/runner"
	"wanbingo.sim/internal/sim/stats"
	"wanbingo.sim/internal/sim/weights"
)

func main() {
	var (
		runDir    = flag.String("run", "", "run directory containing report.snap.zst and weeks/")
		snapPath  = flag.String("snapshot", "", "path to report .snap.zst (default: <run>/report.snap.zst)")
		weeksDir  = flag.String("weeks", "", "dir containing weeks-*.jsonl.zst (default: <run>/weeks)")
		tilesPath = flag.String("tiles", "", "tiles master list; when set, logged weights are re-derived and checked")
	)
	flag.Parse()

	if *runDir == "" && *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -run or -snapshot")
		os.Exit(2)
	}
	if *snapPath == "" {
		*snapPath = filepath.Join(*runDir, snapshot.FileName)
	}
	if *weeksDir == "" && *runDir != "" {
		*weeksDir = filepath.Join(*runDir, "weeks")
	}

	snap, err := snapshot.ReadReport(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	rep := snap.Report
	fmt.Printf("report v%d run=%s weeks=%d games=%d wins=%d losses=%d mean_final=%.4f win_rate=%.4f tiles=%d digest=%s\n",
		snap.Header.Version, rep.RunID, rep.Summary.Weeks, rep.Summary.TotalGames, rep.Summary.TotalWins,
		rep.Summary.TotalLosses, rep.Summary.MeanFinal, rep.Summary.WinRate, rep.Tiles, rep.TilesDigest)

	if *weeksDir == "" {
		return
	}

	var check *weightCheck
	if *tilesPath != "" {
		tiles, err := catalogs.LoadTiles(*tilesPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load tiles:", err)
			os.Exit(1)
		}
		if tiles.Digest != rep.TilesDigest {
			fmt.Fprintf(os.Stderr, "tiles digest mismatch: file=%s report=%s\n", tiles.Digest, rep.TilesDigest)
			os.Exit(1)
		}
		check = &weightCheck{tiles: tiles, table: weights.New(tiles), grow: rep.Tuning.GrowFactor, shrink: rep.Tuning.ShrinkFactor}
	}

	files, err := persistlog.WeekFiles(*weeksDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list weeks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no week files found in", *weeksDir)
		os.Exit(1)
	}

	agg := stats.NewAggregator()
	next := 1
	for _, path := range files {
		err := persistlog.ReadWeeks(path, func(e runner.WeekLogEntry) error {
			if e.RunID != rep.RunID {
				return fmt.Errorf("run mismatch: entry=%s report=%s (file=%s)", e.RunID, rep.RunID, filepath.Base(path))
			}
			if e.Week != next {
				return fmt.Errorf("week gap: want=%d got=%d (file=%s)", next, e.Week, filepath.Base(path))
			}
			next++
			if err := verifyEntry(e); err != nil {
				return err
			}
			if check != nil {
				if err := check.apply(e); err != nil {
					return err
				}
			}
			agg.RecordWeek(e.Stats())
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}

	if err := compareSummary(agg.Summary(), rep.Summary); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d weeks weights_checked=%v\n", next-1, check != nil)
}

// verifyEntry checks an entry is internally consistent.
func verifyEntry(e runner.WeekLogEntry) error {
	if len(e.FinalScores) != e.Games || len(e.PotentialMaxes) != e.Games {
		return fmt.Errorf("week %d: %d games but %d/%d scores", e.Week, e.Games, len(e.FinalScores), len(e.PotentialMaxes))
	}
	if e.Wins+e.Losses != e.Games {
		return fmt.Errorf("week %d: wins+losses=%d games=%d", e.Week, e.Wins+e.Losses, e.Games)
	}
	if len(e.Confirmed) != e.ConfirmedCount {
		return fmt.Errorf("week %d: confirmed_count=%d but %d indices", e.Week, e.ConfirmedCount, len(e.Confirmed))
	}
	got := stats.NewWeek(e.Week, e.ConfirmedCount, gamesOf(e))
	if got.Wins != e.Wins || !approxEqual(got.MeanFinal, e.MeanFinal) {
		return fmt.Errorf("week %d: recomputed wins=%d mean=%v, logged wins=%d mean=%v", e.Week, got.Wins, got.MeanFinal, e.Wins, e.MeanFinal)
	}
	for i := range e.FinalScores {
		if e.FinalScores[i] > e.PotentialMaxes[i]+1e-9 {
			return fmt.Errorf("week %d game %d: final %v exceeds potential max %v", e.Week, i, e.FinalScores[i], e.PotentialMaxes[i])
		}
	}
	return nil
}

func gamesOf(e runner.WeekLogEntry) []stats.Game {
	out := make([]stats.Game, len(e.FinalScores))
	for i := range out {
		out[i] = stats.Game{Final: e.FinalScores[i], PotentialMax: e.PotentialMaxes[i]}
	}
	return out
}

type weightCheck struct {
	tiles  *catalogs.Tiles
	table  *weights.Table
	grow   float64
	shrink float64
}

// apply re-derives the week's weight update from the confirmed set and
// compares it with the logged table.
func (c *weightCheck) apply(e runner.WeekLogEntry) error {
	for _, i := range e.Confirmed {
		if i < 0 || i >= c.tiles.Len() {
			return fmt.Errorf("week %d: confirmed index %d out of range", e.Week, i)
		}
	}
	if err := c.table.Update(c.tiles, draw.NewSet(e.Confirmed...), c.grow, c.shrink); err != nil {
		return err
	}
	if len(e.Weights) != c.table.Len() {
		return fmt.Errorf("week %d: %d weights logged for %d tiles", e.Week, len(e.Weights), c.table.Len())
	}
	for i, w := range e.Weights {
		if w != c.table.At(i) {
			return fmt.Errorf("week %d: weight[%d] got=%v want=%v", e.Week, i, w, c.table.At(i))
		}
	}
	return nil
}

func compareSummary(got, want stats.Summary) error {
	switch {
	case got.Weeks != want.Weeks:
		return fmt.Errorf("weeks: log=%d report=%d", got.Weeks, want.Weeks)
	case got.TotalGames != want.TotalGames:
		return fmt.Errorf("total games: log=%d report=%d", got.TotalGames, want.TotalGames)
	case got.TotalWins != want.TotalWins || got.TotalLosses != want.TotalLosses:
		return fmt.Errorf("wins/losses: log=%d/%d report=%d/%d", got.TotalWins, got.TotalLosses, want.TotalWins, want.TotalLosses)
	case !approxEqual(got.MeanFinal, want.MeanFinal):
		return fmt.Errorf("mean final: log=%v report=%v", got.MeanFinal, want.MeanFinal)
	case got.MinFinal != want.MinFinal || got.MaxFinal != want.MaxFinal:
		return fmt.Errorf("min/max final: log=%v/%v report=%v/%v", got.MinFinal, got.MaxFinal, want.MinFinal, want.MaxFinal)
	case !approxEqual(got.MeanPotentialMax, want.MeanPotentialMax):
		return fmt.Errorf("mean potential: log=%v report=%v", got.MeanPotentialMax, want.MeanPotentialMax)
	}
	return nil
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
