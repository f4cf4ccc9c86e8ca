package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wanbingo.sim/internal/sim/board"
	"wanbingo.sim/internal/sim/catalogs"
	"wanbingo.sim/internal/sim/draw"
	"wanbingo.sim/internal/sim/stats"
	"wanbingo.sim/internal/sim/tuning"
	"wanbingo.sim/internal/sim/week"
	"wanbingo.sim/internal/sim/weights"
)

var ErrConfig = errors.New("runner: configuration error")

// HistogramBinWidth is the score bucket width used for report histograms.
const HistogramBinWidth = 5.0

type WeekLogger interface {
	WriteWeek(entry WeekLogEntry) error
}

// Index receives run and week records. Implementations must not block the run.
type Index interface {
	RecordRunStart(info RunInfo)
	RecordWeek(runID string, entry WeekLogEntry)
	RecordRunEnd(rep Report, runErr error)
}

// Publisher fans week results out to live observers.
type Publisher interface {
	PublishWeek(entry WeekLogEntry)
	PublishDone(rep Report, runErr error)
}

// WeekLogEntry is one line of the week log.
type WeekLogEntry struct {
	RunID          string    `json:"run_id"`
	Week           int       `json:"week"`
	Games          int       `json:"games"`
	Wins           int       `json:"wins"`
	Losses         int       `json:"losses"`
	ConfirmedCount int       `json:"confirmed_count"`
	MeanFinal      float64   `json:"mean_final"`
	Confirmed      []int     `json:"confirmed"`
	FinalScores    []float64 `json:"final_scores"`
	PotentialMaxes []float64 `json:"potential_maxes"`
	Weights        []float64 `json:"weights"`
}

// Stats returns the week record the entry was built from.
func (e WeekLogEntry) Stats() stats.Week {
	return stats.Week{
		Index:          e.Week,
		Games:          e.Games,
		Wins:           e.Wins,
		Losses:         e.Losses,
		ConfirmedCount: e.ConfirmedCount,
		MeanFinal:      e.MeanFinal,
		FinalScores:    e.FinalScores,
		PotentialMaxes: e.PotentialMaxes,
	}
}

type RunInfo struct {
	RunID       string        `json:"run_id"`
	Tuning      tuning.Tuning `json:"tuning"`
	TilesDigest string        `json:"tiles_digest"`
	Tiles       int           `json:"tiles"`
	StartedAt   time.Time     `json:"started_at"`
}

type Report struct {
	RunInfo
	EndedAt time.Time     `json:"ended_at"`
	Summary stats.Summary `json:"summary"`

	FinalHistogram     []stats.Bin `json:"final_histogram"`
	PotentialHistogram []stats.Bin `json:"potential_histogram"`
	WeeklyBoxes        []stats.Box `json:"weekly_boxes"`
}

type Runner struct {
	RunID  string
	Tiles  *catalogs.Tiles
	Tuning tuning.Tuning
	Log    zerolog.Logger

	// WeekSource drives the per-week draws. Defaults to draw.NewSource().
	WeekSource draw.Source
	// GameSource seeds each game. Defaults to draw.NewSource.
	GameSource func() draw.Source

	weekLogger WeekLogger
	index      Index
	publisher  Publisher

	now func() time.Time
}

func New(runID string, tiles *catalogs.Tiles, t tuning.Tuning, log zerolog.Logger) *Runner {
	return &Runner{
		RunID:  runID,
		Tiles:  tiles,
		Tuning: t,
		Log:    log,
		now:    time.Now,
	}
}

func (r *Runner) SetWeekLogger(l WeekLogger) { r.weekLogger = l }
func (r *Runner) SetIndex(ix Index)          { r.index = ix }
func (r *Runner) SetPublisher(p Publisher)   { r.publisher = p }

// Validate rejects a configuration that could not play a single week.
func (r *Runner) Validate() error {
	if r.Tiles == nil || r.Tiles.Len() < board.Size {
		n := 0
		if r.Tiles != nil {
			n = r.Tiles.Len()
		}
		return fmt.Errorf("%w: need at least %d tiles, have %d", ErrConfig, board.Size, n)
	}
	if err := r.Tuning.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if r.Tuning.MinConfirmed > r.Tiles.Len() {
		return fmt.Errorf("%w: min_confirmed %d exceeds %d tiles", ErrConfig, r.Tuning.MinConfirmed, r.Tiles.Len())
	}
	return nil
}

// Run plays every week in order and returns the report. The first failing
// game stops the run; the partial report is still handed to the sinks.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if err := r.Validate(); err != nil {
		return Report{}, err
	}
	now := r.now
	if now == nil {
		now = time.Now
	}
	weekSrc := r.WeekSource
	if weekSrc == nil {
		weekSrc = draw.NewSource()
	}

	info := RunInfo{
		RunID:       r.RunID,
		Tuning:      r.Tuning,
		TilesDigest: r.Tiles.Digest,
		Tiles:       r.Tiles.Len(),
		StartedAt:   now().UTC(),
	}
	if r.index != nil {
		r.index.RecordRunStart(info)
	}

	driver := &week.Driver{
		Tiles: r.Tiles,
		Ranges: week.Ranges{
			MinGames:     r.Tuning.MinGames,
			MaxGames:     r.Tuning.MaxGames,
			MinConfirmed: r.Tuning.MinConfirmed,
			MaxConfirmed: r.Tuning.MaxConfirmed,
		},
		Workers:   r.Tuning.EffectiveWorkers(),
		Mode:      board.ConfirmMode(r.Tuning.ConfirmMode),
		Grow:      r.Tuning.GrowFactor,
		Shrink:    r.Tuning.ShrinkFactor,
		NewSource: r.GameSource,
	}
	table := weights.New(r.Tiles)
	agg := stats.NewAggregator()

	r.Log.Info().
		Str("run_id", r.RunID).
		Int("tiles", r.Tiles.Len()).
		Int("weeks", r.Tuning.Weeks).
		Float64("grow_factor", r.Tuning.GrowFactor).
		Float64("shrink_factor", r.Tuning.ShrinkFactor).
		Int("workers", driver.Workers).
		Str("confirm_mode", string(driver.Mode)).
		Msg("starting simulation")

	start := time.Now()
	var runErr error
	for w := 1; w <= r.Tuning.Weeks; w++ {
		res, err := driver.RunWeek(ctx, weekSrc, w, table)
		if err != nil {
			runErr = fmt.Errorf("week %d: %w", w, err)
			break
		}
		agg.RecordWeek(res.Week)
		r.emit(WeekLogEntry{
			RunID:          r.RunID,
			Week:           w,
			Games:          res.Week.Games,
			Wins:           res.Week.Wins,
			Losses:         res.Week.Losses,
			ConfirmedCount: res.Week.ConfirmedCount,
			MeanFinal:      res.Week.MeanFinal,
			Confirmed:      res.Confirmed.Sorted(),
			FinalScores:    res.Week.FinalScores,
			PotentialMaxes: res.Week.PotentialMaxes,
			Weights:        table.Snapshot(),
		})
		if every := r.Tuning.ProgressEveryWeeks; every > 0 && (w-1)%every == 0 {
			r.progress(w, agg, time.Since(start))
		}
	}

	rep := BuildReport(info, agg.Summary(), now().UTC())
	if r.index != nil {
		r.index.RecordRunEnd(rep, runErr)
	}
	if r.publisher != nil {
		r.publisher.PublishDone(rep, runErr)
	}
	if runErr != nil {
		return rep, runErr
	}
	r.Log.Info().
		Int("weeks", rep.Summary.Weeks).
		Int("games", rep.Summary.TotalGames).
		Float64("win_rate", rep.Summary.WinRate).
		Dur("elapsed", time.Since(start)).
		Msg("done")
	return rep, nil
}

func (r *Runner) emit(e WeekLogEntry) {
	if r.weekLogger != nil {
		if err := r.weekLogger.WriteWeek(e); err != nil {
			r.Log.Warn().Err(err).Int("week", e.Week).Msg("week log write failed")
		}
	}
	if r.index != nil {
		r.index.RecordWeek(r.RunID, e)
	}
	if r.publisher != nil {
		r.publisher.PublishWeek(e)
	}
}

func (r *Runner) progress(w int, agg *stats.Aggregator, elapsed time.Duration) {
	games, wins := agg.Totals()
	var perSec, rate float64
	if secs := elapsed.Seconds(); secs > 0 {
		perSec = float64(games) / secs
	}
	if games > 0 {
		rate = float64(wins) / float64(games)
	}
	r.Log.Info().
		Int("week", w).
		Int("of", r.Tuning.Weeks).
		Float64("games_per_sec", perSec).
		Float64("win_rate_pct", rate*100).
		Msg("progress")
}

// BuildReport derives the chart data from a summary.
func BuildReport(info RunInfo, s stats.Summary, ended time.Time) Report {
	rep := Report{
		RunInfo:            info,
		EndedAt:            ended,
		Summary:            s,
		FinalHistogram:     stats.Histogram(s.FinalScores, HistogramBinWidth),
		PotentialHistogram: stats.Histogram(s.PotentialMaxes, HistogramBinWidth),
		WeeklyBoxes:        make([]stats.Box, 0, len(s.WeeklyRaw)),
	}
	for _, raw := range s.WeeklyRaw {
		b, _ := stats.Quartiles(raw)
		rep.WeeklyBoxes = append(rep.WeeklyBoxes, b)
	}
	return rep
}
