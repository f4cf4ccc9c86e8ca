package stats

import "math"

// Game is one game's contribution to the aggregate.
type Game struct {
	Final        float64 `json:"final"`
	PotentialMax float64 `json:"potential_max"`
}

// Week is the driver's record of one completed week.
type Week struct {
	Index          int       `json:"week"`
	Games          int       `json:"games"`
	Wins           int       `json:"wins"`
	Losses         int       `json:"losses"`
	ConfirmedCount int       `json:"confirmed_count"`
	MeanFinal      float64   `json:"mean_final"`
	FinalScores    []float64 `json:"final_scores"`
	PotentialMaxes []float64 `json:"potential_maxes"`
}

// NewWeek builds a week record from its games.
func NewWeek(index, confirmedCount int, games []Game) Week {
	w := Week{
		Index:          index,
		Games:          len(games),
		ConfirmedCount: confirmedCount,
		FinalScores:    make([]float64, len(games)),
		PotentialMaxes: make([]float64, len(games)),
	}
	var sum float64
	for i, g := range games {
		w.FinalScores[i] = g.Final
		w.PotentialMaxes[i] = g.PotentialMax
		sum += g.Final
		if g.Final > 0 {
			w.Wins++
		}
	}
	w.Losses = w.Games - w.Wins
	if w.Games > 0 {
		w.MeanFinal = sum / float64(w.Games)
	}
	return w
}

// Aggregator accumulates every game and week of a run. It only appends.
type Aggregator struct {
	finalScores    []float64
	potentialMaxes []float64
	weeklyMeans    []float64
	weeklyRaw      [][]float64

	totalGames  int
	totalWins   int
	totalLosses int

	sumFinal     float64
	sumPotential float64
	minFinal     float64
	maxFinal     float64
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		minFinal: math.Inf(1),
		maxFinal: math.Inf(-1),
	}
}

// Merge folds per-game results into the running totals. Order does not matter.
func (a *Aggregator) Merge(games ...Game) {
	for _, g := range games {
		a.finalScores = append(a.finalScores, g.Final)
		a.potentialMaxes = append(a.potentialMaxes, g.PotentialMax)
		a.totalGames++
		if g.Final > 0 {
			a.totalWins++
		} else {
			a.totalLosses++
		}
		a.sumFinal += g.Final
		a.sumPotential += g.PotentialMax
		a.minFinal = math.Min(a.minFinal, g.Final)
		a.maxFinal = math.Max(a.maxFinal, g.Final)
	}
}

// RecordWeek merges a week's games and appends its mean and raw scores.
func (a *Aggregator) RecordWeek(w Week) {
	for i := range w.FinalScores {
		a.Merge(Game{Final: w.FinalScores[i], PotentialMax: w.PotentialMaxes[i]})
	}
	a.weeklyMeans = append(a.weeklyMeans, w.MeanFinal)
	raw := make([]float64, len(w.FinalScores))
	copy(raw, w.FinalScores)
	a.weeklyRaw = append(a.weeklyRaw, raw)
}

func (a *Aggregator) Totals() (games, wins int) { return a.totalGames, a.totalWins }

// Summary is the read-only view handed to reporting.
type Summary struct {
	Weeks       int `json:"weeks"`
	TotalGames  int `json:"total_games"`
	TotalWins   int `json:"total_wins"`
	TotalLosses int `json:"total_losses"`

	MeanFinal        float64 `json:"mean_final"`
	MinFinal         float64 `json:"min_final"`
	MaxFinal         float64 `json:"max_final"`
	MeanPotentialMax float64 `json:"mean_potential_max"`
	WinRate          float64 `json:"win_rate"`

	WeeklyMeans    []float64   `json:"weekly_means"`
	WeeklyRaw      [][]float64 `json:"weekly_raw"`
	FinalScores    []float64   `json:"final_scores"`
	PotentialMaxes []float64   `json:"potential_maxes"`
}

// Summary copies the accumulated data out.
func (a *Aggregator) Summary() Summary {
	s := Summary{
		Weeks:          len(a.weeklyMeans),
		TotalGames:     a.totalGames,
		TotalWins:      a.totalWins,
		TotalLosses:    a.totalLosses,
		WeeklyMeans:    append([]float64(nil), a.weeklyMeans...),
		FinalScores:    append([]float64(nil), a.finalScores...),
		PotentialMaxes: append([]float64(nil), a.potentialMaxes...),
		WeeklyRaw:      make([][]float64, len(a.weeklyRaw)),
	}
	for i, raw := range a.weeklyRaw {
		s.WeeklyRaw[i] = append([]float64(nil), raw...)
	}
	if a.totalGames > 0 {
		n := float64(a.totalGames)
		s.MeanFinal = a.sumFinal / n
		s.MeanPotentialMax = a.sumPotential / n
		s.MinFinal = a.minFinal
		s.MaxFinal = a.maxFinal
		s.WinRate = float64(a.totalWins) / n
	}
	return s
}
