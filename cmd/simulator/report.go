package main

import (
	"fmt"
	"io"
	"strings"

	"wanbingo.sim/internal/sim/runner"
	"wanbingo.sim/internal/sim/stats"
)

const maxWeekRows = 20

func printReport(w io.Writer, rep runner.Report) {
	s := rep.Summary
	fmt.Fprintf(w, "\n=== Global statistics over all %d games ===\n", s.TotalGames)
	fmt.Fprintf(w, "Mean final score : %.2f\n", s.MeanFinal)
	fmt.Fprintf(w, "Min  final score : %.2f\n", s.MinFinal)
	fmt.Fprintf(w, "Max  final score : %.2f\n\n", s.MaxFinal)
	fmt.Fprintf(w, "Mean potential   : %.2f\n", s.MeanPotentialMax)
	fmt.Fprintf(w, "Total wins       : %d\n", s.TotalWins)
	fmt.Fprintf(w, "Total losses     : %d\n", s.TotalLosses)
	fmt.Fprintf(w, "Weeks            : %d\n", s.Weeks)
	fmt.Fprintf(w, "Win rate         : %.2f%%\n", s.WinRate*100)

	fmt.Fprintf(w, "\n--- Final scores (bin width %.0f) ---\n", runner.HistogramBinWidth)
	printHistogram(w, rep.FinalHistogram)
	fmt.Fprintf(w, "\n--- Potential max scores (bin width %.0f) ---\n", runner.HistogramBinWidth)
	printHistogram(w, rep.PotentialHistogram)

	fmt.Fprintf(w, "\n--- Weekly final scores ---\n")
	fmt.Fprintf(w, "%6s %8s %8s %8s %8s %8s %8s\n", "week", "mean", "min", "q1", "median", "q3", "max")
	step := 1
	if len(s.WeeklyMeans) > maxWeekRows {
		step = (len(s.WeeklyMeans) + maxWeekRows - 1) / maxWeekRows
	}
	for i := 0; i < len(s.WeeklyMeans); i += step {
		var b stats.Box
		if i < len(rep.WeeklyBoxes) {
			b = rep.WeeklyBoxes[i]
		}
		fmt.Fprintf(w, "%6d %8.2f %8.2f %8.2f %8.2f %8.2f %8.2f\n", i+1, s.WeeklyMeans[i], b.Min, b.Q1, b.Median, b.Q3, b.Max)
	}
}

func printHistogram(w io.Writer, bins []stats.Bin) {
	peak := 0
	for _, b := range bins {
		peak = max(peak, b.Count)
	}
	if peak == 0 {
		fmt.Fprintln(w, "(no data)")
		return
	}
	for _, b := range bins {
		bar := strings.Repeat("#", b.Count*40/peak)
		fmt.Fprintf(w, "[%7.1f, %7.1f) %8d %s\n", b.Lo, b.Hi, b.Count, bar)
	}
}
