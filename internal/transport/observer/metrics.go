package observer

import (
	"fmt"
	"io"
	"net/http"
)

// MetricsHandler serves Prometheus text format. extra writers append their
// own families after the observer's.
func (s *Server) MetricsHandler(extra ...func(io.Writer)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		s.WriteMetrics(rw)
		for _, fn := range extra {
			fn(rw)
		}
	}
}

func (s *Server) WriteMetrics(w io.Writer) {
	s.mu.Lock()
	clients := len(s.subs)
	week := 0
	var mean float64
	if s.latest != nil {
		week = s.latest.Week
		mean = s.latest.MeanFinal
	}
	done := 0
	if s.done != nil {
		done = 1
	}
	s.mu.Unlock()

	fmt.Fprintf(w, "# HELP wanbingo_observer_clients Current number of connected observers.\n")
	fmt.Fprintf(w, "# TYPE wanbingo_observer_clients gauge\n")
	fmt.Fprintf(w, "wanbingo_observer_clients %d\n", clients)

	fmt.Fprintf(w, "# HELP wanbingo_run_week Last completed week.\n")
	fmt.Fprintf(w, "# TYPE wanbingo_run_week gauge\n")
	fmt.Fprintf(w, "wanbingo_run_week %d\n", week)

	fmt.Fprintf(w, "# HELP wanbingo_run_week_mean_final Mean final score of the last completed week.\n")
	fmt.Fprintf(w, "# TYPE wanbingo_run_week_mean_final gauge\n")
	fmt.Fprintf(w, "wanbingo_run_week_mean_final %g\n", mean)

	fmt.Fprintf(w, "# HELP wanbingo_run_done Whether the run has finished.\n")
	fmt.Fprintf(w, "# TYPE wanbingo_run_done gauge\n")
	fmt.Fprintf(w, "wanbingo_run_done %d\n", done)

	fmt.Fprintf(w, "# HELP wanbingo_observer_weeks_published_total Weeks published to observers.\n")
	fmt.Fprintf(w, "# TYPE wanbingo_observer_weeks_published_total counter\n")
	fmt.Fprintf(w, "wanbingo_observer_weeks_published_total %d\n", s.weeksPublished.Load())

	fmt.Fprintf(w, "# HELP wanbingo_observer_dropped_total Messages dropped for slow observers.\n")
	fmt.Fprintf(w, "# TYPE wanbingo_observer_dropped_total counter\n")
	fmt.Fprintf(w, "wanbingo_observer_dropped_total %d\n", s.dropped.Load())
}
