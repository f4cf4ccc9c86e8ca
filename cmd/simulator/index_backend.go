package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"wanbingo.sim/internal/persistence/indexdb"
	"wanbingo.sim/internal/sim/catalogs"
	"wanbingo.sim/internal/sim/runner"
)

type runIndex interface {
	runner.Index
	Close() error
	UpsertTiles(tiles *catalogs.Tiles) error
	Stats() indexdb.Stats
}

// indexPath is shared by every run on a data dir.
func indexPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "runs.sqlite")
}

func openRunIndex(dataDir string, disableDB bool) (runIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("WB_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(indexPath(dataDir))
	default:
		return nil, fmt.Errorf("unsupported WB_INDEX_BACKEND: %s", backend)
	}
}

func writeIndexMetrics(w io.Writer, idx runIndex) {
	if idx == nil {
		return
	}
	st := idx.Stats()
	fmt.Fprintf(w, "# HELP wanbingo_index_queue_depth Current index writer queue depth.\n")
	fmt.Fprintf(w, "# TYPE wanbingo_index_queue_depth gauge\n")
	fmt.Fprintf(w, "wanbingo_index_queue_depth %d\n", st.QueueDepth)

	fmt.Fprintf(w, "# HELP wanbingo_index_queue_capacity Index writer queue capacity.\n")
	fmt.Fprintf(w, "# TYPE wanbingo_index_queue_capacity gauge\n")
	fmt.Fprintf(w, "wanbingo_index_queue_capacity %d\n", st.QueueCapacity)

	fmt.Fprintf(w, "# HELP wanbingo_index_dropped_total Index records dropped because the queue was full.\n")
	fmt.Fprintf(w, "# TYPE wanbingo_index_dropped_total counter\n")
	fmt.Fprintf(w, "wanbingo_index_dropped_total{kind=\"week\"} %d\n", st.DropWeekTotal)
	fmt.Fprintf(w, "wanbingo_index_dropped_total{kind=\"run\"} %d\n", st.DropRunTotal)
}
