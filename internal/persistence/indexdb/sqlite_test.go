package indexdb

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"wanbingo.sim/internal/sim/catalogs"
	"wanbingo.sim/internal/sim/runner"
	"wanbingo.sim/internal/sim/stats"
	"wanbingo.sim/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqWeek}

	s.RecordRunStart(runner.RunInfo{RunID: "a"})
	s.RecordWeek("a", runner.WeekLogEntry{Week: 1})
	s.RecordWeek("a", runner.WeekLogEntry{Week: 2})
	s.RecordRunEnd(runner.Report{}, nil)

	st := s.Stats()
	if st.DropWeekTotal != 2 {
		t.Fatalf("DropWeekTotal=%d want=2", st.DropWeekTotal)
	}
	if st.DropRunTotal != 2 {
		t.Fatalf("DropRunTotal=%d want=2", st.DropRunTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	s.RecordRunStart(runner.RunInfo{})
	s.RecordWeek("x", runner.WeekLogEntry{})
	s.RecordRunEnd(runner.Report{}, nil)
	if err := s.UpsertTiles(nil); err != nil {
		t.Fatalf("UpsertTiles: %v", err)
	}
	if st := s.Stats(); st.QueueCapacity != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestSQLiteIndex_RecordsRunAndWeeks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "runs.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	tiles, err := catalogs.NewTiles([]catalogs.TileDef{
		{ID: "a", X: 1, Y: 0.5},
		{ID: "b", X: 3, Y: 0.2},
	})
	if err != nil {
		t.Fatalf("tiles: %v", err)
	}
	if err := idx.UpsertTiles(tiles); err != nil {
		t.Fatalf("UpsertTiles: %v", err)
	}

	tun := tuning.Defaults()
	tun.Weeks = 2
	info := runner.RunInfo{RunID: "run-1", Tuning: tun, TilesDigest: tiles.Digest, Tiles: 2, StartedAt: time.Now()}
	idx.RecordRunStart(info)
	agg := stats.NewAggregator()
	for w := 1; w <= 2; w++ {
		wk := stats.NewWeek(w, 20+w, []stats.Game{{Final: 0, PotentialMax: 5}, {Final: float64(w), PotentialMax: 5}})
		agg.RecordWeek(wk)
		idx.RecordWeek("run-1", runner.WeekLogEntry{
			RunID:          "run-1",
			Week:           w,
			Games:          wk.Games,
			Wins:           wk.Wins,
			Losses:         wk.Losses,
			ConfirmedCount: wk.ConfirmedCount,
			MeanFinal:      wk.MeanFinal,
			Confirmed:      []int{0, 1},
			FinalScores:    wk.FinalScores,
		})
	}
	idx.RecordRunEnd(runner.BuildReport(info, agg.Summary(), time.Now()), errors.New("boom"))
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		status, errText, digest string
		weeks, games, wins      int
	)
	row := db.QueryRow(`SELECT status,error,tiles_digest,weeks,total_games,total_wins FROM runs WHERE run_id='run-1'`)
	if err := row.Scan(&status, &errText, &digest, &weeks, &games, &wins); err != nil {
		t.Fatalf("Scan run: %v", err)
	}
	if status != "failed" || errText != "boom" || digest != tiles.Digest || weeks != 2 || games != 4 || wins != 2 {
		t.Fatalf("run row: status=%s err=%s weeks=%d games=%d wins=%d", status, errText, weeks, games, wins)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM weeks WHERE run_id='run-1'`).Scan(&n); err != nil {
		t.Fatalf("count weeks: %v", err)
	}
	if n != 2 {
		t.Fatalf("weeks=%d want 2", n)
	}
	var maxFinal float64
	var confirmed string
	if err := db.QueryRow(`SELECT max_final,confirmed_json FROM weeks WHERE run_id='run-1' AND week=2`).Scan(&maxFinal, &confirmed); err != nil {
		t.Fatalf("week 2: %v", err)
	}
	if maxFinal != 2 || confirmed != "[0,1]" {
		t.Fatalf("week 2: max=%v confirmed=%s", maxFinal, confirmed)
	}

	var id string
	var x float64
	if err := db.QueryRow(`SELECT id,x FROM tiles WHERE digest=? AND idx=1`, tiles.Digest).Scan(&id, &x); err != nil {
		t.Fatalf("tile: %v", err)
	}
	if id != "b" || x != 3 {
		t.Fatalf("tile row: id=%s x=%v", id, x)
	}
}
