package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"wanbingo.sim/internal/sim/catalogs"
	"wanbingo.sim/internal/sim/runner"
)

// SQLiteIndex is a queryable secondary index of runs and weeks. Writes go
// through a buffered channel to a single writer goroutine; the JSONL week log
// stays the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropWeekTotal atomic.Uint64
	dropRunTotal  atomic.Uint64
}

type reqKind int

const (
	reqRunStart reqKind = iota + 1
	reqWeek
	reqRunEnd
)

type req struct {
	kind reqKind

	start runner.RunInfo
	week  weekRow
	end   runEndRow
}

type weekRow struct {
	RunID string
	Entry runner.WeekLogEntry
}

type runEndRow struct {
	Report runner.Report
	Status string
	Error  string
}

// Stats is the writer queue state, exposed for /metrics.
type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropWeekTotal uint64 `json:"drop_week_total"`
	DropRunTotal  uint64 `json:"drop_run_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			error TEXT,
			weeks_planned INTEGER NOT NULL,
			weeks INTEGER NOT NULL DEFAULT 0,
			tiles INTEGER NOT NULL,
			tiles_digest TEXT NOT NULL,
			tuning_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL,
			total_games INTEGER NOT NULL DEFAULT 0,
			total_wins INTEGER NOT NULL DEFAULT 0,
			total_losses INTEGER NOT NULL DEFAULT 0,
			mean_final REAL NOT NULL DEFAULT 0,
			min_final REAL NOT NULL DEFAULT 0,
			max_final REAL NOT NULL DEFAULT 0,
			win_rate REAL NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS weeks (
			run_id TEXT NOT NULL,
			week INTEGER NOT NULL,
			games INTEGER NOT NULL,
			wins INTEGER NOT NULL,
			losses INTEGER NOT NULL,
			confirmed_count INTEGER NOT NULL,
			mean_final REAL NOT NULL,
			max_final REAL NOT NULL,
			confirmed_json TEXT NOT NULL,
			PRIMARY KEY (run_id, week)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_weeks_mean ON weeks(run_id, mean_final);`,
		`CREATE TABLE IF NOT EXISTS tiles (
			digest TEXT NOT NULL,
			idx INTEGER NOT NULL,
			id TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			PRIMARY KEY (digest, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tiles_id ON tiles(id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropWeekTotal: s.dropWeekTotal.Load(),
		DropRunTotal:  s.dropRunTotal.Load(),
	}
}

func (s *SQLiteIndex) RecordRunStart(info runner.RunInfo) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqRunStart, start: info}:
	default:
		s.dropRunTotal.Add(1)
	}
}

func (s *SQLiteIndex) RecordWeek(runID string, entry runner.WeekLogEntry) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqWeek, week: weekRow{RunID: runID, Entry: entry}}:
	default:
		// Drop if the indexer falls behind; the week log remains the source of truth.
		s.dropWeekTotal.Add(1)
	}
}

func (s *SQLiteIndex) RecordRunEnd(rep runner.Report, runErr error) {
	if s == nil || s.closed.Load() {
		return
	}
	row := runEndRow{Report: rep, Status: "done"}
	if runErr != nil {
		row.Status = "failed"
		row.Error = runErr.Error()
	}
	select {
	case s.ch <- req{kind: reqRunEnd, end: row}:
	default:
		s.dropRunTotal.Add(1)
	}
}

// UpsertTiles stores the master list under its digest so runs can be joined
// to the exact tiles they used. Call it before recording any run: it shares
// the single connection with the writer loop.
func (s *SQLiteIndex) UpsertTiles(tiles *catalogs.Tiles) error {
	if s == nil || tiles == nil {
		return nil
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO tiles(digest,idx,id,x,y) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, d := range tiles.Defs {
		if _, err := stmt.Exec(tiles.Digest, i, d.ID, d.X, d.Y); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,started_at,status,weeks_planned,tiles,tiles_digest,tuning_digest,tuning_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertWeek, _ := s.db.Prepare(`INSERT OR REPLACE INTO weeks(run_id,week,games,wins,losses,confirmed_count,mean_final,max_final,confirmed_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	updateRun, _ := s.db.Prepare(`UPDATE runs SET ended_at=?,status=?,error=?,weeks=?,total_games=?,total_wins=?,total_losses=?,mean_final=?,min_final=?,max_final=?,win_rate=? WHERE run_id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRun, insertWeek, updateRun} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRunStart:
			in := r.start
			tj, _ := json.Marshal(in.Tuning)
			if insertRun != nil {
				if _, err := tx.Stmt(insertRun).Exec(
					in.RunID,
					in.StartedAt.UTC().Format(time.RFC3339Nano),
					"running",
					in.Tuning.Weeks,
					in.Tiles,
					in.TilesDigest,
					sha256Hex(tj),
					string(tj),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqWeek:
			e := r.week.Entry
			cj, _ := json.Marshal(e.Confirmed)
			maxFinal := 0.0
			for _, f := range e.FinalScores {
				maxFinal = max(maxFinal, f)
			}
			if insertWeek != nil {
				if _, err := tx.Stmt(insertWeek).Exec(
					r.week.RunID,
					e.Week,
					e.Games,
					e.Wins,
					e.Losses,
					e.ConfirmedCount,
					e.MeanFinal,
					maxFinal,
					string(cj),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqRunEnd:
			rep := r.end.Report
			sum := rep.Summary
			var errText any
			if r.end.Error != "" {
				errText = r.end.Error
			}
			if updateRun != nil {
				if _, err := tx.Stmt(updateRun).Exec(
					rep.EndedAt.UTC().Format(time.RFC3339Nano),
					r.end.Status,
					errText,
					sum.Weeks,
					sum.TotalGames,
					sum.TotalWins,
					sum.TotalLosses,
					sum.MeanFinal,
					sum.MinFinal,
					sum.MaxFinal,
					sum.WinRate,
					rep.RunID,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			// Run rows commit eagerly.
			commit()
			continue
		}
		flushIfNeeded()
	}

	commit()
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
