package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/runs.sqlite)")
	runID := fs.String("run", "", "run id (weeks; defaults to latest run)")
	digest := fs.String("digest", "", "tiles digest (tiles; defaults to the run's digest)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "runs.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if q != "runs" && strings.TrimSpace(*runID) == "" {
		id, err := latestRunID(db)
		if err != nil {
			fmt.Fprintln(os.Stderr, "latest run:", err)
			os.Exit(1)
		}
		if id == "" {
			fmt.Fprintln(os.Stderr, "no runs found")
			os.Exit(2)
		}
		*runID = id
	}
	if *limit <= 0 {
		*limit = 20
	}

	switch q {
	case "runs":
		rows, err := db.Query(`SELECT run_id,started_at,COALESCE(ended_at,''),status,COALESCE(error,''),weeks_planned,weeks,tiles,tiles_digest,total_games,total_wins,total_losses,mean_final,min_final,max_final,win_rate FROM runs ORDER BY started_at DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				RunID        string  `json:"run_id"`
				StartedAt    string  `json:"started_at"`
				EndedAt      string  `json:"ended_at,omitempty"`
				Status       string  `json:"status"`
				Error        string  `json:"error,omitempty"`
				WeeksPlanned int     `json:"weeks_planned"`
				Weeks        int     `json:"weeks"`
				Tiles        int     `json:"tiles"`
				TilesDigest  string  `json:"tiles_digest"`
				TotalGames   int     `json:"total_games"`
				TotalWins    int     `json:"total_wins"`
				TotalLosses  int     `json:"total_losses"`
				MeanFinal    float64 `json:"mean_final"`
				MinFinal     float64 `json:"min_final"`
				MaxFinal     float64 `json:"max_final"`
				WinRate      float64 `json:"win_rate"`
			}
			if err := rows.Scan(&r.RunID, &r.StartedAt, &r.EndedAt, &r.Status, &r.Error, &r.WeeksPlanned, &r.Weeks, &r.Tiles, &r.TilesDigest,
				&r.TotalGames, &r.TotalWins, &r.TotalLosses, &r.MeanFinal, &r.MinFinal, &r.MaxFinal, &r.WinRate); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "weeks":
		rows, err := db.Query(`SELECT week,games,wins,losses,confirmed_count,mean_final,max_final,confirmed_json FROM weeks WHERE run_id=? ORDER BY week DESC LIMIT ?`, *runID, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				RunID          string          `json:"run_id"`
				Week           int             `json:"week"`
				Games          int             `json:"games"`
				Wins           int             `json:"wins"`
				Losses         int             `json:"losses"`
				ConfirmedCount int             `json:"confirmed_count"`
				MeanFinal      float64         `json:"mean_final"`
				MaxFinal       float64         `json:"max_final"`
				Confirmed      json.RawMessage `json:"confirmed"`
			}
			var confirmed string
			if err := rows.Scan(&r.Week, &r.Games, &r.Wins, &r.Losses, &r.ConfirmedCount, &r.MeanFinal, &r.MaxFinal, &confirmed); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.RunID = *runID
			r.Confirmed = json.RawMessage(confirmed)
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "tiles":
		d := strings.TrimSpace(*digest)
		if d == "" {
			if err := db.QueryRow(`SELECT tiles_digest FROM runs WHERE run_id=?`, *runID).Scan(&d); err != nil {
				fmt.Fprintln(os.Stderr, "run digest:", err)
				os.Exit(1)
			}
		}
		rows, err := db.Query(`SELECT idx,id,x,y FROM tiles WHERE digest=? ORDER BY idx`, d)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Digest string  `json:"digest"`
				Index  int     `json:"index"`
				ID     string  `json:"id"`
				X      float64 `json:"x"`
				Y      float64 `json:"y"`
			}
			if err := rows.Scan(&r.Index, &r.ID, &r.X, &r.Y); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.Digest = d
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data|-db PATH] [-run RUN] [-digest D] [-limit N] runs|weeks|tiles")
		os.Exit(2)
	}
}

func latestRunID(db *sql.DB) (string, error) {
	if db == nil {
		return "", fmt.Errorf("nil db")
	}
	var id string
	err := db.QueryRow(`SELECT run_id FROM runs ORDER BY started_at DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
