package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	persistlog "wanbingo.sim/internal/persistence/log"
	"wanbingo.sim/internal/persistence/snapshot"
	"wanbingo.sim/internal/sim/catalogs"
	"wanbingo.sim/internal/sim/runner"
	"wanbingo.sim/internal/sim/tuning"
	"wanbingo.sim/internal/transport/observer"
)

func main() {
	var (
		weeks       = flag.Int("weeks", 0, "number of weeks to simulate (overrides tuning)")
		tilesPath   = flag.String("tiles", "./configs/tiles.sample.json", "tiles master list (JSON)")
		tuningPath  = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		grow        = flag.Float64("grow", 1.05, "weight grow factor for confirmed tiles (overrides tuning)")
		shrink      = flag.Float64("shrink", 0.95, "weight shrink factor for unconfirmed tiles (overrides tuning)")
		workers     = flag.Int("workers", 0, "parallel games per week, 0 = one per CPU (overrides tuning)")
		confirmMode = flag.String("confirm_mode", "position", "position|identity (overrides tuning)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite run index")
		observeAddr = flag.String("observe_addr", "", "observer http listen address, e.g. 127.0.0.1:8080 (empty to disable)")
		runID       = flag.String("run", "", "run id (default: derived from start time)")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		With().Timestamp().Str("component", "simulator").Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(2)
		}
		logger.Warn().Str("path", *tuningPath).Msg("tuning not found; using defaults")
		tune = tuning.Defaults()
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "weeks":
			tune.Weeks = *weeks
		case "grow":
			tune.GrowFactor = *grow
		case "shrink":
			tune.ShrinkFactor = *shrink
		case "workers":
			tune.Workers = *workers
		case "confirm_mode":
			tune.ConfirmMode = strings.TrimSpace(*confirmMode)
		}
	})
	if err := tune.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	tiles, err := catalogs.LoadTiles(*tilesPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load tiles")
	}

	id := strings.TrimSpace(*runID)
	if id == "" {
		id = "run_" + time.Now().UTC().Format("20060102T150405")
	}
	runDir := filepath.Join(*dataDir, "runs", id)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("create run dir")
	}

	r := runner.New(id, tiles, tune, logger)
	if err := r.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("configuration")
	}

	weekLog := persistlog.NewWeekLogger(runDir)
	defer weekLog.Close()
	r.SetWeekLogger(weekLog)

	idx, err := openRunIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("open index backend")
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTiles(tiles); err != nil {
			logger.Warn().Err(err).Msg("index backend: upsert tiles")
		}
		r.SetIndex(idx)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if addr := strings.TrimSpace(*observeAddr); addr != "" {
		obs := observer.NewServer(logger.With().Str("component", "observer").Logger())
		obs.SetRun(runner.RunInfo{RunID: id, Tuning: tune, TilesDigest: tiles.Digest, Tiles: tiles.Len()})
		r.SetPublisher(obs)

		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
			rw.WriteHeader(200)
			_, _ = rw.Write([]byte("ok"))
		})
		mux.HandleFunc("/metrics", obs.MetricsHandler(func(w io.Writer) { writeIndexMetrics(w, idx) }))
		mux.HandleFunc("/v1/observer/bootstrap", obs.BootstrapHandler())
		mux.HandleFunc("/v1/observer/ws", obs.WSHandler())
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info().Str("addr", addr).Msg("observer listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("observer server")
			}
		}()
	}

	rep, runErr := r.Run(ctx)

	if srv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(shutCtx)
		cancel()
	}
	if err := weekLog.Close(); err != nil {
		logger.Warn().Err(err).Msg("close week log")
	}

	snapPath := filepath.Join(runDir, snapshot.FileName)
	if err := snapshot.WriteReport(snapPath, snapshot.NewReport(rep)); err != nil {
		logger.Error().Err(err).Msg("snapshot write")
	} else {
		logger.Info().Str("path", snapPath).Msg("report written")
	}

	if runErr != nil {
		if idx != nil {
			_ = idx.Close()
		}
		logger.Fatal().Err(runErr).Int("weeks_done", rep.Summary.Weeks).Msg("run failed")
	}
	printReport(os.Stdout, rep)
}
