package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/alejandrodnm/rangekeeper/config"
	"github.com/alejandrodnm/rangekeeper/internal/adapters/notify"
	"github.com/alejandrodnm/rangekeeper/internal/adapters/storage"
	"github.com/alejandrodnm/rangekeeper/internal/observability"
	"github.com/alejandrodnm/rangekeeper/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	scriptPath := flag.String("script", "", "scenario script to run (YAML)")
	report := flag.Bool("report", false, "print the persisted state and recent events, then exit")
	events := flag.Int("events", 20, "number of recent events shown by -report")
	strict := flag.Bool("strict", false, "abort the script on the first unexpected result")
	verbose := flag.Bool("verbose", false, "set log level to debug and print every event")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	console := notify.NewConsole(*verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *report {
		runReport(ctx, cfg, store, console, *events)
		return
	}

	if *scriptPath == "" {
		slog.Error("nothing to do: pass -script <file> or -report")
		os.Exit(2)
	}

	script, err := loadScript(*scriptPath)
	if err != nil {
		slog.Error("failed to load script", "err", err, "path", *scriptPath)
		os.Exit(1)
	}

	var metrics ports.MetricsRecorder
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(reg, cfg.Metrics.Namespace)
		srv := serveMetrics(cfg.Metrics.Addr, reg)
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	slog.Info("rangekeeper starting",
		"config", *configPath,
		"script", *scriptPath,
		"steps", len(script.Steps),
		"pool", cfg.PoolKey().ID().Hex(),
		"dsn", cfg.Storage.DSN,
		"strict", *strict,
	)

	rt, err := newRuntime(cfg, script.Start, deps{sink: console, store: store, metrics: metrics})
	if err != nil {
		slog.Error("failed to build engine", "err", err)
		os.Exit(1)
	}

	failed, err := newScriptRunner(rt, console.PrintReport).Run(ctx, script, *strict)
	console.PrintReport(rt.eng.ExportState())
	if err != nil {
		slog.Error("script aborted", "err", err, "failed_steps", failed)
		os.Exit(1)
	}
	if failed > 0 {
		slog.Warn("script finished with unexpected results", "failed_steps", failed)
		os.Exit(1)
	}
	slog.Info("rangekeeper stopped cleanly")
}

// runReport imprime el último estado persistido del pool y sus eventos recientes.
func runReport(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage, console *notify.Console, limit int) {
	poolID := cfg.PoolKey().ID()
	st, err := store.LoadState(ctx, poolID)
	if errors.Is(err, storage.ErrNoState) {
		slog.Warn("no persisted state for this pool yet, run a script first", "pool", poolID.Hex())
		return
	}
	if err != nil {
		slog.Error("failed to load state", "err", err)
		os.Exit(1)
	}
	console.PrintReport(st)

	recent, err := store.RecentEvents(ctx, poolID, limit)
	if err != nil {
		slog.Error("failed to load events", "err", err)
		os.Exit(1)
	}
	slices.Reverse(recent) // más antiguo primero
	if err := console.Publish(ctx, recent); err != nil {
		slog.Warn("print events failed", "err", err)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server stopped", "err", err, "addr", addr)
		}
	}()
	slog.Info("metrics endpoint listening", "addr", addr)
	return srv
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
