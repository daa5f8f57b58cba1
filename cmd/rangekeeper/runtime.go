package main

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/rangekeeper/config"
	"github.com/alejandrodnm/rangekeeper/internal/adapters/amm"
	"github.com/alejandrodnm/rangekeeper/internal/adapters/clock"
	"github.com/alejandrodnm/rangekeeper/internal/analyzer"
	"github.com/alejandrodnm/rangekeeper/internal/application/engine"
	"github.com/alejandrodnm/rangekeeper/internal/ports"
	"github.com/alejandrodnm/rangekeeper/internal/signals"
	"github.com/alejandrodnm/rangekeeper/internal/txn"
)

// deps son los colaboradores opcionales del engine.
type deps struct {
	sink    ports.EventSink
	store   ports.StateStore
	metrics ports.MetricsRecorder
}

// runtime agrupa el pool simulado, el engine y el analyzer sobre un mismo reloj.
type runtime struct {
	cfg  *config.Config
	clk  *clock.Manual
	pool *amm.Pool
	sigs *signals.Store
	eng  *engine.Engine
	bot  *analyzer.Analyzer
}

func newRuntime(cfg *config.Config, start time.Time, d deps) (*runtime, error) {
	txm := txn.NewManager()
	clk := clock.NewManual(start)
	key := cfg.PoolKey()

	pool, err := amm.NewPool(txm, key, cfg.Pool.InitialTick, cfg.Pool.InitialFee)
	if err != nil {
		return nil, fmt.Errorf("newRuntime: %w", err)
	}

	sigs := signals.NewStore(clk, cfg.Owner(), cfg.SignalWriter())
	if err := sigs.SetTTL(cfg.Owner(), cfg.SignalTTL()); err != nil {
		return nil, fmt.Errorf("newRuntime: %w", err)
	}

	eng, err := engine.New(engine.Options{
		Pool:    pool,
		Signals: sigs,
		Txn:     txm,
		Clock:   clk,
		Owner:   cfg.Owner(),
		Sink:    d.sink,
		Store:   d.store,
		Metrics: d.metrics,
		Config: engine.Config{
			Cooldown:           cfg.Cooldown(),
			MinConfidence:      cfg.Engine.MinConfidence,
			MaxOrdersPerSwap:   cfg.Engine.MaxOrdersPerSwap,
			MaxRebalanceChecks: cfg.Engine.MaxRebalanceChecks,
			FeeCeiling:         cfg.Engine.FeeCeiling,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("newRuntime: %w", err)
	}
	pool.SetHooks(eng)

	bot := analyzer.New(analyzer.Config{
		Interval:    cfg.AnalyzerInterval(),
		BaseFee:     cfg.Analyzer.BaseFee,
		FeePerTick:  cfg.Analyzer.FeePerTick,
		MaxFee:      cfg.Analyzer.MaxFee,
		WidthFactor: cfg.Analyzer.WidthFactor,
	}, cfg.SignalWriter(), clk)

	return &runtime{cfg: cfg, clk: clk, pool: pool, sigs: sigs, eng: eng, bot: bot}, nil
}
