// Package analyzer is the collaborator side of the signal channel: it reads
// pool stats, proposes ranges and a fee, and submits them through the
// authorized writer identity under its own rate limit.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/alejandrodnm/rangekeeper/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// ErrRateLimited se devuelve cuando el submitter ya usó su ráfaga en la ventana actual.
var ErrRateLimited = errors.New("analyzer: submission rate limited")

const (
	DefaultInterval    = 60 * time.Second
	DefaultBaseFee     = 3000
	DefaultFeePerTick  = 100
	DefaultMaxFee      = 100_000
	DefaultWidthFactor = 4.0

	outOfRangeConfidence = 90
	driftConfidence      = 75
	maxFeeConfidence     = 95
)

// Config ajusta las heurísticas y el límite de envíos.
type Config struct {
	Interval    time.Duration // una ráfaga de envíos por intervalo
	BaseFee     uint32        // fee con volatilidad cero
	FeePerTick  uint32        // fee extra por tick de volatilidad
	MaxFee      uint32
	WidthFactor float64 // semiancho del rango = volatilidad * factor
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.BaseFee == 0 {
		c.BaseFee = DefaultBaseFee
	}
	if c.FeePerTick == 0 {
		c.FeePerTick = DefaultFeePerTick
	}
	if c.MaxFee == 0 || c.MaxFee > domain.MaxLPFee {
		c.MaxFee = DefaultMaxFee
	}
	if c.WidthFactor <= 0 {
		c.WidthFactor = DefaultWidthFactor
	}
}

// Poster es la superficie del engine por la que se publican señales.
type Poster interface {
	PostRebalanceSignal(ctx context.Context, caller common.Address, sig domain.RebalanceSignal) error
	PostFeeRecommendation(ctx context.Context, caller common.Address, rec domain.FeeRecommendation) error
}

// PoolView es lo que el analyzer lee del engine en cada ciclo.
type PoolView interface {
	Key() domain.PoolKey
	Stats() domain.PoolStats
	Positions() []domain.Position
	Orders() []domain.LimitOrder
}

// Engine reúne lectura y escritura; *engine.Engine lo satisface.
type Engine interface {
	PoolView
	Poster
}

// Batch es un envío: señales de rebalanceo y, opcionalmente, un fee.
type Batch struct {
	Signals []domain.RebalanceSignal
	Fee     *domain.FeeRecommendation
}

// Empty indica que no hay nada que enviar.
func (b Batch) Empty() bool {
	return len(b.Signals) == 0 && b.Fee == nil
}

// Result resume un envío.
type Result struct {
	Posted   int
	Rejected int
}

// Report es el resultado de un ciclo completo.
type Report struct {
	Batch    Batch
	Eligible []domain.OrderID
	Result   Result
}

// Analyzer propone y envía señales para un pool.
type Analyzer struct {
	cfg      Config
	identity common.Address
	clock    ports.Clock
	limiter  *rate.Limiter
}

// New crea un analyzer que firma como identity. El límite se evalúa con clock,
// no con la hora del sistema, para que los escenarios simulados lo respeten.
func New(cfg Config, identity common.Address, clock ports.Clock) *Analyzer {
	cfg.setDefaults()
	return &Analyzer{
		cfg:      cfg,
		identity: identity,
		clock:    clock,
		limiter:  rate.NewLimiter(rate.Every(cfg.Interval), 1),
	}
}

// Config devuelve la configuración efectiva.
func (a *Analyzer) Config() Config { return a.cfg }

// Propose deriva un fee de la volatilidad y una señal por cada posición
// auto-rebalance fuera de rango o desplazada más de un cuarto de su ancho.
func (a *Analyzer) Propose(key domain.PoolKey, stats domain.PoolStats, positions []domain.Position, now time.Time) Batch {
	var b Batch
	if stats.Trades > 0 {
		fee := float64(a.cfg.BaseFee) + stats.Volatility*float64(a.cfg.FeePerTick)
		if fee > float64(a.cfg.MaxFee) {
			fee = float64(a.cfg.MaxFee)
		}
		confidence := uint64(maxFeeConfidence)
		if stats.Trades < 7 {
			confidence = 60 + 5*stats.Trades
		}
		b.Fee = &domain.FeeRecommendation{Fee: uint32(fee), Confidence: uint8(confidence), Timestamp: now}
	}

	tick := stats.LastTick
	spacing := key.TickSpacing
	half := int32(math.Round(stats.Volatility * a.cfg.WidthFactor))
	if half < spacing {
		half = spacing
	}
	for _, p := range positions {
		if !p.AutoRebalance {
			continue
		}
		var confidence uint8
		switch {
		case p.NeedsRebalance(tick):
			confidence = outOfRangeConfidence
		case drift(p, tick) > p.Width()/4:
			confidence = driftConfidence
		default:
			continue
		}
		lower := domain.AlignTick(tick-half, spacing)
		upper := domain.AlignTickUp(tick+half, spacing)
		if domain.ValidateRange(lower, upper, spacing) != nil {
			continue
		}
		if lower == p.TickLower && upper == p.TickUpper {
			continue
		}
		b.Signals = append(b.Signals, domain.RebalanceSignal{
			PositionID: p.ID,
			TickLower:  lower,
			TickUpper:  upper,
			Confidence: confidence,
			Timestamp:  now,
		})
	}
	return b
}

func drift(p domain.Position, tick int32) int32 {
	center := p.TickLower + p.Width()/2
	if tick > center {
		return tick - center
	}
	return center - tick
}

// EligibleOrders devuelve las órdenes pendientes que dispararían en tick.
// Es solo contabilidad local: la ejecución la decide el engine.
func EligibleOrders(orders []domain.LimitOrder, tick int32) []domain.OrderID {
	var out []domain.OrderID
	for _, o := range orders {
		if o.Pending() && o.Triggered(tick) {
			out = append(out, o.ID)
		}
	}
	return out
}

// Submit publica el batch si el limitador lo permite. Un rechazo individual
// no corta el resto del batch; los errores se devuelven juntos.
func (a *Analyzer) Submit(ctx context.Context, poster Poster, b Batch) (Result, error) {
	var res Result
	if b.Empty() {
		return res, nil
	}
	if !a.limiter.AllowN(a.clock.Now(), 1) {
		return res, ErrRateLimited
	}

	var errs []error
	for _, sig := range b.Signals {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("analyzer.Submit: %w", err)
		}
		if err := poster.PostRebalanceSignal(ctx, a.identity, sig); err != nil {
			res.Rejected++
			errs = append(errs, fmt.Errorf("position %d: %w", sig.PositionID, err))
			slog.Warn("analyzer: signal rejected", "position", sig.PositionID, "err", err)
			continue
		}
		res.Posted++
	}
	if b.Fee != nil {
		if err := poster.PostFeeRecommendation(ctx, a.identity, *b.Fee); err != nil {
			res.Rejected++
			errs = append(errs, fmt.Errorf("fee: %w", err))
			slog.Warn("analyzer: fee recommendation rejected", "fee", b.Fee.Fee, "err", err)
		} else {
			res.Posted++
		}
	}
	if len(errs) > 0 {
		return res, fmt.Errorf("analyzer.Submit: %w", errors.Join(errs...))
	}
	return res, nil
}

// Cycle ejecuta un ciclo completo contra el engine: leer, proponer, escanear y enviar.
func (a *Analyzer) Cycle(ctx context.Context, eng Engine) (Report, error) {
	now := a.clock.Now()
	stats := eng.Stats()

	rep := Report{
		Batch:    a.Propose(eng.Key(), stats, eng.Positions(), now),
		Eligible: EligibleOrders(eng.Orders(), stats.LastTick),
	}
	res, err := a.Submit(ctx, eng, rep.Batch)
	rep.Result = res

	slog.Info("analyzer: cycle",
		"tick", stats.LastTick,
		"volatility", stats.Volatility,
		"signals", len(rep.Batch.Signals),
		"fee", rep.Batch.Fee != nil,
		"eligible_orders", len(rep.Eligible),
		"posted", res.Posted,
		"rejected", res.Rejected,
	)
	return rep, err
}
