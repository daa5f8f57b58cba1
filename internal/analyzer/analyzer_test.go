package analyzer_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/rangekeeper/internal/adapters/clock"
	"github.com/alejandrodnm/rangekeeper/internal/analyzer"
	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bot = common.HexToAddress("0xb07")
	t0  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func key() domain.PoolKey {
	return domain.PoolKey{
		Currency0:   common.HexToAddress("0x01"),
		Currency1:   common.HexToAddress("0x02"),
		Fee:         domain.DynamicFeeFlag,
		TickSpacing: 60,
	}
}

type fakePoster struct {
	signals []domain.RebalanceSignal
	fees    []domain.FeeRecommendation
	callers []common.Address
	reject  map[domain.PositionID]error
}

func (p *fakePoster) PostRebalanceSignal(_ context.Context, caller common.Address, sig domain.RebalanceSignal) error {
	p.callers = append(p.callers, caller)
	if err := p.reject[sig.PositionID]; err != nil {
		return err
	}
	p.signals = append(p.signals, sig)
	return nil
}

func (p *fakePoster) PostFeeRecommendation(_ context.Context, caller common.Address, rec domain.FeeRecommendation) error {
	p.callers = append(p.callers, caller)
	p.fees = append(p.fees, rec)
	return nil
}

type fakeEngine struct {
	fakePoster
	stats     domain.PoolStats
	positions []domain.Position
	orders    []domain.LimitOrder
}

func (e *fakeEngine) Key() domain.PoolKey { return key() }

func (e *fakeEngine) Stats() domain.PoolStats { return e.stats }

func (e *fakeEngine) Positions() []domain.Position { return e.positions }

func (e *fakeEngine) Orders() []domain.LimitOrder { return e.orders }

func TestPropose_Fee(t *testing.T) {
	a := analyzer.New(analyzer.Config{}, bot, clock.NewManual(t0))

	tests := []struct {
		name  string
		stats domain.PoolStats
		want  *domain.FeeRecommendation
	}{
		{"sin trades no hay fee", domain.PoolStats{}, nil},
		{"volatilidad moderada", domain.PoolStats{Trades: 3, Volatility: 10},
			&domain.FeeRecommendation{Fee: 4000, Confidence: 75, Timestamp: t0}},
		{"fee acotado al máximo", domain.PoolStats{Trades: 50, Volatility: 5000},
			&domain.FeeRecommendation{Fee: analyzer.DefaultMaxFee, Confidence: 95, Timestamp: t0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := a.Propose(key(), tt.stats, nil, t0)
			assert.Equal(t, tt.want, b.Fee)
		})
	}
}

func TestPropose_Signals(t *testing.T) {
	a := analyzer.New(analyzer.Config{}, bot, clock.NewManual(t0))
	stats := domain.PoolStats{Trades: 1, Volatility: 10, LastTick: 100}

	positions := []domain.Position{
		{ID: 1, TickLower: -120, TickUpper: 120, AutoRebalance: true},   // cerca del borde superior
		{ID: 2, TickLower: -60, TickUpper: 240, AutoRebalance: true},    // centrado
		{ID: 3, TickLower: -600, TickUpper: -300},                       // sin auto-rebalance
		{ID: 4, TickLower: -1200, TickUpper: 1200, AutoRebalance: true}, // ancho, deriva pequeña
		{ID: 5, TickLower: -300, TickUpper: 180, AutoRebalance: true},   // deriva > ancho/4
	}

	b := a.Propose(key(), stats, positions, t0)
	require.Len(t, b.Signals, 2)

	assert.Equal(t, domain.RebalanceSignal{PositionID: 1, TickLower: 0, TickUpper: 180, Confidence: 90, Timestamp: t0}, b.Signals[0])
	assert.Equal(t, domain.PositionID(5), b.Signals[1].PositionID)
	assert.Equal(t, uint8(75), b.Signals[1].Confidence)
	for _, sig := range b.Signals {
		assert.NoError(t, domain.ValidateRange(sig.TickLower, sig.TickUpper, 60))
		assert.True(t, sig.TickLower <= stats.LastTick && stats.LastTick < sig.TickUpper)
	}
}

func TestPropose_WidthFollowsVolatility(t *testing.T) {
	a := analyzer.New(analyzer.Config{WidthFactor: 2}, bot, clock.NewManual(t0))
	stats := domain.PoolStats{Trades: 1, Volatility: 300, LastTick: 0}

	b := a.Propose(key(), stats, []domain.Position{{ID: 1, TickLower: 600, TickUpper: 1200, AutoRebalance: true}}, t0)
	require.Len(t, b.Signals, 1)
	assert.Equal(t, int32(-600), b.Signals[0].TickLower)
	assert.Equal(t, int32(600), b.Signals[0].TickUpper)
}

func TestEligibleOrders(t *testing.T) {
	orders := []domain.LimitOrder{
		{ID: 1, ZeroForOne: true, TriggerTick: -60},
		{ID: 2, ZeroForOne: true, TriggerTick: -60, Executed: true},
		{ID: 3, TriggerTick: 0},
		{ID: 4, TriggerTick: -120},
		{ID: 5, ZeroForOne: true, TriggerTick: -200, Cancelled: true},
	}
	assert.Equal(t, []domain.OrderID{1, 4}, analyzer.EligibleOrders(orders, -100))
	assert.Empty(t, analyzer.EligibleOrders(nil, 0))
}

func TestSubmit_RateLimitedOnEngineClock(t *testing.T) {
	clk := clock.NewManual(t0)
	a := analyzer.New(analyzer.Config{}, bot, clk)
	poster := &fakePoster{}
	ctx := context.Background()
	batch := analyzer.Batch{Fee: &domain.FeeRecommendation{Fee: 4000, Confidence: 80, Timestamp: t0}}

	// Un batch vacío no consume la ráfaga.
	res, err := a.Submit(ctx, poster, analyzer.Batch{})
	require.NoError(t, err)
	assert.Zero(t, res.Posted)

	res, err = a.Submit(ctx, poster, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Posted)

	_, err = a.Submit(ctx, poster, batch)
	assert.ErrorIs(t, err, analyzer.ErrRateLimited)

	clk.Advance(59 * time.Second)
	_, err = a.Submit(ctx, poster, batch)
	assert.ErrorIs(t, err, analyzer.ErrRateLimited)

	clk.Advance(2 * time.Second)
	_, err = a.Submit(ctx, poster, batch)
	require.NoError(t, err)

	assert.Len(t, poster.fees, 2)
	for _, c := range poster.callers {
		assert.Equal(t, bot, c)
	}
}

func TestSubmit_PartialRejection(t *testing.T) {
	a := analyzer.New(analyzer.Config{}, bot, clock.NewManual(t0))
	poster := &fakePoster{reject: map[domain.PositionID]error{2: domain.ErrStaleSignal}}

	res, err := a.Submit(context.Background(), poster, analyzer.Batch{
		Signals: []domain.RebalanceSignal{{PositionID: 1}, {PositionID: 2}, {PositionID: 3}},
		Fee:     &domain.FeeRecommendation{Fee: 3000},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStaleSignal)
	assert.Equal(t, analyzer.Result{Posted: 3, Rejected: 1}, res)
	assert.Len(t, poster.signals, 2)
}

func TestCycle(t *testing.T) {
	a := analyzer.New(analyzer.Config{}, bot, clock.NewManual(t0))
	eng := &fakeEngine{
		stats:     domain.PoolStats{Trades: 2, Volatility: 5, LastTick: -100},
		positions: []domain.Position{{ID: 1, TickLower: 0, TickUpper: 600, AutoRebalance: true}},
		orders:    []domain.LimitOrder{{ID: 9, ZeroForOne: true, TriggerTick: -60}},
	}

	rep, err := a.Cycle(context.Background(), eng)
	require.NoError(t, err)
	assert.Equal(t, []domain.OrderID{9}, rep.Eligible)
	require.Len(t, eng.signals, 1)
	assert.Equal(t, domain.PositionID(1), eng.signals[0].PositionID)
	require.Len(t, eng.fees, 1)
	assert.Equal(t, uint32(3500), eng.fees[0].Fee)
	assert.Equal(t, analyzer.Result{Posted: 2}, rep.Result)
}
