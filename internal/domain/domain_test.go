package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

// --- ticks ---

func TestAlignTick(t *testing.T) {
	assert.Equal(t, int32(120), AlignTick(130, 60))
	assert.Equal(t, int32(-180), AlignTick(-130, 60))
	assert.Equal(t, int32(-120), AlignTick(-120, 60))
	assert.Equal(t, int32(180), AlignTickUp(130, 60))
	assert.Equal(t, int32(-120), AlignTickUp(-130, 60))
	assert.Equal(t, int32(7), AlignTick(7, 1))
}

func TestValidateRange(t *testing.T) {
	assert.NoError(t, ValidateRange(-120, 120, 60))
	assert.ErrorIs(t, ValidateRange(120, -120, 60), ErrInvalidTickRange)
	assert.ErrorIs(t, ValidateRange(60, 60, 60), ErrInvalidTickRange)
	assert.ErrorIs(t, ValidateRange(-100, 120, 60), ErrInvalidTickRange)
	assert.ErrorIs(t, ValidateRange(MinTick-60, 0, 1), ErrInvalidTickRange)
}

func TestPoolKey_ID_Deterministic(t *testing.T) {
	k := PoolKey{
		Currency0:   common.HexToAddress("0x01"),
		Currency1:   common.HexToAddress("0x02"),
		Fee:         DynamicFeeFlag,
		TickSpacing: 60,
		Hooks:       common.HexToAddress("0xbeef"),
	}
	assert.Equal(t, k.ID(), k.ID())

	other := k
	other.TickSpacing = 10
	assert.NotEqual(t, k.ID(), other.ID())
	assert.True(t, k.IsDynamicFee())
}

// --- positions ---

func TestPosition_NeedsRebalance(t *testing.T) {
	p := Position{TickLower: -120, TickUpper: 120}
	// buffer = 24
	assert.False(t, p.NeedsRebalance(0))
	assert.False(t, p.NeedsRebalance(95))
	assert.True(t, p.NeedsRebalance(96))
	assert.True(t, p.NeedsRebalance(-96))
	assert.True(t, p.NeedsRebalance(500))
	assert.True(t, p.NeedsRebalance(-500))
}

func TestPosition_CooldownElapsed(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := Position{}
	assert.True(t, p.CooldownElapsed(now, time.Hour), "never rebalanced")

	p.LastRebalance = now.Add(-30 * time.Minute)
	assert.False(t, p.CooldownElapsed(now, time.Hour))
	assert.True(t, p.CooldownElapsed(now, 0))
	assert.True(t, p.CooldownElapsed(now.Add(30*time.Minute), time.Hour))
}

// --- orders ---

func TestLimitOrder_Triggered(t *testing.T) {
	sell := LimitOrder{ZeroForOne: true, TriggerTick: -60}
	assert.True(t, sell.Triggered(-60))
	assert.True(t, sell.Triggered(-61))
	assert.False(t, sell.Triggered(-59))

	buy := LimitOrder{ZeroForOne: false, TriggerTick: 60}
	assert.True(t, buy.Triggered(60))
	assert.False(t, buy.Triggered(59))
}

func TestLimitOrder_StatusIsExclusive(t *testing.T) {
	o := LimitOrder{}
	assert.Equal(t, OrderPending, o.Status())
	o.Executed = true
	assert.Equal(t, OrderExecuted, o.Status())
	assert.False(t, o.Pending())

	c := LimitOrder{Cancelled: true}
	assert.Equal(t, OrderCancelled, c.Status())
}

func TestLimitOrder_TrailOnlyRatchetsTowardPrice(t *testing.T) {
	o := LimitOrder{Kind: OrderTrailing, ZeroForOne: true, TriggerTick: -100, TrailDistance: 100}
	assert.True(t, o.Trail(50))
	assert.Equal(t, int32(-50), o.TriggerTick)
	assert.False(t, o.Trail(0), "price fell, trigger stays")
	assert.Equal(t, int32(-50), o.TriggerTick)

	up := LimitOrder{Kind: OrderTrailing, TriggerTick: 100, TrailDistance: 100}
	assert.True(t, up.Trail(-30))
	assert.Equal(t, int32(70), up.TriggerTick)

	plain := LimitOrder{Kind: OrderStopLoss, ZeroForOne: true, TriggerTick: -100, TrailDistance: 100}
	assert.False(t, plain.Trail(500))
}

func TestParseOrderKind(t *testing.T) {
	k, err := ParseOrderKind("take_profit")
	assert.NoError(t, err)
	assert.Equal(t, OrderTakeProfit, k)

	_, err = ParseOrderKind("moon")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

// --- stats ---

func TestPoolStats_Observe(t *testing.T) {
	now := time.Now()
	var s PoolStats
	s.Observe(10, -500, now)
	assert.Equal(t, int64(500), s.Volume)
	assert.Equal(t, 0.0, s.Volatility, "first trade has no previous tick")

	s.Observe(-90, 100, now)
	assert.InDelta(t, 10.0, s.Volatility, 1e-9)
	assert.Equal(t, int32(-90), s.LastTick)
	assert.Equal(t, uint64(2), s.Trades)
}

// --- errors ---

func TestClassOf(t *testing.T) {
	wrapped := fmt.Errorf("engine.Rebalance: %w", ErrRebalanceCooldownNotElapsed)
	assert.Equal(t, ClassTemporal, ClassOf(wrapped))
	assert.Equal(t, ClassResourceCeiling, ClassOf(ErrFeeTooHigh))
	assert.Equal(t, ClassUnknown, ClassOf(errors.New("x")))
	assert.Equal(t, "execution_local", ClassOf(ErrInsufficientAmountOut).String())
}
