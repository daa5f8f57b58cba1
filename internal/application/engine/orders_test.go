package engine_test

import (
	"context"
	"testing"

	"github.com/alejandrodnm/rangekeeper/internal/application/engine"
	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) place(t *testing.T, who common.Address, zeroForOne bool, trigger int32, amountIn, minOut int64) domain.OrderID {
	t.Helper()
	id, err := f.eng.PlaceLimitOrder(context.Background(), who, domain.PlaceOrderCommand{
		Pool:         f.key,
		ZeroForOne:   zeroForOne,
		TriggerTick:  trigger,
		AmountIn:     amountIn,
		MinAmountOut: minOut,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) order(t *testing.T, id domain.OrderID) domain.LimitOrder {
	t.Helper()
	o, ok := f.eng.Order(id)
	require.True(t, ok, "order %d", id)
	return o
}

func TestPlaceLimitOrder_Validation(t *testing.T) {
	f := newFixture(t, 0, engine.DefaultConfig())
	ctx := context.Background()

	other := f.key
	other.TickSpacing = 10
	_, err := f.eng.PlaceLimitOrder(ctx, alice, domain.PlaceOrderCommand{Pool: other, AmountIn: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidPoolKey)
	assert.Equal(t, domain.ClassValidation, domain.ClassOf(err))

	_, err = f.eng.PlaceLimitOrder(ctx, alice, domain.PlaceOrderCommand{Pool: f.key, AmountIn: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.eng.PlaceLimitOrder(ctx, alice, domain.PlaceOrderCommand{Pool: f.key, AmountIn: 10, MinAmountOut: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.eng.PlaceLimitOrder(ctx, alice, domain.PlaceOrderCommand{Pool: f.key, AmountIn: 10, TriggerTick: domain.MaxTick + 1})
	assert.ErrorIs(t, err, domain.ErrInvalidTickRange)

	_, err = f.eng.PlaceLimitOrder(ctx, alice, domain.PlaceOrderCommand{Pool: f.key, AmountIn: 10, LinkedPosition: 42})
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)

	_, err = f.eng.PlaceLimitOrder(ctx, alice, domain.PlaceOrderCommand{Pool: f.key, AmountIn: funding + 1})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	assert.Empty(t, f.eng.Orders())
	f.assertConserved(t)
}

func TestPlaceAndCancel_RefundsEscrow(t *testing.T) {
	f := newFixture(t, 0, engine.DefaultConfig())
	ctx := context.Background()

	id := f.place(t, alice, true, -600, 5_000, 0)
	assert.Equal(t, int64(funding-5_000), f.pool.BalanceOf(alice, token0))
	assert.Equal(t, int64(5_000), f.pool.BalanceOf(custody, token0))
	assert.Equal(t, domain.OrderPending, f.order(t, id).Status())
	f.assertConserved(t)

	assert.ErrorIs(t, f.eng.CancelLimitOrder(ctx, bob, id), domain.ErrNotOrderOwner)
	assert.ErrorIs(t, f.eng.CancelLimitOrder(ctx, alice, 99), domain.ErrOrderNotFound)

	require.NoError(t, f.eng.CancelLimitOrder(ctx, alice, id))
	assert.Equal(t, int64(funding), f.pool.BalanceOf(alice, token0))
	assert.Equal(t, domain.OrderCancelled, f.order(t, id).Status())
	assert.Empty(t, f.eng.OrdersByOwner(alice))
	f.assertConserved(t)

	err := f.eng.CancelLimitOrder(ctx, alice, id)
	assert.ErrorIs(t, err, domain.ErrOrderNotPending)
	assert.Equal(t, domain.ClassStateConflict, domain.ClassOf(err))
}

func TestBulkCancel_AllOrNothing(t *testing.T) {
	f := newFixture(t, 0, engine.DefaultConfig())
	ctx := context.Background()

	a1 := f.place(t, alice, true, -600, 100, 0)
	a2 := f.place(t, alice, false, 600, 200, 0)
	b1 := f.place(t, bob, true, -600, 300, 0)

	err := f.eng.BulkCancel(ctx, alice, []domain.OrderID{a1, b1, a2})
	require.ErrorIs(t, err, domain.ErrNotOrderOwner)
	assert.True(t, f.order(t, a1).Pending(), "el primer cancel se deshace")
	assert.Len(t, f.eng.OrdersByOwner(alice), 2)

	require.NoError(t, f.eng.BulkCancel(ctx, alice, []domain.OrderID{a1, a2}))
	assert.Equal(t, domain.OrderCancelled, f.order(t, a1).Status())
	assert.Equal(t, domain.OrderCancelled, f.order(t, a2).Status())
	assert.Len(t, f.sink.ofKind(domain.EventOrderCancelled), 2)
	f.assertConserved(t)
}

func TestOrderExecution_TriggerAndClaim(t *testing.T) {
	f := newFixture(t, 0, engine.DefaultConfig()).withDepth(t)
	ctx := context.Background()

	sell := f.place(t, alice, true, -10, 1_000, 0)
	buy := f.place(t, alice, false, 10, 1_000, 0)

	f.swap(t, true, 1_000_000)
	require.LessOrEqual(t, f.pool.Slot0().Tick, int32(-10))

	o := f.order(t, sell)
	require.Equal(t, domain.OrderExecuted, o.Status())
	assert.Equal(t, token1, o.ClaimCurrency)
	assert.Positive(t, o.ClaimAmount)
	assert.False(t, o.ExecutedAt.IsZero())
	assert.True(t, f.order(t, buy).Pending(), "la orden del otro lado no se dispara")
	f.assertConserved(t)

	executed := f.sink.ofKind(domain.EventOrderExecuted)
	require.Len(t, executed, 1)
	assert.Equal(t, o.ClaimAmount, executed[0].Amount)

	reports := f.eng.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, sell, reports[0].OrderID)
	assert.Equal(t, o.ClaimAmount, reports[0].AmountOut)

	assert.ErrorIs(t, f.eng.CancelLimitOrder(ctx, alice, sell), domain.ErrOrderNotPending)
	_, _, err := f.eng.ClaimFilledOrder(ctx, bob, sell)
	assert.ErrorIs(t, err, domain.ErrNotOrderOwner)

	before := f.pool.BalanceOf(alice, token1)
	currency, amount, err := f.eng.ClaimFilledOrder(ctx, alice, sell)
	require.NoError(t, err)
	assert.Equal(t, token1, currency)
	assert.Equal(t, o.ClaimAmount, amount)
	assert.Equal(t, before+amount, f.pool.BalanceOf(alice, token1))

	_, _, err = f.eng.ClaimFilledOrder(ctx, alice, sell)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	owned := f.eng.OrdersByOwner(alice)
	require.Len(t, owned, 1)
	assert.Equal(t, buy, owned[0].ID)
	f.assertConserved(t)
}

func TestOrderExecution_FailureIsIsolated(t *testing.T) {
	f := newFixture(t, 0, engine.DefaultConfig()).withDepth(t)

	greedy := f.place(t, alice, true, -10, 1_000, 1_000_000)
	modest := f.place(t, bob, true, -10, 1_000, 1)

	d := f.swap(t, true, 1_000_000)
	assert.Equal(t, int64(-1_000_000), d.Amount0, "el trade que dispara no se ve afectado")

	g := f.order(t, greedy)
	assert.Equal(t, domain.OrderCancelled, g.Status())
	assert.False(t, g.Executed)
	assert.Equal(t, int64(funding), f.pool.BalanceOf(alice, token0), "escrow devuelto")
	assert.Empty(t, f.eng.OrdersByOwner(alice))

	failed := f.sink.ofKind(domain.EventOrderFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, greedy, failed[0].Order)
	assert.Contains(t, failed[0].Reason, domain.ErrInsufficientAmountOut.Error())

	assert.Equal(t, domain.OrderExecuted, f.order(t, modest).Status())
	f.assertConserved(t)
}

func TestOrderExecution_CapPerTrade(t *testing.T) {
	f := newFixture(t, 0, engine.DefaultConfig()).withDepth(t)

	var ids []domain.OrderID
	for i := 0; i < 12; i++ {
		ids = append(ids, f.place(t, alice, true, -10, 100, 0))
	}

	f.swap(t, true, 1_000_000)
	count := func() int {
		n := 0
		for _, id := range ids {
			if f.order(t, id).Executed {
				n++
			}
		}
		return n
	}
	assert.Equal(t, engine.DefaultConfig().MaxOrdersPerSwap, count())

	f.swap(t, true, 1_000)
	assert.Equal(t, 12, count(), "el resto se drena en el siguiente trade")
	f.assertConserved(t)
}

func TestOrderExecution_CompactsResolvedOrders(t *testing.T) {
	f := newFixture(t, 0, engine.DefaultConfig()).withDepth(t)
	ctx := context.Background()

	a := f.place(t, alice, true, -5000, 100, 0)
	f.place(t, alice, true, -5000, 100, 0)
	f.place(t, alice, true, -5000, 100, 0)
	require.NoError(t, f.eng.CancelLimitOrder(ctx, alice, a))
	assert.Equal(t, 3, f.eng.PendingScanLen())

	f.swap(t, true, 1_000)
	assert.Equal(t, 2, f.eng.PendingScanLen())
}

func TestOrderExecution_NestedTradeDoesNotReenter(t *testing.T) {
	f := newFixture(t, 0, engine.DefaultConfig()).withDepth(t)

	big := f.place(t, alice, true, -10, 2_000_000, 0)
	next := f.place(t, bob, true, -30, 1_000, 0)

	f.swap(t, true, 1_000_000)

	assert.True(t, f.order(t, big).Executed)
	assert.LessOrEqual(t, f.pool.Slot0().Tick, int32(-30), "la ejecución movió el precio")
	assert.True(t, f.order(t, next).Pending(), "el pase anidado no se ejecuta")
	assert.Equal(t, uint64(2), f.eng.Stats().Trades, "el trade anidado sí cuenta en las stats")

	f.swap(t, true, 1_000)
	assert.True(t, f.order(t, next).Executed)
	f.assertConserved(t)
}

func TestOrderExecution_TrailingStop(t *testing.T) {
	f := newFixture(t, 0, engine.DefaultConfig()).withDepth(t)

	id, err := f.eng.PlaceLimitOrder(context.Background(), alice, domain.PlaceOrderCommand{
		Pool:        f.key,
		ZeroForOne:  true,
		TriggerTick: -30,
		AmountIn:    1_000,
		OrderKind:   domain.OrderTrailing,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(30), f.order(t, id).TrailDistance)

	f.swap(t, false, 2_100_000)
	tick := f.pool.Slot0().Tick
	require.Greater(t, tick, int32(30))

	o := f.order(t, id)
	assert.True(t, o.Pending())
	assert.Equal(t, tick-30, o.TriggerTick)
	assert.Len(t, f.sink.ofKind(domain.EventOrderTrailed), 1)

	f.swap(t, true, 2_100_000)
	require.LessOrEqual(t, f.pool.Slot0().Tick, tick-30)
	assert.True(t, f.order(t, id).Executed)
}

func TestOrderTransitions_NeverRevisit(t *testing.T) {
	f := newFixture(t, 0, engine.DefaultConfig()).withDepth(t)
	ctx := context.Background()

	exec := f.place(t, alice, true, -10, 1_000, 0)
	canc := f.place(t, alice, true, -10, 1_000, 0)
	require.NoError(t, f.eng.CancelLimitOrder(ctx, alice, canc))

	f.swap(t, true, 1_000_000)
	f.swap(t, true, 1_000)

	assert.Equal(t, domain.OrderExecuted, f.order(t, exec).Status())
	c := f.order(t, canc)
	assert.Equal(t, domain.OrderCancelled, c.Status())
	assert.False(t, c.Executed)
	assert.Len(t, f.sink.ofKind(domain.EventOrderExecuted), 1)
}

func TestPlaceLimitOrder_LinkRequiresPositionOwner(t *testing.T) {
	f := newFixture(t, 0, engine.DefaultConfig())
	ctx := context.Background()
	id := f.open(t, alice, -120, 120, 1_000_000, false)

	_, err := f.eng.PlaceLimitOrder(ctx, bob, domain.PlaceOrderCommand{Pool: f.key, ZeroForOne: false, TriggerTick: 600, AmountIn: 700, LinkedPosition: id})
	require.ErrorIs(t, err, domain.ErrNotPositionOwner)
	assert.Empty(t, f.eng.OrdersByOwner(bob))
	assert.Equal(t, int64(funding), f.pool.BalanceOf(bob, token1))

	_, err = f.eng.PlaceLimitOrder(ctx, alice, domain.PlaceOrderCommand{Pool: f.key, ZeroForOne: false, TriggerTick: 600, AmountIn: 700, LinkedPosition: id})
	require.NoError(t, err)
	f.assertConserved(t)
}

func TestOrderExecution_TrailingBehindCapWaits(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.MaxOrdersPerSwap = 1
	f := newFixture(t, 0, cfg).withDepth(t)

	buy := f.place(t, alice, false, 10, 100, 0)
	trail, err := f.eng.PlaceLimitOrder(context.Background(), bob, domain.PlaceOrderCommand{
		Pool:        f.key,
		ZeroForOne:  true,
		TriggerTick: -30,
		AmountIn:    1_000,
		OrderKind:   domain.OrderTrailing,
	})
	require.NoError(t, err)

	f.swap(t, false, 2_100_000)
	require.True(t, f.order(t, buy).Executed)
	assert.Equal(t, int32(-30), f.order(t, trail).TriggerTick, "detrás del tope no se escanea")
	assert.Empty(t, f.sink.ofKind(domain.EventOrderTrailed))

	f.swap(t, false, 1_000)
	tick := f.pool.Slot0().Tick
	o := f.order(t, trail)
	assert.True(t, o.Pending())
	assert.Equal(t, tick-30, o.TriggerTick)
	assert.Len(t, f.sink.ofKind(domain.EventOrderTrailed), 1)
}
