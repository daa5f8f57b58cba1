package engine

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/alejandrodnm/rangekeeper/internal/ports"
	"github.com/ethereum/go-ethereum/common"
)

// BeforeSwap is the pre-trade entry point: it runs the fee controller.
// An error aborts the trade.
func (e *Engine) BeforeSwap(ctx context.Context, sender common.Address, key domain.PoolKey, p ports.SwapParams) error {
	if key != e.key {
		return fmt.Errorf("engine.BeforeSwap: %w", domain.ErrInvalidPoolKey)
	}
	if e.st.paused || !e.key.IsDynamicFee() {
		return nil
	}
	if err := e.applyFeeRecommendation(); err != nil {
		return fmt.Errorf("engine.BeforeSwap: %w", err)
	}
	return nil
}

// AfterSwap is the post-trade entry point: pool stats, then the order
// execution pass, then rebalance detection. Trades started by the execution
// pass itself only update the stats.
func (e *Engine) AfterSwap(ctx context.Context, sender common.Address, key domain.PoolKey, p ports.SwapParams, delta ports.BalanceDelta) error {
	if key != e.key {
		return fmt.Errorf("engine.AfterSwap: %w", domain.ErrInvalidPoolKey)
	}
	slot := e.pool.Slot0()
	e.st.stats.Observe(slot.Tick, delta.Of(p.ZeroForOne), e.clock.Now())

	if e.st.paused || e.executing {
		return nil
	}
	e.executing = true
	defer func() { e.executing = false }()

	if err := e.executeOrders(ctx, slot.Tick); err != nil {
		return fmt.Errorf("engine.AfterSwap: %w", err)
	}
	// las órdenes ejecutadas mueven el precio
	e.detectRebalances(e.pool.Slot0().Tick)
	return nil
}
