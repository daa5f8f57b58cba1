package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/alejandrodnm/rangekeeper/internal/ports"
)

// executeOrders scans the pool's order list against tick. Resolved orders are
// swap-removed as they are found. At most MaxOrdersPerSwap triggered orders
// are attempted; the rest, trailing ratchets included, wait for the next
// trade. Each attempt runs in its own scope, so a failing order is rolled back
// and cancelled alone.
func (e *Engine) executeOrders(ctx context.Context, tick int32) error {
	attempted := 0
	i := 0
	for i < e.st.orders.PoolLen() && attempted < e.cfg.MaxOrdersPerSwap {
		o, ok := e.st.orders.Get(e.st.orders.PoolAt(i))
		if !ok || !o.Pending() {
			e.st.orders.RemovePoolAt(i)
			continue
		}

		if o.Trail(tick) {
			e.st.orders.Put(o)
			e.emit(domain.Event{
				Kind:      domain.EventOrderTrailed,
				Order:     o.ID,
				Account:   o.Owner,
				TickLower: o.TriggerTick,
			})
		}
		if !o.Triggered(tick) {
			i++
			continue
		}

		attempted++
		err := e.txm.Run(func() error { return e.executeOrder(ctx, o) })
		if err != nil {
			if ferr := e.failOrder(o.ID, err); ferr != nil {
				return fmt.Errorf("order %d: %w", o.ID, ferr)
			}
		}
		i++
	}
	return nil
}

// executeOrder swaps the order's escrow through the pool and records the
// output as the owner's claim.
func (e *Engine) executeOrder(ctx context.Context, o domain.LimitOrder) error {
	delta, err := e.pool.Swap(ctx, e.self, ports.SwapParams{ZeroForOne: o.ZeroForOne, AmountIn: o.AmountIn})
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}
	in, out := e.key.Currencies(o.ZeroForOne)
	received := delta.Of(!o.ZeroForOne)
	spent := -delta.Of(o.ZeroForOne)
	if received < o.MinAmountOut {
		return fmt.Errorf("received %d, minimum %d: %w", received, o.MinAmountOut, domain.ErrInsufficientAmountOut)
	}
	if unspent := o.AmountIn - spent; unspent > 0 {
		if err := e.pool.Transfer(e.self, o.Owner, in, unspent); err != nil {
			return fmt.Errorf("refund unspent: %w", err)
		}
	}

	now := e.clock.Now()
	o.Executed = true
	o.ClaimCurrency = out
	o.ClaimAmount = received
	o.ExecutedAt = now
	e.st.orders.Put(o)
	e.emit(domain.Event{
		Kind:     domain.EventOrderExecuted,
		Order:    o.ID,
		Position: o.LinkedPosition,
		Account:  o.Owner,
		Currency: out,
		Amount:   received,
	})

	rep := domain.ExecutionReport{OrderID: o.ID, Owner: o.Owner, Currency: out, AmountOut: received, Timestamp: now}
	if err := e.signals.RecordExecution(e.self, e.poolID, rep); err != nil {
		slog.Warn("engine: execution report failed", "order", o.ID, "err", err)
	}
	slog.Info("engine: order executed", "order", o.ID, "kind", o.Kind, "amount_in", spent, "amount_out", received)
	return nil
}

// failOrder cancels an order whose execution was rolled back, refunds its
// escrow and records the failure.
func (e *Engine) failOrder(id domain.OrderID, cause error) error {
	o, ok := e.st.orders.Get(id)
	if !ok || !o.Pending() {
		return nil
	}
	in, _ := e.key.Currencies(o.ZeroForOne)
	if err := e.pool.Transfer(e.self, o.Owner, in, o.AmountIn); err != nil {
		return fmt.Errorf("refund: %w", err)
	}
	o.Cancelled = true
	e.st.orders.Put(o)
	e.st.orders.RemoveFromOwner(o.Owner, o.ID)
	e.emit(domain.Event{
		Kind:     domain.EventOrderFailed,
		Order:    o.ID,
		Position: o.LinkedPosition,
		Account:  o.Owner,
		Currency: in,
		Amount:   o.AmountIn,
		Reason:   cause.Error(),
	})
	slog.Warn("engine: order execution failed", "order", o.ID, "class", domain.ClassOf(cause), "err", cause)
	return nil
}
