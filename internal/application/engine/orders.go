package engine

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// PlaceLimitOrder escrows cmd.AmountIn of the input currency from caller and
// books the order.
func (e *Engine) PlaceLimitOrder(ctx context.Context, caller common.Address, cmd domain.PlaceOrderCommand) (domain.OrderID, error) {
	var id domain.OrderID
	err := e.run("PlaceLimitOrder", func() error {
		if e.st.paused {
			return domain.ErrPaused
		}
		if cmd.Pool != e.key {
			return domain.ErrInvalidPoolKey
		}
		if cmd.AmountIn <= 0 || cmd.MinAmountOut < 0 {
			return fmt.Errorf("amount in %d, min out %d: %w", cmd.AmountIn, cmd.MinAmountOut, domain.ErrInvalidAmount)
		}
		if !domain.InTickDomain(cmd.TriggerTick) {
			return fmt.Errorf("trigger tick %d: %w", cmd.TriggerTick, domain.ErrInvalidTickRange)
		}
		if cmd.OrderKind > domain.OrderTrailing {
			return fmt.Errorf("order kind %s: %w", cmd.OrderKind, domain.ErrInvalidParameter)
		}
		if cmd.LinkedPosition != 0 {
			pos, ok := e.st.positions.Get(cmd.LinkedPosition)
			if !ok {
				return fmt.Errorf("linked position %d: %w", cmd.LinkedPosition, domain.ErrPositionNotFound)
			}
			// cerrar la posición cancela sus órdenes ligadas
			if pos.Owner != caller {
				return fmt.Errorf("linked position %d: %w", cmd.LinkedPosition, domain.ErrNotPositionOwner)
			}
		}

		in, _ := e.key.Currencies(cmd.ZeroForOne)
		if err := e.pool.Transfer(caller, e.self, in, cmd.AmountIn); err != nil {
			return fmt.Errorf("escrow: %w", err)
		}

		o := domain.LimitOrder{
			Owner:          caller,
			ZeroForOne:     cmd.ZeroForOne,
			TriggerTick:    cmd.TriggerTick,
			AmountIn:       cmd.AmountIn,
			MinAmountOut:   cmd.MinAmountOut,
			Kind:           cmd.OrderKind,
			LinkedPosition: cmd.LinkedPosition,
			PlacedAt:       e.clock.Now(),
		}
		if o.Kind == domain.OrderTrailing {
			dist := e.pool.Slot0().Tick - o.TriggerTick
			if dist < 0 {
				dist = -dist
			}
			o.TrailDistance = dist
		}
		o = e.st.orders.Add(o)
		id = o.ID
		e.emit(domain.Event{
			Kind:     domain.EventOrderPlaced,
			Order:    o.ID,
			Position: o.LinkedPosition,
			Account:  caller,
			Currency: in,
			Amount:   o.AmountIn,
			Reason:   o.Kind.String(),
		})
		return nil
	})
	return id, err
}

// CancelLimitOrder refunds a pending order to its owner.
func (e *Engine) CancelLimitOrder(ctx context.Context, caller common.Address, id domain.OrderID) error {
	return e.run("CancelLimitOrder", func() error {
		return e.cancelOwned(caller, id)
	})
}

// BulkCancel cancels every listed order; if any of them cannot be cancelled
// none is.
func (e *Engine) BulkCancel(ctx context.Context, caller common.Address, ids []domain.OrderID) error {
	return e.run("BulkCancel", func() error {
		for _, id := range ids {
			if err := e.cancelOwned(caller, id); err != nil {
				return fmt.Errorf("order %d: %w", id, err)
			}
		}
		return nil
	})
}

func (e *Engine) cancelOwned(caller common.Address, id domain.OrderID) error {
	o, ok := e.st.orders.Get(id)
	if !ok {
		return fmt.Errorf("order %d: %w", id, domain.ErrOrderNotFound)
	}
	if o.Owner != caller {
		return domain.ErrNotOrderOwner
	}
	if !o.Pending() {
		return fmt.Errorf("order %d is %s: %w", id, o.Status(), domain.ErrOrderNotPending)
	}
	return e.cancelOrder(o, "cancelled by owner")
}

// cancelOrder marks a pending order cancelled, refunds its escrow and drops it
// from the owner's index.
func (e *Engine) cancelOrder(o domain.LimitOrder, reason string) error {
	in, _ := e.key.Currencies(o.ZeroForOne)
	if err := e.pool.Transfer(e.self, o.Owner, in, o.AmountIn); err != nil {
		return fmt.Errorf("refund: %w", err)
	}
	o.Cancelled = true
	e.st.orders.Put(o)
	e.st.orders.RemoveFromOwner(o.Owner, o.ID)
	e.emit(domain.Event{
		Kind:     domain.EventOrderCancelled,
		Order:    o.ID,
		Position: o.LinkedPosition,
		Account:  o.Owner,
		Currency: in,
		Amount:   o.AmountIn,
		Reason:   reason,
	})
	return nil
}

// ClaimFilledOrder pays out the output of an executed order, once.
func (e *Engine) ClaimFilledOrder(ctx context.Context, caller common.Address, id domain.OrderID) (common.Address, int64, error) {
	var (
		currency common.Address
		amount   int64
	)
	err := e.run("ClaimFilledOrder", func() error {
		o, ok := e.st.orders.Get(id)
		if !ok {
			return fmt.Errorf("order %d: %w", id, domain.ErrOrderNotFound)
		}
		if o.Owner != caller {
			return domain.ErrNotOrderOwner
		}
		if !o.Executed {
			return fmt.Errorf("order %d is %s: %w", id, o.Status(), domain.ErrOrderNotExecuted)
		}
		if o.Claimed {
			return domain.ErrAlreadyClaimed
		}
		currency, amount = o.ClaimCurrency, o.ClaimAmount
		if err := e.pool.Transfer(e.self, caller, currency, amount); err != nil {
			return fmt.Errorf("pay claim: %w", err)
		}
		o.Claimed = true
		o.ClaimAmount = 0
		e.st.orders.Put(o)
		e.st.orders.RemoveFromOwner(caller, id)
		e.emit(domain.Event{
			Kind:     domain.EventOrderClaimed,
			Order:    id,
			Account:  caller,
			Currency: currency,
			Amount:   amount,
		})
		return nil
	})
	if err != nil {
		return common.Address{}, 0, err
	}
	return currency, amount, nil
}
