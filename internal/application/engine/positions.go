package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/alejandrodnm/rangekeeper/internal/ports"
	"github.com/ethereum/go-ethereum/common"
)

// OpenPosition deposits liquidity into a range on behalf of caller, who pays
// the token amounts the range needs at the current price.
func (e *Engine) OpenPosition(ctx context.Context, caller common.Address, cmd domain.OpenPositionCommand) (domain.PositionID, error) {
	var id domain.PositionID
	err := e.run("OpenPosition", func() error {
		if e.st.paused {
			return domain.ErrPaused
		}
		if cmd.Liquidity <= 0 {
			return fmt.Errorf("liquidity %d: %w", cmd.Liquidity, domain.ErrInvalidAmount)
		}
		if err := domain.ValidateRange(cmd.TickLower, cmd.TickUpper, e.key.TickSpacing); err != nil {
			return fmt.Errorf("range [%d, %d]: %w", cmd.TickLower, cmd.TickUpper, err)
		}
		salt := cmd.Salt
		if salt == (common.Hash{}) {
			salt = defaultSalt(e.st.positions.NextID())
		}
		if _, exists := e.st.positions.Lookup(caller, cmd.TickLower, cmd.TickUpper, salt); exists {
			return domain.ErrPositionExists
		}

		_, err := e.pool.ModifyLiquidity(ctx, e.self, caller, ports.ModifyLiquidityParams{
			TickLower:      cmd.TickLower,
			TickUpper:      cmd.TickUpper,
			LiquidityDelta: cmd.Liquidity,
			Salt:           poolSalt(caller, salt),
		})
		if err != nil {
			return fmt.Errorf("add liquidity: %w", err)
		}

		pos := e.st.positions.Open(domain.Position{
			Owner:         caller,
			TickLower:     cmd.TickLower,
			TickUpper:     cmd.TickUpper,
			Liquidity:     cmd.Liquidity,
			AutoRebalance: cmd.AutoRebalance,
			Salt:          salt,
			OpenedAt:      e.clock.Now(),
		})
		id = pos.ID
		e.emit(domain.Event{
			Kind:      domain.EventPositionOpened,
			Position:  pos.ID,
			Account:   caller,
			Amount:    pos.Liquidity,
			TickLower: pos.TickLower,
			TickUpper: pos.TickUpper,
		})
		return nil
	})
	return id, err
}

// Withdraw removes liquidity from a position. A liquidity that covers the
// whole position closes it; use RemovePosition to close without naming one.
func (e *Engine) Withdraw(ctx context.Context, caller common.Address, id domain.PositionID, liquidity int64) error {
	return e.run("Withdraw", func() error {
		pos, err := e.ownedForBurn(caller, id)
		if err != nil {
			return err
		}
		if liquidity <= 0 {
			return fmt.Errorf("liquidity %d: %w", liquidity, domain.ErrInvalidAmount)
		}
		if liquidity >= pos.Liquidity {
			return e.closePosition(ctx, pos)
		}

		_, err = e.pool.ModifyLiquidity(ctx, e.self, pos.Owner, ports.ModifyLiquidityParams{
			TickLower:      pos.TickLower,
			TickUpper:      pos.TickUpper,
			LiquidityDelta: -liquidity,
			Salt:           poolSalt(pos.Owner, pos.Salt),
		})
		if err != nil {
			return fmt.Errorf("remove liquidity: %w", err)
		}
		pos.Liquidity -= liquidity
		e.st.positions.Update(pos)
		e.emit(domain.Event{
			Kind:      domain.EventPositionWithdrawn,
			Position:  pos.ID,
			Account:   pos.Owner,
			Amount:    liquidity,
			TickLower: pos.TickLower,
			TickUpper: pos.TickUpper,
		})
		return nil
	})
}

// RemovePosition closes the caller's position by id.
func (e *Engine) RemovePosition(ctx context.Context, caller common.Address, id domain.PositionID) error {
	return e.run("RemovePosition", func() error {
		pos, err := e.ownedForBurn(caller, id)
		if err != nil {
			return err
		}
		return e.closePosition(ctx, pos)
	})
}

func (e *Engine) ownedForBurn(caller common.Address, id domain.PositionID) (domain.Position, error) {
	pos, ok := e.st.positions.Get(id)
	if !ok {
		return domain.Position{}, fmt.Errorf("position %d: %w", id, domain.ErrPositionNotFoundOnBurn)
	}
	if pos.Owner != caller {
		return domain.Position{}, domain.ErrNotPositionOwner
	}
	return pos, nil
}

// ClosePosition burns the caller's position identified by range and salt.
func (e *Engine) ClosePosition(ctx context.Context, caller common.Address, lower, upper int32, salt common.Hash) error {
	return e.run("ClosePosition", func() error {
		pos, ok := e.st.positions.Lookup(caller, lower, upper, salt)
		if !ok {
			return fmt.Errorf("range [%d, %d]: %w", lower, upper, domain.ErrPositionNotFoundOnBurn)
		}
		return e.closePosition(ctx, pos)
	})
}

// closePosition returns all liquidity to the owner, cancels and refunds the
// linked orders and pays out any surplus before deleting the record.
func (e *Engine) closePosition(ctx context.Context, pos domain.Position) error {
	_, err := e.pool.ModifyLiquidity(ctx, e.self, pos.Owner, ports.ModifyLiquidityParams{
		TickLower:      pos.TickLower,
		TickUpper:      pos.TickUpper,
		LiquidityDelta: -pos.Liquidity,
		Salt:           poolSalt(pos.Owner, pos.Salt),
	})
	if err != nil {
		return fmt.Errorf("remove liquidity: %w", err)
	}

	for _, oid := range e.st.orders.Unlink(pos.ID) {
		o, ok := e.st.orders.Get(oid)
		if !ok || !o.Pending() {
			continue
		}
		if err := e.cancelOrder(o, "linked position closed"); err != nil {
			return fmt.Errorf("cancel linked order %d: %w", oid, err)
		}
	}

	for _, currency := range []common.Address{e.key.Currency0, e.key.Currency1} {
		amount := e.st.positions.TakeSurplus(pos.ID, currency)
		if amount == 0 {
			continue
		}
		if err := e.pool.Transfer(e.self, pos.Owner, currency, amount); err != nil {
			return fmt.Errorf("sweep surplus: %w", err)
		}
		e.emit(domain.Event{
			Kind:     domain.EventSurplusClaimed,
			Position: pos.ID,
			Account:  pos.Owner,
			Currency: currency,
			Amount:   amount,
		})
	}

	e.st.positions.Remove(pos.ID)
	e.emit(domain.Event{
		Kind:      domain.EventPositionClosed,
		Position:  pos.ID,
		Account:   pos.Owner,
		Amount:    pos.Liquidity,
		TickLower: pos.TickLower,
		TickUpper: pos.TickUpper,
	})
	slog.Debug("engine: position closed", "position", pos.ID, "owner", pos.Owner.Hex())
	return nil
}

// ClaimSurplus pays the position owner its rebalance surplus in currency.
func (e *Engine) ClaimSurplus(ctx context.Context, caller common.Address, id domain.PositionID, currency common.Address) (int64, error) {
	var amount int64
	err := e.run("ClaimSurplus", func() error {
		if !e.isPoolCurrency(currency) {
			return fmt.Errorf("currency %s: %w", currency.Hex(), domain.ErrInvalidParameter)
		}
		pos, ok := e.st.positions.Get(id)
		if !ok {
			return fmt.Errorf("position %d: %w", id, domain.ErrPositionNotFound)
		}
		if pos.Owner != caller {
			return domain.ErrNotPositionOwner
		}
		amount = e.st.positions.TakeSurplus(id, currency)
		if amount == 0 {
			return domain.ErrNothingToClaim
		}
		if err := e.pool.Transfer(e.self, caller, currency, amount); err != nil {
			return fmt.Errorf("pay surplus: %w", err)
		}
		e.emit(domain.Event{
			Kind:     domain.EventSurplusClaimed,
			Position: id,
			Account:  caller,
			Currency: currency,
			Amount:   amount,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}
