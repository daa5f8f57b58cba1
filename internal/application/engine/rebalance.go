package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/alejandrodnm/rangekeeper/internal/ports"
	"github.com/ethereum/go-ethereum/common"
)

// detectRebalances walks the live signals, newest first, and emits a
// rebalance request for each auto-rebalance position near or past an edge of
// its range. At most MaxRebalanceChecks confident signals are examined.
// Nothing is mutated besides the event buffer.
func (e *Engine) detectRebalances(tick int32) {
	live := e.signals.PositionsNeedingRebalance(e.poolID)
	checked := 0
	seen := make(map[domain.PositionID]bool)
	for i := len(live) - 1; i >= 0 && checked < e.cfg.MaxRebalanceChecks; i-- {
		sig := live[i]
		if sig.Confidence < e.st.minConf {
			continue
		}
		checked++

		pos, ok := e.st.positions.Get(sig.PositionID)
		if !ok || !pos.AutoRebalance || seen[pos.ID] {
			continue
		}
		seen[pos.ID] = true
		if !pos.NeedsRebalance(tick) {
			continue
		}

		lower := domain.AlignTick(sig.TickLower, e.key.TickSpacing)
		upper := domain.AlignTickUp(sig.TickUpper, e.key.TickSpacing)
		if domain.ValidateRange(lower, upper, e.key.TickSpacing) != nil {
			continue
		}
		if lower == pos.TickLower && upper == pos.TickUpper {
			continue
		}

		e.emit(domain.Event{
			Kind:      domain.EventRebalanceRequested,
			Position:  pos.ID,
			Account:   pos.Owner,
			TickLower: lower,
			TickUpper: upper,
			Reason:    fmt.Sprintf("confidence %d", sig.Confidence),
		})
		slog.Info("engine: rebalance requested",
			"position", pos.ID,
			"tick", tick,
			"from", fmt.Sprintf("[%d, %d]", pos.TickLower, pos.TickUpper),
			"to", fmt.Sprintf("[%d, %d]", lower, upper),
			"confidence", sig.Confidence,
		)
	}
}

// RebalancePosition moves a position's liquidity to [lower, upper). The
// caller must be the position owner or the engine owner. Whatever the new
// range cannot absorb is credited to the position's surplus. When the freed
// tokens cannot fund the new range on their own, the new liquidity is sized by
// value and the missing token is drawn from the position owner.
func (e *Engine) RebalancePosition(ctx context.Context, caller common.Address, id domain.PositionID, lower, upper int32) error {
	return e.run("RebalancePosition", func() error {
		if e.st.paused {
			return domain.ErrPaused
		}
		pos, ok := e.st.positions.Get(id)
		if !ok {
			return fmt.Errorf("position %d: %w", id, domain.ErrPositionNotFound)
		}
		if caller != pos.Owner && caller != e.owner {
			return domain.ErrNotPositionOwner
		}
		if !pos.AutoRebalance {
			return domain.ErrNotAutoRebalance
		}
		if err := domain.ValidateRange(lower, upper, e.key.TickSpacing); err != nil {
			return fmt.Errorf("range [%d, %d]: %w", lower, upper, err)
		}
		now := e.clock.Now()
		if !pos.CooldownElapsed(now, e.st.cooldown) {
			return fmt.Errorf("last rebalance %s, cooldown %s: %w",
				pos.LastRebalance.Format("15:04:05"), e.st.cooldown, domain.ErrRebalanceCooldownNotElapsed)
		}
		if other, exists := e.st.positions.Lookup(pos.Owner, lower, upper, pos.Salt); exists && other.ID != pos.ID {
			return domain.ErrPositionExists
		}

		salt := poolSalt(pos.Owner, pos.Salt)
		freed, err := e.pool.ModifyLiquidity(ctx, e.self, e.self, ports.ModifyLiquidityParams{
			TickLower:      pos.TickLower,
			TickUpper:      pos.TickUpper,
			LiquidityDelta: -pos.Liquidity,
			Salt:           salt,
		})
		if err != nil {
			return fmt.Errorf("remove liquidity: %w", err)
		}

		// Un rango que el precio ya dejó atrás libera un solo token; si el
		// rango nuevo necesita el otro, se dimensiona por valor.
		newLiquidity := e.pool.LiquidityForAmounts(lower, upper, freed.Amount0, freed.Amount1)
		if newLiquidity <= 0 {
			newLiquidity = e.pool.LiquidityForValue(lower, upper, freed.Amount0, freed.Amount1)
		}
		if newLiquidity <= 0 {
			return domain.ErrZeroLiquidity
		}
		need0, need1 := e.pool.AmountsForLiquidity(lower, upper, newLiquidity)
		drawn0, err := e.drawShortfall(pos, e.key.Currency0, need0-freed.Amount0)
		if err != nil {
			return err
		}
		drawn1, err := e.drawShortfall(pos, e.key.Currency1, need1-freed.Amount1)
		if err != nil {
			return err
		}

		used, err := e.pool.ModifyLiquidity(ctx, e.self, e.self, ports.ModifyLiquidityParams{
			TickLower:      lower,
			TickUpper:      upper,
			LiquidityDelta: newLiquidity,
			Salt:           salt,
		})
		if err != nil {
			return fmt.Errorf("add liquidity: %w", err)
		}

		if err := e.settle(pos, e.key.Currency0, freed.Amount0+drawn0+used.Amount0); err != nil {
			return err
		}
		if err := e.settle(pos, e.key.Currency1, freed.Amount1+drawn1+used.Amount1); err != nil {
			return err
		}

		prevLower, prevUpper := pos.TickLower, pos.TickUpper
		pos.TickLower, pos.TickUpper = lower, upper
		pos.Liquidity = newLiquidity
		pos.LastRebalance = now
		e.st.positions.Update(pos)

		e.emit(domain.Event{
			Kind:      domain.EventPositionRebalanced,
			Position:  pos.ID,
			Account:   caller,
			Amount:    newLiquidity,
			TickLower: lower,
			TickUpper: upper,
		})
		slog.Info("engine: position rebalanced",
			"position", pos.ID,
			"from", fmt.Sprintf("[%d, %d]", prevLower, prevUpper),
			"to", fmt.Sprintf("[%d, %d]", lower, upper),
			"liquidity", newLiquidity,
		)
		return nil
	})
}

// drawShortfall pulls from the position owner what the new range needs of a
// currency beyond what the old range freed.
func (e *Engine) drawShortfall(pos domain.Position, currency common.Address, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, nil
	}
	if err := e.pool.Transfer(pos.Owner, e.self, currency, amount); err != nil {
		return 0, fmt.Errorf("draw shortfall of %s: %w", currency.Hex(), err)
	}
	e.emit(domain.Event{
		Kind:     domain.EventShortfallDrawn,
		Position: pos.ID,
		Account:  pos.Owner,
		Currency: currency,
		Amount:   amount,
	})
	return amount, nil
}

// settle books the reflow remainder of one currency after a rebalance.
func (e *Engine) settle(pos domain.Position, currency common.Address, remainder int64) error {
	switch {
	case remainder > 0:
		e.st.positions.CreditSurplus(pos.ID, currency, remainder)
		e.emit(domain.Event{
			Kind:     domain.EventSurplusCredited,
			Position: pos.ID,
			Account:  pos.Owner,
			Currency: currency,
			Amount:   remainder,
		})
	case remainder < 0:
		if _, err := e.drawShortfall(pos, currency, -remainder); err != nil {
			return err
		}
	}
	return nil
}
