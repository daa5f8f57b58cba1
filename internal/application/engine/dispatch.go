package engine

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// Dispatch routes a tagged command to the matching operation.
func (e *Engine) Dispatch(ctx context.Context, caller common.Address, cmd domain.Command) (domain.CommandResult, error) {
	if cmd == nil {
		return domain.CommandResult{}, fmt.Errorf("engine.Dispatch: nil command: %w", domain.ErrInvalidParameter)
	}
	res := domain.CommandResult{Kind: cmd.Kind()}
	var err error

	switch c := cmd.(type) {
	case domain.OpenPositionCommand:
		res.Position, err = e.OpenPosition(ctx, caller, c)
	case domain.RemovePositionCommand:
		res.Position = c.PositionID
		if c.Liquidity == 0 {
			err = e.RemovePosition(ctx, caller, c.PositionID)
		} else {
			err = e.Withdraw(ctx, caller, c.PositionID, c.Liquidity)
		}
	case domain.RebalanceCommand:
		res.Position = c.PositionID
		err = e.RebalancePosition(ctx, caller, c.PositionID, c.TickLower, c.TickUpper)
	case domain.ClaimSurplusCommand:
		res.Position = c.PositionID
		res.Currency = c.Currency
		res.Amount, err = e.ClaimSurplus(ctx, caller, c.PositionID, c.Currency)
	case domain.PlaceOrderCommand:
		res.Order, err = e.PlaceLimitOrder(ctx, caller, c)
	case domain.CancelOrderCommand:
		res.Order = c.OrderID
		err = e.CancelLimitOrder(ctx, caller, c.OrderID)
	case domain.BulkCancelCommand:
		res.Amount = int64(len(c.OrderIDs))
		err = e.BulkCancel(ctx, caller, c.OrderIDs)
	case domain.ClaimOrderCommand:
		res.Order = c.OrderID
		res.Currency, res.Amount, err = e.ClaimFilledOrder(ctx, caller, c.OrderID)
	default:
		return res, fmt.Errorf("engine.Dispatch: command %q: %w", cmd.Kind(), domain.ErrInvalidParameter)
	}
	return res, err
}
