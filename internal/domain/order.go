package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// OrderID identifica una orden límite.
type OrderID uint64

// OrderKind is a label for the intent of a limit order.
type OrderKind uint8

const (
	OrderStopLoss OrderKind = iota
	OrderTakeProfit
	OrderTrailing
)

func (k OrderKind) String() string {
	switch k {
	case OrderStopLoss:
		return "stop_loss"
	case OrderTakeProfit:
		return "take_profit"
	case OrderTrailing:
		return "trailing"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseOrderKind acepta "stop_loss", "take_profit" o "trailing".
func ParseOrderKind(s string) (OrderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stop_loss", "stoploss", "":
		return OrderStopLoss, nil
	case "take_profit", "takeprofit":
		return OrderTakeProfit, nil
	case "trailing":
		return OrderTrailing, nil
	}
	return 0, fmt.Errorf("unknown order kind %q: %w", s, ErrInvalidParameter)
}

// UnmarshalText permite usar el kind directamente en YAML.
func (k *OrderKind) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// OrderStatus is derived from the executed/cancelled flags.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderExecuted  OrderStatus = "EXECUTED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// LimitOrder is an escrowed order that the engine fills once the pool tick
// crosses TriggerTick.
type LimitOrder struct {
	ID             OrderID
	Owner          common.Address
	ZeroForOne     bool // sells currency0 for currency1
	TriggerTick    int32
	AmountIn       int64
	MinAmountOut   int64
	Kind           OrderKind
	LinkedPosition PositionID
	Executed       bool
	Cancelled      bool
	Claimed        bool
	ClaimCurrency  common.Address
	ClaimAmount    int64
	TrailDistance  int32 // only for trailing orders
	PlacedAt       time.Time
	ExecutedAt     time.Time
}

// Status returns exactly one of pending, executed or cancelled.
func (o LimitOrder) Status() OrderStatus {
	switch {
	case o.Executed:
		return OrderExecuted
	case o.Cancelled:
		return OrderCancelled
	default:
		return OrderPending
	}
}

// Pending reports whether the order still holds escrow.
func (o LimitOrder) Pending() bool {
	return !o.Executed && !o.Cancelled
}

// Triggered applies the one-sided inclusive trigger rule.
func (o LimitOrder) Triggered(tick int32) bool {
	if o.ZeroForOne {
		return tick <= o.TriggerTick
	}
	return tick >= o.TriggerTick
}

// Trail ratchets a trailing order's trigger toward tick keeping TrailDistance.
// The trigger never moves away from the price. Returns true if it moved.
// Only orders the execution pass reaches are trailed: once MaxOrdersPerSwap
// orders have been attempted the scan stops, and orders behind the cut-off
// keep their trigger until a later trade reaches them.
func (o *LimitOrder) Trail(tick int32) bool {
	if o.Kind != OrderTrailing || !o.Pending() {
		return false
	}
	if o.ZeroForOne {
		if next := tick - o.TrailDistance; next > o.TriggerTick {
			o.TriggerTick = next
			return true
		}
		return false
	}
	if next := tick + o.TrailDistance; next < o.TriggerTick {
		o.TriggerTick = next
		return true
	}
	return false
}
