package domain

import "github.com/ethereum/go-ethereum/common"

// CommandKind is the explicit tag of a user-facing engine command.
type CommandKind string

const (
	CmdOpenPosition   CommandKind = "open_position"
	CmdRemovePosition CommandKind = "remove_position"
	CmdRebalance      CommandKind = "rebalance"
	CmdClaimSurplus   CommandKind = "claim_surplus"
	CmdPlaceOrder     CommandKind = "place_order"
	CmdCancelOrder    CommandKind = "cancel_order"
	CmdBulkCancel     CommandKind = "bulk_cancel"
	CmdClaimOrder     CommandKind = "claim_order"
)

// Command is the closed set of commands accepted by the engine dispatcher.
type Command interface {
	Kind() CommandKind
	command()
}

type OpenPositionCommand struct {
	TickLower     int32       `yaml:"tick_lower"`
	TickUpper     int32       `yaml:"tick_upper"`
	Liquidity     int64       `yaml:"liquidity"`
	AutoRebalance bool        `yaml:"auto_rebalance"`
	Salt          common.Hash `yaml:"-"`
}

// RemovePositionCommand withdraws Liquidity from a position; 0 withdraws all of it.
type RemovePositionCommand struct {
	PositionID PositionID `yaml:"position_id"`
	Liquidity  int64      `yaml:"liquidity"`
}

type RebalanceCommand struct {
	PositionID PositionID `yaml:"position_id"`
	TickLower  int32      `yaml:"tick_lower"`
	TickUpper  int32      `yaml:"tick_upper"`
}

type ClaimSurplusCommand struct {
	PositionID PositionID     `yaml:"position_id"`
	Currency   common.Address `yaml:"-"`
}

type PlaceOrderCommand struct {
	Pool           PoolKey    `yaml:"-"`
	ZeroForOne     bool       `yaml:"zero_for_one"`
	TriggerTick    int32      `yaml:"trigger_tick"`
	AmountIn       int64      `yaml:"amount_in"`
	MinAmountOut   int64      `yaml:"min_amount_out"`
	OrderKind      OrderKind  `yaml:"order_kind"`
	LinkedPosition PositionID `yaml:"linked_position"`
}

type CancelOrderCommand struct {
	OrderID OrderID `yaml:"order_id"`
}

type BulkCancelCommand struct {
	OrderIDs []OrderID `yaml:"order_ids"`
}

type ClaimOrderCommand struct {
	OrderID OrderID `yaml:"order_id"`
}

func (OpenPositionCommand) Kind() CommandKind { return CmdOpenPosition }
func (RemovePositionCommand) Kind() CommandKind { return CmdRemovePosition }
func (RebalanceCommand) Kind() CommandKind { return CmdRebalance }
func (ClaimSurplusCommand) Kind() CommandKind { return CmdClaimSurplus }
func (PlaceOrderCommand) Kind() CommandKind { return CmdPlaceOrder }
func (CancelOrderCommand) Kind() CommandKind { return CmdCancelOrder }
func (BulkCancelCommand) Kind() CommandKind { return CmdBulkCancel }
func (ClaimOrderCommand) Kind() CommandKind { return CmdClaimOrder }

func (OpenPositionCommand) command() {}
func (RemovePositionCommand) command() {}
func (RebalanceCommand) command() {}
func (ClaimSurplusCommand) command() {}
func (PlaceOrderCommand) command() {}
func (CancelOrderCommand) command() {}
func (BulkCancelCommand) command() {}
func (ClaimOrderCommand) command() {}

// CommandResult carries whatever the command produced.
type CommandResult struct {
	Kind     CommandKind
	Position PositionID
	Order    OrderID
	Currency common.Address
	Amount   int64
}
