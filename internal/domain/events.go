package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind identifica el tipo de evento de auditoría.
type EventKind string

const (
	EventFeeUpdated         EventKind = "FEE_UPDATED"
	EventPositionOpened     EventKind = "POSITION_OPENED"
	EventPositionWithdrawn  EventKind = "POSITION_WITHDRAWN"
	EventPositionClosed     EventKind = "POSITION_CLOSED"
	EventRebalanceRequested EventKind = "REBALANCE_REQUESTED"
	EventPositionRebalanced EventKind = "POSITION_REBALANCED"
	EventSurplusCredited    EventKind = "SURPLUS_CREDITED"
	EventSurplusClaimed     EventKind = "SURPLUS_CLAIMED"
	EventShortfallDrawn     EventKind = "SHORTFALL_DRAWN"
	EventOrderPlaced        EventKind = "ORDER_PLACED"
	EventOrderCancelled     EventKind = "ORDER_CANCELLED"
	EventOrderExecuted      EventKind = "ORDER_EXECUTED"
	EventOrderFailed        EventKind = "ORDER_FAILED"
	EventOrderClaimed       EventKind = "ORDER_CLAIMED"
	EventOrderTrailed       EventKind = "ORDER_TRAILED"
	EventParamsUpdated      EventKind = "PARAMS_UPDATED"
)

// Event is a flat audit record. Only the fields relevant to Kind are set.
type Event struct {
	ID        string
	Kind      EventKind
	At        time.Time
	PoolID    PoolID
	Position  PositionID
	Order     OrderID
	Account   common.Address
	Currency  common.Address
	Amount    int64
	TickLower int32
	TickUpper int32
	OldFee    uint32
	NewFee    uint32
	Reason    string
}
