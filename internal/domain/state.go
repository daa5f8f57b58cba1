package domain

import "time"

// EngineState is the persisted layout of one engine instance.
type EngineState struct {
	PoolID         PoolID
	Stats          PoolStats
	Paused         bool
	Cooldown       time.Duration
	MinConfidence  uint8
	NextPositionID PositionID
	NextOrderID    OrderID
	Positions      []Position
	Orders         []LimitOrder
	PoolOrderIDs   []OrderID // scan list, in its current (unordered) layout
	Surplus        []SurplusBalance

	Signals          []RebalanceSignal // ring buffer slots, in slot order
	SignalWriteIndex uint64
	FeeRec           FeeRecommendation
}
