package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PositionID identifica una posición; 0 significa "ninguna".
type PositionID uint64

// Position is a depositor's liquidity commitment over a tick range.
type Position struct {
	ID            PositionID
	Owner         common.Address
	TickLower     int32
	TickUpper     int32
	Liquidity     int64
	AutoRebalance bool
	LastRebalance time.Time // zero until the first rebalance
	Salt          common.Hash
	OpenedAt      time.Time
}

// Width returns the range width in ticks.
func (p Position) Width() int32 {
	return p.TickUpper - p.TickLower
}

// InRange reports whether tick is inside [lower, upper).
func (p Position) InRange(tick int32) bool {
	return tick >= p.TickLower && tick < p.TickUpper
}

// NeedsRebalance applies the edge-proximity rule: out of range, or within 10%
// of the range width from either edge.
func (p Position) NeedsRebalance(tick int32) bool {
	buffer := p.Width() / 10
	return tick <= p.TickLower+buffer || tick >= p.TickUpper-buffer
}

// CooldownElapsed reports whether a rebalance is allowed at now.
func (p Position) CooldownElapsed(now time.Time, cooldown time.Duration) bool {
	if cooldown <= 0 || p.LastRebalance.IsZero() {
		return true
	}
	return now.Sub(p.LastRebalance) >= cooldown
}

// SurplusBalance is an unclaimed amount left over by a rebalance.
type SurplusBalance struct {
	Position PositionID
	Currency common.Address
	Amount   int64
}
