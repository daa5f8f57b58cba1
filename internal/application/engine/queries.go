package engine

import (
	"time"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// Params are the runtime parameters the owner can change.
type Params struct {
	Paused        bool
	Cooldown      time.Duration
	MinConfidence uint8
	SignalWriter  common.Address
	SignalTTL     time.Duration
}

func (e *Engine) Params() Params {
	return Params{
		Paused:        e.st.paused,
		Cooldown:      e.st.cooldown,
		MinConfidence: e.st.minConf,
		SignalWriter:  e.signals.Writer(),
		SignalTTL:     e.signals.TTL(),
	}
}

func (e *Engine) Stats() domain.PoolStats { return e.st.stats }

func (e *Engine) Position(id domain.PositionID) (domain.Position, bool) {
	return e.st.positions.Get(id)
}

func (e *Engine) PositionsByOwner(owner common.Address) []domain.Position {
	return e.st.positions.ByOwner(owner)
}

func (e *Engine) Positions() []domain.Position { return e.st.positions.All() }

func (e *Engine) Surplus(id domain.PositionID, currency common.Address) int64 {
	return e.st.positions.Surplus(id, currency)
}

func (e *Engine) Order(id domain.OrderID) (domain.LimitOrder, bool) {
	return e.st.orders.Get(id)
}

// OrdersByOwner returns the orders still in the owner's index: pending ones
// and executed ones not yet claimed.
func (e *Engine) OrdersByOwner(owner common.Address) []domain.LimitOrder {
	return e.st.orders.ByOwner(owner)
}

func (e *Engine) Orders() []domain.LimitOrder { return e.st.orders.All() }

// PendingScanLen returns how many ids sit in the pool's scan list, including
// resolved ones not yet compacted.
func (e *Engine) PendingScanLen() int { return e.st.orders.PoolLen() }

func (e *Engine) LiveSignals() []domain.RebalanceSignal {
	return e.signals.PositionsNeedingRebalance(e.poolID)
}

func (e *Engine) DynamicFee() (uint32, uint8) { return e.signals.DynamicFee(e.poolID) }

func (e *Engine) OptimalRange(id domain.PositionID) (int32, int32, uint8) {
	return e.signals.OptimalRange(e.poolID, id)
}

func (e *Engine) Reports() []domain.ExecutionReport { return e.signals.Reports(e.poolID) }

// Obligations returns what the engine owes in currency: pending order escrow,
// unclaimed order output and unclaimed surplus. At rest the custody balance
// equals this sum.
func (e *Engine) Obligations(currency common.Address) int64 {
	return e.st.orders.PendingEscrow(e.key, currency) +
		e.st.orders.UnclaimedOutput(currency) +
		e.st.positions.SurplusTotal(currency)
}

// ExportState devuelve el layout persistible del estado actual.
func (e *Engine) ExportState() domain.EngineState {
	slots, writeIndex, fee := e.signals.Export(e.poolID)
	return domain.EngineState{
		PoolID:           e.poolID,
		Stats:            e.st.stats,
		Paused:           e.st.paused,
		Cooldown:         e.st.cooldown,
		MinConfidence:    e.st.minConf,
		NextPositionID:   e.st.positions.NextID(),
		NextOrderID:      e.st.orders.NextID(),
		Positions:        e.st.positions.All(),
		Orders:           e.st.orders.All(),
		PoolOrderIDs:     e.st.orders.PoolIDs(),
		Surplus:          e.st.positions.SurplusBalances(),
		Signals:          slots,
		SignalWriteIndex: writeIndex,
		FeeRec:           fee,
	}
}
