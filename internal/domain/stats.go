package domain

import "time"

// volatilityWeight is the EWMA weight given to the newest tick move.
const volatilityWeight = 0.1

// PoolStats are the running statistics updated once per trade.
type PoolStats struct {
	Volume     int64
	Trades     uint64
	LastUpdate time.Time
	Volatility float64 // EWMA of |Δtick| per trade
	CurrentFee uint32
	LastTick   int32
}

// Observe records one trade that moved the pool to tick.
func (s *PoolStats) Observe(tick int32, volume int64, now time.Time) {
	if s.Trades > 0 {
		move := float64(tick - s.LastTick)
		if move < 0 {
			move = -move
		}
		s.Volatility = (1-volatilityWeight)*s.Volatility + volatilityWeight*move
	}
	if volume < 0 {
		volume = -volume
	}
	s.Volume += volume
	s.Trades++
	s.LastTick = tick
	s.LastUpdate = now
}
