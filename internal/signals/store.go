// Package signals holds the recommendations posted by the off-chain analyzer:
// a fixed-capacity ring buffer of rebalance signals and a single fee slot per
// pool. Entries expire lazily: reads skip anything older than the TTL.
package signals

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/alejandrodnm/rangekeeper/internal/ports"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// Capacity is the number of rebalance signals kept per pool.
	Capacity = 32

	// DefaultTTL is how long a signal stays live.
	DefaultTTL = 300 * time.Second

	maxReports = 32
)

// ring is a write-ordered buffer; slot writeIndex%Capacity is overwritten next.
type ring struct {
	slots      [Capacity]domain.RebalanceSignal
	writeIndex uint64
}

func (r *ring) len() int {
	if r.writeIndex < Capacity {
		return int(r.writeIndex)
	}
	return Capacity
}

// ordered returns the stored entries oldest write first.
func (r *ring) ordered() []domain.RebalanceSignal {
	n := r.len()
	out := make([]domain.RebalanceSignal, 0, n)
	start := 0
	if r.writeIndex > Capacity {
		start = int(r.writeIndex % Capacity)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.slots[(start+i)%Capacity])
	}
	return out
}

type storeState struct {
	ttl     time.Duration
	writer  common.Address
	rings   map[domain.PoolID]*ring
	fees    map[domain.PoolID]domain.FeeRecommendation
	reports map[domain.PoolID][]domain.ExecutionReport
}

func (s *storeState) clone() *storeState {
	c := &storeState{
		ttl:     s.ttl,
		writer:  s.writer,
		rings:   make(map[domain.PoolID]*ring, len(s.rings)),
		fees:    make(map[domain.PoolID]domain.FeeRecommendation, len(s.fees)),
		reports: make(map[domain.PoolID][]domain.ExecutionReport, len(s.reports)),
	}
	for id, r := range s.rings {
		cp := *r
		c.rings[id] = &cp
	}
	for id, f := range s.fees {
		c.fees[id] = f
	}
	for id, rs := range s.reports {
		c.reports[id] = append([]domain.ExecutionReport(nil), rs...)
	}
	return c
}

// Store implements the Signal Store. Only the writer may post; only the
// owner may change the writer or the TTL; only the reporter may record
// execution reports.
type Store struct {
	clock    ports.Clock
	owner    common.Address
	reporter common.Address
	st       *storeState
}

// NewStore crea un store vacío con TTL por defecto.
func NewStore(clock ports.Clock, owner, writer common.Address) *Store {
	return &Store{
		clock: clock,
		owner: owner,
		st: &storeState{
			ttl:     DefaultTTL,
			writer:  writer,
			rings:   make(map[domain.PoolID]*ring),
			fees:    make(map[domain.PoolID]domain.FeeRecommendation),
			reports: make(map[domain.PoolID][]domain.ExecutionReport),
		},
	}
}

// Snapshot implementa txn.Participant.
func (s *Store) Snapshot() any { return s.st.clone() }

// Restore implementa txn.Participant.
func (s *Store) Restore(snap any) { s.st = snap.(*storeState) }

// Writer devuelve la identidad autorizada para publicar señales.
func (s *Store) Writer() common.Address { return s.st.writer }

// TTL devuelve la ventana de vigencia actual.
func (s *Store) TTL() time.Duration { return s.st.ttl }

// SetWriter cambia la identidad autorizada. Solo el owner.
func (s *Store) SetWriter(caller, writer common.Address) error {
	if caller != s.owner {
		return fmt.Errorf("signals.SetWriter: %w", domain.ErrUnauthorized)
	}
	s.st.writer = writer
	return nil
}

// SetTTL cambia la ventana de vigencia. Solo el owner.
func (s *Store) SetTTL(caller common.Address, ttl time.Duration) error {
	if caller != s.owner {
		return fmt.Errorf("signals.SetTTL: %w", domain.ErrUnauthorized)
	}
	if ttl <= 0 {
		return fmt.Errorf("signals.SetTTL: ttl %s: %w", ttl, domain.ErrInvalidParameter)
	}
	s.st.ttl = ttl
	return nil
}

// SetReporter fija la identidad (el engine) que puede registrar ejecuciones.
func (s *Store) SetReporter(reporter common.Address) {
	s.reporter = reporter
}

// PostRebalanceSignal stores a signal in the pool's ring buffer.
func (s *Store) PostRebalanceSignal(caller common.Address, poolID domain.PoolID, sig domain.RebalanceSignal) error {
	if caller != s.st.writer {
		return fmt.Errorf("signals.PostRebalanceSignal: %w", domain.ErrUnauthorized)
	}
	if err := s.validate(sig.Confidence, sig.Timestamp); err != nil {
		return fmt.Errorf("signals.PostRebalanceSignal: position %d: %w", sig.PositionID, err)
	}

	r := s.st.rings[poolID]
	if r == nil {
		r = &ring{}
		s.st.rings[poolID] = r
	}
	r.slots[r.writeIndex%Capacity] = sig
	r.writeIndex++

	slog.Debug("signals: rebalance signal stored",
		"position", sig.PositionID,
		"lower", sig.TickLower,
		"upper", sig.TickUpper,
		"confidence", sig.Confidence,
		"write_index", r.writeIndex,
	)
	return nil
}

// PostFeeRecommendation overwrites the pool's single fee slot.
func (s *Store) PostFeeRecommendation(caller common.Address, poolID domain.PoolID, rec domain.FeeRecommendation) error {
	if caller != s.st.writer {
		return fmt.Errorf("signals.PostFeeRecommendation: %w", domain.ErrUnauthorized)
	}
	if err := s.validate(rec.Confidence, rec.Timestamp); err != nil {
		return fmt.Errorf("signals.PostFeeRecommendation: %w", err)
	}
	s.st.fees[poolID] = rec
	return nil
}

func (s *Store) validate(confidence uint8, ts time.Time) error {
	if confidence > domain.MaxConfidence {
		return domain.ErrInvalidConfidence
	}
	now := s.clock.Now()
	if ts.After(now) {
		return domain.ErrFutureTimestamp
	}
	if now.Sub(ts) > s.st.ttl {
		return domain.ErrStaleSignal
	}
	return nil
}

func (s *Store) live(ts time.Time, now time.Time) bool {
	return !ts.After(now) && now.Sub(ts) <= s.st.ttl
}

// PositionsNeedingRebalance returns the live signals of a pool, oldest write first.
func (s *Store) PositionsNeedingRebalance(poolID domain.PoolID) []domain.RebalanceSignal {
	r := s.st.rings[poolID]
	if r == nil {
		return nil
	}
	now := s.clock.Now()
	var out []domain.RebalanceSignal
	for _, sig := range r.ordered() {
		if s.live(sig.Timestamp, now) {
			out = append(out, sig)
		}
	}
	return out
}

// DynamicFee returns the live fee recommendation, or (0, 0) if absent or stale.
func (s *Store) DynamicFee(poolID domain.PoolID) (fee uint32, confidence uint8) {
	rec, ok := s.st.fees[poolID]
	if !ok || !s.live(rec.Timestamp, s.clock.Now()) {
		return 0, 0
	}
	return rec.Fee, rec.Confidence
}

// OptimalRange returns the most recently written live signal for the position,
// or (0, 0, 0) when none matches.
func (s *Store) OptimalRange(poolID domain.PoolID, positionID domain.PositionID) (lower, upper int32, confidence uint8) {
	live := s.PositionsNeedingRebalance(poolID)
	for i := len(live) - 1; i >= 0; i-- {
		if live[i].PositionID == positionID {
			return live[i].TickLower, live[i].TickUpper, live[i].Confidence
		}
	}
	return 0, 0, 0
}

// ClearOldSignals compacts the ring: expired entries are dropped, live ones
// keep their write order, and the write index restarts at the live count.
// Returns how many entries were removed.
func (s *Store) ClearOldSignals(poolID domain.PoolID) int {
	r := s.st.rings[poolID]
	if r == nil {
		return 0
	}
	before := r.len()
	live := s.PositionsNeedingRebalance(poolID)

	compacted := &ring{}
	for i, sig := range live {
		compacted.slots[i] = sig
	}
	compacted.writeIndex = uint64(len(live))
	s.st.rings[poolID] = compacted

	removed := before - len(live)
	if removed > 0 {
		slog.Info("signals: compacted ring buffer", "removed", removed, "live", len(live))
	}
	return removed
}

// RecordExecution stores an order execution report for off-chain indexing.
func (s *Store) RecordExecution(caller common.Address, poolID domain.PoolID, rep domain.ExecutionReport) error {
	if caller != s.reporter {
		return fmt.Errorf("signals.RecordExecution: %w", domain.ErrUnauthorized)
	}
	reports := append(s.st.reports[poolID], rep)
	if len(reports) > maxReports {
		reports = reports[len(reports)-maxReports:]
	}
	s.st.reports[poolID] = reports
	return nil
}

// Reports devuelve los últimos reportes de ejecución del pool.
func (s *Store) Reports(poolID domain.PoolID) []domain.ExecutionReport {
	return append([]domain.ExecutionReport(nil), s.st.reports[poolID]...)
}

// Export devuelve el contenido crudo del ring (en orden de slot), el write index
// y el slot de fee, para persistencia.
func (s *Store) Export(poolID domain.PoolID) (slots []domain.RebalanceSignal, writeIndex uint64, fee domain.FeeRecommendation) {
	if r := s.st.rings[poolID]; r != nil {
		slots = append(slots, r.slots[:r.len()]...)
		writeIndex = r.writeIndex
	}
	return slots, writeIndex, s.st.fees[poolID]
}
