package signals_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/rangekeeper/internal/adapters/clock"
	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/alejandrodnm/rangekeeper/internal/signals"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner  = common.HexToAddress("0xa11ce")
	writer = common.HexToAddress("0xb07")
	pool   = common.HexToHash("0x01")
	start  = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
)

func newStore() (*signals.Store, *clock.Manual) {
	clk := clock.NewManual(start)
	return signals.NewStore(clk, owner, writer), clk
}

func sig(pos domain.PositionID, conf uint8, ts time.Time) domain.RebalanceSignal {
	return domain.RebalanceSignal{PositionID: pos, TickLower: -240, TickUpper: 240, Confidence: conf, Timestamp: ts}
}

func TestPost_RejectsInvalidInputs(t *testing.T) {
	s, clk := newStore()
	now := clk.Now()

	err := s.PostRebalanceSignal(writer, pool, sig(1, 101, now))
	assert.ErrorIs(t, err, domain.ErrInvalidConfidence)

	err = s.PostRebalanceSignal(writer, pool, sig(1, 90, now.Add(time.Second)))
	assert.ErrorIs(t, err, domain.ErrFutureTimestamp)

	err = s.PostRebalanceSignal(writer, pool, sig(1, 90, now.Add(-301*time.Second)))
	assert.ErrorIs(t, err, domain.ErrStaleSignal)

	err = s.PostRebalanceSignal(owner, pool, sig(1, 90, now))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = s.PostFeeRecommendation(writer, pool, domain.FeeRecommendation{Fee: 5000, Confidence: 200, Timestamp: now})
	assert.ErrorIs(t, err, domain.ErrInvalidConfidence)

	assert.Empty(t, s.PositionsNeedingRebalance(pool))
}

func TestPost_AcceptsBoundaryValues(t *testing.T) {
	s, clk := newStore()
	now := clk.Now()

	require.NoError(t, s.PostRebalanceSignal(writer, pool, sig(1, 100, now)))
	require.NoError(t, s.PostRebalanceSignal(writer, pool, sig(2, 0, now.Add(-300*time.Second))))
	assert.Len(t, s.PositionsNeedingRebalance(pool), 2)
}

func TestRing_ThirtyThirdWriteEvictsFirst(t *testing.T) {
	s, clk := newStore()
	now := clk.Now()

	for i := 1; i <= signals.Capacity+1; i++ {
		require.NoError(t, s.PostRebalanceSignal(writer, pool, sig(domain.PositionID(i), 80, now)))
	}

	live := s.PositionsNeedingRebalance(pool)
	require.Len(t, live, signals.Capacity)
	assert.Equal(t, domain.PositionID(2), live[0].PositionID, "oldest write evicted")
	assert.Equal(t, domain.PositionID(33), live[len(live)-1].PositionID)
}

func TestReads_FilterExpiredLazily(t *testing.T) {
	s, clk := newStore()

	require.NoError(t, s.PostRebalanceSignal(writer, pool, sig(1, 90, clk.Now())))
	clk.Advance(200 * time.Second)
	require.NoError(t, s.PostRebalanceSignal(writer, pool, sig(2, 90, clk.Now())))

	clk.Advance(101 * time.Second)
	live := s.PositionsNeedingRebalance(pool)
	require.Len(t, live, 1)
	assert.Equal(t, domain.PositionID(2), live[0].PositionID)

	for _, q := range []time.Duration{0, time.Minute, time.Hour} {
		clk.Advance(q)
		for _, l := range s.PositionsNeedingRebalance(pool) {
			assert.LessOrEqual(t, clk.Now().Sub(l.Timestamp), s.TTL())
		}
	}
}

func TestDynamicFee_StaleReadsAsZero(t *testing.T) {
	s, clk := newStore()
	require.NoError(t, s.PostFeeRecommendation(writer, pool, domain.FeeRecommendation{Fee: 5000, Confidence: 90, Timestamp: clk.Now()}))

	fee, conf := s.DynamicFee(pool)
	assert.Equal(t, uint32(5000), fee)
	assert.Equal(t, uint8(90), conf)

	clk.Advance(301 * time.Second)
	fee, conf = s.DynamicFee(pool)
	assert.Zero(t, fee)
	assert.Zero(t, conf)
}

func TestOptimalRange(t *testing.T) {
	s, clk := newStore()
	now := clk.Now()

	lower, upper, conf := s.OptimalRange(pool, 7)
	assert.Zero(t, lower)
	assert.Zero(t, upper)
	assert.Zero(t, conf)

	require.NoError(t, s.PostRebalanceSignal(writer, pool, sig(7, 70, now)))
	newer := domain.RebalanceSignal{PositionID: 7, TickLower: -600, TickUpper: 600, Confidence: 95, Timestamp: now}
	require.NoError(t, s.PostRebalanceSignal(writer, pool, newer))

	lower, upper, conf = s.OptimalRange(pool, 7)
	assert.Equal(t, int32(-600), lower)
	assert.Equal(t, int32(600), upper)
	assert.Equal(t, uint8(95), conf)
}

func TestClearOldSignals_CompactsAndResetsIndex(t *testing.T) {
	s, clk := newStore()

	require.NoError(t, s.PostRebalanceSignal(writer, pool, sig(1, 90, clk.Now())))
	require.NoError(t, s.PostRebalanceSignal(writer, pool, sig(2, 90, clk.Now())))
	clk.Advance(250 * time.Second)
	require.NoError(t, s.PostRebalanceSignal(writer, pool, sig(3, 90, clk.Now())))
	clk.Advance(100 * time.Second)

	removed := s.ClearOldSignals(pool)
	assert.Equal(t, 2, removed)

	slots, writeIndex, _ := s.Export(pool)
	require.Len(t, slots, 1)
	assert.Equal(t, uint64(1), writeIndex)
	assert.Equal(t, domain.PositionID(3), slots[0].PositionID)
}

func TestAdmin_OwnerOnly(t *testing.T) {
	s, clk := newStore()
	other := common.HexToAddress("0xdead")

	assert.ErrorIs(t, s.SetWriter(other, other), domain.ErrUnauthorized)
	assert.ErrorIs(t, s.SetTTL(other, time.Minute), domain.ErrUnauthorized)
	assert.ErrorIs(t, s.SetTTL(owner, 0), domain.ErrInvalidParameter)

	require.NoError(t, s.SetWriter(owner, other))
	assert.ErrorIs(t, s.PostRebalanceSignal(writer, pool, sig(1, 90, clk.Now())), domain.ErrUnauthorized)
	assert.NoError(t, s.PostRebalanceSignal(other, pool, sig(1, 90, clk.Now())))
}

func TestRecordExecution_ReporterOnly(t *testing.T) {
	s, clk := newStore()
	hook := common.HexToAddress("0x4444")
	s.SetReporter(hook)

	rep := domain.ExecutionReport{OrderID: 1, AmountOut: 10, Timestamp: clk.Now()}
	assert.ErrorIs(t, s.RecordExecution(writer, pool, rep), domain.ErrUnauthorized)
	require.NoError(t, s.RecordExecution(hook, pool, rep))
	assert.Len(t, s.Reports(pool), 1)
}

func TestSnapshotRestore(t *testing.T) {
	s, clk := newStore()
	require.NoError(t, s.PostRebalanceSignal(writer, pool, sig(1, 90, clk.Now())))

	snap := s.Snapshot()
	require.NoError(t, s.PostRebalanceSignal(writer, pool, sig(2, 90, clk.Now())))
	s.Restore(snap)

	assert.Len(t, s.PositionsNeedingRebalance(pool), 1)
}
