package ledger_test

import (
	"testing"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/alejandrodnm/rangekeeper/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice  = common.HexToAddress("0xa1")
	bob    = common.HexToAddress("0xb0")
	token0 = common.HexToAddress("0x10")
	token1 = common.HexToAddress("0x11")
)

func TestPositions_OpenLookupRemove(t *testing.T) {
	l := ledger.NewPositions()
	salt := common.HexToHash("0x01")

	p1 := l.Open(domain.Position{Owner: alice, TickLower: -60, TickUpper: 60, Liquidity: 10, Salt: salt})
	p2 := l.Open(domain.Position{Owner: alice, TickLower: -120, TickUpper: 120, Liquidity: 20})
	p3 := l.Open(domain.Position{Owner: bob, TickLower: -60, TickUpper: 60, Liquidity: 30, Salt: salt})

	assert.Equal(t, domain.PositionID(1), p1.ID)
	assert.Equal(t, domain.PositionID(3), p3.ID)
	assert.Equal(t, domain.PositionID(4), l.NextID())

	got, ok := l.Lookup(alice, -60, 60, salt)
	require.True(t, ok)
	assert.Equal(t, p1.ID, got.ID)
	_, ok = l.Lookup(alice, -60, 60, common.Hash{})
	assert.False(t, ok)

	assert.Len(t, l.ByOwner(alice), 2)

	_, ok = l.Remove(p1.ID)
	require.True(t, ok)
	_, ok = l.Lookup(alice, -60, 60, salt)
	assert.False(t, ok)
	assert.Equal(t, []domain.Position{p2}, l.ByOwner(alice))
	assert.Equal(t, 2, l.Len())

	_, ok = l.Remove(p1.ID)
	assert.False(t, ok)
}

func TestPositions_UpdateRekeys(t *testing.T) {
	l := ledger.NewPositions()
	p := l.Open(domain.Position{Owner: alice, TickLower: -60, TickUpper: 60, Liquidity: 10})

	p.TickLower, p.TickUpper = -240, 240
	require.True(t, l.Update(p))

	_, ok := l.Lookup(alice, -60, 60, common.Hash{})
	assert.False(t, ok)
	got, ok := l.Lookup(alice, -240, 240, common.Hash{})
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)

	assert.False(t, l.Update(domain.Position{ID: 99}))
}

func TestPositions_Surplus(t *testing.T) {
	l := ledger.NewPositions()
	p := l.Open(domain.Position{Owner: alice, TickLower: -60, TickUpper: 60, Liquidity: 10})

	l.CreditSurplus(p.ID, token1, 40)
	l.CreditSurplus(p.ID, token1, 2)
	l.CreditSurplus(p.ID, token0, 0)
	l.CreditSurplus(p.ID, token0, -5)

	assert.Equal(t, int64(42), l.Surplus(p.ID, token1))
	assert.Zero(t, l.Surplus(p.ID, token0))
	assert.Equal(t, int64(42), l.SurplusTotal(token1))
	assert.Equal(t, []domain.SurplusBalance{{Position: p.ID, Currency: token1, Amount: 42}}, l.SurplusBalances())

	assert.Equal(t, int64(42), l.TakeSurplus(p.ID, token1))
	assert.Zero(t, l.TakeSurplus(p.ID, token1))
	assert.Empty(t, l.SurplusBalances())
}

func TestPositions_CloneIsIndependent(t *testing.T) {
	l := ledger.NewPositions()
	p := l.Open(domain.Position{Owner: alice, TickLower: -60, TickUpper: 60, Liquidity: 10})
	l.CreditSurplus(p.ID, token0, 5)

	c := l.Clone()
	c.Remove(p.ID)
	c.TakeSurplus(p.ID, token0)
	c.Open(domain.Position{Owner: bob, TickLower: 0, TickUpper: 60})

	_, ok := l.Get(p.ID)
	assert.True(t, ok)
	assert.Equal(t, int64(5), l.Surplus(p.ID, token0))
	assert.Len(t, l.ByOwner(alice), 1)
	assert.Equal(t, domain.PositionID(2), l.NextID())
}

func TestOrders_SwapRemoveScanList(t *testing.T) {
	b := ledger.NewOrders()
	for i := 0; i < 4; i++ {
		b.Add(domain.LimitOrder{Owner: alice, AmountIn: 10})
	}
	require.Equal(t, 4, b.PoolLen())

	b.RemovePoolAt(0)
	assert.Equal(t, []domain.OrderID{4, 2, 3}, b.PoolIDs(), "el último ocupa el hueco")

	b.RemovePoolAt(2)
	assert.Equal(t, []domain.OrderID{4, 2}, b.PoolIDs())
}

func TestOrders_OwnerAndPositionIndexes(t *testing.T) {
	b := ledger.NewOrders()
	o1 := b.Add(domain.LimitOrder{Owner: alice, AmountIn: 10, LinkedPosition: 7})
	o2 := b.Add(domain.LimitOrder{Owner: alice, AmountIn: 20})
	o3 := b.Add(domain.LimitOrder{Owner: bob, AmountIn: 30, LinkedPosition: 7})

	assert.Len(t, b.ByOwner(alice), 2)
	assert.True(t, b.RemoveFromOwner(alice, o1.ID))
	assert.False(t, b.RemoveFromOwner(alice, o1.ID))
	assert.Equal(t, []domain.OrderID{o2.ID}, b.OwnerIDs(alice))

	assert.ElementsMatch(t, []domain.OrderID{o1.ID, o3.ID}, b.Unlink(7))
	assert.Empty(t, b.Unlink(7))

	// el registro sigue existiendo aunque salga de los índices
	_, ok := b.Get(o1.ID)
	assert.True(t, ok)
	assert.Len(t, b.All(), 3)
}

func TestOrders_Sums(t *testing.T) {
	key := domain.PoolKey{Currency0: token0, Currency1: token1, TickSpacing: 60}
	b := ledger.NewOrders()
	b.Add(domain.LimitOrder{Owner: alice, ZeroForOne: true, AmountIn: 100})
	b.Add(domain.LimitOrder{Owner: alice, ZeroForOne: false, AmountIn: 50})
	done := b.Add(domain.LimitOrder{Owner: bob, ZeroForOne: true, AmountIn: 70})
	gone := b.Add(domain.LimitOrder{Owner: bob, ZeroForOne: true, AmountIn: 80})

	done.Executed = true
	done.ClaimCurrency = token1
	done.ClaimAmount = 65
	b.Put(done)
	gone.Cancelled = true
	b.Put(gone)

	assert.Equal(t, int64(100), b.PendingEscrow(key, token0))
	assert.Equal(t, int64(50), b.PendingEscrow(key, token1))
	assert.Equal(t, int64(65), b.UnclaimedOutput(token1))
	assert.Equal(t, 2, b.PendingCount())

	done.Claimed = true
	done.ClaimAmount = 0
	b.Put(done)
	assert.Zero(t, b.UnclaimedOutput(token1))
}

func TestOrders_PutIgnoresUnknown(t *testing.T) {
	b := ledger.NewOrders()
	b.Put(domain.LimitOrder{ID: 5})
	_, ok := b.Get(5)
	assert.False(t, ok)
}

func TestOrders_CloneIsIndependent(t *testing.T) {
	b := ledger.NewOrders()
	o := b.Add(domain.LimitOrder{Owner: alice, AmountIn: 10})

	c := b.Clone()
	o.Cancelled = true
	c.Put(o)
	c.RemovePoolAt(0)
	c.RemoveFromOwner(alice, o.ID)

	got, _ := b.Get(o.ID)
	assert.True(t, got.Pending())
	assert.Equal(t, 1, b.PoolLen())
	assert.Len(t, b.ByOwner(alice), 1)
}
