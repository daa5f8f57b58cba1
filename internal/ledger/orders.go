package ledger

import (
	"sort"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// Orders is the order book: records plus the pool scan list and the
// owner/position indexes. The scan list may hold resolved orders until the
// next execution pass compacts them.
type Orders struct {
	next       domain.OrderID
	byID       map[domain.OrderID]domain.LimitOrder
	pool       []domain.OrderID
	byOwner    map[common.Address][]domain.OrderID
	byPosition map[domain.PositionID][]domain.OrderID
}

// NewOrders crea un libro vacío; los IDs empiezan en 1.
func NewOrders() *Orders {
	return &Orders{
		next:       1,
		byID:       make(map[domain.OrderID]domain.LimitOrder),
		byOwner:    make(map[common.Address][]domain.OrderID),
		byPosition: make(map[domain.PositionID][]domain.OrderID),
	}
}

// NextID returns the id the next placed order will get.
func (b *Orders) NextID() domain.OrderID { return b.next }

// Add assigns an id to o and indexes it.
func (b *Orders) Add(o domain.LimitOrder) domain.LimitOrder {
	o.ID = b.next
	b.next++
	b.byID[o.ID] = o
	b.pool = append(b.pool, o.ID)
	b.byOwner[o.Owner] = append(b.byOwner[o.Owner], o.ID)
	if o.LinkedPosition != 0 {
		b.byPosition[o.LinkedPosition] = append(b.byPosition[o.LinkedPosition], o.ID)
	}
	return o
}

// Get devuelve la orden por id.
func (b *Orders) Get(id domain.OrderID) (domain.LimitOrder, bool) {
	o, ok := b.byID[id]
	return o, ok
}

// Put overwrites a stored order record. Indexes are not touched.
func (b *Orders) Put(o domain.LimitOrder) {
	if _, ok := b.byID[o.ID]; ok {
		b.byID[o.ID] = o
	}
}

// PoolLen returns the length of the scan list.
func (b *Orders) PoolLen() int { return len(b.pool) }

// PoolAt returns the order id at position i of the scan list.
func (b *Orders) PoolAt(i int) domain.OrderID { return b.pool[i] }

// RemovePoolAt drops entry i of the scan list by swap-with-last-and-truncate.
func (b *Orders) RemovePoolAt(i int) {
	last := len(b.pool) - 1
	b.pool[i] = b.pool[last]
	b.pool = b.pool[:last]
}

// PoolIDs devuelve una copia de la lista de escaneo en su orden actual.
func (b *Orders) PoolIDs() []domain.OrderID {
	return append([]domain.OrderID(nil), b.pool...)
}

// RemoveFromOwner drops id from its owner's index.
func (b *Orders) RemoveFromOwner(owner common.Address, id domain.OrderID) bool {
	ids, ok := swapRemove(b.byOwner[owner], id)
	if len(ids) == 0 {
		delete(b.byOwner, owner)
	} else {
		b.byOwner[owner] = ids
	}
	return ok
}

// OwnerIDs returns the ids currently in the owner's index.
func (b *Orders) OwnerIDs(owner common.Address) []domain.OrderID {
	return append([]domain.OrderID(nil), b.byOwner[owner]...)
}

// ByOwner returns the indexed orders of owner sorted by id.
func (b *Orders) ByOwner(owner common.Address) []domain.LimitOrder {
	ids := b.byOwner[owner]
	out := make([]domain.LimitOrder, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Unlink returns and forgets the orders linked to a position.
func (b *Orders) Unlink(pos domain.PositionID) []domain.OrderID {
	ids := b.byPosition[pos]
	delete(b.byPosition, pos)
	return ids
}

// All returns every order ever placed, sorted by id.
func (b *Orders) All() []domain.LimitOrder {
	out := make([]domain.LimitOrder, 0, len(b.byID))
	for _, o := range b.byID {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PendingEscrow sums amountIn over pending orders paying in currency.
func (b *Orders) PendingEscrow(key domain.PoolKey, currency common.Address) int64 {
	var total int64
	for _, o := range b.byID {
		in, _ := key.Currencies(o.ZeroForOne)
		if o.Pending() && in == currency {
			total += o.AmountIn
		}
	}
	return total
}

// UnclaimedOutput sums the claim amounts of executed orders not yet claimed.
func (b *Orders) UnclaimedOutput(currency common.Address) int64 {
	var total int64
	for _, o := range b.byID {
		if o.Executed && !o.Claimed && o.ClaimCurrency == currency {
			total += o.ClaimAmount
		}
	}
	return total
}

// PendingCount devuelve cuántas órdenes siguen pendientes.
func (b *Orders) PendingCount() int {
	n := 0
	for _, o := range b.byID {
		if o.Pending() {
			n++
		}
	}
	return n
}

// Clone devuelve una copia profunda.
func (b *Orders) Clone() *Orders {
	c := &Orders{
		next:       b.next,
		byID:       make(map[domain.OrderID]domain.LimitOrder, len(b.byID)),
		pool:       append([]domain.OrderID(nil), b.pool...),
		byOwner:    cloneIndex(b.byOwner),
		byPosition: cloneIndex(b.byPosition),
	}
	for k, v := range b.byID {
		c.byID[k] = v
	}
	return c
}
