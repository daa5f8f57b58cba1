package ledger

import (
	"sort"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

type positionKey struct {
	owner common.Address
	lower int32
	upper int32
	salt  common.Hash
}

func keyOf(p domain.Position) positionKey {
	return positionKey{owner: p.Owner, lower: p.TickLower, upper: p.TickUpper, salt: p.Salt}
}

type surplusKey struct {
	position domain.PositionID
	currency common.Address
}

// Positions is the position ledger plus the per-position surplus map.
type Positions struct {
	next    domain.PositionID
	byID    map[domain.PositionID]domain.Position
	byKey   map[positionKey]domain.PositionID
	byOwner map[common.Address][]domain.PositionID
	surplus map[surplusKey]int64
}

// NewPositions crea un ledger vacío; los IDs empiezan en 1.
func NewPositions() *Positions {
	return &Positions{
		next:    1,
		byID:    make(map[domain.PositionID]domain.Position),
		byKey:   make(map[positionKey]domain.PositionID),
		byOwner: make(map[common.Address][]domain.PositionID),
		surplus: make(map[surplusKey]int64),
	}
}

// NextID returns the id the next opened position will get.
func (l *Positions) NextID() domain.PositionID { return l.next }

// Open assigns an id to p and stores it.
func (l *Positions) Open(p domain.Position) domain.Position {
	p.ID = l.next
	l.next++
	l.byID[p.ID] = p
	l.byKey[keyOf(p)] = p.ID
	l.byOwner[p.Owner] = append(l.byOwner[p.Owner], p.ID)
	return p
}

// Get devuelve la posición por id.
func (l *Positions) Get(id domain.PositionID) (domain.Position, bool) {
	p, ok := l.byID[id]
	return p, ok
}

// Lookup finds a position by owner, range and salt.
func (l *Positions) Lookup(owner common.Address, lower, upper int32, salt common.Hash) (domain.Position, bool) {
	id, ok := l.byKey[positionKey{owner: owner, lower: lower, upper: upper, salt: salt}]
	if !ok {
		return domain.Position{}, false
	}
	return l.Get(id)
}

// Update replaces a stored position, re-keying it if its range changed.
func (l *Positions) Update(p domain.Position) bool {
	old, ok := l.byID[p.ID]
	if !ok {
		return false
	}
	delete(l.byKey, keyOf(old))
	l.byKey[keyOf(p)] = p.ID
	l.byID[p.ID] = p
	return true
}

// Remove deletes a position and its index entries. Surplus is left untouched.
func (l *Positions) Remove(id domain.PositionID) (domain.Position, bool) {
	p, ok := l.byID[id]
	if !ok {
		return domain.Position{}, false
	}
	delete(l.byID, id)
	delete(l.byKey, keyOf(p))
	ids, _ := swapRemove(l.byOwner[p.Owner], id)
	if len(ids) == 0 {
		delete(l.byOwner, p.Owner)
	} else {
		l.byOwner[p.Owner] = ids
	}
	return p, true
}

// ByOwner returns the owner's positions sorted by id.
func (l *Positions) ByOwner(owner common.Address) []domain.Position {
	ids := l.byOwner[owner]
	out := make([]domain.Position, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every position sorted by id.
func (l *Positions) All() []domain.Position {
	out := make([]domain.Position, 0, len(l.byID))
	for _, p := range l.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len devuelve cuántas posiciones hay abiertas.
func (l *Positions) Len() int { return len(l.byID) }

// CreditSurplus adds amount to the position's claimable surplus in currency.
func (l *Positions) CreditSurplus(id domain.PositionID, currency common.Address, amount int64) {
	if amount <= 0 {
		return
	}
	l.surplus[surplusKey{id, currency}] += amount
}

// Surplus returns the unclaimed surplus of a position in currency.
func (l *Positions) Surplus(id domain.PositionID, currency common.Address) int64 {
	return l.surplus[surplusKey{id, currency}]
}

// TakeSurplus zeroes the surplus and returns what it held.
func (l *Positions) TakeSurplus(id domain.PositionID, currency common.Address) int64 {
	k := surplusKey{id, currency}
	amount := l.surplus[k]
	delete(l.surplus, k)
	return amount
}

// SurplusBalances lists every non-zero surplus entry, sorted by position then currency.
func (l *Positions) SurplusBalances() []domain.SurplusBalance {
	out := make([]domain.SurplusBalance, 0, len(l.surplus))
	for k, v := range l.surplus {
		if v == 0 {
			continue
		}
		out = append(out, domain.SurplusBalance{Position: k.position, Currency: k.currency, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Currency.Cmp(out[j].Currency) < 0
	})
	return out
}

// SurplusTotal sums all unclaimed surplus held in currency.
func (l *Positions) SurplusTotal(currency common.Address) int64 {
	var total int64
	for k, v := range l.surplus {
		if k.currency == currency {
			total += v
		}
	}
	return total
}

// Clone devuelve una copia profunda.
func (l *Positions) Clone() *Positions {
	c := &Positions{
		next:    l.next,
		byID:    make(map[domain.PositionID]domain.Position, len(l.byID)),
		byKey:   make(map[positionKey]domain.PositionID, len(l.byKey)),
		byOwner: cloneIndex(l.byOwner),
		surplus: make(map[surplusKey]int64, len(l.surplus)),
	}
	for k, v := range l.byID {
		c.byID[k] = v
	}
	for k, v := range l.byKey {
		c.byKey[k] = v
	}
	for k, v := range l.surplus {
		c.surplus[k] = v
	}
	return c
}
