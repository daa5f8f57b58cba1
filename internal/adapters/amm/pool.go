// Package amm is an in-process concentrated-liquidity pool. It provides the
// tick/price primitives, liquidity accounting, exact-input swaps and token
// custody that the engine expects from its pool collaborator, and it calls the
// registered hooks around every swap.
package amm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/alejandrodnm/rangekeeper/internal/ports"
	"github.com/alejandrodnm/rangekeeper/internal/txn"
	"github.com/ethereum/go-ethereum/common"
)

const feeDenominator = 1_000_000

type tickInfo struct {
	liquidityNet   int64
	liquidityGross int64
}

type positionKey struct {
	owner common.Address
	lower int32
	upper int32
	salt  common.Hash
}

type poolState struct {
	sqrtPrice float64
	tick      int32
	fee       uint32
	liquidity int64
	ticks     map[int32]tickInfo
	positions map[positionKey]int64
	reserves  map[common.Address]int64
	balances  map[common.Address]map[common.Address]int64
}

func (s *poolState) clone() *poolState {
	c := *s
	c.ticks = make(map[int32]tickInfo, len(s.ticks))
	for k, v := range s.ticks {
		c.ticks[k] = v
	}
	c.positions = make(map[positionKey]int64, len(s.positions))
	for k, v := range s.positions {
		c.positions[k] = v
	}
	c.reserves = make(map[common.Address]int64, len(s.reserves))
	for k, v := range s.reserves {
		c.reserves[k] = v
	}
	c.balances = make(map[common.Address]map[common.Address]int64, len(s.balances))
	for acct, bals := range s.balances {
		cp := make(map[common.Address]int64, len(bals))
		for k, v := range bals {
			cp[k] = v
		}
		c.balances[acct] = cp
	}
	return &c
}

// Pool implements ports.PoolManager for a single pool key.
type Pool struct {
	key   domain.PoolKey
	txm   *txn.Manager
	hooks ports.Hooks
	st    *poolState
}

var _ ports.PoolManager = (*Pool)(nil)

// NewPool creates a pool at initialTick charging fee (ppm) and registers it
// with txm so swaps and liquidity changes are rolled back with the engine.
func NewPool(txm *txn.Manager, key domain.PoolKey, initialTick int32, fee uint32) (*Pool, error) {
	if key.TickSpacing <= 0 {
		return nil, fmt.Errorf("amm.NewPool: tick spacing %d: %w", key.TickSpacing, domain.ErrInvalidPoolKey)
	}
	if !domain.InTickDomain(initialTick) {
		return nil, fmt.Errorf("amm.NewPool: initial tick %d: %w", initialTick, domain.ErrInvalidTickRange)
	}
	if fee > domain.MaxLPFee {
		return nil, fmt.Errorf("amm.NewPool: fee %d: %w", fee, domain.ErrFeeTooHigh)
	}
	p := &Pool{
		key: key,
		txm: txm,
		st: &poolState{
			sqrtPrice: SqrtPriceAtTick(initialTick),
			tick:      initialTick,
			fee:       fee,
			ticks:     make(map[int32]tickInfo),
			positions: make(map[positionKey]int64),
			reserves:  make(map[common.Address]int64),
			balances:  make(map[common.Address]map[common.Address]int64),
		},
	}
	txm.Register(p)
	return p, nil
}

// SetHooks registra el receptor de BeforeSwap/AfterSwap.
func (p *Pool) SetHooks(h ports.Hooks) { p.hooks = h }

// Snapshot implementa txn.Participant.
func (p *Pool) Snapshot() any { return p.st.clone() }

// Restore implementa txn.Participant.
func (p *Pool) Restore(snap any) { p.st = snap.(*poolState) }

func (p *Pool) Key() domain.PoolKey { return p.key }

func (p *Pool) Slot0() ports.Slot0 {
	return ports.Slot0{Tick: p.st.tick, SqrtPrice: p.st.sqrtPrice, Fee: p.st.fee}
}

// Liquidity devuelve la liquidez activa en el tick actual.
func (p *Pool) Liquidity() int64 { return p.st.liquidity }

// PositionLiquidity returns the liquidity held by owner over a range and salt.
func (p *Pool) PositionLiquidity(owner common.Address, lower, upper int32, salt common.Hash) int64 {
	return p.st.positions[positionKey{owner: owner, lower: lower, upper: upper, salt: salt}]
}

// Reserve devuelve lo que el pool custodia de una moneda.
func (p *Pool) Reserve(currency common.Address) int64 { return p.st.reserves[currency] }

// Mint credits amount of currency to account out of thin air. Used to fund
// accounts in simulations and tests.
func (p *Pool) Mint(account, currency common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amm.Mint: %w", domain.ErrInvalidAmount)
	}
	p.credit(account, currency, amount)
	return nil
}

func (p *Pool) BalanceOf(account, currency common.Address) int64 {
	return p.st.balances[account][currency]
}

func (p *Pool) Transfer(from, to, currency common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("amm.Transfer: amount %d: %w", amount, domain.ErrInvalidAmount)
	}
	if amount == 0 {
		return nil
	}
	if err := p.debit(from, currency, amount); err != nil {
		return fmt.Errorf("amm.Transfer: %w", err)
	}
	p.credit(to, currency, amount)
	return nil
}

func (p *Pool) credit(account, currency common.Address, amount int64) {
	bals := p.st.balances[account]
	if bals == nil {
		bals = make(map[common.Address]int64)
		p.st.balances[account] = bals
	}
	bals[currency] += amount
}

func (p *Pool) debit(account, currency common.Address, amount int64) error {
	if have := p.st.balances[account][currency]; have < amount {
		return fmt.Errorf("account %s has %d of %s, needs %d: %w",
			account.Hex(), have, currency.Hex(), amount, domain.ErrInsufficientBalance)
	}
	p.st.balances[account][currency] -= amount
	return nil
}

// UpdateDynamicFee cambia el fee activo; solo para pools con fee dinámico.
func (p *Pool) UpdateDynamicFee(fee uint32) error {
	if !p.key.IsDynamicFee() {
		return fmt.Errorf("amm.UpdateDynamicFee: pool fee is static: %w", domain.ErrInvalidPoolKey)
	}
	if fee > domain.MaxLPFee {
		return fmt.Errorf("amm.UpdateDynamicFee: fee %d: %w", fee, domain.ErrFeeTooHigh)
	}
	p.st.fee = fee
	return nil
}

func (p *Pool) LiquidityForAmounts(tickLower, tickUpper int32, amount0, amount1 int64) int64 {
	if tickLower >= tickUpper {
		return 0
	}
	return liquidityForAmounts(p.st.tick, p.st.sqrtPrice, tickLower, tickUpper, amount0, amount1)
}

// LiquidityForValue returns the liquidity in a range whose token amounts are
// worth amount0 and amount1 together at the current price. Unlike
// LiquidityForAmounts the mix of the two tokens does not matter.
func (p *Pool) LiquidityForValue(tickLower, tickUpper int32, amount0, amount1 int64) int64 {
	if tickLower >= tickUpper {
		return 0
	}
	return liquidityForValue(p.st.tick, p.st.sqrtPrice, tickLower, tickUpper, amount0, amount1)
}

// AmountsForLiquidity returns what adding liquidity to a range costs at the
// current price, rounded up.
func (p *Pool) AmountsForLiquidity(tickLower, tickUpper int32, liquidity int64) (int64, int64) {
	if tickLower >= tickUpper || liquidity <= 0 {
		return 0, 0
	}
	a0, a1 := amountsForLiquidity(p.st.tick, p.st.sqrtPrice, tickLower, tickUpper, liquidity)
	return roundUp(a0), roundUp(a1)
}

// ModifyLiquidity adds or removes owner's liquidity over a range. account pays
// for additions and receives removals. The returned delta is from account's
// side: negative when it paid.
func (p *Pool) ModifyLiquidity(ctx context.Context, owner, account common.Address, mp ports.ModifyLiquidityParams) (ports.BalanceDelta, error) {
	var delta ports.BalanceDelta
	err := p.txm.Run(func() error {
		d, err := p.modifyLiquidity(owner, account, mp)
		delta = d
		return err
	})
	if err != nil {
		return ports.BalanceDelta{}, fmt.Errorf("amm.ModifyLiquidity: %w", err)
	}
	return delta, nil
}

func (p *Pool) modifyLiquidity(owner, account common.Address, mp ports.ModifyLiquidityParams) (ports.BalanceDelta, error) {
	if err := domain.ValidateRange(mp.TickLower, mp.TickUpper, p.key.TickSpacing); err != nil {
		return ports.BalanceDelta{}, err
	}
	if mp.LiquidityDelta == 0 {
		return ports.BalanceDelta{}, domain.ErrZeroLiquidity
	}

	key := positionKey{owner: owner, lower: mp.TickLower, upper: mp.TickUpper, salt: mp.Salt}
	held := p.st.positions[key]
	if mp.LiquidityDelta < 0 && held < -mp.LiquidityDelta {
		return ports.BalanceDelta{}, fmt.Errorf("position holds %d, removing %d: %w",
			held, -mp.LiquidityDelta, domain.ErrInsufficientLiquidity)
	}

	size := mp.LiquidityDelta
	if size < 0 {
		size = -size
	}
	f0, f1 := amountsForLiquidity(p.st.tick, p.st.sqrtPrice, mp.TickLower, mp.TickUpper, size)

	var delta ports.BalanceDelta
	if mp.LiquidityDelta > 0 {
		a0, a1 := roundUp(f0), roundUp(f1)
		if err := p.pay(account, p.key.Currency0, a0); err != nil {
			return ports.BalanceDelta{}, err
		}
		if err := p.pay(account, p.key.Currency1, a1); err != nil {
			return ports.BalanceDelta{}, err
		}
		delta = ports.BalanceDelta{Amount0: -a0, Amount1: -a1}
	} else {
		a0, a1 := roundDown(f0), roundDown(f1)
		if err := p.payOut(account, p.key.Currency0, a0); err != nil {
			return ports.BalanceDelta{}, err
		}
		if err := p.payOut(account, p.key.Currency1, a1); err != nil {
			return ports.BalanceDelta{}, err
		}
		delta = ports.BalanceDelta{Amount0: a0, Amount1: a1}
	}

	if held+mp.LiquidityDelta == 0 {
		delete(p.st.positions, key)
	} else {
		p.st.positions[key] = held + mp.LiquidityDelta
	}
	p.updateTick(mp.TickLower, mp.LiquidityDelta, false)
	p.updateTick(mp.TickUpper, mp.LiquidityDelta, true)
	if p.st.tick >= mp.TickLower && p.st.tick < mp.TickUpper {
		p.st.liquidity += mp.LiquidityDelta
	}
	return delta, nil
}

func (p *Pool) updateTick(tick int32, delta int64, upper bool) {
	info := p.st.ticks[tick]
	if upper {
		info.liquidityNet -= delta
	} else {
		info.liquidityNet += delta
	}
	info.liquidityGross += delta
	if info.liquidityGross == 0 {
		delete(p.st.ticks, tick)
		return
	}
	p.st.ticks[tick] = info
}

// pay moves amount from account into the pool reserves.
func (p *Pool) pay(account, currency common.Address, amount int64) error {
	if amount == 0 {
		return nil
	}
	if err := p.debit(account, currency, amount); err != nil {
		return err
	}
	p.st.reserves[currency] += amount
	return nil
}

// payOut moves amount from the pool reserves to account.
func (p *Pool) payOut(account, currency common.Address, amount int64) error {
	if amount == 0 {
		return nil
	}
	if p.st.reserves[currency] < amount {
		return fmt.Errorf("reserve of %s is %d, paying %d: %w",
			currency.Hex(), p.st.reserves[currency], amount, domain.ErrInsufficientLiquidity)
	}
	p.st.reserves[currency] -= amount
	p.credit(account, currency, amount)
	return nil
}

// Swap executes an exact-input trade for trader. The hooks run inside the
// same atomic scope: an error from either hook undoes the trade.
func (p *Pool) Swap(ctx context.Context, trader common.Address, sp ports.SwapParams) (ports.BalanceDelta, error) {
	var delta ports.BalanceDelta
	err := p.txm.Run(func() error {
		if sp.AmountIn <= 0 {
			return fmt.Errorf("amount in %d: %w", sp.AmountIn, domain.ErrInvalidAmount)
		}
		if p.hooks != nil {
			if err := p.hooks.BeforeSwap(ctx, trader, p.key, sp); err != nil {
				return fmt.Errorf("before swap: %w", err)
			}
		}
		d, err := p.swap(trader, sp)
		if err != nil {
			return err
		}
		if p.hooks != nil {
			if err := p.hooks.AfterSwap(ctx, trader, p.key, sp, d); err != nil {
				return fmt.Errorf("after swap: %w", err)
			}
		}
		delta = d
		return nil
	})
	if err != nil {
		return ports.BalanceDelta{}, fmt.Errorf("amm.Swap: %w", err)
	}
	return delta, nil
}

func (p *Pool) swap(trader common.Address, sp ports.SwapParams) (ports.BalanceDelta, error) {
	in, out := p.key.Currencies(sp.ZeroForOne)
	if have := p.BalanceOf(trader, in); have < sp.AmountIn {
		return ports.BalanceDelta{}, fmt.Errorf("trader %s has %d, swapping %d: %w",
			trader.Hex(), have, sp.AmountIn, domain.ErrInsufficientBalance)
	}
	if sp.SqrtPriceLimit != 0 {
		if (sp.ZeroForOne && sp.SqrtPriceLimit >= p.st.sqrtPrice) ||
			(!sp.ZeroForOne && sp.SqrtPriceLimit <= p.st.sqrtPrice) {
			return ports.BalanceDelta{}, fmt.Errorf("sqrt price limit %g: %w", sp.SqrtPriceLimit, domain.ErrInvalidParameter)
		}
	}

	feeAmount := roundUp(float64(sp.AmountIn) * float64(p.st.fee) / feeDenominator)
	remaining := float64(sp.AmountIn - feeAmount)
	available := remaining
	var received float64

	for remaining > absSlack {
		next, bounded := p.nextInitializedTick(sp.ZeroForOne)
		target := SqrtPriceAtTick(next)
		limited := false
		if sp.SqrtPriceLimit != 0 &&
			((sp.ZeroForOne && target < sp.SqrtPriceLimit) || (!sp.ZeroForOne && target > sp.SqrtPriceLimit)) {
			target = sp.SqrtPriceLimit
			limited = true
		}

		liq := p.st.liquidity
		var needed float64
		if sp.ZeroForOne {
			needed = amount0Delta(target, p.st.sqrtPrice, liq)
		} else {
			needed = amount1Delta(p.st.sqrtPrice, target, liq)
		}

		if remaining < needed {
			// el trade se agota antes del siguiente tick
			var newPrice float64
			if sp.ZeroForOne {
				newPrice = 1 / (1/p.st.sqrtPrice + remaining/float64(liq))
				received += amount1Delta(newPrice, p.st.sqrtPrice, liq)
			} else {
				newPrice = p.st.sqrtPrice + remaining/float64(liq)
				received += amount0Delta(p.st.sqrtPrice, newPrice, liq)
			}
			remaining = 0
			p.st.sqrtPrice = newPrice
			p.st.tick = TickAtSqrtPrice(newPrice)
			break
		}

		remaining -= needed
		if sp.ZeroForOne {
			received += amount1Delta(target, p.st.sqrtPrice, liq)
		} else {
			received += amount0Delta(p.st.sqrtPrice, target, liq)
		}
		p.st.sqrtPrice = target

		if limited {
			p.st.tick = TickAtSqrtPrice(target)
			break
		}
		if !bounded {
			// sin más liquidez en esa dirección
			if sp.ZeroForOne {
				p.st.tick = next
			} else {
				p.st.tick = next - 1
			}
			break
		}
		p.cross(next, sp.ZeroForOne)
	}

	consumed := roundUp(available-remaining) + feeAmount
	if remaining > absSlack && available-remaining <= absSlack {
		return ports.BalanceDelta{}, fmt.Errorf("no liquidity to swap against: %w", domain.ErrInsufficientLiquidity)
	}
	paid := roundDown(received)

	if err := p.pay(trader, in, consumed); err != nil {
		return ports.BalanceDelta{}, err
	}
	if err := p.payOut(trader, out, paid); err != nil {
		return ports.BalanceDelta{}, err
	}

	slog.Debug("amm: swap",
		"zero_for_one", sp.ZeroForOne,
		"amount_in", consumed,
		"amount_out", paid,
		"tick", p.st.tick,
		"fee", p.st.fee,
	)

	if sp.ZeroForOne {
		return ports.BalanceDelta{Amount0: -consumed, Amount1: paid}, nil
	}
	return ports.BalanceDelta{Amount0: paid, Amount1: -consumed}, nil
}

// nextInitializedTick finds the next tick to cross in the swap direction.
// bounded is false when no initialized tick remains and the global bound is returned.
func (p *Pool) nextInitializedTick(zeroForOne bool) (int32, bool) {
	ticks := make([]int32, 0, len(p.st.ticks))
	for t := range p.st.ticks {
		ticks = append(ticks, t)
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })

	if zeroForOne {
		for i := len(ticks) - 1; i >= 0; i-- {
			if ticks[i] <= p.st.tick {
				return ticks[i], true
			}
		}
		return domain.MinTick, false
	}
	for _, t := range ticks {
		if t > p.st.tick {
			return t, true
		}
	}
	return domain.MaxTick, false
}

func (p *Pool) cross(tick int32, zeroForOne bool) {
	net := p.st.ticks[tick].liquidityNet
	if zeroForOne {
		p.st.liquidity -= net
		p.st.tick = tick - 1
		return
	}
	p.st.liquidity += net
	p.st.tick = tick
}
