package ports

import (
	"context"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// SwapParams describe un trade exact-input.
type SwapParams struct {
	ZeroForOne     bool
	AmountIn       int64
	SqrtPriceLimit float64 // 0 = sin límite
}

// ModifyLiquidityParams añade (delta > 0) o retira (delta < 0) liquidez de un rango.
type ModifyLiquidityParams struct {
	TickLower      int32
	TickUpper      int32
	LiquidityDelta int64
	Salt           common.Hash
}

// BalanceDelta is expressed from the caller's perspective: positive amounts
// were received, negative amounts were paid.
type BalanceDelta struct {
	Amount0 int64
	Amount1 int64
}

// Of devuelve el delta correspondiente a la moneda indicada (currency0 si zero=true).
func (d BalanceDelta) Of(zero bool) int64 {
	if zero {
		return d.Amount0
	}
	return d.Amount1
}

// Slot0 es el estado de precio actual del pool.
type Slot0 struct {
	Tick      int32
	SqrtPrice float64
	Fee       uint32
}

// PoolManager is the AMM collaborator: tick/price primitives, liquidity,
// swaps and token custody. The engine never implements pricing itself.
type PoolManager interface {
	Key() domain.PoolKey
	Slot0() Slot0

	// Swap executes a trade for trader and invokes the registered hooks.
	Swap(ctx context.Context, trader common.Address, p SwapParams) (BalanceDelta, error)

	// ModifyLiquidity changes owner's pool position; account pays or receives the tokens.
	ModifyLiquidity(ctx context.Context, owner, account common.Address, p ModifyLiquidityParams) (BalanceDelta, error)

	// LiquidityForAmounts returns the largest liquidity the amounts can fund in a range at the current price.
	LiquidityForAmounts(tickLower, tickUpper int32, amount0, amount1 int64) int64

	// LiquidityForValue returns the liquidity in a range worth the amounts, whatever their mix.
	LiquidityForValue(tickLower, tickUpper int32, amount0, amount1 int64) int64

	// AmountsForLiquidity returns the token amounts adding liquidity to a range costs.
	AmountsForLiquidity(tickLower, tickUpper int32, liquidity int64) (int64, int64)

	UpdateDynamicFee(fee uint32) error

	Transfer(from, to, currency common.Address, amount int64) error
	BalanceOf(account, currency common.Address) int64
}

// Hooks are called by the pool around every swap.
type Hooks interface {
	BeforeSwap(ctx context.Context, sender common.Address, key domain.PoolKey, p SwapParams) error
	AfterSwap(ctx context.Context, sender common.Address, key domain.PoolKey, p SwapParams, delta BalanceDelta) error
}
