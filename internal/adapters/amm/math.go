package amm

import (
	"math"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
)

const (
	tickBase = 1.0001

	// absSlack and relSlack absorb float noise before rounding to token units.
	absSlack = 1e-9
	relSlack = 1e-12
)

// SqrtPriceAtTick devuelve sqrt(1.0001^tick).
func SqrtPriceAtTick(tick int32) float64 {
	return math.Pow(tickBase, float64(tick)/2)
}

// TickAtSqrtPrice returns the greatest tick whose sqrt price is <= sqrtPrice.
func TickAtSqrtPrice(sqrtPrice float64) int32 {
	if sqrtPrice <= 0 {
		return domain.MinTick
	}
	t := int32(math.Floor(2 * math.Log(sqrtPrice) / math.Log(tickBase)))
	// corrige el error de redondeo del logaritmo
	if SqrtPriceAtTick(t+1) <= sqrtPrice {
		t++
	} else if SqrtPriceAtTick(t) > sqrtPrice {
		t--
	}
	return clampTick(t)
}

func clampTick(t int32) int32 {
	if t < domain.MinTick {
		return domain.MinTick
	}
	if t > domain.MaxTick {
		return domain.MaxTick
	}
	return t
}

// amount0Delta is the token0 amount spanned by liquidity between two sqrt prices.
func amount0Delta(sa, sb float64, liquidity int64) float64 {
	if sa > sb {
		sa, sb = sb, sa
	}
	return float64(liquidity) * (sb - sa) / (sa * sb)
}

// amount1Delta is the token1 amount spanned by liquidity between two sqrt prices.
func amount1Delta(sa, sb float64, liquidity int64) float64 {
	if sa > sb {
		sa, sb = sb, sa
	}
	return float64(liquidity) * (sb - sa)
}

// roundUp se usa para lo que se le debe al pool.
func roundUp(x float64) int64 {
	if x <= 0 {
		return 0
	}
	return int64(math.Ceil(x - slack(x)))
}

// roundDown se usa para lo que paga el pool.
func roundDown(x float64) int64 {
	if x <= 0 {
		return 0
	}
	return int64(math.Floor(x + slack(x)))
}

func slack(x float64) float64 {
	return absSlack + math.Abs(x)*relSlack
}

// amountsForLiquidity splits liquidity over [lower, upper) into token amounts
// at the current price. A range above the price is all token0, one below it
// all token1.
func amountsForLiquidity(tick int32, sqrtPrice float64, lower, upper int32, liquidity int64) (float64, float64) {
	sa, sb := SqrtPriceAtTick(lower), SqrtPriceAtTick(upper)
	switch {
	case tick < lower:
		return amount0Delta(sa, sb, liquidity), 0
	case tick >= upper:
		return 0, amount1Delta(sa, sb, liquidity)
	default:
		return amount0Delta(sqrtPrice, sb, liquidity), amount1Delta(sa, sqrtPrice, liquidity)
	}
}

// liquidityForAmounts is the inverse of amountsForLiquidity, limited by the scarcer token.
func liquidityForAmounts(tick int32, sqrtPrice float64, lower, upper int32, amount0, amount1 int64) int64 {
	sa, sb := SqrtPriceAtTick(lower), SqrtPriceAtTick(upper)
	from0 := func(pa, pb float64) float64 {
		return float64(amount0) * pa * pb / (pb - pa)
	}
	from1 := func(pa, pb float64) float64 {
		return float64(amount1) / (pb - pa)
	}

	var l float64
	switch {
	case tick < lower:
		l = from0(sa, sb)
	case tick >= upper:
		l = from1(sa, sb)
	default:
		l = math.Inf(1)
		if sb > sqrtPrice {
			l = from0(sqrtPrice, sb)
		}
		if sqrtPrice > sa {
			l = math.Min(l, from1(sa, sqrtPrice))
		}
	}
	if math.IsInf(l, 0) || math.IsNaN(l) || l <= 0 {
		return 0
	}
	if l >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Floor(l))
}

// liquidityForValue sizes liquidity over [lower, upper) so that the amounts it
// needs are worth amount0 and amount1 together, valued in token1 at the
// current price.
func liquidityForValue(tick int32, sqrtPrice float64, lower, upper int32, amount0, amount1 int64) int64 {
	price := sqrtPrice * sqrtPrice
	value := float64(amount0)*price + float64(amount1)
	u0, u1 := amountsForLiquidity(tick, sqrtPrice, lower, upper, 1)
	cost := u0*price + u1
	if value <= 0 || cost <= 0 {
		return 0
	}
	l := value / cost
	if math.IsInf(l, 0) || math.IsNaN(l) {
		return 0
	}
	if l >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Floor(l))
}
