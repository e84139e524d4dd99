// Package priceMath implements the four deterministic price
// functions spec.md §4.B requires: v2 constant-product reserves, v3/
// Algebra sqrtPriceX96, and Trader-Joe-style LB active-bin pricing.
// Every function is total over its documented domain and never
// panics on the inputs the codec can actually produce.
package priceMath

import (
	"math"
	"math/big"

	"github.com/arbitragedex/arbitragedex/internal/bigmath"
)

// priceAnchor is 2^23, the LB bin index corresponding to a 1:1 price.
const priceAnchor = 1 << 23

// V2Price computes the token1-per-token0 mid-price from raw v2
// reserves, already scaled by each token's decimals. A zero r0
// reserve returns 0 — the caller (the codec/monitor) must treat a
// zero price as a decode failure for that pool and not emit a
// snapshot, per spec.md §4.B.
func V2Price(r0, r1 *big.Int, decimals0, decimals1 int) float64 {
	if r0.Sign() == 0 {
		return 0
	}
	scaled0 := new(big.Float).Quo(new(big.Float).SetInt(r0), bigmath.Pow10(decimals0))
	scaled1 := new(big.Float).Quo(new(big.Float).SetInt(r1), bigmath.Pow10(decimals1))
	if scaled0.Sign() == 0 {
		return 0
	}
	ratio := new(big.Float).Quo(scaled1, scaled0)
	price, _ := ratio.Float64()
	return price
}

// SqrtPriceX96Price computes the v3/Algebra mid-price from a raw
// sqrtPriceX96 value: price = (sqrtPriceX96/2^96)^2 * 10^(d0-d1). The
// division by 2^96 happens before squaring (bigmath.SqrtPriceX96ToRawPrice)
// so a sqrtPriceX96 up to 2^160 never needs to be squared as an
// integer, per spec.md §4.B / §9.
func SqrtPriceX96Price(sqrtPriceX96 *big.Int, decimals0, decimals1 int) float64 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return 0
	}
	raw := bigmath.SqrtPriceX96ToRawPrice(sqrtPriceX96)
	scaled := new(big.Float).Mul(raw, bigmath.Pow10(decimals0-decimals1))
	price, _ := scaled.Float64()
	return price
}

// LBPrice computes the Trader-Joe-style LB bin price:
//
//	r = 1 + binStep/10000
//	price = r^(activeId - 2^23) * 10^(d0-d1)
//
// computed via exp((activeId-anchor)*ln(r)) to stay finite over the
// full 24-bit activeId domain, per spec.md §4.B. When invertPrice is
// set (pair token ordering disagrees with the hex-sort convention)
// the result is inverted once at the end.
func LBPrice(activeID int64, binStep int, decimals0, decimals1 int, invertPrice bool) float64 {
	r := 1 + float64(binStep)/10000
	exponent := float64(activeID - priceAnchor)
	price := math.Exp(exponent * math.Log(r))
	price *= math.Pow(10, float64(decimals0-decimals1))
	if invertPrice {
		if price == 0 {
			return 0
		}
		return 1 / price
	}
	return price
}

// Inverse returns 1/price, guarded against division by zero per
// spec.md §4.B (returns 0 rather than +Inf so downstream math never
// has to special-case infinities).
func Inverse(price float64) float64 {
	if price == 0 {
		return 0
	}
	return 1 / price
}
