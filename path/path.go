// Package path builds the executable swap path for a detected delta,
// per spec.md §4.G.
package path

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arbitragedex/arbitragedex/delta"
	"github.com/arbitragedex/arbitragedex/pool"
	"github.com/arbitragedex/arbitragedex/snapshot"
)

// Step is one leg of a swap path.
type Step struct {
	Protocol         pool.Protocol
	PoolAddress      common.Address
	TokenIn          common.Address
	TokenOut         common.Address
	DecimalsIn       int
	DecimalsOut      int
	ExpectedPrice    float64
	FeeTier          *int
	VirtualReserveIn *big.Int
}

// defaultFeeBps is the canonical 30bps constant-product pool fee
// (spec.md §8 Scenario 3), applied whenever a step carries no
// explicit fee tier.
const defaultFeeBps = 30

// FeeFactor returns the fraction of input that survives this hop's
// trading fee, e.g. 0.997 for a 30bps pool. v3/Algebra pools quote
// their fee directly on FeeTier (bps); v2 pools carry no FeeTier and
// default to the canonical 30bps; lb-bin pools reuse FeeTier to mean
// binStep rather than a fee rate, so they also fall back to the
// default.
func (s Step) FeeFactor() float64 {
	bps := defaultFeeBps
	canonical, err := s.Protocol.Canonical()
	if err == nil && s.FeeTier != nil && canonical != pool.ProtocolLBBin {
		bps = *s.FeeTier
	}
	return 1 - float64(bps)/10000
}

// Path is the constructed round-trip: a base token and the ordered
// steps that start and end with it.
type Path struct {
	BaseToken common.Address
	Steps     []Step
}

// virtualReserveIn estimates the pool-side reserve of tokenIn for the
// slippage model (4.H). v2 pools expose this directly; v3/Algebra
// pools approximate it from in-range liquidity and sqrtPriceX96,
// following the same liquidity-to-token-amounts relationship the
// constant-product slippage model assumes for a thin band around the
// current price. LB pools and any snapshot missing raw fields return
// nil, signalling the cost model to fall back to the static slippage
// formula.
func virtualReserveIn(snap snapshot.Price, tokenIn common.Address) *big.Int {
	switch {
	case snap.Reserve0 != nil && snap.Reserve1 != nil:
		if tokenIn == snap.Pool.Token0 {
			return snap.Reserve0
		}
		return snap.Reserve1
	case snap.Liquidity != nil && snap.SqrtPriceX96 != nil && snap.Liquidity.Sign() > 0 && snap.SqrtPriceX96.Sign() > 0:
		// amount0 ≈ L * 2^96 / sqrtP, amount1 ≈ L * sqrtP / 2^96.
		q96 := new(big.Int).Lsh(big.NewInt(1), 96)
		amount0 := new(big.Int).Div(new(big.Int).Mul(snap.Liquidity, q96), snap.SqrtPriceX96)
		amount1 := new(big.Int).Div(new(big.Int).Mul(snap.Liquidity, snap.SqrtPriceX96), q96)
		if tokenIn == snap.Pool.Token0 {
			return amount0
		}
		return amount1
	default:
		return nil
	}
}

// BuildTwoHop constructs the two-hop path for a delta: buy token0 on
// the cheaper pool, sell token0 on the more expensive pool. The base
// token is the pool's token1, per spec.md §4.G.
func BuildTwoHop(d delta.Delta) Path {
	buy := d.BuyPool
	sell := d.SellPool

	buyStep := Step{
		Protocol:      buy.Pool.Protocol,
		PoolAddress:   buy.Pool.Address,
		TokenIn:       buy.Pool.Token1,
		TokenOut:      buy.Pool.Token0,
		DecimalsIn:    buy.Pool.Decimals1,
		DecimalsOut:   buy.Pool.Decimals0,
		ExpectedPrice: buy.InversePrice,
		FeeTier:       buy.Pool.FeeTier,
	}
	buyStep.VirtualReserveIn = virtualReserveIn(buy, buyStep.TokenIn)

	sellStep := Step{
		Protocol:      sell.Pool.Protocol,
		PoolAddress:   sell.Pool.Address,
		TokenIn:       sell.Pool.Token0,
		TokenOut:      sell.Pool.Token1,
		DecimalsIn:    sell.Pool.Decimals0,
		DecimalsOut:   sell.Pool.Decimals1,
		ExpectedPrice: sell.Price,
		FeeTier:       sell.Pool.FeeTier,
	}
	sellStep.VirtualReserveIn = virtualReserveIn(sell, sellStep.TokenIn)

	return Path{
		BaseToken: buy.Pool.Token1,
		Steps:     []Step{buyStep, sellStep},
	}
}

// decimalsOf returns the decimals of token within pool p: Decimals0
// when token is p's token0, Decimals1 otherwise.
func decimalsOf(p pool.Config, token common.Address) int {
	if token == p.Token0 {
		return p.Decimals0
	}
	return p.Decimals1
}

// priceFor returns the snapshot's price oriented from tokenIn to
// tokenOut: the raw price when tokenIn is token0, its inverse when
// tokenIn is token1.
func priceFor(snap snapshot.Price, tokenIn common.Address) float64 {
	if tokenIn == snap.Pool.Token0 {
		return snap.Price
	}
	return snap.InversePrice
}

// BuildThreeHop materializes an explicit A→B→C→A triangle from three
// already-identified snapshots; it does not discover cycles itself,
// per spec.md §4.G. ab, bc, and ca must each quote the pair named by
// their position in the triangle with tokenA/tokenB/tokenC in that
// hop order.
func BuildThreeHop(ab, bc, ca snapshot.Price, tokenA, tokenB, tokenC common.Address) Path {
	step := func(snap snapshot.Price, tokenIn, tokenOut common.Address) Step {
		s := Step{
			Protocol:      snap.Pool.Protocol,
			PoolAddress:   snap.Pool.Address,
			TokenIn:       tokenIn,
			TokenOut:      tokenOut,
			DecimalsIn:    decimalsOf(snap.Pool, tokenIn),
			DecimalsOut:   decimalsOf(snap.Pool, tokenOut),
			ExpectedPrice: priceFor(snap, tokenIn),
			FeeTier:       snap.Pool.FeeTier,
		}
		s.VirtualReserveIn = virtualReserveIn(snap, tokenIn)
		return s
	}

	return Path{
		BaseToken: tokenA,
		Steps: []Step{
			step(ab, tokenA, tokenB),
			step(bc, tokenB, tokenC),
			step(ca, tokenC, tokenA),
		},
	}
}
