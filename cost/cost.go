// Package cost implements the flash-loan, gas, and slippage cost
// model a candidate opportunity is priced against, per spec.md §4.H.
package cost

import (
	"math"
	"math/big"

	"github.com/arbitragedex/arbitragedex/path"
)

// FlashLoanProvider is one entry in the flash-loan fee rate table.
type FlashLoanProvider struct {
	Name string
	Rate float64 // e.g. 0.0005 for Aave-v3's 5bps
}

// DefaultFlashLoanProviders is the default provider table spec.md
// §4.H calls out by name.
var DefaultFlashLoanProviders = []FlashLoanProvider{
	{Name: "balancer", Rate: 0},
	{Name: "dydx", Rate: 0},
	{Name: "aave-v3", Rate: 0.0005},
}

// GasEstimate is what a gas estimator returns: the base-token-
// denominated gas cost and, on rollups, an optional L1 data fee.
type GasEstimate struct {
	GasCostEth float64
	L1DataFee  *float64
}

// Estimator is the consumed gas-estimator interface of spec.md §6.
type Estimator interface {
	Estimate(numSwaps int) (GasEstimate, error)
}

// Model carries the configuration the cost functions are computed
// against: the flash-loan rate table, the optional injected gas
// estimator with its static fallback parameters, and the static
// slippage fallback rate.
type Model struct {
	FlashLoanProviders []FlashLoanProvider
	GasEstimator       Estimator // may be nil; static fallback used instead
	GasPriceGwei       *float64 // nil means "use the 30 gwei default"; distinct from an explicit 0
	GasPerSwap         uint64
	MaxSlippage        *float64 // nil means "use the 0.5% default"; distinct from an explicit 0
}

// Estimate is the CostEstimate of spec.md §3.
type Estimate struct {
	FlashLoanFee  float64
	GasCost       float64
	L1DataFee     float64
	SlippageCost  float64
	TotalCost     float64
}

// FlashLoanFee picks the cheapest applicable provider's rate and
// returns input*rate; when multiple free providers exist the fee is
// 0, per spec.md §4.H.
func (m Model) FlashLoanFee(inputAmount float64) float64 {
	providers := m.FlashLoanProviders
	if len(providers) == 0 {
		providers = DefaultFlashLoanProviders
	}
	best := providers[0].Rate
	for _, p := range providers[1:] {
		if p.Rate < best {
			best = p.Rate
		}
	}
	if best < 0 {
		best = 0
	}
	return inputAmount * best
}

// GasCost returns the gas cost and any L1 data fee for a path with
// the given number of swap steps. It uses the injected estimator when
// present, falling back to the static formula of spec.md §4.H
// otherwise: (21000 + gasPerSwap*steps) * gasPriceGwei * 1e-9.
func (m Model) GasCost(numSwaps int) (gasCost float64, l1DataFee float64) {
	if m.GasEstimator != nil {
		est, err := m.GasEstimator.Estimate(numSwaps)
		if err == nil {
			l1 := 0.0
			if est.L1DataFee != nil {
				l1 = *est.L1DataFee
			}
			return est.GasCostEth, l1
		}
	}
	gasPriceGwei := 30.0
	if m.GasPriceGwei != nil {
		gasPriceGwei = *m.GasPriceGwei
	}
	gasPerSwap := m.GasPerSwap
	if gasPerSwap == 0 {
		gasPerSwap = 150000
	}
	totalGas := 21000 + gasPerSwap*uint64(numSwaps)
	return float64(totalGas) * gasPriceGwei * 1e-9, 0
}

// SlippageCost computes the slippage cost of running inputAmount
// through p. When every step carries a VirtualReserveIn, it applies
// the v2-style constant-product marginal-price model per step and
// compounds across steps; otherwise it falls back to the static
// formula cost = input*(1-(1-maxSlippage)^n), per spec.md §4.H.
func (m Model) SlippageCost(p path.Path, inputAmount float64) float64 {
	for _, step := range p.Steps {
		if step.VirtualReserveIn == nil {
			return m.staticSlippageCost(inputAmount, len(p.Steps))
		}
	}
	return m.poolAwareSlippageCost(p, inputAmount)
}

func (m Model) staticSlippageCost(inputAmount float64, numSteps int) float64 {
	maxSlippage := m.stepMaxSlippage()
	return inputAmount * (1 - math.Pow(1-maxSlippage, float64(numSteps)))
}

// poolAwareSlippageCost runs inputAmount through each step's virtual
// constant-product reserve, computing the price impact at that step
// relative to the step's expected_price and compounding the resulting
// output into the next step's input, per spec.md §4.H. The trading
// fee (Step.FeeFactor) is deducted from the input before the
// constant-product formula runs, the same way grossProfit deducts it,
// so slippage measures only the size-driven price impact on top of
// the fee already priced into gross profit.
func (m Model) poolAwareSlippageCost(p path.Path, inputAmount float64) float64 {
	amountIn := inputAmount
	totalCost := 0.0
	for _, step := range p.Steps {
		reserveIn, _ := new(big.Float).SetInt(step.VirtualReserveIn).Float64()
		reserveIn = reserveIn / math.Pow(10, float64(step.DecimalsIn))
		feeFactor := step.FeeFactor()
		if reserveIn <= 0 {
			totalCost += amountIn * m.stepMaxSlippage()
			amountIn = amountIn * step.ExpectedPrice * feeFactor * (1 - m.stepMaxSlippage())
			continue
		}
		// Constant-product output: out = in*reserveOut/(reserveIn+in),
		// where reserveOut is derived from reserveIn and the step's
		// expected mid-price (reserveOut = reserveIn*expectedPrice).
		amountInWithFee := amountIn * feeFactor
		reserveOut := reserveIn * step.ExpectedPrice
		idealOut := amountInWithFee * step.ExpectedPrice
		actualOut := amountInWithFee * reserveOut / (reserveIn + amountInWithFee)
		impact := idealOut - actualOut
		if impact < 0 {
			impact = 0
		}
		totalCost += impact
		amountIn = actualOut
	}
	return totalCost
}

func (m Model) stepMaxSlippage() float64 {
	if m.MaxSlippage == nil {
		return 0.005
	}
	return *m.MaxSlippage
}

// Total computes the full CostEstimate for a path and input amount,
// per spec.md §3 / §4.H: total_cost is exactly the sum of the present
// components, no hidden terms.
func (m Model) Total(p path.Path, inputAmount float64) Estimate {
	flashLoanFee := m.FlashLoanFee(inputAmount)
	gasCost, l1DataFee := m.GasCost(len(p.Steps))
	slippageCost := m.SlippageCost(p, inputAmount)

	return Estimate{
		FlashLoanFee: flashLoanFee,
		GasCost:      gasCost,
		L1DataFee:    l1DataFee,
		SlippageCost: slippageCost,
		TotalCost:    flashLoanFee + gasCost + l1DataFee + slippageCost,
	}
}
