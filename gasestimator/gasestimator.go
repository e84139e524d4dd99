// Package gasestimator provides the default and L2-aware
// implementations of the gas-estimator interface the cost model
// consumes (spec.md §6).
package gasestimator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/arbitragedex/arbitragedex/cost"
)

// Transport is the minimal chain-reading surface an estimator needs
// to quote a live gas price. transport.EthClient implements it; the
// monitor's transport.Transport interface does not include it.
type Transport interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Static is the parameterized fallback formula of spec.md §4.H,
// exposed as an Estimator so callers can wire it through explicitly
// instead of relying on cost.Model's nil-estimator default.
type Static struct {
	GasPriceGwei float64
	GasPerSwap   uint64
}

func (s Static) Estimate(numSwaps int) (cost.GasEstimate, error) {
	gasPriceGwei := s.GasPriceGwei
	if gasPriceGwei == 0 {
		gasPriceGwei = 30
	}
	gasPerSwap := s.GasPerSwap
	if gasPerSwap == 0 {
		gasPerSwap = 150000
	}
	totalGas := 21000 + gasPerSwap*uint64(numSwaps)
	return cost.GasEstimate{GasCostEth: float64(totalGas) * gasPriceGwei * 1e-9}, nil
}

// L2 quotes a live gas price from the transport and adds a
// configurable flat L1 data fee per swap step, approximating how
// optimistic-rollup calldata costs scale with path length.
type L2 struct {
	Transport       Transport
	GasPerSwap      uint64
	L1FeePerSwapEth float64
}

func (e L2) Estimate(numSwaps int) (cost.GasEstimate, error) {
	gasPerSwap := e.GasPerSwap
	if gasPerSwap == 0 {
		gasPerSwap = 150000
	}
	gasPriceWei, err := e.Transport.SuggestGasPrice(context.Background())
	if err != nil {
		return cost.GasEstimate{}, fmt.Errorf("gasestimator: suggest gas price: %w", err)
	}

	totalGas := new(big.Int).SetUint64(21000 + gasPerSwap*uint64(numSwaps))
	costWei := new(big.Int).Mul(totalGas, gasPriceWei)
	costEth := new(big.Float).Quo(new(big.Float).SetInt(costWei), big.NewFloat(1e18))
	gasCost, _ := costEth.Float64()

	l1Fee := e.L1FeePerSwapEth * float64(numSwaps)
	return cost.GasEstimate{GasCostEth: gasCost, L1DataFee: &l1Fee}, nil
}
