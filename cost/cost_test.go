package cost

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/arbitragedex/arbitragedex/path"
)

func floatPtr(v float64) *float64 { return &v }

func TestFlashLoanFeePicksCheapestProvider(t *testing.T) {
	m := Model{} // defaults to DefaultFlashLoanProviders
	assert.Equal(t, 0.0, m.FlashLoanFee(1000))

	m2 := Model{FlashLoanProviders: []FlashLoanProvider{{Name: "x", Rate: 0.001}}}
	assert.InDelta(t, 1.0, m2.FlashLoanFee(1000), 1e-9)
}

func TestGasCostStaticFallback(t *testing.T) {
	m := Model{}
	gasCost, l1 := m.GasCost(2)
	want := float64(21000+150000*2) * 30 * 1e-9
	assert.InDelta(t, want, gasCost, 1e-12)
	assert.Equal(t, 0.0, l1)
}

type fakeEstimator struct {
	est GasEstimate
	err error
}

func (f fakeEstimator) Estimate(numSwaps int) (GasEstimate, error) { return f.est, f.err }

func TestGasCostInjectedEstimator(t *testing.T) {
	l1 := 0.002
	m := Model{GasEstimator: fakeEstimator{est: GasEstimate{GasCostEth: 0.01, L1DataFee: &l1}}}
	gasCost, gotL1 := m.GasCost(3)
	assert.Equal(t, 0.01, gasCost)
	assert.Equal(t, 0.002, gotL1)
}

func TestGasCostEstimatorErrorFallsBackToStatic(t *testing.T) {
	m := Model{GasEstimator: fakeEstimator{err: errors.New("rpc down")}}
	gasCost, l1 := m.GasCost(1)
	want := float64(21000+150000) * 30 * 1e-9
	assert.InDelta(t, want, gasCost, 1e-12)
	assert.Equal(t, 0.0, l1)
}

func TestSlippageCostStaticFallbackWhenReservesMissing(t *testing.T) {
	m := Model{MaxSlippage: floatPtr(0.01)}
	p := path.Path{Steps: []path.Step{{}, {}}}
	got := m.SlippageCost(p, 100)
	want := 100 * (1 - 0.99*0.99)
	assert.InDelta(t, want, got, 1e-9)
}

func TestGasCostAndSlippageHonorExplicitZero(t *testing.T) {
	m := Model{GasPriceGwei: floatPtr(0), MaxSlippage: floatPtr(0)}

	gasCost, l1 := m.GasCost(2)
	assert.Equal(t, 0.0, gasCost)
	assert.Equal(t, 0.0, l1)

	p := path.Path{Steps: []path.Step{{}, {}}}
	got := m.SlippageCost(p, 100)
	assert.Equal(t, 0.0, got, "an explicit zero max slippage must not fall back to the 0.5%% default")
}

func TestSlippageCostPoolAware(t *testing.T) {
	token0 := common.HexToAddress("0x0000000000000000000000000000000000000001")
	token1 := common.HexToAddress("0x0000000000000000000000000000000000000002")
	_ = token1
	step := path.Step{
		DecimalsIn:       18,
		ExpectedPrice:    2.0,
		VirtualReserveIn: new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18)),
	}
	p := path.Path{Steps: []path.Step{step}}
	m := Model{}
	got := m.SlippageCost(p, 10)
	assert.True(t, got > 0, "pool-aware slippage should be positive for nonzero input")
	assert.True(t, got < 10*2.0, "slippage cost should be smaller than gross output")
}

func TestTotalSumsExactly(t *testing.T) {
	m := Model{FlashLoanProviders: []FlashLoanProvider{{Name: "x", Rate: 0.0005}}}
	p := path.Path{Steps: []path.Step{{}, {}}}
	est := m.Total(p, 100)
	assert.InDelta(t, est.FlashLoanFee+est.GasCost+est.L1DataFee+est.SlippageCost, est.TotalCost, 1e-12)
}
