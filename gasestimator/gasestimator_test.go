package gasestimator

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticEstimateDefaults(t *testing.T) {
	s := Static{}
	est, err := s.Estimate(2)
	assert.NoError(t, err)
	want := float64(21000+150000*2) * 30 * 1e-9
	assert.InDelta(t, want, est.GasCostEth, 1e-12)
	assert.Nil(t, est.L1DataFee)
}

func TestStaticEstimateCustom(t *testing.T) {
	s := Static{GasPriceGwei: 50, GasPerSwap: 200000}
	est, err := s.Estimate(1)
	assert.NoError(t, err)
	want := float64(21000+200000) * 50 * 1e-9
	assert.InDelta(t, want, est.GasCostEth, 1e-12)
}

type fakeTransport struct {
	gasPriceWei *big.Int
	err         error
}

func (f fakeTransport) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPriceWei, f.err
}

func TestL2EstimateQuotesLiveGasPriceAndL1Fee(t *testing.T) {
	e := L2{
		Transport:       fakeTransport{gasPriceWei: big.NewInt(1_000_000_000)}, // 1 gwei
		GasPerSwap:      150000,
		L1FeePerSwapEth: 0.001,
	}
	est, err := e.Estimate(2)
	assert.NoError(t, err)

	totalGas := 21000 + 150000*2
	wantGasCost := float64(totalGas) * 1e-9
	assert.InDelta(t, wantGasCost, est.GasCostEth, 1e-12)
	assert.NotNil(t, est.L1DataFee)
	assert.InDelta(t, 0.002, *est.L1DataFee, 1e-12)
}

func TestL2EstimatePropagatesTransportError(t *testing.T) {
	e := L2{Transport: fakeTransport{err: errors.New("rpc down")}}
	_, err := e.Estimate(1)
	assert.Error(t, err)
}
