package opportunity

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/arbitragedex/arbitragedex/delta"
	"github.com/arbitragedex/arbitragedex/monitor"
	"github.com/arbitragedex/arbitragedex/path"
	"github.com/arbitragedex/arbitragedex/pool"
	"github.com/arbitragedex/arbitragedex/snapshot"
)

func makeDelta(buyPrice, sellPrice float64) delta.Delta {
	token0 := common.HexToAddress("0x0000000000000000000000000000000000000001")
	token1 := common.HexToAddress("0x0000000000000000000000000000000000000002")
	buyAddr := common.HexToAddress("0x0000000000000000000000000000000000000011")
	sellAddr := common.HexToAddress("0x0000000000000000000000000000000000000012")

	buy := snapshot.Price{
		Pool:         pool.Config{Label: "buy", Address: buyAddr, Token0: token0, Token1: token1, Decimals0: 18, Decimals1: 18},
		Price:        buyPrice,
		InversePrice: 1 / buyPrice,
		BlockNumber:  1,
	}
	sell := snapshot.Price{
		Pool:         pool.Config{Label: "sell", Address: sellAddr, Token0: token0, Token1: token1, Decimals0: 18, Decimals1: 18},
		Price:        sellPrice,
		InversePrice: 1 / sellPrice,
		BlockNumber:  1,
	}
	return delta.Delta{BuyPool: buy, SellPool: sell, DeltaPercent: (sellPrice - buyPrice) / buyPrice * 100}
}

type recordingSink struct {
	recorded []Opportunity
}

func (s *recordingSink) Record(o Opportunity) error {
	s.recorded = append(s.recorded, o)
	return nil
}

func TestAnalyzeDeltaRejectsStaleInput(t *testing.T) {
	d := New(Config{MinProfitThreshold: 0}, nil)

	delta := makeDelta(2000, 2200)
	d.markStale(delta.BuyPool.Pool.Key())

	_, err := d.AnalyzeDelta(delta)
	assert.Error(t, err)
	var rej *Rejection
	assert.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonStaleInput, rej.Reason)
}

func TestAnalyzeDeltaRejectsUnprofitable(t *testing.T) {
	d := New(Config{MinProfitThreshold: 0, DefaultInputAmount: 10}, nil)

	// A thin 0.5% spread cannot clear the static gas + slippage costs.
	delta := makeDelta(2000, 2010)
	_, err := d.AnalyzeDelta(delta)
	assert.Error(t, err)
	var rej *Rejection
	assert.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonUnprofitable, rej.Reason)
}

func TestAnalyzeDeltaAcceptsProfitableOpportunity(t *testing.T) {
	d := New(Config{MinProfitThreshold: 0.01, DefaultInputAmount: 10}, nil)

	// A 10% spread clears gas and slippage costs comfortably.
	delta := makeDelta(2000, 2200)
	opp, err := d.AnalyzeDelta(delta)
	assert.NoError(t, err)
	assert.NotNil(t, opp)
	assert.True(t, opp.NetProfit > 0)
	assert.Equal(t, 10.0, opp.InputAmount)
	assert.Nil(t, opp.OptimizationResult, "no reserve data means no optimizer run")
	assert.InDelta(t, opp.NetProfit/opp.InputAmount*100, opp.NetProfitPercent, 1e-9)
}

func TestGrossProfitMatchesWorkedScenario(t *testing.T) {
	// Buy at 2000, sell at 2020, 10 units in, two v2 hops each paying
	// the canonical 30bps fee: 10*0.997*(1/2000)*0.997*2020 - 10.
	d := New(Config{}, nil)
	swapPath := path.BuildTwoHop(makeDelta(2000, 2020))

	got := d.grossProfit(swapPath, 10)
	want := 10*0.997*(1.0/2000)*0.997*2020 - 10
	assert.InDelta(t, 0.0395, want, 0.0001)
	assert.InDelta(t, want, got, 1e-9)
}

func TestAnalyzeDeltaRecoversAfterStaleCleared(t *testing.T) {
	d := New(Config{MinProfitThreshold: 0.01, DefaultInputAmount: 10}, nil)
	delta := makeDelta(2000, 2200)

	d.markStale(delta.BuyPool.Pool.Key())
	_, err := d.AnalyzeDelta(delta)
	assert.Error(t, err)

	d.clearStale(delta.BuyPool.Pool.Key())
	opp, err := d.AnalyzeDelta(delta)
	assert.NoError(t, err)
	assert.NotNil(t, opp)
}

func TestAttachRecordsAcceptedOpportunityThroughSink(t *testing.T) {
	m, err := monitor.New(monitor.Config{}, noopTransport{}, nil)
	assert.NoError(t, err)

	sink := &recordingSink{}
	d := New(Config{MinProfitThreshold: 0.01, DefaultInputAmount: 10}, sink)
	d.Attach(m)
	defer d.Detach()

	m.Events().Opportunity <- makeDelta(2000, 2200)

	assert.Eventually(t, func() bool { return len(sink.recorded) == 1 }, time.Second, 10*time.Millisecond)
	assert.True(t, sink.recorded[0].NetProfit > 0)
}

func TestAttachIgnoresSecondAttachUntilDetach(t *testing.T) {
	m, err := monitor.New(monitor.Config{}, noopTransport{}, nil)
	assert.NoError(t, err)

	d := New(Config{}, nil)
	d.Attach(m)
	d.Attach(m) // no-op, must not panic or deadlock
	d.Detach()
	d.Detach() // also a no-op
}

type noopTransport struct{}

func (noopTransport) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }
func (noopTransport) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return nil, nil
}
