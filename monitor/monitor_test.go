package monitor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/arbitragedex/arbitragedex/pool"
)

func f64(v float64) *float64                { return &v }
func iPtr(v int) *int                       { return &v }
func durPtr(v time.Duration) *time.Duration { return &v }

// fakeTransport answers Call based on the target address, independent
// of call data, which is enough to drive the monitor's decode paths
// without a live chain.
type fakeTransport struct {
	mu          sync.Mutex
	block       uint64
	responses   map[common.Address][]byte
	callErrs    map[common.Address]error
	blockNumErr error
}

func newFakeTransport(block uint64) *fakeTransport {
	return &fakeTransport{block: block, responses: map[common.Address][]byte{}, callErrs: map[common.Address]error{}}
}

func (f *fakeTransport) BlockNumber(ctx context.Context) (uint64, error) {
	if f.blockNumErr != nil {
		return 0, f.blockNumErr
	}
	return f.block, nil
}

func (f *fakeTransport) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.callErrs[to]; ok {
		return nil, err
	}
	return f.responses[to], nil
}

func v2Pool(label string, addr common.Address, token0, token1 common.Address, d0, d1 int) pool.Config {
	return pool.Config{
		Label:     label,
		Protocol:  pool.ProtocolV2ConstProduct,
		Address:   addr,
		Token0:    token0,
		Token1:    token1,
		Decimals0: d0,
		Decimals1: d1,
	}
}

func TestPollFallbackDetectsDelta(t *testing.T) {
	token0 := common.HexToAddress("0x0000000000000000000000000000000000000001")
	token1 := common.HexToAddress("0x0000000000000000000000000000000000000002")
	addr1 := common.HexToAddress("0x0000000000000000000000000000000000000011")
	addr2 := common.HexToAddress("0x0000000000000000000000000000000000000012")

	pools := []pool.Config{
		v2Pool("cheap", addr1, token0, token1, 18, 6),
		v2Pool("expensive", addr2, token0, token1, 18, 6),
	}

	ft := newFakeTransport(100)

	// Use raw big integers honoring decimals so V2Price produces a
	// meaningful, distinct ratio between the two pools: 2000 vs 2010.
	r0 := new(big.Int).Mul(big.NewInt(1000), pow10(18))
	r1a := new(big.Int).Mul(big.NewInt(2_000_000), pow10(6))
	r1b := new(big.Int).Mul(big.NewInt(2_010_000), pow10(6))
	ft.responses[addr1] = encodeReserves(r0, r1a)
	ft.responses[addr2] = encodeReserves(r0, r1b)

	m, err := New(Config{DeltaThresholdPercent: f64(0.1), UseMulticall: false}, ft, pools)
	assert.NoError(t, err)

	m.Poll(context.Background())

	select {
	case d := <-m.Events().Opportunity:
		assert.InDelta(t, 0.5, d.DeltaPercent, 1e-6)
	case <-time.After(time.Second):
		t.Fatal("expected an opportunity event")
	}
}

func TestPollFallbackRecordsFailureAndStaleCrossingOnce(t *testing.T) {
	token0 := common.HexToAddress("0x0000000000000000000000000000000000000001")
	token1 := common.HexToAddress("0x0000000000000000000000000000000000000002")
	addr := common.HexToAddress("0x0000000000000000000000000000000000000021")

	pools := []pool.Config{v2Pool("flaky", addr, token0, token1, 18, 18)}
	ft := newFakeTransport(1)
	ft.callErrs[addr] = errors.New("rpc timeout")

	m, err := New(Config{MaxRetries: iPtr(2), UseMulticall: false}, ft, pools)
	assert.NoError(t, err)

	m.Poll(context.Background())
	assert.Equal(t, 1, m.Cache().ErrorCount(pools[0].Key()))
	assert.False(t, m.Cache().IsStale(pools[0].Key()))

	ft.block = 2
	m.Poll(context.Background())
	assert.Equal(t, 2, m.Cache().ErrorCount(pools[0].Key()))
	assert.True(t, m.Cache().IsStale(pools[0].Key()))

	// Drain the error events that already fired so the stale-event
	// channel is the next thing to check.
	drainErrorEvents(m, 2)

	select {
	case ev := <-m.Events().Stale:
		assert.Equal(t, pools[0].Key(), ev.PoolAddress)
	case <-time.After(time.Second):
		t.Fatal("expected exactly one stale event")
	}

	select {
	case <-m.Events().Stale:
		t.Fatal("stale event should only fire once per crossing")
	default:
	}
}

func TestCheckLowLiquidityRejectsBelowMinimum(t *testing.T) {
	weth := common.HexToAddress("0x0000000000000000000000000000000000000001")
	other := common.HexToAddress("0x0000000000000000000000000000000000000002")
	addr := common.HexToAddress("0x0000000000000000000000000000000000000031")

	pools := []pool.Config{v2Pool("thin", addr, weth, other, 18, 18)}
	ft := newFakeTransport(1)
	thinWeth := new(big.Int).Mul(big.NewInt(1), pow10(17)) // 0.1 WETH
	otherSide := new(big.Int).Mul(big.NewInt(1000), pow10(18))
	ft.responses[addr] = encodeReserves(thinWeth, otherSide)

	minReserve := new(big.Int).Mul(big.NewInt(1), pow10(18)) // require >= 1 WETH
	m, err := New(Config{UseMulticall: false, MinReserveWETH: minReserve, WETHAddress: weth}, ft, pools)
	assert.NoError(t, err)

	m.Poll(context.Background())
	assert.Equal(t, 1, m.Cache().ErrorCount(pools[0].Key()))
	_, ok := m.Cache().Get(pools[0].Key())
	assert.False(t, ok, "low-liquidity pool should not get a cached snapshot")
}

func TestStartStopIdempotent(t *testing.T) {
	ft := newFakeTransport(1)
	m, err := New(Config{PollInterval: durPtr(time.Hour)}, ft, nil)
	assert.NoError(t, err)

	ctx := context.Background()
	m.Start(ctx)
	m.Start(ctx) // second call is a no-op
	assert.True(t, m.IsRunning())

	m.Stop()
	m.Stop() // second call is a no-op
	assert.False(t, m.IsRunning())
}

func drainErrorEvents(m *Monitor, n int) {
	for i := 0; i < n; i++ {
		select {
		case <-m.Events().Error:
		case <-time.After(time.Second):
			return
		}
	}
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func encodeReserves(r0, r1 *big.Int) []byte {
	word := func(v *big.Int) []byte {
		b := make([]byte, 32)
		bs := v.Bytes()
		copy(b[32-len(bs):], bs)
		return b
	}
	out := append([]byte{}, word(r0)...)
	out = append(out, word(r1)...)
	out = append(out, word(big.NewInt(1000))...)
	return out
}
