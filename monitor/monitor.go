// Package monitor implements the price-polling cycle of spec.md
// §4.E: batched multicall with a per-pool fallback, snapshot-cache
// writes, and the typed event emission spec.md §9 calls for.
package monitor

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/arbitragedex/arbitragedex/abicodec"
	"github.com/arbitragedex/arbitragedex/delta"
	"github.com/arbitragedex/arbitragedex/metrics"
	"github.com/arbitragedex/arbitragedex/pool"
	"github.com/arbitragedex/arbitragedex/priceMath"
	"github.com/arbitragedex/arbitragedex/snapshot"
	"github.com/arbitragedex/arbitragedex/transport"
)

// Config holds the monitor's tunables, per spec.md §6. The three
// fields with a nonzero default are pointers so a caller can tell
// "use the default" (nil) apart from "explicitly set to zero".
type Config struct {
	DeltaThresholdPercent *float64
	PollInterval          *time.Duration
	MaxRetries            *int
	UseMulticall          bool
	MinReserveWETH        *big.Int // nil/zero disables the check
	WETHAddress           common.Address
}

// resolvedConfig holds Config after defaulting every omitted (nil) field.
type resolvedConfig struct {
	deltaThresholdPercent float64
	pollInterval          time.Duration
	maxRetries            int
	useMulticall          bool
	minReserveWETH        *big.Int
	wethAddress           common.Address
}

func (c Config) resolve() resolvedConfig {
	r := resolvedConfig{
		deltaThresholdPercent: 0.5,
		pollInterval:          12 * time.Second,
		maxRetries:            3,
		useMulticall:          c.UseMulticall,
		minReserveWETH:        c.MinReserveWETH,
		wethAddress:           c.WETHAddress,
	}
	if c.DeltaThresholdPercent != nil {
		r.deltaThresholdPercent = *c.DeltaThresholdPercent
	}
	if c.PollInterval != nil {
		r.pollInterval = *c.PollInterval
	}
	if c.MaxRetries != nil {
		r.maxRetries = *c.MaxRetries
	}
	return r
}

// Monitor drives the poll cycle over a configured pool set.
type Monitor struct {
	cfg       resolvedConfig
	transport transport.Transport
	cache     *snapshot.Cache
	pools     []pool.Config
	events    *Events

	mu      sync.Mutex
	running int32
	stopCh  chan struct{}
	doneCh  chan struct{}

	pollMu sync.Mutex // serializes concurrent poll() calls so ticks never overlap
}

// New constructs a Monitor over the given pool set; every pool is
// validated eagerly, per spec.md §7's ConfigError class.
func New(cfg Config, t transport.Transport, pools []pool.Config) (*Monitor, error) {
	for _, p := range pools {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return &Monitor{
		cfg:       cfg.resolve(),
		transport: t,
		cache:     snapshot.NewCache(),
		pools:     pools,
		events:    newEvents(len(pools)*4 + 16),
	}, nil
}

// Events returns the channel bundle a detector attaches to.
func (m *Monitor) Events() *Events {
	return m.events
}

// Cache returns the snapshot cache, for read-only consumers.
func (m *Monitor) Cache() *snapshot.Cache {
	return m.cache
}

// IsRunning reports whether the poll schedule is active.
func (m *Monitor) IsRunning() bool {
	return atomic.LoadInt32(&m.running) == 1
}

// Start is idempotent: it triggers one immediate poll, then schedules
// a poll every PollInterval. Ticks that arrive while a poll is still
// running are dropped, per spec.md §5.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if atomic.LoadInt32(&m.running) == 1 {
		return
	}
	atomic.StoreInt32(&m.running, 1)
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	go func() {
		defer close(m.doneCh)
		m.Poll(ctx)
		ticker := time.NewTicker(m.cfg.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.Poll(ctx)
			}
		}
	}()
}

// Stop is idempotent: it cancels the poll schedule but lets the
// current cycle finish, per spec.md §5.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if atomic.LoadInt32(&m.running) == 0 {
		m.mu.Unlock()
		return
	}
	atomic.StoreInt32(&m.running, 0)
	close(m.stopCh)
	doneCh := m.doneCh
	m.mu.Unlock()

	<-doneCh
}

// Poll runs a single cycle: build a batched multicall if enabled,
// falling back to concurrent per-pool calls, then computes the fresh
// set and runs delta grouping over it, per spec.md §4.E.
func (m *Monitor) Poll(ctx context.Context) {
	if !m.pollMu.TryLock() {
		return // a poll is already in flight; this tick is dropped
	}
	defer m.pollMu.Unlock()

	metrics.PollCycles.Inc()

	blockNumber, err := m.transport.BlockNumber(ctx)
	if err != nil {
		log.Printf("monitor: poll aborted, block_number failed: %v", err)
		return
	}

	if m.cfg.useMulticall {
		if m.pollMulticall(ctx, blockNumber) {
			m.runDeltaStage(blockNumber)
			return
		}
		log.Printf("monitor: multicall failed, falling back to per-pool calls")
		metrics.MulticallFallbacks.Inc()
	}
	m.pollFallback(ctx, blockNumber)
	m.runDeltaStage(blockNumber)
}

func (m *Monitor) runDeltaStage(blockNumber uint64) {
	fresh := snapshot.Fresh(m.cache, blockNumber)
	deltas := delta.Detect(fresh, m.cfg.deltaThresholdPercent, snapshot.NowMs())
	for _, d := range deltas {
		metrics.DeltasDetected.WithLabelValues(d.PairKey).Inc()
		m.events.emitOpportunity(d)
	}
}

// pollMulticall attempts the batched aggregate3 path. It returns
// false (without touching the cache) if the multicall call itself
// failed, signalling the caller to fall back to step 2.
func (m *Monitor) pollMulticall(ctx context.Context, blockNumber uint64) bool {
	calls, planned, err := m.buildAggregate3Calls()
	if err != nil {
		log.Printf("monitor: building aggregate3 calls failed: %v", err)
		return false
	}
	if len(calls) == 0 {
		return true
	}

	data, err := abicodec.EncodeAggregate3(calls)
	if err != nil {
		log.Printf("monitor: encoding aggregate3 failed: %v", err)
		return false
	}

	multicallAddr := common.HexToAddress(abicodec.MulticallAddress)
	raw, err := m.transport.Call(ctx, multicallAddr, data)
	if err != nil {
		return false
	}

	results, err := abicodec.DecodeAggregate3Result(raw)
	if err != nil {
		return false
	}
	if len(results) != len(calls) {
		log.Printf("monitor: aggregate3 returned %d results for %d calls", len(results), len(calls))
		return false
	}

	for _, plan := range planned {
		m.applyPlan(plan, results, blockNumber)
	}
	return true
}

// callPlan indexes where in the aggregate3 call list a pool's price
// call and (for v3-family pools) its companion liquidity call landed.
type callPlan struct {
	pool          pool.Config
	priceCallIdx  int
	liquidityIdx  int // -1 when this pool has no companion call
}

func (m *Monitor) buildAggregate3Calls() ([]abicodec.Call3, []callPlan, error) {
	calls := make([]abicodec.Call3, 0, len(m.pools)*2)
	plans := make([]callPlan, 0, len(m.pools))

	for _, p := range m.pools {
		canonical, err := p.Protocol.Canonical()
		if err != nil {
			return nil, nil, err
		}
		plan := callPlan{pool: p, liquidityIdx: -1}

		plan.priceCallIdx = len(calls)
		calls = append(calls, abicodec.Call3{
			Target:       p.Address,
			AllowFailure: true,
			CallData:     priceSelector(canonical).CallData(),
		})

		if p.Protocol.IsV3Family() {
			plan.liquidityIdx = len(calls)
			calls = append(calls, abicodec.Call3{
				Target:       p.Address,
				AllowFailure: true,
				CallData:     abicodec.SelectorLiquidity.CallData(),
			})
		}

		plans = append(plans, plan)
	}
	return calls, plans, nil
}

func priceSelector(canonical pool.Protocol) abicodec.Selector {
	switch canonical {
	case pool.ProtocolV2ConstProduct:
		return abicodec.SelectorGetReserves
	case pool.ProtocolV3Concentrated:
		return abicodec.SelectorSlot0
	case pool.ProtocolAlgebraV3:
		return abicodec.SelectorGlobalState
	case pool.ProtocolLBBin:
		return abicodec.SelectorGetActiveID
	default:
		return abicodec.SelectorGetReserves
	}
}

func (m *Monitor) applyPlan(plan callPlan, results []abicodec.Result3, blockNumber uint64) {
	priceResult := results[plan.priceCallIdx]
	if !priceResult.Success {
		m.recordFailure(plan.pool, &abicodec.DecodeFailure{Call: "aggregate3", Reason: "sub-call failed"})
		return
	}

	var liquidity *big.Int
	if plan.liquidityIdx >= 0 {
		liqResult := results[plan.liquidityIdx]
		if liqResult.Success {
			if l, err := abicodec.DecodeLiquidity(liqResult.ReturnData); err == nil {
				liquidity = l
			}
		}
	}

	snap, err := m.decodeSnapshot(plan.pool, priceResult.ReturnData, liquidity, blockNumber)
	if err != nil {
		m.recordFailure(plan.pool, err)
		return
	}
	m.recordSuccess(plan.pool, snap)
}

// pollFallback issues one call per pool concurrently, bounded by an
// errgroup so a single slow or failing pool cannot block the rest,
// per spec.md §4.E step 2 / §5.
func (m *Monitor) pollFallback(ctx context.Context, blockNumber uint64) {
	g, gctx := errgroup.WithContext(context.Background())
	_ = gctx // each fetch uses ctx directly; failures are per-pool, not group-fatal

	for _, p := range m.pools {
		p := p
		g.Go(func() error {
			m.fetchPrice(ctx, p, blockNumber)
			return nil
		})
	}
	_ = g.Wait()
}

// FetchPrice performs a single-pool fetch outside of a scheduled
// cycle, reading a fresh block number first. The fallback path runs
// the same unexported fetchPrice with the cycle's block number.
func (m *Monitor) FetchPrice(ctx context.Context, p pool.Config) {
	blockNumber, err := m.transport.BlockNumber(ctx)
	if err != nil {
		m.recordFailure(p, err)
		return
	}
	m.fetchPrice(ctx, p, blockNumber)
}

func (m *Monitor) fetchPrice(ctx context.Context, p pool.Config, blockNumber uint64) {
	canonical, err := p.Protocol.Canonical()
	if err != nil {
		m.recordFailure(p, err)
		return
	}

	raw, err := m.transport.Call(ctx, p.Address, priceSelector(canonical).CallData())
	if err != nil {
		m.recordFailure(p, err)
		return
	}

	var liquidity *big.Int
	if p.Protocol.IsV3Family() {
		liqRaw, err := m.transport.Call(ctx, p.Address, abicodec.SelectorLiquidity.CallData())
		if err == nil {
			if l, err := abicodec.DecodeLiquidity(liqRaw); err == nil {
				liquidity = l
			}
		}
	}

	snap, err := m.decodeSnapshot(p, raw, liquidity, blockNumber)
	if err != nil {
		m.recordFailure(p, err)
		return
	}
	m.recordSuccess(p, snap)
}

// lowLiquidityError is spec.md §7's LowLiquidity class.
type lowLiquidityError struct {
	pool     string
	reserve  *big.Int
	minimum  *big.Int
}

func (e *lowLiquidityError) Error() string {
	return fmt.Sprintf("monitor: pool %q WETH reserve %s below minimum %s", e.pool, e.reserve.String(), e.minimum.String())
}

func (m *Monitor) decodeSnapshot(p pool.Config, raw []byte, liquidity *big.Int, blockNumber uint64) (snapshot.Price, error) {
	canonical, err := p.Protocol.Canonical()
	if err != nil {
		return snapshot.Price{}, err
	}

	snap := snapshot.Price{Pool: p, BlockNumber: blockNumber, TimestampMs: snapshot.NowMs(), Liquidity: liquidity}

	switch canonical {
	case pool.ProtocolV2ConstProduct:
		reserves, err := abicodec.DecodeReserves(raw)
		if err != nil {
			return snapshot.Price{}, err
		}
		if reserves.Reserve0.Sign() == 0 {
			return snapshot.Price{}, &abicodec.DecodeFailure{Call: "getReserves", Reason: "zero reserve0"}
		}
		if lowLiquidity := m.checkLowLiquidity(p, reserves); lowLiquidity != nil {
			return snapshot.Price{}, lowLiquidity
		}
		snap.Reserve0 = reserves.Reserve0
		snap.Reserve1 = reserves.Reserve1
		snap.Price = priceMath.V2Price(reserves.Reserve0, reserves.Reserve1, p.Decimals0, p.Decimals1)

	case pool.ProtocolV3Concentrated:
		slot0, err := abicodec.DecodeSlot0(raw)
		if err != nil {
			return snapshot.Price{}, err
		}
		snap.SqrtPriceX96 = slot0.SqrtPriceX96
		snap.Price = priceMath.SqrtPriceX96Price(slot0.SqrtPriceX96, p.Decimals0, p.Decimals1)

	case pool.ProtocolAlgebraV3:
		gs, err := abicodec.DecodeGlobalState(raw)
		if err != nil {
			return snapshot.Price{}, err
		}
		snap.SqrtPriceX96 = gs.Price
		snap.Price = priceMath.SqrtPriceX96Price(gs.Price, p.Decimals0, p.Decimals1)

	case pool.ProtocolLBBin:
		activeID, err := abicodec.DecodeActiveID(raw)
		if err != nil {
			return snapshot.Price{}, err
		}
		binStep := 1
		if p.FeeTier != nil {
			binStep = *p.FeeTier
		}
		id := activeID
		snap.ActiveID = &id
		snap.Price = priceMath.LBPrice(int64(activeID), binStep, p.Decimals0, p.Decimals1, p.InvertPrice)

	default:
		return snapshot.Price{}, fmt.Errorf("monitor: unhandled protocol %q", canonical)
	}

	if snap.Price <= 0 {
		return snapshot.Price{}, &abicodec.DecodeFailure{Call: "price", Reason: "non-positive price"}
	}
	snap.InversePrice = priceMath.Inverse(snap.Price)
	return snap, nil
}

// checkLowLiquidity applies the optional WETH-side minimum-reserve
// gate of spec.md §4.E to v2 pools containing the configured WETH
// address.
func (m *Monitor) checkLowLiquidity(p pool.Config, reserves *abicodec.Reserves) error {
	if m.cfg.minReserveWETH == nil || m.cfg.minReserveWETH.Sign() == 0 {
		return nil
	}
	var wethReserve *big.Int
	switch m.cfg.wethAddress {
	case p.Token0:
		wethReserve = reserves.Reserve0
	case p.Token1:
		wethReserve = reserves.Reserve1
	default:
		return nil
	}
	if wethReserve.Cmp(m.cfg.minReserveWETH) < 0 {
		return &lowLiquidityError{pool: p.Label, reserve: wethReserve, minimum: m.cfg.minReserveWETH}
	}
	return nil
}

func (m *Monitor) recordSuccess(p pool.Config, snap snapshot.Price) {
	m.cache.Upsert(p.Key(), snap)
	m.events.emitPriceUpdate(snap)

	zlog.Debug().
		Str("pool", p.Key()).
		Str("protocol", string(p.Protocol)).
		Float64("price", snap.Price).
		Uint64("block", snap.BlockNumber).
		Msg("price snapshot updated")
}

func (m *Monitor) recordFailure(p pool.Config, err error) {
	crossed := m.cache.IncrementError(p.Key(), m.cfg.maxRetries)
	metrics.PoolErrors.WithLabelValues(p.Key()).Inc()
	m.events.emitError(p.Key(), err)

	zlog.Debug().
		Str("pool", p.Key()).
		Err(err).
		Int("consecutive_errors", m.cache.ErrorCount(p.Key())).
		Msg("pool fetch failed")

	if crossed {
		metrics.StaleCrossings.WithLabelValues(p.Key()).Inc()
		m.events.emitStale(p.Key())
		zlog.Warn().Str("pool", p.Key()).Msg("pool crossed into stale")
	}
}
