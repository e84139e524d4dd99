// Package opportunity implements the detector of spec.md §4.J: it
// consumes the monitor's delta/stale/price_update events, enforces
// the staleness gate, and produces fully-costed opportunities.
package opportunity

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/arbitragedex/arbitragedex/cost"
	"github.com/arbitragedex/arbitragedex/delta"
	"github.com/arbitragedex/arbitragedex/metrics"
	"github.com/arbitragedex/arbitragedex/monitor"
	"github.com/arbitragedex/arbitragedex/optimizer"
	"github.com/arbitragedex/arbitragedex/path"
)

// scaleReserve converts a raw on-chain integer reserve into its
// human-scaled float value.
func scaleReserve(raw *big.Int, decimals int) float64 {
	scaled := new(big.Float).Quo(new(big.Float).SetInt(raw), new(big.Float).SetFloat64(math.Pow(10, float64(decimals))))
	f, _ := scaled.Float64()
	return f
}

// RejectReason classes mirror spec.md §7's rejection taxonomy.
type RejectReason string

const (
	ReasonStaleInput           RejectReason = "stale_input"
	ReasonUnprofitable         RejectReason = "unprofitable_opportunity"
)

// Rejection is returned by AnalyzeDelta when an opportunity does not
// clear the detector's gates. It is not an error from the system's
// point of view, per spec.md §7.
type Rejection struct {
	Reason RejectReason
	Detail string
	Delta  delta.Delta
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("opportunity rejected (%s): %s", r.Reason, r.Detail)
}

// Opportunity is the ArbitrageOpportunity of spec.md §3.
type Opportunity struct {
	ID                 string
	Path               path.Path
	InputAmount        float64
	GrossProfit        float64
	Costs              cost.Estimate
	NetProfit          float64
	NetProfitPercent   float64
	Delta              delta.Delta
	BlockNumber        uint64
	TimestampMs        int64
	OptimizationResult *optimizer.Result
}

// Config holds the detector's tunables, per spec.md §6.
type Config struct {
	MinProfitThreshold   float64
	DefaultInputAmount   float64
	ReserveSafetyFactor  float64 // scales the smaller virtual reserve into an optimizer upper bound
	Optimizer            optimizer.Params
	CostModel            cost.Model
}

func (c Config) normalized() Config {
	if c.DefaultInputAmount == 0 {
		c.DefaultInputAmount = 10
	}
	if c.ReserveSafetyFactor == 0 {
		c.ReserveSafetyFactor = 0.1
	}
	return c
}

// Sink is the consumed opportunity-sink interface of spec.md §1/§6:
// a downstream collaborator that persists or forwards accepted
// opportunities. It is deliberately minimal — the detector core has
// no opinion on storage.
type Sink interface {
	Record(o Opportunity) error
}

// Detector implements spec.md §4.J.
type Detector struct {
	cfg  Config
	sink Sink

	mu        sync.Mutex
	staleSet  map[string]bool
	attached  bool
	quit      chan struct{}
	idCounter uint64
}

// New constructs a Detector. sink may be nil; a nil sink means
// accepted opportunities are only returned to the caller of
// AnalyzeDelta and never persisted.
func New(cfg Config, sink Sink) *Detector {
	return &Detector{
		cfg:      cfg.normalized(),
		sink:     sink,
		staleSet: make(map[string]bool),
	}
}

// Attach subscribes to the monitor's events: `opportunity` triggers
// AnalyzeDelta, `stale` adds a pool to the stale set, `price_update`
// removes it. Per spec.md §4.J, Attach may only be called once at a
// time; a second Attach before Detach is a no-op.
func (d *Detector) Attach(m *monitor.Monitor) {
	d.mu.Lock()
	if d.attached {
		d.mu.Unlock()
		return
	}
	d.attached = true
	d.quit = make(chan struct{})
	quit := d.quit
	d.mu.Unlock()

	events := m.Events()
	go func() {
		for {
			select {
			case <-quit:
				return
			case snap := <-events.PriceUpdate:
				d.clearStale(snap.Pool.Key())
			case staleEv := <-events.Stale:
				d.markStale(staleEv.PoolAddress)
			case delta := <-events.Opportunity:
				opp, err := d.AnalyzeDelta(delta)
				if err != nil {
					continue
				}
				if d.sink != nil {
					_ = d.sink.Record(*opp)
				}
			}
		}
	}()
}

// Detach stops the subscription and clears the stale set, per
// spec.md §4.J.
func (d *Detector) Detach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attached {
		return
	}
	close(d.quit)
	d.attached = false
	d.staleSet = make(map[string]bool)
}

func (d *Detector) markStale(poolAddr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staleSet[strings.ToLower(poolAddr)] = true
}

func (d *Detector) clearStale(poolAddr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.staleSet, strings.ToLower(poolAddr))
}

func (d *Detector) isStale(poolAddr string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.staleSet[strings.ToLower(poolAddr)]
}

// AnalyzeDelta runs the pipeline described in spec.md §4.J: staleness
// gate, path construction, optimizer-driven sizing when reserve data
// is available, cost/profit computation, and the profit threshold
// gate.
func (d *Detector) AnalyzeDelta(delta delta.Delta) (*Opportunity, error) {
	buyKey := strings.ToLower(delta.BuyPool.Pool.Key())
	sellKey := strings.ToLower(delta.SellPool.Pool.Key())
	if d.isStale(buyKey) || d.isStale(sellKey) {
		metrics.OpportunitiesRejected.WithLabelValues(string(ReasonStaleInput)).Inc()
		return nil, &Rejection{Reason: ReasonStaleInput, Detail: "buy or sell pool is in the stale set", Delta: delta}
	}

	swapPath := path.BuildTwoHop(delta)

	inputAmount, optResult := d.sizeInput(swapPath)

	grossProfit := d.grossProfit(swapPath, inputAmount)
	costs := d.cfg.CostModel.Total(swapPath, inputAmount)
	netProfit := grossProfit - costs.TotalCost

	if netProfit <= 0 || netProfit < d.cfg.MinProfitThreshold {
		metrics.OpportunitiesRejected.WithLabelValues(string(ReasonUnprofitable)).Inc()
		return nil, &Rejection{
			Reason: ReasonUnprofitable,
			Detail: fmt.Sprintf("net_profit %.6f below threshold %.6f", netProfit, d.cfg.MinProfitThreshold),
			Delta:  delta,
		}
	}

	metrics.OpportunitiesFound.Inc()
	metrics.LastOpportunityNetProfit.Set(netProfit)
	d.idCounter++
	opp := &Opportunity{
		ID:                 fmt.Sprintf("opp-%d-%d", time.Now().UnixNano(), d.idCounter),
		Path:                swapPath,
		InputAmount:         inputAmount,
		GrossProfit:         grossProfit,
		Costs:               costs,
		NetProfit:           netProfit,
		NetProfitPercent:    netProfit / inputAmount * 100,
		Delta:               delta,
		BlockNumber:         delta.SellPool.BlockNumber,
		TimestampMs:         delta.TimestampMs,
		OptimizationResult:  optResult,
	}
	return opp, nil
}

// profitFn is gross_profit(path, x) - total_cost(path, x), per
// spec.md §4.J step 3.
func (d *Detector) profitFn(swapPath path.Path) optimizer.ProfitFn {
	return func(inputAmount float64) float64 {
		gross := d.grossProfit(swapPath, inputAmount)
		costs := d.cfg.CostModel.Total(swapPath, inputAmount)
		return gross - costs.TotalCost
	}
}

// grossProfit compounds each step's expected_price across the path,
// net of each hop's trading fee (Step.FeeFactor). It uses mid prices
// only, with no reserve data; the cost package's slippage function
// deducts the same fee factor, so the fee is counted once.
func (d *Detector) grossProfit(swapPath path.Path, inputAmount float64) float64 {
	amount := inputAmount
	for _, step := range swapPath.Steps {
		amount *= step.ExpectedPrice * step.FeeFactor()
	}
	return amount - inputAmount
}

// sizeInput runs the ternary-search optimizer when both legs carry
// reserve data, bounding the search by the smaller input-side virtual
// reserve scaled by ReserveSafetyFactor; otherwise it uses the
// configured default input amount with no optimization result, per
// spec.md §4.J step 3.
func (d *Detector) sizeInput(swapPath path.Path) (float64, *optimizer.Result) {
	hasReserves := true
	var minReserveScaled float64
	for i, step := range swapPath.Steps {
		if step.VirtualReserveIn == nil {
			hasReserves = false
			break
		}
		scaled := scaleReserve(step.VirtualReserveIn, step.DecimalsIn)
		if i == 0 || scaled < minReserveScaled {
			minReserveScaled = scaled
		}
	}
	if !hasReserves {
		return d.cfg.DefaultInputAmount, nil
	}

	override := minReserveScaled * d.cfg.ReserveSafetyFactor
	params := d.cfg.Optimizer
	params.MaxAmountOverride = &override

	result := optimizer.Run(params, d.profitFn(swapPath))

	netProfit := result.ExpectedProfit
	costs := d.cfg.CostModel.Total(swapPath, result.OptimalAmount)
	recomputed := d.grossProfit(swapPath, result.OptimalAmount) - costs.TotalCost
	if !math.IsNaN(recomputed) {
		netProfit = recomputed
	}
	result.ExpectedProfit = netProfit

	return result.OptimalAmount, &result
}
