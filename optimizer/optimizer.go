// Package optimizer runs the ternary-search input-size search of
// spec.md §4.I over a caller-supplied net-profit curve.
package optimizer

import (
	"time"
)

// StopReason records why the search returned; the zero value means
// the search converged normally.
type StopReason string

const (
	StopConverged      StopReason = ""
	StopTimeout        StopReason = "timeout"
	StopMaxIterations  StopReason = "max_iterations"
	StopNoProfit       StopReason = "no_profitable_size"
)

// Params configures one search, mirroring the optimizer config keys
// of spec.md §6. Every tunable below is a pointer. MaxAmountOverride
// has no default (nil means no extra cap); each other field has a
// nonzero default, so nil (omitted) must be distinguishable from an explicit
// zero (e.g. spec.md §8 Scenario 3's zeroed convergence threshold,
// which disables early convergence and forces the search to run to
// its max-iterations or timeout stop instead).
type Params struct {
	MinAmount            *float64
	MaxAmount            *float64
	MaxAmountOverride    *float64 // caps the upper bound further, e.g. by pool depth
	MaxIterations        *int
	TimeoutMs            *int64
	FallbackAmount       *float64
	ConvergenceThreshold *float64
}

// resolved holds Params after defaulting every field left nil.
type resolved struct {
	minAmount            float64
	maxAmount            float64
	maxAmountOverride    *float64
	maxIterations        int
	timeoutMs            int64
	fallbackAmount       float64
	convergenceThreshold float64
}

func (p Params) resolve() resolved {
	r := resolved{
		minAmount:            1,
		maxAmount:            1000,
		maxAmountOverride:    p.MaxAmountOverride,
		maxIterations:        20,
		timeoutMs:            100,
		fallbackAmount:       10,
		convergenceThreshold: 1.0,
	}
	if p.MinAmount != nil {
		r.minAmount = *p.MinAmount
	}
	if p.MaxAmount != nil {
		r.maxAmount = *p.MaxAmount
	}
	if p.MaxIterations != nil {
		r.maxIterations = *p.MaxIterations
	}
	if p.TimeoutMs != nil {
		r.timeoutMs = *p.TimeoutMs
	}
	if p.FallbackAmount != nil {
		r.fallbackAmount = *p.FallbackAmount
	}
	if p.ConvergenceThreshold != nil {
		r.convergenceThreshold = *p.ConvergenceThreshold
	}
	return r
}

// Result is the OptimizationResult of spec.md §3/§4.I.
type Result struct {
	OptimalAmount  float64
	ExpectedProfit float64
	Iterations     int
	Duration       time.Duration
	Converged      bool
	FallbackReason StopReason
}

// ProfitFn evaluates net profit for a candidate input amount.
type ProfitFn func(inputAmount float64) float64

// nowFn is a seam for tests; defaults to the wall clock.
var nowFn = time.Now

// Run performs the ternary search described in spec.md §4.I: each
// iteration evaluates two interior points, discards the third that
// cannot hold the optimum, and tracks the best point seen so early
// termination still returns a safe answer. Stop conditions are
// checked, in order, at the top of every iteration.
func Run(params Params, profitFn ProfitFn) Result {
	p := params.resolve()

	start := nowFn()
	left := p.minAmount
	right := p.maxAmount
	if p.maxAmountOverride != nil && *p.maxAmountOverride < right {
		right = *p.maxAmountOverride
	}
	if right < left {
		right = left
	}

	bestAmount := left
	bestProfit := profitFn(left)

	iterations := 0
	for {
		elapsed := nowFn().Sub(start)
		if elapsed.Milliseconds() > p.timeoutMs {
			return Result{
				OptimalAmount:  p.fallbackAmount,
				ExpectedProfit: profitFn(p.fallbackAmount),
				Iterations:     iterations,
				Duration:       elapsed,
				Converged:      false,
				FallbackReason: StopTimeout,
			}
		}
		if right-left < p.convergenceThreshold {
			return finalize(bestAmount, bestProfit, iterations, nowFn().Sub(start), true, StopConverged, p, profitFn)
		}
		if iterations >= p.maxIterations {
			return finalize(bestAmount, bestProfit, iterations, nowFn().Sub(start), false, StopMaxIterations, p, profitFn)
		}

		m1 := left + (right-left)/3
		m2 := right - (right-left)/3
		p1 := profitFn(m1)
		p2 := profitFn(m2)

		if p1 > bestProfit {
			bestProfit = p1
			bestAmount = m1
		}
		if p2 > bestProfit {
			bestProfit = p2
			bestAmount = m2
		}

		if p1 < p2 {
			left = m1
		} else {
			right = m2
		}
		iterations++
	}
}

func finalize(amount, profit float64, iterations int, duration time.Duration, converged bool, reason StopReason, p resolved, profitFn ProfitFn) Result {
	if profit <= 0 {
		return Result{
			OptimalAmount:  p.fallbackAmount,
			ExpectedProfit: profitFn(p.fallbackAmount),
			Iterations:     iterations,
			Duration:       duration,
			Converged:      converged,
			FallbackReason: StopNoProfit,
		}
	}
	return Result{
		OptimalAmount:  amount,
		ExpectedProfit: profit,
		Iterations:     iterations,
		Duration:       duration,
		Converged:      converged,
		FallbackReason: reason,
	}
}
