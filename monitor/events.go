package monitor

import (
	"github.com/arbitragedex/arbitragedex/delta"
	"github.com/arbitragedex/arbitragedex/snapshot"
)

// ErrorEvent carries a per-pool fetch failure, per spec.md §6.
type ErrorEvent struct {
	PoolAddress string
	Err         error
}

// StaleEvent carries the pool address that just crossed into
// staleness. It is emitted exactly once per crossing, per spec.md
// §4.E / §8.
type StaleEvent struct {
	PoolAddress string
}

// Events is the typed channel bundle the monitor emits on, replacing
// the string-keyed event emitter of the source implementation per
// spec.md §9's design note. A detector attaches by holding a
// reference to this struct and ranging over the channels it cares
// about.
type Events struct {
	PriceUpdate chan snapshot.Price
	Error       chan ErrorEvent
	Stale       chan StaleEvent
	Opportunity chan delta.Delta
}

// newEvents allocates buffered channels sized generously enough that
// a single poll cycle's worth of events never blocks the poll loop
// waiting on a slow subscriber.
func newEvents(bufferSize int) *Events {
	return &Events{
		PriceUpdate: make(chan snapshot.Price, bufferSize),
		Error:       make(chan ErrorEvent, bufferSize),
		Stale:       make(chan StaleEvent, bufferSize),
		Opportunity: make(chan delta.Delta, bufferSize),
	}
}

func (e *Events) emitPriceUpdate(s snapshot.Price) {
	select {
	case e.PriceUpdate <- s:
	default:
	}
}

func (e *Events) emitError(poolAddr string, err error) {
	select {
	case e.Error <- ErrorEvent{PoolAddress: poolAddr, Err: err}:
	default:
	}
}

func (e *Events) emitStale(poolAddr string) {
	select {
	case e.Stale <- StaleEvent{PoolAddress: poolAddr}:
	default:
	}
}

func (e *Events) emitOpportunity(d delta.Delta) {
	select {
	case e.Opportunity <- d:
	default:
	}
}
