// Package sink re-exports the opportunity-sink interface so
// downstream adapters (e.g. sink/mysqlsink) don't need to import the
// opportunity package directly just to implement it.
package sink

import "github.com/arbitragedex/arbitragedex/opportunity"

// Sink is the consumed downstream collaborator of spec.md §1/§6 that
// persists or forwards accepted opportunities.
type Sink = opportunity.Sink
