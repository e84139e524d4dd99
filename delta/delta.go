// Package delta groups fresh snapshots of the same canonical pool
// pair and surfaces the spread between the cheapest and most
// expensive quote, per spec.md §4.F.
package delta

import (
	"sort"

	"github.com/arbitragedex/arbitragedex/snapshot"
)

// Delta is the PriceDelta of spec.md §3: the cheaper and more
// expensive snapshot of the same canonical pair, and the spread
// between them.
type Delta struct {
	PairKey      string
	BuyPool      snapshot.Price
	SellPool     snapshot.Price
	DeltaPercent float64
	TimestampMs  int64
}

// Group buckets fresh snapshots by their pool's canonical pair key.
// Iteration order within a bucket is the lowercased pool address
// sort order, which makes tie-breaking among >2 pools for the same
// pair deterministic without the caller needing to depend on which
// specific pair wins (spec.md §4.F / §9 open question c).
func Group(fresh map[string]snapshot.Price) map[string][]snapshot.Price {
	groups := make(map[string][]snapshot.Price)
	for _, snap := range fresh {
		pairKey := snap.Pool.PairKey()
		groups[pairKey] = append(groups[pairKey], snap)
	}
	for pairKey, snaps := range groups {
		sort.Slice(snaps, func(i, j int) bool {
			return snaps[i].Pool.Key() < snaps[j].Pool.Key()
		})
		groups[pairKey] = snaps
	}
	return groups
}

// Detect runs the per-cycle delta computation: for every pair with at
// least two fresh quotes, pick the min- and max-priced snapshot and
// emit a delta if the spread clears thresholdPercent. At most one
// delta is emitted per pair per call, per spec.md §4.F.
func Detect(fresh map[string]snapshot.Price, thresholdPercent float64, nowMs int64) []Delta {
	groups := Group(fresh)

	pairKeys := make([]string, 0, len(groups))
	for pairKey := range groups {
		pairKeys = append(pairKeys, pairKey)
	}
	sort.Strings(pairKeys)

	var deltas []Delta
	for _, pairKey := range pairKeys {
		snaps := groups[pairKey]
		if len(snaps) < 2 {
			continue
		}
		min, max := snaps[0], snaps[0]
		for _, s := range snaps[1:] {
			if s.Price < min.Price {
				min = s
			}
			if s.Price > max.Price {
				max = s
			}
		}
		if min.Price == 0 {
			continue
		}
		deltaPercent := (max.Price - min.Price) / min.Price * 100
		if deltaPercent >= thresholdPercent {
			deltas = append(deltas, Delta{
				PairKey:      pairKey,
				BuyPool:      min,
				SellPool:     max,
				DeltaPercent: deltaPercent,
				TimestampMs:  nowMs,
			})
		}
	}
	return deltas
}
