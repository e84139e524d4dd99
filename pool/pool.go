// Package pool defines the immutable per-pool configuration consumed
// by every other layer of the detector.
package pool

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Protocol identifies the pricing shape a pool follows.
type Protocol string

const (
	ProtocolV2ConstProduct Protocol = "v2-const-product"
	ProtocolV3Concentrated Protocol = "v3-concentrated"
	ProtocolAlgebraV3      Protocol = "algebra-v3"
	ProtocolLBBin          Protocol = "lb-bin"
)

// canonicalAliases maps the alias spellings spec.md §3 calls out
// (sushi-v2/v3, camelot-v2/v3, ramses-v3, trader-joe-lb) to the four
// canonical protocol shapes.
var canonicalAliases = map[Protocol]Protocol{
	"sushi-v2":       ProtocolV2ConstProduct,
	"sushi-v3":       ProtocolV3Concentrated,
	"camelot-v2":     ProtocolV2ConstProduct,
	"camelot-v3":     ProtocolAlgebraV3,
	"ramses-v3":      ProtocolV3Concentrated,
	"trader-joe-lb":  ProtocolLBBin,
	ProtocolV2ConstProduct: ProtocolV2ConstProduct,
	ProtocolV3Concentrated: ProtocolV3Concentrated,
	ProtocolAlgebraV3:      ProtocolAlgebraV3,
	ProtocolLBBin:          ProtocolLBBin,
}

// Canonical resolves a protocol alias to one of the four pricing
// shapes the rest of the system switches on.
func (p Protocol) Canonical() (Protocol, error) {
	canonical, ok := canonicalAliases[p]
	if !ok {
		return "", fmt.Errorf("pool: unknown protocol variant %q", p)
	}
	return canonical, nil
}

// IsV3Family reports whether the canonical protocol needs an
// in-range liquidity call alongside its price call (spec.md §4.E
// step 1: v3/Algebra pools carry a companion `liquidity` multicall
// entry; LB and v2 pools do not).
func (p Protocol) IsV3Family() bool {
	canonical, err := p.Canonical()
	if err != nil {
		return false
	}
	return canonical == ProtocolV3Concentrated || canonical == ProtocolAlgebraV3
}

// Config is the immutable configuration for one pool, per spec.md §3.
type Config struct {
	Label         string
	Protocol      Protocol
	Address       common.Address
	Token0        common.Address
	Token1        common.Address
	Decimals0     int
	Decimals1     int
	FeeTier       *int // bps for v3/Algebra, binStep for lb-bin
	InvertPrice   bool
}

// Key returns the lowercased pool address used throughout the cache
// and stale-set as the canonical lookup key (spec.md §4.D).
func (c Config) Key() string {
	return strings.ToLower(c.Address.Hex())
}

// PairKey returns the canonical pair key `min(token0,token1)/max(...)`
// lowercased, used by delta grouping (spec.md §3).
func (c Config) PairKey() string {
	a := strings.ToLower(c.Token0.Hex())
	b := strings.ToLower(c.Token1.Hex())
	if a < b {
		return a + "/" + b
	}
	return b + "/" + a
}

// Validate applies the config-time checks spec.md §4.B/§7 require to
// be eager and fatal: decimals range, binStep range for lb-bin pools,
// and that an lb-bin pool carries the fee tier it needs (the feeTier
// field doubles as binStep for that protocol).
func (c Config) Validate() error {
	canonical, err := c.Protocol.Canonical()
	if err != nil {
		return &ConfigError{Pool: c.Label, Reason: err.Error()}
	}
	if c.Decimals0 < 0 || c.Decimals0 > 30 {
		return &ConfigError{Pool: c.Label, Reason: "decimals0 out of range [0,30]"}
	}
	if c.Decimals1 < 0 || c.Decimals1 > 30 {
		return &ConfigError{Pool: c.Label, Reason: "decimals1 out of range [0,30]"}
	}
	if canonical == ProtocolLBBin {
		if c.FeeTier == nil {
			return &ConfigError{Pool: c.Label, Reason: "lb-bin pool missing feeTier (binStep)"}
		}
		if *c.FeeTier < 1 || *c.FeeTier > 10000 {
			return &ConfigError{Pool: c.Label, Reason: "binStep out of range [1,10000]"}
		}
	}
	if c.Address == (common.Address{}) {
		return &ConfigError{Pool: c.Label, Reason: "pool address is zero"}
	}
	return nil
}

// ConfigError is the only error class that is fatal at construction
// time (spec.md §7).
type ConfigError struct {
	Pool   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pool %q: invalid configuration: %s", e.Pool, e.Reason)
}
