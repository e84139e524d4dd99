// Package abicodec encodes and decodes the small, fixed set of ABI
// shapes this system needs: pool state getters (getReserves, slot0,
// globalState, getActiveId, liquidity) and the Multicall3 aggregate3
// batching call. Every selector is derived from its function
// signature via keccak256 rather than hand-copied, so it cannot
// silently drift from spec.md §4.C.
package abicodec

import "github.com/ethereum/go-ethereum/crypto"

// Selector is a 4-byte ABI function selector.
type Selector [4]byte

func selectorOf(signature string) Selector {
	hash := crypto.Keccak256([]byte(signature))
	var sel Selector
	copy(sel[:], hash[:4])
	return sel
}

// Function selectors for the on-chain view calls this system makes,
// per spec.md §4.C / §6.
var (
	SelectorGetReserves  = selectorOf("getReserves()")
	SelectorSlot0        = selectorOf("slot0()")
	SelectorGlobalState  = selectorOf("globalState()")
	SelectorGetActiveID  = selectorOf("getActiveId()")
	SelectorLiquidity    = selectorOf("liquidity()")
	SelectorAggregate3   = selectorOf("aggregate3((address,bool,bytes)[])")
)

// MulticallAddress is the canonical cross-chain Multicall3 deployment
// address, per spec.md §4.C.
const MulticallAddress = "0xcA11bde05977b3631167028862bE2a173976CA11"

// CallData returns the 4-byte selector as the complete call data for
// each of the no-argument pool getters this system calls.
func (s Selector) CallData() []byte {
	return append([]byte{}, s[:]...)
}
