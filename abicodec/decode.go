package abicodec

import (
	"fmt"
	"math/big"

	"github.com/arbitragedex/arbitragedex/internal/bigmath"
)

// DecodeFailure is returned whenever return data does not match the
// expected ABI shape, per spec.md §7 — this includes a Multicall3
// sub-call that came back with success=false.
type DecodeFailure struct {
	Call   string
	Reason string
}

func (e *DecodeFailure) Error() string {
	return fmt.Sprintf("abicodec: decode %s failed: %s", e.Call, e.Reason)
}

// Reserves is the decoded return of getReserves(): (uint112, uint112, uint32).
type Reserves struct {
	Reserve0            *big.Int
	Reserve1            *big.Int
	BlockTimestampLast   uint32
}

// DecodeReserves decodes a getReserves() return value. Return data
// must be exactly three 32-byte words (96 bytes), bit-exact per
// spec.md §4.C.
func DecodeReserves(data []byte) (*Reserves, error) {
	if len(data) != 96 {
		return nil, &DecodeFailure{Call: "getReserves", Reason: fmt.Sprintf("expected 96 bytes, got %d", len(data))}
	}
	r0, err := bigmath.Word(data, 0)
	if err != nil {
		return nil, &DecodeFailure{Call: "getReserves", Reason: err.Error()}
	}
	r1, err := bigmath.Word(data, 1)
	if err != nil {
		return nil, &DecodeFailure{Call: "getReserves", Reason: err.Error()}
	}
	ts, err := bigmath.Word(data, 2)
	if err != nil {
		return nil, &DecodeFailure{Call: "getReserves", Reason: err.Error()}
	}
	return &Reserves{Reserve0: r0, Reserve1: r1, BlockTimestampLast: uint32(ts.Uint64())}, nil
}

// Slot0 is the decoded return of a Uniswap-v3-style pool's slot0():
// (uint160, int24, uint16, uint16, uint16, uint8, bool).
type Slot0 struct {
	SqrtPriceX96               *big.Int
	Tick                       int32
	ObservationIndex           uint16
	ObservationCardinality     uint16
	ObservationCardinalityNext uint16
	FeeProtocol                uint8
	Unlocked                   bool
}

// DecodeSlot0 decodes a slot0() return value: seven 32-byte words
// (224 bytes), per spec.md §4.C / §6.
func DecodeSlot0(data []byte) (*Slot0, error) {
	return decodeV3Shape(data, "slot0")
}

// GlobalState is the decoded return of an Algebra pool's
// globalState(): (uint160, int24, uint16, uint16, uint16, uint8, uint8).
type GlobalState struct {
	Price                *big.Int
	Tick                 int32
	Fee                  uint16
	TimepointIndex       uint16
	CommunityFeeToken0   uint16
	CommunityFeeToken1   uint8
	PluginConfig         uint8
}

// DecodeGlobalState decodes a globalState() return value: the same
// seven-word width as slot0, but with the last two fields both
// uint8-sized on the wire.
func DecodeGlobalState(data []byte) (*GlobalState, error) {
	s, err := decodeV3Shape(data, "globalState")
	if err != nil {
		return nil, err
	}
	// The seventh word is a real uint8 here, not slot0's bool; read it
	// directly instead of going through Slot0.Unlocked, which would
	// collapse any value above 1 down to a boolean.
	w6, err := bigmath.Word(data, 6)
	if err != nil {
		return nil, &DecodeFailure{Call: "globalState", Reason: err.Error()}
	}
	return &GlobalState{
		Price:              s.SqrtPriceX96,
		Tick:               s.Tick,
		Fee:                s.ObservationIndex,
		TimepointIndex:     s.ObservationCardinality,
		CommunityFeeToken0: s.ObservationCardinalityNext,
		CommunityFeeToken1: s.FeeProtocol,
		PluginConfig:       uint8(w6.Uint64()),
	}, nil
}

// decodeV3Shape decodes the common seven-word (uint160, int24,
// uint16, uint16, uint16, uint8, X) tuple shared by slot0 and
// globalState; the seventh field's interpretation (bool vs uint8) is
// left to the caller.
func decodeV3Shape(data []byte, call string) (*Slot0, error) {
	if len(data) != 224 {
		return nil, &DecodeFailure{Call: call, Reason: fmt.Sprintf("expected 224 bytes, got %d", len(data))}
	}
	sqrtPrice, err := bigmath.Word(data, 0)
	if err != nil {
		return nil, &DecodeFailure{Call: call, Reason: err.Error()}
	}
	tick, err := bigmath.SignedWord(data, 1)
	if err != nil {
		return nil, &DecodeFailure{Call: call, Reason: err.Error()}
	}
	w2, _ := bigmath.Word(data, 2)
	w3, _ := bigmath.Word(data, 3)
	w4, _ := bigmath.Word(data, 4)
	w5, _ := bigmath.Word(data, 5)
	w6, _ := bigmath.Word(data, 6)

	return &Slot0{
		SqrtPriceX96:               sqrtPrice,
		Tick:                       int32(tick.Int64()),
		ObservationIndex:           uint16(w2.Uint64()),
		ObservationCardinality:     uint16(w3.Uint64()),
		ObservationCardinalityNext: uint16(w4.Uint64()),
		FeeProtocol:                uint8(w5.Uint64()),
		Unlocked:                   w6.Sign() != 0,
	}, nil
}

// DecodeActiveID decodes a getActiveId() return value: a single word
// holding a uint24.
func DecodeActiveID(data []byte) (uint32, error) {
	if len(data) != 32 {
		return 0, &DecodeFailure{Call: "getActiveId", Reason: fmt.Sprintf("expected 32 bytes, got %d", len(data))}
	}
	w, err := bigmath.Word(data, 0)
	if err != nil {
		return 0, &DecodeFailure{Call: "getActiveId", Reason: err.Error()}
	}
	return uint32(w.Uint64()), nil
}

// DecodeLiquidity decodes a liquidity() return value: a single word
// holding a uint128.
func DecodeLiquidity(data []byte) (*big.Int, error) {
	if len(data) != 32 {
		return nil, &DecodeFailure{Call: "liquidity", Reason: fmt.Sprintf("expected 32 bytes, got %d", len(data))}
	}
	w, err := bigmath.Word(data, 0)
	if err != nil {
		return nil, &DecodeFailure{Call: "liquidity", Reason: err.Error()}
	}
	return w, nil
}
