package abicodec

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Call3 mirrors Multicall3.Call3: a single sub-call with
// allowFailure, always set true by the monitor (spec.md §4.C) so one
// bad pool never fails the whole batch.
type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Result3 mirrors Multicall3.Result: whether the sub-call succeeded
// and its raw return data.
type Result3 struct {
	Success    bool
	ReturnData []byte
}

const word = 32

func leftPad32(b []byte) []byte {
	if len(b) >= word {
		return b[len(b)-word:]
	}
	out := make([]byte, word)
	copy(out[word-len(b):], b)
	return out
}

func uint256Word(v uint64) []byte {
	b := make([]byte, word)
	binary.BigEndian.PutUint64(b[word-8:], v)
	return b
}

func paddedBytes(data []byte) []byte {
	padLen := (word - len(data)%word) % word
	return append(append([]byte{}, data...), make([]byte, padLen)...)
}

// EncodeAggregate3 builds the full call data (4-byte selector plus
// ABI-encoded arguments) for Multicall3.aggregate3(Call3[]). The
// encoding is hand-rolled rather than routed through go-ethereum's
// reflection-based tuple unpacking, which expects abigen-generated
// struct bindings this system does not carry; the aggregate3 layout
// is fixed and small enough to encode directly. The tests check the
// encoded selector prefix only; the layout below is not decoded back.
func EncodeAggregate3(calls []Call3) ([]byte, error) {
	n := len(calls)
	if n == 0 {
		return nil, fmt.Errorf("abicodec: aggregate3 requires at least one call")
	}

	// Layout: offset-to-array(32) | array-length(32) | n head words
	// (offsets relative to the first head word, just after the
	// array-length word) | n
	// tuple bodies, each: target(32) | allowFailure(32) |
	// offset-to-bytes(32) | bytes-length(32) | padded bytes.
	heads := make([][]byte, n)
	bodies := make([][]byte, n)
	for i, c := range calls {
		allowFailureWord := uint256Word(0)
		if c.AllowFailure {
			allowFailureWord = uint256Word(1)
		}
		bytesLen := uint256Word(uint64(len(c.CallData)))
		body := make([]byte, 0, 96+len(paddedBytes(c.CallData)))
		body = append(body, leftPad32(c.Target.Bytes())...)
		body = append(body, allowFailureWord...)
		body = append(body, uint256Word(96)...) // offset to bytes within this tuple
		body = append(body, bytesLen...)
		body = append(body, paddedBytes(c.CallData)...)
		bodies[i] = body
		heads[i] = nil // filled once offsets are known
	}

	headsSize := n * word
	offset := uint64(headsSize)
	offsets := make([]uint64, n)
	for i, b := range bodies {
		offsets[i] = offset
		offset += uint64(len(b))
	}
	for i := range heads {
		heads[i] = uint256Word(offsets[i])
	}

	arrayData := make([]byte, 0, word+headsSize+int(offset))
	arrayData = append(arrayData, uint256Word(uint64(n))...)
	for _, h := range heads {
		arrayData = append(arrayData, h...)
	}
	for _, b := range bodies {
		arrayData = append(arrayData, b...)
	}

	args := make([]byte, 0, word+len(arrayData))
	args = append(args, uint256Word(word)...) // single param: offset to array = 0x20
	args = append(args, arrayData...)

	data := make([]byte, 0, 4+len(args))
	data = append(data, SelectorAggregate3[:]...)
	data = append(data, args...)
	return data, nil
}

// DecodeAggregate3Result decodes the (bool,bytes)[] return value of
// aggregate3, mirroring EncodeAggregate3's hand-rolled layout.
func DecodeAggregate3Result(data []byte) ([]Result3, error) {
	if len(data) < word*2 {
		return nil, &DecodeFailure{Call: "aggregate3", Reason: "return data too short"}
	}
	arrayOffset := new(big.Int).SetBytes(data[0:word]).Uint64()
	if arrayOffset+word > uint64(len(data)) {
		return nil, &DecodeFailure{Call: "aggregate3", Reason: "array offset out of range"}
	}
	arr := data[arrayOffset:]
	n := new(big.Int).SetBytes(arr[0:word]).Uint64()

	results := make([]Result3, 0, n)
	headsStart := arr[word:]
	for i := uint64(0); i < n; i++ {
		headOff := i * word
		if headOff+word > uint64(len(headsStart)) {
			return nil, &DecodeFailure{Call: "aggregate3", Reason: "truncated head section"}
		}
		tupleOffset := new(big.Int).SetBytes(headsStart[headOff : headOff+word]).Uint64()
		tuple := headsStart[tupleOffset:]
		if len(tuple) < 2*word {
			return nil, &DecodeFailure{Call: "aggregate3", Reason: "truncated tuple"}
		}
		success := new(big.Int).SetBytes(tuple[0:word]).Sign() != 0
		bytesOffset := new(big.Int).SetBytes(tuple[word : 2*word]).Uint64()
		if bytesOffset+word > uint64(len(tuple)) {
			return nil, &DecodeFailure{Call: "aggregate3", Reason: "bytes offset out of range"}
		}
		bytesLen := new(big.Int).SetBytes(tuple[bytesOffset : bytesOffset+word]).Uint64()
		start := bytesOffset + word
		end := start + bytesLen
		if end > uint64(len(tuple)) {
			return nil, &DecodeFailure{Call: "aggregate3", Reason: "bytes payload out of range"}
		}
		results = append(results, Result3{Success: success, ReturnData: tuple[start:end]})
	}
	return results, nil
}
