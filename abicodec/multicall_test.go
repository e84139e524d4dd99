package abicodec

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestEncodeAggregate3RoundTrip(t *testing.T) {
	calls := []Call3{
		{Target: common.HexToAddress("0x1111111111111111111111111111111111111111"), AllowFailure: true, CallData: SelectorGetReserves.CallData()},
		{Target: common.HexToAddress("0x2222222222222222222222222222222222222222"), AllowFailure: true, CallData: SelectorSlot0.CallData()},
	}

	data, err := EncodeAggregate3(calls)
	assert.NoError(t, err)
	assert.Equal(t, SelectorAggregate3[:], data[:4])

	// Simulate what Multicall3 would return: success for both, with
	// the first sub-call's data three words wide (getReserves) and the
	// second seven words wide (slot0).
	reservesReturn := make([]byte, 96)
	slot0Return := make([]byte, 224)
	raw := buildAggregate3Return(t, []bool{true, true}, [][]byte{reservesReturn, slot0Return})

	results, err := DecodeAggregate3Result(raw)
	assert.NoError(t, err)
	assert.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, 96, len(results[0].ReturnData))
	assert.True(t, results[1].Success)
	assert.Equal(t, 224, len(results[1].ReturnData))
}

func TestDecodeAggregate3ResultTooShort(t *testing.T) {
	_, err := DecodeAggregate3Result(make([]byte, 16))
	assert.Error(t, err)
}

func TestEncodeAggregate3NoCalls(t *testing.T) {
	_, err := EncodeAggregate3(nil)
	assert.Error(t, err)
}

// buildAggregate3Return hand-encodes a (bool,bytes)[] return value the
// same way the real Multicall3 contract would, so DecodeAggregate3Result
// can be exercised without a live chain.
func buildAggregate3Return(t *testing.T, successes []bool, returnDatas [][]byte) []byte {
	t.Helper()
	n := len(successes)

	bodies := make([][]byte, n)
	for i := range successes {
		successWord := uint256Word(0)
		if successes[i] {
			successWord = uint256Word(1)
		}
		body := make([]byte, 0, 64+len(paddedBytes(returnDatas[i])))
		body = append(body, successWord...)
		body = append(body, uint256Word(64)...)
		body = append(body, uint256Word(uint64(len(returnDatas[i])))...)
		body = append(body, paddedBytes(returnDatas[i])...)
		bodies[i] = body
	}

	headsSize := n * word
	offset := uint64(headsSize)
	heads := make([][]byte, n)
	for i, b := range bodies {
		heads[i] = uint256Word(offset)
		offset += uint64(len(b))
	}

	arrayData := make([]byte, 0)
	arrayData = append(arrayData, uint256Word(uint64(n))...)
	for _, h := range heads {
		arrayData = append(arrayData, h...)
	}
	for _, b := range bodies {
		arrayData = append(arrayData, b...)
	}

	out := make([]byte, 0, word+len(arrayData))
	out = append(out, uint256Word(word)...)
	out = append(out, arrayData...)
	return out
}
