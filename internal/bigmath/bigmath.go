// Package bigmath holds the fixed-width integer helpers shared by the
// ABI codec and price-math layers. On-chain values (uint112, uint128,
// uint160, uint256, int24) must survive decoding without truncation;
// floating point is only introduced at the final price division.
package bigmath

import "math/big"

// wordSize is the width of a single ABI-encoded return value.
const wordSize = 32

var twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)

// Word extracts the n-th 32-byte word from ABI return data as an
// unsigned big.Int.
func Word(data []byte, n int) (*big.Int, error) {
	start := n * wordSize
	end := start + wordSize
	if end > len(data) {
		return nil, ErrShortReturnData
	}
	return new(big.Int).SetBytes(data[start:end]), nil
}

// SignedWord extracts the n-th 32-byte word and interprets it as a
// two's-complement signed 256-bit integer, which is how solidity
// encodes intN return values regardless of their declared width.
func SignedWord(data []byte, n int) (*big.Int, error) {
	v, err := Word(data, n)
	if err != nil {
		return nil, err
	}
	if v.Bit(255) == 1 {
		v = new(big.Int).Sub(v, twoPow256)
	}
	return v, nil
}

// ErrShortReturnData is returned when ABI return data is too short to
// contain the word being decoded.
var ErrShortReturnData = shortReturnDataError{}

type shortReturnDataError struct{}

func (shortReturnDataError) Error() string { return "bigmath: return data too short" }

// Pow10 returns 10^n as a *big.Float, n may be negative.
func Pow10(n int) *big.Float {
	result := big.NewFloat(1)
	ten := big.NewFloat(10)
	if n >= 0 {
		for i := 0; i < n; i++ {
			result.Mul(result, ten)
		}
		return result
	}
	for i := 0; i < -n; i++ {
		result.Quo(result, ten)
	}
	return result
}

// TwoPow96 is 2^96, the sqrtPriceX96 fixed-point denominator.
var TwoPow96 = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))

// SqrtPriceX96ToRawPrice computes (sqrtPriceX96 / 2^96)^2 as a
// big.Float. The division happens before squaring, per spec: squaring
// a sqrtPriceX96 as an integer first can overflow well before the
// division brings the magnitude back down.
func SqrtPriceX96ToRawPrice(sqrtPriceX96 *big.Int) *big.Float {
	ratio := new(big.Float).SetPrec(160).SetInt(sqrtPriceX96)
	ratio.Quo(ratio, TwoPow96)
	return new(big.Float).Mul(ratio, ratio)
}

// TickToSqrtPriceX96 converts a tick index to its sqrtPriceX96
// representation: sqrt(1.0001^tick) * 2^96. Ported from the teacher's
// tick/sqrtPrice helpers, generalized to take an int rather than
// int32. Only this package's tests call it; the price functions work
// from raw sqrtPriceX96 values.
func TickToSqrtPriceX96(tick int) *big.Int {
	base := big.NewFloat(1.0001)
	prec := uint(256)
	ratio := new(big.Float).SetPrec(prec).SetInt64(1)

	exp := tick
	neg := exp < 0
	if neg {
		exp = -exp
	}
	b := new(big.Float).SetPrec(prec).Copy(base)
	for exp > 0 {
		if exp&1 == 1 {
			ratio.Mul(ratio, b)
		}
		b.Mul(b, b)
		exp >>= 1
	}
	if neg {
		one := new(big.Float).SetPrec(prec).SetInt64(1)
		ratio.Quo(one, ratio)
	}

	sqrtRatio := sqrtBigFloat(ratio, prec)
	scaled := new(big.Float).SetPrec(prec).Mul(sqrtRatio, new(big.Float).SetPrec(prec).SetInt(new(big.Int).Lsh(big.NewInt(1), 96)))

	result, _ := scaled.Int(nil)
	return result
}

// sqrtBigFloat computes sqrt(x) for a positive big.Float using
// Newton's method; math/big has no native Sqrt on the Go version the
// teacher's toolchain targets.
func sqrtBigFloat(x *big.Float, prec uint) *big.Float {
	if x.Sign() == 0 {
		return new(big.Float).SetPrec(prec)
	}
	guess := new(big.Float).SetPrec(prec).Copy(x)
	two := new(big.Float).SetPrec(prec).SetInt64(2)
	for i := 0; i < 64; i++ {
		next := new(big.Float).SetPrec(prec).Quo(x, guess)
		next.Add(next, guess)
		next.Quo(next, two)
		if next.Cmp(guess) == 0 {
			break
		}
		guess = next
	}
	return guess
}
