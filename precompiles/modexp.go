// Copyright (c) 2025 Magma Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at magma.foundation/bsl11.
//
// Change Date: 2029-3-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package precompiles

import (
	"math"
	"math/big"
)

var (
	big1      = big.NewInt(1)
	big3      = big.NewInt(3)
	big4      = big.NewInt(4)
	big7      = big.NewInt(7)
	big8      = big.NewInt(8)
	big16     = big.NewInt(16)
	big20     = big.NewInt(20)
	big32     = big.NewInt(32)
	big64     = big.NewInt(64)
	big96     = big.NewInt(96)
	big480    = big.NewInt(480)
	big1024   = big.NewInt(1024)
	big3072   = big.NewInt(3072)
	big199680 = big.NewInt(199680)
)

// bigModExp implements arbitrary-precision modular exponentiation. The
// eip2565 flag selects the repriced gas formula active since Berlin.
type bigModExp struct {
	eip2565 bool
}

// modExpMultComplexity computes the multiplication complexity of the original
// pricing formula, interpolating a quadratic cost from the size of the
// largest operand.
func modExpMultComplexity(x *big.Int) *big.Int {
	switch {
	case x.Cmp(big64) <= 0:
		x.Mul(x, x)
	case x.Cmp(big1024) <= 0:
		// x^2/4 + 96*x - 3072
		x = new(big.Int).Add(
			new(big.Int).Div(new(big.Int).Mul(x, x), big4),
			new(big.Int).Sub(new(big.Int).Mul(big96, x), big3072),
		)
	default:
		// x^2/16 + 480*x - 199680
		x = new(big.Int).Add(
			new(big.Int).Div(new(big.Int).Mul(x, x), big16),
			new(big.Int).Sub(new(big.Int).Mul(big480, x), big199680),
		)
	}
	return x
}

func (c *bigModExp) RequiredGas(input []byte) uint64 {
	var (
		baseLen = new(big.Int).SetBytes(getData(input, 0, 32))
		expLen  = new(big.Int).SetBytes(getData(input, 32, 32))
		modLen  = new(big.Int).SetBytes(getData(input, 64, 32))
	)
	if len(input) > 96 {
		input = input[96:]
	} else {
		input = input[:0]
	}

	// Retrieve the head 32 bytes of the exponent for the adjusted length.
	var expHead *big.Int
	if big.NewInt(int64(len(input))).Cmp(baseLen) <= 0 {
		expHead = new(big.Int)
	} else if expLen.Cmp(big32) > 0 {
		expHead = new(big.Int).SetBytes(getData(input, baseLen.Uint64(), 32))
	} else {
		expHead = new(big.Int).SetBytes(getData(input, baseLen.Uint64(), expLen.Uint64()))
	}

	var msb int
	if bitLength := expHead.BitLen(); bitLength > 0 {
		msb = bitLength - 1
	}
	adjExpLen := new(big.Int)
	if expLen.Cmp(big32) > 0 {
		adjExpLen.Sub(expLen, big32)
		adjExpLen.Mul(big8, adjExpLen)
	}
	adjExpLen.Add(adjExpLen, big.NewInt(int64(msb)))

	gas := new(big.Int)
	if baseLen.Cmp(modLen) > 0 {
		gas.Set(baseLen)
	} else {
		gas.Set(modLen)
	}
	if c.eip2565 {
		// words(max(baseLen, modLen))^2 * max(adjExpLen, 1) / 3, with a
		// floor of 200 gas
		gas.Add(gas, big7)
		gas.Div(gas, big8)
		gas.Mul(gas, gas)
		if adjExpLen.Cmp(big1) > 0 {
			gas.Mul(gas, adjExpLen)
		}
		gas.Div(gas, big3)
		if gas.BitLen() > 64 {
			return math.MaxUint64
		}
		if gas.Uint64() < ModExpMinGas {
			return ModExpMinGas
		}
		return gas.Uint64()
	}
	gas = modExpMultComplexity(gas)
	if adjExpLen.Cmp(big1) > 0 {
		gas.Mul(gas, adjExpLen)
	}
	gas.Div(gas, big20)
	if gas.BitLen() > 64 {
		return math.MaxUint64
	}
	return gas.Uint64()
}

func (c *bigModExp) Run(input []byte) ([]byte, error) {
	var (
		baseLen = new(big.Int).SetBytes(getData(input, 0, 32)).Uint64()
		expLen  = new(big.Int).SetBytes(getData(input, 32, 32)).Uint64()
		modLen  = new(big.Int).SetBytes(getData(input, 64, 32)).Uint64()
	)
	if len(input) > 96 {
		input = input[96:]
	} else {
		input = input[:0]
	}

	// A zero-length modulus yields an empty output.
	if baseLen == 0 && modLen == 0 {
		return []byte{}, nil
	}

	var (
		base = new(big.Int).SetBytes(getData(input, 0, baseLen))
		exp  = new(big.Int).SetBytes(getData(input, baseLen, expLen))
		mod  = new(big.Int).SetBytes(getData(input, baseLen+expLen, modLen))
	)
	if mod.BitLen() == 0 {
		// Modulo 0 is undefined, the result is defined to be zero.
		return leftPad([]byte{}, int(modLen)), nil
	}
	return leftPad(base.Exp(base, exp, mod).Bytes(), int(modLen)), nil
}
