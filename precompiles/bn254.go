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
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
)

var (
	errInvalidBn254Point       = errors.New("invalid bn254 curve point")
	errInvalidBn254InputLength = errors.New("invalid input length")

	// The big-endian encoding of a true pairing check result.
	bn254True = [32]byte{31: 1}
)

// unmarshalG1 decodes a G1 point from its 64-byte big-endian coordinate
// encoding. The point at infinity is encoded as all zeroes.
func unmarshalG1(data []byte, point *bn254.G1Affine) error {
	if len(data) != 64 {
		return errInvalidBn254InputLength
	}
	if err := point.X.SetBytesCanonical(data[0:32]); err != nil {
		return errInvalidBn254Point
	}
	if err := point.Y.SetBytesCanonical(data[32:64]); err != nil {
		return errInvalidBn254Point
	}
	if !point.IsOnCurve() {
		return errInvalidBn254Point
	}
	return nil
}

// unmarshalG2 decodes a G2 point from its 128-byte encoding. Each extension
// field coordinate is encoded with its imaginary part first.
func unmarshalG2(data []byte, point *bn254.G2Affine) error {
	if len(data) != 128 {
		return errInvalidBn254InputLength
	}
	if err := point.X.A1.SetBytesCanonical(data[0:32]); err != nil {
		return errInvalidBn254Point
	}
	if err := point.X.A0.SetBytesCanonical(data[32:64]); err != nil {
		return errInvalidBn254Point
	}
	if err := point.Y.A1.SetBytesCanonical(data[64:96]); err != nil {
		return errInvalidBn254Point
	}
	if err := point.Y.A0.SetBytesCanonical(data[96:128]); err != nil {
		return errInvalidBn254Point
	}
	if !point.IsOnCurve() {
		return errInvalidBn254Point
	}
	// Unlike G1, the G2 curve has a non-trivial cofactor.
	if !point.IsInSubGroup() {
		return errInvalidBn254Point
	}
	return nil
}

func marshalG1(point *bn254.G1Affine) []byte {
	output := make([]byte, 64)
	x := point.X.Bytes()
	y := point.Y.Bytes()
	copy(output[0:32], x[:])
	copy(output[32:64], y[:])
	return output
}

// ---------------------------------- 0x06 -----------------------------------

// bn254Add adds two G1 curve points.
type bn254Add struct{}

func (c *bn254Add) RequiredGas(input []byte) uint64 {
	return Bn254AddGas
}

func (c *bn254Add) Run(input []byte) ([]byte, error) {
	var x, y bn254.G1Affine
	if err := unmarshalG1(getData(input, 0, 64), &x); err != nil {
		return nil, err
	}
	if err := unmarshalG1(getData(input, 64, 64), &y); err != nil {
		return nil, err
	}
	return marshalG1(x.Add(&x, &y)), nil
}

// ---------------------------------- 0x07 -----------------------------------

// bn254ScalarMul multiplies a G1 curve point by a scalar.
type bn254ScalarMul struct{}

func (c *bn254ScalarMul) RequiredGas(input []byte) uint64 {
	return Bn254ScalarMulGas
}

func (c *bn254ScalarMul) Run(input []byte) ([]byte, error) {
	var point bn254.G1Affine
	if err := unmarshalG1(getData(input, 0, 64), &point); err != nil {
		return nil, err
	}
	scalar := new(big.Int).SetBytes(getData(input, 64, 32))
	return marshalG1(point.ScalarMultiplication(&point, scalar)), nil
}

// ---------------------------------- 0x08 -----------------------------------

// bn254Pairing checks whether the product of the pairings of the given point
// pairs is the multiplicative identity of the target field.
type bn254Pairing struct{}

func (c *bn254Pairing) RequiredGas(input []byte) uint64 {
	return Bn254PairingBaseGas + uint64(len(input)/192)*Bn254PairingPerPointGas
}

func (c *bn254Pairing) Run(input []byte) ([]byte, error) {
	// The input is a sequence of point pairs, each a 64-byte G1 point
	// followed by a 128-byte G2 point. An empty product is the identity.
	if len(input) == 0 {
		return bn254True[:], nil
	}
	if len(input)%192 != 0 {
		return nil, errInvalidBn254InputLength
	}
	var (
		as = make([]bn254.G1Affine, len(input)/192)
		bs = make([]bn254.G2Affine, len(input)/192)
	)
	for i := 0; i < len(input); i += 192 {
		if err := unmarshalG1(input[i:i+64], &as[i/192]); err != nil {
			return nil, err
		}
		if err := unmarshalG2(input[i+64:i+192], &bs[i/192]); err != nil {
			return nil, err
		}
	}
	ok, err := bn254.PairingCheck(as, bs)
	if err != nil {
		return nil, err
	}
	if ok {
		return bn254True[:], nil
	}
	return make([]byte, 32), nil
}
