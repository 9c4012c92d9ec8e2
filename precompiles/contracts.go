// Copyright (c) 2025 Magma Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at magma.foundation/bsl11.
//
// Change Date: 2029-3-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package precompiles provides the built-in contracts occupying the reserved
// low address range and the revision-dependent dispatch tables selecting
// which of them are active.
package precompiles

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"

	"github.com/magma-foundation/magma/crypto/blake2b"
	"github.com/magma-foundation/magma/magma"
)

// Contract is the interface implemented by every built-in contract. The gas
// required for an invocation only depends on the input, and is charged in
// full before Run is invoked.
type Contract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

// Gas costs of the built-in contracts.
const (
	EcrecoverGas        uint64 = 3000
	Sha256BaseGas       uint64 = 60
	Sha256PerWordGas    uint64 = 12
	Ripemd160BaseGas    uint64 = 600
	Ripemd160PerWordGas uint64 = 120
	IdentityBaseGas     uint64 = 15
	IdentityPerWordGas  uint64 = 3

	Bn254AddGas             uint64 = 150
	Bn254ScalarMulGas       uint64 = 6000
	Bn254PairingBaseGas     uint64 = 45000
	Bn254PairingPerPointGas uint64 = 34000

	ModExpQuadCoeffDiv uint64 = 3
	ModExpMinGas       uint64 = 200

	PointEvaluationGas uint64 = 50000
)

// contractsIstanbul contains the contracts active since the Istanbul
// revision.
var contractsIstanbul = map[magma.Address]Contract{
	addr(0x01): &ecrecover{},
	addr(0x02): &sha256hash{},
	addr(0x03): &ripemd160hash{},
	addr(0x04): &dataCopy{},
	addr(0x05): &bigModExp{eip2565: false},
	addr(0x06): &bn254Add{},
	addr(0x07): &bn254ScalarMul{},
	addr(0x08): &bn254Pairing{},
	addr(0x09): &blake2F{},
}

// contractsBerlin contains the contracts active since the Berlin revision,
// which reprices modular exponentiation.
var contractsBerlin = map[magma.Address]Contract{
	addr(0x01): &ecrecover{},
	addr(0x02): &sha256hash{},
	addr(0x03): &ripemd160hash{},
	addr(0x04): &dataCopy{},
	addr(0x05): &bigModExp{eip2565: true},
	addr(0x06): &bn254Add{},
	addr(0x07): &bn254ScalarMul{},
	addr(0x08): &bn254Pairing{},
	addr(0x09): &blake2F{},
}

// contractsCancun contains the contracts active since the Cancun revision,
// which adds the KZG point evaluation contract.
var contractsCancun = map[magma.Address]Contract{
	addr(0x01): &ecrecover{},
	addr(0x02): &sha256hash{},
	addr(0x03): &ripemd160hash{},
	addr(0x04): &dataCopy{},
	addr(0x05): &bigModExp{eip2565: true},
	addr(0x06): &bn254Add{},
	addr(0x07): &bn254ScalarMul{},
	addr(0x08): &bn254Pairing{},
	addr(0x09): &blake2F{},
	addr(0x0a): &pointEvaluation{},
}

func addr(index byte) magma.Address {
	return magma.Address{19: index}
}

func getContracts(revision magma.Revision) map[magma.Address]Contract {
	switch {
	case revision >= magma.R13_Cancun:
		return contractsCancun
	case revision >= magma.R09_Berlin:
		return contractsBerlin
	default:
		return contractsIstanbul
	}
}

// IsPrecompile returns whether the given address hosts a built-in contract
// in the given revision.
func IsPrecompile(address magma.Address, revision magma.Revision) bool {
	_, found := getContracts(revision)[address]
	return found
}

// Run executes the built-in contract at the given address, if there is one.
// The second return value indicates whether the address hosts a built-in
// contract in the given revision. A failing execution consumes all gas.
func Run(
	revision magma.Revision,
	address magma.Address,
	input []byte,
	gas magma.Gas,
) (magma.CallResult, bool) {
	contract, found := getContracts(revision)[address]
	if !found {
		return magma.CallResult{}, false
	}
	cost := contract.RequiredGas(input)
	if cost > uint64(gas) {
		return magma.CallResult{Success: false}, true
	}
	output, err := contract.Run(input)
	if err != nil {
		return magma.CallResult{Success: false}, true
	}
	return magma.CallResult{
		Output:  output,
		GasLeft: gas - magma.Gas(cost),
		Success: true,
	}, true
}

// getData returns a slice from the data based on the start and size and pads
// up to size with zero bytes. This function is overflow safe.
func getData(data []byte, start uint64, size uint64) []byte {
	length := uint64(len(data))
	if start > length {
		start = length
	}
	end := start + size
	if end > length {
		end = length
	}
	return rightPad(data[start:end], int(size))
}

func rightPad(data []byte, size int) []byte {
	if len(data) >= size {
		return data
	}
	padded := make([]byte, size)
	copy(padded, data)
	return padded
}

func leftPad(data []byte, size int) []byte {
	if len(data) >= size {
		return data
	}
	padded := make([]byte, size)
	copy(padded[size-len(data):], data)
	return padded
}

func allZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

func keccak256(data []byte) []byte {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	return hasher.Sum(nil)
}

// ---------------------------------- 0x01 -----------------------------------

// ecrecover recovers the address belonging to the public key that produced
// a given secp256k1 signature. Invalid inputs produce an empty output
// instead of an execution failure.
type ecrecover struct{}

func (c *ecrecover) RequiredGas(input []byte) uint64 {
	return EcrecoverGas
}

func (c *ecrecover) Run(input []byte) ([]byte, error) {
	const inputLength = 128
	input = rightPad(input, inputLength)

	// The input is (hash, v, r, s), each padded to 32 bytes. The recovery
	// identifier v must be 27 or 28, encoded as a 256-bit big-endian word.
	r := new(big.Int).SetBytes(input[64:96])
	s := new(big.Int).SetBytes(input[96:128])
	v := input[63] - 27
	if !allZero(input[32:63]) || !validateSignatureValues(v, r, s) {
		return nil, nil
	}

	// The compact signature format expects the recovery identifier first.
	sig := make([]byte, 65)
	sig[0] = v + 27
	copy(sig[1:], input[64:128])

	publicKey, _, err := ecdsa.RecoverCompact(sig, input[:32])
	if err != nil {
		return nil, nil
	}

	// The first byte of the serialized key is the uncompressed-form marker.
	serialized := publicKey.SerializeUncompressed()
	return leftPad(keccak256(serialized[1:])[12:], 32), nil
}

// validateSignatureValues checks whether the signature components are in
// their valid ranges. Signatures with a high s value are accepted, the
// malleability restriction only applies to transaction signatures.
func validateSignatureValues(v byte, r, s *big.Int) bool {
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return false
	}
	curveOrder := secp256k1.S256().N
	return r.Cmp(curveOrder) < 0 && s.Cmp(curveOrder) < 0 && (v == 0 || v == 1)
}

// ---------------------------------- 0x02 -----------------------------------

// sha256hash computes the SHA-256 hash of the input.
type sha256hash struct{}

func (c *sha256hash) RequiredGas(input []byte) uint64 {
	return uint64(len(input)+31)/32*Sha256PerWordGas + Sha256BaseGas
}

func (c *sha256hash) Run(input []byte) ([]byte, error) {
	hash := sha256.Sum256(input)
	return hash[:], nil
}

// ---------------------------------- 0x03 -----------------------------------

// ripemd160hash computes the RIPEMD-160 hash of the input, left-padded to
// a 32-byte word.
type ripemd160hash struct{}

func (c *ripemd160hash) RequiredGas(input []byte) uint64 {
	return uint64(len(input)+31)/32*Ripemd160PerWordGas + Ripemd160BaseGas
}

func (c *ripemd160hash) Run(input []byte) ([]byte, error) {
	hasher := ripemd160.New()
	hasher.Write(input)
	return leftPad(hasher.Sum(nil), 32), nil
}

// ---------------------------------- 0x04 -----------------------------------

// dataCopy returns a copy of the input.
type dataCopy struct{}

func (c *dataCopy) RequiredGas(input []byte) uint64 {
	return uint64(len(input)+31)/32*IdentityPerWordGas + IdentityBaseGas
}

func (c *dataCopy) Run(input []byte) ([]byte, error) {
	output := make([]byte, len(input))
	copy(output, input)
	return output, nil
}

// ---------------------------------- 0x09 -----------------------------------

const blake2FInputLength = 213

var errBlake2FInvalidInputLength = errors.New("invalid input length")
var errBlake2FInvalidFinalFlag = errors.New("invalid final flag")

// blake2F exposes the BLAKE2b compression function with a caller-chosen
// number of rounds.
type blake2F struct{}

func (c *blake2F) RequiredGas(input []byte) uint64 {
	// Malformed inputs are free and rejected during execution.
	if len(input) != blake2FInputLength {
		return 0
	}
	return uint64(binary.BigEndian.Uint32(input[0:4]))
}

func (c *blake2F) Run(input []byte) ([]byte, error) {
	if len(input) != blake2FInputLength {
		return nil, errBlake2FInvalidInputLength
	}
	if input[212] != 0 && input[212] != 1 {
		return nil, errBlake2FInvalidFinalFlag
	}

	var (
		rounds = binary.BigEndian.Uint32(input[0:4])
		final  = input[212] == 1

		h [8]uint64
		m [16]uint64
		t [2]uint64
	)
	for i := 0; i < 8; i++ {
		offset := 4 + i*8
		h[i] = binary.LittleEndian.Uint64(input[offset : offset+8])
	}
	for i := 0; i < 16; i++ {
		offset := 68 + i*8
		m[i] = binary.LittleEndian.Uint64(input[offset : offset+8])
	}
	t[0] = binary.LittleEndian.Uint64(input[196:204])
	t[1] = binary.LittleEndian.Uint64(input[204:212])

	blake2b.F(&h, m, t, final, rounds)

	output := make([]byte, 64)
	for i := 0; i < 8; i++ {
		offset := i * 8
		binary.LittleEndian.PutUint64(output[offset:offset+8], h[i])
	}
	return output, nil
}
