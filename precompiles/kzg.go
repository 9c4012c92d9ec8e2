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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	gokzg4844 "github.com/crate-crypto/go-kzg-4844"
)

const (
	blobCommitmentVersion    = 0x01
	pointEvaluationInputSize = 192
)

// pointEvaluationReturnValue is the number of field elements per blob and
// the BLS12-381 scalar field modulus, each as a 32-byte big-endian word.
var pointEvaluationReturnValue, _ = hex.DecodeString(
	"0000000000000000000000000000000000000000000000000000000000001000" +
		"73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001")

var (
	errInvalidBlobProofInput = errors.New("invalid point evaluation input")
	errMismatchedVersionHash = errors.New("mismatched versioned hash")

	kzgContextOnce sync.Once
	kzgContext     *gokzg4844.Context
)

// getKzgContext lazily loads the embedded trusted setup. Loading is deferred
// since it is too expensive to pay for on package initialization.
func getKzgContext() *gokzg4844.Context {
	kzgContextOnce.Do(func() {
		context, err := gokzg4844.NewContext4096Secure()
		if err != nil {
			panic("failed to load the KZG trusted setup: " + err.Error())
		}
		kzgContext = context
	})
	return kzgContext
}

// ---------------------------------- 0x0a -----------------------------------

// pointEvaluation verifies that a blob committed to by a KZG commitment
// evaluates to a claimed value at a given point.
type pointEvaluation struct{}

func (c *pointEvaluation) RequiredGas(input []byte) uint64 {
	return PointEvaluationGas
}

func (c *pointEvaluation) Run(input []byte) ([]byte, error) {
	// The input is the versioned hash of the commitment, the evaluation
	// point z, the claimed value y, the commitment, and the proof.
	if len(input) != pointEvaluationInputSize {
		return nil, errInvalidBlobProofInput
	}

	var (
		versionedHash [32]byte
		z, y          gokzg4844.Scalar
		commitment    gokzg4844.KZGCommitment
		proof         gokzg4844.KZGProof
	)
	copy(versionedHash[:], input[0:32])
	copy(z[:], input[32:64])
	copy(y[:], input[64:96])
	copy(commitment[:], input[96:144])
	copy(proof[:], input[144:192])

	if commitmentToVersionedHash(commitment) != versionedHash {
		return nil, errMismatchedVersionHash
	}
	if err := getKzgContext().VerifyKZGProof(commitment, z, y, proof); err != nil {
		return nil, err
	}
	return pointEvaluationReturnValue, nil
}

// commitmentToVersionedHash hashes a KZG commitment and tags the result with
// the commitment scheme version.
func commitmentToVersionedHash(commitment gokzg4844.KZGCommitment) [32]byte {
	hash := sha256.Sum256(commitment[:])
	hash[0] = blobCommitmentVersion
	return hash
}
