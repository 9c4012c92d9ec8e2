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
	"testing"
)

func TestPointEvaluation_GasIsInputIndependent(t *testing.T) {
	contract := pointEvaluation{}
	if got := contract.RequiredGas(nil); got != PointEvaluationGas {
		t.Errorf("unexpected gas, wanted %d, got %d", PointEvaluationGas, got)
	}
	if got := contract.RequiredGas(make([]byte, 192)); got != PointEvaluationGas {
		t.Errorf("unexpected gas, wanted %d, got %d", PointEvaluationGas, got)
	}
}

func TestPointEvaluation_RejectsMalformedInput(t *testing.T) {
	for _, size := range []int{0, 191, 193} {
		if _, err := (&pointEvaluation{}).Run(make([]byte, size)); err == nil {
			t.Errorf("input of size %d should be rejected", size)
		}
	}
}

func TestPointEvaluation_RejectsMismatchedVersionedHash(t *testing.T) {
	// The versioned hash of the all-zero commitment is not all zeroes.
	input := make([]byte, pointEvaluationInputSize)
	if _, err := (&pointEvaluation{}).Run(input); err != errMismatchedVersionHash {
		t.Errorf("unexpected error for a mismatched hash: %v", err)
	}
}

func TestPointEvaluation_ReturnValueEncodesTheFieldParameters(t *testing.T) {
	if len(pointEvaluationReturnValue) != 64 {
		t.Fatalf("unexpected return value size %d", len(pointEvaluationReturnValue))
	}
	// 4096 field elements per blob, encoded in the first 32-byte word.
	if pointEvaluationReturnValue[30] != 0x10 {
		t.Errorf("unexpected field element count encoding %x", pointEvaluationReturnValue[:32])
	}
}
