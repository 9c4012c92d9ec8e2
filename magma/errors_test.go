// Copyright (c) 2025 Magma Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at magma.foundation/bsl11.
//
// Change Date: 2029-3-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package magma

import (
	"errors"
	"fmt"
	"testing"
)

func TestConstError_CanBeUsedAsConstant(t *testing.T) {
	const myError = ConstError("something went wrong")
	if myError.Error() != "something went wrong" {
		t.Errorf("unexpected message: %s", myError.Error())
	}
	if !errors.Is(myError, ConstError("something went wrong")) {
		t.Errorf("equal const errors should match with errors.Is")
	}
}

func TestConstError_WrappedErrorsCanBeIdentified(t *testing.T) {
	const myError = ConstError("something went wrong")
	wrapped := fmt.Errorf("outer context: %w", myError)
	if !errors.Is(wrapped, myError) {
		t.Errorf("wrapped const error should be identifiable with errors.Is")
	}
}
