// Copyright (c) 2025 Magma Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at magma.foundation/bsl11.
//
// Change Date: 2029-3-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cvm

import "github.com/magma-foundation/magma/magma"

const (
	errGasUintOverflow        = magma.ConstError("gas uint64 overflow")
	errInvalidJump            = magma.ConstError("invalid jump destination")
	errInvalidOpCode          = magma.ConstError("invalid instruction")
	errInvalidRevision        = magma.ConstError("instruction not available in revision")
	errInitCodeTooLarge       = magma.ConstError("init code larger than allowed")
	errOutOfGas               = magma.ConstError("out of gas")
	errOverflow               = magma.ConstError("overflow")
	errReturnDataOutOfBounds  = magma.ConstError("return data out of bounds")
	errStackOverflow          = magma.ConstError("stack overflow")
	errStackUnderflow         = magma.ConstError("stack underflow")
	errStaticContextViolation = magma.ConstError("write protection in static context")
)
