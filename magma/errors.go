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

// ConstError is an error type for constant error values. Errors of this kind
// can be compared using errors.Is and can be used in switch statements.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}
