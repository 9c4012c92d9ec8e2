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

import (
	"hash"
	"sync"

	"github.com/magma-foundation/magma/magma"
	"golang.org/x/crypto/sha3"
)

// keccakState wraps sha3.state. In addition to the usual hash methods, it
// also supports Read to get a variable amount of data from the hash state.
// Read is faster than Sum because it doesn't copy the internal state.
type keccakState interface {
	hash.Hash
	Read([]byte) (int, error)
}

var keccakHasherPool = sync.Pool{
	New: func() any {
		return sha3.NewLegacyKeccak256().(keccakState)
	},
}

// Keccak256 computes the Keccak-256 hash of the given data.
func Keccak256(data []byte) magma.Hash {
	hasher := keccakHasherPool.Get().(keccakState)
	defer keccakHasherPool.Put(hasher)
	hasher.Reset()
	hasher.Write(data)
	var res magma.Hash
	hasher.Read(res[:])
	return res
}
