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
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/magma-foundation/magma/magma"
	"github.com/magma-foundation/magma/magma/vm"
)

// codeAnalysis holds the results of a single pass over a contract's byte code.
// For now this is the set of valid jump destinations, which are the JUMPDEST
// instructions that are not part of the data section of a PUSH instruction.
type codeAnalysis struct {
	jumpdests bitvec
}

// analyzeCode scans the given code and collects all valid jump destinations.
func analyzeCode(code []byte) *codeAnalysis {
	res := &codeAnalysis{jumpdests: newBitvec(len(code))}
	for i := 0; i < len(code); i++ {
		op := vm.OpCode(code[i])
		if op == vm.JUMPDEST {
			res.jumpdests.set(uint64(i))
		} else if vm.PUSH1 <= op && op <= vm.PUSH32 {
			// Skip the data section of the push instruction.
			i += int(op) - int(vm.PUSH1) + 1
		}
	}
	return res
}

// isJumpdest returns true if the given position is a valid jump destination.
func (a *codeAnalysis) isJumpdest(pos uint64) bool {
	return a.jumpdests.isSet(pos)
}

// bitvec is a bit vector covering one bit per byte of a contract's code.
type bitvec []byte

func newBitvec(size int) bitvec {
	return make(bitvec, size/8+1)
}

func (b bitvec) set(pos uint64) {
	b[pos/8] |= 1 << (pos % 8)
}

func (b bitvec) isSet(pos uint64) bool {
	if pos/8 >= uint64(len(b)) {
		return false
	}
	return b[pos/8]&(1<<(pos%8)) != 0
}

const (
	// maxCachedCodeLength is the maximum length of codes analysis results are
	// cached for. Longer codes are analyzed on-demand and the result is
	// discarded when no longer needed. The constant is aligned to the maximum
	// init-code size of EIP-3860, such that all deployed codes can be cached.
	maxCachedCodeLength = 2 * 24576

	// codeCacheCapacity is the default maximum number of code analysis
	// results to be retained in the analysis cache.
	codeCacheCapacity = 50_000
)

// analysisCache is an LRU cache of code analysis results keyed by code hash.
// It is safe for concurrent use.
type analysisCache struct {
	cache *lru.Cache[magma.Hash, *codeAnalysis]
}

func newAnalysisCache(capacity int) *analysisCache {
	if capacity <= 0 {
		capacity = codeCacheCapacity
	}
	cache, err := lru.New[magma.Hash, *codeAnalysis](capacity)
	if err != nil {
		// The only possible error is a non-positive capacity, which is
		// covered by the default above.
		panic(err)
	}
	return &analysisCache{cache: cache}
}

// getAnalysis obtains the analysis result for the given code. The hash is used
// as the cache key. If it is nil or the code is too long for the cache, the
// analysis is conducted on the fly without being cached.
func (c *analysisCache) getAnalysis(code []byte, hash *magma.Hash) *codeAnalysis {
	if hash == nil || len(code) > maxCachedCodeLength {
		return analyzeCode(code)
	}
	if res, found := c.cache.Get(*hash); found {
		return res
	}
	res := analyzeCode(code)
	c.cache.Add(*hash, res)
	return res
}
