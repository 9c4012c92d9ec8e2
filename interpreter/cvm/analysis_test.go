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
	"testing"

	"github.com/magma-foundation/magma/magma"
	"github.com/magma-foundation/magma/magma/vm"
)

func TestAnalyzeCode_FindsJumpdests(t *testing.T) {
	code := []byte{
		byte(vm.PUSH1), 4,
		byte(vm.JUMP),
		byte(vm.STOP),
		byte(vm.JUMPDEST),
		byte(vm.STOP),
	}
	analysis := analyzeCode(code)
	for pos, want := range map[uint64]bool{0: false, 1: false, 2: false, 3: false, 4: true, 5: false} {
		if got := analysis.isJumpdest(pos); got != want {
			t.Errorf("unexpected jumpdest result at position %d, wanted %t, got %t", pos, want, got)
		}
	}
}

func TestAnalyzeCode_IgnoresJumpdestsInPushData(t *testing.T) {
	code := []byte{
		byte(vm.PUSH2), byte(vm.JUMPDEST), byte(vm.JUMPDEST),
		byte(vm.JUMPDEST),
	}
	analysis := analyzeCode(code)
	if analysis.isJumpdest(1) || analysis.isJumpdest(2) {
		t.Errorf("jumpdest byte in push data should not be a valid destination")
	}
	if !analysis.isJumpdest(3) {
		t.Errorf("jumpdest after push data should be a valid destination")
	}
}

func TestAnalyzeCode_PushDataMayExceedCodeEnd(t *testing.T) {
	code := []byte{byte(vm.PUSH32), 1, 2, 3}
	analysis := analyzeCode(code)
	for pos := uint64(0); pos < 40; pos++ {
		if analysis.isJumpdest(pos) {
			t.Errorf("unexpected jumpdest at position %d", pos)
		}
	}
}

func TestAnalysisCache_ResultsAreCachedByHash(t *testing.T) {
	cache := newAnalysisCache(10)
	code := []byte{byte(vm.JUMPDEST)}
	hash := magma.Hash{1}

	first := cache.getAnalysis(code, &hash)
	second := cache.getAnalysis(code, &hash)
	if first != second {
		t.Errorf("expected cached analysis to be reused")
	}
}

func TestAnalysisCache_NilHashSkipsCaching(t *testing.T) {
	cache := newAnalysisCache(10)
	code := []byte{byte(vm.JUMPDEST)}

	first := cache.getAnalysis(code, nil)
	second := cache.getAnalysis(code, nil)
	if first == second {
		t.Errorf("analysis without code hash should not be cached")
	}
}

func TestAnalysisCache_LongCodesAreNotCached(t *testing.T) {
	cache := newAnalysisCache(10)
	code := make([]byte, maxCachedCodeLength+1)
	hash := magma.Hash{2}

	first := cache.getAnalysis(code, &hash)
	second := cache.getAnalysis(code, &hash)
	if first == second {
		t.Errorf("oversized code should not be cached")
	}
}
