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

	"github.com/holiman/uint256"
)

func TestStack_PushAndPopValues(t *testing.T) {
	s := NewStack()
	defer ReturnStack(s)

	s.push(uint256.NewInt(1))
	s.push(uint256.NewInt(2))
	s.push(uint256.NewInt(3))

	if got, want := s.len(), 3; got != want {
		t.Fatalf("unexpected stack size, wanted %d, got %d", want, got)
	}
	for _, want := range []uint64{3, 2, 1} {
		if got := s.pop().Uint64(); got != want {
			t.Errorf("unexpected value, wanted %d, got %d", want, got)
		}
	}
	if got := s.len(); got != 0 {
		t.Errorf("stack should be empty, has %d elements", got)
	}
}

func TestStack_PushUndefinedReturnsWritableTopElement(t *testing.T) {
	s := NewStack()
	defer ReturnStack(s)

	s.pushUndefined().SetUint64(42)
	if got := s.peek().Uint64(); got != 42 {
		t.Errorf("unexpected top element, wanted 42, got %d", got)
	}
}

func TestStack_SwapExchangesElements(t *testing.T) {
	s := NewStack()
	defer ReturnStack(s)

	s.push(uint256.NewInt(1))
	s.push(uint256.NewInt(2))
	s.push(uint256.NewInt(3))

	s.swap(2) // corresponds to SWAP2

	if got := s.peek().Uint64(); got != 1 {
		t.Errorf("unexpected top element after swap, wanted 1, got %d", got)
	}
	if got := s.get(0).Uint64(); got != 3 {
		t.Errorf("unexpected bottom element after swap, wanted 3, got %d", got)
	}
}

func TestStack_DupCopiesElements(t *testing.T) {
	s := NewStack()
	defer ReturnStack(s)

	s.push(uint256.NewInt(1))
	s.push(uint256.NewInt(2))

	s.dup(1) // corresponds to DUP2

	if got, want := s.len(), 3; got != want {
		t.Fatalf("unexpected stack size, wanted %d, got %d", want, got)
	}
	if got := s.peek().Uint64(); got != 1 {
		t.Errorf("unexpected duplicated element, wanted 1, got %d", got)
	}
}

func TestStack_PeekNReachesIntoTheStack(t *testing.T) {
	s := NewStack()
	defer ReturnStack(s)

	for i := 0; i < 5; i++ {
		s.push(uint256.NewInt(uint64(i)))
	}
	for i := 0; i < 5; i++ {
		if got, want := s.peekN(i).Uint64(), uint64(4-i); got != want {
			t.Errorf("unexpected element at depth %d, wanted %d, got %d", i, want, got)
		}
	}
}

func TestStack_ReturnedStacksAreEmptyWhenReused(t *testing.T) {
	s := NewStack()
	s.push(uint256.NewInt(12))
	ReturnStack(s)

	s = NewStack()
	defer ReturnStack(s)
	if got := s.len(); got != 0 {
		t.Errorf("reused stack should be empty, has %d elements", got)
	}
}
