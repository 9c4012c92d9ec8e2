// Copyright (c) 2025 Magma Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at magma.foundation/bsl11.
//
// Change Date: 2029-3-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package vm

import (
	"strings"
	"testing"
)

func TestOpCode_WidthIncludesPushData(t *testing.T) {
	for i := 0; i <= 31; i++ {
		op := PUSH1 + OpCode(i)
		if got, want := op.Width(), i+2; got != want {
			t.Errorf("unexpected width for %v, wanted %d, got %d", op, want, got)
		}
	}
	for _, op := range []OpCode{STOP, PUSH0, ADD, JUMPDEST, SELFDESTRUCT} {
		if got := op.Width(); got != 1 {
			t.Errorf("unexpected width for %v, wanted 1, got %d", op, got)
		}
	}
}

func TestOpCode_StringNamesAreUnique(t *testing.T) {
	seen := map[string]OpCode{}
	for i := 0; i < 256; i++ {
		op := OpCode(i)
		if !IsValid(op) {
			continue
		}
		name := op.String()
		if other, found := seen[name]; found {
			t.Errorf("name %s used by both %d and %d", name, op, other)
		}
		seen[name] = op
	}
}

func TestOpCode_InvalidCodesHaveGenericName(t *testing.T) {
	for _, op := range []OpCode{0x0C, 0x1E, 0x21, 0xA5, 0xEF} {
		if !strings.HasPrefix(op.String(), "OpCode(") {
			t.Errorf("expected generic name for %d, got %s", op, op.String())
		}
		if IsValid(op) {
			t.Errorf("op code %d should not be valid", op)
		}
	}
}

func TestIsValid_InvalidInstructionIsNotValid(t *testing.T) {
	if IsValid(INVALID) {
		t.Errorf("the INVALID instruction should not be a valid operation")
	}
}

func TestValidOpCodesNoPush_ContainsNoPushOperations(t *testing.T) {
	for _, op := range ValidOpCodesNoPush() {
		if PUSH0 <= op && op <= PUSH32 {
			t.Errorf("unexpected push operation %v", op)
		}
		if !IsValid(op) {
			t.Errorf("unexpected invalid operation %v", op)
		}
	}
}
