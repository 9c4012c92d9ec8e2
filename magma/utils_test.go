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
	"math"
	"testing"
)

func TestGetStorageStatus_CoversAllTransitions(t *testing.T) {
	x := Word{31: 1}
	y := Word{31: 2}
	z := Word{31: 3}
	o := Word{}

	tests := []struct {
		original, current, new Word
		want                   StorageStatus
	}{
		{o, o, o, StorageAssigned},
		{x, x, x, StorageAssigned},
		{o, o, z, StorageAdded},
		{x, x, o, StorageDeleted},
		{x, x, z, StorageModified},
		{x, o, z, StorageDeletedAdded},
		{x, y, o, StorageModifiedDeleted},
		{x, o, x, StorageDeletedRestored},
		{o, y, o, StorageAddedDeleted},
		{x, y, x, StorageModifiedRestored},
		{o, y, z, StorageAssigned},
		{x, y, z, StorageAssigned},
	}

	for _, test := range tests {
		got := GetStorageStatus(test.original, test.current, test.new)
		if got != test.want {
			t.Errorf("unexpected status for %v->%v->%v: wanted %v, got %v",
				test.original, test.current, test.new, test.want, got)
		}
	}
}

func TestSizeInWords_RoundsUpToFullWords(t *testing.T) {
	tests := []struct {
		size, want uint64
	}{
		{0, 0},
		{1, 1},
		{31, 1},
		{32, 1},
		{33, 2},
		{64, 2},
		{65, 3},
	}
	for _, test := range tests {
		if got := SizeInWords(test.size); got != test.want {
			t.Errorf("unexpected word count for size %d: wanted %d, got %d", test.size, test.want, got)
		}
	}
}

func TestSizeInWords_HandlesOverflow(t *testing.T) {
	want := uint64(math.MaxUint64)/32 + 1
	if got := SizeInWords(math.MaxUint64); got != want {
		t.Errorf("unexpected word count, wanted %d, got %d", want, got)
	}
	if got := SizeInWords(math.MaxUint64 - 30); got != want {
		t.Errorf("unexpected word count, wanted %d, got %d", want, got)
	}
}
