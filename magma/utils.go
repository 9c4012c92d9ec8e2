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

import "math"

// GetStorageStatus obtains the status code to be returned by
// RunContext implementation when mutating a storage slot with
// the given original (=committed), current, and new value.
func GetStorageStatus(original, current, new Word) StorageStatus {
	var zero = Word{}

	if current == new {
		return StorageAssigned
	}

	// 0 -> 0 -> Z
	if original == zero && current == zero && new != zero {
		return StorageAdded
	}

	// X -> X -> 0
	if original != zero && current == original && new == zero {
		return StorageDeleted
	}

	// X -> X -> Z
	if original != zero && current == original && new != zero && new != original {
		return StorageModified
	}

	// X -> 0 -> Z
	if original != zero && current == zero && new != original && new != zero {
		return StorageDeletedAdded
	}

	// X -> Y -> 0
	if original != zero && current != original && current != zero && new == zero {
		return StorageModifiedDeleted
	}

	// X -> 0 -> X
	if original != zero && current == zero && new == original {
		return StorageDeletedRestored
	}

	// 0 -> Y -> 0
	if original == zero && current != zero && new == zero {
		return StorageAddedDeleted
	}

	// X -> Y -> X
	if original != zero && current != original && current != zero && new == original {
		return StorageModifiedRestored
	}

	// Default
	return StorageAssigned
}

// SizeInWords returns the number of 32-byte words required to store the given
// number of bytes, checking that size+32 does not overflow uint64.
func SizeInWords(size uint64) uint64 {
	if size > math.MaxUint64-31 {
		return math.MaxUint64/32 + 1
	}
	return (size + 31) / 32
}
