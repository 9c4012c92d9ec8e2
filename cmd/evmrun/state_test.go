// Copyright (c) 2025 Magma Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at magma.foundation/bsl11.
//
// Change Date: 2029-3-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"testing"

	"github.com/magma-foundation/magma/magma"
)

func TestInMemoryState_SnapshotsCanBeRestored(t *testing.T) {
	state := newInMemoryState()
	address := magma.Address{1}

	state.SetBalance(address, magma.NewValue(10))
	state.SetStorage(address, magma.Key{1}, magma.Word{1})

	snapshot := state.CreateSnapshot()
	state.SetBalance(address, magma.NewValue(20))
	state.SetStorage(address, magma.Key{1}, magma.Word{2})
	state.EmitLog(magma.Log{Address: address})

	state.RestoreSnapshot(snapshot)

	if got := state.GetBalance(address); got != magma.NewValue(10) {
		t.Errorf("balance was not restored, got %v", got)
	}
	if got := state.GetStorage(address, magma.Key{1}); got != (magma.Word{1}) {
		t.Errorf("storage was not restored, got %v", got)
	}
	if len(state.GetLogs()) != 0 {
		t.Errorf("logs were not discarded")
	}
}

func TestInMemoryState_StorageStatusReflectsCommittedValues(t *testing.T) {
	state := newInMemoryState()
	address := magma.Address{1}
	key := magma.Key{1}

	if status := state.SetStorage(address, key, magma.Word{1}); status != magma.StorageAdded {
		t.Errorf("unexpected status for a fresh slot: %v", status)
	}
	state.commit()

	if status := state.SetStorage(address, key, magma.Word{2}); status != magma.StorageModified {
		t.Errorf("unexpected status for a modified slot: %v", status)
	}
	if status := state.SetStorage(address, key, magma.Word{}); status != magma.StorageModifiedDeleted {
		t.Errorf("unexpected status for a deleted slot: %v", status)
	}
	if status := state.SetStorage(address, key, magma.Word{1}); status != magma.StorageDeletedRestored {
		t.Errorf("unexpected status for a restored slot: %v", status)
	}
}

func TestInMemoryState_AccessTrackingDistinguishesColdAndWarm(t *testing.T) {
	state := newInMemoryState()
	address := magma.Address{1}

	if state.AccessAccount(address) != magma.ColdAccess {
		t.Errorf("first account access should be cold")
	}
	if state.AccessAccount(address) != magma.WarmAccess {
		t.Errorf("repeated account access should be warm")
	}

	if state.AccessStorage(address, magma.Key{1}) != magma.ColdAccess {
		t.Errorf("first slot access should be cold")
	}
	if state.AccessStorage(address, magma.Key{1}) != magma.WarmAccess {
		t.Errorf("repeated slot access should be warm")
	}
	if state.AccessStorage(address, magma.Key{2}) != magma.ColdAccess {
		t.Errorf("accessing a new slot should be cold")
	}
}

func TestInMemoryState_SelfDestructMovesTheBalance(t *testing.T) {
	state := newInMemoryState()
	address := magma.Address{1}
	beneficiary := magma.Address{2}

	state.SetBalance(address, magma.NewValue(10))
	if !state.SelfDestruct(address, beneficiary) {
		t.Errorf("first destruction should be reported")
	}
	if state.SelfDestruct(address, beneficiary) {
		t.Errorf("repeated destruction should not be reported")
	}
	if got := state.GetBalance(beneficiary); got != magma.NewValue(10) {
		t.Errorf("balance was not transferred, got %v", got)
	}
	if !state.HasSelfDestructed(address) {
		t.Errorf("destruction was not recorded")
	}
}

func TestInMemoryState_AccountsExistOnlyWithContent(t *testing.T) {
	state := newInMemoryState()
	address := magma.Address{1}

	if state.AccountExists(address) {
		t.Errorf("a fresh address should not exist")
	}
	state.SetNonce(address, 1)
	if !state.AccountExists(address) {
		t.Errorf("an account with a nonce should exist")
	}
}
