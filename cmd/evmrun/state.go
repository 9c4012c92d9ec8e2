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
	"maps"

	"golang.org/x/crypto/sha3"

	"github.com/magma-foundation/magma/magma"
)

// account is the in-memory representation of a single chain account.
type account struct {
	balance magma.Value
	nonce   uint64
	code    magma.Code
	storage map[magma.Key]magma.Word
}

func (a *account) clone() *account {
	return &account{
		balance: a.balance,
		nonce:   a.nonce,
		code:    a.code,
		storage: maps.Clone(a.storage),
	}
}

type slotId struct {
	address magma.Address
	key     magma.Key
}

// inMemoryState is a self-contained magma.TransactionContext backed by maps,
// sufficient to run transactions without a database.
type inMemoryState struct {
	accounts         map[magma.Address]*account
	committed        map[slotId]magma.Word
	transient        map[slotId]magma.Word
	accessedAccounts map[magma.Address]struct{}
	accessedSlots    map[slotId]struct{}
	selfDestructed   map[magma.Address]struct{}
	logs             []magma.Log
	snapshots        []*inMemoryState
}

func newInMemoryState() *inMemoryState {
	return &inMemoryState{
		accounts:         map[magma.Address]*account{},
		committed:        map[slotId]magma.Word{},
		transient:        map[slotId]magma.Word{},
		accessedAccounts: map[magma.Address]struct{}{},
		accessedSlots:    map[slotId]struct{}{},
		selfDestructed:   map[magma.Address]struct{}{},
	}
}

func (s *inMemoryState) getOrCreateAccount(address magma.Address) *account {
	if existing, found := s.accounts[address]; found {
		return existing
	}
	created := &account{storage: map[magma.Key]magma.Word{}}
	s.accounts[address] = created
	return created
}

func (s *inMemoryState) AccountExists(address magma.Address) bool {
	existing, found := s.accounts[address]
	if !found {
		return false
	}
	return existing.balance != (magma.Value{}) || existing.nonce != 0 || len(existing.code) != 0
}

func (s *inMemoryState) GetBalance(address magma.Address) magma.Value {
	if existing, found := s.accounts[address]; found {
		return existing.balance
	}
	return magma.Value{}
}

func (s *inMemoryState) SetBalance(address magma.Address, balance magma.Value) {
	s.getOrCreateAccount(address).balance = balance
}

func (s *inMemoryState) GetNonce(address magma.Address) uint64 {
	if existing, found := s.accounts[address]; found {
		return existing.nonce
	}
	return 0
}

func (s *inMemoryState) SetNonce(address magma.Address, nonce uint64) {
	s.getOrCreateAccount(address).nonce = nonce
}

func (s *inMemoryState) GetCode(address magma.Address) magma.Code {
	if existing, found := s.accounts[address]; found {
		return existing.code
	}
	return nil
}

func (s *inMemoryState) GetCodeHash(address magma.Address) magma.Hash {
	code := s.GetCode(address)
	if len(code) == 0 {
		return magma.Hash{}
	}
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(code)
	var hash magma.Hash
	hasher.Sum(hash[:0])
	return hash
}

func (s *inMemoryState) GetCodeSize(address magma.Address) int {
	return len(s.GetCode(address))
}

func (s *inMemoryState) SetCode(address magma.Address, code magma.Code) {
	s.getOrCreateAccount(address).code = code
}

func (s *inMemoryState) GetStorage(address magma.Address, key magma.Key) magma.Word {
	if existing, found := s.accounts[address]; found {
		return existing.storage[key]
	}
	return magma.Word{}
}

func (s *inMemoryState) SetStorage(address magma.Address, key magma.Key, value magma.Word) magma.StorageStatus {
	current := s.GetStorage(address, key)
	original := s.GetCommittedStorage(address, key)
	s.getOrCreateAccount(address).storage[key] = value
	return magma.GetStorageStatus(original, current, value)
}

func (s *inMemoryState) SelfDestruct(address magma.Address, beneficiary magma.Address) bool {
	balance := s.GetBalance(address)
	s.SetBalance(address, magma.Value{})
	if address != beneficiary {
		s.SetBalance(beneficiary, magma.Add(s.GetBalance(beneficiary), balance))
	}
	if _, destructed := s.selfDestructed[address]; destructed {
		return false
	}
	s.selfDestructed[address] = struct{}{}
	return true
}

func (s *inMemoryState) CreateSnapshot() magma.Snapshot {
	backup := &inMemoryState{
		accounts:         map[magma.Address]*account{},
		committed:        maps.Clone(s.committed),
		transient:        maps.Clone(s.transient),
		accessedAccounts: maps.Clone(s.accessedAccounts),
		accessedSlots:    maps.Clone(s.accessedSlots),
		selfDestructed:   maps.Clone(s.selfDestructed),
		logs:             s.logs[0:len(s.logs):len(s.logs)],
	}
	for address, existing := range s.accounts {
		backup.accounts[address] = existing.clone()
	}
	s.snapshots = append(s.snapshots, backup)
	return magma.Snapshot(len(s.snapshots) - 1)
}

func (s *inMemoryState) RestoreSnapshot(snapshot magma.Snapshot) {
	if int(snapshot) >= len(s.snapshots) {
		return
	}
	backup := s.snapshots[snapshot]
	s.accounts = backup.accounts
	s.committed = backup.committed
	s.transient = backup.transient
	s.accessedAccounts = backup.accessedAccounts
	s.accessedSlots = backup.accessedSlots
	s.selfDestructed = backup.selfDestructed
	s.logs = backup.logs
	s.snapshots = s.snapshots[:snapshot]
}

func (s *inMemoryState) GetTransientStorage(address magma.Address, key magma.Key) magma.Word {
	return s.transient[slotId{address, key}]
}

func (s *inMemoryState) SetTransientStorage(address magma.Address, key magma.Key, value magma.Word) {
	s.transient[slotId{address, key}] = value
}

func (s *inMemoryState) AccessAccount(address magma.Address) magma.AccessStatus {
	if _, warm := s.accessedAccounts[address]; warm {
		return magma.WarmAccess
	}
	s.accessedAccounts[address] = struct{}{}
	return magma.ColdAccess
}

func (s *inMemoryState) AccessStorage(address magma.Address, key magma.Key) magma.AccessStatus {
	id := slotId{address, key}
	if _, warm := s.accessedSlots[id]; warm {
		return magma.WarmAccess
	}
	s.accessedSlots[id] = struct{}{}
	return magma.ColdAccess
}

func (s *inMemoryState) EmitLog(log magma.Log) {
	s.logs = append(s.logs, log)
}

func (s *inMemoryState) GetLogs() []magma.Log {
	return s.logs
}

func (s *inMemoryState) GetBlockHash(number int64) magma.Hash {
	var hash magma.Hash
	hash[24] = byte(number >> 56)
	hash[25] = byte(number >> 48)
	hash[26] = byte(number >> 40)
	hash[27] = byte(number >> 32)
	hash[28] = byte(number >> 24)
	hash[29] = byte(number >> 16)
	hash[30] = byte(number >> 8)
	hash[31] = byte(number)
	return hash
}

func (s *inMemoryState) GetCommittedStorage(address magma.Address, key magma.Key) magma.Word {
	if value, found := s.committed[slotId{address, key}]; found {
		return value
	}
	return magma.Word{}
}

func (s *inMemoryState) IsAddressInAccessList(address magma.Address) bool {
	_, found := s.accessedAccounts[address]
	return found
}

func (s *inMemoryState) IsSlotInAccessList(address magma.Address, key magma.Key) (bool, bool) {
	_, slotPresent := s.accessedSlots[slotId{address, key}]
	return s.IsAddressInAccessList(address), slotPresent
}

func (s *inMemoryState) HasSelfDestructed(address magma.Address) bool {
	_, destructed := s.selfDestructed[address]
	return destructed
}

// commit makes the current storage values the committed state of the next
// transaction and resets the per-transaction tracking.
func (s *inMemoryState) commit() {
	for address, existing := range s.accounts {
		for key, value := range existing.storage {
			s.committed[slotId{address, key}] = value
		}
	}
	s.transient = map[slotId]magma.Word{}
	s.accessedAccounts = map[magma.Address]struct{}{}
	s.accessedSlots = map[slotId]struct{}{}
	s.selfDestructed = map[magma.Address]struct{}{}
	s.logs = nil
	s.snapshots = nil
}
