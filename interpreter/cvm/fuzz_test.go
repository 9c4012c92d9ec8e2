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

// emptyRunContext is a run context on an empty chain state; all reads
// yield zero values and all nested calls succeed without effect.
type emptyRunContext struct{}

func (emptyRunContext) AccountExists(magma.Address) bool {
	return false
}

func (emptyRunContext) GetBalance(magma.Address) magma.Value {
	return magma.Value{}
}

func (emptyRunContext) SetBalance(magma.Address, magma.Value) {
}

func (emptyRunContext) GetNonce(magma.Address) uint64 {
	return 0
}

func (emptyRunContext) SetNonce(magma.Address, uint64) {
}

func (emptyRunContext) GetCode(magma.Address) magma.Code {
	return nil
}

func (emptyRunContext) GetCodeHash(magma.Address) magma.Hash {
	return magma.Hash{}
}

func (emptyRunContext) GetCodeSize(magma.Address) int {
	return 0
}

func (emptyRunContext) SetCode(magma.Address, magma.Code) {
}

func (emptyRunContext) GetStorage(magma.Address, magma.Key) magma.Word {
	return magma.Word{}
}

func (emptyRunContext) SetStorage(magma.Address, magma.Key, magma.Word) magma.StorageStatus {
	return magma.StorageAssigned
}

func (emptyRunContext) SelfDestruct(magma.Address, magma.Address) bool {
	return false
}

func (emptyRunContext) CreateSnapshot() magma.Snapshot {
	return 0
}

func (emptyRunContext) RestoreSnapshot(magma.Snapshot) {
}

func (emptyRunContext) GetTransientStorage(magma.Address, magma.Key) magma.Word {
	return magma.Word{}
}

func (emptyRunContext) SetTransientStorage(magma.Address, magma.Key, magma.Word) {
}

func (emptyRunContext) AccessAccount(magma.Address) magma.AccessStatus {
	return magma.WarmAccess
}

func (emptyRunContext) AccessStorage(magma.Address, magma.Key) magma.AccessStatus {
	return magma.WarmAccess
}

func (emptyRunContext) EmitLog(magma.Log) {
}

func (emptyRunContext) GetLogs() []magma.Log {
	return nil
}

func (emptyRunContext) GetBlockHash(int64) magma.Hash {
	return magma.Hash{}
}

func (emptyRunContext) GetCommittedStorage(magma.Address, magma.Key) magma.Word {
	return magma.Word{}
}

func (emptyRunContext) IsAddressInAccessList(magma.Address) bool {
	return false
}

func (emptyRunContext) IsSlotInAccessList(magma.Address, magma.Key) (bool, bool) {
	return false, false
}

func (emptyRunContext) HasSelfDestructed(magma.Address) bool {
	return false
}

func (emptyRunContext) Call(magma.CallKind, magma.CallParameters) (magma.CallResult, error) {
	return magma.CallResult{Success: true}, nil
}

func FuzzCvm_ArbitraryCodeStaysWithinItsGasLimit(f *testing.F) {
	f.Add([]byte{byte(vm.STOP)}, int64(100), byte(magma.R07_Istanbul))
	f.Add([]byte{
		byte(vm.PUSH1), 2,
		byte(vm.PUSH1), 3,
		byte(vm.ADD),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}, int64(100), byte(magma.R13_Cancun))
	f.Add([]byte{
		byte(vm.JUMPDEST),
		byte(vm.PUSH1), 0,
		byte(vm.JUMP),
	}, int64(10_000), byte(magma.R12_Shanghai))

	f.Fuzz(func(t *testing.T, code []byte, gas int64, revision byte) {
		if gas < 0 || gas > 1_000_000 {
			t.Skip("gas limit out of range", gas)
		}
		if magma.Revision(revision) < magma.R07_Istanbul ||
			magma.Revision(revision) > magma.R13_Cancun {
			t.Skip("unsupported revision", revision)
		}

		interpreter, err := NewVm(Config{})
		if err != nil {
			t.Fatalf("failed to create interpreter: %v", err)
		}
		res, err := interpreter.Run(magma.Parameters{
			BlockParameters: magma.BlockParameters{
				Revision: magma.Revision(revision),
			},
			Context: emptyRunContext{},
			Gas:     magma.Gas(gas),
			Code:    code,
		})
		if err != nil {
			t.Fatalf("unexpected execution error: %v", err)
		}
		if res.GasLeft < 0 || res.GasLeft > magma.Gas(gas) {
			t.Errorf("gas left %d escapes the limit %d", res.GasLeft, gas)
		}
		if res.GasRefund < 0 {
			t.Errorf("negative gas refund %d", res.GasRefund)
		}
	})
}
