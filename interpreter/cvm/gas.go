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
	"github.com/magma-foundation/magma/magma"
	"github.com/magma-foundation/magma/magma/vm"
)

const (
	CallNewAccountGas        magma.Gas = 25000 // Paid for CALL when the destination address didn't exist prior.
	CallStipend              magma.Gas = 2300  // Free gas given at beginning of call.
	CallValueTransferGas     magma.Gas = 9000  // Paid for CALL when the value transfer is non-zero.
	ColdAccountAccessCost    magma.Gas = 2600  // Cost of a cold account access after EIP-2929.
	ColdSloadCost            magma.Gas = 2100  // Cost of a cold storage slot access after EIP-2929.
	CreateBySelfdestructGas  magma.Gas = 25000 // Paid when SELFDESTRUCT funds a non-existing account.
	SelfdestructGas          magma.Gas = 5000  // Cost of SELFDESTRUCT post EIP-150.
	SelfdestructRefundGas    magma.Gas = 24000 // Refunded following a selfdestruct operation before EIP-3529.
	SloadGas                 magma.Gas = 800   // Cost of SLOAD after EIP-2200 and before EIP-2929.
	SstoreClearsRefund       magma.Gas = 15000 // Refund for clearing a slot, before EIP-3529.
	SstoreClearsRefundLondon magma.Gas = 4800  // Refund for clearing a slot, after EIP-3529.
	SstoreResetGas           magma.Gas = 5000  // Cost of an SSTORE changing a non-zero slot.
	SstoreSentryGas          magma.Gas = 2300  // Minimum gas required to be present for an SSTORE call.
	SstoreSetGas             magma.Gas = 20000 // Cost of an SSTORE filling a zero slot.
	WarmStorageReadCost      magma.Gas = 100   // Cost of a warm storage or account access after EIP-2929.
)

var staticGasPrices = [256]magma.Gas{}
var staticGasPricesBerlin = [256]magma.Gas{}

func init() {
	for i := 0; i < 256; i++ {
		gp := getStaticGasPriceInternal(vm.OpCode(i))
		staticGasPrices[i] = gp
		staticGasPricesBerlin[i] = gp
	}
	initBerlinGasPrices()
}

// initBerlinGasPrices applies the static price changes of EIP-2929. The
// remainder of the access cost is charged dynamically depending on the
// warm/cold state of the accessed account or slot.
func initBerlinGasPrices() {
	staticGasPricesBerlin[vm.SLOAD] = 0
	staticGasPricesBerlin[vm.EXTCODECOPY] = 100
	staticGasPricesBerlin[vm.EXTCODESIZE] = 100
	staticGasPricesBerlin[vm.EXTCODEHASH] = 100
	staticGasPricesBerlin[vm.BALANCE] = 100
	staticGasPricesBerlin[vm.CALL] = 100
	staticGasPricesBerlin[vm.CALLCODE] = 100
	staticGasPricesBerlin[vm.STATICCALL] = 100
	staticGasPricesBerlin[vm.DELEGATECALL] = 100
}

func getStaticGasPrices(revision magma.Revision) *[256]magma.Gas {
	if revision >= magma.R09_Berlin {
		return &staticGasPricesBerlin
	}
	return &staticGasPrices
}

func getStaticGasPriceInternal(op vm.OpCode) magma.Gas {
	if vm.PUSH1 <= op && op <= vm.PUSH32 {
		return 3
	}
	if vm.DUP1 <= op && op <= vm.DUP16 {
		return 3
	}
	if vm.SWAP1 <= op && op <= vm.SWAP16 {
		return 3
	}
	if vm.LT <= op && op <= vm.SAR {
		return 3
	}
	if vm.COINBASE <= op && op <= vm.CHAINID {
		return 2
	}
	switch op {
	case vm.POP:
		return 2
	case vm.PUSH0:
		return 2
	case vm.ADD:
		return 3
	case vm.SUB:
		return 3
	case vm.MUL:
		return 5
	case vm.DIV:
		return 5
	case vm.SDIV:
		return 5
	case vm.MOD:
		return 5
	case vm.SMOD:
		return 5
	case vm.ADDMOD:
		return 8
	case vm.MULMOD:
		return 8
	case vm.EXP:
		return 10
	case vm.SIGNEXTEND:
		return 5
	case vm.SHA3:
		return 30
	case vm.ADDRESS:
		return 2
	case vm.BALANCE:
		return 700
	case vm.ORIGIN:
		return 2
	case vm.CALLER:
		return 2
	case vm.CALLVALUE:
		return 2
	case vm.CALLDATALOAD:
		return 3
	case vm.CALLDATASIZE:
		return 2
	case vm.CALLDATACOPY:
		return 3
	case vm.CODESIZE:
		return 2
	case vm.CODECOPY:
		return 3
	case vm.GASPRICE:
		return 2
	case vm.EXTCODESIZE:
		return 700
	case vm.EXTCODECOPY:
		return 700
	case vm.RETURNDATASIZE:
		return 2
	case vm.RETURNDATACOPY:
		return 3
	case vm.EXTCODEHASH:
		return 700
	case vm.BLOCKHASH:
		return 20
	case vm.SELFBALANCE:
		return 5
	case vm.BASEFEE:
		return 2
	case vm.BLOBHASH:
		return 3
	case vm.BLOBBASEFEE:
		return 2
	case vm.MLOAD:
		return 3
	case vm.MSTORE:
		return 3
	case vm.MSTORE8:
		return 3
	case vm.SLOAD:
		return SloadGas
	case vm.SSTORE:
		return 0 // costs are handled dynamically in opSstore
	case vm.JUMP:
		return 8
	case vm.JUMPI:
		return 10
	case vm.JUMPDEST:
		return 1
	case vm.TLOAD:
		return 100
	case vm.TSTORE:
		return 100
	case vm.PC:
		return 2
	case vm.MSIZE:
		return 2
	case vm.MCOPY:
		return 3
	case vm.LOG0:
		return 375
	case vm.LOG1:
		return 750
	case vm.LOG2:
		return 1125
	case vm.LOG3:
		return 1500
	case vm.LOG4:
		return 1875
	case vm.CREATE:
		return 32000
	case vm.CREATE2:
		return 32000
	case vm.CALL:
		return 700
	case vm.CALLCODE:
		return 700
	case vm.STATICCALL:
		return 700
	case vm.DELEGATECALL:
		return 700
	case vm.RETURN:
		return 0
	case vm.STOP:
		return 0
	case vm.REVERT:
		return 0
	case vm.SELFDESTRUCT:
		return SelfdestructGas
	}
	return 0
}

func getAccessCost(accessStatus magma.AccessStatus) magma.Gas {
	if accessStatus == magma.ColdAccess {
		return ColdAccountAccessCost
	}
	return WarmStorageReadCost
}

// getDynamicCostsForSstore returns the revision-dependent gas cost of an
// SSTORE operation causing the given storage slot transition. The cold-access
// surcharge of EIP-2929 is not included and needs to be charged separately.
func getDynamicCostsForSstore(revision magma.Revision, status magma.StorageStatus) magma.Gas {
	sloadCost := SloadGas
	resetCost := SstoreResetGas
	if revision >= magma.R09_Berlin {
		sloadCost = WarmStorageReadCost
		resetCost = SstoreResetGas - ColdSloadCost
	}
	switch status {
	case magma.StorageAdded:
		return SstoreSetGas
	case magma.StorageModified, magma.StorageDeleted:
		return resetCost
	default:
		return sloadCost
	}
}

// getRefundForSstore returns the revision-dependent refund granted (or taken
// back) for an SSTORE operation causing the given storage slot transition.
func getRefundForSstore(revision magma.Revision, status magma.StorageStatus) magma.Gas {
	sloadCost := SloadGas
	resetCost := SstoreResetGas
	clearsRefund := SstoreClearsRefund
	if revision >= magma.R09_Berlin {
		sloadCost = WarmStorageReadCost
		resetCost = SstoreResetGas - ColdSloadCost
	}
	if revision >= magma.R10_London {
		clearsRefund = SstoreClearsRefundLondon
	}
	switch status {
	case magma.StorageDeleted:
		return clearsRefund
	case magma.StorageModifiedDeleted:
		return clearsRefund
	case magma.StorageDeletedAdded:
		return -clearsRefund
	case magma.StorageDeletedRestored:
		return -clearsRefund + resetCost - sloadCost
	case magma.StorageAddedDeleted:
		return SstoreSetGas - sloadCost
	case magma.StorageModifiedRestored:
		return resetCost - sloadCost
	}
	return 0
}
