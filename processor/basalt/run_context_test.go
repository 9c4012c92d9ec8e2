// Copyright (c) 2025 Magma Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at magma.foundation/bsl11.
//
// Change Date: 2029-3-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package basalt

import (
	"encoding/hex"
	"math"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/magma-foundation/magma/magma"
	"github.com/magma-foundation/magma/magma/vm"
)

func TestCreateAddress_NonceBasedDerivation(t *testing.T) {
	sender := addressFromHex(t, "6ac7ea33f8831ea9dcc53393aaa88b25a785dbf0")
	tests := map[uint64]string{
		0: "cd234a471b72ba2f1ccf0a70fcaba648a5eecd8d",
		1: "343c43a37d37dff08ae8c4a11544c718abb4fcf8",
	}
	for nonce, want := range tests {
		got := createAddress(magma.Create, sender, nonce, magma.Hash{}, magma.Hash{})
		if got != addressFromHex(t, want) {
			t.Errorf("unexpected address for nonce %d, wanted %s, got %v", nonce, want, got)
		}
	}
}

func TestCreateAddress_SaltBasedDerivation(t *testing.T) {
	// Example 1 of EIP-1014, using the init code 0x00.
	initCodeHash := keccak256Hash([]byte{0})
	got := createAddress(magma.Create2, magma.Address{}, 0, magma.Hash{}, initCodeHash)
	want := addressFromHex(t, "4d1a2e2bb4f88f0250f26ffff098b0b30b26bf38")
	if got != want {
		t.Errorf("unexpected address, wanted %v, got %v", want, got)
	}
}

func TestCreateAddress_KindSelectsTheDerivation(t *testing.T) {
	sender := magma.Address{1}
	nonceBased := createAddress(magma.Create, sender, 42, magma.Hash{2}, magma.Hash{3})
	saltBased := createAddress(magma.Create2, sender, 42, magma.Hash{2}, magma.Hash{3})
	if nonceBased == saltBased {
		t.Errorf("both derivations produced %v", nonceBased)
	}
	if createAddress(magma.Create, sender, 42, magma.Hash{4}, magma.Hash{5}) != nonceBased {
		t.Errorf("nonce based derivation should ignore salt and init code hash")
	}
}

func TestEncodeUintRlp_ProducesCanonicalEncodings(t *testing.T) {
	tests := map[uint64]string{
		0:              "80",
		1:              "01",
		127:            "7f",
		128:            "8180",
		256:            "820100",
		1024:           "820400",
		0xffffff:       "83ffffff",
		1 << 56:        "880100000000000000",
		math.MaxUint64: "88ffffffffffffffff",
	}
	for value, want := range tests {
		if got := hex.EncodeToString(encodeUintRlp(value)); got != want {
			t.Errorf("unexpected encoding of %d, wanted %s, got %s", value, want, got)
		}
	}
}

func TestIncrementNonce_DetectsOverflow(t *testing.T) {
	tests := map[string]struct {
		nonce    uint64
		wantFail bool
	}{
		"zero": {nonce: 0},
		"max":  {nonce: math.MaxUint64, wantFail: true},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			context := magma.NewMockTransactionContext(ctrl)
			context.EXPECT().GetNonce(gomock.Any()).Return(test.nonce)
			context.EXPECT().SetNonce(gomock.Any(), test.nonce+1).AnyTimes()

			err := incrementNonce(context, magma.Address{})
			if test.wantFail != (err != nil) {
				t.Errorf("unexpected result, wanted failure %t, got %v", test.wantFail, err)
			}
		})
	}
}

func TestCanTransferValue_ChecksTheSenderBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	context := magma.NewMockTransactionContext(ctrl)

	sender := magma.Address{1}
	recipient := magma.Address{2}

	context.EXPECT().GetBalance(sender).Return(magma.NewValue(10))
	context.EXPECT().GetBalance(recipient).Return(magma.NewValue(0))
	if !canTransferValue(context, magma.NewValue(10), sender, &recipient) {
		t.Errorf("transfer within the balance should be possible")
	}

	context.EXPECT().GetBalance(sender).Return(magma.NewValue(10))
	if canTransferValue(context, magma.NewValue(11), sender, &recipient) {
		t.Errorf("transfer exceeding the balance should not be possible")
	}
}

func TestCanTransferValue_ZeroValueNeedsNoBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	context := magma.NewMockTransactionContext(ctrl)
	recipient := magma.Address{2}
	if !canTransferValue(context, magma.Value{}, magma.Address{1}, &recipient) {
		t.Errorf("zero value transfers are always possible")
	}
}

func TestTransferValue_MovesTheBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	context := magma.NewMockTransactionContext(ctrl)

	sender := magma.Address{1}
	recipient := magma.Address{2}

	context.EXPECT().GetBalance(sender).Return(magma.NewValue(10))
	context.EXPECT().GetBalance(recipient).Return(magma.NewValue(5))
	context.EXPECT().SetBalance(sender, magma.NewValue(7))
	context.EXPECT().SetBalance(recipient, magma.NewValue(8))

	transferValue(context, magma.NewValue(3), sender, recipient)
}

func TestTransferValue_SelfTransfersLeaveTheBalanceUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	context := magma.NewMockTransactionContext(ctrl)
	address := magma.Address{1}
	transferValue(context, magma.NewValue(10), address, address)
}

func TestExecuteCall_DepthLimitPreservesGas(t *testing.T) {
	context := runContext{depth: maxRecursiveDepth}
	result, err := context.Call(magma.Call, magma.CallParameters{Gas: 1000})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if result.Success {
		t.Errorf("call beyond the depth limit should fail")
	}
	if result.GasLeft != 1000 {
		t.Errorf("the gas of a rejected call stays with the caller, got %d", result.GasLeft)
	}

	result, err = context.Call(magma.Create, magma.CallParameters{Gas: 1000})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if result.Success || result.GasLeft != 1000 {
		t.Errorf("unexpected creation result beyond the depth limit: %+v", result)
	}
}

func TestExecuteCall_RevertPreservesReportedGas(t *testing.T) {
	ctrl := gomock.NewController(t)
	transactionContext := magma.NewMockTransactionContext(ctrl)
	interpreter := magma.NewMockInterpreter(ctrl)

	recipient := magma.Address{0x42}

	transactionContext.EXPECT().CreateSnapshot().Return(magma.Snapshot(1))
	transactionContext.EXPECT().GetCodeHash(recipient).Return(magma.Hash{1})
	transactionContext.EXPECT().GetCode(recipient).Return(magma.Code{byte(0xfd)})
	interpreter.EXPECT().Run(gomock.Any()).Return(magma.Result{
		Success: false,
		Output:  []byte{1, 2},
		GasLeft: 500,
	}, nil)
	transactionContext.EXPECT().RestoreSnapshot(magma.Snapshot(1))

	context := runContext{
		TransactionContext: transactionContext,
		interpreter:        interpreter,
	}
	result, err := context.Call(magma.Call, magma.CallParameters{
		Recipient:   recipient,
		CodeAddress: recipient,
		Gas:         1000,
	})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if result.Success {
		t.Errorf("reverted call should not be successful")
	}
	if result.GasLeft != 500 {
		t.Errorf("revert should preserve the reported gas, got %d", result.GasLeft)
	}
	if len(result.Output) != 2 {
		t.Errorf("revert output should be forwarded, got %x", result.Output)
	}
}

func TestExecuteCall_ErrorForfeitsGas(t *testing.T) {
	ctrl := gomock.NewController(t)
	transactionContext := magma.NewMockTransactionContext(ctrl)
	interpreter := magma.NewMockInterpreter(ctrl)

	recipient := magma.Address{0x42}

	transactionContext.EXPECT().CreateSnapshot().Return(magma.Snapshot(1))
	transactionContext.EXPECT().GetCodeHash(recipient).Return(magma.Hash{1})
	transactionContext.EXPECT().GetCode(recipient).Return(magma.Code{byte(0xfe)})
	interpreter.EXPECT().Run(gomock.Any()).Return(magma.Result{Success: false}, nil)
	transactionContext.EXPECT().RestoreSnapshot(magma.Snapshot(1))

	context := runContext{
		TransactionContext: transactionContext,
		interpreter:        interpreter,
	}
	result, err := context.Call(magma.Call, magma.CallParameters{
		Recipient:   recipient,
		CodeAddress: recipient,
		Gas:         1000,
	})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if result.Success || result.GasLeft != 0 {
		t.Errorf("a failed call forfeits all gas, got %+v", result)
	}
}

func TestExecuteCall_PrecompileInvocationSkipsTheInterpreter(t *testing.T) {
	ctrl := gomock.NewController(t)
	transactionContext := magma.NewMockTransactionContext(ctrl)

	identity := magma.Address{19: 0x04}
	input := []byte{1, 2, 3}

	transactionContext.EXPECT().CreateSnapshot().Return(magma.Snapshot(1))

	// The code address of a plain call is resolved from the recipient.
	context := runContext{TransactionContext: transactionContext}
	result, err := context.Call(magma.Call, magma.CallParameters{
		Recipient: identity,
		Input:     input,
		Gas:       1000,
	})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if !result.Success {
		t.Errorf("identity invocation failed")
	}
	if string(result.Output) != string(input) {
		t.Errorf("unexpected output %x", result.Output)
	}
}

func TestExecuteCall_PrecompilesAreReachableThroughCallInstructions(t *testing.T) {
	ctrl := gomock.NewController(t)
	transactionContext := magma.NewMockTransactionContext(ctrl)

	interpreter, err := magma.NewInterpreter("cvm")
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}

	// The contract queries the SHA256 precompile with empty input and
	// returns the size of the produced return data.
	contract := magma.Address{0x42}
	code := magma.Code{
		byte(vm.PUSH1), 0, // retSize
		byte(vm.PUSH1), 0, // retOffset
		byte(vm.PUSH1), 0, // argsSize
		byte(vm.PUSH1), 0, // argsOffset
		byte(vm.PUSH1), 2, // the SHA256 precompile
		byte(vm.PUSH2), 0xFF, 0xFF, // gas
		byte(vm.STATICCALL),
		byte(vm.RETURNDATASIZE),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	}
	codeHash := keccak256Hash(code)

	transactionContext.EXPECT().CreateSnapshot().Return(magma.Snapshot(0)).Times(2)
	transactionContext.EXPECT().GetCodeHash(contract).Return(codeHash)
	transactionContext.EXPECT().GetCode(contract).Return(code)

	context := runContext{
		TransactionContext: transactionContext,
		interpreter:        interpreter,
		blockParameters:    magma.BlockParameters{Revision: magma.R07_Istanbul},
	}
	result, err := context.Call(magma.Call, magma.CallParameters{
		Recipient: contract,
		Gas:       100_000,
	})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("execution should have succeeded")
	}
	want := make([]byte, 32)
	want[31] = 32
	if string(result.Output) != string(want) {
		t.Errorf("the precompile produced no return data, got %x", result.Output)
	}
}

func TestExecuteCall_EmptyAccountsAreNotTouchedSinceBerlin(t *testing.T) {
	ctrl := gomock.NewController(t)
	transactionContext := magma.NewMockTransactionContext(ctrl)
	recipient := magma.Address{0x42}

	transactionContext.EXPECT().CreateSnapshot().Return(magma.Snapshot(1))
	transactionContext.EXPECT().AccountExists(recipient).Return(false)

	context := runContext{
		TransactionContext: transactionContext,
		blockParameters:    magma.BlockParameters{Revision: magma.R09_Berlin},
	}
	result, err := context.Call(magma.Call, magma.CallParameters{
		Recipient:   recipient,
		CodeAddress: recipient,
		Gas:         1000,
	})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if !result.Success || result.GasLeft != 1000 {
		t.Errorf("call to an empty account should succeed without cost, got %+v", result)
	}
}

func TestExecuteCreate_DeploysTheReturnedCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	transactionContext := magma.NewMockTransactionContext(ctrl)
	interpreter := magma.NewMockInterpreter(ctrl)

	sender := magma.Address{1}
	deployedCode := []byte{byte(0x00)}

	transactionContext.EXPECT().GetNonce(sender).Return(uint64(0))
	transactionContext.EXPECT().SetNonce(sender, uint64(1))
	transactionContext.EXPECT().GetNonce(sender).Return(uint64(1))

	createdAddress := createAddress(magma.Create, sender, 0, magma.Hash{}, magma.Hash{})
	transactionContext.EXPECT().GetNonce(createdAddress).Return(uint64(0))
	transactionContext.EXPECT().GetCodeHash(createdAddress).Return(magma.Hash{})
	transactionContext.EXPECT().CreateSnapshot().Return(magma.Snapshot(1))
	transactionContext.EXPECT().SetNonce(createdAddress, uint64(1))
	interpreter.EXPECT().Run(gomock.Any()).Return(magma.Result{
		Success: true,
		Output:  deployedCode,
		GasLeft: 1000,
	}, nil)
	transactionContext.EXPECT().SetCode(createdAddress, magma.Code(deployedCode))

	context := runContext{
		TransactionContext: transactionContext,
		interpreter:        interpreter,
	}
	result, err := context.Call(magma.Create, magma.CallParameters{
		Sender: sender,
		Gas:    2000,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !result.Success {
		t.Errorf("creation failed")
	}
	if result.CreatedAddress != createdAddress {
		t.Errorf("unexpected created address %v", result.CreatedAddress)
	}
	if want := magma.Gas(1000 - createGasCostPerByte); result.GasLeft != want {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, result.GasLeft)
	}
}

func TestExecuteCreate_CollisionConsumesAllGas(t *testing.T) {
	ctrl := gomock.NewController(t)
	transactionContext := magma.NewMockTransactionContext(ctrl)

	sender := magma.Address{1}
	transactionContext.EXPECT().GetNonce(sender).Return(uint64(0))
	transactionContext.EXPECT().SetNonce(sender, uint64(1))
	transactionContext.EXPECT().GetNonce(sender).Return(uint64(1))

	createdAddress := createAddress(magma.Create, sender, 0, magma.Hash{}, magma.Hash{})
	transactionContext.EXPECT().GetNonce(createdAddress).Return(uint64(7))

	context := runContext{TransactionContext: transactionContext}
	result, err := context.Call(magma.Create, magma.CallParameters{
		Sender: sender,
		Gas:    2000,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if result.Success || result.GasLeft != 0 {
		t.Errorf("a creation collision consumes all gas, got %+v", result)
	}
}

func TestExecuteCreate_OversizedCodeIsRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	transactionContext := magma.NewMockTransactionContext(ctrl)
	interpreter := magma.NewMockInterpreter(ctrl)

	sender := magma.Address{1}
	transactionContext.EXPECT().GetNonce(sender).Return(uint64(0))
	transactionContext.EXPECT().SetNonce(sender, uint64(1))
	transactionContext.EXPECT().GetNonce(sender).Return(uint64(1))

	createdAddress := createAddress(magma.Create, sender, 0, magma.Hash{}, magma.Hash{})
	transactionContext.EXPECT().GetNonce(createdAddress).Return(uint64(0))
	transactionContext.EXPECT().GetCodeHash(createdAddress).Return(magma.Hash{})
	transactionContext.EXPECT().CreateSnapshot().Return(magma.Snapshot(1))
	transactionContext.EXPECT().SetNonce(createdAddress, uint64(1))
	interpreter.EXPECT().Run(gomock.Any()).Return(magma.Result{
		Success: true,
		Output:  make([]byte, maxCodeSize+1),
		GasLeft: 1 << 32,
	}, nil)
	transactionContext.EXPECT().RestoreSnapshot(magma.Snapshot(1))

	context := runContext{
		TransactionContext: transactionContext,
		interpreter:        interpreter,
	}
	result, err := context.Call(magma.Create, magma.CallParameters{
		Sender: sender,
		Gas:    1 << 33,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if result.Success || result.GasLeft != 0 {
		t.Errorf("oversized code should fail the creation, got %+v", result)
	}
}

func TestExecuteCreate_CodePrefixIsRejectedSinceLondon(t *testing.T) {
	ctrl := gomock.NewController(t)
	transactionContext := magma.NewMockTransactionContext(ctrl)
	interpreter := magma.NewMockInterpreter(ctrl)

	sender := magma.Address{1}
	transactionContext.EXPECT().GetNonce(sender).Return(uint64(0))
	transactionContext.EXPECT().SetNonce(sender, uint64(1))
	transactionContext.EXPECT().GetNonce(sender).Return(uint64(1))

	createdAddress := createAddress(magma.Create, sender, 0, magma.Hash{}, magma.Hash{})
	transactionContext.EXPECT().AccessAccount(createdAddress).Return(magma.ColdAccess)
	transactionContext.EXPECT().GetNonce(createdAddress).Return(uint64(0))
	transactionContext.EXPECT().GetCodeHash(createdAddress).Return(magma.Hash{})
	transactionContext.EXPECT().CreateSnapshot().Return(magma.Snapshot(1))
	transactionContext.EXPECT().SetNonce(createdAddress, uint64(1))
	interpreter.EXPECT().Run(gomock.Any()).Return(magma.Result{
		Success: true,
		Output:  []byte{0xEF, 0x00},
		GasLeft: 1000,
	}, nil)
	transactionContext.EXPECT().RestoreSnapshot(magma.Snapshot(1))

	context := runContext{
		TransactionContext: transactionContext,
		interpreter:        interpreter,
		blockParameters:    magma.BlockParameters{Revision: magma.R10_London},
	}
	result, err := context.Call(magma.Create, magma.CallParameters{
		Sender: sender,
		Gas:    2000,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if result.Success {
		t.Errorf("code with the reserved prefix must not be deployed")
	}
}

func addressFromHex(t *testing.T, data string) magma.Address {
	t.Helper()
	decoded, err := hex.DecodeString(data)
	if err != nil || len(decoded) != 20 {
		t.Fatalf("invalid address constant %q", data)
	}
	return magma.Address(decoded)
}
