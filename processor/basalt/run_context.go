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
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/magma-foundation/magma/magma"
	"github.com/magma-foundation/magma/precompiles"
)

var emptyCodeHash = keccak256Hash(nil)

// runContext connects the interpreter to the world state and handles the
// recursive calls and contract creations issued during an execution.
type runContext struct {
	magma.TransactionContext
	interpreter           magma.Interpreter
	blockParameters       magma.BlockParameters
	transactionParameters magma.TransactionParameters
	depth                 int
	static                bool
}

func (r runContext) Call(kind magma.CallKind, parameters magma.CallParameters) (magma.CallResult, error) {
	if kind == magma.Create || kind == magma.Create2 {
		return r.executeCreate(kind, parameters)
	}
	return r.executeCall(kind, parameters)
}

func (r runContext) executeCall(kind magma.CallKind, parameters magma.CallParameters) (magma.CallResult, error) {
	errResult := magma.CallResult{
		Success: false,
		GasLeft: parameters.Gas,
	}
	if r.depth >= maxRecursiveDepth {
		return errResult, nil
	}
	r.depth++

	if kind == magma.Call || kind == magma.CallCode {
		if !canTransferValue(r, parameters.Value, parameters.Sender, &parameters.Recipient) {
			return errResult, nil
		}
	}

	if kind == magma.StaticCall {
		r.static = true
	}

	snapshot := r.CreateSnapshot()
	recipient := parameters.Recipient
	revision := r.blockParameters.Revision

	// Calls to non-existing accounts without value transfer have no effect
	// and do not create the account.
	if revision >= magma.R09_Berlin &&
		!precompiles.IsPrecompile(recipient, revision) &&
		!r.AccountExists(recipient) &&
		parameters.Value.Cmp(magma.Value{}) == 0 {
		return magma.CallResult{Success: true, GasLeft: parameters.Gas}, nil
	}

	if kind == magma.Call || kind == magma.CallCode {
		transferValue(r, parameters.Value, parameters.Sender, recipient)
	}

	var codeAddress magma.Address
	if kind == magma.Call || kind == magma.StaticCall {
		codeAddress = recipient
	} else {
		codeAddress = parameters.CodeAddress
	}

	result, isPrecompiled := precompiles.Run(
		revision, codeAddress, parameters.Input, parameters.Gas)
	if isPrecompiled {
		if !result.Success {
			r.RestoreSnapshot(snapshot)
		}
		return result, nil
	}

	codeHash := r.GetCodeHash(codeAddress)
	code := r.GetCode(codeAddress)

	interpreterParameters := magma.Parameters{
		BlockParameters:       r.blockParameters,
		TransactionParameters: r.transactionParameters,
		Context:               r,
		Kind:                  kind,
		Static:                r.static,
		Depth:                 r.depth - 1, // depth has already been incremented
		Gas:                   parameters.Gas,
		Recipient:             recipient,
		Sender:                parameters.Sender,
		Input:                 parameters.Input,
		Value:                 parameters.Value,
		CodeHash:              &codeHash,
		Code:                  code,
	}

	callResult, err := r.interpreter.Run(interpreterParameters)
	if err != nil || !callResult.Success {
		r.RestoreSnapshot(snapshot)

		if !isRevert(callResult, err) {
			// only a revert preserves the remaining gas of the frame
			callResult.GasLeft = 0
		}
	}

	return magma.CallResult{
		Output:    callResult.Output,
		GasLeft:   callResult.GasLeft,
		GasRefund: callResult.GasRefund,
		Success:   callResult.Success,
	}, err
}

func (r runContext) executeCreate(kind magma.CallKind, parameters magma.CallParameters) (magma.CallResult, error) {
	errResult := magma.CallResult{
		Success: false,
		GasLeft: parameters.Gas,
	}
	if r.depth >= maxRecursiveDepth {
		return errResult, nil
	}
	r.depth++

	if !canTransferValue(r, parameters.Value, parameters.Sender, nil) {
		return errResult, nil
	}
	if err := incrementNonce(r, parameters.Sender); err != nil {
		return errResult, nil
	}

	code := magma.Code(parameters.Input)
	codeHash := keccak256Hash(code)

	createdAddress := createAddress(kind, parameters.Sender,
		r.GetNonce(parameters.Sender)-1, parameters.Salt, codeHash)

	if r.blockParameters.Revision >= magma.R09_Berlin {
		r.AccessAccount(createdAddress)
	}

	// A nonce or code at the target address is a creation collision which
	// consumes all gas.
	if r.GetNonce(createdAddress) != 0 ||
		(r.GetCodeHash(createdAddress) != (magma.Hash{}) &&
			r.GetCodeHash(createdAddress) != emptyCodeHash) {
		return magma.CallResult{}, nil
	}

	snapshot := r.CreateSnapshot()
	r.SetNonce(createdAddress, 1)

	transferValue(r, parameters.Value, parameters.Sender, createdAddress)

	interpreterParameters := magma.Parameters{
		BlockParameters:       r.blockParameters,
		TransactionParameters: r.transactionParameters,
		Context:               r,
		Kind:                  kind,
		Static:                r.static,
		Depth:                 r.depth - 1, // depth has already been incremented
		Gas:                   parameters.Gas,
		Recipient:             createdAddress,
		Sender:                parameters.Sender,
		Input:                 nil,
		Value:                 parameters.Value,
		CodeHash:              &codeHash,
		Code:                  code,
	}

	result, err := r.interpreter.Run(interpreterParameters)
	if err != nil || !result.Success {
		r.RestoreSnapshot(snapshot)

		if !isRevert(result, err) {
			return magma.CallResult{}, err
		}
		return magma.CallResult{
			Output:         result.Output,
			GasLeft:        result.GasLeft,
			CreatedAddress: createdAddress,
		}, nil
	}

	outCode := result.Output
	if len(outCode) > maxCodeSize {
		result.Success = false
	}
	if r.blockParameters.Revision >= magma.R10_London && len(outCode) > 0 && outCode[0] == 0xEF {
		result.Success = false
	}
	depositGas := magma.Gas(len(outCode)) * createGasCostPerByte
	if result.GasLeft < depositGas {
		result.Success = false
	} else {
		result.GasLeft -= depositGas
	}

	if result.Success {
		r.SetCode(createdAddress, magma.Code(outCode))
	} else {
		r.RestoreSnapshot(snapshot)
		result.GasLeft = 0
		result.Output = nil
	}

	return magma.CallResult{
		Output:         result.Output,
		GasLeft:        result.GasLeft,
		GasRefund:      result.GasRefund,
		Success:        result.Success,
		CreatedAddress: createdAddress,
	}, nil
}

// isRevert distinguishes an orderly revert from an execution error. Only a
// revert leaves gas or output behind.
func isRevert(result magma.Result, err error) bool {
	return err == nil && !result.Success && (result.GasLeft > 0 || len(result.Output) > 0)
}

func createAddress(
	kind magma.CallKind,
	sender magma.Address,
	nonce uint64,
	salt magma.Hash,
	initCodeHash magma.Hash,
) magma.Address {
	if kind == magma.Create {
		return createAddressFromNonce(sender, nonce)
	}
	return createAddressFromSalt(sender, salt, initCodeHash)
}

// createAddressFromNonce derives the address of a new contract from the
// RLP encoding of the creator address and nonce.
func createAddressFromNonce(sender magma.Address, nonce uint64) magma.Address {
	nonceBytes := encodeUintRlp(nonce)
	encoded := make([]byte, 0, 2+len(sender)+len(nonceBytes))
	encoded = append(encoded, byte(0xc0+1+len(sender)+len(nonceBytes)))
	encoded = append(encoded, byte(0x80+len(sender)))
	encoded = append(encoded, sender[:]...)
	encoded = append(encoded, nonceBytes...)
	hash := keccak256Hash(encoded)
	return magma.Address(hash[12:])
}

// createAddressFromSalt derives the address of a new contract from the
// creator address, a salt, and the hash of the init code.
func createAddressFromSalt(sender magma.Address, salt magma.Hash, initCodeHash magma.Hash) magma.Address {
	encoded := make([]byte, 0, 1+len(sender)+len(salt)+len(initCodeHash))
	encoded = append(encoded, 0xff)
	encoded = append(encoded, sender[:]...)
	encoded = append(encoded, salt[:]...)
	encoded = append(encoded, initCodeHash[:]...)
	hash := keccak256Hash(encoded)
	return magma.Address(hash[12:])
}

// encodeUintRlp produces the RLP encoding of an unsigned integer.
func encodeUintRlp(value uint64) []byte {
	if value == 0 {
		return []byte{0x80}
	}
	if value < 0x80 {
		return []byte{byte(value)}
	}
	var bytes []byte
	for v := value; v > 0; v >>= 8 {
		bytes = append([]byte{byte(v)}, bytes...)
	}
	return append([]byte{byte(0x80 + len(bytes))}, bytes...)
}

func keccak256Hash(data []byte) magma.Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	var hash magma.Hash
	hasher.Sum(hash[:0])
	return hash
}

func canTransferValue(
	context magma.TransactionContext,
	value magma.Value,
	sender magma.Address,
	recipient *magma.Address,
) bool {
	if value == (magma.Value{}) {
		return true
	}

	senderBalance := context.GetBalance(sender)
	if senderBalance.Cmp(value) < 0 {
		return false
	}

	if recipient == nil || sender == *recipient {
		return true
	}

	receiverBalance := context.GetBalance(*recipient)
	updatedBalance := magma.Add(receiverBalance, value)
	if updatedBalance.Cmp(receiverBalance) < 0 || updatedBalance.Cmp(value) < 0 {
		return false
	}

	return true
}

// Only to be called after canTransferValue.
func transferValue(
	context magma.TransactionContext,
	value magma.Value,
	sender magma.Address,
	recipient magma.Address,
) {
	if value == (magma.Value{}) || sender == recipient {
		return
	}

	senderBalance := context.GetBalance(sender)
	receiverBalance := context.GetBalance(recipient)

	context.SetBalance(sender, magma.Sub(senderBalance, value))
	context.SetBalance(recipient, magma.Add(receiverBalance, value))
}

func incrementNonce(context magma.TransactionContext, address magma.Address) error {
	nonce := context.GetNonce(address)
	if nonce+1 < nonce {
		return fmt.Errorf("nonce overflow")
	}
	context.SetNonce(address, nonce+1)
	return nil
}
