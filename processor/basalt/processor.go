// Copyright (c) 2025 Magma Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at magma.foundation/bsl11.
//
// Change Date: 2029-3-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package basalt provides a transaction processor handling gas purchase,
// intrinsic gas, nonce management, recursive contract calls, contract
// creation, and gas refunds on top of a registered interpreter.
package basalt

import (
	"fmt"

	"github.com/magma-foundation/magma/magma"

	// Make sure the default interpreter is registered.
	_ "github.com/magma-foundation/magma/interpreter/cvm"
)

const (
	TxGas                     = 21_000
	TxGasContractCreation     = 53_000
	TxDataNonZeroGasEIP2028   = 16
	TxDataZeroGasEIP2028      = 4
	TxAccessListAddressGas    = 2400
	TxAccessListStorageKeyGas = 1900
	TxInitCodeWordGas         = 2

	maxCodeSize     = 24576
	maxInitCodeSize = 2 * maxCodeSize

	createGasCostPerByte = 200
	maxRecursiveDepth    = 1024
)

func init() {
	magma.RegisterProcessorFactory("basalt", newProcessor)
}

func newProcessor(interpreter magma.Interpreter) magma.Processor {
	if interpreter == nil {
		interpreter, _ = magma.NewInterpreter("cvm")
	}
	return &processor{
		interpreter: interpreter,
	}
}

type processor struct {
	interpreter magma.Interpreter
}

func (p *processor) Run(
	blockParams magma.BlockParameters,
	transaction magma.Transaction,
	context magma.TransactionContext,
) (magma.Receipt, error) {
	errorReceipt := magma.Receipt{
		Success: false,
		GasUsed: transaction.GasLimit,
	}
	gas := transaction.GasLimit

	if err := buyGas(transaction, context); err != nil {
		return errorReceipt, nil
	}

	intrinsicGas, err := calculateIntrinsicGas(blockParams.Revision, transaction)
	if err != nil {
		return errorReceipt, nil
	}
	if gas < intrinsicGas {
		return errorReceipt, nil
	}
	gas -= intrinsicGas

	if err := handleNonce(transaction, context); err != nil {
		return errorReceipt, nil
	}

	setUpAccessList(blockParams, transaction, context)

	runContext := runContext{
		TransactionContext: context,
		interpreter:        p.interpreter,
		blockParameters:    blockParams,
		transactionParameters: magma.TransactionParameters{
			Origin:   transaction.Sender,
			GasPrice: transaction.GasPrice,
		},
	}

	var result magma.CallResult
	if transaction.Recipient == nil {
		result, err = runContext.Call(magma.Create, magma.CallParameters{
			Sender: transaction.Sender,
			Value:  transaction.Value,
			Input:  transaction.Input,
			Gas:    gas,
		})
	} else {
		result, err = runContext.Call(magma.Call, magma.CallParameters{
			Sender:      transaction.Sender,
			Recipient:   *transaction.Recipient,
			CodeAddress: *transaction.Recipient,
			Value:       transaction.Value,
			Input:       transaction.Input,
			Gas:         gas,
		})
	}
	if err != nil {
		return errorReceipt, err
	}

	gasLeft := result.GasLeft
	gasLeft += refundGas(blockParams.Revision, transaction.GasLimit-gasLeft, result.GasRefund)
	returnRemainingGas(transaction, context, gasLeft)

	var createdAddress *magma.Address
	if transaction.Recipient == nil && result.Success {
		created := result.CreatedAddress
		createdAddress = &created
	}

	return magma.Receipt{
		Success:         result.Success,
		GasUsed:         transaction.GasLimit - gasLeft,
		ContractAddress: createdAddress,
		Output:          result.Output,
		Logs:            context.GetLogs(),
	}, nil
}

// buyGas deducts the maximum gas fee from the sender's balance. The unused
// remainder is returned after the execution.
func buyGas(transaction magma.Transaction, context magma.TransactionContext) error {
	cost := transaction.GasPrice.Scale(uint64(transaction.GasLimit))

	senderBalance := context.GetBalance(transaction.Sender)
	if senderBalance.Cmp(cost) < 0 {
		return fmt.Errorf("insufficient balance: %v < %v", senderBalance, cost)
	}

	context.SetBalance(transaction.Sender, magma.Sub(senderBalance, cost))
	return nil
}

// returnRemainingGas reimburses the sender for the unused and refunded gas.
func returnRemainingGas(transaction magma.Transaction, context magma.TransactionContext, gasLeft magma.Gas) {
	reimbursement := transaction.GasPrice.Scale(uint64(gasLeft))
	senderBalance := context.GetBalance(transaction.Sender)
	context.SetBalance(transaction.Sender, magma.Add(senderBalance, reimbursement))
}

// refundGas caps the accumulated refund at a revision-dependent fraction of
// the gas used by the transaction.
func refundGas(revision magma.Revision, gasUsed magma.Gas, refund magma.Gas) magma.Gas {
	maxRefund := gasUsed / 2
	if revision >= magma.R10_London {
		maxRefund = gasUsed / 5
	}
	if refund > maxRefund {
		refund = maxRefund
	}
	return refund
}

// calculateIntrinsicGas computes the gas charged for a transaction before
// any code is executed.
func calculateIntrinsicGas(revision magma.Revision, transaction magma.Transaction) (magma.Gas, error) {
	var gas magma.Gas
	if transaction.Recipient == nil {
		gas = TxGasContractCreation
	} else {
		gas = TxGas
	}

	for _, inputByte := range transaction.Input {
		if inputByte != 0 {
			gas += TxDataNonZeroGasEIP2028
		} else {
			gas += TxDataZeroGasEIP2028
		}
	}

	gas += magma.Gas(len(transaction.AccessList)) * TxAccessListAddressGas
	for _, accessTuple := range transaction.AccessList {
		gas += magma.Gas(len(accessTuple.Keys)) * TxAccessListStorageKeyGas
	}

	if transaction.Recipient == nil && revision >= magma.R12_Shanghai {
		if len(transaction.Input) > maxInitCodeSize {
			return 0, fmt.Errorf("max init code size exceeded: %d", len(transaction.Input))
		}
		gas += magma.Gas(magma.SizeInWords(uint64(len(transaction.Input)))) * TxInitCodeWordGas
	}

	return gas, nil
}

// handleNonce verifies the transaction nonce against the sender account.
// The nonce of call transactions is incremented right away, for create
// transactions the increment is part of the creation itself.
func handleNonce(transaction magma.Transaction, context magma.TransactionContext) error {
	stateNonce := context.GetNonce(transaction.Sender)
	if transaction.Nonce != stateNonce {
		return fmt.Errorf("nonce mismatch: %v != %v", transaction.Nonce, stateNonce)
	}
	if transaction.Recipient != nil {
		context.SetNonce(transaction.Sender, stateNonce+1)
	}
	return nil
}

// setUpAccessList marks the accounts and storage slots named by the
// transaction as warm, together with the implicitly accessed accounts.
func setUpAccessList(
	blockParams magma.BlockParameters,
	transaction magma.Transaction,
	context magma.TransactionContext,
) {
	if blockParams.Revision < magma.R09_Berlin {
		return
	}

	context.AccessAccount(transaction.Sender)
	if transaction.Recipient != nil {
		context.AccessAccount(*transaction.Recipient)
	}
	for _, accessTuple := range transaction.AccessList {
		context.AccessAccount(accessTuple.Address)
		for _, key := range accessTuple.Keys {
			context.AccessStorage(accessTuple.Address, key)
		}
	}

	if blockParams.Revision >= magma.R12_Shanghai {
		context.AccessAccount(blockParams.Coinbase)
	}
}
