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
	"fmt"

	"github.com/magma-foundation/magma/magma"
	"github.com/magma-foundation/magma/magma/vm"
)

// status is the current state of an execution frame.
type status byte

const (
	statusRunning        status = iota
	statusStopped               // execution finished with a STOP instruction
	statusReverted              // execution finished with a REVERT instruction
	statusReturned              // execution finished with a RETURN instruction
	statusSelfDestructed        // execution finished with a SELFDESTRUCT instruction
	statusFailed                // execution failed, consuming all remaining gas
)

func (s status) String() string {
	switch s {
	case statusRunning:
		return "running"
	case statusStopped:
		return "stopped"
	case statusReverted:
		return "reverted"
	case statusReturned:
		return "returned"
	case statusSelfDestructed:
		return "self-destructed"
	case statusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", byte(s))
}

// context is the execution environment of an interpreter run. It contains all
// the necessary state to execute a contract.
type context struct {
	// Context data
	params  magma.Parameters
	context magma.RunContext

	// Execution state
	pc     int32
	gas    magma.Gas
	refund magma.Gas
	stack  *stack
	memory *Memory

	// Inputs
	code     []byte
	analysis *codeAnalysis

	// Intermediate data
	returnData []byte
}

// useGas reduces the gas level by the given amount. If the gas level drops
// below zero, the gas level is set to zero and an error is returned.
func (c *context) useGas(amount magma.Gas) error {
	if c.gas < 0 || amount < 0 || c.gas < amount {
		c.gas = 0
		return errOutOfGas
	}
	c.gas -= amount
	return nil
}

// isAtLeast returns true if the context is running at least at the given
// revision.
func (c *context) isAtLeast(revision magma.Revision) bool {
	return c.params.Revision >= revision
}

// run executes the code in the given context to completion and derives the
// execution result from the final state.
func run(c *context) (magma.Result, error) {
	return generateResult(steps(c), c)
}

func generateResult(endStatus status, c *context) (magma.Result, error) {
	switch endStatus {
	case statusStopped, statusSelfDestructed:
		return magma.Result{
			Success:   true,
			GasLeft:   c.gas,
			GasRefund: c.refund,
		}, nil
	case statusReturned:
		return magma.Result{
			Success:   true,
			Output:    c.returnData,
			GasLeft:   c.gas,
			GasRefund: c.refund,
		}, nil
	case statusReverted:
		return magma.Result{
			Success: false,
			Output:  c.returnData,
			GasLeft: c.gas,
		}, nil
	case statusFailed:
		// All gas is forfeited on failures.
		return magma.Result{Success: false}, nil
	}
	return magma.Result{}, fmt.Errorf("unexpected final interpreter status %v", endStatus)
}

// steps is the main execution loop, processing instructions until the
// execution terminates.
func steps(c *context) status {
	staticGas := getStaticGasPrices(c.params.Revision)
	for {
		if int(c.pc) >= len(c.code) {
			return statusStopped
		}

		op := vm.OpCode(c.code[c.pc])

		// Charge static gas price and check stack boundaries for this
		// instruction before executing it.
		if err := c.useGas(staticGas[op]); err != nil {
			return statusFailed
		}
		if err := checkStackLimits(c.stack.len(), op); err != nil {
			return statusFailed
		}

		var err error
		switch op {
		case vm.STOP:
			return statusStopped
		case vm.RETURN:
			if err := opEndWithResult(c); err != nil {
				return statusFailed
			}
			return statusReturned
		case vm.REVERT:
			if err := opEndWithResult(c); err != nil {
				return statusFailed
			}
			return statusReverted
		case vm.SELFDESTRUCT:
			res, err := opSelfdestruct(c)
			if err != nil {
				return statusFailed
			}
			return res
		case vm.INVALID:
			return statusFailed

		case vm.POP:
			c.stack.pop()
		case vm.PUSH0:
			err = opPush0(c)
		case vm.PUSH1, vm.PUSH2, vm.PUSH3, vm.PUSH4, vm.PUSH5, vm.PUSH6,
			vm.PUSH7, vm.PUSH8, vm.PUSH9, vm.PUSH10, vm.PUSH11, vm.PUSH12,
			vm.PUSH13, vm.PUSH14, vm.PUSH15, vm.PUSH16, vm.PUSH17, vm.PUSH18,
			vm.PUSH19, vm.PUSH20, vm.PUSH21, vm.PUSH22, vm.PUSH23, vm.PUSH24,
			vm.PUSH25, vm.PUSH26, vm.PUSH27, vm.PUSH28, vm.PUSH29, vm.PUSH30,
			vm.PUSH31, vm.PUSH32:
			opPush(c, int(op-vm.PUSH1)+1)
		case vm.DUP1, vm.DUP2, vm.DUP3, vm.DUP4, vm.DUP5, vm.DUP6, vm.DUP7,
			vm.DUP8, vm.DUP9, vm.DUP10, vm.DUP11, vm.DUP12, vm.DUP13,
			vm.DUP14, vm.DUP15, vm.DUP16:
			c.stack.dup(int(op - vm.DUP1))
		case vm.SWAP1, vm.SWAP2, vm.SWAP3, vm.SWAP4, vm.SWAP5, vm.SWAP6,
			vm.SWAP7, vm.SWAP8, vm.SWAP9, vm.SWAP10, vm.SWAP11, vm.SWAP12,
			vm.SWAP13, vm.SWAP14, vm.SWAP15, vm.SWAP16:
			c.stack.swap(int(op-vm.SWAP1) + 1)
		case vm.LOG0, vm.LOG1, vm.LOG2, vm.LOG3, vm.LOG4:
			err = opLog(c, int(op-vm.LOG0))

		case vm.ADD:
			opAdd(c)
		case vm.MUL:
			opMul(c)
		case vm.SUB:
			opSub(c)
		case vm.DIV:
			opDiv(c)
		case vm.SDIV:
			opSdiv(c)
		case vm.MOD:
			opMod(c)
		case vm.SMOD:
			opSmod(c)
		case vm.ADDMOD:
			opAddmod(c)
		case vm.MULMOD:
			opMulmod(c)
		case vm.EXP:
			err = opExp(c)
		case vm.SIGNEXTEND:
			opSignExtend(c)
		case vm.LT:
			opLt(c)
		case vm.GT:
			opGt(c)
		case vm.SLT:
			opSlt(c)
		case vm.SGT:
			opSgt(c)
		case vm.EQ:
			opEq(c)
		case vm.ISZERO:
			opIszero(c)
		case vm.AND:
			opAnd(c)
		case vm.OR:
			opOr(c)
		case vm.XOR:
			opXor(c)
		case vm.NOT:
			opNot(c)
		case vm.BYTE:
			opByte(c)
		case vm.SHL:
			opShl(c)
		case vm.SHR:
			opShr(c)
		case vm.SAR:
			opSar(c)
		case vm.SHA3:
			err = opSha3(c)

		case vm.ADDRESS:
			opAddress(c)
		case vm.BALANCE:
			err = opBalance(c)
		case vm.ORIGIN:
			opOrigin(c)
		case vm.CALLER:
			opCaller(c)
		case vm.CALLVALUE:
			opCallvalue(c)
		case vm.CALLDATALOAD:
			opCallDataload(c)
		case vm.CALLDATASIZE:
			opCallDatasize(c)
		case vm.CALLDATACOPY:
			err = opCallDataCopy(c)
		case vm.CODESIZE:
			opCodeSize(c)
		case vm.CODECOPY:
			err = opCodeCopy(c)
		case vm.GASPRICE:
			opGasPrice(c)
		case vm.EXTCODESIZE:
			err = opExtcodesize(c)
		case vm.EXTCODECOPY:
			err = opExtCodeCopy(c)
		case vm.RETURNDATASIZE:
			opReturnDataSize(c)
		case vm.RETURNDATACOPY:
			err = opReturnDataCopy(c)
		case vm.EXTCODEHASH:
			err = opExtcodehash(c)

		case vm.BLOCKHASH:
			opBlockhash(c)
		case vm.COINBASE:
			opCoinbase(c)
		case vm.TIMESTAMP:
			opTimestamp(c)
		case vm.NUMBER:
			opNumber(c)
		case vm.PREVRANDAO:
			opPrevRandao(c)
		case vm.GASLIMIT:
			opGasLimit(c)
		case vm.CHAINID:
			opChainId(c)
		case vm.SELFBALANCE:
			opSelfbalance(c)
		case vm.BASEFEE:
			err = opBaseFee(c)
		case vm.BLOBHASH:
			err = opBlobHash(c)
		case vm.BLOBBASEFEE:
			err = opBlobBaseFee(c)

		case vm.MLOAD:
			err = opMload(c)
		case vm.MSTORE:
			err = opMstore(c)
		case vm.MSTORE8:
			err = opMstore8(c)
		case vm.MSIZE:
			opMsize(c)
		case vm.MCOPY:
			err = opMcopy(c)
		case vm.SLOAD:
			err = opSload(c)
		case vm.SSTORE:
			err = opSstore(c)
		case vm.TLOAD:
			err = opTload(c)
		case vm.TSTORE:
			err = opTstore(c)

		case vm.JUMP:
			err = opJump(c)
		case vm.JUMPI:
			err = opJumpi(c)
		case vm.JUMPDEST:
			// nothing to do
		case vm.PC:
			opPc(c)
		case vm.GAS:
			opGas(c)

		case vm.CREATE:
			err = opCreate(c)
		case vm.CREATE2:
			err = opCreate2(c)
		case vm.CALL:
			err = opCall(c)
		case vm.CALLCODE:
			err = opCallCode(c)
		case vm.STATICCALL:
			err = opStaticCall(c)
		case vm.DELEGATECALL:
			err = opDelegateCall(c)

		default:
			err = errInvalidOpCode
		}

		if err != nil {
			return statusFailed
		}
		c.pc++
	}
}

// ------------------ Stack Limits ------------------

// stackLimits defines the range of stack sizes for which an instruction can
// be executed without causing a stack underflow or overflow.
type stackLimits struct {
	min int // the minimum stack size required by an instruction
	max int // the maximum stack size allowed before the instruction
}

var _precomputedStackLimits = func() [256]stackLimits {
	res := [256]stackLimits{}
	for i := 0; i < 256; i++ {
		res[i] = computeStackLimits(vm.OpCode(i))
	}
	return res
}()

func checkStackLimits(size int, op vm.OpCode) error {
	limits := _precomputedStackLimits[op]
	if size < limits.min {
		return errStackUnderflow
	}
	if size > limits.max {
		return errStackOverflow
	}
	return nil
}

// newStackLimits computes the execution bounds for an instruction popping and
// pushing the given number of elements.
func newStackLimits(pops, pushes int) stackLimits {
	grow := pushes - pops
	if grow < 0 {
		grow = 0
	}
	return stackLimits{min: pops, max: maxStackSize - grow}
}

func computeStackLimits(op vm.OpCode) stackLimits {
	if vm.PUSH1 <= op && op <= vm.PUSH32 {
		return newStackLimits(0, 1)
	}
	if vm.DUP1 <= op && op <= vm.DUP16 {
		n := int(op) - int(vm.DUP1) + 1
		return newStackLimits(n, n+1)
	}
	if vm.SWAP1 <= op && op <= vm.SWAP16 {
		n := int(op) - int(vm.SWAP1) + 2
		return newStackLimits(n, n)
	}
	if vm.LOG0 <= op && op <= vm.LOG4 {
		return newStackLimits(int(op)-int(vm.LOG0)+2, 0)
	}
	switch op {
	case vm.JUMPDEST, vm.STOP, vm.INVALID:
		return newStackLimits(0, 0)
	case vm.ADD, vm.SUB, vm.MUL, vm.DIV, vm.SDIV, vm.MOD, vm.SMOD, vm.EXP,
		vm.SIGNEXTEND, vm.SHA3, vm.LT, vm.GT, vm.SLT, vm.SGT, vm.EQ,
		vm.AND, vm.XOR, vm.OR, vm.BYTE, vm.SHL, vm.SHR, vm.SAR:
		return newStackLimits(2, 1)
	case vm.ADDMOD, vm.MULMOD:
		return newStackLimits(3, 1)
	case vm.ISZERO, vm.NOT, vm.BALANCE, vm.CALLDATALOAD, vm.EXTCODESIZE,
		vm.BLOCKHASH, vm.MLOAD, vm.SLOAD, vm.TLOAD, vm.EXTCODEHASH,
		vm.BLOBHASH:
		return newStackLimits(1, 1)
	case vm.PUSH0, vm.MSIZE, vm.ADDRESS, vm.ORIGIN, vm.CALLER, vm.CALLVALUE,
		vm.CALLDATASIZE, vm.CODESIZE, vm.GASPRICE, vm.COINBASE,
		vm.TIMESTAMP, vm.NUMBER, vm.PREVRANDAO, vm.GASLIMIT, vm.PC, vm.GAS,
		vm.RETURNDATASIZE, vm.SELFBALANCE, vm.CHAINID, vm.BASEFEE,
		vm.BLOBBASEFEE:
		return newStackLimits(0, 1)
	case vm.POP, vm.JUMP, vm.SELFDESTRUCT:
		return newStackLimits(1, 0)
	case vm.MSTORE, vm.MSTORE8, vm.SSTORE, vm.TSTORE, vm.JUMPI, vm.RETURN,
		vm.REVERT:
		return newStackLimits(2, 0)
	case vm.CALLDATACOPY, vm.CODECOPY, vm.RETURNDATACOPY, vm.MCOPY:
		return newStackLimits(3, 0)
	case vm.EXTCODECOPY:
		return newStackLimits(4, 0)
	case vm.CREATE:
		return newStackLimits(3, 1)
	case vm.CREATE2:
		return newStackLimits(4, 1)
	case vm.CALL, vm.CALLCODE:
		return newStackLimits(7, 1)
	case vm.STATICCALL, vm.DELEGATECALL:
		return newStackLimits(6, 1)
	}
	return newStackLimits(0, 0)
}
