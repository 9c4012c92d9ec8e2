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
	"bytes"
	"math"

	"github.com/holiman/uint256"
	"github.com/magma-foundation/magma/magma"
)

func opEndWithResult(c *context) error {
	offset := *c.stack.pop()
	size := *c.stack.pop()
	if err := checkSizeOffsetUint64Overflow(&offset, &size); err != nil {
		return err
	}
	var err error
	c.returnData, err = c.memory.getSlice(offset.Uint64(), size.Uint64(), c)
	return err
}

func opPc(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.pc))
}

func opJump(c *context) error {
	destination := c.stack.pop()
	// overflow check
	if !destination.IsUint64() || destination.Uint64() > math.MaxInt32 {
		return errInvalidJump
	}
	dest := destination.Uint64()
	if !c.analysis.isJumpdest(dest) {
		return errInvalidJump
	}
	// Update the PC to the jump destination -1 since the interpreter will
	// increase the PC by 1 afterwards.
	c.pc = int32(dest) - 1
	return nil
}

func opJumpi(c *context) error {
	destination := c.stack.pop()
	condition := c.stack.pop()
	if !condition.IsZero() {
		// overflow check
		if !destination.IsUint64() || destination.Uint64() > math.MaxInt32 {
			return errInvalidJump
		}
		dest := destination.Uint64()
		if !c.analysis.isJumpdest(dest) {
			return errInvalidJump
		}
		c.pc = int32(dest) - 1
	}
	return nil
}

// opPush reads the n data bytes following the current PC from the code and
// pushes them as a single big-endian word. Data reaching beyond the end of
// the code is treated as zero. The PC is advanced to the last data byte.
func opPush(c *context, n int) {
	z := c.stack.pushUndefined()
	var value [32]byte
	data := c.code[c.pc+1:]
	if len(data) > n {
		data = data[:n]
	}
	copy(value[:n], data)
	z.SetBytes(value[:n])
	c.pc += int32(n)
}

func opPush0(c *context) error {
	if !c.isAtLeast(magma.R12_Shanghai) {
		return errInvalidRevision
	}
	z := c.stack.pushUndefined()
	z[3], z[2], z[1], z[0] = 0, 0, 0, 0
	return nil
}

func opMstore(c *context) error {
	addr := c.stack.pop()
	value := c.stack.pop()
	if !addr.IsUint64() {
		return errOverflow
	}
	return c.memory.setWord(addr.Uint64(), value, c)
}

func opMstore8(c *context) error {
	addr := c.stack.pop()
	value := c.stack.pop()
	if !addr.IsUint64() {
		return errOverflow
	}
	return c.memory.setByte(addr.Uint64(), byte(value.Uint64()), c)
}

func opMload(c *context) error {
	trg := c.stack.peek()
	addr := *trg

	if !addr.IsUint64() {
		return errOverflow
	}
	return c.memory.readWord(addr.Uint64(), trg, c)
}

func opMsize(c *context) {
	c.stack.pushUndefined().SetUint64(c.memory.length())
}

func opMcopy(c *context) error {

	if !c.isAtLeast(magma.R13_Cancun) {
		return errInvalidRevision
	}

	destAddr := c.stack.pop()
	srcAddr := c.stack.pop()
	sizeU256 := c.stack.pop()

	if sizeU256.IsZero() {
		// zero size skips expansions although offsets may be out of bounds
		return nil
	}

	destOffset, destOverflow := destAddr.Uint64WithOverflow()
	srcOffset, srcOverflow := srcAddr.Uint64WithOverflow()
	if destOverflow || srcOverflow || !sizeU256.IsUint64() {
		return errOverflow
	}

	size := sizeU256.Uint64()
	price := magma.Gas(3 * magma.SizeInWords(size))
	if err := c.useGas(price); err != nil {
		return err
	}

	data, err := c.memory.getSlice(srcOffset, size, c)
	if err != nil {
		return err
	}
	return c.memory.set(destOffset, data, c)
}

func opSstore(c *context) error {

	// SStore is a write instruction, it shall not be executed in static mode.
	if c.params.Static {
		return errStaticContextViolation
	}

	// EIP-2200 demands that at least 2300 gas is available for SSTORE
	if c.gas <= SstoreSentryGas {
		return errOutOfGas
	}

	key := magma.Key(c.stack.pop().Bytes32())
	value := magma.Word(c.stack.pop().Bytes32())

	cost := magma.Gas(0)
	if c.isAtLeast(magma.R09_Berlin) &&
		c.context.AccessStorage(c.params.Recipient, key) == magma.ColdAccess {
		cost += ColdSloadCost
	}

	storageStatus := c.context.SetStorage(c.params.Recipient, key, value)

	cost += getDynamicCostsForSstore(c.params.Revision, storageStatus)
	if err := c.useGas(cost); err != nil {
		return err
	}

	c.refund += getRefundForSstore(c.params.Revision, storageStatus)
	return nil
}

func opSload(c *context) error {
	top := c.stack.peek()

	addr := c.params.Recipient
	slot := magma.Key(top.Bytes32())
	if c.isAtLeast(magma.R09_Berlin) {
		// charge costs for warm/cold slot access
		costs := WarmStorageReadCost
		if c.context.AccessStorage(addr, slot) == magma.ColdAccess {
			costs = ColdSloadCost
		}
		if err := c.useGas(costs); err != nil {
			return err
		}
	}
	value := c.context.GetStorage(addr, slot)
	top.SetBytes32(value[:])
	return nil
}

func opTstore(c *context) error {
	if !c.isAtLeast(magma.R13_Cancun) {
		return errInvalidRevision
	}

	// Transient storage writes are state modifications and thus forbidden
	// in a static context.
	if c.params.Static {
		return errStaticContextViolation
	}

	key := magma.Key(c.stack.pop().Bytes32())
	value := magma.Word(c.stack.pop().Bytes32())
	c.context.SetTransientStorage(c.params.Recipient, key, value)
	return nil
}

func opTload(c *context) error {
	if !c.isAtLeast(magma.R13_Cancun) {
		return errInvalidRevision
	}

	top := c.stack.peek()
	key := magma.Key(top.Bytes32())
	value := c.context.GetTransientStorage(c.params.Recipient, key)
	top.SetBytes32(value[:])
	return nil
}

func opCaller(c *context) {
	c.stack.pushUndefined().SetBytes20(c.params.Sender[:])
}

func opCallvalue(c *context) {
	c.stack.pushUndefined().SetBytes32(c.params.Value[:])
}

func opCallDatasize(c *context) {
	size := len(c.params.Input)
	c.stack.pushUndefined().SetUint64(uint64(size))
}

func opCallDataload(c *context) {
	top := c.stack.peek()
	if !top.IsUint64() {
		top.Clear()
		return
	}

	offset := top.Uint64()
	top.SetBytes(getData(c.params.Input, offset, 32))
}

func opCallDataCopy(c *context) error {
	var (
		memOffset  = c.stack.pop()
		dataOffset = c.stack.pop()
		length     = c.stack.pop()
	)
	dataOffset64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		dataOffset64 = math.MaxUint64
	}

	if err := checkSizeOffsetUint64Overflow(memOffset, length); err != nil {
		return err
	}

	// Charge for the copy costs
	words := magma.SizeInWords(length.Uint64())
	if err := c.useGas(magma.Gas(3 * words)); err != nil {
		return err
	}

	data, err := c.memory.getSlice(memOffset.Uint64(), length.Uint64(), c)
	if err != nil {
		return err
	}
	copy(data, getData(c.params.Input, dataOffset64, length.Uint64()))
	return nil
}

func opAnd(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.And(a, b)
}

func opOr(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Or(a, b)
}

func opXor(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Xor(a, b)
}

func opNot(c *context) {
	a := c.stack.peek()
	a.Not(a)
}

func opIszero(c *context) {
	a := c.stack.peek()
	if a.IsZero() {
		a.SetOne()
	} else {
		a.Clear()
	}
}

func opByte(c *context) {
	index := c.stack.pop()
	value := c.stack.peek()
	value.Byte(index)
}

func opShl(c *context) {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
}

func opShr(c *context) {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
}

func opSar(c *context) {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.LtUint64(256) {
		value.SRsh(value, uint(shift.Uint64()))
	} else if value.Sign() >= 0 {
		value.Clear()
	} else {
		value.SetAllOne()
	}
}

func opSignExtend(c *context) {
	back := c.stack.pop()
	num := c.stack.peek()
	num.ExtendSign(num, back)
}

func opAdd(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Add(a, b)
}

func opSub(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Sub(a, b)
}

func opMul(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mul(a, b)
}

func opDiv(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Div(a, b)
}

func opSdiv(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SDiv(a, b)
}

func opMod(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mod(a, b)
}

func opSmod(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SMod(a, b)
}

func opAddmod(c *context) {
	a := c.stack.pop()
	b := c.stack.pop()
	m := c.stack.peek()
	m.AddMod(a, b, m)
}

func opMulmod(c *context) {
	a := c.stack.pop()
	b := c.stack.pop()
	m := c.stack.peek()
	m.MulMod(a, b, m)
}

func opLt(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Lt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opGt(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Gt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opSlt(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Slt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opSgt(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Sgt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opEq(c *context) {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Eq(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
}

func opExp(c *context) error {
	base, exponent := c.stack.pop(), c.stack.peek()
	if err := c.useGas(magma.Gas(50 * exponent.ByteLen())); err != nil {
		return err
	}
	exponent.Exp(base, exponent)
	return nil
}

func opSha3(c *context) error {
	offset, size := c.stack.pop(), c.stack.peek()

	if checkSizeOffsetUint64Overflow(offset, size) != nil {
		return errOverflow
	}

	data, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), c)
	if err != nil {
		return err
	}

	// charge dynamic gas price
	words := magma.SizeInWords(size.Uint64())
	if err := c.useGas(magma.Gas(6 * words)); err != nil {
		return err
	}

	hash := Keccak256(data)
	size.SetBytes32(hash[:])
	return nil
}

func opGas(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.gas))
}

func opGasPrice(c *context) {
	price := c.params.GasPrice
	c.stack.pushUndefined().SetBytes32(price[:])
}

func opPrevRandao(c *context) {
	prevRandao := c.params.PrevRandao
	c.stack.pushUndefined().SetBytes32(prevRandao[:])
}

func opTimestamp(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.params.Timestamp))
}

func opNumber(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.params.BlockNumber))
}

func opCoinbase(c *context) {
	coinbase := c.params.Coinbase
	c.stack.pushUndefined().SetBytes20(coinbase[:])
}

func opGasLimit(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(c.params.GasLimit))
}

func opBalance(c *context) error {
	slot := c.stack.peek()
	address := magma.Address(slot.Bytes20())
	if c.isAtLeast(magma.R09_Berlin) {
		if err := c.useGas(getAccessCost(c.context.AccessAccount(address))); err != nil {
			return err
		}
	}
	balance := c.context.GetBalance(address)
	slot.SetBytes32(balance[:])
	return nil
}

func opSelfbalance(c *context) {
	balance := c.context.GetBalance(c.params.Recipient)
	c.stack.pushUndefined().SetBytes32(balance[:])
}

func opBaseFee(c *context) error {
	if !c.isAtLeast(magma.R10_London) {
		return errInvalidRevision
	}
	fee := c.params.BaseFee
	c.stack.pushUndefined().SetBytes32(fee[:])
	return nil
}

func opBlobHash(c *context) error {
	if !c.isAtLeast(magma.R13_Cancun) {
		return errInvalidRevision
	}

	index := c.stack.pop()
	blobHashesLength := uint64(len(c.params.BlobHashes))
	if index.IsUint64() && index.Uint64() < blobHashesLength {
		c.stack.pushUndefined().SetBytes32(c.params.BlobHashes[index.Uint64()][:])
	} else {
		c.stack.push(uint256.NewInt(0))
	}
	return nil
}

func opBlobBaseFee(c *context) error {
	if !c.isAtLeast(magma.R13_Cancun) {
		return errInvalidRevision
	}
	fee := c.params.BlobBaseFee
	c.stack.pushUndefined().SetBytes32(fee[:])
	return nil
}

func opSelfdestruct(c *context) (status, error) {

	// SelfDestruct is a write instruction, it shall not be executed in
	// static mode.
	if c.params.Static {
		return statusStopped, errStaticContextViolation
	}

	beneficiary := magma.Address(c.stack.pop().Bytes20())
	cost := magma.Gas(0)
	if c.isAtLeast(magma.R09_Berlin) {
		// EIP-2929 only charges for cold beneficiary accesses.
		if accessStatus := c.context.AccessAccount(beneficiary); accessStatus != magma.WarmAccess {
			cost += getAccessCost(accessStatus)
		}
	}
	cost += selfDestructNewAccountCost(c.context.AccountExists(beneficiary),
		c.context.GetBalance(c.params.Recipient))
	if err := c.useGas(cost); err != nil {
		return statusStopped, err
	}

	destructed := c.context.SelfDestruct(c.params.Recipient, beneficiary)
	c.refund += selfDestructRefund(destructed, c.params.Revision)
	return statusSelfDestructed, nil
}

// selfDestructNewAccountCost is the extra charge for transferring the
// remaining balance to an account that does not yet exist, analogous to the
// new-account cost of a value-transferring call.
func selfDestructNewAccountCost(accountExists bool, balance magma.Value) magma.Gas {
	if !accountExists && balance != (magma.Value{}) {
		return CreateBySelfdestructGas
	}
	return 0
}

func selfDestructRefund(destructed bool, revision magma.Revision) magma.Gas {
	// EIP-3529 removed the selfdestruct refund.
	if destructed && revision < magma.R10_London {
		return SelfdestructRefundGas
	}
	return 0
}

func opChainId(c *context) {
	id := c.params.ChainID
	c.stack.pushUndefined().SetBytes32(id[:])
}

func opBlockhash(c *context) {
	num := c.stack.peek()
	num64, overflow := num.Uint64WithOverflow()

	if overflow {
		num.Clear()
		return
	}
	var upper, lower uint64
	upper = uint64(c.params.BlockNumber)
	if upper < 257 {
		lower = 0
	} else {
		lower = upper - 256
	}
	if num64 >= lower && num64 < upper {
		hash := c.context.GetBlockHash(int64(num64))
		num.SetBytes(hash[:])
	} else {
		num.Clear()
	}
}

func opAddress(c *context) {
	c.stack.pushUndefined().SetBytes20(c.params.Recipient[:])
}

func opOrigin(c *context) {
	origin := c.params.Origin
	c.stack.pushUndefined().SetBytes20(origin[:])
}

func opCodeSize(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(len(c.code)))
}

func opCodeCopy(c *context) error {
	var (
		memOffset  = c.stack.pop()
		codeOffset = c.stack.pop()
		length     = c.stack.pop()
	)

	if err := checkSizeOffsetUint64Overflow(memOffset, length); err != nil {
		return err
	}

	uint64CodeOffset, overflow := codeOffset.Uint64WithOverflow()
	if overflow {
		uint64CodeOffset = math.MaxUint64
	}

	// Charge for length of copied code
	words := magma.SizeInWords(length.Uint64())
	if err := c.useGas(magma.Gas(3 * words)); err != nil {
		return err
	}

	data, err := c.memory.getSlice(memOffset.Uint64(), length.Uint64(), c)
	if err != nil {
		return err
	}
	copy(data, getData(c.code, uint64CodeOffset, length.Uint64()))
	return nil
}

func opExtcodesize(c *context) error {
	top := c.stack.peek()
	address := magma.Address(top.Bytes20())
	if c.isAtLeast(magma.R09_Berlin) {
		if err := c.useGas(getAccessCost(c.context.AccessAccount(address))); err != nil {
			return err
		}
	}
	top.SetUint64(uint64(c.context.GetCodeSize(address)))
	return nil
}

func opExtcodehash(c *context) error {
	slot := c.stack.peek()
	address := magma.Address(slot.Bytes20())
	if c.isAtLeast(magma.R09_Berlin) {
		if err := c.useGas(getAccessCost(c.context.AccessAccount(address))); err != nil {
			return err
		}
	}
	if !c.context.AccountExists(address) {
		slot.Clear()
	} else {
		hash := c.context.GetCodeHash(address)
		slot.SetBytes32(hash[:])
	}
	return nil
}

func opExtCodeCopy(c *context) error {
	var (
		stack      = c.stack
		a          = stack.pop()
		memOffset  = stack.pop()
		codeOffset = stack.pop()
		length     = stack.pop()
	)
	if err := checkSizeOffsetUint64Overflow(memOffset, length); err != nil {
		return err
	}

	// Charge for length of copied code
	words := magma.SizeInWords(length.Uint64())
	if err := c.useGas(magma.Gas(3 * words)); err != nil {
		return err
	}

	address := magma.Address(a.Bytes20())
	if c.isAtLeast(magma.R09_Berlin) {
		if err := c.useGas(getAccessCost(c.context.AccessAccount(address))); err != nil {
			return err
		}
	}
	var uint64CodeOffset uint64
	if codeOffset.IsUint64() {
		uint64CodeOffset = codeOffset.Uint64()
	} else {
		uint64CodeOffset = math.MaxUint64
	}

	data, err := c.memory.getSlice(memOffset.Uint64(), length.Uint64(), c)
	if err != nil {
		return err
	}
	copy(data, getData(c.context.GetCode(address), uint64CodeOffset, length.Uint64()))
	return nil
}

func opReturnDataSize(c *context) {
	c.stack.pushUndefined().SetUint64(uint64(len(c.returnData)))
}

func opReturnDataCopy(c *context) error {
	var (
		memOffset  = c.stack.pop()
		dataOffset = c.stack.pop()
		length     = c.stack.pop()
	)

	offset64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		return errReturnDataOutOfBounds
	}
	var end = dataOffset
	end.Add(dataOffset, length)
	end64, overflow := end.Uint64WithOverflow()
	if overflow {
		return errReturnDataOutOfBounds
	}

	if uint64(len(c.returnData)) < end64 {
		return errReturnDataOutOfBounds
	}

	if err := checkSizeOffsetUint64Overflow(memOffset, length); err != nil {
		return err
	}

	words := magma.SizeInWords(length.Uint64())
	if err := c.useGas(magma.Gas(3 * words)); err != nil {
		return err
	}

	return c.memory.set(memOffset.Uint64(), c.returnData[offset64:end64], c)
}

func opCreate(c *context) error {
	return genericCreate(c, magma.Create)
}

func opCreate2(c *context) error {
	return genericCreate(c, magma.Create2)
}

func genericCreate(c *context, kind magma.CallKind) error {

	// Create is a write instruction, it shall not be executed in static mode.
	if c.params.Static {
		return errStaticContextViolation
	}

	var (
		value  = c.stack.pop()
		offset = c.stack.pop()
		size   = c.stack.pop()
		salt   = magma.Hash{}
	)
	if kind == magma.Create2 {
		salt = c.stack.pop().Bytes32()
	}

	if checkSizeOffsetUint64Overflow(offset, size) != nil {
		return errOverflow
	}

	sizeU64 := size.Uint64()
	input, err := c.memory.getSlice(offset.Uint64(), sizeU64, c)
	if err != nil {
		return err
	}

	if c.isAtLeast(magma.R12_Shanghai) {
		initCodeCost, err := computeCodeSizeCost(sizeU64)
		if err != nil {
			return err
		}
		if err = c.useGas(initCodeCost); err != nil {
			return err
		}
	}

	if kind == magma.Create2 {
		// Charge for hashing the init code to compute the target address.
		words := magma.SizeInWords(sizeU64)
		if err := c.useGas(magma.Gas(6 * words)); err != nil {
			return err
		}
	}

	if !value.IsZero() {
		balance := c.context.GetBalance(c.params.Recipient)
		balanceU256 := new(uint256.Int).SetBytes(balance[:])

		if value.Gt(balanceU256) {
			c.stack.pushUndefined().Clear()
			c.returnData = nil
			return nil
		}
	}

	// All but one 64th of the remaining gas is forwarded per EIP-150.
	gas := c.gas
	gas -= gas / 64
	if err := c.useGas(gas); err != nil {
		return err
	}

	res, err := c.context.Call(kind, magma.CallParameters{
		Sender: c.params.Recipient,
		Value:  magma.Value(value.Bytes32()),
		Input:  input,
		Gas:    gas,
		Salt:   salt,
	})

	// Push item on the stack based on the returned error.
	success := c.stack.pushUndefined()
	if !res.Success || err != nil {
		success.Clear()
	} else {
		success.SetBytes20(res.CreatedAddress[:])
	}

	if !res.Success && err == nil {
		c.returnData = res.Output
	} else {
		c.returnData = nil
	}
	c.gas += res.GasLeft
	c.refund += res.GasRefund
	return nil
}

// computeCodeSizeCost checks the size of the init code. Returns the gas cost
// for the size of the init code, or an error if the size is greater than the
// maximum init code size of EIP-3860.
func computeCodeSizeCost(size uint64) (magma.Gas, error) {
	const (
		maxCodeSize     = 24576           // Maximum bytecode to permit for a contract
		maxInitCodeSize = 2 * maxCodeSize // Maximum initcode to permit in a creation transaction and create instructions
	)
	if size > maxInitCodeSize {
		return 0, errInitCodeTooLarge
	}
	// Once per word of the init code when creating a contract.
	const initCodeWordGas = 2
	return magma.Gas(initCodeWordGas * magma.SizeInWords(size)), nil
}

// getData returns a slice of the given size from data starting at the given
// offset, padded with zeros on the right.
func getData(data []byte, start uint64, size uint64) []byte {
	length := uint64(len(data))
	if start > length {
		start = length
	}
	end := start + size
	if end > length {
		end = length
	}
	res := make([]byte, int(size))
	copy(res, data[start:end])
	return res
}

func checkSizeOffsetUint64Overflow(offset, size *uint256.Int) error {
	if size.IsZero() {
		return nil
	}
	if !offset.IsUint64() || !size.IsUint64() || offset.Uint64()+size.Uint64() < offset.Uint64() {
		return errOverflow
	}
	return nil
}

func genericCall(c *context, kind magma.CallKind) error {
	stack := c.stack
	value := uint256.NewInt(0)

	// Pop call parameters.
	providedGas, addr := stack.pop(), stack.pop()
	if kind == magma.Call || kind == magma.CallCode {
		value = stack.pop()
	}
	inOffset, inSize, retOffset, retSize := stack.pop(), stack.pop(), stack.pop(), stack.pop()

	toAddr := magma.Address(addr.Bytes20())

	if checkSizeOffsetUint64Overflow(inOffset, inSize) != nil {
		return errOverflow
	}

	if checkSizeOffsetUint64Overflow(retOffset, retSize) != nil {
		return errOverflow
	}

	// Get input arguments and the output buffer from the memory.
	args, err := c.memory.getSlice(inOffset.Uint64(), inSize.Uint64(), c)
	if err != nil {
		return err
	}
	output, err := c.memory.getSlice(retOffset.Uint64(), retSize.Uint64(), c)
	if err != nil {
		return err
	}

	// From Berlin onwards access cost changes depending on warm/cold access.
	if c.isAtLeast(magma.R09_Berlin) {
		if err := c.useGas(getAccessCost(c.context.AccessAccount(toAddr))); err != nil {
			return err
		}
	}

	// For static and delegate calls, the following value checks are always
	// false. Charge for transferring a non-zero value.
	if !value.IsZero() {
		if err := c.useGas(CallValueTransferGas); err != nil {
			return err
		}
	}

	// EIP-158 states that non-zero value calls that create a new account
	// are charged an additional gas fee.
	if kind == magma.Call && !value.IsZero() && !c.context.AccountExists(toAddr) {
		if err := c.useGas(CallNewAccountGas); err != nil {
			return err
		}
	}

	// At most all but one 64th of the available gas in one scope may be
	// passed to a nested call, as defined by EIP-150.
	nestedCallGas := c.gas - c.gas/64
	if providedGas.IsUint64() && providedGas.Uint64() <= math.MaxInt64 &&
		nestedCallGas >= magma.Gas(providedGas.Uint64()) {
		nestedCallGas = magma.Gas(providedGas.Uint64())
	}
	if err := c.useGas(nestedCallGas); err != nil {
		// this usage can never fail because the endowment is at most
		// 63/64 of the current gas level
		return err
	}

	if !value.IsZero() {
		nestedCallGas += CallStipend
	}

	// Check that the caller has enough balance to transfer the requested
	// value.
	if (kind == magma.Call || kind == magma.CallCode) && !value.IsZero() {
		balance := c.context.GetBalance(c.params.Recipient)
		balanceU256 := new(uint256.Int).SetBytes32(balance[:])
		if balanceU256.Lt(value) {
			c.stack.pushUndefined().Clear()
			c.returnData = nil
			c.gas += nestedCallGas // the gas sent to the nested contract is returned
			return nil
		}
	}

	// In static mode, recursive calls are to be treated like static calls.
	if c.params.Static && kind == magma.Call {
		kind = magma.StaticCall
	}

	// Prepare arguments, depending on call kind.
	callParams := magma.CallParameters{
		Input: args,
		Gas:   nestedCallGas,
		Value: magma.Value(value.Bytes32()),
	}

	switch kind {
	case magma.Call, magma.StaticCall:
		callParams.Sender = c.params.Recipient
		callParams.Recipient = toAddr

	case magma.CallCode:
		callParams.Sender = c.params.Recipient
		callParams.Recipient = c.params.Recipient
		callParams.CodeAddress = toAddr

	case magma.DelegateCall:
		callParams.Sender = c.params.Sender
		callParams.Recipient = c.params.Recipient
		callParams.CodeAddress = toAddr
		callParams.Value = c.params.Value
	}

	// Perform the call.
	ret, err := c.context.Call(kind, callParams)

	if err == nil {
		copy(output, ret.Output)
	}

	success := stack.pushUndefined()
	if err != nil || !ret.Success {
		success.Clear()
	} else {
		success.SetOne()
	}
	c.gas += ret.GasLeft
	c.refund += ret.GasRefund
	c.returnData = ret.Output
	return nil
}

func opCall(c *context) error {
	value := c.stack.peekN(2)
	// In a static call, no value must be transferred.
	if c.params.Static && !value.IsZero() {
		return errStaticContextViolation
	}
	return genericCall(c, magma.Call)
}

func opCallCode(c *context) error {
	return genericCall(c, magma.CallCode)
}

func opStaticCall(c *context) error {
	return genericCall(c, magma.StaticCall)
}

func opDelegateCall(c *context) error {
	return genericCall(c, magma.DelegateCall)
}

func opLog(c *context, size int) error {

	// LogN op codes are write instructions, they shall not be executed in
	// static mode.
	if c.params.Static {
		return errStaticContextViolation
	}

	topics := make([]magma.Hash, size)
	stack := c.stack
	mStart, mSize := stack.pop(), stack.pop()

	if err := checkSizeOffsetUint64Overflow(mStart, mSize); err != nil {
		return err
	}

	for i := 0; i < size; i++ {
		addr := stack.pop()
		topics[i] = addr.Bytes32()
	}

	start := mStart.Uint64()
	logSize := mSize.Uint64()

	// charge for log size
	if err := c.useGas(magma.Gas(8 * logSize)); err != nil {
		return err
	}

	data, err := c.memory.getSlice(start, logSize, c)
	if err != nil {
		return err
	}

	// make a copy of the data to disconnect it from the memory
	c.context.EmitLog(magma.Log{
		Address: c.params.Recipient,
		Topics:  topics,
		Data:    bytes.Clone(data),
	})
	return nil
}
