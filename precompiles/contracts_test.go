// Copyright (c) 2025 Magma Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at magma.foundation/bsl11.
//
// Change Date: 2029-3-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package precompiles

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/magma-foundation/magma/magma"
)

func TestIsPrecompile_DependsOnRevision(t *testing.T) {
	tests := []struct {
		address  magma.Address
		revision magma.Revision
		want     bool
	}{
		{addr(0x01), magma.R07_Istanbul, true},
		{addr(0x09), magma.R07_Istanbul, true},
		{addr(0x0a), magma.R07_Istanbul, false},
		{addr(0x0a), magma.R12_Shanghai, false},
		{addr(0x0a), magma.R13_Cancun, true},
		{addr(0x0b), magma.R13_Cancun, false},
		{addr(0x00), magma.R13_Cancun, false},
		{magma.Address{0x01}, magma.R13_Cancun, false},
	}
	for _, test := range tests {
		if got := IsPrecompile(test.address, test.revision); got != test.want {
			t.Errorf("unexpected result for address %v in revision %v, wanted %t, got %t",
				test.address, test.revision, test.want, got)
		}
	}
}

func TestRun_UnknownAddressIsReported(t *testing.T) {
	if _, found := Run(magma.R13_Cancun, addr(0x42), nil, 1000); found {
		t.Errorf("address 0x42 should not host a built-in contract")
	}
}

func TestRun_InsufficientGasFailsWithoutRefund(t *testing.T) {
	result, found := Run(magma.R13_Cancun, addr(0x04), []byte{1}, magma.Gas(IdentityBaseGas+IdentityPerWordGas-1))
	if !found {
		t.Fatalf("identity contract not found")
	}
	if result.Success {
		t.Errorf("execution with insufficient gas should fail")
	}
	if result.GasLeft != 0 {
		t.Errorf("failing execution should consume all gas, %d left", result.GasLeft)
	}
}

func TestRun_SuccessfulExecutionRetainsUnusedGas(t *testing.T) {
	input := []byte{1, 2, 3}
	result, found := Run(magma.R13_Cancun, addr(0x04), input, 1000)
	if !found {
		t.Fatalf("identity contract not found")
	}
	if !result.Success {
		t.Fatalf("identity execution failed")
	}
	if !bytes.Equal(result.Output, input) {
		t.Errorf("unexpected output, wanted %x, got %x", input, result.Output)
	}
	want := magma.Gas(1000 - IdentityBaseGas - IdentityPerWordGas)
	if result.GasLeft != want {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, result.GasLeft)
	}
}

func TestSha256_KnownHashes(t *testing.T) {
	tests := map[string]string{
		"":    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"abc": "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
	}
	contract := sha256hash{}
	for input, want := range tests {
		output, err := contract.Run([]byte(input))
		if err != nil {
			t.Fatalf("hashing failed: %v", err)
		}
		if got := hex.EncodeToString(output); got != want {
			t.Errorf("unexpected hash of %q, wanted %s, got %s", input, want, got)
		}
	}
}

func TestSha256_GasDependsOnInputWords(t *testing.T) {
	contract := sha256hash{}
	tests := map[int]uint64{
		0:  60,
		1:  72,
		32: 72,
		33: 84,
	}
	for size, want := range tests {
		if got := contract.RequiredGas(make([]byte, size)); got != want {
			t.Errorf("unexpected gas for %d input bytes, wanted %d, got %d", size, want, got)
		}
	}
}

func TestRipemd160_KnownHashes(t *testing.T) {
	tests := map[string]string{
		"":    "0000000000000000000000009c1185a5c5e9fc54612808977ee8f548b2258d31",
		"abc": "0000000000000000000000008eb208f7e05d987a9b044a8e98c6b087f15a0bfc",
	}
	contract := ripemd160hash{}
	for input, want := range tests {
		output, err := contract.Run([]byte(input))
		if err != nil {
			t.Fatalf("hashing failed: %v", err)
		}
		if got := hex.EncodeToString(output); got != want {
			t.Errorf("unexpected hash of %q, wanted %s, got %s", input, want, got)
		}
	}
}

func TestEcrecover_RecoversSignerAddress(t *testing.T) {
	input, _ := hex.DecodeString(
		"38d18acb67d25c8bb9942764b62f18e17054f66a817bd4295423adf9ed98873e" +
			"000000000000000000000000000000000000000000000000000000000000001b" +
			"38d18acb67d25c8bb9942764b62f18e17054f66a817bd4295423adf9ed98873e" +
			"789d1dd423d25f0772d2748d60f7e4b81bb14d086eba8e8e8efb6dcff8a4ae02")
	want := "000000000000000000000000ceaccac640adf55b2028469bd36ba501f28b699d"

	output, err := (&ecrecover{}).Run(input)
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	if got := hex.EncodeToString(output); got != want {
		t.Errorf("unexpected address, wanted %s, got %s", want, got)
	}
}

func TestEcrecover_InvalidInputsYieldEmptyOutput(t *testing.T) {
	valid, _ := hex.DecodeString(
		"38d18acb67d25c8bb9942764b62f18e17054f66a817bd4295423adf9ed98873e" +
			"000000000000000000000000000000000000000000000000000000000000001b" +
			"38d18acb67d25c8bb9942764b62f18e17054f66a817bd4295423adf9ed98873e" +
			"789d1dd423d25f0772d2748d60f7e4b81bb14d086eba8e8e8efb6dcff8a4ae02")

	badV := bytes.Clone(valid)
	badV[63] = 29

	dirtyPadding := bytes.Clone(valid)
	dirtyPadding[40] = 1

	zeroS := bytes.Clone(valid)
	copy(zeroS[96:128], make([]byte, 32))

	tests := map[string][]byte{
		"empty input":           {},
		"garbage":               bytes.Repeat([]byte{0xff}, 128),
		"recovery id too large": badV,
		"dirty v padding":       dirtyPadding,
		"zero s":                zeroS,
	}
	for name, input := range tests {
		output, err := (&ecrecover{}).Run(input)
		if err != nil {
			t.Errorf("%s: recovery should not fail, got %v", name, err)
		}
		if len(output) != 0 {
			t.Errorf("%s: expected empty output, got %x", name, output)
		}
	}
}

func TestBlake2F_GasEqualsTheNumberOfRounds(t *testing.T) {
	input := make([]byte, blake2FInputLength)
	input[2] = 0x01 // 65536 rounds
	if got := (&blake2F{}).RequiredGas(input); got != 65536 {
		t.Errorf("unexpected gas, wanted 65536, got %d", got)
	}
	if got := (&blake2F{}).RequiredGas(make([]byte, 10)); got != 0 {
		t.Errorf("malformed input should be free to reject, got gas %d", got)
	}
}

func TestBlake2F_RejectsMalformedInput(t *testing.T) {
	short := make([]byte, blake2FInputLength-1)
	if _, err := (&blake2F{}).Run(short); err != errBlake2FInvalidInputLength {
		t.Errorf("unexpected error for short input: %v", err)
	}
	long := make([]byte, blake2FInputLength+1)
	if _, err := (&blake2F{}).Run(long); err != errBlake2FInvalidInputLength {
		t.Errorf("unexpected error for long input: %v", err)
	}
	badFlag := make([]byte, blake2FInputLength)
	badFlag[212] = 2
	if _, err := (&blake2F{}).Run(badFlag); err != errBlake2FInvalidFinalFlag {
		t.Errorf("unexpected error for invalid final flag: %v", err)
	}
}

func TestBlake2F_CompressesTestVector(t *testing.T) {
	// EIP-152 test vector 5, compressing the message "abc" with 12 rounds.
	input, _ := hex.DecodeString(
		"0000000c48c9bdf267e6096a3ba7ca8485ae67bb2bf894fe72f36e3cf1361d5f" +
			"3af54fa5d182e6ad7f520e511f6c3e2b8c68059b6bbd41fbabd9831f79217e13" +
			"19cde05b61626300000000000000000000000000000000000000000000000000" +
			"0000000000000000000000000000000000000000000000000000000000000000" +
			"0000000000000000000000000000000000000000000000000000000000000000" +
			"0000000000000000000000000000000000000000000000000000000000000000" +
			"0000000003000000000000000000000000000000" +
			"01")
	want := "ba80a53f981c4d0d6a2797b69f12f6e94c212f14685ac4b74b12bb6fdbffa2d1" +
		"7d87c5392aab792dc252d5de4533cc9518d38aa8dbf1925ab92386edd4009923"

	output, err := (&blake2F{}).Run(input)
	if err != nil {
		t.Fatalf("compression failed: %v", err)
	}
	if got := hex.EncodeToString(output); got != want {
		t.Errorf("unexpected output, wanted %s, got %s", want, got)
	}
}
