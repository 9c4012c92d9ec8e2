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
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"

	"github.com/magma-foundation/magma/magma"

	// Make sure the default processor is registered.
	_ "github.com/magma-foundation/magma/processor/basalt"
)

var RunCmd = cli.Command{
	Action:    doRun,
	Name:      "run",
	Usage:     "Run EVM byte-code on a fresh in-memory chain state",
	ArgsUsage: "<code-in-hex>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "interpreter",
			Usage: "the registered interpreter implementation to use",
			Value: "cvm",
		},
		&cli.Int64Flag{
			Name:  "gas",
			Usage: "the gas limit of the transaction",
			Value: 1_000_000,
		},
		&cli.StringFlag{
			Name:  "input",
			Usage: "the call input data in hex",
		},
		&cli.IntFlag{
			Name:  "revision",
			Usage: "the chain revision to run on",
			Value: int(magma.R13_Cancun),
		},
		&cli.IntFlag{
			Name:  "iterations",
			Usage: "number of times the transaction is executed",
			Value: 1,
		},
	},
}

func doRun(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("expected the contract code as the single argument")
	}
	code, err := decodeHex(context.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid code: %w", err)
	}
	input, err := decodeHex(context.String("input"))
	if err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}

	interpreter, err := magma.NewInterpreter(context.String("interpreter"))
	if err != nil {
		return err
	}
	factory := magma.GetProcessorFactory("basalt")
	if factory == nil {
		return fmt.Errorf("processor not found, available: %v",
			maps.Keys(magma.GetAllRegisteredProcessorFactories()))
	}
	processor := factory(interpreter)

	var (
		sender   = magma.Address{1}
		contract = magma.Address{2}
	)
	state := newInMemoryState()
	state.SetBalance(sender, magma.NewValue(1, 0, 0, 0))
	state.SetCode(contract, code)
	state.commit()

	blockParams := magma.BlockParameters{
		BlockNumber: 1,
		Timestamp:   time.Now().Unix(),
		GasLimit:    magma.Gas(context.Int64("gas")),
		Revision:    magma.Revision(context.Int("revision")),
	}

	iterations := context.Int("iterations")
	if iterations <= 0 {
		iterations = 1
	}

	var receipt magma.Receipt
	start := time.Now()
	for i := 0; i < iterations; i++ {
		transaction := magma.Transaction{
			Sender:    sender,
			Recipient: &contract,
			Nonce:     state.GetNonce(sender),
			Input:     input,
			GasLimit:  magma.Gas(context.Int64("gas")),
			GasPrice:  magma.NewValue(1),
		}
		receipt, err = processor.Run(blockParams, transaction, state)
		if err != nil {
			return fmt.Errorf("execution failed: %w", err)
		}
		state.commit()
	}
	duration := time.Since(start)

	fmt.Printf("success:  %t\n", receipt.Success)
	fmt.Printf("gas used: %d\n", receipt.GasUsed)
	fmt.Printf("output:   0x%x\n", receipt.Output)
	for _, log := range receipt.Logs {
		fmt.Printf("log:      %v %v 0x%x\n", log.Address, log.Topics, log.Data)
	}

	rate := float64(iterations) / duration.Seconds()
	fmt.Printf("executed %d transactions in %v (~%s transactions per second)\n",
		iterations, duration, unitconv.FormatPrefix(rate, unitconv.SI, 1))

	return nil
}

func decodeHex(data string) ([]byte, error) {
	data = strings.TrimPrefix(data, "0x")
	return hex.DecodeString(data)
}
