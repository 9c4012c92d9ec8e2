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
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:      "evmrun",
		Usage:     "Run EVM byte-code on an in-memory chain state",
		Copyright: "(c) 2025 Magma Foundation",
		Commands: []*cli.Command{
			&RunCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
