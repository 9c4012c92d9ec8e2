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
)

// Config provides a set of user-definable options for the VM.
type Config struct {
	// CodeCacheCapacity is the maximum number of code analysis results to
	// be cached. A zero or negative value selects the default capacity.
	CodeCacheCapacity int
}

func init() {
	magma.RegisterInterpreterFactory(
		"cvm",
		func(config any) (magma.Interpreter, error) {
			cfg := Config{}
			if config != nil {
				var ok bool
				if cfg, ok = config.(Config); !ok {
					return nil, fmt.Errorf("unexpected configuration type %T", config)
				}
			}
			return NewVm(cfg)
		},
	)
}

// newestSupportedRevision is the newest revision the VM is supporting.
const newestSupportedRevision = magma.R13_Cancun

type cvm struct {
	config Config
	codes  *analysisCache
}

// NewVm creates a VM instance with the given configuration.
func NewVm(config Config) (*cvm, error) {
	return &cvm{
		config: config,
		codes:  newAnalysisCache(config.CodeCacheCapacity),
	}, nil
}

var _ magma.Interpreter = (*cvm)(nil)

func (v *cvm) Run(params magma.Parameters) (magma.Result, error) {
	if params.Revision > newestSupportedRevision {
		return magma.Result{}, &magma.ErrUnsupportedRevision{Revision: params.Revision}
	}

	analysis := v.codes.getAnalysis(params.Code, params.CodeHash)

	stack := NewStack()
	defer ReturnStack(stack)

	ctxt := context{
		params:   params,
		context:  params.Context,
		gas:      params.Gas,
		stack:    stack,
		memory:   NewMemory(),
		code:     params.Code,
		analysis: analysis,
	}

	return run(&ctxt)
}
