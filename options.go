/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package seacg

import (
	"fmt"

	"github.com/cloudwego/seacg/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// Feature is a set of optional x86-64 instruction set extensions.
type Feature = opts.Feature

const (
	FeaturePOPCNT = opts.FeaturePOPCNT
	FeatureLZCNT  = opts.FeatureLZCNT
	FeatureBMI1   = opts.FeatureBMI1
)

const (
	_MinNodes      = 16
	_MinArenaBlock = 16
	_MinCodeSize   = 64
)

// WithMaxNodes sets the maximum number of nodes a single function may
// allocate. Exceeding it fails the compilation of that function.
//
// This value can also be configured with the `SEACG_MAX_NODES` environment
// variable.
//
// The default value of this option is "16777216".
func WithMaxNodes(n int) Option {
	if n < _MinNodes {
		panic(fmt.Sprintf("seacg: invalid node limit: %d", n))
	} else {
		return func(o *opts.Options) { o.MaxNodes = n }
	}
}

// WithArenaBlock sets how many nodes are allocated at once when a function
// arena grows.
//
// The default value of this option is "1024".
func WithArenaBlock(n int) Option {
	if n < _MinArenaBlock {
		panic(fmt.Sprintf("seacg: invalid arena block size: %d", n))
	} else {
		return func(o *opts.Options) { o.ArenaBlock = n }
	}
}

// WithCodeSize sets the initial capacity of the module code buffer.
//
// The default value of this option is "4096".
func WithCodeSize(n int) Option {
	if n < _MinCodeSize {
		panic(fmt.Sprintf("seacg: invalid code buffer size: %d", n))
	} else {
		return func(o *opts.Options) { o.CodeSize = n }
	}
}

// WithFeatures compiles for a fixed set of instruction set extensions instead
// of the ones detected on the running CPU.
func WithFeatures(f Feature) Option {
	return func(o *opts.Options) {
		o.Features = f
		o.HostCPU = false
	}
}
