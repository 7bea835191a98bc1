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

package opts

// Feature is a bit set of optional instruction set extensions.
type Feature uint32

const (
	FeaturePOPCNT Feature = 1 << iota
	FeatureLZCNT
	FeatureBMI1
)

type Options struct {
	MaxNodes   int
	ArenaBlock int
	CodeSize   int
	Features   Feature
	HostCPU    bool
}

// Has reports whether every feature in f is enabled.
func (self *Options) Has(f Feature) bool {
	return self.Features&f == f
}

func GetDefaultOptions() Options {
	return Options{
		MaxNodes:   MaxNodes,
		ArenaBlock: ArenaBlock,
		CodeSize:   CodeSize,
		HostCPU:    true,
	}
}
