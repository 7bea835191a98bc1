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

package debug

import (
	"sync/atomic"

	"github.com/cloudwego/seacg/internal/stats"
)

// A Stats records statistics about the code generator.
type Stats struct {
	Funcs FuncStats
	Code  CodeStats
}

// A FuncStats records how many functions were compiled.
type FuncStats struct {
	Compiled int
	Failed   int
	Nodes    int
}

// A CodeStats records the machine code produced.
type CodeStats struct {
	Bytes       int
	Relocations int
}

// GetStats returns statistics of every module in the process.
func GetStats() Stats {
	return Stats{
		Funcs: FuncStats{
			Compiled: int(atomic.LoadUint32(&stats.FuncCount)),
			Failed:   int(atomic.LoadUint32(&stats.FailCount)),
			Nodes:    int(atomic.LoadUint64(&stats.NodeCount)),
		},
		Code: CodeStats{
			Bytes:       int(atomic.LoadUint64(&stats.CodeSize)),
			Relocations: int(atomic.LoadUint64(&stats.RelocCount)),
		},
	}
}
