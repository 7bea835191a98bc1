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

package stats

import (
	"sync/atomic"
)

// Process-wide counters, updated atomically by every module.
var (
	FuncCount  uint32
	FailCount  uint32
	CodeSize   uint64
	NodeCount  uint64
	RelocCount uint64
)

func AddFunc(nodes int, code int) {
	atomic.AddUint32(&FuncCount, 1)
	atomic.AddUint64(&NodeCount, uint64(nodes))
	atomic.AddUint64(&CodeSize, uint64(code))
}

func AddFail() {
	atomic.AddUint32(&FailCount, 1)
}

func AddRelocs(n int) {
	atomic.AddUint64(&RelocCount, uint64(n))
}
