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

import (
	"os"
	"strconv"
)

const (
	_DefaultMaxNodes   = 1 << 24 // 16M nodes per function
	_DefaultArenaBlock = 1024    // nodes per arena block
	_DefaultCodeSize   = 4096    // initial code buffer capacity
)

var (
	MaxNodes   = parseOrDefault("SEACG_MAX_NODES", _DefaultMaxNodes, 16)
	ArenaBlock = parseOrDefault("SEACG_ARENA_BLOCK", _DefaultArenaBlock, 16)
	CodeSize   = parseOrDefault("SEACG_CODE_SIZE", _DefaultCodeSize, 64)
)

func parseOrDefault(key string, def int, min int) int {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
		panic("seacg: invalid value for " + key)
	} else if ret := int(val); ret <= min {
		panic("seacg: value too small for " + key)
	} else {
		return ret
	}
}
