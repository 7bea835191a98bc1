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
	"github.com/cloudwego/seacg/ir"
)

// CompileError is returned when a single function cannot be compiled. The
// module stays usable and the symbol of the function is tombstoned.
type CompileError = ir.CompileError

// ErrorClass tells the kinds of compile errors apart.
type ErrorClass = ir.ErrorClass

const (
	Structural = ir.Structural
	Capacity   = ir.Capacity
	Exhausted  = ir.Exhausted
)
