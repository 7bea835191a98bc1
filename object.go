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
	"github.com/cloudwego/seacg/internal/buffer"
	"github.com/cloudwego/seacg/ir"
)

// Relocation is a 4-byte PC-relative slot that still refers to a symbol the
// module could not resolve. The slot holds zero, the final value is the
// symbol address minus (Offset + 4).
type Relocation struct {
	Offset int
	Symbol *ir.Symbol
}

// Object is the code and symbol table of a module, ready to be handed to a
// linker or loader.
type Object struct {
	Code        []byte
	Symbols     []*ir.Symbol
	Relocations []Relocation
}

// Finalize takes a copy of the module code with the remaining relocation
// chains unlinked. The module itself stays usable, compiling more functions
// and finalizing again gives a bigger object.
func (self *Module) Finalize() *Object {
	code := make([]byte, self.buf.Len())
	copy(code, self.buf.Bytes())

	ret := &Object{
		Code:    code,
		Symbols: append([]*ir.Symbol(nil), self.symbols.All()...),
	}

	/* chain links are buffer offsets, meaningless outside of the module */
	for _, sym := range ret.Symbols {
		if buffer.IsResolved(sym.Head) {
			continue
		}
		for _, pos := range self.buf.Pending(sym.Head) {
			code[pos], code[pos+1], code[pos+2], code[pos+3] = 0, 0, 0, 0
			ret.Relocations = append(ret.Relocations, Relocation{Offset: pos, Symbol: sym})
		}
	}
	return ret
}

// Lookup returns the offset of a compiled function in Code.
func (self *Object) Lookup(name string) (int, bool) {
	for _, sym := range self.Symbols {
		if sym.Name == name && sym.Tag == ir.SymbolFunction && buffer.IsResolved(sym.Head) {
			return int(sym.Offset), true
		}
	}
	return 0, false
}
