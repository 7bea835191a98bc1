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

package ir

import (
	"fmt"
)

// SymbolTag classifies entries of the symbol table handed to the object writer.
type SymbolTag uint8

const (
	SymbolExternal SymbolTag = iota
	SymbolGlobal
	SymbolFunction
	SymbolTombstone
)

func (t SymbolTag) String() string {
	switch t {
	case SymbolExternal:
		return "external"
	case SymbolGlobal:
		return "global"
	case SymbolFunction:
		return "function"
	case SymbolTombstone:
		return "tombstone"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Symbol is a named code or data address. Head is the relocation chain head
// for references emitted into the module code buffer.
type Symbol struct {
	ID     int
	Name   string
	Tag    SymbolTag
	Offset uint32
	Size   uint32
	Align  uint32
	Head   uint32
}

func (self *Symbol) String() string {
	return fmt.Sprintf("%s(%s)", self.Name, self.Tag)
}

// SymbolTable owns the symbols of one compilation unit.
type SymbolTable struct {
	syms  []*Symbol
	names map[string]*Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{names: make(map[string]*Symbol)}
}

// Declare returns the symbol with the given name, creating it if needed. An
// external symbol is upgraded when it is later declared with another tag.
func (self *SymbolTable) Declare(name string, tag SymbolTag) *Symbol {
	if sym, ok := self.names[name]; ok {
		if sym.Tag == SymbolExternal || sym.Tag == SymbolTombstone {
			sym.Tag = tag
		} else if tag != SymbolExternal && tag != sym.Tag {
			panic(fmt.Sprintf("ir: symbol %s redeclared as %s", name, tag))
		}
		return sym
	}
	sym := &Symbol{ID: len(self.syms), Name: name, Tag: tag}
	self.syms = append(self.syms, sym)
	self.names[name] = sym
	return sym
}

func (self *SymbolTable) Lookup(name string) *Symbol {
	return self.names[name]
}

// Tombstone marks a symbol as removed while keeping its ID stable.
func (self *SymbolTable) Tombstone(sym *Symbol) {
	sym.Tag = SymbolTombstone
}

// All returns the symbols in declaration order.
func (self *SymbolTable) All() []*Symbol {
	return self.syms
}
