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
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/cloudwego/seacg/internal/buffer"
	"github.com/cloudwego/seacg/internal/opts"
	"github.com/cloudwego/seacg/internal/stats"
	"github.com/cloudwego/seacg/internal/x64"
	"github.com/cloudwego/seacg/ir"
)

// Module is a compilation unit: a symbol table and one code buffer that every
// compiled function is appended to. A Module is not safe for concurrent use,
// separate modules can be used from separate goroutines.
type Module struct {
	opts    opts.Options
	target  *x64.Target
	symbols *ir.SymbolTable
	buf     *buffer.CodeBuffer
}

// NewModule creates an empty module.
func NewModule(options ...Option) *Module {
	o := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&o)
	}

	/* pick the target */
	var target *x64.Target
	if o.HostCPU {
		target = x64.HostTarget()
	} else {
		target = x64.NewTarget(o.Features)
	}

	return &Module{
		opts:    o,
		target:  target,
		symbols: ir.NewSymbolTable(),
		buf:     buffer.New(o.CodeSize),
	}
}

// Symbols returns the symbol table of the module.
func (self *Module) Symbols() *ir.SymbolTable {
	return self.symbols
}

// Declare returns the symbol with the given name, creating it if needed.
func (self *Module) Declare(name string, tag ir.SymbolTag) *ir.Symbol {
	return self.symbols.Declare(name, tag)
}

// Target returns the instruction set the module compiles for.
func (self *Module) Target() *x64.Target {
	return self.target
}

// NewFunction creates an empty function bound to a function symbol of this
// module, using the arena limits of the module.
func (self *Module) NewFunction(name string) *ir.Function {
	fn := ir.NewFunction(name, ir.Limits{
		MaxNodes:   self.opts.MaxNodes,
		ArenaBlock: self.opts.ArenaBlock,
	})
	fn.Symbol = self.symbols.Declare(name, ir.SymbolFunction)
	return fn
}

// Len returns the size of the code emitted so far.
func (self *Module) Len() int {
	return self.buf.Len()
}

type _Slot struct {
	pos int
	val uint32
}

// _Snapshot is what a failed compilation must restore: the buffer length,
// every chain head, and the chained slots of the function's own symbol,
// which resolution overwrites in place.
type _Snapshot struct {
	size  int
	heads []uint32
	slots []_Slot
}

func (self *Module) snapshot(sym *ir.Symbol) *_Snapshot {
	all := self.symbols.All()
	ret := &_Snapshot{
		size:  self.buf.Len(),
		heads: make([]uint32, len(all)),
	}
	for i, v := range all {
		ret.heads[i] = v.Head
	}
	if sym != nil {
		for _, pos := range self.buf.Pending(sym.Head) {
			ret.slots = append(ret.slots, _Slot{pos, self.buf.ReadDword(pos)})
		}
	}
	return ret
}

func (self *Module) rollback(snap *_Snapshot, sym *ir.Symbol) {
	self.buf.Truncate(snap.size)
	for _, v := range snap.slots {
		self.buf.PatchDword(v.pos, v.val)
	}

	/* symbols declared while compiling have no references left */
	for i, v := range self.symbols.All() {
		if i < len(snap.heads) {
			v.Head = snap.heads[i]
		} else {
			v.Head = 0
		}
	}

	if sym != nil {
		self.symbols.Tombstone(sym)
	}
}

// bind attaches fn to a function symbol of this module. Symbols of other
// tables and names already taken by globals are rejected.
func (self *Module) bind(fn *ir.Function) error {
	sym := fn.Symbol
	if sym == nil {
		sym = self.symbols.Lookup(fn.Name)
	} else if sym != self.symbols.Lookup(sym.Name) {
		return structural(fmt.Sprintf("symbol %s does not belong to this module", sym.Name))
	}

	/* externals and tombstones are upgraded in place */
	if sym != nil {
		switch sym.Tag {
		case ir.SymbolFunction, ir.SymbolExternal, ir.SymbolTombstone:
			break
		default:
			return structural(fmt.Sprintf("symbol %s is declared as %s", sym.Name, sym.Tag))
		}
	}
	if sym == nil {
		fn.Symbol = self.symbols.Declare(fn.Name, ir.SymbolFunction)
	} else {
		fn.Symbol = self.symbols.Declare(sym.Name, ir.SymbolFunction)
	}
	return nil
}

func structural(reason string) *CompileError {
	return &CompileError{
		Class:  Structural,
		Pass:   "emit",
		Node:   ir.Nil,
		Kind:   ir.KindNone,
		Reason: reason,
	}
}

// Compile lowers fn to machine code at the end of the module code buffer.
// A failed compilation leaves the buffer and every other symbol as they were
// and tombstones the symbol of fn.
func (self *Module) Compile(ctx context.Context, fn *ir.Function) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "func", fn.Name)
	defer tr.Finish("err", &err)

	/* functions are reachable through their symbols */
	if err = self.bind(fn); err != nil {
		return errors.Wrap(err, "compile %v", fn.Name)
	}

	/* a function body can only be placed once */
	if buffer.IsResolved(fn.Symbol.Head) {
		return errors.Wrap(structural("function has already been compiled"), "compile %v", fn.Name)
	}

	/* anything that fails must be undone */
	snap := self.snapshot(fn.Symbol)
	u := &_Unit{fn: fn}
	if err = self.run(ctx, u); err != nil {
		self.rollback(snap, fn.Symbol)
		stats.AddFail()
		return errors.Wrap(err, "compile %v", fn.Name)
	}

	/* record where it went */
	size := self.buf.Len() - u.start
	fn.Symbol.Offset = uint32(u.start)
	fn.Symbol.Size = uint32(size)
	fn.Symbol.Align = 1
	stats.AddFunc(len(u.sched.Live()), size)
	stats.AddRelocs(len(snap.slots))
	tr.Printw("compiled", "func", fn.Name, "offset", u.start, "size", size, "blocks", len(u.sched.Blocks))
	return nil
}
