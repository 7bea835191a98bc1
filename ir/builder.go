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

// Builder constructs a function graph while tracking the current control and
// memory tokens. It is the only writer of the graph before scheduling.
type Builder struct {
	Func *Function
	Loc  Location

	ctrl   Handle
	mem    Handle
	block  Handle
	alias  uint32
	params map[int]Handle
	memAt  map[Handle]Handle
}

// NewBuilder creates the entry node of fn and positions the builder right
// after it.
func NewBuilder(fn *Function) *Builder {
	b := &Builder{
		Func:   fn,
		params: make(map[int]Handle),
		memAt:  make(map[Handle]Handle),
	}
	fn.Entry = fn.CreateNode(KindEntry, 0, b.Loc)
	b.ctrl = b.project(fn.Entry, 0, Control)
	b.mem = b.project(fn.Entry, 1, Memory)
	b.block = fn.Entry
	fn.Node(fn.Entry).Region().MemIn = b.mem
	return b
}

func (self *Builder) node(kind Kind, typ DataType, inputs ...Handle) Handle {
	h := self.Func.CreateNode(kind, len(inputs), self.Loc)
	p := self.Func.Node(h)
	copy(p.Inputs, inputs)
	if typ != Void {
		p.Type = typ
	}
	return h
}

func (self *Builder) project(src Handle, index int, typ DataType) Handle {
	h := self.node(KindProjection, typ, src)
	self.Func.Node(h).Projection().Index = index
	return h
}

func (self *Builder) typeOf(h Handle) DataType {
	return self.Func.Node(h).Type
}

func (self *Builder) live() {
	if self.ctrl == Nil {
		Throw(Structural, "builder", Nil, KindNone, "no current control: the block has already been terminated")
	}
}

func (self *Builder) leave() {
	if self.block != Nil {
		self.Func.Node(self.block).Region().MemOut = self.mem
	}
	self.ctrl = Nil
	self.block = Nil
}

// Control returns the current control token.
func (self *Builder) Control() Handle { return self.ctrl }

// Memory returns the current memory token.
func (self *Builder) Memory() Handle { return self.mem }

// SetControl continues building at a region or a branch projection.
func (self *Builder) SetControl(h Handle) {
	p := self.Func.Node(h)
	self.ctrl = h
	self.block = Nil

	switch {
	case p.Kind == KindRegion:
		self.block = h
		self.mem = p.Region().MemIn
	case self.memAt[h] != Nil:
		self.mem = self.memAt[h]
	}
}

// Param returns parameter i, typed t.
func (self *Builder) Param(i int, t DataType) Handle {
	if h, ok := self.params[i]; ok {
		return h
	}
	h := self.project(self.Func.Entry, i+2, t)
	self.params[i] = h
	for len(self.Func.Params) <= i {
		self.Func.Params = append(self.Func.Params, I64)
	}
	self.Func.Params[i] = t
	return h
}

func (self *Builder) Int(t DataType, v uint64) Handle {
	h := self.node(KindInteger, t)
	self.Func.Node(h).Integer().Value = v
	return h
}

func (self *Builder) F32(v float32) Handle {
	h := self.node(KindF32, F32)
	self.Func.Node(h).Float().Value = float64(v)
	return h
}

func (self *Builder) F64(v float64) Handle {
	h := self.node(KindF64, F64)
	self.Func.Node(h).Float().Value = v
	return h
}

// Binary creates an arithmetic, logic or compare node over a and b.
func (self *Builder) Binary(kind Kind, a Handle, b Handle) Handle {
	if !kind.IsBinary() && !kind.IsCompare() {
		Throw(Structural, "builder", Nil, kind, "not a binary operation")
	}
	if kind.IsCompare() {
		return self.node(kind, Bool, a, b)
	}
	return self.node(kind, self.typeOf(a), a, b)
}

func (self *Builder) Unary(kind Kind, v Handle) Handle {
	if !kind.IsUnary() {
		Throw(Structural, "builder", Nil, kind, "not a unary operation")
	}
	return self.node(kind, self.typeOf(v), v)
}

// Convert changes the type of v to t.
func (self *Builder) Convert(kind Kind, t DataType, v Handle) Handle {
	if !kind.IsConversion() {
		Throw(Structural, "builder", Nil, kind, "not a conversion")
	}
	return self.node(kind, t, v)
}

// Select yields t when cond is non-zero and f otherwise.
func (self *Builder) Select(cond Handle, t Handle, f Handle) Handle {
	return self.node(KindSelect, self.typeOf(t), cond, t, f)
}

// Local declares a stack slot and returns its address.
func (self *Builder) Local(size uint32, align uint32) Handle {
	h := self.node(KindLocal, Ptr, self.Func.Entry)
	self.alias++
	*self.Func.Node(h).Local() = LocalProp{Size: size, Align: align, AliasID: self.alias}
	return h
}

// Address returns the address of a symbol.
func (self *Builder) Address(sym *Symbol) Handle {
	h := self.node(KindSymbol, Ptr)
	self.Func.Node(h).Symbol().Symbol = sym
	return h
}

func (self *Builder) Member(base Handle, offset int32) Handle {
	h := self.node(KindMember, Ptr, base)
	self.Func.Node(h).Member().Offset = offset
	return h
}

func (self *Builder) Array(base Handle, index Handle, stride int64) Handle {
	h := self.node(KindArray, Ptr, base, index)
	self.Func.Node(h).Array().Stride = stride
	return h
}

func (self *Builder) Load(t DataType, addr Handle) Handle {
	self.live()
	return self.node(KindLoad, t, self.ctrl, self.mem, addr)
}

func (self *Builder) Store(addr Handle, v Handle) {
	self.live()
	self.mem = self.node(KindStore, Memory, self.ctrl, self.mem, addr, v)
}

// Call emits a call and returns its result projection, or Nil when ret is not
// a value type.
func (self *Builder) Call(target Handle, ret DataType, args ...Handle) Handle {
	self.live()
	in := append([]Handle{self.ctrl, self.mem, target}, args...)
	h := self.node(KindCall, Tuple, in...)
	self.ctrl = self.project(h, 0, Control)
	self.mem = self.project(h, 1, Memory)
	if ret.IsValue() {
		return self.project(h, 2, ret)
	}
	return Nil
}

func (self *Builder) DebugBreak() {
	self.live()
	self.ctrl = self.node(KindDebugBreak, Control, self.ctrl)
}

func (self *Builder) Trap() {
	self.live()
	self.ctrl = self.node(KindTrap, Control, self.ctrl)
}

// Switch ends the current block with a multi-way branch on key. The first
// returned projection is the default target, the i+1-th is taken when key
// equals keys[i].
func (self *Builder) Switch(key Handle, keys []int64) []Handle {
	self.live()
	h := self.node(KindBranch, Tuple, self.ctrl, key)
	succ := make([]Handle, len(keys)+1)
	for i := range succ {
		succ[i] = self.project(h, i, Control)
		self.memAt[succ[i]] = self.mem
	}
	p := self.Func.Node(h).Branch()
	p.Successors = succ
	p.Keys = append([]int64(nil), keys...)
	self.leave()
	return succ
}

// If branches on cond and returns the projections for the non-zero and zero
// cases.
func (self *Builder) If(cond Handle) (Handle, Handle) {
	succ := self.Switch(cond, []int64{0})
	return succ[0], succ[1]
}

// Region creates a merge point with no predecessors yet, together with the
// memory phi that merges the incoming memory states.
func (self *Builder) Region() Handle {
	h := self.node(KindRegion, Control)
	self.Func.Node(h).Region().MemIn = self.node(KindPhi, Memory, h)
	return h
}

// Goto ends the current block with a jump to region.
func (self *Builder) Goto(region Handle) {
	self.live()
	p := self.Func.Node(region)
	if p.Kind != KindRegion {
		Throw(Structural, "builder", region, p.Kind, "jump target is not a region")
	}
	self.Func.AddInputLate(region, self.ctrl)
	self.Func.AddInputLate(p.Region().MemIn, self.mem)
	self.leave()
}

// Phi merges values at region, one per predecessor known so far.
func (self *Builder) Phi(region Handle, t DataType, values ...Handle) Handle {
	return self.node(KindPhi, t, append([]Handle{region}, values...)...)
}

// AddPhiInput appends the value arriving from a predecessor added later.
func (self *Builder) AddPhiInput(phi Handle, v Handle) {
	self.Func.AddInputLate(phi, v)
}

// Return ends the current block and makes it the function exit.
func (self *Builder) Return(values ...Handle) Handle {
	self.live()
	if self.Func.Exit != Nil {
		Throw(Structural, "builder", self.Func.Exit, KindReturn, "function already has an exit, merge returns through a region")
	}
	if len(values) > 1 {
		Throw(Capacity, "builder", Nil, KindReturn, "at most one return value is supported, got %d", len(values))
	}
	h := self.node(KindReturn, Control, append([]Handle{self.ctrl, self.mem}, values...)...)
	self.Func.Exit = h
	self.leave()
	return h
}
