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
	"github.com/cloudwego/seacg/internal/opts"
)

const (
	_MaxInputs = 65535
	_SlabSize  = 4096
	_UserChunk = 1024
)

// Limits bound the arena of a function.
type Limits struct {
	MaxNodes   int
	ArenaBlock int
}

// DefaultLimits returns the limits configured by the environment.
func DefaultLimits() Limits {
	return Limits{
		MaxNodes:   opts.MaxNodes,
		ArenaBlock: opts.ArenaBlock,
	}
}

// Function owns the node arena of a single function together with its entry
// and exit nodes, the stack slots it declares and its parameter types.
type Function struct {
	Name   string
	Symbol *Symbol
	Entry  Handle
	Exit   Handle
	Locals []Handle
	Params []DataType

	limit  int
	bsize  int
	count  int
	blocks [][]Node
	slab   []Handle
	users  []User
}

// NewFunction creates an empty function. Handle 0 is reserved as Nil.
func NewFunction(name string, lim Limits) *Function {
	if lim.ArenaBlock <= 0 {
		lim.ArenaBlock = opts.ArenaBlock
	}
	if lim.MaxNodes <= 0 {
		lim.MaxNodes = opts.MaxNodes
	}
	fn := &Function{
		Name:  name,
		limit: lim.MaxNodes,
		bsize: lim.ArenaBlock,
	}
	fn.grow()
	fn.count = 1
	return fn
}

func (self *Function) grow() {
	self.blocks = append(self.blocks, make([]Node, self.bsize))
}

// Len returns the number of handles issued so far, including Nil.
func (self *Function) Len() int {
	return self.count
}

// Node resolves a handle. Nil and out-of-range handles panic.
func (self *Function) Node(h Handle) *Node {
	if h == Nil || int(h) >= self.count {
		Throw(Structural, "ir", h, KindNone, "invalid node handle")
	}
	return &self.blocks[int(h)/self.bsize][int(h)%self.bsize]
}

// CreateNode allocates a node with room for the given number of inputs. The
// inputs are filled in later with SetInput.
func (self *Function) CreateNode(kind Kind, inputs int, loc Location) Handle {
	if inputs < 0 || inputs > _MaxInputs {
		Throw(Capacity, "ir", Nil, kind, "input count %d exceeds %d", inputs, _MaxInputs)
	}
	if self.count >= self.limit {
		Throw(Exhausted, "ir", Nil, kind, "node arena exhausted after %d nodes", self.limit)
	}

	/* open a new arena block if needed */
	h := Handle(self.count)
	if self.count/self.bsize >= len(self.blocks) {
		self.grow()
	}

	/* initialize the node */
	self.count++
	p := self.Node(h)
	p.Kind = kind
	p.Type = defaultType(kind)
	p.Inputs = self.carve(inputs)
	p.Loc = loc
	p.prop = newProp(kind)
	return h
}

// SetInput wires input i of node h.
func (self *Function) SetInput(h Handle, i int, v Handle) {
	p := self.Node(h)
	if i < 0 || i >= len(p.Inputs) {
		Throw(Structural, "ir", h, p.Kind, "input %d out of range [0, %d)", i, len(p.Inputs))
	}
	p.Inputs[i] = v
}

// AddInputLate appends an input to a region or phi whose predecessors were not
// all known at creation time.
func (self *Function) AddInputLate(h Handle, v Handle) {
	p := self.Node(h)
	if p.Kind != KindRegion && p.Kind != KindPhi {
		Throw(Structural, "ir", h, p.Kind, "late inputs are only allowed on regions and phis")
	}
	if len(p.Inputs)+1 > _MaxInputs {
		Throw(Capacity, "ir", h, p.Kind, "input count exceeds %d", _MaxInputs)
	}
	in := self.carve(len(p.Inputs) + 1)
	copy(in, p.Inputs)
	in[len(p.Inputs)] = v
	p.Inputs = in
}

func (self *Function) carve(n int) []Handle {
	if n == 0 {
		return nil
	}
	if n > len(self.slab) {
		size := _SlabSize
		if n > size {
			size = n
		}
		self.slab = make([]Handle, size)
	}
	ret := self.slab[:n:n]
	self.slab = self.slab[n:]
	return ret
}

func (self *Function) newUser(node Handle, slot int, next *User) *User {
	if len(self.users) == 0 {
		self.users = make([]User, _UserChunk)
	}
	u := &self.users[0]
	self.users = self.users[1:]
	*u = User{Next: next, Node: node, Slot: slot}
	return u
}

func defaultType(kind Kind) DataType {
	switch kind {
	case KindEntry, KindBranch, KindCall:
		return Tuple
	case KindRegion, KindDebugBreak, KindTrap, KindReturn:
		return Control
	case KindStore:
		return Memory
	case KindLocal, KindSymbol, KindMember, KindArray:
		return Ptr
	case KindF32:
		return F32
	case KindF64:
		return F64
	case KindCmpEQ, KindCmpNE, KindCmpULT, KindCmpULE, KindCmpSLT, KindCmpSLE, KindCmpFLT, KindCmpFLE:
		return Bool
	default:
		return Void
	}
}
