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

// Handle is a stable reference to a node in the arena of its function.
type Handle uint32

// Nil is the zero Handle, which never refers to a node.
const Nil Handle = 0

func (h Handle) String() string {
	if h == Nil {
		return "%nil"
	}
	return fmt.Sprintf("%%%d", uint32(h))
}

// Location is the source position a node was lowered from.
type Location struct {
	Line   uint32
	Column uint32
}

func (self Location) String() string {
	return fmt.Sprintf("%d:%d", self.Line, self.Column)
}

// User records that Node reads the owning value through input Slot.
type User struct {
	Next *User
	Node Handle
	Slot int
}

// Node is a single SSA value in the graph.
type Node struct {
	Kind   Kind
	Type   DataType
	Inputs []Handle
	Loc    Location

	prop  interface{}
	users *User
	block Handle
	order int32
}

// Users returns the head of the use chain built by GenerateUseLists.
func (self *Node) Users() *User {
	return self.users
}

// UserCount walks the use chain and counts its records.
func (self *Node) UserCount() int {
	n := 0
	for u := self.users; u != nil; u = u.Next {
		n++
	}
	return n
}

// Block returns the begin node of the block the node was placed in, or Nil
// before scheduling.
func (self *Node) Block() Handle {
	return self.block
}

// Order returns the position of the node inside its block.
func (self *Node) Order() int {
	return int(self.order)
}

// Place records scheduling metadata.
func (self *Node) Place(block Handle, order int) {
	self.block = block
	self.order = int32(order)
}

// Control returns input 0 for kinds that carry a control token.
func (self *Node) Control() Handle {
	if self.Kind.HasControl() && len(self.Inputs) != 0 {
		return self.Inputs[0]
	}
	return Nil
}

func (self *Node) Region() *RegionProp         { return self.prop.(*RegionProp) }
func (self *Node) Branch() *BranchProp         { return self.prop.(*BranchProp) }
func (self *Node) Projection() *ProjectionProp { return self.prop.(*ProjectionProp) }
func (self *Node) Local() *LocalProp           { return self.prop.(*LocalProp) }
func (self *Node) Integer() *IntegerProp       { return self.prop.(*IntegerProp) }
func (self *Node) Float() *FloatProp           { return self.prop.(*FloatProp) }
func (self *Node) Symbol() *SymbolProp         { return self.prop.(*SymbolProp) }
func (self *Node) Member() *MemberProp         { return self.prop.(*MemberProp) }
func (self *Node) Array() *ArrayProp           { return self.prop.(*ArrayProp) }

// RegionProp is attached to region and entry nodes, which both begin blocks.
type RegionProp struct {
	MemIn          Handle
	MemOut         Handle
	End            Handle
	Dominator      Handle
	DominatorDepth int
	PostOrderID    int
}

// BranchProp lists the projections leaving a branch. Successors[0] is the
// default target; Successors[i+1] is taken when the key equals Keys[i].
type BranchProp struct {
	Successors []Handle
	Keys       []int64
}

type ProjectionProp struct {
	Index int
}

type LocalProp struct {
	Size    uint32
	Align   uint32
	AliasID uint32
}

type IntegerProp struct {
	Value uint64
}

type FloatProp struct {
	Value float64
}

type SymbolProp struct {
	Symbol *Symbol
}

type MemberProp struct {
	Offset int32
}

type ArrayProp struct {
	Stride int64
}

func newProp(kind Kind) interface{} {
	switch kind {
	case KindEntry, KindRegion:
		return new(RegionProp)
	case KindBranch:
		return new(BranchProp)
	case KindProjection:
		return new(ProjectionProp)
	case KindLocal:
		return new(LocalProp)
	case KindInteger:
		return new(IntegerProp)
	case KindF32, KindF64:
		return new(FloatProp)
	case KindSymbol:
		return new(SymbolProp)
	case KindMember:
		return new(MemberProp)
	case KindArray:
		return new(ArrayProp)
	default:
		return nil
	}
}

func (self *Node) propString() string {
	switch p := self.prop.(type) {
	case *BranchProp:
		return fmt.Sprintf(" keys=%v", p.Keys)
	case *ProjectionProp:
		return fmt.Sprintf(" #%d", p.Index)
	case *LocalProp:
		return fmt.Sprintf(" size=%d align=%d", p.Size, p.Align)
	case *IntegerProp:
		return fmt.Sprintf(" %d", int64(p.Value))
	case *FloatProp:
		return fmt.Sprintf(" %g", p.Value)
	case *SymbolProp:
		if p.Symbol != nil {
			return " " + p.Symbol.Name
		}
	case *MemberProp:
		return fmt.Sprintf(" +%d", p.Offset)
	case *ArrayProp:
		return fmt.Sprintf(" *%d", p.Stride)
	}
	return ""
}
