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

package codegen

import (
    `github.com/cloudwego/seacg/internal/sched`
    `github.com/cloudwego/seacg/ir`
)

// SavedReg is a callee-saved register spilled by the prologue.
type SavedReg struct {
    Reg  ClassifiedReg
    Disp int32
}

// Frame lays out the stack frame below the frame pointer.
type Frame struct {
    size  int32
    Saved []SavedReg
}

func alignUp(v int32, n int32) int32 {
    return (v + n - 1) &^ (n - 1)
}

// Alloc reserves a slot and returns its displacement from the frame pointer.
func (self *Frame) Alloc(size int32, align int32) int32 {
    if align < 1 {
        align = 1
    }
    self.size = alignUp(self.size + size, align)
    return -self.size
}

// Size returns the frame size, keeping the stack 16-byte aligned.
func (self *Frame) Size() int32 {
    return alignUp(self.size, 16)
}

// Context holds the lowering state of one function: the operand arena, the
// location of every value and the frame. Operands never leave their context.
type Context struct {
    Func      *ir.Function
    Sched     *sched.Schedule
    Regs      *RegisterFile
    Frame     Frame
    Intervals []*Interval

    ops     operandArena
    locs    []*Operand
    locals  map[ir.Handle]int32
    pos     []int
    bstart  []int
    bend    []int
    calls   []int
    temp    [2]*Operand
    scratch [2]*Operand
}

func NewContext(fn *ir.Function, s *sched.Schedule, regs *RegisterFile) *Context {
    ctx := &Context {
        Func   : fn,
        Sched  : s,
        Regs   : regs,
        locs   : make([]*Operand, fn.Len()),
        locals : make(map[ir.Handle]int32),
        pos    : make([]int, fn.Len()),
    }
    for c := ClassGPR; c <= ClassXMM; c++ {
        ctx.temp[c] = ctx.CreateReg(ClassifiedReg { regs.Temp[c], c })
        ctx.scratch[c] = ctx.CreateReg(ClassifiedReg { regs.Scratch[c], c })
    }
    return ctx
}

// Loc returns the location assigned to a value, or nil.
func (self *Context) Loc(h ir.Handle) *Operand {
    return self.locs[h]
}

// SetLoc overrides the location of a value.
func (self *Context) SetLoc(h ir.Handle, op *Operand) {
    self.locs[h] = op
}

// LocalDisp returns the frame displacement of a stack slot declared by a
// local node.
func (self *Context) LocalDisp(h ir.Handle) (int32, bool) {
    v, ok := self.locals[h]
    return v, ok
}

// Temp returns the cycle-breaking register of a class.
func (self *Context) Temp(c RegClass) *Operand {
    return self.temp[c]
}

// Scratch returns the staging register of a class.
func (self *Context) Scratch(c RegClass) *Operand {
    return self.scratch[c]
}

// ClassOf returns the register class that holds values of a node.
func ClassOf(t ir.DataType) RegClass {
    if t.IsFloat() {
        return ClassXMM
    } else {
        return ClassGPR
    }
}

// IsValue reports whether a node defines a value that needs a location.
func IsValue(p *ir.Node) bool {
    return p.Type.IsValue()
}

// IsCallTarget reports whether h is a symbol that is only read as the target
// of direct calls. The calls reference the symbol themselves.
func IsCallTarget(fn *ir.Function, h ir.Handle) bool {
    p := fn.Node(h)
    if p.Kind != ir.KindSymbol || p.Users() == nil {
        return false
    }
    for u := p.Users(); u != nil; u = u.Next {
        if u.Slot != 2 || fn.Node(u.Node).Kind != ir.KindCall {
            return false
        }
    }
    return true
}

func (self *Context) needsLoc(h ir.Handle) bool {
    return IsValue(self.Func.Node(h)) && !IsCallTarget(self.Func, h)
}
