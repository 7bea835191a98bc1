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
    `fmt`

    `github.com/cloudwego/seacg/ir`
)

type OperandKind uint8

const (
    OpNone OperandKind = iota
    OpFlags
    OpGPR
    OpXMM
    OpImm
    OpMem
    OpGlobal
    OpAbs
    OpLabel
)

var operandKindNames = [...]string {
    OpNone   : "none",
    OpFlags  : "flags",
    OpGPR    : "gpr",
    OpXMM    : "xmm",
    OpImm    : "imm",
    OpMem    : "mem",
    OpGlobal : "global",
    OpAbs    : "abs",
    OpLabel  : "label",
}

func (self OperandKind) String() string {
    if int(self) < len(operandKindNames) {
        return operandKindNames[self]
    } else {
        return fmt.Sprintf("operand(%d)", uint8(self))
    }
}

// Operand is a machine-level value. The fields in use depend on Kind: Reg for
// gpr/xmm, Reg/Index/Scale/Disp for mem, Imm, Abs, Label and Sym for the
// corresponding kinds.
type Operand struct {
    Kind  OperandKind
    Reg   Reg
    Index Reg
    Scale uint8
    Disp  int32
    Imm   int32
    Abs   uint64
    Label int
    Sym   *ir.Symbol
}

// Class returns the register class of a register operand.
func (self *Operand) Class() RegClass {
    switch self.Kind {
        case OpGPR : return ClassGPR
        case OpXMM : return ClassXMM
        default    : return InvalidClass
    }
}

func (self *Operand) IsReg() bool {
    return self.Kind == OpGPR || self.Kind == OpXMM
}

// Matches reports whether two operands name the same location. Memory
// operands compare base, index, scale and displacement; value operands
// compare their payload.
func (self *Operand) Matches(other *Operand) bool {
    if self.Kind != other.Kind {
        return false
    }
    switch self.Kind {
        case OpGPR, OpXMM : return self.Reg == other.Reg
        case OpMem        : return self.Reg == other.Reg && self.Index == other.Index && self.Scale == other.Scale && self.Disp == other.Disp
        case OpImm        : return self.Imm == other.Imm
        case OpAbs        : return self.Abs == other.Abs
        case OpLabel      : return self.Label == other.Label
        case OpGlobal     : return self.Sym == other.Sym
        default           : return true
    }
}

func (self *Operand) String() string {
    switch self.Kind {
        case OpNone   : return "none"
        case OpFlags  : return "flags"
        case OpGPR    : return GPR(self.Reg).String()
        case OpXMM    : return XMM(self.Reg).String()
        case OpImm    : return fmt.Sprintf("$%d", self.Imm)
        case OpAbs    : return fmt.Sprintf("$%#x", self.Abs)
        case OpLabel  : return fmt.Sprintf("L%d", self.Label)
        case OpGlobal : return fmt.Sprintf("[rip+%s]", self.Sym.Name)
        case OpMem    : return self.memString()
        default       : return self.Kind.String()
    }
}

func (self *Operand) memString() string {
    s := "[" + GPR(self.Reg).String()
    if self.Index.Valid() {
        s += fmt.Sprintf("+%s*%d", GPR(self.Index), self.Scale)
    }
    if self.Disp > 0 {
        s += fmt.Sprintf("+%d", self.Disp)
    } else if self.Disp < 0 {
        s += fmt.Sprintf("%d", self.Disp)
    }
    return s + "]"
}

const _OperandChunk = 64

// operandArena hands out operands in chunks so pointers stay valid.
type operandArena struct {
    free  []Operand
    count int
}

func (self *operandArena) alloc(v Operand) *Operand {
    if len(self.free) == 0 {
        self.free = make([]Operand, _OperandChunk)
    }
    p := &self.free[0]
    self.free = self.free[1:]
    self.count++
    *p = v
    return p
}

func (self *Context) CreateNone() *Operand {
    return self.ops.alloc(Operand { Kind: OpNone })
}

func (self *Context) CreateFlags() *Operand {
    return self.ops.alloc(Operand { Kind: OpFlags })
}

func (self *Context) CreateGPR(r Reg) *Operand {
    return self.ops.alloc(Operand { Kind: OpGPR, Reg: r, Index: InvalidReg })
}

func (self *Context) CreateXMM(r Reg) *Operand {
    return self.ops.alloc(Operand { Kind: OpXMM, Reg: r, Index: InvalidReg })
}

// CreateReg creates a register operand of the given class.
func (self *Context) CreateReg(r ClassifiedReg) *Operand {
    switch r.Class {
        case ClassGPR : return self.CreateGPR(r.Reg)
        case ClassXMM : return self.CreateXMM(r.Reg)
    }
    panic(fmt.Sprintf("codegen: invalid register %s", r))
}

func (self *Context) CreateImm(v int32) *Operand {
    return self.ops.alloc(Operand { Kind: OpImm, Imm: v })
}

func (self *Context) CreateAbs(v uint64) *Operand {
    return self.ops.alloc(Operand { Kind: OpAbs, Abs: v })
}

// CreateMem creates [base + index*scale + disp]. Pass InvalidReg as index
// for a plain base-relative address.
func (self *Context) CreateMem(base Reg, index Reg, scale uint8, disp int32) *Operand {
    if index.Valid() && scale != 1 && scale != 2 && scale != 4 && scale != 8 {
        panic(fmt.Sprintf("codegen: invalid scale %d", scale))
    }
    return self.ops.alloc(Operand { Kind: OpMem, Reg: base, Index: index, Scale: scale, Disp: disp })
}

func (self *Context) CreateGlobal(sym *ir.Symbol) *Operand {
    return self.ops.alloc(Operand { Kind: OpGlobal, Sym: sym })
}

func (self *Context) CreateLabel(block int) *Operand {
    return self.ops.alloc(Operand { Kind: OpLabel, Label: block })
}

// OperandCount returns the number of operands created in this context.
func (self *Context) OperandCount() int {
    return self.ops.count
}
