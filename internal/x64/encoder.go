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

package x64

import (
    `strings`

    `github.com/cloudwego/seacg/internal/buffer`
    `github.com/cloudwego/seacg/internal/codegen`
    `github.com/cloudwego/seacg/ir`
)

// Encoder appends instructions to a code buffer using an instruction table.
// Branches to blocks go through per-label relocation chains, references to
// symbols through the chain of the symbol.
type Encoder struct {
    Buf    *buffer.CodeBuffer
    Table  *InstructionTable
    Labels []uint32
    node   ir.Handle
    kind   ir.Kind
}

func NewEncoder(buf *buffer.CodeBuffer, tab *InstructionTable, nlabels int) *Encoder {
    return &Encoder {
        Buf    : buf,
        Table  : tab,
        Labels : make([]uint32, nlabels),
    }
}

// At records the node being lowered, for error reports.
func (self *Encoder) At(h ir.Handle, kind ir.Kind) {
    self.node, self.kind = h, kind
}

// Bind places a label at the current offset.
func (self *Encoder) Bind(label int) {
    self.Buf.ResolveRelocationDword(&self.Labels[label], self.Buf.Len())
}

// Bound reports whether a label has been placed.
func (self *Encoder) Bound(label int) bool {
    return buffer.IsResolved(self.Labels[label])
}

func (self *Encoder) fail(format string, args ...interface{}) {
    ir.Throw(ir.Structural, "emit", self.node, self.kind, format, args...)
}

func describe(op Op, args []*codegen.Operand) string {
    ss := make([]string, len(args))
    for i, v := range args {
        ss[i] = v.String()
    }
    return op.String() + " " + strings.Join(ss, ", ")
}

func isByteReg(v *codegen.Operand) bool {
    return v.Kind == codegen.OpGPR && v.Reg >= RSP && v.Reg <= RDI
}

func scaleBits(scale uint8) byte {
    switch scale {
        case 1  : return 0
        case 2  : return 1
        case 4  : return 2
        case 8  : return 3
        default : panic("x64: invalid scale")
    }
}

func isInt8(v int32) bool {
    return v >= -128 && v <= 127
}

// Emit encodes one instruction. A missing encoding is a fatal error.
func (self *Encoder) Emit(op Op, args ...*codegen.Operand) {
    e, ok := self.Table.Lookup(op, args...)
    if !ok {
        self.fail("no encoding for %s", describe(op, args))
    }

    /* mandatory prefixes come before REX */
    rex := byte(0)
    self.Buf.AppendBytes(e.Prefix...)
    if e.W {
        rex |= 0x48
    }

    /* byte registers other than al..bl need a REX prefix */
    if e.Byte {
        for _, v := range args {
            if isByteReg(v) {
                rex |= 0x40
            }
        }
    }

    /* register extensions */
    var reg byte
    var mem *codegen.Operand
    switch e.Form {
        case FormRM, FormDigit: {
            if e.Form == FormRM {
                reg = byte(args[e.Reg].Reg)
            } else {
                reg = e.Digit
            }
            mem = args[e.RM]
            if reg & 8 != 0 {
                rex |= 0x44
            }
            rex |= self.rexRM(mem)
        }
        case FormPlusReg: {
            if args[e.RM].Reg & 8 != 0 {
                rex |= 0x41
            }
        }
    }

    /* REX and the opcode */
    if rex != 0 {
        self.Buf.AppendByte(rex)
    }
    if e.Form == FormPlusReg {
        n := len(e.Opcode) - 1
        self.Buf.AppendBytes(e.Opcode[:n]...)
        self.Buf.AppendByte(e.Opcode[n] + byte(args[e.RM].Reg & 7))
    } else {
        self.Buf.AppendBytes(e.Opcode...)
    }

    /* operands */
    switch e.Form {
        case FormRM, FormDigit : self.modrm(reg, mem)
        case FormRel           : self.rel(args[e.RM])
    }

    /* trailing immediate */
    if e.Imm != 0 {
        self.imm(args[len(args) - 1], e.Imm)
    }
}

func (self *Encoder) rexRM(v *codegen.Operand) byte {
    rex := byte(0)
    switch v.Kind {
        case codegen.OpGPR, codegen.OpXMM: {
            if v.Reg & 8 != 0 {
                rex |= 0x41
            }
        }
        case codegen.OpMem: {
            if v.Reg & 8 != 0 {
                rex |= 0x41
            }
            if v.Index.Valid() && v.Index & 8 != 0 {
                rex |= 0x42
            }
        }
    }
    return rex
}

func (self *Encoder) modrm(reg byte, v *codegen.Operand) {
    reg = (reg & 7) << 3
    switch v.Kind {
        case codegen.OpGPR, codegen.OpXMM: {
            self.Buf.AppendByte(0xc0 | reg | byte(v.Reg & 7))
        }

        /* RIP-relative, the displacement is the last field of the instruction */
        case codegen.OpGlobal: {
            self.Buf.AppendByte(0x05 | reg)
            self.symbol(v.Sym)
        }

        case codegen.OpMem: {
            base := byte(v.Reg & 7)
            mod := byte(0x80)

            /* shortest displacement, [rbp] and [r13] always need one */
            if v.Disp == 0 && base != 5 {
                mod = 0x00
            } else if isInt8(v.Disp) {
                mod = 0x40
            }

            /* SIB when there is an index, or the base is rsp/r12 */
            if v.Index.Valid() {
                if v.Index == RSP {
                    self.fail("rsp cannot be an index register")
                }
                self.Buf.AppendByte(mod | reg | 0x04)
                self.Buf.AppendByte(scaleBits(v.Scale) << 6 | byte(v.Index & 7) << 3 | base)
            } else if base == 4 {
                self.Buf.AppendByte(mod | reg | 0x04)
                self.Buf.AppendByte(0x24)
            } else {
                self.Buf.AppendByte(mod | reg | base)
            }

            /* displacement */
            switch mod {
                case 0x40 : self.Buf.AppendByte(byte(int8(v.Disp)))
                case 0x80 : self.Buf.AppendDword(uint32(v.Disp))
            }
        }

        default: {
            self.fail("%s cannot be encoded as a memory operand", v)
        }
    }
}

func (self *Encoder) symbol(sym *ir.Symbol) {
    pos := self.Buf.Len()
    self.Buf.AppendDword(0)
    self.Buf.EmitRelocationDword(&sym.Head, pos)
}

func (self *Encoder) rel(v *codegen.Operand) {
    switch v.Kind {
        case codegen.OpGlobal: {
            self.symbol(v.Sym)
        }
        case codegen.OpLabel: {
            pos := self.Buf.Len()
            self.Buf.AppendDword(0)
            self.Buf.EmitRelocationDword(&self.Labels[v.Label], pos)
        }
        default: {
            self.fail("%s is not a branch target", v)
        }
    }
}

func (self *Encoder) imm(v *codegen.Operand, size uint8) {
    val := uint64(int64(v.Imm))
    if v.Kind == codegen.OpAbs {
        val = v.Abs
    }
    switch size {
        case 1: self.Buf.AppendByte(byte(val))
        case 2: self.Buf.AppendWord(uint16(val))
        case 4: self.Buf.AppendDword(uint32(val))
        case 8: self.Buf.AppendQword(val)
    }
}
