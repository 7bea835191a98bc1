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
    `fmt`
    `strings`
    `sync`

    `github.com/cloudwego/seacg/internal/codegen`
    `github.com/cloudwego/seacg/internal/opts`
    `github.com/cloudwego/seacg/ir`
)

// Op is a machine operation. The width is part of the operation, operands
// are listed destination first.
type Op uint8

const (
    MOV Op = iota
    MOV32
    MOV16
    MOV8
    MOVABS
    LEA
    ADD
    OR
    AND
    SUB
    XOR
    CMP
    TEST
    IMUL
    IMUL3
    NEG
    NOT
    SHL
    SHR
    SAR
    ROL
    ROR
    MOVSX8
    MOVSX16
    MOVSXD
    MOVZX8
    MOVZX16
    SETE
    SETNE
    SETB
    SETBE
    SETA
    SETAE
    SETL
    SETLE
    SETG
    SETGE
    SETP
    SETNP
    CMOVNE
    JMP
    JE
    JNE
    JB
    JBE
    JA
    JAE
    JL
    JLE
    JG
    JGE
    JP
    JNP
    CALL
    RET
    PUSH
    POP
    INT3
    UD2
    POPCNT
    LZCNT
    TZCNT
    MOVSD
    MOVSS
    ADDSD
    ADDSS
    SUBSD
    SUBSS
    MULSD
    MULSS
    DIVSD
    DIVSS
    UCOMISD
    UCOMISS
    CVTSI2SD
    CVTSI2SS
    CVTTSD2SI
    CVTTSS2SI
    MOVQ
    opCount
)

var opNames = [opCount]string {
    MOV       : "mov",
    MOV32     : "mov32",
    MOV16     : "mov16",
    MOV8      : "mov8",
    MOVABS    : "movabs",
    LEA       : "lea",
    ADD       : "add",
    OR        : "or",
    AND       : "and",
    SUB       : "sub",
    XOR       : "xor",
    CMP       : "cmp",
    TEST      : "test",
    IMUL      : "imul",
    IMUL3     : "imul3",
    NEG       : "neg",
    NOT       : "not",
    SHL       : "shl",
    SHR       : "shr",
    SAR       : "sar",
    ROL       : "rol",
    ROR       : "ror",
    MOVSX8    : "movsx8",
    MOVSX16   : "movsx16",
    MOVSXD    : "movsxd",
    MOVZX8    : "movzx8",
    MOVZX16   : "movzx16",
    SETE      : "sete",
    SETNE     : "setne",
    SETB      : "setb",
    SETBE     : "setbe",
    SETA      : "seta",
    SETAE     : "setae",
    SETL      : "setl",
    SETLE     : "setle",
    SETG      : "setg",
    SETGE     : "setge",
    SETP      : "setp",
    SETNP     : "setnp",
    CMOVNE    : "cmovne",
    JMP       : "jmp",
    JE        : "je",
    JNE       : "jne",
    JB        : "jb",
    JBE       : "jbe",
    JA        : "ja",
    JAE       : "jae",
    JL        : "jl",
    JLE       : "jle",
    JG        : "jg",
    JGE       : "jge",
    JP        : "jp",
    JNP       : "jnp",
    CALL      : "call",
    RET       : "ret",
    PUSH      : "push",
    POP       : "pop",
    INT3      : "int3",
    UD2       : "ud2",
    POPCNT    : "popcnt",
    LZCNT     : "lzcnt",
    TZCNT     : "tzcnt",
    MOVSD     : "movsd",
    MOVSS     : "movss",
    ADDSD     : "addsd",
    ADDSS     : "addss",
    SUBSD     : "subsd",
    SUBSS     : "subss",
    MULSD     : "mulsd",
    MULSS     : "mulss",
    DIVSD     : "divsd",
    DIVSS     : "divss",
    UCOMISD   : "ucomisd",
    UCOMISS   : "ucomiss",
    CVTSI2SD  : "cvtsi2sd",
    CVTSI2SS  : "cvtsi2ss",
    CVTTSD2SI : "cvttsd2si",
    CVTTSS2SI : "cvttss2si",
    MOVQ      : "movq",
}

func (self Op) String() string {
    if self < opCount {
        return opNames[self]
    } else {
        return fmt.Sprintf("op(%d)", uint8(self))
    }
}

// condition codes, in setcc/jcc order
var conds = [...]struct {
    set Op
    jcc Op
    cc  byte
} {
    { SETE  , JE  , 0x4 },
    { SETNE , JNE , 0x5 },
    { SETB  , JB  , 0x2 },
    { SETBE , JBE , 0x6 },
    { SETA  , JA  , 0x7 },
    { SETAE , JAE , 0x3 },
    { SETL  , JL  , 0xc },
    { SETLE , JLE , 0xe },
    { SETG  , JG  , 0xf },
    { SETGE , JGE , 0xd },
    { SETP  , JP  , 0xa },
    { SETNP , JNP , 0xb },
}

// Form selects how the operands are packed after the opcode.
type Form uint8

const (
    FormNone Form = iota
    FormRM
    FormDigit
    FormPlusReg
    FormRel
)

// MaxOperands bounds the operand tuple of an instruction.
const MaxOperands = 5

// Key identifies an encoding by operation and operand kinds.
type Key struct {
    Op    Op
    N     uint8
    Kinds [MaxOperands]codegen.OperandKind
}

func (self Key) String() string {
    ks := make([]string, self.N)
    for i := range ks {
        ks[i] = self.Kinds[i].String()
    }
    return fmt.Sprintf("%s %s", self.Op, strings.Join(ks, ", "))
}

// Entry is the byte template of an encoding. Reg and RM are operand indices
// (-1 when unused), Imm is the size of the trailing immediate in bytes.
type Entry struct {
    Prefix  []byte
    Opcode  []byte
    W       bool
    Form    Form
    Reg     int8
    RM      int8
    Digit   byte
    Imm     uint8
    Byte    bool
    Feature opts.Feature
}

// InstructionTable maps (operation, operand kinds) to encodings. It is never
// modified after construction.
type InstructionTable struct {
    rows map[Key]*Entry
}

func key(op Op, kinds ...codegen.OperandKind) Key {
    k := Key { Op: op, N: uint8(len(kinds)) }
    copy(k.Kinds[:], kinds)
    return k
}

const (
    kG = codegen.OpGPR
    kX = codegen.OpXMM
    kM = codegen.OpMem
    kI = codegen.OpImm
    kA = codegen.OpAbs
    kL = codegen.OpLabel
    kS = codegen.OpGlobal
)

type _Row struct {
    key Key
    ent Entry
}

func rm(op Op, dst codegen.OperandKind, src codegen.OperandKind, w bool, opcode ...byte) _Row {
    return _Row { key(op, dst, src), Entry { Opcode: opcode, W: w, Form: FormRM, Reg: 0, RM: 1 } }
}

func mr(op Op, dst codegen.OperandKind, src codegen.OperandKind, w bool, opcode ...byte) _Row {
    return _Row { key(op, dst, src), Entry { Opcode: opcode, W: w, Form: FormRM, Reg: 1, RM: 0 } }
}

func digit(k Key, w bool, d byte, imm uint8, opcode ...byte) _Row {
    return _Row { k, Entry { Opcode: opcode, W: w, Form: FormDigit, Reg: -1, RM: 0, Digit: d, Imm: imm } }
}

func with(r _Row, fn func(e *Entry)) _Row {
    fn(&r.ent)
    return r
}

func prefixed(p byte) func(e *Entry) {
    return func(e *Entry) { e.Prefix = []byte { p } }
}

func bytereg(e *Entry) {
    e.Byte = true
}

func feature(f opts.Feature, p byte) func(e *Entry) {
    return func(e *Entry) { e.Prefix = []byte { p }; e.Feature = f }
}

func buildRows() []_Row {
    rows := []_Row {
        mr(MOV, kG, kG, true, 0x89),
        rm(MOV, kG, kM, true, 0x8b),
        mr(MOV, kM, kG, true, 0x89),
        rm(MOV, kG, kS, true, 0x8b),
        mr(MOV, kS, kG, true, 0x89),
        digit(key(MOV, kG, kI), true, 0, 4, 0xc7),
        digit(key(MOV, kM, kI), true, 0, 4, 0xc7),
        mr(MOV32, kG, kG, false, 0x89),
        rm(MOV32, kG, kM, false, 0x8b),
        mr(MOV32, kM, kG, false, 0x89),
        digit(key(MOV32, kM, kI), false, 0, 4, 0xc7),
        with(mr(MOV16, kM, kG, false, 0x89), prefixed(0x66)),
        with(digit(key(MOV16, kM, kI), false, 0, 2, 0xc7), prefixed(0x66)),
        with(mr(MOV8, kM, kG, false, 0x88), bytereg),
        digit(key(MOV8, kM, kI), false, 0, 1, 0xc6),
        { key(MOVABS, kG, kA), Entry { Opcode: []byte { 0xb8 }, W: true, Form: FormPlusReg, Reg: -1, RM: 0, Imm: 8 } },
        rm(LEA, kG, kM, true, 0x8d),
        rm(LEA, kG, kS, true, 0x8d),
        mr(TEST, kG, kG, true, 0x85),
        digit(key(TEST, kG, kI), true, 0, 4, 0xf7),
        rm(IMUL, kG, kG, true, 0x0f, 0xaf),
        rm(IMUL, kG, kM, true, 0x0f, 0xaf),
        { key(IMUL3, kG, kG, kI), Entry { Opcode: []byte { 0x69 }, W: true, Form: FormRM, Reg: 0, RM: 1, Imm: 4 } },
        digit(key(NEG, kG), true, 3, 0, 0xf7),
        digit(key(NOT, kG), true, 2, 0, 0xf7),
        with(rm(MOVSX8, kG, kG, true, 0x0f, 0xbe), bytereg),
        rm(MOVSX8, kG, kM, true, 0x0f, 0xbe),
        rm(MOVSX16, kG, kG, true, 0x0f, 0xbf),
        rm(MOVSX16, kG, kM, true, 0x0f, 0xbf),
        rm(MOVSXD, kG, kG, true, 0x63),
        rm(MOVSXD, kG, kM, true, 0x63),
        with(rm(MOVZX8, kG, kG, true, 0x0f, 0xb6), bytereg),
        rm(MOVZX8, kG, kM, true, 0x0f, 0xb6),
        rm(MOVZX16, kG, kG, true, 0x0f, 0xb7),
        rm(MOVZX16, kG, kM, true, 0x0f, 0xb7),
        rm(CMOVNE, kG, kG, true, 0x0f, 0x45),
        { key(JMP, kL), Entry { Opcode: []byte { 0xe9 }, Form: FormRel, Reg: -1, RM: 0 } },
        digit(key(JMP, kG), false, 4, 0, 0xff),
        { key(CALL, kS), Entry { Opcode: []byte { 0xe8 }, Form: FormRel, Reg: -1, RM: 0 } },
        digit(key(CALL, kG), false, 2, 0, 0xff),
        { key(RET), Entry { Opcode: []byte { 0xc3 }, Reg: -1, RM: -1 } },
        { key(INT3), Entry { Opcode: []byte { 0xcc }, Reg: -1, RM: -1 } },
        { key(UD2), Entry { Opcode: []byte { 0x0f, 0x0b }, Reg: -1, RM: -1 } },
        { key(PUSH, kG), Entry { Opcode: []byte { 0x50 }, Form: FormPlusReg, Reg: -1, RM: 0 } },
        { key(POP, kG), Entry { Opcode: []byte { 0x58 }, Form: FormPlusReg, Reg: -1, RM: 0 } },
        with(rm(POPCNT, kG, kG, true, 0x0f, 0xb8), feature(opts.FeaturePOPCNT, 0xf3)),
        with(rm(LZCNT, kG, kG, true, 0x0f, 0xbd), feature(opts.FeatureLZCNT, 0xf3)),
        with(rm(TZCNT, kG, kG, true, 0x0f, 0xbc), feature(opts.FeatureBMI1, 0xf3)),
        with(rm(UCOMISD, kX, kX, false, 0x0f, 0x2e), prefixed(0x66)),
        with(rm(UCOMISD, kX, kM, false, 0x0f, 0x2e), prefixed(0x66)),
        rm(UCOMISS, kX, kX, false, 0x0f, 0x2e),
        rm(UCOMISS, kX, kM, false, 0x0f, 0x2e),
        with(rm(CVTSI2SD, kX, kG, true, 0x0f, 0x2a), prefixed(0xf2)),
        with(rm(CVTSI2SS, kX, kG, true, 0x0f, 0x2a), prefixed(0xf3)),
        with(rm(CVTTSD2SI, kG, kX, true, 0x0f, 0x2c), prefixed(0xf2)),
        with(rm(CVTTSS2SI, kG, kX, true, 0x0f, 0x2c), prefixed(0xf3)),
        with(rm(MOVQ, kX, kG, true, 0x0f, 0x6e), prefixed(0x66)),
        with(mr(MOVQ, kG, kX, true, 0x0f, 0x7e), prefixed(0x66)),
    }

    /* integer arithmetic, the opcode group encodes the operation */
    for _, v := range []struct { op Op; base byte; digit byte } {
        { ADD, 0x00, 0 },
        { OR , 0x08, 1 },
        { AND, 0x20, 4 },
        { SUB, 0x28, 5 },
        { XOR, 0x30, 6 },
        { CMP, 0x38, 7 },
    } {
        rows = append(rows,
            mr(v.op, kG, kG, true, v.base + 1),
            rm(v.op, kG, kM, true, v.base + 3),
            mr(v.op, kM, kG, true, v.base + 1),
            digit(key(v.op, kG, kI), true, v.digit, 4, 0x81),
            digit(key(v.op, kM, kI), true, v.digit, 4, 0x81),
        )
    }

    /* shifts and rotates by an immediate */
    for _, v := range []struct { op Op; digit byte } {
        { ROL, 0 },
        { ROR, 1 },
        { SHL, 4 },
        { SHR, 5 },
        { SAR, 7 },
    } {
        rows = append(rows, digit(key(v.op, kG, kI), true, v.digit, 1, 0xc1))
    }

    /* condition codes */
    for _, c := range conds {
        rows = append(rows,
            with(digit(key(c.set, kG), false, 0, 0, 0x0f, 0x90 + c.cc), bytereg),
            _Row { key(c.jcc, kL), Entry { Opcode: []byte { 0x0f, 0x80 + c.cc }, Form: FormRel, Reg: -1, RM: 0 } },
        )
    }

    /* scalar floating point */
    for _, v := range []struct { sd Op; ss Op; load byte; store byte } {
        { MOVSD, MOVSS, 0x10, 0x11 },
        { ADDSD, ADDSS, 0x58, 0 },
        { SUBSD, SUBSS, 0x5c, 0 },
        { MULSD, MULSS, 0x59, 0 },
        { DIVSD, DIVSS, 0x5e, 0 },
    } {
        rows = append(rows,
            with(rm(v.sd, kX, kX, false, 0x0f, v.load), prefixed(0xf2)),
            with(rm(v.sd, kX, kM, false, 0x0f, v.load), prefixed(0xf2)),
            with(rm(v.ss, kX, kX, false, 0x0f, v.load), prefixed(0xf3)),
            with(rm(v.ss, kX, kM, false, 0x0f, v.load), prefixed(0xf3)),
        )
        if v.store != 0 {
            rows = append(rows,
                with(mr(v.sd, kM, kX, false, 0x0f, v.store), prefixed(0xf2)),
                with(mr(v.ss, kM, kX, false, 0x0f, v.store), prefixed(0xf3)),
            )
        }
    }
    return rows
}

// NewTable builds the table for a target with the given features. Rows that
// need a missing feature are left out.
func NewTable(features opts.Feature) *InstructionTable {
    rows := buildRows()
    tab := &InstructionTable { rows: make(map[Key]*Entry, len(rows)) }

    /* duplicated keys are a bug in the row list */
    for i := range rows {
        r := &rows[i]
        if r.ent.Feature & features != r.ent.Feature {
            continue
        }
        if _, ok := tab.rows[r.key]; ok {
            panic("x64: duplicated encoding for " + r.key.String())
        }
        tab.rows[r.key] = &r.ent
    }
    return tab
}

var (
    fullTableOnce sync.Once
    fullTable     *InstructionTable
)

// FullTable returns the shared table with every optional feature enabled.
func FullTable() *InstructionTable {
    fullTableOnce.Do(func() { fullTable = NewTable(opts.FeaturePOPCNT | opts.FeatureLZCNT | opts.FeatureBMI1) })
    return fullTable
}

// Lookup finds the encoding of op over the kinds of args.
func (self *InstructionTable) Lookup(op Op, args ...*codegen.Operand) (*Entry, bool) {
    if len(args) > MaxOperands {
        ir.Throw(ir.Capacity, "emit", ir.Nil, ir.KindNone, "%s takes at most %d operands, got %d", op, MaxOperands, len(args))
    }
    k := Key { Op: op, N: uint8(len(args)) }
    for i, v := range args {
        k.Kinds[i] = v.Kind
    }
    e, ok := self.rows[k]
    return e, ok
}

// Len returns the number of encodings in the table.
func (self *InstructionTable) Len() int {
    return len(self.rows)
}
