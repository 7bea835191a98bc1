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
    `math`

    `github.com/cloudwego/seacg/internal/buffer`
    `github.com/cloudwego/seacg/internal/codegen`
    `github.com/cloudwego/seacg/internal/sched`
    `github.com/cloudwego/seacg/ir`
)

var setccOf = map[ir.Kind]Op {
    ir.KindCmpEQ  : SETE,
    ir.KindCmpNE  : SETNE,
    ir.KindCmpULT : SETB,
    ir.KindCmpULE : SETBE,
    ir.KindCmpSLT : SETL,
    ir.KindCmpSLE : SETLE,
    ir.KindCmpFLT : SETA,
    ir.KindCmpFLE : SETAE,
}

var aluOf = map[ir.Kind]Op {
    ir.KindAdd : ADD,
    ir.KindSub : SUB,
    ir.KindAnd : AND,
    ir.KindOr  : OR,
    ir.KindXor : XOR,
    ir.KindShl : SHL,
    ir.KindShr : SHR,
    ir.KindSar : SAR,
    ir.KindRol : ROL,
    ir.KindRor : ROR,
}

var sseOf = map[ir.Kind][2]Op {
    ir.KindFAdd : { ADDSD, ADDSS },
    ir.KindFSub : { SUBSD, SUBSS },
    ir.KindFMul : { MULSD, MULSS },
    ir.KindFDiv : { DIVSD, DIVSS },
}

// Emitter lowers one scheduled and allocated function, block by block in
// layout order.
type Emitter struct {
    *Encoder
    ctx *codegen.Context
    fn  *ir.Function
    s   *sched.Schedule
}

// Emit appends the machine code of ctx to buf and returns the offset of the
// first instruction. The function symbol, if any, is resolved to it.
func Emit(ctx *codegen.Context, t *Target, buf *buffer.CodeBuffer) int {
    self := &Emitter {
        Encoder : NewEncoder(buf, t.Table, len(ctx.Sched.Blocks)),
        ctx     : ctx,
        fn      : ctx.Func,
        s       : ctx.Sched,
    }

    /* calls to this function may already be waiting */
    start := buf.Len()
    if sym := self.fn.Symbol; sym != nil {
        buf.ResolveRelocationDword(&sym.Head, start)
    }

    /* function body */
    self.prologue()
    self.params()
    for _, bb := range self.s.Blocks {
        self.Bind(bb.Id)
        for _, h := range bb.Nodes {
            self.lower(bb, h)
        }
        if bb.Term == sched.TermJump {
            self.jump(bb)
        }
    }
    return start
}

/** Operand Helpers **/

func (self *Emitter) gpr(r codegen.Reg) *codegen.Operand {
    return self.ctx.CreateGPR(r)
}

func (self *Emitter) xmm(r codegen.Reg) *codegen.Operand {
    return self.ctx.CreateXMM(r)
}

func (self *Emitter) imm(v int32) *codegen.Operand {
    return self.ctx.CreateImm(v)
}

func (self *Emitter) ptr(base codegen.Reg, disp int32) *codegen.Operand {
    return self.ctx.CreateMem(base, codegen.InvalidReg, 0, disp)
}

func (self *Emitter) scratch(c codegen.RegClass) *codegen.Operand {
    return self.ctx.Scratch(c)
}

func (self *Emitter) temp(c codegen.RegClass) *codegen.Operand {
    return self.ctx.Temp(c)
}

func (self *Emitter) loc(h ir.Handle) *codegen.Operand {
    v := self.ctx.Loc(h)
    if v == nil {
        self.fail("%s has no location", h)
    }
    return v
}

func (self *Emitter) label(bb *sched.Block) *codegen.Operand {
    return self.ctx.CreateLabel(bb.Id)
}

func isInt32(v int64) bool {
    return v >= math.MinInt32 && v <= math.MaxInt32
}

func mask(bits uint8) uint64 {
    if bits >= 64 {
        return math.MaxUint64
    } else {
        return uint64(1) << bits - 1
    }
}

// canonical returns the value of an integer constant as it lives in a
// register: zero-extended from its width.
func canonical(p *ir.Node) int64 {
    return int64(p.Integer().Value & mask(p.Type.Bits))
}

// output picks the register a result is computed in: the destination when
// it is a register of the right class that no operand still needs.
func (self *Emitter) output(dst *codegen.Operand, c codegen.RegClass, keep ...ir.Handle) *codegen.Operand {
    if dst.Class() != c {
        return self.scratch(c)
    }
    for _, h := range keep {
        if dst.Matches(self.loc(h)) {
            return self.scratch(c)
        }
    }
    return dst
}

// operand returns an immediate for small integer constants and the location
// of the value otherwise.
func (self *Emitter) operand(h ir.Handle) *codegen.Operand {
    if p := self.fn.Node(h); p.Kind == ir.KindInteger {
        if v := canonical(p); isInt32(v) {
            return self.imm(int32(v))
        }
    }
    return self.loc(h)
}

// inReg returns a register holding h, loading it into tmp if it was spilled.
func (self *Emitter) inReg(h ir.Handle, tmp *codegen.Operand) *codegen.Operand {
    v := self.loc(h)
    if v.IsReg() {
        return v
    }
    self.move(tmp, v, tmp.Class())
    return tmp
}

// move copies a full register between any two locations of a class.
func (self *Emitter) move(dst *codegen.Operand, src *codegen.Operand, c codegen.RegClass) {
    if dst.Matches(src) {
        return
    }

    /* pick the operation */
    op := MOV
    if c == codegen.ClassXMM {
        op = MOVSD
    }

    /* memory to memory goes through the scratch register */
    if dst.Kind == codegen.OpMem && src.Kind == codegen.OpMem {
        t := self.scratch(c)
        self.Emit(op, t, src)
        self.Emit(op, dst, t)
    } else {
        self.Emit(op, dst, src)
    }
}

func (self *Emitter) moves(mv []codegen.Move) {
    for _, m := range codegen.Sequentialize(mv, self.ctx.Temp) {
        self.move(m.Dst, m.Src, m.Class)
    }
}

// normalize zero-extends a narrow integer in r from its width.
func (self *Emitter) normalize(r *codegen.Operand, t ir.DataType) {
    if t.ID != ir.TypeInteger {
        return
    }
    switch t.Bits {
        case 64 : break
        case 32 : self.Emit(MOV32, r, r)
        case 16 : self.Emit(MOVZX16, r, r)
        case 8  : self.Emit(MOVZX8, r, r)
        default : self.Emit(SHL, r, self.imm(int32(64 - t.Bits))); self.Emit(SHR, r, self.imm(int32(64 - t.Bits)))
    }
}

// extend sign-extends src of the given width into the register dst.
func (self *Emitter) extend(dst *codegen.Operand, src *codegen.Operand, bits uint8) {
    switch bits {
        case 8  : self.Emit(MOVSX8, dst, src)
        case 16 : self.Emit(MOVSX16, dst, src)
        case 32 : self.Emit(MOVSXD, dst, src)
        case 64 : self.move(dst, src, codegen.ClassGPR)
        default : self.move(dst, src, codegen.ClassGPR); self.Emit(SHL, dst, self.imm(int32(64 - bits))); self.Emit(SAR, dst, self.imm(int32(64 - bits)))
    }
}

/** Frame **/

func (self *Emitter) prologue() {
    self.At(self.fn.Entry, ir.KindEntry)
    self.Emit(PUSH, self.gpr(RBP))
    self.Emit(MOV, self.gpr(RBP), self.gpr(RSP))

    /* reserve the frame */
    if n := self.ctx.Frame.Size(); n != 0 {
        self.Emit(SUB, self.gpr(RSP), self.imm(n))
    }

    /* save the callee-saved registers in use */
    for _, v := range self.ctx.Frame.Saved {
        self.Emit(MOV, self.ptr(RBP, v.Disp), self.ctx.CreateReg(v.Reg))
    }
}

func (self *Emitter) epilogue() {
    for _, v := range self.ctx.Frame.Saved {
        self.Emit(MOV, self.ctx.CreateReg(v.Reg), self.ptr(RBP, v.Disp))
    }
    if n := self.ctx.Frame.Size(); n != 0 {
        self.Emit(ADD, self.gpr(RSP), self.imm(n))
    }
    self.Emit(POP, self.gpr(RBP))
    self.Emit(RET)
}

// params moves the incoming arguments to the locations of the parameters.
func (self *Emitter) params() {
    var mv []codegen.Move
    fn := self.fn
    np := len(fn.Params)
    proj := make(map[int]ir.Handle)

    /* live parameter projections */
    for u := fn.Node(fn.Entry).Users(); u != nil; u = u.Next {
        if p := fn.Node(u.Node); p.Kind == ir.KindProjection && p.Projection().Index >= 2 && codegen.IsValue(p) {
            i := p.Projection().Index - 2
            proj[i] = u.Node
            if i >= np {
                np = i + 1
            }
        }
    }

    /* assign argument registers in order, the rest is on the stack above the return address */
    ni, nf, ns := 0, 0, 0
    for i := 0; i < np; i++ {
        var src *codegen.Operand
        var typ ir.DataType
        h, live := proj[i]

        /* the declared type decides the register class */
        switch {
            case i < len(fn.Params) : typ = fn.Params[i]
            case live               : typ = fn.Node(h).Type
            default                 : typ = ir.I64
        }

        /* pick the source */
        switch c := codegen.ClassOf(typ); {
            case c == codegen.ClassXMM && nf < len(floatArgs) : src = self.xmm(floatArgs[nf]); nf++
            case c == codegen.ClassGPR && ni < len(intArgs)   : src = self.gpr(intArgs[ni]); ni++
            default                                           : src = self.ptr(RBP, int32(16 + 8 * ns)); ns++
        }

        /* unused parameters still take their slot */
        if live {
            mv = append(mv, codegen.Move { Dst: self.loc(h), Src: src, Class: codegen.ClassOf(typ) })
        }
    }

    /* callers leave the upper bits of narrow arguments undefined */
    self.moves(mv)
    for _, h := range proj {
        self.canonicalize(h)
    }
}

// canonicalize zero-extends a narrow integer produced outside of this
// function, wherever it lives.
func (self *Emitter) canonicalize(h ir.Handle) {
    t := self.fn.Node(h).Type
    if t.ID != ir.TypeInteger || t.Bits >= 64 {
        return
    }
    if v := self.loc(h); v.IsReg() {
        self.normalize(v, t)
    } else {
        r := self.scratch(codegen.ClassGPR)
        self.move(r, v, codegen.ClassGPR)
        self.normalize(r, t)
        self.move(v, r, codegen.ClassGPR)
    }
}

/** Control Flow **/

func (self *Emitter) jump(bb *sched.Block) {
    succ := bb.Succs[0]
    self.At(bb.End, self.fn.Node(bb.End).Kind)
    for _, m := range codegen.ResolveEdge(self.ctx, bb, succ) {
        self.move(m.Dst, m.Src, m.Class)
    }
    if succ.Id != bb.Id + 1 {
        self.Emit(JMP, self.label(succ))
    }
}

func (self *Emitter) branch(bb *sched.Block, h ir.Handle, p *ir.Node) {
    bp := p.Branch()
    kt := self.fn.Node(p.Inputs[1]).Type
    key := self.loc(p.Inputs[1])

    /* compare against every case key */
    for i, v := range bp.Keys {
        k := int64(uint64(v) & mask(kt.Bits))
        if isInt32(k) {
            self.Emit(CMP, key, self.imm(int32(k)))
        } else {
            self.Emit(MOVABS, self.temp(codegen.ClassGPR), self.ctx.CreateAbs(uint64(k)))
            self.Emit(CMP, key, self.temp(codegen.ClassGPR))
        }
        self.Emit(JE, self.label(self.s.BlockOf(bp.Successors[i + 1])))
    }

    /* everything else goes to the default */
    if def := self.s.BlockOf(bp.Successors[0]); def.Id != bb.Id + 1 {
        self.Emit(JMP, self.label(def))
    }
}

func (self *Emitter) call(h ir.Handle, p *ir.Node) {
    var mv []codegen.Move
    ni, nf := 0, 0
    target := p.Inputs[2]

    /* arguments go to the SysV registers */
    for _, a := range p.Inputs[3:] {
        var dst *codegen.Operand
        c := codegen.ClassOf(self.fn.Node(a).Type)
        switch {
            case c == codegen.ClassXMM && nf < len(floatArgs) : dst = self.xmm(floatArgs[nf]); nf++
            case c == codegen.ClassGPR && ni < len(intArgs)   : dst = self.gpr(intArgs[ni]); ni++
            default                                           : ir.Throw(ir.Capacity, "emit", h, p.Kind, "stack arguments are not supported")
        }
        mv = append(mv, codegen.Move { Dst: dst, Src: self.loc(a), Class: c })
    }

    /* direct calls go through the symbol, anything else through rax */
    tp := self.fn.Node(target)
    if tp.Kind == ir.KindSymbol {
        self.moves(mv)
        self.Emit(CALL, self.ctx.CreateGlobal(tp.Symbol().Symbol))
    } else {
        self.moves(append(mv, codegen.Move { Dst: self.gpr(RAX), Src: self.loc(target), Class: codegen.ClassGPR }))
        self.Emit(CALL, self.gpr(RAX))
    }

    /* pick up the result */
    if r := self.fn.Projection(h, 2); r != ir.Nil {
        if c := codegen.ClassOf(self.fn.Node(r).Type); c == codegen.ClassXMM {
            self.move(self.loc(r), self.xmm(XMM0), c)
        } else {
            self.move(self.loc(r), self.gpr(RAX), c)
            self.canonicalize(r)
        }
    }
}

func (self *Emitter) ret(p *ir.Node) {
    if len(p.Inputs) > 2 {
        v := p.Inputs[2]
        if c := codegen.ClassOf(self.fn.Node(v).Type); c == codegen.ClassXMM {
            self.move(self.xmm(XMM0), self.loc(v), c)
        } else {
            self.move(self.gpr(RAX), self.loc(v), c)
        }
    }
    self.epilogue()
}

/** Lowering **/

func (self *Emitter) lower(bb *sched.Block, h ir.Handle) {
    p := self.fn.Node(h)
    self.At(h, p.Kind)

    switch k := p.Kind; {
        case k == ir.KindEntry      : break
        case k == ir.KindRegion     : break
        case k == ir.KindPhi        : break
        case k == ir.KindProjection : break
        case k == ir.KindBranch     : self.branch(bb, h, p)
        case k == ir.KindReturn     : self.ret(p)
        case k == ir.KindCall       : self.call(h, p)
        case k == ir.KindDebugBreak : self.Emit(INT3)
        case k == ir.KindTrap       : self.Emit(UD2)
        case k == ir.KindInteger    : self.integer(h, p)
        case k == ir.KindF32        : self.float(h, uint64(math.Float32bits(float32(p.Float().Value))))
        case k == ir.KindF64        : self.float(h, math.Float64bits(p.Float().Value))
        case k == ir.KindSymbol     : self.symbol(h, p)
        case k == ir.KindLocal      : self.local(h)
        case k == ir.KindMember     : self.member(h, p)
        case k == ir.KindArray      : self.array(h, p)
        case k == ir.KindLoad       : self.load(h, p)
        case k == ir.KindStore      : self.store(p)
        case k == ir.KindSelect     : self.selectv(h, p)
        case k.IsCompare()          : self.compare(h, p)
        case k.IsConversion()       : self.convert(h, p)
        case k.IsUnary()            : self.unary(h, p)
        case p.Type.IsFloat()       : self.fbinary(h, p)
        case k.IsBinary()           : self.binary(h, p)
        default                     : self.fail("no instruction selection for %s", k)
    }
}

func (self *Emitter) integer(h ir.Handle, p *ir.Node) {
    dst := self.loc(h)
    v := canonical(p)

    /* sign-extended 32-bit immediates cover most constants */
    if isInt32(v) {
        self.move(dst, self.imm(int32(v)), codegen.ClassGPR)
        return
    }

    /* the rest needs a full 64-bit immediate */
    out := self.output(dst, codegen.ClassGPR)
    self.Emit(MOVABS, out, self.ctx.CreateAbs(uint64(v)))
    self.move(dst, out, codegen.ClassGPR)
}

func (self *Emitter) float(h ir.Handle, bits uint64) {
    dst := self.loc(h)
    tmp := self.scratch(codegen.ClassGPR)
    self.Emit(MOVABS, tmp, self.ctx.CreateAbs(bits))
    if dst.Kind == codegen.OpXMM {
        self.Emit(MOVQ, dst, tmp)
    } else {
        self.move(dst, tmp, codegen.ClassGPR)
    }
}

func (self *Emitter) address(h ir.Handle, mem *codegen.Operand) {
    dst := self.loc(h)
    out := self.output(dst, codegen.ClassGPR)
    self.Emit(LEA, out, mem)
    self.move(dst, out, codegen.ClassGPR)
}

func (self *Emitter) symbol(h ir.Handle, p *ir.Node) {
    if !codegen.IsCallTarget(self.fn, h) {
        self.address(h, self.ctx.CreateGlobal(p.Symbol().Symbol))
    }
}

func (self *Emitter) local(h ir.Handle) {
    if disp, ok := self.ctx.LocalDisp(h); !ok {
        self.fail("stack slot has not been reserved")
    } else {
        self.address(h, self.ptr(RBP, disp))
    }
}

func (self *Emitter) member(h ir.Handle, p *ir.Node) {
    base := self.inReg(p.Inputs[0], self.scratch(codegen.ClassGPR))
    self.address(h, self.ptr(base.Reg, p.Member().Offset))
}

func (self *Emitter) array(h ir.Handle, p *ir.Node) {
    stride := p.Array().Stride
    base := self.inReg(p.Inputs[0], self.scratch(codegen.ClassGPR))
    index := self.inReg(p.Inputs[1], self.temp(codegen.ClassGPR))

    /* strides other than 1, 2, 4 and 8 are scaled separately */
    switch stride {
        case 1, 2, 4, 8: {
            self.address(h, self.ctx.CreateMem(base.Reg, index.Reg, uint8(stride), 0))
        }
        default: {
            if !isInt32(stride) {
                ir.Throw(ir.Capacity, "emit", h, p.Kind, "array stride %d does not fit in 32 bits", stride)
            }
            t := self.temp(codegen.ClassGPR)
            self.Emit(IMUL3, t, index, self.imm(int32(stride)))
            self.address(h, self.ctx.CreateMem(base.Reg, t.Reg, 1, 0))
        }
    }
}

func (self *Emitter) load(h ir.Handle, p *ir.Node) {
    dst := self.loc(h)
    addr := self.inReg(p.Inputs[2], self.temp(codegen.ClassGPR))
    mem := self.ptr(addr.Reg, 0)

    /* floating point loads */
    if p.Type.IsFloat() {
        out := self.output(dst, codegen.ClassXMM)
        if p.Type.Bits == 32 {
            self.Emit(MOVSS, out, mem)
        } else {
            self.Emit(MOVSD, out, mem)
        }
        self.move(dst, out, codegen.ClassXMM)
        return
    }

    /* narrow loads zero-extend */
    out := self.output(dst, codegen.ClassGPR)
    switch p.Type.Bytes() {
        case 8  : self.Emit(MOV, out, mem)
        case 4  : self.Emit(MOV32, out, mem)
        case 2  : self.Emit(MOVZX16, out, mem)
        case 1  : self.Emit(MOVZX8, out, mem)
        default : self.fail("cannot load %s", p.Type)
    }
    self.normalize(out, p.Type)
    self.move(dst, out, codegen.ClassGPR)
}

func (self *Emitter) store(p *ir.Node) {
    addr := self.inReg(p.Inputs[2], self.temp(codegen.ClassGPR))
    mem := self.ptr(addr.Reg, 0)
    v := p.Inputs[3]
    t := self.fn.Node(v).Type

    /* floating point stores */
    if t.IsFloat() {
        x := self.inReg(v, self.scratch(codegen.ClassXMM))
        if t.Bits == 32 {
            self.Emit(MOVSS, mem, x)
        } else {
            self.Emit(MOVSD, mem, x)
        }
        return
    }

    /* pick the width */
    var op Op
    switch t.Bytes() {
        case 8  : op = MOV
        case 4  : op = MOV32
        case 2  : op = MOV16
        case 1  : op = MOV8
        default : self.fail("cannot store %s", t)
    }

    /* constants are stored directly */
    if src := self.operand(v); src.Kind == codegen.OpImm {
        self.Emit(op, mem, src)
    } else {
        self.Emit(op, mem, self.inReg(v, self.scratch(codegen.ClassGPR)))
    }
}

func (self *Emitter) binary(h ir.Handle, p *ir.Node) {
    a, b := p.Inputs[0], p.Inputs[1]
    dst := self.loc(h)
    out := self.output(dst, codegen.ClassGPR, b)
    self.move(out, self.loc(a), codegen.ClassGPR)
    src := self.operand(b)

    switch k := p.Kind; k {
        case ir.KindMul: {
            if src.Kind == codegen.OpImm {
                self.Emit(IMUL3, out, out, src)
            } else {
                self.Emit(IMUL, out, src)
            }
        }

        /* shift amounts are immediates, rotates are only defined on full registers */
        case ir.KindShl, ir.KindShr, ir.KindSar, ir.KindRol, ir.KindRor: {
            if src.Kind == codegen.OpImm {
                src = self.imm(src.Imm & 63)
            }
            if (k == ir.KindRol || k == ir.KindRor) && p.Type.Bits != 64 {
                self.fail("no encoding for %s on %s", k, p.Type)
            }
            if k == ir.KindSar {
                self.extend(out, out, p.Type.Bits)
            }
            self.Emit(aluOf[k], out, src)
        }

        default: {
            if op, ok := aluOf[k]; ok {
                self.Emit(op, out, src)
            } else {
                self.fail("no encoding for %s", k)
            }
        }
    }

    /* keep narrow values canonical */
    self.normalize(out, p.Type)
    self.move(dst, out, codegen.ClassGPR)
}

func (self *Emitter) fbinary(h ir.Handle, p *ir.Node) {
    ops, ok := sseOf[p.Kind]
    if !ok {
        self.fail("no encoding for %s on %s", p.Kind, p.Type)
    }

    /* single or double precision */
    op, mov := ops[0], MOVSD
    if p.Type.Bits == 32 {
        op, mov = ops[1], MOVSS
    }

    /* compute into the destination unless it holds the second operand */
    a, b := p.Inputs[0], p.Inputs[1]
    dst := self.loc(h)
    out := self.output(dst, codegen.ClassXMM, b)
    if la := self.loc(a); !out.Matches(la) {
        self.Emit(mov, out, la)
    }
    self.Emit(op, out, self.loc(b))
    self.move(dst, out, codegen.ClassXMM)
}

func (self *Emitter) compare(h ir.Handle, p *ir.Node) {
    a, b := p.Inputs[0], p.Inputs[1]
    t := self.fn.Node(a).Type
    r := self.temp(codegen.ClassGPR)
    set := setccOf[p.Kind]

    switch {
        /* b > a and b >= a are unordered-safe with the operands swapped */
        case t.IsFloat(): {
            op := UCOMISD
            if t.Bits == 32 {
                op = UCOMISS
            }
            switch p.Kind {
                case ir.KindCmpFLT, ir.KindCmpFLE: {
                    self.Emit(op, self.inReg(b, self.scratch(codegen.ClassXMM)), self.loc(a))
                    self.Emit(set, r)
                }
                case ir.KindCmpEQ: {
                    self.Emit(op, self.inReg(a, self.scratch(codegen.ClassXMM)), self.loc(b))
                    self.Emit(SETE, r)
                    self.Emit(SETNP, self.scratch(codegen.ClassGPR))
                    self.Emit(AND, r, self.scratch(codegen.ClassGPR))
                }
                case ir.KindCmpNE: {
                    self.Emit(op, self.inReg(a, self.scratch(codegen.ClassXMM)), self.loc(b))
                    self.Emit(SETNE, r)
                    self.Emit(SETP, self.scratch(codegen.ClassGPR))
                    self.Emit(OR, r, self.scratch(codegen.ClassGPR))
                }
                default: {
                    self.fail("no encoding for %s on %s", p.Kind, t)
                }
            }
        }

        /* narrow signed compares look at the sign-extended values */
        case (p.Kind == ir.KindCmpSLT || p.Kind == ir.KindCmpSLE) && t.Bits < 64: {
            ra := self.scratch(codegen.ClassGPR)
            self.extend(ra, self.loc(a), t.Bits)
            self.extend(r, self.loc(b), t.Bits)
            self.Emit(CMP, ra, r)
            self.Emit(set, r)
        }

        default: {
            la := self.loc(a)
            src := self.operand(b)
            if la.Kind == codegen.OpMem && src.Kind == codegen.OpMem {
                la = self.inReg(a, self.scratch(codegen.ClassGPR))
            }
            self.Emit(CMP, la, src)
            self.Emit(set, r)
        }
    }

    /* booleans are 0 or 1 */
    self.Emit(MOVZX8, r, r)
    self.move(self.loc(h), r, codegen.ClassGPR)
}

func (self *Emitter) unary(h ir.Handle, p *ir.Node) {
    a := p.Inputs[0]
    dst := self.loc(h)

    /* floating point negation flips the sign bit */
    if p.Type.IsFloat() {
        if p.Kind != ir.KindNeg {
            self.fail("no encoding for %s on %s", p.Kind, p.Type)
        }
        bit := uint64(1) << 63
        if p.Type.Bits == 32 {
            bit = 1 << 31
        }
        r := self.scratch(codegen.ClassGPR)
        self.Emit(MOVQ, r, self.inReg(a, self.scratch(codegen.ClassXMM)))
        self.Emit(MOVABS, self.temp(codegen.ClassGPR), self.ctx.CreateAbs(bit))
        self.Emit(XOR, r, self.temp(codegen.ClassGPR))
        if dst.Kind == codegen.OpXMM {
            self.Emit(MOVQ, dst, r)
        } else {
            self.move(dst, r, codegen.ClassGPR)
        }
        return
    }

    /* integer operations */
    out := self.output(dst, codegen.ClassGPR)
    switch p.Kind {
        case ir.KindNeg: {
            self.move(out, self.loc(a), codegen.ClassGPR)
            self.Emit(NEG, out)
        }
        case ir.KindNot: {
            self.move(out, self.loc(a), codegen.ClassGPR)
            self.Emit(NOT, out)
        }
        case ir.KindPopCount: {
            self.Emit(POPCNT, out, self.inReg(a, self.temp(codegen.ClassGPR)))
        }
        case ir.KindCLZ: {
            self.Emit(LZCNT, out, self.inReg(a, self.temp(codegen.ClassGPR)))
            if p.Type.Bits < 64 {
                self.Emit(SUB, out, self.imm(int32(64 - p.Type.Bits)))
            }
        }
        case ir.KindCTZ: {
            self.Emit(TZCNT, out, self.inReg(a, self.temp(codegen.ClassGPR)))
        }
    }
    self.normalize(out, p.Type)
    self.move(dst, out, codegen.ClassGPR)
}

func (self *Emitter) convert(h ir.Handle, p *ir.Node) {
    a := p.Inputs[0]
    from := self.fn.Node(a).Type
    dst := self.loc(h)

    switch p.Kind {
        case ir.KindIntToFloat: {
            r := self.scratch(codegen.ClassGPR)
            out := self.output(dst, codegen.ClassXMM)
            self.extend(r, self.loc(a), from.Bits)
            if p.Type.Bits == 32 {
                self.Emit(CVTSI2SS, out, r)
            } else {
                self.Emit(CVTSI2SD, out, r)
            }
            self.move(dst, out, codegen.ClassXMM)
        }

        case ir.KindFloatToInt: {
            x := self.inReg(a, self.scratch(codegen.ClassXMM))
            out := self.output(dst, codegen.ClassGPR)
            if from.Bits == 32 {
                self.Emit(CVTTSS2SI, out, x)
            } else {
                self.Emit(CVTTSD2SI, out, x)
            }
            self.normalize(out, p.Type)
            self.move(dst, out, codegen.ClassGPR)
        }

        case ir.KindSignExtend: {
            out := self.output(dst, codegen.ClassGPR)
            self.extend(out, self.loc(a), from.Bits)
            self.normalize(out, p.Type)
            self.move(dst, out, codegen.ClassGPR)
        }

        /* values are kept zero-extended, truncation clears the high bits */
        default: {
            out := self.output(dst, codegen.ClassGPR)
            self.move(out, self.loc(a), codegen.ClassGPR)
            self.normalize(out, p.Type)
            self.move(dst, out, codegen.ClassGPR)
        }
    }
}

func (self *Emitter) selectv(h ir.Handle, p *ir.Node) {
    if p.Type.IsFloat() {
        self.fail("no encoding for select on %s", p.Type)
    }

    /* mov does not touch the flags, so the true value can be loaded after the test */
    r := self.scratch(codegen.ClassGPR)
    self.move(r, self.loc(p.Inputs[2]), codegen.ClassGPR)
    c := self.inReg(p.Inputs[0], self.temp(codegen.ClassGPR))
    self.Emit(TEST, c, c)
    self.Emit(CMOVNE, r, self.inReg(p.Inputs[1], self.temp(codegen.ClassGPR)))
    self.move(self.loc(h), r, codegen.ClassGPR)
}
