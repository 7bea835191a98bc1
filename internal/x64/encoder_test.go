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
    `testing`

    `github.com/chenzhuoyu/iasm/x86_64`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
    `golang.org/x/arch/x86/x86asm`

    `github.com/cloudwego/seacg/internal/buffer`
    `github.com/cloudwego/seacg/internal/codegen`
    `github.com/cloudwego/seacg/ir`
)

func newOperands() *codegen.Context {
    return codegen.NewContext(ir.NewFunction("test", ir.DefaultLimits()), nil, Registers)
}

func texts(code []byte) []string {
    var ret []string
    for _, v := range Decode(code, 0) {
        ret = append(ret, v.Text)
    }
    return ret
}

func assemble(t *testing.T, src string) []byte {
    var asm x86_64.Assembler
    require.NoError(t, asm.Assemble(src))
    return asm.Code()
}

func catch(fn func()) (err error) {
    defer ir.Recover(&err)
    fn()
    return
}

func TestEncoder_MatchesAssembler(t *testing.T) {
    c := newOperands()
    gpr, xmm := c.CreateGPR, c.CreateXMM
    mem := func(base codegen.Reg, disp int32) *codegen.Operand { return c.CreateMem(base, codegen.InvalidReg, 0, disp) }

    tests := []struct {
        name string
        op   Op
        args []*codegen.Operand
        src  string
    } {
        { "mov-rr"     , MOV     , []*codegen.Operand { gpr(RAX), gpr(RCX) }                              , "movq %rcx, %rax" },
        { "mov-ext"    , MOV     , []*codegen.Operand { gpr(R9), gpr(R14) }                               , "movq %r14, %r9" },
        { "mov-load"   , MOV     , []*codegen.Operand { gpr(R12), mem(RBP, -8) }                          , "movq -8(%rbp), %r12" },
        { "mov-store"  , MOV     , []*codegen.Operand { mem(RSP, 16), gpr(RDX) }                          , "movq %rdx, 16(%rsp)" },
        { "mov-r13"    , MOV     , []*codegen.Operand { mem(R13, 0), gpr(RAX) }                           , "movq %rax, (%r13)" },
        { "mov-r12"    , MOV     , []*codegen.Operand { gpr(RBX), mem(R12, 0) }                           , "movq (%r12), %rbx" },
        { "mov-disp32" , MOV     , []*codegen.Operand { gpr(RSI), mem(RDI, 4096) }                        , "movq 4096(%rdi), %rsi" },
        { "mov-imm"    , MOV     , []*codegen.Operand { gpr(R8), c.CreateImm(-1) }                        , "movq $-1, %r8" },
        { "mov32"      , MOV32   , []*codegen.Operand { gpr(RAX), gpr(RCX) }                              , "movl %ecx, %eax" },
        { "lea-sib"    , LEA     , []*codegen.Operand { gpr(RCX), c.CreateMem(RAX, R9, 8, 256) }          , "leaq 256(%rax,%r9,8), %rcx" },
        { "lea-r13"    , LEA     , []*codegen.Operand { gpr(RDX), c.CreateMem(R13, RCX, 4, 0) }           , "leaq (%r13,%rcx,4), %rdx" },
        { "add-imm"    , ADD     , []*codegen.Operand { gpr(RAX), c.CreateImm(1) }                        , "addq $1, %rax" },
        { "sub-rsp"    , SUB     , []*codegen.Operand { gpr(RSP), c.CreateImm(32) }                       , "subq $32, %rsp" },
        { "xor-ext"    , XOR     , []*codegen.Operand { gpr(R8), gpr(R15) }                               , "xorq %r15, %r8" },
        { "cmp-mem"    , CMP     , []*codegen.Operand { mem(RBP, -16), c.CreateImm(7) }                   , "cmpq $7, -16(%rbp)" },
        { "imul"       , IMUL    , []*codegen.Operand { gpr(RDX), gpr(RSI) }                              , "imulq %rsi, %rdx" },
        { "imul3"      , IMUL3   , []*codegen.Operand { gpr(RAX), gpr(RCX), c.CreateImm(10) }             , "imulq $10, %rcx, %rax" },
        { "movzbq"     , MOVZX8  , []*codegen.Operand { gpr(RAX), gpr(RSI) }                              , "movzbq %sil, %rax" },
        { "shl"        , SHL     , []*codegen.Operand { gpr(RAX), c.CreateImm(3) }                        , "shlq $3, %rax" },
        { "neg"        , NEG     , []*codegen.Operand { gpr(RDI) }                                        , "negq %rdi" },
        { "movsd-load" , MOVSD   , []*codegen.Operand { xmm(XMM1), mem(RAX, 8) }                          , "movsd 8(%rax), %xmm1" },
        { "addsd"      , ADDSD   , []*codegen.Operand { xmm(XMM9), xmm(XMM2) }                            , "addsd %xmm2, %xmm9" },
        { "push"       , PUSH    , []*codegen.Operand { gpr(RBP) }                                        , "pushq %rbp" },
        { "pop"        , POP     , []*codegen.Operand { gpr(R12) }                                        , "popq %r12" },
        { "ret"        , RET     , nil                                                                    , "ret" },
    }

    for _, tc := range tests {
        t.Run(tc.name, func(t *testing.T) {
            buf := buffer.New(16)
            NewEncoder(buf, FullTable(), 0).Emit(tc.op, tc.args...)
            assert.Equal(t, texts(assemble(t, tc.src)), texts(buf.Bytes()))
        })
    }
}

func TestEncoder_ByteRegisters(t *testing.T) {
    c := newOperands()
    buf := buffer.New(16)
    e := NewEncoder(buf, FullTable(), 0)
    e.Emit(SETE, c.CreateGPR(RSI))
    e.Emit(SETNE, c.CreateGPR(RAX))

    /* sil needs an empty REX prefix, al does not */
    assert.Equal(t, []byte { 0x40, 0x0f, 0x94, 0xc6, 0x0f, 0x95, 0xc0 }, buf.Bytes())
    inst, err := x86asm.Decode(buf.Bytes(), 64)
    require.NoError(t, err)
    assert.Equal(t, x86asm.SETE, inst.Op)
    assert.Equal(t, x86asm.SIB, inst.Args[0])
}

func TestEncoder_MovAbs(t *testing.T) {
    c := newOperands()
    buf := buffer.New(16)
    NewEncoder(buf, FullTable(), 0).Emit(MOVABS, c.CreateGPR(R11), c.CreateAbs(0x123456789abcdef0))
    inst, err := x86asm.Decode(buf.Bytes(), 64)
    require.NoError(t, err)
    assert.Equal(t, 10, inst.Len)
    assert.Equal(t, x86asm.MOV, inst.Op)
    assert.Equal(t, x86asm.R11, inst.Args[0])
    assert.Equal(t, x86asm.Imm(0x123456789abcdef0), inst.Args[1])
}

func TestEncoder_Labels(t *testing.T) {
    c := newOperands()
    buf := buffer.New(64)
    e := NewEncoder(buf, FullTable(), 2)

    /* two forward jumps share one chain */
    e.Emit(JMP, c.CreateLabel(1))
    e.Emit(JE, c.CreateLabel(1))
    e.Emit(RET)
    assert.False(t, e.Bound(1))
    e.Bind(1)
    assert.True(t, e.Bound(1))
    target := buf.Len()
    e.Emit(RET)

    /* a backward jump is patched right away */
    e.Bind(0)
    e.Emit(JMP, c.CreateLabel(0))

    var pc int
    var dst []int
    for pc < buf.Len() {
        inst, err := x86asm.Decode(buf.Bytes()[pc:], 64)
        require.NoError(t, err)
        if rel, ok := inst.Args[0].(x86asm.Rel); ok {
            dst = append(dst, pc + inst.Len + int(rel))
        }
        pc += inst.Len
    }
    assert.Equal(t, []int { target, target, target + 1 }, dst)
}

func TestEncoder_Symbols(t *testing.T) {
    c := newOperands()
    buf := buffer.New(64)
    sym := ir.NewSymbolTable().Declare("callee", ir.SymbolExternal)
    e := NewEncoder(buf, FullTable(), 0)
    e.Emit(PUSH, c.CreateGPR(RBP))
    e.Emit(CALL, c.CreateGlobal(sym))
    e.Emit(LEA, c.CreateGPR(RAX), c.CreateGlobal(sym))
    require.Len(t, buf.Pending(sym.Head), 2)

    /* resolving patches both the call and the rip-relative address */
    buf.ResolveRelocationDword(&sym.Head, 0)
    assert.Empty(t, buf.Pending(sym.Head))
    call, err := x86asm.Decode(buf.Bytes()[1:], 64)
    require.NoError(t, err)
    assert.Equal(t, x86asm.CALL, call.Op)
    assert.Equal(t, x86asm.Rel(-6), call.Args[0])
    lea, err := x86asm.Decode(buf.Bytes()[6:], 64)
    require.NoError(t, err)
    assert.Equal(t, x86asm.LEA, lea.Op)
    assert.Equal(t, x86asm.RIP, lea.Args[1].(x86asm.Mem).Base)
    assert.Equal(t, int32(-13), int32(lea.Args[1].(x86asm.Mem).Disp))
}

func TestEncoder_Errors(t *testing.T) {
    c := newOperands()
    e := NewEncoder(buffer.New(16), FullTable(), 0)

    /* no memory to memory moves */
    err := catch(func() { e.Emit(MOV, c.CreateMem(RAX, codegen.InvalidReg, 0, 0), c.CreateMem(RCX, codegen.InvalidReg, 0, 0)) })
    require.Error(t, err)
    assert.Equal(t, ir.Structural, err.(*ir.CompileError).Class)
    assert.Contains(t, err.Error(), "no encoding for mov")

    /* rsp is never an index */
    err = catch(func() { e.Emit(LEA, c.CreateGPR(RAX), c.CreateMem(RAX, RSP, 1, 0)) })
    require.Error(t, err)
    assert.Contains(t, err.Error(), "index")
}
