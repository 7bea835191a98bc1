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
    `testing`

    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
    `golang.org/x/arch/x86/x86asm`

    `github.com/cloudwego/seacg/internal/buffer`
    `github.com/cloudwego/seacg/internal/codegen`
    `github.com/cloudwego/seacg/internal/opts`
    `github.com/cloudwego/seacg/internal/sched`
    `github.com/cloudwego/seacg/ir`
)

var allFeatures = NewTarget(opts.FeaturePOPCNT | opts.FeatureLZCNT | opts.FeatureBMI1)

func build(t *testing.T, fn *ir.Function, tg *Target) []byte {
    fn.GenerateUseLists()
    ctx := codegen.NewContext(fn, sched.Compute(fn), Registers)
    codegen.Allocate(ctx)
    buf := buffer.New(256)
    require.Equal(t, 0, Emit(ctx, tg, buf))
    t.Log("\n" + Disassemble(buf.Bytes(), 0))
    return buf.Bytes()
}

func count(ins []Instruction, prefix string) int {
    n := 0
    for _, v := range ins {
        if strings.HasPrefix(v.Text, prefix) {
            n++
        }
    }
    return n
}

func countOp(t *testing.T, ins []Instruction, op x86asm.Op) int {
    n := 0
    for _, v := range ins {
        inst, err := x86asm.Decode(v.Bytes, 64)
        require.NoError(t, err)
        if inst.Op == op {
            n++
        }
    }
    return n
}

// checkCode makes sure everything decodes and every local branch lands on an
// instruction boundary.
func checkCode(t *testing.T, code []byte) []Instruction {
    ins := Decode(code, 0)
    offs := make(map[int]bool, len(ins))
    for _, v := range ins {
        require.NotEqual(t, "(bad)", v.Text, "at %#x", v.Offset)
        offs[v.Offset] = true
    }
    for _, v := range ins {
        inst, err := x86asm.Decode(v.Bytes, 64)
        require.NoError(t, err)
        if rel, ok := inst.Args[0].(x86asm.Rel); ok && inst.Op != x86asm.CALL {
            require.True(t, offs[v.Offset + inst.Len + int(rel)], "%s at %#x jumps into an instruction", v.Text, v.Offset)
        }
    }
    require.NotEmpty(t, ins)
    assert.Equal(t, "push rbp", ins[0].Text)
    assert.GreaterOrEqual(t, countOp(t, ins, x86asm.RET), 1)
    return ins
}

func TestEmit_Add(t *testing.T) {
    fn := ir.NewFunction("add", ir.DefaultLimits())
    b := ir.NewBuilder(fn)
    b.Return(b.Binary(ir.KindAdd, b.Param(0, ir.I64), b.Param(1, ir.I64)))
    ins := checkCode(t, build(t, fn, allFeatures))
    assert.Equal(t, "mov rbp, rsp", ins[1].Text)
    assert.Equal(t, 1, count(ins, "add "))
    assert.Equal(t, "pop rbp", ins[len(ins) - 2].Text)
    assert.Equal(t, "ret", ins[len(ins) - 1].Text)
}

func TestEmit_Loop(t *testing.T) {
    fn := ir.NewFunction("sum", ir.DefaultLimits())
    b := ir.NewBuilder(fn)
    n := b.Param(0, ir.I64)
    zero := b.Int(ir.I64, 0)
    head := b.Region()
    b.Goto(head)

    b.SetControl(head)
    i := b.Phi(head, ir.I64, zero)
    acc := b.Phi(head, ir.I64, zero)
    body, exit := b.If(b.Binary(ir.KindCmpSLT, i, n))

    b.SetControl(body)
    latch := b.Region()
    b.Goto(latch)
    b.SetControl(latch)
    b.AddPhiInput(acc, b.Binary(ir.KindAdd, acc, i))
    b.AddPhiInput(i, b.Binary(ir.KindAdd, i, b.Int(ir.I64, 1)))
    b.Goto(head)

    b.SetControl(exit)
    b.Return(acc)

    ins := checkCode(t, build(t, fn, allFeatures))
    assert.Equal(t, 1, countOp(t, ins, x86asm.RET))
    assert.Equal(t, 1, countOp(t, ins, x86asm.JE))
    assert.GreaterOrEqual(t, countOp(t, ins, x86asm.JMP), 1)
    assert.Equal(t, 1, countOp(t, ins, x86asm.SETL))
}

func TestEmit_Switch(t *testing.T) {
    fn := ir.NewFunction("pick", ir.DefaultLimits())
    b := ir.NewBuilder(fn)
    succ := b.Switch(b.Param(0, ir.I32), []int64 { 1, 2, -1 })
    r := b.Region()

    vals := make([]ir.Handle, 0, len(succ))
    for i, s := range succ {
        b.SetControl(s)
        vals = append(vals, b.Int(ir.I64, uint64(i * 10)))
        b.Goto(r)
    }
    b.SetControl(r)
    b.Return(b.Phi(r, ir.I64, vals...))

    ins := checkCode(t, build(t, fn, allFeatures))
    assert.Equal(t, 3, countOp(t, ins, x86asm.JE))
    assert.Equal(t, 3, countOp(t, ins, x86asm.CMP))

    /* keys compare against the zero-extended 32-bit value */
    found := false
    for _, v := range ins {
        inst, err := x86asm.Decode(v.Bytes, 64)
        require.NoError(t, err)
        if inst.Op == x86asm.CMP && inst.Args[1] == x86asm.Imm(0) {
            t.Errorf("unexpected compare with zero at %#x", v.Offset)
        }
        if inst.Op == x86asm.MOV && inst.Args[1] == x86asm.Imm(0xffffffff) {
            found = true
        }
    }
    assert.True(t, found)
}

func TestEmit_Calls(t *testing.T) {
    syms := ir.NewSymbolTable()
    callee := syms.Declare("callee", ir.SymbolExternal)
    fn := ir.NewFunction("caller", ir.DefaultLimits())
    fn.Symbol = syms.Declare("caller", ir.SymbolFunction)
    b := ir.NewBuilder(fn)
    x := b.Param(0, ir.I64)
    y := b.Call(b.Address(callee), ir.I64, x, b.Int(ir.I64, 7))
    z := b.Call(b.Address(fn.Symbol), ir.I64, y)
    b.Return(b.Binary(ir.KindAdd, z, x))

    code := build(t, fn, allFeatures)
    ins := checkCode(t, code)
    assert.Equal(t, 2, count(ins, "call "))

    /* the external call waits for its symbol, the recursive one is already resolved */
    assert.True(t, buffer.IsResolved(fn.Symbol.Head))
    assert.False(t, buffer.IsResolved(callee.Head))
    var targets []int
    for _, v := range ins {
        inst, err := x86asm.Decode(v.Bytes, 64)
        require.NoError(t, err)
        if inst.Op == x86asm.CALL {
            targets = append(targets, v.Offset + inst.Len + int(inst.Args[0].(x86asm.Rel)))
        }
    }
    require.Len(t, targets, 2)
    assert.Equal(t, 0, targets[1])

    /* direct targets are not materialized */
    assert.Equal(t, 0, countOp(t, ins, x86asm.LEA))

    /* x lives across both calls, so a callee-saved register is pushed */
    assert.GreaterOrEqual(t, count(ins, "mov qword ptr [rbp-"), 1)
}

func TestEmit_StackParams(t *testing.T) {
    fn := ir.NewFunction("many", ir.DefaultLimits())
    b := ir.NewBuilder(fn)
    for i := 0; i < 7; i++ {
        b.Param(i, ir.I64)
    }
    b.Return(b.Binary(ir.KindSub, b.Param(7, ir.I64), b.Param(6, ir.I64)))

    ins := checkCode(t, build(t, fn, allFeatures))
    var stack []string
    for _, v := range ins {
        if strings.Contains(v.Text, "[rbp+0x") {
            stack = append(stack, v.Text)
        }
    }
    require.Len(t, stack, 2, "%v", stack)
    assert.Contains(t, stack[0] + stack[1], "[rbp+0x10]")
    assert.Contains(t, stack[0] + stack[1], "[rbp+0x18]")
}

func TestEmit_Float(t *testing.T) {
    fn := ir.NewFunction("fma", ir.DefaultLimits())
    b := ir.NewBuilder(fn)
    x := b.Param(0, ir.F64)
    y := b.Param(1, ir.F64)
    s := b.Binary(ir.KindFAdd, x, y)
    m := b.Binary(ir.KindFMul, s, b.F64(0.5))
    lt := b.Binary(ir.KindCmpFLT, x, y)
    b.Return(b.Binary(ir.KindAdd, b.Convert(ir.KindZeroExtend, ir.I64, lt), b.Convert(ir.KindFloatToInt, ir.I64, m)))

    ins := checkCode(t, build(t, fn, allFeatures))
    assert.Equal(t, 1, count(ins, "addsd "))
    assert.Equal(t, 1, count(ins, "mulsd "))
    assert.Equal(t, 1, count(ins, "ucomisd "))
    assert.Equal(t, 1, countOp(t, ins, x86asm.SETA))
    assert.Equal(t, 1, count(ins, "cvttsd2si "))
}

func TestEmit_Narrow(t *testing.T) {
    fn := ir.NewFunction("narrow", ir.DefaultLimits())
    b := ir.NewBuilder(fn)
    p := b.Local(8, 8)
    v := b.Load(ir.I8, p)
    w := b.Binary(ir.KindAdd, v, b.Int(ir.I8, 0xff))
    b.Store(p, w)
    b.Return(b.Binary(ir.KindCmpSLT, w, b.Int(ir.I8, 0)))

    ins := checkCode(t, build(t, fn, allFeatures))
    assert.GreaterOrEqual(t, count(ins, "movzx "), 2)
    assert.GreaterOrEqual(t, count(ins, "movsx "), 1)
    assert.Equal(t, 1, count(ins, "lea "))
}

func TestEmit_Memory(t *testing.T) {
    syms := ir.NewSymbolTable()
    table := syms.Declare("table", ir.SymbolGlobal)
    fn := ir.NewFunction("index", ir.DefaultLimits())
    b := ir.NewBuilder(fn)
    i := b.Param(0, ir.I64)
    base := b.Address(table)
    e8 := b.Load(ir.I64, b.Array(base, i, 8))
    e12 := b.Load(ir.I32, b.Member(b.Array(base, i, 12), 4))
    b.Store(b.Member(base, 16), b.Int(ir.I16, 0x1234))
    b.Return(b.Binary(ir.KindAdd, e8, e12))

    ins := checkCode(t, build(t, fn, allFeatures))
    assert.Equal(t, 1, count(ins, "imul "))
    assert.False(t, buffer.IsResolved(table.Head))
    found := false
    for _, v := range ins {
        if strings.HasPrefix(v.Text, "mov word ptr") {
            found = true
        }
    }
    assert.True(t, found)
}

func TestEmit_BitCounts(t *testing.T) {
    fn := ir.NewFunction("bits", ir.DefaultLimits())
    b := ir.NewBuilder(fn)
    x := b.Param(0, ir.I32)
    s := b.Binary(ir.KindAdd, b.Unary(ir.KindPopCount, x), b.Unary(ir.KindCLZ, x))
    b.Return(b.Binary(ir.KindAdd, s, b.Unary(ir.KindCTZ, x)))

    ins := checkCode(t, build(t, fn, allFeatures))
    assert.Equal(t, 1, count(ins, "popcnt "))
    assert.Equal(t, 1, count(ins, "lzcnt "))
    assert.Equal(t, 1, count(ins, "tzcnt "))

    /* the same graph cannot be compiled without the extensions */
    fn = ir.NewFunction("bits", ir.DefaultLimits())
    b = ir.NewBuilder(fn)
    b.Return(b.Unary(ir.KindPopCount, b.Param(0, ir.I64)))
    err := catch(func() { build(t, fn, NewTarget(0)) })
    require.Error(t, err)
    assert.Contains(t, err.Error(), "no encoding for popcnt")
}

func TestEmit_Unsupported(t *testing.T) {
    for _, k := range []ir.Kind { ir.KindUDiv, ir.KindSMod, ir.KindShl } {
        fn := ir.NewFunction("bad", ir.DefaultLimits())
        b := ir.NewBuilder(fn)
        b.Return(b.Binary(k, b.Param(0, ir.I64), b.Param(1, ir.I64)))
        err := catch(func() { build(t, fn, allFeatures) })
        require.Error(t, err, "%s", k)
        assert.Equal(t, ir.Structural, err.(*ir.CompileError).Class)
        assert.Equal(t, "emit", err.(*ir.CompileError).Pass)
    }
}

func TestDisassemble(t *testing.T) {
    s := Disassemble([]byte { 0x90, 0xc3 }, 0x100)
    assert.Equal(t, 2, strings.Count(s, "\n"))
    assert.Contains(t, s, "nop")
    assert.Contains(t, s, "ret")
    assert.Contains(t, s, "100:")
}
