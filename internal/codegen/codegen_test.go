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
    `bytes`
    `testing`

    `github.com/brianvoe/gofakeit/v6`
    `github.com/davecgh/go-spew/spew`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`

    `github.com/cloudwego/seacg/internal/sched`
    `github.com/cloudwego/seacg/ir`
)

var testRegs = &RegisterFile {
    Allocatable : [2][]Reg { { 0, 1, 2, 3 }, { 0, 1 } },
    CalleeSaved : [2]uint32 { 1 << 3, 0 },
    Temp        : [2]Reg { 11, 15 },
    Scratch     : [2]Reg { 10, 14 },
    Frame       : 5,
}

func compile(t *testing.T, fn *ir.Function) *Context {
    fn.GenerateUseLists()
    s := sched.Compute(fn)
    ctx := NewContext(fn, s, testRegs)
    Allocate(ctx)
    t.Log(spew.Sdump(ctx.Intervals))
    return ctx
}

func threeConstants() (*ir.Function, ir.Handle) {
    fn := ir.NewFunction("pick", ir.DefaultLimits())
    b := ir.NewBuilder(fn)
    succ := b.Switch(b.Param(0, ir.I64), []int64 { 1, 2 })
    r := b.Region()

    /* one constant per predecessor */
    vals := make([]ir.Handle, 0, len(succ))
    for i, s := range succ {
        b.SetControl(s)
        vals = append(vals, b.Int(ir.I64, uint64(i + 1)))
        b.Goto(r)
    }

    /* merge them */
    b.SetControl(r)
    phi := b.Phi(r, ir.I64, vals...)
    b.Return(phi)
    return fn, phi
}

func TestOperand_Matches(t *testing.T) {
    ctx := NewContext(ir.NewFunction("x", ir.DefaultLimits()), nil, testRegs)
    assert.True(t, ctx.CreateGPR(1).Matches(ctx.CreateGPR(1)))
    assert.False(t, ctx.CreateGPR(1).Matches(ctx.CreateGPR(2)))
    assert.False(t, ctx.CreateGPR(1).Matches(ctx.CreateXMM(1)))
    assert.True(t, ctx.CreateMem(5, InvalidReg, 0, -8).Matches(ctx.CreateMem(5, InvalidReg, 0, -8)))
    assert.False(t, ctx.CreateMem(5, InvalidReg, 0, -8).Matches(ctx.CreateMem(5, InvalidReg, 0, -16)))
    assert.False(t, ctx.CreateMem(5, 1, 4, 0).Matches(ctx.CreateMem(5, 1, 8, 0)))
    assert.True(t, ctx.CreateImm(3).Matches(ctx.CreateImm(3)))
    assert.False(t, ctx.CreateImm(3).Matches(ctx.CreateGPR(3)))
    assert.True(t, ctx.CreateFlags().Matches(ctx.CreateFlags()))
    assert.Equal(t, 18, ctx.OperandCount() - 4)
    assert.Panics(t, func() { ctx.CreateMem(5, 1, 3, 0) })
}

func TestOperand_String(t *testing.T) {
    ctx := NewContext(ir.NewFunction("x", ir.DefaultLimits()), nil, testRegs)
    assert.Equal(t, "rcx", ctx.CreateGPR(1).String())
    assert.Equal(t, "xmm3", ctx.CreateXMM(3).String())
    assert.Equal(t, "[rbp-8]", ctx.CreateMem(5, InvalidReg, 0, -8).String())
    assert.Equal(t, "[rax+rcx*8+16]", ctx.CreateMem(0, 1, 8, 16).String())
    assert.Equal(t, "$-1", ctx.CreateImm(-1).String())
    assert.Equal(t, "L4", ctx.CreateLabel(4).String())
}

// run executes moves over a register file where register i initially holds i.
func run(moves []Move) map[Reg]int {
    st := make(map[Reg]int)
    for i := Reg(0); i < 32; i++ {
        st[i] = int(i)
    }
    for _, m := range moves {
        st[m.Dst.Reg] = st[m.Src.Reg]
    }
    return st
}

func temps(moves []Move, temp Reg) int {
    n := 0
    for _, m := range moves {
        if m.Dst.Reg == temp {
            n++
        }
    }
    return n
}

func TestSequentialize_Chain(t *testing.T) {
    ctx := NewContext(ir.NewFunction("x", ir.DefaultLimits()), nil, testRegs)
    mv := Sequentialize([]Move {
        { Dst: ctx.CreateGPR(1), Src: ctx.CreateGPR(0) },
        { Dst: ctx.CreateGPR(2), Src: ctx.CreateGPR(1) },
        { Dst: ctx.CreateGPR(3), Src: ctx.CreateGPR(3) },
    }, ctx.Temp)
    require.Len(t, mv, 2)
    assert.Equal(t, "rdx <- rcx", mv[0].String())
    assert.Equal(t, "rcx <- rax", mv[1].String())
}

func TestSequentialize_Swap(t *testing.T) {
    ctx := NewContext(ir.NewFunction("x", ir.DefaultLimits()), nil, testRegs)
    mv := Sequentialize([]Move {
        { Dst: ctx.CreateGPR(0), Src: ctx.CreateGPR(1) },
        { Dst: ctx.CreateGPR(1), Src: ctx.CreateGPR(0) },
    }, ctx.Temp)
    require.Len(t, mv, 3)
    st := run(mv)
    assert.Equal(t, 1, st[0])
    assert.Equal(t, 0, st[1])
    assert.Equal(t, 1, temps(mv, 11))
}

func TestSequentialize_RandomCycles(t *testing.T) {
    f := gofakeit.New(42)
    ctx := NewContext(ir.NewFunction("x", ir.DefaultLimits()), nil, testRegs)
    for round := 0; round < 200; round++ {
        n := f.Number(2, 10)
        perm := make([]int, n)
        for i := range perm {
            perm[i] = i
        }
        f.ShuffleInts(perm)

        /* one cycle through every register of perm */
        moves := make([]Move, n)
        for i := range perm {
            moves[i] = Move { Dst: ctx.CreateGPR(Reg(perm[(i + 1) % n])), Src: ctx.CreateGPR(Reg(perm[i])) }
        }

        /* execute and compare with the parallel semantics */
        mv := Sequentialize(moves, ctx.Temp)
        st := run(mv)
        for i := range perm {
            require.Equal(t, perm[i], st[Reg(perm[(i + 1) % n])], "round %d: %v", round, mv)
        }
        require.Len(t, mv, n + 1)
        require.Equal(t, 1, temps(mv, 11))
    }
}

func TestSequentialize_RandomPermutations(t *testing.T) {
    f := gofakeit.New(7)
    ctx := NewContext(ir.NewFunction("x", ir.DefaultLimits()), nil, testRegs)
    for round := 0; round < 200; round++ {
        n := f.Number(1, 10)
        perm := make([]int, n)
        for i := range perm {
            perm[i] = i
        }
        f.ShuffleInts(perm)

        /* register i receives the value of register perm[i] */
        moves := make([]Move, n)
        for i := range perm {
            moves[i] = Move { Dst: ctx.CreateGPR(Reg(i)), Src: ctx.CreateGPR(Reg(perm[i])) }
        }
        st := run(Sequentialize(moves, ctx.Temp))
        for i := range perm {
            require.Equal(t, perm[i], st[Reg(i)], "round %d", round)
        }
    }
}

func TestSequentialize_DuplicateDestination(t *testing.T) {
    ctx := NewContext(ir.NewFunction("x", ir.DefaultLimits()), nil, testRegs)
    assert.Panics(t, func() {
        Sequentialize([]Move {
            { Dst: ctx.CreateGPR(0), Src: ctx.CreateGPR(1) },
            { Dst: ctx.CreateGPR(0), Src: ctx.CreateGPR(2) },
        }, ctx.Temp)
    })
}

func TestResolveEdge_ThreeConstants(t *testing.T) {
    fn, phi := threeConstants()
    ctx := compile(t, fn)
    merge := ctx.Sched.BlockOf(phi)
    require.Len(t, merge.Preds, 3)

    /* one move per edge, never a redundant one */
    for _, pred := range merge.Preds {
        pv := CollectPhiValues(ctx, pred, merge)
        require.Len(t, pv, 1)
        assert.Equal(t, phi, pv[0].Phi)
        assert.Equal(t, pred, ctx.Sched.BlockOf(pv[0].Node))
        mv := ResolveEdge(ctx, pred, merge)
        require.Len(t, mv, 1)
        assert.False(t, mv[0].Dst.Matches(mv[0].Src))
        assert.True(t, mv[0].Dst.Matches(ctx.Loc(phi)))
    }

    /* not an edge */
    var err error
    func() {
        defer ir.Recover(&err)
        CollectPhiValues(ctx, ctx.Sched.Entry, merge)
    }()
    require.Error(t, err)
}

func overlaps(a *Interval, b *Interval) bool {
    return a.Start <= b.End && b.Start <= a.End
}

func checkAllocation(t *testing.T, ctx *Context) {
    for i, a := range ctx.Intervals {
        require.NotNil(t, a.Loc, "%s has no location", a.Value)
        for _, b := range ctx.Intervals[i + 1:] {
            if overlaps(a, b) && a.Class == b.Class {
                require.False(t, a.Loc.Matches(b.Loc), "%s and %s share %s", a, b, a.Loc)
            }
        }
        if a.Call && a.Loc.IsReg() {
            require.True(t, ctx.Regs.IsCalleeSaved(ClassifiedReg { a.Loc.Reg, a.Class }), "%s crosses a call", a)
        }
    }
}

func TestAllocate_Pressure(t *testing.T) {
    f := gofakeit.New(1)
    for round := 0; round < 20; round++ {
        fn := ir.NewFunction("pressure", ir.DefaultLimits())
        b := ir.NewBuilder(fn)
        vals := []ir.Handle { b.Param(0, ir.I64), b.Param(1, ir.I64) }

        /* random values that all stay alive until the end */
        n := f.Number(4, 24)
        for i := 0; i < n; i++ {
            x := vals[f.Number(0, len(vals) - 1)]
            y := vals[f.Number(0, len(vals) - 1)]
            vals = append(vals, b.Binary([]ir.Kind { ir.KindAdd, ir.KindXor, ir.KindMul }[f.Number(0, 2)], x, y))
        }
        sum := vals[0]
        for _, v := range vals[1:] {
            sum = b.Binary(ir.KindAdd, sum, v)
        }
        b.Return(sum)

        ctx := compile(t, fn)
        checkAllocation(t, ctx)
        assert.Equal(t, int32(0), ctx.Frame.Size() % 16)
    }
}

func TestAllocate_AcrossCall(t *testing.T) {
    fn := ir.NewFunction("caller", ir.DefaultLimits())
    b := ir.NewBuilder(fn)
    sym := ir.NewSymbolTable().Declare("callee", ir.SymbolExternal)
    x := b.Binary(ir.KindAdd, b.Param(0, ir.I64), b.Param(1, ir.I64))
    y := b.Binary(ir.KindMul, b.Param(0, ir.I64), b.Param(1, ir.I64))
    r := b.Call(b.Address(sym), ir.I64, x)
    b.Return(b.Binary(ir.KindAdd, b.Binary(ir.KindAdd, r, x), y))

    ctx := compile(t, fn)
    checkAllocation(t, ctx)
    var crossing int
    for _, iv := range ctx.Intervals {
        if iv.Call {
            crossing++
        }
    }
    assert.Equal(t, 2, crossing)
    assert.NotEmpty(t, ctx.Frame.Saved)
    assert.Equal(t, GPR(3), ctx.Frame.Saved[0].Reg)
}

func TestAllocate_CallTarget(t *testing.T) {
    fn := ir.NewFunction("caller", ir.DefaultLimits())
    b := ir.NewBuilder(fn)
    syms := ir.NewSymbolTable()
    direct := b.Address(syms.Declare("callee", ir.SymbolExternal))
    passed := b.Address(syms.Declare("handler", ir.SymbolExternal))
    r := b.Call(direct, ir.I64, passed)
    b.Call(direct, ir.I64, r)
    b.Return(passed)

    /* direct targets take no register, symbols passed around do */
    ctx := compile(t, fn)
    checkAllocation(t, ctx)
    assert.True(t, IsCallTarget(fn, direct))
    assert.False(t, IsCallTarget(fn, passed))
    assert.Nil(t, ctx.Loc(direct))
    assert.NotNil(t, ctx.Loc(passed))
    for _, iv := range ctx.Intervals {
        assert.NotEqual(t, direct, iv.Value)
    }
}

func TestAllocate_Loop(t *testing.T) {
    fn := ir.NewFunction("sum", ir.DefaultLimits())
    b := ir.NewBuilder(fn)
    n := b.Param(0, ir.I64)
    zero := b.Int(ir.I64, 0)
    head := b.Region()
    b.Goto(head)

    /* i and acc are loop carried */
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

    ctx := compile(t, fn)
    checkAllocation(t, ctx)

    /* the back edge is a parallel copy into both phis */
    hb := ctx.Sched.BlockOf(head)
    lb := ctx.Sched.BlockOf(latch)
    pv := CollectPhiValues(ctx, lb, hb)
    require.Len(t, pv, 2)
    for _, m := range ResolveEdge(ctx, lb, hb) {
        assert.False(t, m.Dst.Matches(m.Src))
    }
}

func TestAllocate_Locals(t *testing.T) {
    fn := ir.NewFunction("locals", ir.DefaultLimits())
    b := ir.NewBuilder(fn)
    a := b.Local(4, 4)
    c := b.Local(16, 8)
    b.Store(a, b.Int(ir.I32, 1))
    b.Store(c, b.Param(0, ir.I64))
    b.Return(b.Load(ir.I32, a))

    ctx := compile(t, fn)
    da, ok := ctx.LocalDisp(a)
    require.True(t, ok)
    dc, ok := ctx.LocalDisp(c)
    require.True(t, ok)
    assert.NotEqual(t, da, dc)
    assert.Equal(t, int32(0), dc % 8)
    assert.LessOrEqual(t, -ctx.Frame.Size(), dc)
}

func TestDrawLiveRanges(t *testing.T) {
    fn, _ := threeConstants()
    ctx := compile(t, fn)
    buf := bytes.NewBuffer(nil)
    require.NoError(t, DrawLiveRanges(buf, ctx))
    assert.Contains(t, buf.String(), "<svg")
    assert.Contains(t, buf.String(), "end bb_0")
}
