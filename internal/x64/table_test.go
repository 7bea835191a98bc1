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

    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`

    `github.com/cloudwego/seacg/internal/codegen`
    `github.com/cloudwego/seacg/internal/opts`
    `github.com/cloudwego/seacg/ir`
)

func TestTable_Features(t *testing.T) {
    c := newOperands()
    a, b := c.CreateGPR(RAX), c.CreateGPR(RCX)

    /* optional instructions only exist on targets that have them */
    base := NewTable(0)
    _, ok := base.Lookup(POPCNT, a, b)
    assert.False(t, ok)
    _, ok = base.Lookup(ADD, a, b)
    assert.True(t, ok)

    /* each feature adds exactly its own rows */
    full := FullTable()
    assert.Equal(t, base.Len() + 3, full.Len())
    for op, f := range map[Op]opts.Feature { POPCNT: opts.FeaturePOPCNT, LZCNT: opts.FeatureLZCNT, TZCNT: opts.FeatureBMI1 } {
        e, ok := NewTable(f).Lookup(op, a, b)
        require.True(t, ok, "%s", op)
        assert.Equal(t, f, e.Feature)
        assert.Equal(t, []byte { 0xf3 }, e.Prefix)
    }
}

func TestTable_Lookup(t *testing.T) {
    c := newOperands()
    tab := FullTable()

    /* the kinds of the operands pick the row */
    rr, ok := tab.Lookup(MOV, c.CreateGPR(RAX), c.CreateGPR(RCX))
    require.True(t, ok)
    rm, ok := tab.Lookup(MOV, c.CreateGPR(RAX), c.CreateMem(RCX, codegen.InvalidReg, 0, 0))
    require.True(t, ok)
    assert.Equal(t, []byte { 0x89 }, rr.Opcode)
    assert.Equal(t, []byte { 0x8b }, rm.Opcode)

    /* misses are not errors at this level */
    _, ok = tab.Lookup(SHL, c.CreateGPR(RAX), c.CreateGPR(RCX))
    assert.False(t, ok)
    _, ok = tab.Lookup(RET, c.CreateGPR(RAX))
    assert.False(t, ok)
}

func TestTable_TooManyOperands(t *testing.T) {
    c := newOperands()
    args := make([]*codegen.Operand, MaxOperands + 1)
    for i := range args {
        args[i] = c.CreateGPR(RAX)
    }
    err := catch(func() { FullTable().Lookup(MOV, args...) })
    require.Error(t, err)
    assert.Equal(t, ir.Capacity, err.(*ir.CompileError).Class)
}

func TestTable_KeyString(t *testing.T) {
    assert.Equal(t, "imul3 gpr, gpr, imm", key(IMUL3, kG, kG, kI).String())
    assert.Equal(t, "ret ", key(RET).String())
}

func TestTarget_Host(t *testing.T) {
    h := HostTarget()
    assert.Same(t, h, HostTarget())
    assert.Equal(t, HostFeatures(), h.Features)
    assert.Equal(t, NewTable(h.Features).Len(), h.Table.Len())
}
