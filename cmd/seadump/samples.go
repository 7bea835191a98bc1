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

package main

import (
	"sort"

	"github.com/cloudwego/seacg/ir"
)

// sample builds a small graph into fn, declaring any symbols it needs in syms.
type sample struct {
	desc  string
	build func(fn *ir.Function, syms *ir.SymbolTable)
}

var samples = map[string]sample{
	"add":    {"sum of two integer parameters", buildAdd},
	"sum":    {"loop adding 0..n-1", buildSum},
	"switch": {"multi-way branch merging into a phi", buildSwitch},
	"call":   {"external and recursive calls", buildCall},
	"float":  {"double arithmetic and comparison", buildFloat},
	"memory": {"loads and stores through locals and globals", buildMemory},
}

func sampleNames() []string {
	ret := make([]string, 0, len(samples))
	for k := range samples {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func buildAdd(fn *ir.Function, _ *ir.SymbolTable) {
	b := ir.NewBuilder(fn)
	b.Return(b.Binary(ir.KindAdd, b.Param(0, ir.I64), b.Param(1, ir.I64)))
}

func buildSum(fn *ir.Function, _ *ir.SymbolTable) {
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
}

func buildSwitch(fn *ir.Function, _ *ir.SymbolTable) {
	b := ir.NewBuilder(fn)
	succ := b.Switch(b.Param(0, ir.I32), []int64{1, 2, 7})
	r := b.Region()

	vals := make([]ir.Handle, 0, len(succ))
	for i, s := range succ {
		b.SetControl(s)
		vals = append(vals, b.Int(ir.I64, uint64(i*100)))
		b.Goto(r)
	}
	b.SetControl(r)
	b.Return(b.Phi(r, ir.I64, vals...))
}

func buildCall(fn *ir.Function, syms *ir.SymbolTable) {
	fn.Symbol = syms.Declare(fn.Name, ir.SymbolFunction)
	ext := syms.Declare("external", ir.SymbolExternal)

	b := ir.NewBuilder(fn)
	x := b.Param(0, ir.I64)
	y := b.Call(b.Address(ext), ir.I64, x, b.Int(ir.I64, 3))
	z := b.Call(b.Address(fn.Symbol), ir.I64, y)
	b.Return(b.Binary(ir.KindXor, z, x))
}

func buildFloat(fn *ir.Function, _ *ir.SymbolTable) {
	b := ir.NewBuilder(fn)
	x := b.Param(0, ir.F64)
	y := b.Param(1, ir.F64)
	m := b.Binary(ir.KindFMul, b.Binary(ir.KindFAdd, x, y), b.F64(0.5))
	lt := b.Convert(ir.KindZeroExtend, ir.I64, b.Binary(ir.KindCmpFLT, x, y))
	b.Return(b.Binary(ir.KindAdd, lt, b.Convert(ir.KindFloatToInt, ir.I64, m)))
}

func buildMemory(fn *ir.Function, syms *ir.SymbolTable) {
	table := syms.Declare("table", ir.SymbolGlobal)

	b := ir.NewBuilder(fn)
	i := b.Param(0, ir.I64)
	tmp := b.Local(8, 8)
	b.Store(tmp, b.Load(ir.I64, b.Array(b.Address(table), i, 8)))
	b.Store(b.Member(b.Address(table), 16), b.Int(ir.I16, 0x55aa))
	b.Return(b.Load(ir.I64, tmp))
}
