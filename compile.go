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

package seacg

import (
	"context"
	"strings"

	"tlog.app/go/tlog"

	"github.com/cloudwego/seacg/internal/codegen"
	"github.com/cloudwego/seacg/internal/sched"
	"github.com/cloudwego/seacg/internal/x64"
	"github.com/cloudwego/seacg/ir"
)

// _Unit carries one function through the passes.
type _Unit struct {
	fn    *ir.Function
	sched *sched.Schedule
	ctx   *codegen.Context
	start int
}

type _Pass interface {
	Apply(*Module, *_Unit)
}

type _PassDescriptor struct {
	Pass _Pass
	Name string
}

type (
	_UseLists struct{}
	_Schedule struct{}
	_Allocate struct{}
	_Emit     struct{}
)

func (_UseLists) Apply(_ *Module, u *_Unit) {
	u.fn.GenerateUseLists()
}

func (_Schedule) Apply(_ *Module, u *_Unit) {
	u.sched = sched.Compute(u.fn)
}

func (_Allocate) Apply(_ *Module, u *_Unit) {
	u.ctx = codegen.NewContext(u.fn, u.sched, x64.Registers)
	codegen.Allocate(u.ctx)
}

func (_Emit) Apply(m *Module, u *_Unit) {
	u.start = x64.Emit(u.ctx, m.target, m.buf)
}

var _Passes = [...]_PassDescriptor{
	{Name: "Use List Generation", Pass: _UseLists{}},
	{Name: "Global Code Motion", Pass: _Schedule{}},
	{Name: "Register Allocation", Pass: _Allocate{}},
	{Name: "Machine Code Emission", Pass: _Emit{}},
}

func (self *Module) run(ctx context.Context, u *_Unit) (err error) {
	tr := tlog.SpanFromContext(ctx)
	defer ir.Recover(&err)

	for _, p := range _Passes {
		p.Pass.Apply(self, u)
		tr.Printw("pass", "name", p.Name)
		self.dump(tr, p.Pass, u)
	}
	return nil
}

func (self *Module) dump(tr tlog.Span, p _Pass, u *_Unit) {
	switch p.(type) {
	case _UseLists:
		if tr.If("dump") {
			tr.Printw("graph", "func", u.fn.Name, "tree", u.fn.String())
		}
	case _Schedule:
		if tr.If("sched") {
			tr.Printw("schedule", "func", u.fn.Name, "blocks", u.sched.Spew())
		}
	case _Allocate:
		if tr.If("regalloc") {
			ivs := make([]string, len(u.ctx.Intervals))
			for i, iv := range u.ctx.Intervals {
				ivs[i] = iv.String()
			}
			tr.Printw("intervals", "func", u.fn.Name, "frame", u.ctx.Frame.Size(), "intervals", strings.Join(ivs, "\n"))
		}
	case _Emit:
		if tr.If("asm") {
			tr.Printw("listing", "func", u.fn.Name, "asm", x64.Disassemble(self.buf.Bytes()[u.start:], u.start))
		}
	}
}
