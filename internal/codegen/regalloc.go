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
    `sort`

    `github.com/cloudwego/seacg/internal/sched`
    `github.com/cloudwego/seacg/ir`
)

// Interval is the conservative live range of a value: one span from its
// definition to the last position where it is live, in layout order.
type Interval struct {
    Value ir.Handle
    Class RegClass
    Start int
    End   int
    Call  bool
    Loc   *Operand
}

func (self *Interval) String() string {
    return fmt.Sprintf("%s[%d, %d] -> %s", self.Value, self.Start, self.End, self.Loc)
}

func (self *Interval) extend(p int) {
    if p < self.Start { self.Start = p }
    if p > self.End   { self.End = p }
}

// Position returns the linear position of a node.
func (self *Context) Position(h ir.Handle) int {
    return self.pos[h]
}

// BlockSpan returns the first and the last position of a block. Phi moves
// happen at the last one.
func (self *Context) BlockSpan(bb *sched.Block) (int, int) {
    return self.bstart[bb.Id], self.bend[bb.Id]
}

func (self *Context) number() {
    cur := 0
    nb := len(self.Sched.Blocks)
    self.bstart = make([]int, nb)
    self.bend = make([]int, nb)

    /* two positions per node, the block end gets its own */
    for _, bb := range self.Sched.Blocks {
        self.bstart[bb.Id] = cur
        for _, h := range bb.Nodes {
            self.pos[h] = cur
            if self.Func.Node(h).Kind == ir.KindCall {
                self.calls = append(self.calls, cur)
            }
            cur += 2
        }
        self.bend[bb.Id] = cur
        cur += 2
    }
}

// liveness solves the block live-in and live-out sets of every value. A phi
// operand is live out of the matching predecessor only.
func (self *Context) liveness() ([]ir.DenseSet, []ir.DenseSet) {
    fn := self.Func
    s := self.Sched
    nn := fn.Len()
    nb := len(s.Blocks)
    gen := make([]ir.DenseSet, nb)
    phi := make([]ir.DenseSet, nb)
    lin := make([]ir.DenseSet, nb)
    lout := make([]ir.DenseSet, nb)

    for i := 0; i < nb; i++ {
        gen[i], phi[i] = ir.NewDenseSet(nn), ir.NewDenseSet(nn)
        lin[i], lout[i] = ir.NewDenseSet(nn), ir.NewDenseSet(nn)
    }

    /* upward exposed uses */
    for _, bb := range s.Blocks {
        for _, h := range bb.Nodes {
            p := fn.Node(h)
            if p.Kind == ir.KindPhi {
                if IsValue(p) {
                    for j, v := range p.Inputs[1:] {
                        phi[bb.Preds[j].Id].Put(int(v))
                    }
                }
                continue
            }
            for _, v := range p.Inputs {
                if v != ir.Nil && self.needsLoc(v) && s.BlockOf(v) != bb {
                    gen[bb.Id].Put(int(v))
                }
            }
        }
    }

    /* iterate to a fixed point, sets only grow */
    for changed := true; changed; {
        changed = false
        for i := nb - 1; i >= 0; i-- {
            bb := s.Blocks[i]
            out := &lout[bb.Id]
            in := &lin[bb.Id]

            /* live out */
            if out.Union(&phi[bb.Id]) {
                changed = true
            }
            for _, succ := range bb.Succs {
                if out.Union(&lin[succ.Id]) {
                    changed = true
                }
            }

            /* live in */
            if in.Union(&gen[bb.Id]) {
                changed = true
            }
            out.Range(func(v int) bool {
                if s.BlockOf(ir.Handle(v)) != bb && in.Put(v) {
                    changed = true
                }
                return true
            })
        }
    }
    return lin, lout
}

func (self *Context) intervals(lin []ir.DenseSet, lout []ir.DenseSet) {
    fn := self.Func
    s := self.Sched
    ivs := make(map[ir.Handle]*Interval)

    /* one interval per value, starting at the definition */
    for _, h := range s.Live() {
        if self.needsLoc(h) {
            iv := &Interval { Value: h, Class: ClassOf(fn.Node(h).Type), Start: self.pos[h], End: self.pos[h] }
            ivs[h] = iv
            self.Intervals = append(self.Intervals, iv)
        }
    }

    /* extend to every use */
    for _, h := range s.Live() {
        p := fn.Node(h)
        if p.Kind == ir.KindPhi {
            if IsValue(p) {
                bb := s.BlockOf(h)
                for j, v := range p.Inputs[1:] {
                    end := self.bend[bb.Preds[j].Id]
                    ivs[v].extend(end)
                    ivs[h].extend(end)
                }
            }
            continue
        }
        for _, v := range p.Inputs {
            if iv := ivs[v]; iv != nil {
                iv.extend(self.pos[h])
            }
        }
    }

    /* and across the blocks it is live through */
    for _, bb := range s.Blocks {
        lin[bb.Id].Range(func(v int) bool { ivs[ir.Handle(v)].extend(self.bstart[bb.Id]); return true })
        lout[bb.Id].Range(func(v int) bool { ivs[ir.Handle(v)].extend(self.bend[bb.Id]); return true })
    }

    /* intervals spanning a call must survive it */
    for _, iv := range self.Intervals {
        for _, c := range self.calls {
            if iv.Start < c && c < iv.End {
                iv.Call = true
                break
            }
        }
    }
}

// Allocate assigns a register or a stack slot to every value by linear scan
// over the conservative intervals, then lays out the frame.
func Allocate(ctx *Context) {
    ctx.number()
    ctx.intervals(ctx.liveness())

    /* sort by increasing starting point */
    ranges := append([]*Interval(nil), ctx.Intervals...)
    sort.SliceStable(ranges, func(i int, j int) bool {
        return ranges[i].Start < ranges[j].Start || (ranges[i].Start == ranges[j].Start && ranges[i].Value < ranges[j].Value)
    })

    /* free register masks */
    var free [2]uint32
    for c := ClassGPR; c <= ClassXMM; c++ {
        for _, r := range ctx.Regs.Allocatable[c] {
            free[c] |= 1 << r
        }
    }

    /* active set, sorted by end point */
    active := make([]*Interval, 0, len(ranges))
    addActive := func(iv *Interval) {
        pos := sort.Search(len(active), func(i int) bool { return active[i].End > iv.End })
        active = append(active, nil)
        copy(active[pos + 1:], active[pos:])
        active[pos] = iv
    }

    /* linear scan allocation */
    for _, iv := range ranges {
        n := 0
        for _, a := range active {
            if a.End < iv.Start {
                free[a.Class] |= 1 << a.Loc.Reg
            } else {
                active[n] = a
                n++
            }
        }
        active = active[:n]

        /* take the first suitable free register */
        if r, ok := ctx.pick(iv, free[iv.Class]); ok {
            free[iv.Class] &^= 1 << r
            iv.Loc = ctx.CreateReg(ClassifiedReg { r, iv.Class })
            addActive(iv)
            continue
        }

        /* steal from the interval that ends last, if it outlives this one */
        victim := -1
        for i := len(active) - 1; i >= 0; i-- {
            a := active[i]
            if a.Class == iv.Class && a.End > iv.End && (!iv.Call || ctx.Regs.IsCalleeSaved(ClassifiedReg { a.Loc.Reg, a.Class })) {
                victim = i
                break
            }
        }

        /* spill either the victim or the current interval */
        if victim < 0 {
            iv.Loc = ctx.spillSlot()
        } else {
            a := active[victim]
            iv.Loc = a.Loc
            a.Loc = ctx.spillSlot()
            active = append(active[:victim], active[victim + 1:]...)
            addActive(iv)
        }
    }

    /* publish the locations */
    for _, iv := range ctx.Intervals {
        ctx.locs[iv.Value] = iv.Loc
    }
    ctx.layout()
}

func (self *Context) pick(iv *Interval, free uint32) (Reg, bool) {
    for _, r := range self.Regs.Allocatable[iv.Class] {
        if free & (1 << r) == 0 {
            continue
        }
        if iv.Call && !self.Regs.IsCalleeSaved(ClassifiedReg { r, iv.Class }) {
            continue
        }
        return r, true
    }
    return InvalidReg, false
}

func (self *Context) spillSlot() *Operand {
    return self.CreateMem(self.Regs.Frame, InvalidReg, 0, self.Frame.Alloc(8, 8))
}

// layout reserves the save area of the callee-saved registers in use and the
// stack slots of the locals.
func (self *Context) layout() {
    var used [2]uint32
    for _, iv := range self.Intervals {
        if iv.Loc.IsReg() {
            used[iv.Class] |= 1 << iv.Loc.Reg
        }
    }

    /* callee-saved registers, in register order */
    for c := ClassGPR; c <= ClassXMM; c++ {
        for r := Reg(0); r < 32; r++ {
            if cr := (ClassifiedReg { r, c }); used[c] & (1 << r) != 0 && self.Regs.IsCalleeSaved(cr) {
                self.Frame.Saved = append(self.Frame.Saved, SavedReg { Reg: cr, Disp: self.Frame.Alloc(8, 8) })
            }
        }
    }

    /* stack slots */
    for _, h := range self.Func.Locals {
        lp := self.Func.Node(h).Local()
        self.locals[h] = self.Frame.Alloc(int32(lp.Size), int32(lp.Align))
    }
}
