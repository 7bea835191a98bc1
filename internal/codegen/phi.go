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

    `github.com/cloudwego/seacg/internal/sched`
    `github.com/cloudwego/seacg/ir`
)

// PhiValue is the value a phi receives along one incoming edge.
type PhiValue struct {
    Node        ir.Handle
    Phi         ir.Handle
    Source      *Operand
    Destination *Operand
}

// Redundant reports whether the source already lives in the destination.
func (self PhiValue) Redundant() bool {
    return self.Source.Matches(self.Destination)
}

func (self PhiValue) String() string {
    return fmt.Sprintf("%s = %s (%s <- %s)", self.Phi, self.Node, self.Destination, self.Source)
}

// Move is one copy of a parallel move.
type Move struct {
    Dst   *Operand
    Src   *Operand
    Class RegClass
}

func (self Move) String() string {
    return fmt.Sprintf("%s <- %s", self.Dst, self.Src)
}

// CollectPhiValues lists the phi values flowing along the edge pred -> succ,
// in the order the phis appear in succ.
func CollectPhiValues(ctx *Context, pred *sched.Block, succ *sched.Block) []PhiValue {
    var ret []PhiValue
    fn := ctx.Func
    idx := succ.PredIndex(pred)

    /* not an edge */
    if idx < 0 {
        ir.Throw(ir.Structural, "phi", succ.Begin, fn.Node(succ.Begin).Kind, "%s is not a predecessor of %s", pred, succ)
    }

    /* one value per phi */
    for _, h := range succ.Nodes {
        p := fn.Node(h)
        if p.Kind != ir.KindPhi || !IsValue(p) {
            continue
        }
        v := p.Inputs[idx + 1]
        ret = append(ret, PhiValue {
            Node        : v,
            Phi         : h,
            Source      : ctx.Loc(v),
            Destination : ctx.Loc(h),
        })
    }
    return ret
}

// ResolveEdge turns the phi values of an edge into an ordered list of moves
// that can be executed one after another.
func ResolveEdge(ctx *Context, pred *sched.Block, succ *sched.Block) []Move {
    pv := CollectPhiValues(ctx, pred, succ)
    mv := make([]Move, 0, len(pv))

    /* copies that are not already in place */
    for _, v := range pv {
        if !v.Redundant() {
            mv = append(mv, Move {
                Dst   : v.Destination,
                Src   : v.Source,
                Class : ClassOf(ctx.Func.Node(v.Phi).Type),
            })
        }
    }
    return Sequentialize(mv, ctx.Temp)
}

func readsFrom(moves []Move, dst *Operand) bool {
    for _, m := range moves {
        if m.Src.Matches(dst) {
            return true
        }
    }
    return false
}

// Sequentialize orders a parallel copy so that no destination is written
// before every move reading it has run. A cycle is broken by saving one of
// its sources in the temporary register of its class, so every cycle costs
// exactly one extra move.
func Sequentialize(moves []Move, temp func(RegClass) *Operand) []Move {
    var ret []Move
    pending := make([]Move, 0, len(moves))

    /* moves already in place are free */
    for _, m := range moves {
        if !m.Dst.Matches(m.Src) {
            pending = append(pending, m)
        }
    }

    /* destinations must be unique */
    for i := range pending {
        for j := i + 1; j < len(pending); j++ {
            if pending[i].Dst.Matches(pending[j].Dst) {
                panic(fmt.Sprintf("codegen: parallel move writes %s twice", pending[i].Dst))
            }
        }
    }

    /* emit everything that is not blocked */
    for len(pending) != 0 {
        progress := false
        for i := 0; i < len(pending); {
            m := pending[i]
            if readsFrom(pending[:i], m.Dst) || readsFrom(pending[i + 1:], m.Dst) {
                i++
                continue
            }
            ret = append(ret, m)
            pending = append(pending[:i], pending[i + 1:]...)
            progress = true
        }

        /* only cycles left, break the first one */
        if !progress {
            m := pending[0]
            t := temp(m.Class)
            ret = append(ret, Move { Dst: t, Src: m.Src, Class: m.Class })
            for i := range pending {
                if pending[i].Src.Matches(m.Src) {
                    pending[i].Src = t
                }
            }
        }
    }
    return ret
}
