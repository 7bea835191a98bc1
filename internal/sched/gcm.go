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

package sched

import (
    `github.com/oleiade/lane`
    `tlog.app/go/tlog`

    `github.com/cloudwego/seacg/ir`
)

const (
    _StateNew uint8 = iota
    _StateActive
    _StateDone
)

type _InputFrame struct {
    h ir.Handle
    i int
}

type _UserFrame struct {
    h ir.Handle
    u *ir.User
}

func (self *Schedule) floating(h ir.Handle) bool {
    return !self.Func.Node(h).Kind.IsPinned()
}

// placed returns the block of a pinned node or the early block of a floating one.
func (self *Schedule) placed(h ir.Handle) *Block {
    if self.floating(h) {
        return self.early[h]
    } else {
        return self.blockOf[h]
    }
}

// scheduleEarly places every floating node in the deepest block among the
// blocks of its inputs, visiting inputs before users.
func (self *Schedule) scheduleEarly() {
    fn := self.Func
    state := make([]uint8, fn.Len())
    stack := lane.NewStack()

    for _, h := range self.live {
        if !self.floating(h) || state[h] != _StateNew {
            continue
        }

        state[h] = _StateActive
        stack.Push(&_InputFrame { h: h })

        for !stack.Empty() {
            f := stack.Head().(*_InputFrame)
            p := fn.Node(f.h)

            /* descend into the next floating input */
            if f.i < len(p.Inputs) {
                in := p.Inputs[f.i]
                f.i++
                if in == ir.Nil || !self.floating(in) {
                    continue
                }
                switch state[in] {
                    case _StateNew    : state[in] = _StateActive; stack.Push(&_InputFrame { h: in })
                    case _StateActive : fail(in, fn.Node(in).Kind, "data cycle without a phi")
                }
                continue
            }

            /* all inputs are placed */
            stack.Pop()
            state[f.h] = _StateDone
            self.early[f.h] = self.deepest(f.h, p)
        }
    }
}

func (self *Schedule) deepest(h ir.Handle, p *ir.Node) *Block {
    best := self.Entry
    for _, in := range p.Inputs {
        if in == ir.Nil {
            continue
        }
        if bb := self.placed(in); bb == nil {
            fail(h, p.Kind, "input %s is not placed", in)
        } else if bb.Depth > best.Depth {
            best = bb
        }
    }

    /* the inputs must all sit on one dominator path */
    for _, in := range p.Inputs {
        if in != ir.Nil && !self.placed(in).Dominates(best) {
            fail(h, p.Kind, "inputs %s and the deepest operand do not share a dominator path", in)
        }
    }
    return best
}

// scheduleLate moves every floating node down to the least common ancestor of
// its uses, then back up towards the early block while that lowers the loop
// nesting depth. Users are placed before the nodes they read.
func (self *Schedule) scheduleLate() {
    fn := self.Func
    state := make([]uint8, fn.Len())
    stack := lane.NewStack()

    for _, h := range self.live {
        if !self.floating(h) || state[h] != _StateNew {
            continue
        }

        state[h] = _StateActive
        stack.Push(&_UserFrame { h: h, u: fn.Node(h).Users() })

        for !stack.Empty() {
            f := stack.Head().(*_UserFrame)

            /* descend into the next floating user */
            if u := f.u; u != nil {
                f.u = u.Next
                if !self.floating(u.Node) {
                    continue
                }
                switch state[u.Node] {
                    case _StateNew    : state[u.Node] = _StateActive; stack.Push(&_UserFrame { h: u.Node, u: fn.Node(u.Node).Users() })
                    case _StateActive : fail(u.Node, fn.Node(u.Node).Kind, "data cycle without a phi")
                }
                continue
            }

            /* all users are placed */
            stack.Pop()
            state[f.h] = _StateDone
            self.late(f.h)
        }
    }
}

// useBlock is the block where a use happens. A phi reads its operand j at the
// end of predecessor j-1 of its region.
func (self *Schedule) useBlock(u *ir.User) *Block {
    p := self.Func.Node(u.Node)
    if p.Kind != ir.KindPhi {
        return self.blockOf[u.Node]
    }
    bb := self.blockOf[u.Node]
    if u.Slot == 0 || u.Slot > len(bb.Preds) {
        fail(u.Node, p.Kind, "operand %d has no matching predecessor in %s", u.Slot, bb)
    }
    return bb.Preds[u.Slot - 1]
}

func (self *Schedule) late(h ir.Handle) {
    var use *Block
    p := self.Func.Node(h)
    early := self.early[h]

    /* least common ancestor of all uses */
    for u := p.Users(); u != nil; u = u.Next {
        use = lca(use, self.useBlock(u))
    }
    if use == nil {
        use = early
    }

    /* walk up the dominator tree and keep the shallowest loop */
    best := use
    for bb := use; ; bb = bb.Idom {
        if bb == nil {
            fail(h, p.Kind, "early block %s does not dominate the uses", early)
        }
        if bb.LoopDepth < best.LoopDepth {
            best = bb
        }
        if bb == early {
            break
        }
    }

    if tlog.If("sched") {
        tlog.Printw("place", "node", h, "kind", p.Kind, "early", early, "lca", use, "block", best)
    }
    self.assign(h, best)
}
