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

    `github.com/cloudwego/seacg/ir`
)

// Schedule assigns every live node of a function to a block and orders the
// nodes inside each block.
type Schedule struct {
    Func    *ir.Function
    Entry   *Block
    Blocks  []*Block
    all     []*Block
    begins  map[ir.Handle]*Block
    blockOf []*Block
    early   []*Block
    live    []ir.Handle
}

func fail(node ir.Handle, kind ir.Kind, format string, args ...interface{}) {
    ir.Throw(ir.Structural, "schedule", node, kind, format, args...)
}

// Compute builds the CFG of fn and places every floating node. Use lists
// must be up to date.
func Compute(fn *ir.Function) *Schedule {
    s := BuildCFG(fn)
    s.Place()
    return s
}

// BuildCFG recovers the basic blocks, dominator tree and loop nesting of fn
// and pins every pinned node to its block.
func BuildCFG(fn *ir.Function) *Schedule {
    s := &Schedule {
        Func    : fn,
        begins  : make(map[ir.Handle]*Block),
        blockOf : make([]*Block, fn.Len()),
        early   : make([]*Block, fn.Len()),
    }
    s.discover()
    s.link()
    s.number()
    s.dominators()
    s.loops()
    s.collect()
    s.pin()
    s.writeback()
    return s
}

// Place runs global code motion and orders the nodes of every block.
func (self *Schedule) Place() {
    self.scheduleEarly()
    self.scheduleLate()
    self.order()
}

// BlockOf returns the block a node is placed in, or nil for dead nodes.
func (self *Schedule) BlockOf(h ir.Handle) *Block {
    return self.blockOf[h]
}

// Live returns every node reached from the exit, in handle order.
func (self *Schedule) Live() []ir.Handle {
    return self.live
}

func (self *Schedule) assign(h ir.Handle, bb *Block) {
    self.blockOf[h] = bb
    self.Func.Node(h).Place(bb.Begin, -1)
}

func (self *Schedule) open(begin ir.Handle, q *lane.Queue) *Block {
    if bb, ok := self.begins[begin]; ok {
        return bb
    }
    bb := &Block {
        Begin : begin,
        index : len(self.all),
    }
    self.all = append(self.all, bb)
    self.begins[begin] = bb
    self.assign(begin, bb)
    q.Enqueue(bb)
    return bb
}

// successor finds the single control-flow node consuming a control value.
func (self *Schedule) successor(ctrl ir.Handle) ir.Handle {
    ret := ir.Nil
    fn := self.Func

    /* scan the use chain */
    for u := fn.Node(ctrl).Users(); u != nil; u = u.Next {
        p := fn.Node(u.Node)
        if !p.Kind.IsControlFlow() || (p.Kind != ir.KindRegion && u.Slot != 0) {
            continue
        }
        if ret != ir.Nil {
            fail(ctrl, fn.Node(ctrl).Kind, "control forks into %s and %s", ret, u.Node)
        }
        ret = u.Node
    }

    /* every control value must lead somewhere */
    if ret == ir.Nil {
        fail(ctrl, fn.Node(ctrl).Kind, "control value has no successor")
    }
    return ret
}

func (self *Schedule) discover() {
    fn := self.Func
    q := lane.NewQueue()
    self.Entry = self.open(fn.Entry, q)

    /* breadth-first over block begins */
    for !q.Empty() {
        bb := q.Dequeue().(*Block)
        cur := bb.Begin

        /* the entry block continues through its control projection */
        if fn.Node(cur).Kind == ir.KindEntry {
            if cur = fn.Projection(cur, 0); cur == ir.Nil {
                fail(fn.Entry, ir.KindEntry, "entry has no control projection")
            }
            self.assign(cur, bb)
        }

        /* follow the control chain until the block ends */
        for bb.End == ir.Nil {
            next := self.successor(cur)
            p := fn.Node(next)

            switch p.Kind {
                case ir.KindCall: {
                    self.assign(next, bb)
                    if cur = fn.Projection(next, 0); cur == ir.Nil {
                        fail(next, p.Kind, "call has no control projection")
                    }
                    self.assign(cur, bb)
                }

                case ir.KindDebugBreak, ir.KindTrap: {
                    self.assign(next, bb)
                    cur = next
                }

                case ir.KindRegion: {
                    bb.End = cur
                    bb.Term = TermJump
                    bb.Succs = []*Block { self.open(next, q) }
                }

                case ir.KindBranch: {
                    self.assign(next, bb)
                    bb.End = next
                    bb.Term = TermBranch
                    bp := p.Branch()

                    /* sanity check */
                    if len(bp.Successors) != len(bp.Keys) + 1 {
                        fail(next, p.Kind, "%d successors for %d keys", len(bp.Successors), len(bp.Keys))
                    }

                    /* every successor projection begins a block */
                    for i, s := range bp.Successors {
                        if sp := fn.Node(s); sp.Kind != ir.KindProjection || sp.Inputs[0] != next || sp.Projection().Index != i {
                            fail(next, p.Kind, "successor %d is not projection #%d of the branch", i, i)
                        }
                        bb.Succs = append(bb.Succs, self.open(s, q))
                    }
                }

                case ir.KindReturn: {
                    self.assign(next, bb)
                    bb.End = next
                    bb.Term = TermReturn
                }

                default: {
                    fail(next, p.Kind, "unexpected control-flow node")
                }
            }
        }
    }
}

// link fills predecessor lists. Region predecessors follow the order of the
// region inputs so that phi operands line up with them.
func (self *Schedule) link() {
    fn := self.Func
    for _, bb := range self.all {
        p := fn.Node(bb.Begin)
        switch p.Kind {
            case ir.KindRegion: {
                bb.Preds = make([]*Block, len(p.Inputs))
                for i, in := range p.Inputs {
                    pb := self.blockOf[in]
                    if in == ir.Nil || pb == nil || pb.End != in || pb.Term != TermJump {
                        fail(bb.Begin, p.Kind, "input %d is not reachable from the entry", i)
                    }
                    bb.Preds[i] = pb
                }
            }

            case ir.KindProjection: {
                bb.Preds = []*Block { self.blockOf[p.Inputs[0]] }
            }
        }
    }
}

type _DfsFrame struct {
    bb *Block
    i  int
}

// number sorts the blocks in reverse post-order.
func (self *Schedule) number() {
    post := make([]*Block, 0, len(self.all))
    seen := ir.NewDenseSet(len(self.all))
    stack := lane.NewStack()
    stack.Push(&_DfsFrame { bb: self.Entry })
    seen.Put(self.Entry.index)

    /* iterative depth-first search */
    for !stack.Empty() {
        f := stack.Head().(*_DfsFrame)
        if f.i < len(f.bb.Succs) {
            s := f.bb.Succs[f.i]
            f.i++
            if seen.Put(s.index) {
                stack.Push(&_DfsFrame { bb: s })
            }
        } else {
            stack.Pop()
            f.bb.PostOrder = len(post)
            post = append(post, f.bb)
        }
    }

    /* reverse it */
    self.Blocks = make([]*Block, len(post))
    for i, bb := range post {
        id := len(post) - 1 - i
        bb.Id = id
        self.Blocks[id] = bb
    }
}

// collect lists the live nodes in handle order.
func (self *Schedule) collect() {
    fn := self.Func
    for h := ir.Handle(1); int(h) < fn.Len(); h++ {
        if fn.Live(h) {
            self.live = append(self.live, h)
        }
    }
}

// pin assigns every live pinned node to the block its semantics dictate.
func (self *Schedule) pin() {
    fn := self.Func
    for _, h := range self.live {
        p := fn.Node(h)
        if !p.Kind.IsPinned() || self.blockOf[h] != nil {
            continue
        }

        var bb *Block
        switch p.Kind {
            case ir.KindLocal:
                bb = self.Entry
            case ir.KindPhi:
                bb = self.begins[p.Inputs[0]]
            case ir.KindProjection:
                bb = self.blockOf[p.Inputs[0]]
            default:
                if c := p.Control(); c != ir.Nil {
                    bb = self.blockOf[c]
                }
        }

        /* anything else cannot be reached from the entry */
        if bb == nil {
            fail(h, p.Kind, "pinned node is unreachable from the entry")
        }
        self.assign(h, bb)
    }
}

// writeback stores the dominator information into the region properties.
func (self *Schedule) writeback() {
    fn := self.Func
    for _, bb := range self.Blocks {
        p := fn.Node(bb.Begin)
        if p.Kind != ir.KindRegion && p.Kind != ir.KindEntry {
            continue
        }
        rp := p.Region()
        rp.End = bb.End
        rp.PostOrderID = bb.PostOrder
        rp.DominatorDepth = bb.Depth
        if bb.Idom != nil {
            rp.Dominator = bb.Idom.Begin
        }
    }
}
