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

const (
    _ClassBegin = iota
    _ClassPhi
    _ClassParam
    _ClassBody
    _ClassEnd
)

type _OrderGraph struct {
    deps  map[ir.Handle]int
    succs map[ir.Handle][]ir.Handle
}

func (self *_OrderGraph) edge(from ir.Handle, to ir.Handle) {
    self.deps[to]++
    self.succs[from] = append(self.succs[from], to)
}

func writesMemory(kind ir.Kind) bool {
    return kind == ir.KindStore || kind == ir.KindCall
}

// order sorts the nodes of every block topologically.
func (self *Schedule) order() {
    for _, h := range self.live {
        bb := self.blockOf[h]
        bb.Nodes = append(bb.Nodes, h)
    }
    for _, bb := range self.Blocks {
        self.orderBlock(bb)
    }
}

func (self *Schedule) class(bb *Block, h ir.Handle, p *ir.Node) int {
    switch {
        case h == bb.Begin                               : return _ClassBegin
        case p.Kind == ir.KindPhi                        : return _ClassPhi
        case h == bb.End && bb.Term != TermJump          : return _ClassEnd
        case p.Kind == ir.KindProjection && p.Inputs[0] == self.Func.Entry : return _ClassParam
        default                                          : return _ClassBody
    }
}

// orderBlock runs Kahn's algorithm over the dependencies inside the block.
// Ready nodes are taken by class (begin, phis, parameters, body, terminator)
// and then by handle.
func (self *Schedule) orderBlock(bb *Block) {
    fn := self.Func
    nb := fn.Len()
    og := &_OrderGraph {
        deps  : make(map[ir.Handle]int, len(bb.Nodes)),
        succs : make(map[ir.Handle][]ir.Handle, len(bb.Nodes)),
    }

    /* build the dependency edges */
    for _, h := range bb.Nodes {
        p := fn.Node(h)
        if h == bb.Begin {
            continue
        }

        /* a phi only depends on its region, the other operands arrive from the predecessors */
        if p.Kind == ir.KindPhi {
            og.edge(bb.Begin, h)
            continue
        }

        /* data dependencies */
        for _, in := range p.Inputs {
            if in != ir.Nil && self.blockOf[in] == bb {
                og.edge(in, h)
            }
        }

        /* loads of a memory state come before anything that replaces it */
        if writesMemory(p.Kind) {
            for u := fn.Node(p.Inputs[1]).Users(); u != nil; u = u.Next {
                if u.Node != h && fn.Node(u.Node).Kind == ir.KindLoad && self.blockOf[u.Node] == bb {
                    og.edge(u.Node, h)
                }
            }
        }

        /* the terminator closes the block */
        if bb.Term != TermJump && h != bb.End {
            og.edge(h, bb.End)
        }
    }

    /* seed with the nodes that have no dependencies */
    pq := lane.NewPQueue(lane.MINPQ)
    for _, h := range bb.Nodes {
        if og.deps[h] == 0 {
            pq.Push(h, self.class(bb, h, fn.Node(h)) * nb + int(h))
        }
    }

    /* emit in priority order */
    ret := bb.Nodes[:0:0]
    for !pq.Empty() {
        v, _ := pq.Pop()
        h := v.(ir.Handle)
        ret = append(ret, h)
        for _, s := range og.succs[h] {
            if og.deps[s]--; og.deps[s] == 0 {
                pq.Push(s, self.class(bb, s, fn.Node(s)) * nb + int(s))
            }
        }
    }

    /* a leftover means a dependency cycle inside the block */
    if len(ret) != len(bb.Nodes) {
        fail(bb.Begin, fn.Node(bb.Begin).Kind, "cyclic dependencies inside %s", bb)
    }

    /* record the order */
    bb.Nodes = ret
    for i, h := range ret {
        fn.Node(h).Place(bb.Begin, i)
    }
}
