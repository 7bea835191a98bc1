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
    `gonum.org/v1/gonum/graph/simple`
    `gonum.org/v1/gonum/graph/topo`

    `github.com/cloudwego/seacg/ir`
)

// loops computes the loop nesting depth of every block. Every strongly
// connected component with a cycle is a loop; removing its header (the
// member first in reverse post-order) exposes the loops nested inside it.
func (self *Schedule) loops() {
    work := [][]*Block { self.Blocks }
    member := ir.NewDenseSet(len(self.Blocks))

    /* peel the components level by level */
    for len(work) != 0 {
        set := work[len(work) - 1]
        work = work[:len(work) - 1]
        g := simple.NewDirectedGraph()
        member.Clear()

        /* add the nodes */
        for _, bb := range set {
            member.Put(bb.Id)
            g.AddNode(simple.Node(bb.Id))
        }

        /* add edges inside the set, self loops are tracked separately */
        selfloop := make(map[int]bool)
        for _, bb := range set {
            for _, s := range bb.Succs {
                if !member.Has(s.Id) {
                    continue
                } else if s == bb {
                    selfloop[bb.Id] = true
                } else if !g.HasEdgeFromTo(int64(bb.Id), int64(s.Id)) {
                    g.SetEdge(g.NewEdge(simple.Node(bb.Id), simple.Node(s.Id)))
                }
            }
        }

        /* every cyclic component is one more level of nesting */
        for _, scc := range topo.TarjanSCC(g) {
            if len(scc) == 1 {
                if id := int(scc[0].ID()); selfloop[id] {
                    self.Blocks[id].LoopDepth++
                }
                continue
            }

            /* find the header */
            head := -1
            body := make([]*Block, 0, len(scc))
            for _, n := range scc {
                bb := self.Blocks[n.ID()]
                bb.LoopDepth++
                body = append(body, bb)
                if head < 0 || bb.Id < body[head].Id {
                    head = len(body) - 1
                }
            }

            /* the inner loops are whatever remains cyclic without the header */
            body[head] = body[len(body) - 1]
            work = append(work, body[:len(body) - 1])
        }
    }
}
