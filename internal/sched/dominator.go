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

/** This is an implementation of the Lengauer-Tarjan algorithm described in
 *  https://doi.org/10.1145%2F357062.357071
 *
 *  Both the depth-first search and the path compression use explicit stacks,
 *  the CFG of a large function can be arbitrarily deep.
 */

package sched

import (
    `github.com/oleiade/lane`
)

type _LtNode struct {
    semi     int
    node     *Block
    dom      *_LtNode
    label    *_LtNode
    parent   *_LtNode
    ancestor *_LtNode
    pred     []*_LtNode
    bucket   []*_LtNode
}

type _LtFrame struct {
    p *_LtNode
    i int
}

type _LengauerTarjan struct {
    nodes  []*_LtNode
    vertex []int
    path   []*_LtNode
}

func newLengauerTarjan(nb int) *_LengauerTarjan {
    ret := &_LengauerTarjan {
        nodes  : make([]*_LtNode, 0, nb),
        vertex : make([]int, nb),
    }
    for i := range ret.vertex {
        ret.vertex[i] = -1
    }
    return ret
}

func (self *_LengauerTarjan) visit(bb *Block) *_LtNode {
    i := len(self.nodes)
    self.vertex[bb.index] = i

    /* create a new node */
    p := &_LtNode {
        semi : i,
        node : bb,
    }

    /* add to node list */
    p.label = p
    self.nodes = append(self.nodes, p)
    return p
}

func (self *_LengauerTarjan) dfs(bb *Block) {
    stack := lane.NewStack()
    stack.Push(&_LtFrame { p: self.visit(bb) })

    /* traverse the successors */
    for !stack.Empty() {
        f := stack.Head().(*_LtFrame)
        if f.i == len(f.p.node.Succs) {
            stack.Pop()
            continue
        }

        /* next successor */
        w := f.p.node.Succs[f.i]
        f.i++

        /* not visited yet */
        var q *_LtNode
        if idx := self.vertex[w.index]; idx >= 0 {
            q = self.nodes[idx]
        } else {
            q = self.visit(w)
            q.parent = f.p
            stack.Push(&_LtFrame { p: q })
        }

        /* add predecessors */
        q.pred = append(q.pred, f.p)
    }
}

func (self *_LengauerTarjan) eval(p *_LtNode) *_LtNode {
    if p.ancestor == nil {
        return p
    } else {
        self.compress(p)
        return p.label
    }
}

func (self *_LengauerTarjan) link(p *_LtNode, q *_LtNode) {
    q.ancestor = p
}

func (self *_LengauerTarjan) compress(p *_LtNode) {
    self.path = self.path[:0]

    /* collect the nodes the recursive form would visit */
    for v := p; v.ancestor.ancestor != nil; v = v.ancestor {
        self.path = append(self.path, v)
    }

    /* unwind from the node closest to the root */
    for i := len(self.path) - 1; i >= 0; i-- {
        v := self.path[i]
        if v.label.semi > v.ancestor.label.semi { v.label = v.ancestor.label }
        v.ancestor = v.ancestor.ancestor
    }
}

func minInt(a int, b int) int {
    if a < b {
        return a
    } else {
        return b
    }
}

func (self *Schedule) dominators() {
    lt := newLengauerTarjan(len(self.all))

    /* Step 1: Carry out a depth-first search of the problem graph. Number the vertices
     * from 1 to n as they are reached during the search. Initialize the variables used
     * in succeeding steps. */
    lt.dfs(self.Entry)

    /* perform Step 2 and Step 3 simultaneously */
    for i := len(lt.nodes) - 1; i > 0; i-- {
        p := lt.nodes[i]
        q := (*_LtNode)(nil)

        /* Step 2: Compute the semidominators of all vertices by applying Theorem 4.
         * Carry out the computation vertex by vertex in decreasing order by number. */
        for _, v := range p.pred {
            q = lt.eval(v)
            p.semi = minInt(p.semi, q.semi)
        }

        /* link the ancestor */
        lt.link(p.parent, p)
        lt.nodes[p.semi].bucket = append(lt.nodes[p.semi].bucket, p)

        /* Step 3: Implicitly define the immediate dominator of each vertex by applying Corollary 1 */
        for _, v := range p.parent.bucket {
            if q = lt.eval(v); q.semi < v.semi {
                v.dom = q
            } else {
                v.dom = p.parent
            }
        }

        /* clear the bucket */
        p.parent.bucket = p.parent.bucket[:0]
    }

    /* Step 4: Explicitly define the immediate dominator of each vertex, carrying out the
     * computation vertex by vertex in increasing order by number. */
    for _, p := range lt.nodes[1:] {
        if p.dom != lt.nodes[p.semi] {
            p.dom = p.dom.dom
        }
    }

    /* map the dominator relations */
    for _, p := range lt.nodes[1:] {
        p.node.Idom = p.dom.node
        p.dom.node.Children = append(p.dom.node.Children, p.node)
    }

    /* reverse post-order visits dominators first */
    for _, bb := range self.Blocks {
        if bb.Idom != nil {
            bb.Depth = bb.Idom.Depth + 1
        }
    }
}
