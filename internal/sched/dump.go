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
    `fmt`
    `io`
    `strings`

    `github.com/davecgh/go-spew/spew`

    `github.com/cloudwego/seacg/ir`
)

var spewConfig = spew.ConfigState {
    Indent                  : "    ",
    SortKeys                : true,
    DisableMethods          : false,
    DisablePointerAddresses : true,
    DisableCapacities       : true,
}

// BlockInfo is a pointer-free snapshot of a block, used for debug dumps.
type BlockInfo struct {
    Id        int
    Idom      int
    Depth     int
    LoopDepth int
    Term      string
    Preds     []int
    Succs     []int
    Nodes     []string
}

func blockids(bbs []*Block) []int {
    ret := make([]int, len(bbs))
    for i, bb := range bbs {
        ret[i] = bb.Id
    }
    return ret
}

func (self *Schedule) nodeString(h ir.Handle) string {
    p := self.Func.Node(h)
    in := make([]string, len(p.Inputs))
    for i, v := range p.Inputs {
        in[i] = v.String()
    }
    return fmt.Sprintf("%s = %s %s (%s)", h, p.Kind, p.Type, strings.Join(in, ", "))
}

// Info returns a snapshot of every block in reverse post-order.
func (self *Schedule) Info() []BlockInfo {
    ret := make([]BlockInfo, 0, len(self.Blocks))
    for _, bb := range self.Blocks {
        bi := BlockInfo {
            Id        : bb.Id,
            Idom      : -1,
            Depth     : bb.Depth,
            LoopDepth : bb.LoopDepth,
            Term      : bb.Term.String(),
            Preds     : blockids(bb.Preds),
            Succs     : blockids(bb.Succs),
        }
        if bb.Idom != nil {
            bi.Idom = bb.Idom.Id
        }
        for _, h := range bb.Nodes {
            bi.Nodes = append(bi.Nodes, self.nodeString(h))
        }
        ret = append(ret, bi)
    }
    return ret
}

// Spew renders Info with go-spew.
func (self *Schedule) Spew() string {
    return spewConfig.Sdump(self.Info())
}

// Dump writes a readable listing of the blocks and their nodes.
func (self *Schedule) Dump(w io.Writer) error {
    for _, bi := range self.Info() {
        if _, err := fmt.Fprintf(w, "bb_%d: idom=%d depth=%d loop=%d preds=%v succs=%v\n", bi.Id, bi.Idom, bi.Depth, bi.LoopDepth, bi.Preds, bi.Succs); err != nil {
            return err
        }
        for _, s := range bi.Nodes {
            if _, err := fmt.Fprintf(w, "    %s\n", s); err != nil {
                return err
            }
        }
        if _, err := fmt.Fprintf(w, "    -> %s\n", bi.Term); err != nil {
            return err
        }
    }
    return nil
}
