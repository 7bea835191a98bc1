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

    `github.com/cloudwego/seacg/ir`
)

type Terminator uint8

const (
    TermJump Terminator = iota
    TermBranch
    TermReturn
)

func (self Terminator) String() string {
    switch self {
        case TermJump   : return "jump"
        case TermBranch : return "branch"
        case TermReturn : return "return"
        default         : return fmt.Sprintf("term(%d)", uint8(self))
    }
}

// Block is a basic block recovered from the control edges of the graph.
type Block struct {
    Id        int
    Begin     ir.Handle
    End       ir.Handle
    Term      Terminator
    Succs     []*Block
    Preds     []*Block
    Idom      *Block
    Children  []*Block
    Depth     int
    LoopDepth int
    PostOrder int
    Nodes     []ir.Handle
    index     int
}

func (self *Block) String() string {
    return fmt.Sprintf("bb_%d", self.Id)
}

// PredIndex returns the position of p among the predecessors of the block,
// which is also the phi operand index minus one.
func (self *Block) PredIndex(p *Block) int {
    for i, v := range self.Preds {
        if v == p {
            return i
        }
    }
    return -1
}

// Dominates reports whether self dominates other. Every block dominates itself.
func (self *Block) Dominates(other *Block) bool {
    for other != nil && other.Depth > self.Depth {
        other = other.Idom
    }
    return other == self
}

func lca(a *Block, b *Block) *Block {
    if a == nil {
        return b
    }
    for a.Depth > b.Depth {
        a = a.Idom
    }
    for b.Depth > a.Depth {
        b = b.Idom
    }
    for a != b {
        a, b = a.Idom, b.Idom
    }
    return a
}
