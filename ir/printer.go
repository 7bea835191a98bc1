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

package ir

import (
	"fmt"
	"io"
	"strings"

	"github.com/oleiade/lane"
)

type _DumpItem struct {
	h     Handle
	depth int
}

// Dump writes a pre-order tree of the graph rooted at the exit node. Nodes
// reached a second time are printed as a back-reference only.
func (self *Function) Dump(w io.Writer) error {
	if self.Exit == Nil {
		_, err := fmt.Fprintf(w, "func %s: <empty>\n", self.Name)
		return err
	}

	seen := NewDenseSet(self.count)
	stack := lane.NewStack()
	stack.Push(_DumpItem{h: self.Exit})

	if _, err := fmt.Fprintf(w, "func %s:\n", self.Name); err != nil {
		return err
	}

	/* explicit stack, inputs are pushed in reverse so input 0 prints first */
	for !stack.Empty() {
		it := stack.Pop().(_DumpItem)
		pad := strings.Repeat("  ", it.depth+1)

		if it.h == Nil {
			if _, err := fmt.Fprintf(w, "%s_\n", pad); err != nil {
				return err
			}
			continue
		}

		if !seen.Put(int(it.h)) {
			if _, err := fmt.Fprintf(w, "%s^%s\n", pad, it.h); err != nil {
				return err
			}
			continue
		}

		p := self.Node(it.h)
		if _, err := fmt.Fprintf(w, "%s%s = %s %s%s\n", pad, it.h, p.Kind, p.Type, p.propString()); err != nil {
			return err
		}

		for i := len(p.Inputs) - 1; i >= 0; i-- {
			stack.Push(_DumpItem{h: p.Inputs[i], depth: it.depth + 1})
		}
	}
	return nil
}

// String renders the tree dump.
func (self *Function) String() string {
	var sb strings.Builder
	_ = self.Dump(&sb)
	return sb.String()
}
