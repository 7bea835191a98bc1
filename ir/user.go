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

// GenerateUseLists rebuilds the use chain of every node reachable from the
// exit node, and collects the reachable locals. It must run again after any
// edit to the graph.
func (self *Function) GenerateUseLists() {
	if self.Exit == Nil {
		Throw(Structural, "uses", Nil, KindNone, "function %s has no exit node", self.Name)
	}

	/* drop the previous chains */
	for h := Handle(1); int(h) < self.count; h++ {
		self.Node(h).users = nil
	}

	/* walk from the exit */
	self.users = nil
	self.Locals = self.Locals[:0]
	wl := NewWorkList(self.count)
	wl.Push(self.Exit)

	/* every input slot gets exactly one user record */
	for !wl.Empty() {
		h := wl.Pop()
		p := self.Node(h)

		if p.Kind == KindLocal {
			self.Locals = append(self.Locals, h)
		}

		for i, in := range p.Inputs {
			if in != Nil {
				wl.Push(in)
				v := self.Node(in)
				v.users = self.newUser(h, i, v.users)
			}
		}
	}
}

// Live reports whether h was reached by the last GenerateUseLists walk.
func (self *Function) Live(h Handle) bool {
	return h == self.Exit || self.Node(h).users != nil
}

// UserOf returns the first user of h consuming it through the given slot with
// the given kind, or Nil.
func (self *Function) UserOf(h Handle, kind Kind, slot int) Handle {
	for u := self.Node(h).users; u != nil; u = u.Next {
		if u.Slot == slot && self.Node(u.Node).Kind == kind {
			return u.Node
		}
	}
	return Nil
}

// Projection returns the projection of a tuple node with the given index, or
// Nil when nothing reads it.
func (self *Function) Projection(h Handle, index int) Handle {
	for u := self.Node(h).users; u != nil; u = u.Next {
		if p := self.Node(u.Node); p.Kind == KindProjection && p.Projection().Index == index {
			return u.Node
		}
	}
	return Nil
}
