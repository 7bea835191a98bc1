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
	"math/bits"
)

// DenseSet is a growable bitset over small non-negative integers.
type DenseSet struct {
	words []uint64
}

// NewDenseSet creates a set with room for n elements before it has to grow.
func NewDenseSet(n int) DenseSet {
	return DenseSet{words: make([]uint64, (n+63)/64)}
}

func (self *DenseSet) reserve(i int) {
	w := i/64 + 1
	if w <= len(self.words) {
		return
	}

	/* grow geometrically */
	nw := len(self.words) * 2
	if nw < w {
		nw = w
	}
	words := make([]uint64, nw)
	copy(words, self.words)
	self.words = words
}

// Put adds i to the set and reports whether it was absent before.
func (self *DenseSet) Put(i int) bool {
	self.reserve(i)
	w, m := i/64, uint64(1)<<(uint(i)%64)
	if self.words[w]&m != 0 {
		return false
	}
	self.words[w] |= m
	return true
}

func (self *DenseSet) Has(i int) bool {
	if w := i / 64; w < len(self.words) {
		return self.words[w]&(uint64(1)<<(uint(i)%64)) != 0
	}
	return false
}

func (self *DenseSet) Remove(i int) {
	if w := i / 64; w < len(self.words) {
		self.words[w] &^= uint64(1) << (uint(i) % 64)
	}
}

// Len counts the members of the set.
func (self *DenseSet) Len() int {
	n := 0
	for _, w := range self.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Union adds every member of other and reports whether the set grew.
func (self *DenseSet) Union(other *DenseSet) bool {
	if len(other.words) > len(self.words) {
		self.reserve(len(other.words)*64 - 1)
	}
	changed := false
	for i, w := range other.words {
		if v := self.words[i] | w; v != self.words[i] {
			self.words[i] = v
			changed = true
		}
	}
	return changed
}

func (self *DenseSet) Clear() {
	for i := range self.words {
		self.words[i] = 0
	}
}

// Range calls fn for every member in increasing order until fn returns false.
func (self *DenseSet) Range(fn func(i int) bool) {
	for w, word := range self.words {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			if !fn(w*64 + b) {
				return
			}
			word &= word - 1
		}
	}
}

// WorkList is a FIFO of node handles where every handle is enqueued at most
// once until the list is reset.
type WorkList struct {
	seen  DenseSet
	items []Handle
	head  int
}

func NewWorkList(n int) *WorkList {
	return &WorkList{
		seen:  NewDenseSet(n),
		items: make([]Handle, 0, n),
	}
}

// Push enqueues h unless it has already been seen in this pass.
func (self *WorkList) Push(h Handle) bool {
	if !self.seen.Put(int(h)) {
		return false
	}
	self.items = append(self.items, h)
	return true
}

// Pop dequeues the oldest pending handle.
func (self *WorkList) Pop() Handle {
	h := self.items[self.head]
	self.head++
	return h
}

func (self *WorkList) Empty() bool {
	return self.head == len(self.items)
}

func (self *WorkList) Visited(h Handle) bool {
	return self.seen.Has(int(h))
}

// Items returns every handle pushed during this pass, in push order.
func (self *WorkList) Items() []Handle {
	return self.items
}

func (self *WorkList) Reset() {
	self.seen.Clear()
	self.items = self.items[:0]
	self.head = 0
}
