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

package buffer

import (
	"encoding/binary"

	"github.com/bytedance/gopkg/lang/dirtmake"

	"github.com/cloudwego/seacg/ir"
)

// Resolved marks a relocation head whose low 31 bits hold the final target
// offset instead of the most recent unresolved slot.
const Resolved = 0x8000_0000

// IsResolved reports whether the relocation head has been resolved.
func IsResolved(head uint32) bool {
	return head&Resolved != 0
}

// CodeBuffer is an append-only byte vector for machine code. Unresolved
// 32-bit relocation slots targeting the same symbol are linked backwards
// through the buffer itself: each slot stores the offset of the previous one,
// and 0 ends the chain.
type CodeBuffer struct {
	buf []byte
}

func New(capacity int) *CodeBuffer {
	return &CodeBuffer{buf: dirtmake.Bytes(0, capacity)}
}

func (self *CodeBuffer) Len() int {
	return len(self.buf)
}

func (self *CodeBuffer) Bytes() []byte {
	return self.buf
}

// Reserve makes room for at least n more bytes without reallocating.
func (self *CodeBuffer) Reserve(n int) {
	nb := len(self.buf) + n
	if nb <= cap(self.buf) {
		return
	}

	/* double the capacity, the new tail is overwritten before it is read */
	nc := cap(self.buf) * 2
	if nc < nb {
		nc = nb
	}
	buf := dirtmake.Bytes(len(self.buf), nc)
	copy(buf, self.buf)
	self.buf = buf
}

func (self *CodeBuffer) AppendByte(v byte) {
	self.Reserve(1)
	self.buf = append(self.buf, v)
}

func (self *CodeBuffer) AppendBytes(v ...byte) {
	self.Reserve(len(v))
	self.buf = append(self.buf, v...)
}

func (self *CodeBuffer) AppendWord(v uint16) {
	self.Reserve(2)
	self.buf = binary.LittleEndian.AppendUint16(self.buf, v)
}

func (self *CodeBuffer) AppendDword(v uint32) {
	self.Reserve(4)
	self.buf = binary.LittleEndian.AppendUint32(self.buf, v)
}

func (self *CodeBuffer) AppendQword(v uint64) {
	self.Reserve(8)
	self.buf = binary.LittleEndian.AppendUint64(self.buf, v)
}

// Truncate drops everything after the first n bytes. Relocation chains that
// reach into the dropped tail must be reset by the caller.
func (self *CodeBuffer) Truncate(n int) {
	if n < 0 || n > len(self.buf) {
		ir.Throw(ir.Structural, "buffer", ir.Nil, ir.KindNone, "cannot truncate %d bytes to %d", len(self.buf), n)
	}
	self.buf = self.buf[:n]
}

// Align pads the buffer with fill up to a multiple of n.
func (self *CodeBuffer) Align(n int, fill byte) {
	for len(self.buf)%n != 0 {
		self.AppendByte(fill)
	}
}

func (self *CodeBuffer) ReadDword(pos int) uint32 {
	self.check(pos)
	return binary.LittleEndian.Uint32(self.buf[pos:])
}

// PatchDword overwrites the 4 bytes at pos.
func (self *CodeBuffer) PatchDword(pos int, v uint32) {
	self.check(pos)
	binary.LittleEndian.PutUint32(self.buf[pos:], v)
}

func (self *CodeBuffer) check(pos int) {
	if pos < 0 || pos+4 > len(self.buf) {
		ir.Throw(ir.Structural, "buffer", ir.Nil, ir.KindNone, "dword at %d is outside of the buffer (%d bytes)", pos, len(self.buf))
	}
}

func displacement(target uint32, pos int) uint32 {
	return uint32(int32(target) - int32(pos+4))
}

// EmitRelocationDword records the 4-byte slot at pos as a reference to the
// symbol whose chain starts at head. A resolved symbol is patched directly,
// otherwise the slot is linked into the chain.
func (self *CodeBuffer) EmitRelocationDword(head *uint32, pos int) {
	if pos <= 0 {
		ir.Throw(ir.Structural, "buffer", ir.Nil, ir.KindNone, "relocation slot at offset %d cannot be chained", pos)
	}
	if IsResolved(*head) {
		self.PatchDword(pos, displacement(*head&^Resolved, pos))
	} else {
		self.PatchDword(pos, *head)
		*head = uint32(pos)
	}
}

// ResolveRelocationDword patches every slot chained from head with the
// displacement to target and marks the head resolved.
func (self *CodeBuffer) ResolveRelocationDword(head *uint32, target int) {
	if target < 0 || target >= Resolved {
		ir.Throw(ir.Capacity, "buffer", ir.Nil, ir.KindNone, "relocation target %d out of range", target)
	}
	for cur := *head; cur != 0 && !IsResolved(cur); {
		next := self.ReadDword(int(cur))
		self.PatchDword(int(cur), displacement(uint32(target), int(cur)))
		cur = next
	}
	*head = Resolved | uint32(target)
}

// Pending lists the unresolved slots chained from head, most recent first.
func (self *CodeBuffer) Pending(head uint32) []int {
	var ret []int
	for cur := head; cur != 0 && !IsResolved(cur); cur = self.ReadDword(int(cur)) {
		ret = append(ret, int(cur))
	}
	return ret
}
