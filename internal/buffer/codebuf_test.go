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
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/seacg/ir"
)

func TestCodeBuffer_Append(t *testing.T) {
	b := New(2)
	b.AppendByte(0x90)
	b.AppendWord(0x1234)
	b.AppendDword(0xdeadbeef)
	b.AppendQword(0x0102030405060708)
	require.Equal(t, []byte{
		0x90,
		0x34, 0x12,
		0xef, 0xbe, 0xad, 0xde,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
	}, b.Bytes())
	b.PatchDword(3, 0x11223344)
	assert.Equal(t, uint32(0x11223344), b.ReadDword(3))
	b.Align(16, 0xcc)
	assert.Equal(t, 16, b.Len())
	assert.Equal(t, byte(0xcc), b.Bytes()[15])
}

func TestCodeBuffer_ForwardChain(t *testing.T) {
	var head uint32
	b := New(64)
	var slots []int
	for i := 0; i < 3; i++ {
		b.AppendByte(0xe9)
		b.AppendDword(0)
		pos := b.Len() - 4
		b.EmitRelocationDword(&head, pos)
		slots = append(slots, pos)
	}
	require.Equal(t, uint32(slots[2]), head)
	assert.Equal(t, []int{slots[2], slots[1], slots[0]}, b.Pending(head))

	target := b.Len()
	b.ResolveRelocationDword(&head, target)
	require.True(t, IsResolved(head))
	for _, pos := range slots {
		assert.Equal(t, int32(target-(pos+4)), int32(b.ReadDword(pos)))
	}
	assert.Empty(t, b.Pending(head))
}

func TestCodeBuffer_BackwardReference(t *testing.T) {
	var head uint32
	b := New(16)
	b.AppendByte(0x90)
	b.ResolveRelocationDword(&head, 0)
	b.AppendByte(0xe9)
	b.AppendDword(0)
	b.EmitRelocationDword(&head, 2)
	assert.Equal(t, int32(-6), int32(b.ReadDword(2)))
}

func TestCodeBuffer_RandomChains(t *testing.T) {
	f := gofakeit.New(42)
	for round := 0; round < 50; round++ {
		var head uint32
		b := New(16)
		b.AppendByte(0xcc)
		k := f.Number(1, 40)
		slots := make([]int, 0, k)
		for i := 0; i < k; i++ {
			for n := f.Number(0, 9); n > 0; n-- {
				b.AppendByte(0x90)
			}
			b.AppendByte(0xe8)
			b.AppendDword(0)
			b.EmitRelocationDword(&head, b.Len()-4)
			slots = append(slots, b.Len()-4)
		}
		target := f.Number(0, b.Len())
		b.ResolveRelocationDword(&head, target)
		for _, pos := range slots {
			require.Equal(t, int32(target-(pos+4)), int32(b.ReadDword(pos)), "round %d slot %d", round, pos)
		}
	}
}

func TestCodeBuffer_Errors(t *testing.T) {
	var err error
	func() {
		defer ir.Recover(&err)
		New(4).PatchDword(0, 1)
	}()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside of the buffer")
}

func TestCodeBuffer_Truncate(t *testing.T) {
	b := New(8)
	b.AppendQword(0x0102030405060708)
	b.Truncate(3)
	assert.Equal(t, []byte{0x08, 0x07, 0x06}, b.Bytes())
	b.AppendByte(0xc3)
	assert.Equal(t, 4, b.Len())

	var err error
	func() {
		defer ir.Recover(&err)
		b.Truncate(5)
	}()
	require.Error(t, err)
}
