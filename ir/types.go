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
)

// TypeID identifies the class of value a node produces.
type TypeID uint8

const (
	TypeNone TypeID = iota
	TypeInteger
	TypeFloat
	TypePointer
	TypeTuple
	TypeControl
	TypeMemory
	TypeContinuation
)

// DataType is the type of the single value defined by a node.
type DataType struct {
	ID   TypeID
	Bits uint8
}

var (
	Void         = DataType{}
	Ptr          = DataType{ID: TypePointer, Bits: 64}
	Tuple        = DataType{ID: TypeTuple}
	Control      = DataType{ID: TypeControl}
	Memory       = DataType{ID: TypeMemory}
	Continuation = DataType{ID: TypeContinuation, Bits: 64}
	Bool         = DataType{ID: TypeInteger, Bits: 8}
	I8           = DataType{ID: TypeInteger, Bits: 8}
	I16          = DataType{ID: TypeInteger, Bits: 16}
	I32          = DataType{ID: TypeInteger, Bits: 32}
	I64          = DataType{ID: TypeInteger, Bits: 64}
	F32          = DataType{ID: TypeFloat, Bits: 32}
	F64          = DataType{ID: TypeFloat, Bits: 64}
)

// Int returns the integer type of the given width.
func Int(bits uint8) DataType {
	if bits == 0 || bits > 64 {
		panic(fmt.Sprintf("ir: invalid integer width: %d", bits))
	}
	return DataType{ID: TypeInteger, Bits: bits}
}

// IsValue reports whether values of this type live in machine registers.
func (t DataType) IsValue() bool {
	return t.ID == TypeInteger || t.ID == TypeFloat || t.ID == TypePointer
}

func (t DataType) IsFloat() bool {
	return t.ID == TypeFloat
}

// Bytes returns the storage size of the type, rounded up to whole bytes.
func (t DataType) Bytes() int {
	return (int(t.Bits) + 7) / 8
}

func (t DataType) String() string {
	switch t.ID {
	case TypeNone:
		return "void"
	case TypeInteger:
		return fmt.Sprintf("i%d", t.Bits)
	case TypeFloat:
		return fmt.Sprintf("f%d", t.Bits)
	case TypePointer:
		return "ptr"
	case TypeTuple:
		return "tuple"
	case TypeControl:
		return "ctrl"
	case TypeMemory:
		return "mem"
	case TypeContinuation:
		return "cont"
	default:
		return fmt.Sprintf("type(%d)", t.ID)
	}
}
