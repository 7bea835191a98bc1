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

// Kind is the operation performed by a node.
type Kind uint8

const (
	KindNone Kind = iota
	KindEntry
	KindReturn
	KindRegion
	KindPhi
	KindBranch
	KindProjection
	KindCall
	KindDebugBreak
	KindTrap
	KindLocal
	KindSymbol
	KindLoad
	KindStore
	KindInteger
	KindF32
	KindF64
	KindMember
	KindArray
	KindTruncate
	KindSignExtend
	KindZeroExtend
	KindIntToFloat
	KindFloatToInt
	KindSelect
	KindNeg
	KindNot
	KindPopCount
	KindCLZ
	KindCTZ
	KindAnd
	KindOr
	KindXor
	KindAdd
	KindSub
	KindMul
	KindShl
	KindShr
	KindSar
	KindRol
	KindRor
	KindUDiv
	KindSDiv
	KindUMod
	KindSMod
	KindFAdd
	KindFSub
	KindFMul
	KindFDiv
	KindCmpEQ
	KindCmpNE
	KindCmpULT
	KindCmpULE
	KindCmpSLT
	KindCmpSLE
	KindCmpFLT
	KindCmpFLE
	kindCount
)

var kindNames = [kindCount]string{
	KindNone:       "none",
	KindEntry:      "entry",
	KindReturn:     "return",
	KindRegion:     "region",
	KindPhi:        "phi",
	KindBranch:     "branch",
	KindProjection: "proj",
	KindCall:       "call",
	KindDebugBreak: "debugbreak",
	KindTrap:       "trap",
	KindLocal:      "local",
	KindSymbol:     "symbol",
	KindLoad:       "load",
	KindStore:      "store",
	KindInteger:    "int",
	KindF32:        "f32",
	KindF64:        "f64",
	KindMember:     "member",
	KindArray:      "array",
	KindTruncate:   "trunc",
	KindSignExtend: "sext",
	KindZeroExtend: "zext",
	KindIntToFloat: "itof",
	KindFloatToInt: "ftoi",
	KindSelect:     "select",
	KindNeg:        "neg",
	KindNot:        "not",
	KindPopCount:   "popcnt",
	KindCLZ:        "clz",
	KindCTZ:        "ctz",
	KindAnd:        "and",
	KindOr:         "or",
	KindXor:        "xor",
	KindAdd:        "add",
	KindSub:        "sub",
	KindMul:        "mul",
	KindShl:        "shl",
	KindShr:        "shr",
	KindSar:        "sar",
	KindRol:        "rol",
	KindRor:        "ror",
	KindUDiv:       "udiv",
	KindSDiv:       "sdiv",
	KindUMod:       "umod",
	KindSMod:       "smod",
	KindFAdd:       "fadd",
	KindFSub:       "fsub",
	KindFMul:       "fmul",
	KindFDiv:       "fdiv",
	KindCmpEQ:      "cmp.eq",
	KindCmpNE:      "cmp.ne",
	KindCmpULT:     "cmp.ult",
	KindCmpULE:     "cmp.ule",
	KindCmpSLT:     "cmp.slt",
	KindCmpSLE:     "cmp.sle",
	KindCmpFLT:     "cmp.flt",
	KindCmpFLE:     "cmp.fle",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsPinned reports whether the block of a node of this kind is fixed by its
// semantics. Pinned nodes are never moved by the scheduler.
func (k Kind) IsPinned() bool {
	switch k {
	case KindEntry, KindReturn, KindRegion, KindPhi, KindBranch, KindProjection:
		return true
	case KindCall, KindDebugBreak, KindTrap, KindLocal, KindLoad, KindStore:
		return true
	default:
		return false
	}
}

// HasControl reports whether input 0 of the node is a control token.
func (k Kind) HasControl() bool {
	switch k {
	case KindReturn, KindBranch, KindCall, KindDebugBreak, KindTrap, KindLoad, KindStore:
		return true
	default:
		return false
	}
}

// IsControlFlow reports whether the node continues or ends a control chain.
func (k Kind) IsControlFlow() bool {
	switch k {
	case KindReturn, KindBranch, KindCall, KindDebugBreak, KindTrap, KindRegion:
		return true
	default:
		return false
	}
}

func (k Kind) IsConstant() bool {
	return k == KindInteger || k == KindF32 || k == KindF64
}

func (k Kind) IsUnary() bool {
	return k >= KindNeg && k <= KindCTZ
}

func (k Kind) IsConversion() bool {
	return k >= KindTruncate && k <= KindFloatToInt
}

func (k Kind) IsBinary() bool {
	return k >= KindAnd && k <= KindFDiv
}

func (k Kind) IsCompare() bool {
	return k >= KindCmpEQ && k <= KindCmpFLE
}

func (k Kind) IsCommutative() bool {
	switch k {
	case KindAnd, KindOr, KindXor, KindAdd, KindMul, KindFAdd, KindFMul, KindCmpEQ, KindCmpNE:
		return true
	default:
		return false
	}
}
