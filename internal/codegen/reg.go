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

package codegen

import (
    `fmt`
)

// Reg is a physical register id within its class.
type Reg uint8

// InvalidReg marks the absence of a register.
const InvalidReg Reg = 0xff

func (self Reg) Valid() bool {
    return self != InvalidReg
}

type RegClass uint8

const (
    ClassGPR     RegClass = 0
    ClassXMM     RegClass = 1
    InvalidClass RegClass = 0xff
)

func (self RegClass) String() string {
    switch self {
        case ClassGPR     : return "gpr"
        case ClassXMM     : return "xmm"
        case InvalidClass : return "invalid"
        default           : return fmt.Sprintf("class(%d)", uint8(self))
    }
}

// ClassifiedReg is a register together with its class.
type ClassifiedReg struct {
    Reg   Reg
    Class RegClass
}

var InvalidClassifiedReg = ClassifiedReg { InvalidReg, InvalidClass }

func GPR(r Reg) ClassifiedReg { return ClassifiedReg { r, ClassGPR } }
func XMM(r Reg) ClassifiedReg { return ClassifiedReg { r, ClassXMM } }

func (self ClassifiedReg) Valid() bool {
    return self.Reg.Valid() && self.Class != InvalidClass
}

var gprNames = [16]string {
    "rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
    "r8" , "r9" , "r10", "r11", "r12", "r13", "r14", "r15",
}

func (self ClassifiedReg) String() string {
    switch {
        case !self.Valid()                                 : return "invalid"
        case self.Class == ClassGPR && int(self.Reg) < 16 : return gprNames[self.Reg]
        case self.Class == ClassXMM                        : return fmt.Sprintf("xmm%d", self.Reg)
        default                                            : return fmt.Sprintf("%s%d", self.Class, self.Reg)
    }
}

// RegisterFile describes the registers of a target as seen by the allocator.
// Temp breaks parallel-move cycles and Scratch stages memory operands, neither
// is ever handed out.
type RegisterFile struct {
    Allocatable [2][]Reg
    CalleeSaved [2]uint32
    Temp        [2]Reg
    Scratch     [2]Reg
    Frame       Reg
}

func (self *RegisterFile) IsCalleeSaved(r ClassifiedReg) bool {
    return r.Valid() && self.CalleeSaved[r.Class] & (1 << r.Reg) != 0
}
