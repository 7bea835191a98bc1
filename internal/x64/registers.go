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

package x64

import (
    `github.com/cloudwego/seacg/internal/codegen`
)

const (
    RAX codegen.Reg = iota
    RCX
    RDX
    RBX
    RSP
    RBP
    RSI
    RDI
    R8
    R9
    R10
    R11
    R12
    R13
    R14
    R15
)

const (
    XMM0 codegen.Reg = iota
    XMM1
    XMM2
    XMM3
    XMM4
    XMM5
    XMM6
    XMM7
    XMM8
    XMM9
    XMM10
    XMM11
    XMM12
    XMM13
    XMM14
    XMM15
)

// Registers is the SysV AMD64 register file. R10/XMM14 stage memory operands
// and R11/XMM15 break move cycles, so neither is allocatable.
var Registers = &codegen.RegisterFile {
    Allocatable: [2][]codegen.Reg {
        { RAX, RCX, RDX, RSI, RDI, R8, R9, RBX, R12, R13, R14, R15 },
        { XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7, XMM8, XMM9, XMM10, XMM11, XMM12, XMM13 },
    },
    CalleeSaved: [2]uint32 {
        1 << RBX | 1 << R12 | 1 << R13 | 1 << R14 | 1 << R15,
        0,
    },
    Temp    : [2]codegen.Reg { R11, XMM15 },
    Scratch : [2]codegen.Reg { R10, XMM14 },
    Frame   : RBP,
}

var (
    intArgs   = [...]codegen.Reg { RDI, RSI, RDX, RCX, R8, R9 }
    floatArgs = [...]codegen.Reg { XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7 }
)
