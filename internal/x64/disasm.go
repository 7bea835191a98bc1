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
    `fmt`
    `strings`

    `golang.org/x/arch/x86/x86asm`
)

// Instruction is one decoded instruction of a listing.
type Instruction struct {
    Offset int
    Bytes  []byte
    Text   string
}

func (self Instruction) String() string {
    return fmt.Sprintf("%6x:  %-24x %s", self.Offset, self.Bytes, self.Text)
}

// Decode splits code into instructions in Intel syntax. Bytes that do not
// decode are reported one at a time as "(bad)".
func Decode(code []byte, base int) []Instruction {
    var ret []Instruction
    for pc := 0; pc < len(code); {
        inst, err := x86asm.Decode(code[pc:], 64)

        /* skip a single byte on errors */
        if err != nil || inst.Len == 0 {
            ret = append(ret, Instruction { base + pc, code[pc:pc + 1], "(bad)" })
            pc++
            continue
        }

        /* the symbol lookup is left out, branches print their absolute target */
        text := strings.ToLower(x86asm.IntelSyntax(inst, uint64(base + pc), nil))
        ret = append(ret, Instruction { base + pc, code[pc:pc + inst.Len], text })
        pc += inst.Len
    }
    return ret
}

// Disassemble renders code as a listing, one instruction per line.
func Disassemble(code []byte, base int) string {
    var sb strings.Builder
    for _, v := range Decode(code, base) {
        sb.WriteString(v.String())
        sb.WriteByte('\n')
    }
    return sb.String()
}
