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
    `sync`

    `github.com/klauspost/cpuid/v2`

    `github.com/cloudwego/seacg/internal/opts`
)

// Target is an x86-64 code generation target with a fixed feature set.
type Target struct {
    Features opts.Feature
    Table    *InstructionTable
}

// NewTarget creates a target that only uses the given optional features.
func NewTarget(features opts.Feature) *Target {
    return &Target {
        Features : features,
        Table    : NewTable(features),
    }
}

// HostFeatures detects the optional features of the running CPU.
func HostFeatures() opts.Feature {
    var f opts.Feature
    if cpuid.CPU.Supports(cpuid.POPCNT) { f |= opts.FeaturePOPCNT }
    if cpuid.CPU.Supports(cpuid.LZCNT)  { f |= opts.FeatureLZCNT }
    if cpuid.CPU.Supports(cpuid.BMI1)   { f |= opts.FeatureBMI1 }
    return f
}

var (
    hostOnce   sync.Once
    hostTarget *Target
)

// HostTarget returns the shared target of the running CPU.
func HostTarget() *Target {
    hostOnce.Do(func() { hostTarget = NewTarget(HostFeatures()) })
    return hostTarget
}
