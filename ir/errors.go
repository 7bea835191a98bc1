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

// ErrorClass tells the three kinds of fatal conditions apart.
type ErrorClass uint8

const (
	// Structural is a violated graph, scheduling or encoding invariant.
	Structural ErrorClass = iota

	// Capacity is a construction-time limit such as the input count of a node.
	Capacity

	// Exhausted is an arena running out of room.
	Exhausted
)

func (c ErrorClass) String() string {
	switch c {
	case Structural:
		return "structural"
	case Capacity:
		return "capacity"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// CompileError aborts the compilation of a single function. It is raised by
// panicking and recovered at the function boundary.
type CompileError struct {
	Class  ErrorClass
	Pass   string
	Node   Handle
	Kind   Kind
	Reason string
}

func (self *CompileError) Error() string {
	if self.Node == Nil {
		return fmt.Sprintf("%s: %s error: %s", self.Pass, self.Class, self.Reason)
	} else {
		return fmt.Sprintf("%s: %s error at %s (%s): %s", self.Pass, self.Class, self.Node, self.Kind, self.Reason)
	}
}

// Throw panics with a CompileError.
func Throw(class ErrorClass, pass string, node Handle, kind Kind, format string, args ...interface{}) {
	panic(&CompileError{
		Class:  class,
		Pass:   pass,
		Node:   node,
		Kind:   kind,
		Reason: fmt.Sprintf(format, args...),
	})
}

// Recover converts a CompileError panic into an error. It must be deferred
// directly; panics of any other type are re-raised.
func Recover(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(*CompileError); ok {
			*err = e
		} else {
			panic(v)
		}
	}
}
