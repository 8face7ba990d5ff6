// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
)

// logicalResult is the Result value stamped onto an *Error built by
// NewLogicalError: a sentinel distinct from every real vk.Result code
// (VK_SUCCESS is 0, and Vulkan's error codes are negative but all lie
// well above math.MinInt32), so a logical error can never be mistaken
// for VK_SUCCESS or for a real Vulkan failure.
const logicalResult vk.Result = math.MinInt32

// Error wraps a Vulkan result code returned from a named operation.
// A Result of logicalResult indicates a logical (non-Vulkan) error.
type Error struct {
	Op     string
	Result vk.Result
	Msg    string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("vgpu: %s: %s (result=%d)", e.Op, e.Msg, e.Result)
	}
	return fmt.Sprintf("vgpu: %s failed: result=%d", e.Op, e.Result)
}

// NewError returns nil if ret indicates success, otherwise an *Error
// describing the failed operation.
func NewError(op string, ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	return &Error{Op: op, Result: ret}
}

// NewErrorMsg is like NewError but attaches an explanatory message.
func NewErrorMsg(op string, ret vk.Result, msg string) error {
	if ret == vk.Success {
		return nil
	}
	return &Error{Op: op, Result: ret, Msg: msg}
}

// NewLogicalError reports a failure that never touched the Vulkan API —
// a missing queue family, a malformed SPIR-V blob, a failed os.ReadFile
// — so it cannot be confused with vk.Success (0) the way passing a
// literal 0 to NewErrorMsg would.
func NewLogicalError(op, msg string) error {
	return &Error{Op: op, Result: logicalResult, Msg: msg}
}

// IsError reports whether ret is a Vulkan failure code.
func IsError(ret vk.Result) bool {
	return ret != vk.Success
}

// IfPanic panics if err is non-nil. Reserved for construction-time
// failures the caller has no reasonable way to recover from (mirrors
// the teacher vgpu package's IfPanic(NewError(ret)) idiom).
func IfPanic(err error) {
	if err != nil {
		panic(err)
	}
}
