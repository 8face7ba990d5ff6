// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errs provides small error-handling helpers shared across the
// vgraph packages, extending the standard library errors package.
package errs

import (
	"log/slog"
	"runtime"
	"strconv"
)

// Log logs the given error if it is non-nil and returns it unchanged.
// The intended usage is:
//
//	return errs.Log(doThing())
func Log(err error) error {
	if err != nil {
		slog.Error(err.Error() + " | " + callerInfo())
	}
	return err
}

// Log1 returns v if err is nil; otherwise it logs err and returns the
// zero value of T. The intended usage is:
//
//	v := errs.Log1(doThing())
func Log1[T any](v T, err error) T {
	if err != nil {
		slog.Error(err.Error() + " | " + callerInfo())
		var zero T
		return zero
	}
	return v
}

// Must panics if err is non-nil.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v if err is nil; otherwise it panics.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func callerInfo() string {
	pc, file, line, _ := runtime.Caller(2)
	return runtime.FuncForPC(pc).Name() + " " + file + ":" + strconv.Itoa(line)
}
