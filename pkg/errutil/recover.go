// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"runtime/debug"

	"github.com/samber/oops"
)

// CodePanic marks errors produced from a recovered panic.
const CodePanic = "PANIC"

// Guard runs fn and converts a panic into an error carrying the panic value
// and the goroutine stack. Errors returned by fn pass through unchanged.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code(CodePanic).
				With("panic", r).
				With("stack", string(debug.Stack())).
				Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// IsPanic reports whether err came from a recovered panic.
func IsPanic(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == CodePanic
}
