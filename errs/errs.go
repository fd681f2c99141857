// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package errs holds the error taxonomy shared by the slayer packages.

Every error returned by this module wraps exactly one of the sentinel
values below (using github.com/pkg/errors), so callers can classify a
failure with errors.Cause(err) == errs.ErrConfig or errors.Is.
None of these are retried anywhere in the module.
*/
package errs

// Error is a sentinel error carrying only a fixed message.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

var (
	// ErrConfig is an invalid bit-width, scale, kernel or reset configuration,
	// raised when a layer is constructed.
	ErrConfig = Error{"invalid configuration"}

	// ErrStateReuse is a backward call with no matching forward call,
	// or a second backward call for the same forward call.
	ErrStateReuse = Error{"forward context missing or already consumed"}

	// ErrShape is a mismatch between tensor shapes and layer configuration.
	ErrShape = Error{"shape mismatch"}

	// ErrUnstable is a non-finite value in parameters or state.
	ErrUnstable = Error{"numeric instability"}
)
