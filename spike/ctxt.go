// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spike

import (
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
)

// Ctxt is the surrogate gradient context captured by one forward call:
// the pre-activation membrane potentials and the params they were
// thresholded with.  It is owned by the backward call that consumes it.
type Ctxt struct {
	sp   *Params
	vm   []float32
	used bool
}

// Len returns the number of cached pre-activation values
func (cx *Ctxt) Len() int {
	if cx == nil {
		return 0
	}
	return len(cx.vm)
}

// Vm returns the cached pre-activation values.  Read only.
func (cx *Ctxt) Vm() []float32 {
	if cx == nil {
		return nil
	}
	return cx.vm
}

// Consumed reports whether Backward has already been called
func (cx *Ctxt) Consumed() bool {
	return cx != nil && cx.used
}

// Backward writes out = grad * PDF(vm) for the cached vm, and releases the
// cached values.  A nil or consumed context returns errs.ErrStateReuse,
// every time it is called.
func (cx *Ctxt) Backward(grad, out []float32) error {
	if cx == nil || cx.sp == nil {
		return errors.Wrap(errs.ErrStateReuse, "spike.Backward: no forward context")
	}
	if cx.used {
		return errors.Wrap(errs.ErrStateReuse, "spike.Backward: context already consumed")
	}
	if len(grad) != len(cx.vm) || len(out) != len(cx.vm) {
		return errors.Wrapf(errs.ErrShape, "spike.Backward: grad len %d, out len %d, cached len %d", len(grad), len(out), len(cx.vm))
	}
	sp := cx.sp
	for i, v := range cx.vm {
		out[i] = grad[i] * sp.PDF(v)
	}
	cx.used = true
	cx.vm = nil
	return nil
}
