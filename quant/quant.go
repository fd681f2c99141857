// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package quant provides fixed-point quantization for quantization-aware
training: values are rounded to the nearest representable level of a
signed fixed-point format in the forward pass (saturating at the ends of
the range), while gradients pass straight through in the backward pass.
*/
package quant

import (
	"math"

	"github.com/emer/etable/v2/minmax"
	"github.com/goki/mat32"
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
)

// FullBits is the bit width treated as full precision: no rounding is applied
const FullBits = 32

// Descriptor is the per-layer quantization configuration.
// It is set by training configuration and is read-only during a
// forward / backward pass.
type Descriptor struct {
	Bits int     `def:"8" min:"2" max:"32" desc:"number of bits of the signed fixed-point format, including sign -- 32 = full precision, no rounding"`
	Step float32 `def:"0.015625" min:"0" desc:"real value of one quantization level (the scale) -- must be positive"`

	MinLev int32   `view:"-" json:"-" xml:"-" desc:"lowest representable level, -2^(Bits-1)"`
	MaxLev int32   `view:"-" json:"-" xml:"-" desc:"highest representable level, 2^(Bits-1) - 1"`
	InvStp float32 `view:"-" json:"-" xml:"-" desc:"1 / Step"`
}

func (qd *Descriptor) Defaults() {
	qd.Bits = 8
	qd.Step = 1.0 / 64.0
	qd.Update()
}

// Update must be called after any changes to parameters
func (qd *Descriptor) Update() {
	if qd.Step > 0 {
		qd.InvStp = 1 / qd.Step
	}
	if qd.Bits >= 2 && qd.Bits < FullBits {
		qd.MaxLev = int32(1)<<uint(qd.Bits-1) - 1
		qd.MinLev = -qd.MaxLev - 1
	}
}

// Validate returns an errs.ErrConfig error for a zero, negative or non-finite
// Step, or a Bits outside [2, FullBits].  Called at layer construction.
func (qd *Descriptor) Validate() error {
	if mat32.IsNaN(qd.Step) || mat32.IsInf(qd.Step, 0) || qd.Step <= 0 {
		return errors.Wrapf(errs.ErrConfig, "quant: Step must be positive and finite, got %v", qd.Step)
	}
	if qd.Bits < 2 || qd.Bits > FullBits {
		return errors.Wrapf(errs.ErrConfig, "quant: Bits must be in [2, %d], got %d", FullBits, qd.Bits)
	}
	return nil
}

// Full reports whether this descriptor is full precision (no rounding)
func (qd *Descriptor) Full() bool {
	return qd.Bits >= FullBits
}

// Range returns the representable real range
func (qd *Descriptor) Range() minmax.F32 {
	if qd.Full() {
		return minmax.F32{Min: -math.MaxFloat32, Max: math.MaxFloat32}
	}
	return minmax.F32{Min: float32(qd.MinLev) * qd.Step, Max: float32(qd.MaxLev) * qd.Step}
}

// Level returns the saturated integer level nearest to x.
// For full precision the level is computed against Step without saturation
// beyond the int32 range.  NaN maps to level 0.
func (qd *Descriptor) Level(x float32) int32 {
	if mat32.IsNaN(x) {
		return 0
	}
	lv := mat32.Round(x * qd.InvStp)
	lo, hi := float32(qd.MinLev), float32(qd.MaxLev)
	if qd.Full() {
		lo, hi = math.MinInt32, math.MaxInt32-255
	}
	switch {
	case lv < lo:
		lv = lo
	case lv > hi:
		lv = hi
	}
	return int32(lv)
}

// Value returns the quantized value of x: its level times Step, saturating
// at the ends of the range.  For full precision, x is returned unchanged.
func (qd *Descriptor) Value(x float32) float32 {
	if qd.Full() {
		return x
	}
	return float32(qd.Level(x)) * qd.Step
}

// Quantize writes the quantized values of x into out (may alias x)
func (qd *Descriptor) Quantize(x, out []float32) {
	if qd.Full() {
		copy(out, x)
		return
	}
	for i, v := range x {
		out[i] = float32(qd.Level(v)) * qd.Step
	}
}

// Levels writes the integer levels of x into out, for export
func (qd *Descriptor) Levels(x []float32, out []int32) {
	for i, v := range x {
		out[i] = qd.Level(v)
	}
}

// Backward is the straight-through estimator: the gradient with respect
// to the unquantized values is the gradient with respect to the quantized ones.
func (qd *Descriptor) Backward(grad, out []float32) {
	copy(out, grad)
}
