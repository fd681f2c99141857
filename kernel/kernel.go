// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package kernel provides the temporal kernel used to distribute error back in
time: a fixed-length response over future time offsets 1..Len, modeling how
a change in synaptic input at step t influences membrane potential (and
therefore loss) at steps t+1, t+2, ...

A Kernel is immutable once built and is shared, read-only, across every
timestep, batch element and concurrent pass of the layer that owns it.
Its weights are normalized to sum to exactly 1; the total future influence
is carried separately as Mass, so the effective tap at offset k is
Mass * Weight(k).
*/
package kernel

import (
	"github.com/goki/ki/kit"
	"github.com/goki/mat32"
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
)

// Shape is the functional form of the kernel taps
type Shape int

//go:generate stringer -type=Shape

var KiT_Shape = kit.Enums.AddEnum(ShapeN, kit.NotBitFlag, nil)

func (ev Shape) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *Shape) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

// The kernel shapes
const (
	// ExpDecay is exp(-k / Tau): the impulse response of a leaky membrane
	ExpDecay Shape = iota

	// Alpha is (k / Tau) exp(1 - k / Tau): the SLAYER spike response kernel,
	// peaking at k = Tau
	Alpha

	ShapeN
)

// MaxLen is the longest kernel support allowed
const MaxLen = 1 << 16

// Params are the kernel construction parameters
type Params struct {
	Shape Shape   `desc:"functional form of the kernel taps"`
	Tau   float32 `def:"4" min:"0" desc:"time constant of the kernel in timesteps"`
	Len   int     `def:"16" min:"1" desc:"number of future offsets covered by the kernel (support); offsets beyond Len contribute nothing"`
	Mass  float32 `def:"1" min:"0" desc:"total future influence: the sum of effective taps, Mass * Weight(k), over the support"`
}

func (kp *Params) Defaults() {
	kp.Shape = ExpDecay
	kp.Tau = 4
	kp.Len = 16
	kp.Mass = 1
}

// Validate returns an errs.ErrConfig error for params outside the stable range
func (kp *Params) Validate() error {
	switch {
	case kp.Shape < 0 || kp.Shape >= ShapeN:
		return errors.Wrapf(errs.ErrConfig, "kernel: unknown shape %d", int(kp.Shape))
	case kp.Len < 1 || kp.Len > MaxLen:
		return errors.Wrapf(errs.ErrConfig, "kernel: Len must be in [1, %d], got %d", MaxLen, kp.Len)
	case !finite(kp.Tau) || kp.Tau <= 0:
		return errors.Wrapf(errs.ErrConfig, "kernel: Tau must be positive and finite, got %v", kp.Tau)
	case !finite(kp.Mass) || kp.Mass < 0:
		return errors.Wrapf(errs.ErrConfig, "kernel: Mass must be non-negative and finite, got %v", kp.Mass)
	}
	return nil
}

// Kernel is a normalized temporal kernel.  Use New or FromDecay.
type Kernel struct {
	shape Shape
	tau   float32
	mass  float32
	wts   []float32
	eff   []float32
}

// New builds the kernel described by kp.
func New(kp Params) (*Kernel, error) {
	if err := kp.Validate(); err != nil {
		return nil, err
	}
	raw := make([]float32, kp.Len)
	for i := range raw {
		k := float32(i+1) / kp.Tau
		switch kp.Shape {
		case Alpha:
			raw[i] = k * mat32.Exp(1-k)
		default:
			raw[i] = mat32.Exp(-k)
		}
	}
	return build(kp.Shape, kp.Tau, kp.Mass, raw)
}

// FromDecay builds the kernel matching a leaky membrane with the given
// per-step decay factor, over n future offsets: the effective tap at
// offset k is decay^k, which is exactly how input at step t reaches the
// membrane potential at step t+k in the absence of resets.
func FromDecay(decay float32, n int) (*Kernel, error) {
	if !finite(decay) || decay <= 0 || decay >= 1 {
		return nil, errors.Wrapf(errs.ErrConfig, "kernel: decay must be in (0, 1), got %v", decay)
	}
	if n < 1 || n > MaxLen {
		return nil, errors.Wrapf(errs.ErrConfig, "kernel: Len must be in [1, %d], got %d", MaxLen, n)
	}
	raw := make([]float32, n)
	pw := float32(1)
	var mass float32
	for i := range raw {
		pw *= decay
		raw[i] = pw
		mass += pw
	}
	return build(ExpDecay, -1/mat32.Log(decay), mass, raw)
}

func build(shape Shape, tau, mass float32, raw []float32) (*Kernel, error) {
	var sum float32
	for _, w := range raw {
		sum += w
	}
	if !finite(sum) || sum <= 0 {
		return nil, errors.Wrapf(errs.ErrUnstable, "kernel: taps sum to %v, cannot normalize", sum)
	}
	kn := &Kernel{shape: shape, tau: tau, mass: mass, wts: raw, eff: make([]float32, len(raw))}
	for i := range raw {
		kn.wts[i] = raw[i] / sum
		kn.eff[i] = mass * kn.wts[i]
	}
	return kn, nil
}

// Len returns the number of future offsets covered
func (kn *Kernel) Len() int { return len(kn.wts) }

// Mass returns the total future influence
func (kn *Kernel) Mass() float32 { return kn.mass }

// Tau returns the time constant of the kernel
func (kn *Kernel) Tau() float32 { return kn.tau }

// Shape returns the functional form of the kernel
func (kn *Kernel) Shape() Shape { return kn.shape }

// Weight returns the normalized weight at offset k (1-based); 0 outside the support
func (kn *Kernel) Weight(k int) float32 {
	if k < 1 || k > len(kn.wts) {
		return 0
	}
	return kn.wts[k-1]
}

// Eff returns the effective tap Mass * Weight(k) at offset k; 0 outside the support
func (kn *Kernel) Eff(k int) float32 {
	if k < 1 || k > len(kn.eff) {
		return 0
	}
	return kn.eff[k-1]
}

// Taps returns the effective taps for offsets 1..Len.  Read only.
func (kn *Kernel) Taps() []float32 { return kn.eff }

// Sum returns the sum of the normalized weights, which is 1 up to rounding
func (kn *Kernel) Sum() float32 {
	var sum float32
	for _, w := range kn.wts {
		sum += w
	}
	return sum
}

func finite(v float32) bool {
	return !mat32.IsNaN(v) && !mat32.IsInf(v, 0)
}
