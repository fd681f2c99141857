// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package spike provides the spike activation function: a hard threshold on
membrane potential in the forward direction, paired with a smooth, bounded
surrogate derivative for the backward direction.

The true derivative of the threshold is a Dirac delta at Thr, which carries
no usable gradient.  Instead the backward pass multiplies the incoming
gradient by a pulse-shaped probability density centered at the threshold
(the spike escape rate of SLAYER), evaluated at the membrane potential that
was cached during the forward pass.  The cached context can be consumed
exactly once.
*/
package spike

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/goki/ki/kit"
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
)

// Surrogate is the shape of the surrogate derivative pulse.
type Surrogate int

//go:generate stringer -type=Surrogate

var KiT_Surrogate = kit.Enums.AddEnum(SurrogateN, kit.NotBitFlag, nil)

func (ev Surrogate) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *Surrogate) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

// The surrogate derivative shapes
const (
	// Exponential is the SLAYER spike escape rate: Mag * exp(-|v - Thr| / Tau)
	Exponential Surrogate = iota

	// FastSigmoid is the derivative of the fast sigmoid x / (1 + |x|):
	// Mag / (1 + |v - Thr| / Tau)^2
	FastSigmoid

	// Gaussian is Mag * exp(-((v - Thr) / Tau)^2 / 2)
	Gaussian

	SurrogateN
)

// Params are the spike activation function parameters.
type Params struct {
	Thr   float32   `def:"1" min:"0" desc:"threshold on membrane potential: a spike is emitted iff Vm >= Thr"`
	Shape Surrogate `desc:"shape of the surrogate derivative pulse centered at Thr"`
	Tau   float32   `def:"1" min:"0" desc:"width of the surrogate pulse, in membrane potential units -- SLAYER tauRho times Thr"`
	Mag   float32   `def:"1" min:"0" desc:"height of the surrogate pulse at Thr -- SLAYER scaleRho"`

	InvTau float32 `view:"-" json:"-" xml:"-" desc:"1 / Tau"`
}

func (sp *Params) Defaults() {
	sp.Thr = 1
	sp.Shape = Exponential
	sp.Tau = 1
	sp.Mag = 1
	sp.Update()
}

// Update must be called after any changes to parameters
func (sp *Params) Update() {
	if sp.Tau > 0 {
		sp.InvTau = 1 / sp.Tau
	}
}

// Validate returns an errs.ErrConfig error if the params cannot produce
// a bounded, strictly positive surrogate derivative.
func (sp *Params) Validate() error {
	switch {
	case !finite(sp.Thr) || sp.Thr <= 0:
		return errors.Wrapf(errs.ErrConfig, "spike: threshold must be positive and finite, got %v", sp.Thr)
	case !finite(sp.Tau) || sp.Tau <= 0:
		return errors.Wrapf(errs.ErrConfig, "spike: surrogate Tau must be positive and finite, got %v", sp.Tau)
	case !finite(sp.Mag) || sp.Mag <= 0:
		return errors.Wrapf(errs.ErrConfig, "spike: surrogate Mag must be positive and finite, got %v", sp.Mag)
	case sp.Shape < 0 || sp.Shape >= SurrogateN:
		return errors.Wrapf(errs.ErrConfig, "spike: unknown surrogate shape %d", int(sp.Shape))
	}
	return nil
}

// Spike is the hard threshold: 1 iff vm >= Thr, else 0
func (sp *Params) Spike(vm float32) float32 {
	if vm >= sp.Thr {
		return 1
	}
	return 0
}

// PDF returns the surrogate derivative of Spike at vm.
// It peaks at Thr with value Mag and decays monotonically with |vm - Thr|.
func (sp *Params) PDF(vm float32) float32 {
	x := math32.Abs(vm-sp.Thr) * sp.InvTau
	switch sp.Shape {
	case FastSigmoid:
		d := 1 + x
		return sp.Mag / (d * d)
	case Gaussian:
		return sp.Mag * math32.Exp(-0.5*x*x)
	default:
		return sp.Mag * math32.Exp(-x)
	}
}

// Soft returns the antiderivative of PDF, offset so that Soft is 0 far below
// threshold for the Exponential and Gaussian shapes.  It is the smooth
// relaxation of Spike whose exact derivative is PDF.
func (sp *Params) Soft(vm float32) float32 {
	x := (vm - sp.Thr) * sp.InvTau
	area := sp.Mag * sp.Tau
	switch sp.Shape {
	case FastSigmoid:
		return area * (x / (1 + math32.Abs(x)))
	case Gaussian:
		// no float32 erf in the math32 packages
		return area * float32(math.Sqrt(math.Pi/2)*(1+math.Erf(float64(x)/math.Sqrt2)))
	default:
		if x < 0 {
			return area * math32.Exp(x)
		}
		return area * (2 - math32.Exp(-x))
	}
}

// Fire thresholds each vm into spk and returns the context that retains vm
// for the one matching Backward call.
func (sp *Params) Fire(vm, spk []float32) (*Ctxt, error) {
	if len(vm) != len(spk) {
		return nil, errors.Wrapf(errs.ErrShape, "spike.Fire: vm len %d != spk len %d", len(vm), len(spk))
	}
	for i, v := range vm {
		spk[i] = sp.Spike(v)
	}
	return sp.Retain(vm), nil
}

// Retain returns a context over a membrane potential arena that the caller
// filled (and thresholded with Spike) itself, e.g., one step at a time.
// The arena must not be modified until the context is consumed.
func (sp *Params) Retain(vm []float32) *Ctxt {
	return &Ctxt{sp: sp, vm: vm}
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
