// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package neuron simulates leaky integrate-and-fire membrane dynamics over
discrete timesteps, producing spike trains, and provides the matching
backward pass.

The forward recurrence is sequential along time and parallel only across
neuron rows (batch x features).  Per row, with v the membrane potential,
s the spike of the previous step and cur the synaptic input:

	hard reset:        v = Decay * v * (1 - s) + cur[t]
	subtractive reset: v = Decay * (v - Thr * s) + cur[t]

followed by s = Spike(v).  The backward pass consumes the surrogate gradient
context and either hands the local errors to the temporal credit assignment
engine (KernelBack, SLAYER) or runs the recurrence backward step by step
(RecurBack).  In both modes the reset gate is treated as a constant, and the
kernel derived from Decay makes the two agree whenever its support covers
the sequence.
*/
package neuron

import (
	"github.com/goki/ki/kit"
	"github.com/goki/mat32"
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
	"github.com/emer/slayer/kernel"
	"github.com/emer/slayer/spike"
)

// ResetMode is how the membrane potential is reset after a spike
type ResetMode int

//go:generate stringer -type=ResetMode

var KiT_ResetMode = kit.Enums.AddEnum(ResetModeN, kit.NotBitFlag, nil)

func (ev ResetMode) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *ResetMode) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

// The reset modes
const (
	// HardReset sets the potential to zero on the step after a spike
	HardReset ResetMode = iota

	// SubReset subtracts the threshold from the potential after a spike
	SubReset

	ResetModeN
)

// BackMode is how error is carried back in time in the backward pass
type BackMode int

//go:generate stringer -type=BackMode

var KiT_BackMode = kit.Enums.AddEnum(BackModeN, kit.NotBitFlag, nil)

func (ev BackMode) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *BackMode) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

// The backward modes
const (
	// KernelBack correlates local errors with the temporal kernel (SLAYER)
	KernelBack BackMode = iota

	// RecurBack runs the membrane recurrence backward step by step
	RecurBack

	BackModeN
)

// MaxTau is the largest membrane time constant considered numerically stable
const MaxTau = 1e4

// Params are the neuron dynamics parameters
type Params struct {
	Tau     float32       `def:"4" min:"0" max:"10000" desc:"membrane time constant in timesteps -- the potential retains Decay = exp(-1/Tau) of its value each step"`
	Reset   ResetMode     `desc:"how the potential is reset after a spike -- applies to both the forward recurrence and the backward gradient path"`
	Back    BackMode      `desc:"how error is carried back in time: temporal kernel correlation (SLAYER) or step-by-step recurrence"`
	KernLen int           `def:"16" min:"1" desc:"number of future offsets of the kernel derived from Decay, when Custom is off"`
	Custom  bool          `def:"false" desc:"use the Kern params for the temporal kernel instead of deriving it from Decay"`
	Spike   spike.Params  `view:"inline" desc:"spike threshold and surrogate derivative"`
	Kern    kernel.Params `viewif:"Custom" view:"inline" desc:"explicit temporal kernel params"`

	Decay float32 `view:"-" json:"-" xml:"-" desc:"per-step retention of the potential = exp(-1/Tau)"`
}

func (np *Params) Defaults() {
	np.Tau = 4
	np.Reset = HardReset
	np.Back = KernelBack
	np.KernLen = 16
	np.Custom = false
	np.Spike.Defaults()
	np.Kern.Defaults()
	np.Update()
}

// Update must be called after any changes to parameters
func (np *Params) Update() {
	if np.Tau > 0 {
		np.Decay = mat32.Exp(-1 / np.Tau)
	}
	np.Spike.Update()
}

// Validate returns an errs.ErrConfig error if the params are unsupported or
// outside the numerically stable interval 0 < Tau <= MaxTau.
func (np *Params) Validate() error {
	if mat32.IsNaN(np.Tau) || np.Tau <= 0 || np.Tau > MaxTau {
		return errors.Wrapf(errs.ErrConfig, "neuron: Tau must be in (0, %v], got %v", MaxTau, np.Tau)
	}
	if np.Reset < 0 || np.Reset >= ResetModeN {
		return errors.Wrapf(errs.ErrConfig, "neuron: unsupported reset mode %d", int(np.Reset))
	}
	if np.Back < 0 || np.Back >= BackModeN {
		return errors.Wrapf(errs.ErrConfig, "neuron: unsupported backward mode %d", int(np.Back))
	}
	if err := np.Spike.Validate(); err != nil {
		return err
	}
	if np.Custom {
		return np.Kern.Validate()
	}
	if np.KernLen < 1 || np.KernLen > kernel.MaxLen {
		return errors.Wrapf(errs.ErrConfig, "neuron: KernLen must be in [1, %d], got %d", kernel.MaxLen, np.KernLen)
	}
	return nil
}

// LIF is a population of leaky integrate-and-fire neurons sharing one set of
// params and one temporal kernel, both read-only after New.
type LIF struct {
	Params
	Kern *kernel.Kernel
}

// New validates p and builds its temporal kernel
func New(p Params) (*LIF, error) {
	p.Update()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	nr := &LIF{Params: p}
	var err error
	if p.Custom {
		nr.Kern, err = kernel.New(p.Kern)
	} else {
		nr.Kern, err = kernel.FromDecay(p.Decay, p.KernLen)
	}
	if err != nil {
		return nil, err
	}
	return nr, nil
}

// KernLength returns the support of the temporal kernel in use
func (nr *LIF) KernLength() int {
	return nr.Kern.Len()
}
