// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neuron

import (
	"github.com/pkg/errors"

	"github.com/emer/slayer/credit"
	"github.com/emer/slayer/errs"
	"github.com/emer/slayer/spike"
)

// State is the membrane state carried between sequences: the final
// potential and final spike of each neuron row.  Whether it is carried into
// the next sequence or dropped is up to the caller.  No gradient flows
// through a carried State.
type State struct {
	Vm  []float32
	Spk []float32
}

// NewState returns a zero state for rows neurons
func NewState(rows int) *State {
	return &State{Vm: make([]float32, rows), Spk: make([]float32, rows)}
}

// Rows returns the number of neuron rows in the state
func (st *State) Rows() int {
	if st == nil {
		return 0
	}
	return len(st.Vm)
}

// Ctxt is the context of one Forward call, consumed by one Backward call.
// All arenas are indexed by row*Steps + t.
type Ctxt struct {
	Rows  int
	Steps int

	spk    *spike.Ctxt
	spikes []float32
}

// Vm returns the membrane potentials of the forward call, or nil once the
// context has been consumed.  Read only.
func (cx *Ctxt) Vm() []float32 {
	if cx == nil {
		return nil
	}
	return cx.spk.Vm()
}

// Forward integrates synaptic input cur (rows x steps, time-last) from state
// st (nil = all zero) and returns the spikes, the context for Backward and
// the final state.
func (nr *LIF) Forward(cur []float32, rows, steps int, st *State) ([]float32, *Ctxt, *State, error) {
	n := rows * steps
	if rows < 1 || steps < 1 || len(cur) != n {
		return nil, nil, nil, errors.Wrapf(errs.ErrShape, "neuron.Forward: input len %d, expected rows %d x steps %d", len(cur), rows, steps)
	}
	if st != nil && (len(st.Vm) != rows || len(st.Spk) != rows) {
		return nil, nil, nil, errors.Wrapf(errs.ErrShape, "neuron.Forward: state has %d / %d rows, expected %d", len(st.Vm), len(st.Spk), rows)
	}
	vm := make([]float32, n)
	spk := make([]float32, n)
	nst := NewState(rows)
	sp := &nr.Spike
	decay := nr.Decay
	thr := sp.Thr
	hard := nr.Reset == HardReset
	for r := 0; r < rows; r++ {
		var v, s float32
		if st != nil {
			v, s = st.Vm[r], st.Spk[r]
		}
		off := r * steps
		for t := 0; t < steps; t++ {
			i := off + t
			if hard {
				v = decay*v*(1-s) + cur[i]
			} else {
				v = decay*(v-thr*s) + cur[i]
			}
			s = sp.Spike(v)
			vm[i] = v
			spk[i] = s
		}
		nst.Vm[r] = v
		nst.Spk[r] = s
	}
	cx := &Ctxt{Rows: rows, Steps: steps, spk: sp.Retain(vm), spikes: spk}
	return spk, cx, nst, nil
}

// Backward consumes cx and returns the gradient with respect to the
// synaptic input, given grad with respect to the output spikes.
// A nil or already consumed context returns errs.ErrStateReuse.
func (nr *LIF) Backward(cx *Ctxt, grad []float32) ([]float32, error) {
	if cx == nil {
		return nil, errors.Wrap(errs.ErrStateReuse, "neuron.Backward: no forward context")
	}
	n := cx.Rows * cx.Steps
	if len(grad) != n {
		return nil, errors.Wrapf(errs.ErrShape, "neuron.Backward: grad len %d, expected rows %d x steps %d", len(grad), cx.Rows, cx.Steps)
	}
	local := make([]float32, n)
	if err := cx.spk.Backward(grad, local); err != nil {
		return nil, err
	}
	hard := nr.Reset == HardReset
	out := make([]float32, n)
	if nr.Back == KernelBack {
		if err := credit.Assign(nr.Kern, local, cx.spikes, cx.Rows, cx.Steps, hard, out); err != nil {
			return nil, err
		}
	} else {
		nr.recurBack(local, cx.spikes, cx.Rows, cx.Steps, hard, out)
	}
	cx.spikes = nil
	return out, nil
}

// recurBack runs the membrane recurrence backward in time:
// g[t] = local[t] + Decay * (1 - s[t]) * g[t+1] for hard reset,
// g[t] = local[t] + Decay * g[t+1] for subtractive reset.
func (nr *LIF) recurBack(local, spk []float32, rows, steps int, hard bool, out []float32) {
	decay := nr.Decay
	for r := 0; r < rows; r++ {
		off := r * steps
		var g float32
		for t := steps - 1; t >= 0; t-- {
			i := off + t
			carry := decay * g
			if hard {
				carry *= 1 - spk[i]
			}
			g = local[i] + carry
			out[i] = g
		}
	}
}
