// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package credit is the temporal credit assignment engine of SLAYER.

Given the local error at each timestep of each neuron (the incoming spike
gradient already multiplied by the surrogate derivative), it assigns to the
synaptic input at step t the local error at t plus a kernel-weighted sum of
the local errors at later steps:

	out[t] = local[t] + sum_{k=1..Len, t+k < Steps} Eff(k) * local[t+k]

This is a correlation of the error with the layer's temporal kernel, run
backward in time.  It stands in for differentiating through the spike
nonlinearity at every step of the membrane recurrence.

Offsets past the kernel support, or past the end of the sequence, add
nothing: steps near the end of a sequence simply see a shorter kernel.
With hard reset, the influence of input at t ends at the first step at or
after t where the neuron spiked, so the sum is truncated there.

Data is laid out time-last: row r, step t is at index r*steps + t.
*/
package credit

import (
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
	"github.com/emer/slayer/kernel"
)

// Assign runs the engine over rows neuron time series of length steps.
// spk holds the forward spikes in the same layout, and is only read when
// trunc is set (hard reset).  out must not alias local.
func Assign(kn *kernel.Kernel, local, spk []float32, rows, steps int, trunc bool, out []float32) error {
	if kn == nil {
		return errors.Wrap(errs.ErrConfig, "credit.Assign: nil kernel")
	}
	n := rows * steps
	if rows < 0 || steps < 1 || len(local) != n || len(out) != n {
		return errors.Wrapf(errs.ErrShape, "credit.Assign: rows %d x steps %d vs local len %d, out len %d", rows, steps, len(local), len(out))
	}
	if trunc && len(spk) != n {
		return errors.Wrapf(errs.ErrShape, "credit.Assign: rows %d x steps %d vs spike len %d", rows, steps, len(spk))
	}
	taps := kn.Taps()
	for r := 0; r < rows; r++ {
		st := r * steps
		var rs []float32
		if trunc {
			rs = spk[st : st+steps]
		}
		AssignRow(taps, local[st:st+steps], rs, out[st:st+steps])
	}
	return nil
}

// AssignRow runs the engine over a single time series.  taps[k-1] is the
// effective kernel tap at offset k.  spk is nil for no truncation.
func AssignRow(taps, local, spk, out []float32) {
	steps := len(local)
	nk := len(taps)
	for t := 0; t < steps; t++ {
		acc := local[t]
		if spk != nil && spk[t] != 0 {
			out[t] = acc
			continue
		}
		mx := steps - 1 - t
		if mx > nk {
			mx = nk
		}
		fut := local[t+1:]
		for k := 0; k < mx; k++ {
			acc += taps[k] * fut[k]
			if spk != nil && spk[t+1+k] != 0 {
				break
			}
		}
		out[t] = acc
	}
}
