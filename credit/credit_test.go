// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package credit

import (
	"testing"

	"github.com/goki/mat32"
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
	"github.com/emer/slayer/kernel"
)

// difTol is the numerical difference tolerance for comparing vs. target values
const difTol = float32(1.0e-6)

func TestSingleStep(t *testing.T) {
	kn, _ := kernel.New(kernel.Params{Shape: kernel.Alpha, Tau: 2, Len: 8, Mass: 5})
	local := []float32{0.3, -1.25, 7}
	out := make([]float32, 3)
	// 3 rows of 1 step: no future contribution is possible
	if err := Assign(kn, local, nil, 3, 1, false, out); err != nil {
		t.Fatal(err)
	}
	for i := range local {
		if out[i] != local[i] {
			t.Errorf("1-step row %d: out %v != local %v", i, out[i], local[i])
		}
	}
	if err := Assign(kn, local, []float32{1, 0, 1}, 3, 1, true, out); err != nil {
		t.Fatal(err)
	}
	for i := range local {
		if out[i] != local[i] {
			t.Errorf("1-step trunc row %d: out %v != local %v", i, out[i], local[i])
		}
	}
}

func TestCorrelation(t *testing.T) {
	kn, _ := kernel.New(kernel.Params{Shape: kernel.ExpDecay, Tau: 1, Len: 2, Mass: 1})
	e1, e2 := kn.Eff(1), kn.Eff(2)
	local := []float32{1, 2, 3, 4}
	out := make([]float32, 4)
	Assign(kn, local, nil, 1, 4, false, out)
	cor := []float32{
		1 + e1*2 + e2*3,
		2 + e1*3 + e2*4,
		3 + e1*4, // truncated support at the end of the sequence
		4,
	}
	for i := range cor {
		if mat32.Abs(out[i]-cor[i]) > difTol {
			t.Errorf("step %d: out %v, cor %v", i, out[i], cor[i])
		}
	}
}

func TestTruncation(t *testing.T) {
	kn, _ := kernel.FromDecay(0.5, 8)
	local := []float32{1, 1, 1, 1, 1}
	spk := []float32{0, 0, 1, 0, 0}
	out := make([]float32, 5)
	Assign(kn, local, spk, 1, 5, true, out)
	cor := []float32{
		1 + 0.5 + 0.25, // stops after the spike at step 2
		1 + 0.5,
		1, // spiked at its own step
		1 + 0.5,
		1,
	}
	for i := range cor {
		if mat32.Abs(out[i]-cor[i]) > difTol {
			t.Errorf("step %d: out %v, cor %v", i, out[i], cor[i])
		}
	}
}

func TestRowsIndependent(t *testing.T) {
	kn, _ := kernel.FromDecay(0.8, 4)
	local := []float32{1, 0, 0, 0, 0, 0, 0, 1}
	out := make([]float32, len(local))
	Assign(kn, local, nil, 2, 4, false, out)
	// row 0 has no future error, row 1 only at its last step
	cor := []float32{1, 0, 0, 0, kn.Eff(3), kn.Eff(2), kn.Eff(1), 1}
	for i := range cor {
		if mat32.Abs(out[i]-cor[i]) > difTol {
			t.Errorf("idx %d: out %v, cor %v", i, out[i], cor[i])
		}
	}
}

func TestShapeErrors(t *testing.T) {
	kn, _ := kernel.FromDecay(0.5, 4)
	if err := Assign(kn, make([]float32, 5), nil, 2, 3, false, make([]float32, 6)); errors.Cause(err) != errs.ErrShape {
		t.Errorf("expected ErrShape, got %v", err)
	}
	if err := Assign(kn, make([]float32, 6), make([]float32, 2), 2, 3, true, make([]float32, 6)); errors.Cause(err) != errs.ErrShape {
		t.Errorf("expected ErrShape for spikes, got %v", err)
	}
}
