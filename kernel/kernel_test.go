// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"testing"

	"github.com/goki/mat32"
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
)

// difTol is the numerical difference tolerance for comparing vs. target values
const difTol = float32(1.0e-6)

// sumTol allows for accumulated rounding in sums over many taps
const sumTol = float32(1.0e-5)

func TestNormalized(t *testing.T) {
	cfgs := []Params{
		{Shape: ExpDecay, Tau: 1, Len: 1, Mass: 1},
		{Shape: ExpDecay, Tau: 4, Len: 16, Mass: 1},
		{Shape: ExpDecay, Tau: 0.5, Len: 100, Mass: 3},
		{Shape: Alpha, Tau: 2, Len: 8, Mass: 1},
		{Shape: Alpha, Tau: 10, Len: 64, Mass: 0.25},
	}
	for _, kp := range cfgs {
		kn, err := New(kp)
		if err != nil {
			t.Fatal(err)
		}
		if sum := kn.Sum(); mat32.Abs(sum-1) > sumTol {
			t.Errorf("%+v: weights sum to %v, not 1", kp, sum)
		}
		var eff float32
		for k := 1; k <= kn.Len(); k++ {
			eff += kn.Eff(k)
		}
		if mat32.Abs(eff-kp.Mass) > sumTol*kp.Mass {
			t.Errorf("%+v: effective taps sum to %v, not Mass %v", kp, eff, kp.Mass)
		}
		if kn.Weight(0) != 0 || kn.Weight(kn.Len()+1) != 0 {
			t.Errorf("%+v: weights outside support must be zero", kp)
		}
	}
}

func TestShapes(t *testing.T) {
	kn, _ := New(Params{Shape: ExpDecay, Tau: 3, Len: 10, Mass: 1})
	for k := 2; k <= kn.Len(); k++ {
		if kn.Weight(k) >= kn.Weight(k-1) {
			t.Errorf("ExpDecay not decreasing at %d: %v >= %v", k, kn.Weight(k), kn.Weight(k-1))
		}
	}
	al, _ := New(Params{Shape: Alpha, Tau: 3, Len: 10, Mass: 1})
	peak := 1
	for k := 2; k <= al.Len(); k++ {
		if al.Weight(k) > al.Weight(peak) {
			peak = k
		}
	}
	if peak != 3 {
		t.Errorf("Alpha kernel should peak at Tau=3, peaks at %d", peak)
	}
}

func TestFromDecay(t *testing.T) {
	for _, decay := range []float32{0.1, 0.5, 0.9, 0.99} {
		kn, err := FromDecay(decay, 12)
		if err != nil {
			t.Fatal(err)
		}
		pw := float32(1)
		for k := 1; k <= kn.Len(); k++ {
			pw *= decay
			if dif := mat32.Abs(kn.Eff(k) - pw); dif > difTol {
				t.Errorf("decay %v: eff(%d) = %v, want %v", decay, k, kn.Eff(k), pw)
			}
		}
		if mat32.Abs(kn.Sum()-1) > sumTol {
			t.Errorf("decay %v: weights sum to %v", decay, kn.Sum())
		}
	}
}

func TestConfigErrors(t *testing.T) {
	bad := []Params{
		{Shape: ExpDecay, Tau: 0, Len: 4, Mass: 1},
		{Shape: ExpDecay, Tau: 1, Len: 0, Mass: 1},
		{Shape: ExpDecay, Tau: 1, Len: 4, Mass: -1},
		{Shape: ShapeN, Tau: 1, Len: 4, Mass: 1},
		{Shape: Alpha, Tau: mat32.Infinity, Len: 4, Mass: 1},
	}
	for _, kp := range bad {
		if _, err := New(kp); errors.Cause(err) != errs.ErrConfig {
			t.Errorf("%+v: expected ErrConfig, got %v", kp, err)
		}
	}
	for _, d := range []float32{0, 1, -0.5, 1.5} {
		if _, err := FromDecay(d, 4); errors.Cause(err) != errs.ErrConfig {
			t.Errorf("decay %v: expected ErrConfig, got %v", d, err)
		}
	}
}
