// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spike

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
)

// difTol is the numerical difference tolerance for comparing vs. target values
const difTol = float32(1.0e-6)

func TestSpikeThreshold(t *testing.T) {
	sp := Params{}
	sp.Defaults()
	sp.Thr = 0.5
	sp.Update()

	vm := []float32{-1, 0, 0.4999, 0.5, 0.5001, 2}
	cor := []float32{0, 0, 0, 1, 1, 1}
	spk := make([]float32, len(vm))
	cx, err := sp.Fire(vm, spk)
	if err != nil {
		t.Fatal(err)
	}
	for i := range vm {
		if spk[i] != cor[i] {
			t.Errorf("spike err: idx: %v, vm: %v, spk: %v, cor: %v\n", i, vm[i], spk[i], cor[i])
		}
	}
	if cx.Len() != len(vm) {
		t.Errorf("ctxt len: %v != %v", cx.Len(), len(vm))
	}
}

func TestPDFShape(t *testing.T) {
	for sh := Exponential; sh < SurrogateN; sh++ {
		sp := Params{}
		sp.Defaults()
		sp.Shape = sh
		sp.Tau = 0.3
		sp.Update()
		if err := sp.Validate(); err != nil {
			t.Fatal(err)
		}
		peak := sp.PDF(sp.Thr)
		if math32.Abs(peak-sp.Mag) > difTol {
			t.Errorf("%v: peak %v != Mag %v", sh, peak, sp.Mag)
		}
		prevUp, prevDn := peak, peak
		for d := float32(0.05); d < 3; d += 0.05 {
			up := sp.PDF(sp.Thr + d)
			dn := sp.PDF(sp.Thr - d)
			if up <= 0 && d < 1 {
				t.Errorf("%v: pdf not positive near threshold at +%v: %v", sh, d, up)
			}
			if up > prevUp || dn > prevDn {
				t.Errorf("%v: pdf not monotone at offset %v: up %v (prev %v) dn %v (prev %v)", sh, d, up, prevUp, dn, prevDn)
			}
			if math32.Abs(up-dn) > difTol {
				t.Errorf("%v: pdf not symmetric at offset %v: %v vs %v", sh, d, up, dn)
			}
			prevUp, prevDn = up, dn
		}
	}
}

func TestSoftIsAntiderivative(t *testing.T) {
	const h = 1e-3
	for sh := Exponential; sh < SurrogateN; sh++ {
		sp := Params{}
		sp.Defaults()
		sp.Shape = sh
		sp.Tau = 0.5
		sp.Update()
		for _, v := range []float32{-1, 0.2, 0.9, 1, 1.1, 2.5} {
			num := (sp.Soft(v+h) - sp.Soft(v-h)) / (2 * h)
			an := sp.PDF(v)
			if math32.Abs(num-an) > 1e-2 {
				t.Errorf("%v: d Soft / dv at %v: numeric %v analytic %v", sh, v, num, an)
			}
		}
	}
}

func TestBackward(t *testing.T) {
	sp := Params{}
	sp.Defaults()
	vm := []float32{0, 1, 2}
	spk := make([]float32, 3)
	cx, _ := sp.Fire(vm, spk)
	grad := []float32{2, 3, -1}
	out := make([]float32, 3)
	if err := cx.Backward(grad, out); err != nil {
		t.Fatal(err)
	}
	cor := []float32{2 * math32.Exp(-1), 3, -math32.Exp(-1)}
	for i := range out {
		if math32.Abs(out[i]-cor[i]) > difTol {
			t.Errorf("backward err: idx: %v, out: %v, cor: %v\n", i, out[i], cor[i])
		}
	}
	if !cx.Consumed() {
		t.Errorf("context should be consumed")
	}
}

func TestStateReuse(t *testing.T) {
	sp := Params{}
	sp.Defaults()
	vm := []float32{0.5, 1.5}
	spk := make([]float32, 2)
	cx, _ := sp.Fire(vm, spk)
	out := make([]float32, 2)
	if err := cx.Backward([]float32{1, 1}, out); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		err := cx.Backward([]float32{1, 1}, out)
		if errors.Cause(err) != errs.ErrStateReuse {
			t.Errorf("reuse %d: expected ErrStateReuse, got %v", i, err)
		}
	}

	var nilcx *Ctxt
	if err := nilcx.Backward([]float32{1}, []float32{0}); errors.Cause(err) != errs.ErrStateReuse {
		t.Errorf("nil context: expected ErrStateReuse, got %v", err)
	}
	if err := (&Ctxt{}).Backward([]float32{1}, []float32{0}); errors.Cause(err) != errs.ErrStateReuse {
		t.Errorf("zero context: expected ErrStateReuse, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	bad := []func(sp *Params){
		func(sp *Params) { sp.Thr = 0 },
		func(sp *Params) { sp.Tau = -1 },
		func(sp *Params) { sp.Mag = 0 },
		func(sp *Params) { sp.Shape = SurrogateN },
		func(sp *Params) { sp.Thr = math32.NaN() },
	}
	for i, f := range bad {
		sp := Params{}
		sp.Defaults()
		f(&sp)
		sp.Update()
		if err := sp.Validate(); errors.Cause(err) != errs.ErrConfig {
			t.Errorf("case %d: expected ErrConfig, got %v", i, err)
		}
	}
}
