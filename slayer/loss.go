// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slayer

import (
	"github.com/emer/etable/v2/etensor"
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
)

// RateLoss is the spike count loss: 1/2 the mean over output rows of the
// squared difference between the number of spikes and the target count.
// target has one count per row (all dims but time).  The gradient
// d loss / d out[r,t] = (count[r] - target[r]) / rows is the same at
// every step of the row.
func RateLoss(out *etensor.Float32, target []float32) (float32, *etensor.Float32, error) {
	shp := out.Shapes()
	if len(shp) < 2 {
		return 0, nil, errors.Wrapf(errs.ErrShape, "RateLoss: output shape %v has no time dimension", shp)
	}
	steps := shp[len(shp)-1]
	rows := prod(shp[:len(shp)-1])
	if len(target) != rows {
		return 0, nil, errors.Wrapf(errs.ErrShape, "RateLoss: %d targets for output shape %v (%d rows)", len(target), shp, rows)
	}
	grad := NewTensor(shp)
	if rows == 0 || steps == 0 {
		return 0, grad, nil
	}
	inv := 1 / float32(rows)
	var loss float64
	for r := 0; r < rows; r++ {
		var n float32
		for _, s := range out.Values[r*steps : (r+1)*steps] {
			n += s
		}
		d := n - target[r]
		loss += float64(d * d)
		g := grad.Values[r*steps : (r+1)*steps]
		for t := range g {
			g[t] = d * inv
		}
	}
	return float32(0.5 * loss / float64(rows)), grad, nil
}

// Counts returns the number of spikes in each row of out
func Counts(out *etensor.Float32) []float32 {
	shp := out.Shapes()
	steps := shp[len(shp)-1]
	rows := prod(shp[:len(shp)-1])
	cnt := make([]float32, rows)
	for r := range cnt {
		for _, s := range out.Values[r*steps : (r+1)*steps] {
			cnt[r] += s
		}
	}
	return cnt
}
