// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slayer

import (
	"github.com/emer/etable/v2/etensor"
)

// NewTensor returns a zero spike tensor of given shape, time last.
// Dimension names are set for the Dense and Conv layouts.
func NewTensor(shape []int) *etensor.Float32 {
	shp := append([]int(nil), shape...)
	return etensor.NewFloat32(shp, nil, dimNames(len(shp)))
}

func dimNames(nd int) []string {
	switch nd {
	case 3:
		return []string{"Batch", "Neuron", "Time"}
	case 5:
		return []string{"Batch", "Chan", "Y", "X", "Time"}
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// prod returns the product of dims
func prod(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
