// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slayer

import (
	"github.com/emer/etable/v2/etensor"
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
	"github.com/emer/slayer/neuron"
)

// Dense is a fully connected spiking block.  Input is [Batch, ..., Time]
// where all dims between batch and time are flattened into NIn features,
// so a Dense block can follow a Conv block directly.
// Weights are [NOut, NIn].
type Dense struct {
	BlockBase
	NIn  int `desc:"number of input features"`
	NOut int `desc:"number of output neurons"`
}

// NewDense returns a Dense block with nIn inputs and nOut neurons,
// or an errs.ErrConfig error.
func NewDense(name string, nIn, nOut int, bp *BlockParams) (*Dense, error) {
	if nIn < 1 || nOut < 1 {
		return nil, errors.Wrapf(errs.ErrConfig, "block %s: Dense needs positive sizes, got %d -> %d", name, nIn, nOut)
	}
	ly := &Dense{NIn: nIn, NOut: nOut}
	if err := ly.init(name, "Dense", bp, []int{nOut, nIn}, nIn); err != nil {
		return nil, err
	}
	return ly, nil
}

func (ly *Dense) OutShape(in []int) ([]int, error) {
	if len(in) < 3 || prod(in[1:len(in)-1]) != ly.NIn {
		return nil, errors.Wrapf(errs.ErrShape, "block %s: input shape %v, expected [Batch, %d, Time]", ly.Nm, in, ly.NIn)
	}
	return []int{in[0], ly.NOut, in[len(in)-1]}, nil
}

func (ly *Dense) Forward(in *etensor.Float32, st *neuron.State) (*etensor.Float32, *neuron.State, error) {
	ly.drop()
	oshp, err := ly.OutShape(in.Shapes())
	if err != nil {
		return nil, nil, err
	}
	steps, err := ly.checkSteps(in.Shapes())
	if err != nil {
		return nil, nil, err
	}
	nb := oshp[0]
	ni, no := ly.NIn, ly.NOut
	ly.quantWts()
	cur := make([]float32, nb*no*steps)
	for b := 0; b < nb; b++ {
		for o := 0; o < no; o++ {
			co := cur[(b*no+o)*steps : (b*no+o+1)*steps]
			wts := ly.wq[o*ni : (o+1)*ni]
			for i, w := range wts {
				if w == 0 {
					continue
				}
				xi := in.Values[(b*ni+i)*steps : (b*ni+i+1)*steps]
				for t, x := range xi {
					co[t] += w * x
				}
			}
		}
	}
	return ly.fire(in, cur, oshp, st)
}

func (ly *Dense) Backward(grad *etensor.Float32) (*etensor.Float32, error) {
	dcur, err := ly.unfire(grad)
	if err != nil {
		return nil, err
	}
	defer ly.release()
	steps := ly.outShp[len(ly.outShp)-1]
	nb := ly.outShp[0]
	ni, no := ly.NIn, ly.NOut
	dwq := make([]float32, len(ly.wq))
	din := NewTensor(ly.inShp)
	for b := 0; b < nb; b++ {
		for o := 0; o < no; o++ {
			dco := dcur[(b*no+o)*steps : (b*no+o+1)*steps]
			for i := 0; i < ni; i++ {
				xi := ly.in[(b*ni+i)*steps : (b*ni+i+1)*steps]
				di := din.Values[(b*ni+i)*steps : (b*ni+i+1)*steps]
				w := ly.wq[o*ni+i]
				var dw float32
				for t, dc := range dco {
					dw += dc * xi[t]
					di[t] += w * dc
				}
				dwq[o*ni+i] += dw
			}
		}
	}
	ly.WtQ.Backward(dwq, dwq)
	for i, dw := range dwq {
		ly.Wts.DWt[i] += dw
	}
	return din, nil
}
