// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slayer

import (
	"github.com/emer/etable/v2/etensor"
	"github.com/goki/ki/ints"
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
	"github.com/emer/slayer/neuron"
)

// ConvGeom is the geometry of a 2D convolution applied independently at
// every time step
type ConvGeom struct {
	InChans  int `min:"1" desc:"number of input channels"`
	OutChans int `min:"1" desc:"number of output channels"`
	Size     int `min:"1" def:"3" desc:"filter size in Y and X"`
	Stride   int `min:"1" def:"1" desc:"filter stride in Y and X"`
	Pad      int `min:"0" def:"0" desc:"zero padding on each side in Y and X"`
}

func (cg *ConvGeom) Defaults() {
	cg.Size = 3
	cg.Stride = 1
	cg.Pad = 0
}

// Out returns the output size for input size n, 0 if the filter does not fit
func (cg *ConvGeom) Out(n int) int {
	ext := n + 2*cg.Pad - cg.Size
	if ext < 0 {
		return 0
	}
	return ext/cg.Stride + 1
}

// Conv is a convolutional spiking block on [Batch, Chans, Y, X, Time]
// input.  Weights are [OutChans, InChans, Size, Size].
type Conv struct {
	BlockBase
	Geom ConvGeom `view:"inline" desc:"convolution geometry"`
}

// NewConv returns a Conv block with given geometry, or an errs.ErrConfig error
func NewConv(name string, cg ConvGeom, bp *BlockParams) (*Conv, error) {
	if cg.InChans < 1 || cg.OutChans < 1 || cg.Size < 1 || cg.Stride < 1 || cg.Pad < 0 {
		return nil, errors.Wrapf(errs.ErrConfig, "block %s: invalid Conv geometry %+v", name, cg)
	}
	ly := &Conv{Geom: cg}
	k := cg.Size
	if err := ly.init(name, "Conv", bp, []int{cg.OutChans, cg.InChans, k, k}, cg.InChans*k*k); err != nil {
		return nil, err
	}
	return ly, nil
}

func (ly *Conv) OutShape(in []int) ([]int, error) {
	if len(in) != 5 || in[1] != ly.Geom.InChans {
		return nil, errors.Wrapf(errs.ErrShape, "block %s: input shape %v, expected [Batch, %d, Y, X, Time]", ly.Nm, in, ly.Geom.InChans)
	}
	oy, ox := ly.Geom.Out(in[2]), ly.Geom.Out(in[3])
	if ints.MinInt(oy, ox) < 1 {
		return nil, errors.Wrapf(errs.ErrShape, "block %s: input shape %v smaller than filter size %d", ly.Nm, in, ly.Geom.Size)
	}
	return []int{in[0], ly.Geom.OutChans, oy, ox, in[4]}, nil
}

// convIdx iterates over all valid (output, weight, input) triples, calling
// fun with the time-row offsets of each and the weight index.
func (ly *Conv) convIdx(ishp, oshp []int, fun func(oi, wi, ii int)) {
	nb, nc, ny, nx, steps := ishp[0], ishp[1], ishp[2], ishp[3], ishp[4]
	no, oy, ox := oshp[1], oshp[2], oshp[3]
	k, sd, pd := ly.Geom.Size, ly.Geom.Stride, ly.Geom.Pad
	for b := 0; b < nb; b++ {
		for o := 0; o < no; o++ {
			for y := 0; y < oy; y++ {
				for x := 0; x < ox; x++ {
					oi := (((b*no+o)*oy+y)*ox + x) * steps
					for c := 0; c < nc; c++ {
						for ky := 0; ky < k; ky++ {
							iy := y*sd + ky - pd
							if iy < 0 || iy >= ny {
								continue
							}
							for kx := 0; kx < k; kx++ {
								ix := x*sd + kx - pd
								if ix < 0 || ix >= nx {
									continue
								}
								wi := ((o*nc+c)*k+ky)*k + kx
								ii := (((b*nc+c)*ny+iy)*nx + ix) * steps
								fun(oi, wi, ii)
							}
						}
					}
				}
			}
		}
	}
}

func (ly *Conv) Forward(in *etensor.Float32, st *neuron.State) (*etensor.Float32, *neuron.State, error) {
	ly.drop()
	ishp := in.Shapes()
	oshp, err := ly.OutShape(ishp)
	if err != nil {
		return nil, nil, err
	}
	steps, err := ly.checkSteps(ishp)
	if err != nil {
		return nil, nil, err
	}
	ly.quantWts()
	cur := make([]float32, prod(oshp))
	ly.convIdx(ishp, oshp, func(oi, wi, ii int) {
		w := ly.wq[wi]
		if w == 0 {
			return
		}
		co := cur[oi : oi+steps]
		for t, x := range in.Values[ii : ii+steps] {
			co[t] += w * x
		}
	})
	return ly.fire(in, cur, oshp, st)
}

func (ly *Conv) Backward(grad *etensor.Float32) (*etensor.Float32, error) {
	dcur, err := ly.unfire(grad)
	if err != nil {
		return nil, err
	}
	defer ly.release()
	steps := ly.outShp[4]
	dwq := make([]float32, len(ly.wq))
	din := NewTensor(ly.inShp)
	ly.convIdx(ly.inShp, ly.outShp, func(oi, wi, ii int) {
		w := ly.wq[wi]
		dco := dcur[oi : oi+steps]
		xi := ly.in[ii : ii+steps]
		di := din.Values[ii : ii+steps]
		var dw float32
		for t, dc := range dco {
			dw += dc * xi[t]
			di[t] += w * dc
		}
		dwq[wi] += dw
	})
	ly.WtQ.Backward(dwq, dwq)
	for i, dw := range dwq {
		ly.Wts.DWt[i] += dw
	}
	return din, nil
}
