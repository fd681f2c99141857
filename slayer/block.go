// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slayer

import (
	"math"

	"github.com/emer/emergent/v2/erand"
	"github.com/emer/etable/v2/etensor"
	"github.com/emer/etable/v2/minmax"
	"github.com/goki/mat32"
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
	"github.com/emer/slayer/neuron"
	"github.com/emer/slayer/quant"
)

// Block is a trainable spiking layer: synaptic transform, quantization and
// neuron dynamics behind one forward / backward contract.
type Block interface {
	// Name returns the name of this block
	Name() string

	// AsBase returns the shared block state
	AsBase() *BlockBase

	// OutShape returns the output shape for given input shape,
	// or an errs.ErrShape error if the input does not fit.
	OutShape(in []int) ([]int, error)

	// Forward computes output spikes from input spikes, starting from
	// membrane state st (nil = fresh), and returns the new state.
	Forward(in *etensor.Float32, st *neuron.State) (*etensor.Float32, *neuron.State, error)

	// Backward consumes the context of the last Forward, accumulates weight
	// gradients and returns the gradient with respect to the input.
	Backward(grad *etensor.Float32) (*etensor.Float32, error)

	// Params returns the trainable parameters
	Params() []*Param

	// Quants returns the quantization descriptors (weights, current)
	Quants() []*quant.Descriptor

	// InitWts initializes weights from rnd and zeroes gradients
	InitWts(rnd erand.Rand)

	// Export returns the discretized view of this block for deployment
	Export() *Export

	// Stats returns the firing rate stats of the last Forward
	Stats() *minmax.AvgMax32
}

// Param is a trainable parameter with its accumulated gradient
type Param struct {
	Name  string
	Shape []int
	Wt    []float32
	DWt   []float32
	Q     *quant.Descriptor
}

func newParam(name string, shape []int, q *quant.Descriptor) Param {
	n := prod(shape)
	return Param{Name: name, Shape: shape, Wt: make([]float32, n), DWt: make([]float32, n), Q: q}
}

// ZeroDWt clears the accumulated gradient
func (pm *Param) ZeroDWt() {
	for i := range pm.DWt {
		pm.DWt[i] = 0
	}
}

// BlockParams are the configuration shared by all block types
type BlockParams struct {
	Neuron  neuron.Params    `view:"inline" desc:"neuron dynamics, spike and kernel params"`
	WtQ     quant.Descriptor `view:"inline" desc:"quantization of the synaptic weights in the forward pass"`
	CurQ    quant.Descriptor `view:"inline" desc:"quantization of the synaptic current in the forward pass -- full precision by default"`
	Steps   int              `min:"0" desc:"expected sequence length -- 0 = any; when set, inputs of other lengths are rejected and the kernel support may not exceed it"`
	WtInit  erand.RndParams  `view:"inline" desc:"initial weight distribution -- Var is divided by sqrt(fan-in) for each block"`
}

func (bp *BlockParams) Defaults() {
	bp.Neuron.Defaults()
	bp.WtQ.Defaults()
	bp.CurQ.Defaults()
	bp.CurQ.Bits = quant.FullBits
	bp.CurQ.Update()
	bp.Steps = 0
	bp.WtInit.Dist = erand.Uniform
	bp.WtInit.Mean = 0
	bp.WtInit.Var = 1
}

// Update must be called after any changes to parameters
func (bp *BlockParams) Update() {
	bp.Neuron.Update()
	bp.WtQ.Update()
	bp.CurQ.Update()
}

// BlockBase holds what every block type shares: neuron dynamics,
// quantization, weights and the single-use forward context.
type BlockBase struct {
	Nm      string           `desc:"name of the block"`
	Kind    string           `desc:"type of synaptic transform"`
	Steps   int              `desc:"expected sequence length, 0 = any"`
	FanIn   int              `desc:"number of inputs to each neuron"`
	WtInit  erand.RndParams  `desc:"initial weight distribution, Var scaled for FanIn"`
	Neur    *neuron.LIF      `desc:"neuron dynamics, shared read-only across passes"`
	WtQ     quant.Descriptor `desc:"weight quantization"`
	CurQ    quant.Descriptor `desc:"synaptic current quantization"`
	Wts     Param            `desc:"synaptic weights and their gradient"`

	Rate minmax.AvgMax32  `desc:"average and max firing rate (spikes / step) over neuron rows in the last Forward"`
	Vm   *etensor.Float32 `desc:"membrane potentials of the last Forward, same shape as the output"`

	inShp  []int
	outShp []int
	in     []float32
	wq     []float32
	cx     *neuron.Ctxt
}

// init validates bp and builds the neuron dynamics.  All configuration
// errors surface here, at construction time.
func (bb *BlockBase) init(name, kind string, bp *BlockParams, wshape []int, fanIn int) error {
	bp.Update()
	if err := bp.WtQ.Validate(); err != nil {
		return errors.Wrapf(err, "block %s: weight quantization", name)
	}
	if err := bp.CurQ.Validate(); err != nil {
		return errors.Wrapf(err, "block %s: current quantization", name)
	}
	if bp.Steps < 0 {
		return errors.Wrapf(errs.ErrConfig, "block %s: negative Steps %d", name, bp.Steps)
	}
	if !(bp.WtInit.Var >= 0) || math.IsInf(bp.WtInit.Var, 0) || math.IsNaN(bp.WtInit.Mean) || math.IsInf(bp.WtInit.Mean, 0) {
		return errors.Wrapf(errs.ErrConfig, "block %s: WtInit Mean and Var must be finite, Var non-negative, got %v, %v", name, bp.WtInit.Mean, bp.WtInit.Var)
	}
	nr, err := neuron.New(bp.Neuron)
	if err != nil {
		return errors.Wrapf(err, "block %s", name)
	}
	if bp.Steps > 0 && nr.KernLength() > bp.Steps {
		return errors.Wrapf(errs.ErrConfig, "block %s: kernel length %d exceeds sequence length %d", name, nr.KernLength(), bp.Steps)
	}
	bb.Nm = name
	bb.Kind = kind
	bb.Steps = bp.Steps
	bb.FanIn = fanIn
	bb.WtInit = bp.WtInit
	bb.WtInit.Var /= math.Sqrt(float64(fanIn))
	bb.Neur = nr
	bb.WtQ = bp.WtQ
	bb.CurQ = bp.CurQ
	bb.Wts = newParam("Wts", wshape, &bb.WtQ)
	bb.wq = make([]float32, len(bb.Wts.Wt))
	return nil
}

func (bb *BlockBase) Name() string       { return bb.Nm }
func (bb *BlockBase) AsBase() *BlockBase { return bb }
func (bb *BlockBase) Params() []*Param   { return []*Param{&bb.Wts} }

func (bb *BlockBase) Stats() *minmax.AvgMax32 { return &bb.Rate }
func (bb *BlockBase) Quants() []*quant.Descriptor {
	return []*quant.Descriptor{&bb.WtQ, &bb.CurQ}
}

// InitWts draws weights from WtInit using rnd
func (bb *BlockBase) InitWts(rnd erand.Rand) {
	for i := range bb.Wts.Wt {
		bb.Wts.Wt[i] = float32(bb.WtInit.Gen(-1, rnd))
	}
	bb.Wts.ZeroDWt()
}

// checkSteps verifies the time dimension of in, returning it
func (bb *BlockBase) checkSteps(shp []int) (int, error) {
	steps := shp[len(shp)-1]
	if steps < 1 || (bb.Steps > 0 && steps != bb.Steps) {
		return 0, errors.Wrapf(errs.ErrShape, "block %s: input shape %v has %d steps, expected %d", bb.Nm, shp, steps, bb.Steps)
	}
	return steps, nil
}

// quantWts fills the quantized weights used by the forward pass
func (bb *BlockBase) quantWts() {
	bb.WtQ.Quantize(bb.Wts.Wt, bb.wq)
}

// fire quantizes the synaptic current, runs the neuron dynamics, records
// Vm and rate stats, and caches the context.  The forward input is
// retained by reference until Backward.
func (bb *BlockBase) fire(in *etensor.Float32, cur []float32, outShp []int, st *neuron.State) (*etensor.Float32, *neuron.State, error) {
	steps := outShp[len(outShp)-1]
	rows := len(cur) / steps
	bb.CurQ.Quantize(cur, cur)
	spk, cx, nst, err := bb.Neur.Forward(cur, rows, steps, st)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "block %s", bb.Nm)
	}
	out := NewTensor(outShp)
	copy(out.Values, spk)
	bb.Vm = NewTensor(outShp)
	copy(bb.Vm.Values, cx.Vm())

	bb.Rate.Init()
	for r := 0; r < rows; r++ {
		var n float32
		for _, s := range spk[r*steps : (r+1)*steps] {
			n += s
		}
		bb.Rate.UpdateVal(n/float32(steps), int32(r))
	}
	bb.Rate.CalcAvg()

	bb.inShp = append([]int(nil), in.Shapes()...)
	bb.outShp = outShp
	bb.in = in.Values
	bb.cx = cx
	return out, nst, nil
}

// unfire checks grad against the cached forward, and returns the gradient
// with respect to the (unquantized) synaptic current.
func (bb *BlockBase) unfire(grad *etensor.Float32) ([]float32, error) {
	if bb.cx == nil {
		return nil, errors.Wrapf(errs.ErrStateReuse, "block %s: Backward without a matching Forward", bb.Nm)
	}
	if !sameShape(grad.Shapes(), bb.outShp) {
		return nil, errors.Wrapf(errs.ErrShape, "block %s: grad shape %v != output shape %v", bb.Nm, grad.Shapes(), bb.outShp)
	}
	cx := bb.cx
	bb.cx = nil
	dcur, err := bb.Neur.Backward(cx, grad.Values)
	if err != nil {
		return nil, errors.Wrapf(err, "block %s", bb.Nm)
	}
	bb.CurQ.Backward(dcur, dcur)
	return dcur, nil
}

// release drops the cached forward input
func (bb *BlockBase) release() {
	bb.in = nil
}

// drop invalidates the forward context: Backward fails with
// errs.ErrStateReuse until the next successful Forward.
func (bb *BlockBase) drop() {
	bb.cx = nil
	bb.in = nil
}

// Export is the discretized view of a block that an exporter lowers to a
// neuromorphic backend: integer weight levels on the weight quantization
// grid, the threshold on the same grid, and the decay in fixed point.
type Export struct {
	Name       string
	Kind       string
	Shape      []int
	Bits       int
	WtStep     float32
	WtLevels   []int32
	ThrLevel   int32
	DecayLevel int32
	Reset      string
}

// DecayBits is the fixed-point precision of the exported membrane decay
const DecayBits = 12

// Export returns the discretized weights, threshold and decay
func (bb *BlockBase) Export() *Export {
	ex := &Export{
		Name:   bb.Nm,
		Kind:   bb.Kind,
		Shape:  append([]int(nil), bb.Wts.Shape...),
		Bits:   bb.WtQ.Bits,
		WtStep: bb.WtQ.Step,
		Reset:  bb.Neur.Reset.String(),
	}
	ex.WtLevels = make([]int32, len(bb.Wts.Wt))
	bb.WtQ.Levels(bb.Wts.Wt, ex.WtLevels)
	ex.ThrLevel = bb.WtQ.Level(bb.Neur.Spike.Thr)
	ex.DecayLevel = int32(mat32.Round(bb.Neur.Decay * (1 << DecayBits)))
	return ex
}
