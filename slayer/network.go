// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slayer

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/emer/emergent/v2/erand"
	"github.com/emer/emergent/v2/timer"
	"github.com/emer/emergent/v2/weights"
	"github.com/emer/etable/v2/etensor"
	"github.com/goki/ki/indent"
	"github.com/goki/mat32"
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
	"github.com/emer/slayer/neuron"
)

// Network is a feedforward chain of spiking blocks trained with SLAYER
// credit assignment.  It owns no goroutines: Forward and Backward run
// to completion on the calling goroutine, in strict order.
type Network struct {
	Nm       string                 `desc:"overall name of network"`
	Layers   []Block                `desc:"blocks, in forward order"`
	InShape  []int                  `desc:"input shape the network was built for, including batch and time"`
	LayMap   map[string]Block       `view:"-" desc:"map of name to block"`
	FunTimes map[string]*timer.Time `view:"-" desc:"timers for each major function (step of processing)"`
}

// NewNetwork returns a new empty network
func NewNetwork(name string) *Network {
	nt := &Network{Nm: name}
	nt.LayMap = make(map[string]Block)
	nt.FunTimes = make(map[string]*timer.Time)
	return nt
}

func (nt *Network) Name() string { return nt.Nm }

// AddLayer appends ly to the end of the chain
func (nt *Network) AddLayer(ly Block) Block {
	nt.Layers = append(nt.Layers, ly)
	nt.LayMap[ly.Name()] = ly
	return ly
}

// LayerByName returns block of given name, nil if not found
func (nt *Network) LayerByName(name string) Block {
	return nt.LayMap[name]
}

// LayerByNameTry returns block of given name, or an error if not found
func (nt *Network) LayerByNameTry(name string) (Block, error) {
	ly, ok := nt.LayMap[name]
	if !ok {
		return nil, fmt.Errorf("Layer named: %v not found in Network: %v", name, nt.Nm)
	}
	return ly, nil
}

// Build checks that the blocks chain for given input shape
// (including batch and time) and records it.
func (nt *Network) Build(inShape []int) error {
	if len(nt.Layers) == 0 {
		return errors.Wrapf(errs.ErrConfig, "network %s: no layers", nt.Nm)
	}
	shp := inShape
	for _, ly := range nt.Layers {
		osh, err := ly.OutShape(shp)
		if err != nil {
			return errors.Wrapf(errs.ErrConfig, "network %s: %v", nt.Nm, err)
		}
		shp = osh
	}
	nt.InShape = append([]int(nil), inShape...)
	return nil
}

// OutShape returns the output shape of the network for given input shape
func (nt *Network) OutShape(inShape []int) ([]int, error) {
	shp := inShape
	for _, ly := range nt.Layers {
		osh, err := ly.OutShape(shp)
		if err != nil {
			return nil, err
		}
		shp = osh
	}
	return shp, nil
}

// Forward runs all blocks in order.  sts holds the membrane state to start
// each block from (nil, or a nil entry = fresh); the returned states can be
// passed to the next Forward to continue a longer sequence.
func (nt *Network) Forward(in *etensor.Float32, sts []*neuron.State) (*etensor.Float32, []*neuron.State, error) {
	if sts != nil && len(sts) != len(nt.Layers) {
		nt.dropCtxts()
		return nil, nil, errors.Wrapf(errs.ErrShape, "network %s: %d states for %d layers", nt.Nm, len(sts), len(nt.Layers))
	}
	nt.FunTimerStart("Forward")
	defer nt.FunTimerStop("Forward")
	nsts := make([]*neuron.State, len(nt.Layers))
	x := in
	for li, ly := range nt.Layers {
		var st *neuron.State
		if sts != nil {
			st = sts[li]
		}
		out, nst, err := ly.Forward(x, st)
		if err != nil {
			nt.dropCtxts()
			return nil, nil, err
		}
		nsts[li] = nst
		x = out
	}
	return x, nsts, nil
}

// dropCtxts invalidates the forward context of every block
func (nt *Network) dropCtxts() {
	for _, ly := range nt.Layers {
		ly.AsBase().drop()
	}
}

// Backward runs all blocks in reverse order, consuming the contexts of
// the last Forward.  Weight gradients accumulate into DWt.
func (nt *Network) Backward(grad *etensor.Float32) (*etensor.Float32, error) {
	nt.FunTimerStart("Backward")
	defer nt.FunTimerStop("Backward")
	g := grad
	for li := len(nt.Layers) - 1; li >= 0; li-- {
		dx, err := nt.Layers[li].Backward(g)
		if err != nil {
			return nil, err
		}
		g = dx
	}
	return g, nil
}

// WtFmDWt applies plain gradient descent with learning rate lrate
// and zeroes the gradients.
func (nt *Network) WtFmDWt(lrate float32) {
	nt.FunTimerStart("WtFmDWt")
	for _, ly := range nt.Layers {
		for _, pm := range ly.Params() {
			for i, dw := range pm.DWt {
				pm.Wt[i] -= lrate * dw
			}
			pm.ZeroDWt()
		}
	}
	nt.FunTimerStop("WtFmDWt")
}

// ZeroDWt clears all accumulated gradients
func (nt *Network) ZeroDWt() {
	for _, ly := range nt.Layers {
		for _, pm := range ly.Params() {
			pm.ZeroDWt()
		}
	}
}

// InitWts initializes all weights from a generator seeded with seed.
// The same seed always gives the same weights.
func (nt *Network) InitWts(seed int64) {
	rnd := erand.NewSysRand(seed)
	for _, ly := range nt.Layers {
		ly.InitWts(rnd)
	}
}

// CheckFinite returns an errs.ErrUnstable error naming the first
// parameter holding a NaN or Inf weight or gradient.
func (nt *Network) CheckFinite() error {
	for _, ly := range nt.Layers {
		for _, pm := range ly.Params() {
			for i := range pm.Wt {
				if !finite(pm.Wt[i]) || !finite(pm.DWt[i]) {
					return errors.Wrapf(errs.ErrUnstable, "network %s: layer %s param %s index %d: wt %v dwt %v", nt.Nm, ly.Name(), pm.Name, i, pm.Wt[i], pm.DWt[i])
				}
			}
		}
	}
	return nil
}

func finite(v float32) bool {
	return !mat32.IsNaN(v) && !mat32.IsInf(v, 0)
}

// Export returns the discretized view of every block, in order
func (nt *Network) Export() []*Export {
	exs := make([]*Export, len(nt.Layers))
	for li, ly := range nt.Layers {
		exs[li] = ly.Export()
	}
	return exs
}

// SizeReport returns a string reporting the size of each block
// in terms of weights and memory.
func (nt *Network) SizeReport() string {
	var b strings.Builder
	nwts := 0
	wtMem := 0
	for _, ly := range nt.Layers {
		nw := 0
		for _, pm := range ly.Params() {
			nw += len(pm.Wt)
		}
		mem := nw * 4 * 2 // Wt + DWt
		nwts += nw
		wtMem += mem
		bb := ly.AsBase()
		fmt.Fprintf(&b, "%14s:\t %s\t Wts: %d\t WtMem: %v\t Kernel: %d\n", ly.Name(), bb.Kind, nw, (datasize.ByteSize)(mem).HumanReadable(), bb.Neur.KernLength())
	}
	fmt.Fprintf(&b, "\n%14s:\t Wts: %d\t WtMem: %v\n", nt.Nm, nwts, (datasize.ByteSize)(wtMem).HumanReadable())
	return b.String()
}

// RateReport returns a string with the average and max firing rate of
// each block in the last Forward.
func (nt *Network) RateReport() string {
	var b strings.Builder
	for _, ly := range nt.Layers {
		rt := ly.Stats()
		fmt.Fprintf(&b, "%14s:\t Avg: %7.4f\t Max: %7.4f\n", ly.Name(), rt.Avg, rt.Max)
	}
	return b.String()
}

// TimerReport reports the amount of time spent in each function
func (nt *Network) TimerReport() {
	fmt.Printf("TimerReport: %v\n", nt.Nm)
	fmt.Printf("\t%13s \t%7s\t%7s\n", "Function Name", "Secs", "Pct")
	fnms := make([]string, 0, len(nt.FunTimes))
	for k := range nt.FunTimes {
		fnms = append(fnms, k)
	}
	sort.Strings(fnms)
	pcts := make([]float64, len(fnms))
	tot := 0.0
	for i, fn := range fnms {
		pcts[i] = nt.FunTimes[fn].TotalSecs()
		tot += pcts[i]
	}
	for i, fn := range fnms {
		fmt.Printf("\t%13s \t%7.3f\t%7.1f\n", fn, pcts[i], 100*(pcts[i]/tot))
	}
	fmt.Printf("\t%13s \t%7.3f\n", "Total", tot)
}

// FunTimerStart starts function timer for given function name -- ensures creation of timer
func (nt *Network) FunTimerStart(fun string) {
	if nt.FunTimes == nil {
		nt.FunTimes = make(map[string]*timer.Time)
	}
	ft, ok := nt.FunTimes[fun]
	if !ok {
		ft = &timer.Time{}
		nt.FunTimes[fun] = ft
	}
	ft.Start()
}

// FunTimerStop stops function timer -- timer must already exist
func (nt *Network) FunTimerStop(fun string) {
	ft := nt.FunTimes[fun]
	ft.Stop()
}

// errWriter keeps the first error of a sequence of writes
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(b []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(b)
	ew.err = err
	return n, err
}

// WriteWtsJSON writes the weights of each block in the emergent weights
// JSON format: one projection per block, from the previous block (or
// "Input"), with one receiver entry per output neuron (Dense) or output
// channel (Conv).  Values are written with enough digits to read back
// bit-identical.  Returns the first write error.
func (nt *Network) WriteWtsJSON(w io.Writer) error {
	ew := &errWriter{w: w}
	w = ew
	depth := 0
	w.Write([]byte("{\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"Network\": %q,\n", nt.Nm)))
	w.Write(indent.TabBytes(depth))
	nl := len(nt.Layers)
	if nl == 0 {
		w.Write([]byte("\"Layers\": null\n"))
	} else {
		w.Write([]byte("\"Layers\": [\n"))
		depth++
		from := "Input"
		for li, ly := range nt.Layers {
			writeLayWts(w, ly, from, depth)
			if li == nl-1 {
				w.Write([]byte("\n"))
			} else {
				w.Write([]byte(",\n"))
			}
			from = ly.Name()
		}
		depth--
		w.Write(indent.TabBytes(depth))
		w.Write([]byte("]\n"))
	}
	w.Write([]byte("}\n"))
	return ew.err
}

// writeLayWts writes one block, leaving it unterminated
func writeLayWts(w io.Writer, ly Block, from string, depth int) {
	bb := ly.AsBase()
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("{\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"Layer\": %q,\n", ly.Name())))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"MetaData\": {\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"Kind\": %q,\n", bb.Kind)))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"Shape\": \"%v\"\n", bb.Wts.Shape)))
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("},\n"))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"Prjns\": [\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("{\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"From\": %q,\n", from)))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"MetaData\": {\n"))
	depth++
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"Bits\": \"%d\",\n", bb.WtQ.Bits)))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte(fmt.Sprintf("\"Step\": \"%g\"\n", bb.WtQ.Step)))
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("},\n"))
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("\"Rs\": [\n"))
	depth++
	nr := bb.Wts.Shape[0]
	nc := len(bb.Wts.Wt) / nr
	for ri := 0; ri < nr; ri++ {
		w.Write(indent.TabBytes(depth))
		w.Write([]byte("{\n"))
		depth++
		w.Write(indent.TabBytes(depth))
		w.Write([]byte(fmt.Sprintf("\"Ri\": %v,\n", ri)))
		w.Write(indent.TabBytes(depth))
		w.Write([]byte(fmt.Sprintf("\"N\": %v,\n", nc)))
		w.Write(indent.TabBytes(depth))
		w.Write([]byte("\"Si\": [ "))
		for ci := 0; ci < nc; ci++ {
			w.Write([]byte(strconv.Itoa(ci)))
			if ci == nc-1 {
				w.Write([]byte(" "))
			} else {
				w.Write([]byte(", "))
			}
		}
		w.Write([]byte("],\n"))
		w.Write(indent.TabBytes(depth))
		w.Write([]byte("\"Wt\": [ "))
		for ci, wt := range bb.Wts.Wt[ri*nc : (ri+1)*nc] {
			w.Write([]byte(strconv.FormatFloat(float64(wt), 'g', -1, 32)))
			if ci == nc-1 {
				w.Write([]byte(" "))
			} else {
				w.Write([]byte(", "))
			}
		}
		w.Write([]byte("]\n"))
		depth--
		w.Write(indent.TabBytes(depth))
		if ri == nr-1 {
			w.Write([]byte("}\n"))
		} else {
			w.Write([]byte("},\n"))
		}
	}
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("]\n"))
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("}\n"))
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("]\n"))
	depth--
	w.Write(indent.TabBytes(depth))
	w.Write([]byte("}"))
}

// ReadWtsJSON reads network weights in the emergent weights JSON format,
// as written by WriteWtsJSON, decoded with weights.NetReadJSON and then
// applied with SetWts.
func (nt *Network) ReadWtsJSON(r io.Reader) error {
	nw, err := weights.NetReadJSON(r)
	if err != nil {
		return err // note: already logged
	}
	err = nt.SetWts(nw)
	if err != nil {
		log.Println(err)
	}
	return err
}

// SetWts sets the weights for this network from weights.Network decoded
// values, and zeroes all gradients.  Every layer must match a block of
// the same name, with one projection whose receivers and senders are
// within the block's weight shape; nothing is set unless all layers match.
func (nt *Network) SetWts(nw *weights.Network) error {
	for li := range nw.Layers {
		lw := &nw.Layers[li]
		ly, err := nt.LayerByNameTry(lw.Layer)
		if err != nil {
			return errors.Wrap(errs.ErrConfig, err.Error())
		}
		bb := ly.AsBase()
		if shp, ok := lw.MetaData["Shape"]; ok && shp != fmt.Sprintf("%v", bb.Wts.Shape) {
			return errors.Wrapf(errs.ErrShape, "layer %s: weights shape %s, expected %v", lw.Layer, shp, bb.Wts.Shape)
		}
		if len(lw.Prjns) != 1 {
			return errors.Wrapf(errs.ErrShape, "layer %s: %d projections, expected 1", lw.Layer, len(lw.Prjns))
		}
		nr := bb.Wts.Shape[0]
		nc := len(bb.Wts.Wt) / nr
		for _, rw := range lw.Prjns[0].Rs {
			if rw.Ri < 0 || rw.Ri >= nr || len(rw.Si) != len(rw.Wt) {
				return errors.Wrapf(errs.ErrShape, "layer %s: receiver %d with %d / %d values, expected %d receivers", lw.Layer, rw.Ri, len(rw.Si), len(rw.Wt), nr)
			}
			for _, si := range rw.Si {
				if si < 0 || si >= nc {
					return errors.Wrapf(errs.ErrShape, "layer %s: receiver %d sender %d, expected < %d", lw.Layer, rw.Ri, si, nc)
				}
			}
		}
	}
	for li := range nw.Layers {
		lw := &nw.Layers[li]
		bb := nt.LayMap[lw.Layer].AsBase()
		nc := len(bb.Wts.Wt) / bb.Wts.Shape[0]
		for _, rw := range lw.Prjns[0].Rs {
			for i, si := range rw.Si {
				bb.Wts.Wt[rw.Ri*nc+si] = rw.Wt[i]
			}
		}
	}
	nt.ZeroDWt()
	return nil
}
