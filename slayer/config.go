// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slayer

import (
	"github.com/BurntSushi/toml"
	"github.com/goki/ki/ints"
	"github.com/pkg/errors"

	"github.com/emer/slayer/errs"
	"github.com/emer/slayer/kernel"
)

// Config describes a network in a TOML file:
//
//	Name = "digits"
//	Steps = 20
//	Seed = 1
//	InShape = [1, 2, 8, 8, 20]
//
//	[[Layers]]
//	Name = "conv1"
//	Type = "Conv"
//	Out = 4
//	Size = 3
//	Pad = 1
//
//	[[Layers]]
//	Name = "out"
//	Type = "Dense"
//	Out = 10
//	Reset = "SubReset"
//
// Zero values take the defaults of the corresponding params, except that
// an unset KernLen is clipped to Steps.
type Config struct {
	Name    string
	Steps   int
	Seed    int64
	InShape []int
	Layers  []LayerConfig
}

// LayerConfig configures one block
type LayerConfig struct {
	Name string
	Type string

	// Out is the number of neurons (Dense) or output channels (Conv)
	Out    int
	Size   int
	Stride int
	Pad    int

	Tau       float32
	Thr       float32
	Reset     string
	Back      string
	Surrogate string
	SurTau    float32
	KernLen   int
	KernShape string
	WtBits    int
	WtStep    float32
	CurBits   int
	CurStep   float32

	// WtScale is the initial weight range, before the 1 / sqrt(fan-in) scaling
	WtScale float32
}

// ParseConfig decodes a TOML network config.  Unknown keys are an error.
func ParseConfig(data string) (*Config, error) {
	cf := &Config{}
	md, err := toml.Decode(data, cf)
	return cf, checkDecode(md, err)
}

// LoadConfig decodes a TOML network config file
func LoadConfig(path string) (*Config, error) {
	cf := &Config{}
	md, err := toml.DecodeFile(path, cf)
	return cf, checkDecode(md, err)
}

func checkDecode(md toml.MetaData, err error) error {
	if err != nil {
		return errors.Wrap(errs.ErrConfig, err.Error())
	}
	if und := md.Undecoded(); len(und) > 0 {
		return errors.Wrapf(errs.ErrConfig, "unknown config keys: %v", und)
	}
	return nil
}

// Params returns the block params for this layer, starting from defaults
func (lc *LayerConfig) Params(steps int) (*BlockParams, error) {
	bp := &BlockParams{}
	bp.Defaults()
	bp.Steps = steps
	np := &bp.Neuron
	if lc.Tau != 0 {
		np.Tau = lc.Tau
	}
	if lc.Thr != 0 {
		np.Spike.Thr = lc.Thr
	}
	if lc.SurTau != 0 {
		np.Spike.Tau = lc.SurTau
	}
	if lc.KernLen != 0 {
		np.KernLen = lc.KernLen
	} else if steps > 0 {
		np.KernLen = ints.MinInt(np.KernLen, steps)
	}
	if lc.Reset != "" {
		if err := np.Reset.FromString(lc.Reset); err != nil {
			return nil, errors.Wrapf(errs.ErrConfig, "layer %s: %v", lc.Name, err)
		}
	}
	if lc.Back != "" {
		if err := np.Back.FromString(lc.Back); err != nil {
			return nil, errors.Wrapf(errs.ErrConfig, "layer %s: %v", lc.Name, err)
		}
	}
	if lc.Surrogate != "" {
		if err := np.Spike.Shape.FromString(lc.Surrogate); err != nil {
			return nil, errors.Wrapf(errs.ErrConfig, "layer %s: %v", lc.Name, err)
		}
	}
	if lc.KernShape != "" {
		var ks kernel.Shape
		if err := ks.FromString(lc.KernShape); err != nil {
			return nil, errors.Wrapf(errs.ErrConfig, "layer %s: %v", lc.Name, err)
		}
		np.Custom = true
		np.Kern.Shape = ks
		np.Kern.Tau = np.Tau
		np.Kern.Len = np.KernLen
	}
	if lc.WtBits != 0 {
		bp.WtQ.Bits = lc.WtBits
	}
	if lc.WtStep != 0 {
		bp.WtQ.Step = lc.WtStep
	}
	if lc.CurBits != 0 {
		bp.CurQ.Bits = lc.CurBits
	}
	if lc.CurStep != 0 {
		bp.CurQ.Step = lc.CurStep
	}
	if lc.WtScale != 0 {
		bp.WtInit.Var = float64(lc.WtScale)
	}
	bp.Update()
	return bp, nil
}

// Build constructs the network, checks that the layers chain for InShape
// and initializes the weights from Seed.
func (cf *Config) Build() (*Network, error) {
	if len(cf.InShape) < 3 {
		return nil, errors.Wrapf(errs.ErrConfig, "network %s: InShape %v needs batch, features and time", cf.Name, cf.InShape)
	}
	if cf.Steps > 0 && cf.InShape[len(cf.InShape)-1] != cf.Steps {
		return nil, errors.Wrapf(errs.ErrConfig, "network %s: InShape %v does not end in Steps %d", cf.Name, cf.InShape, cf.Steps)
	}
	nt := NewNetwork(cf.Name)
	shp := cf.InShape
	for li := range cf.Layers {
		lc := &cf.Layers[li]
		if lc.Name == "" || nt.LayerByName(lc.Name) != nil {
			return nil, errors.Wrapf(errs.ErrConfig, "network %s: layer %d has empty or duplicate name %q", cf.Name, li, lc.Name)
		}
		bp, err := lc.Params(cf.Steps)
		if err != nil {
			return nil, err
		}
		var ly Block
		switch lc.Type {
		case "Dense":
			ly, err = NewDense(lc.Name, prod(shp[1:len(shp)-1]), lc.Out, bp)
		case "Conv":
			if len(shp) != 5 {
				return nil, errors.Wrapf(errs.ErrConfig, "layer %s: Conv needs [Batch, Chans, Y, X, Time] input, got %v", lc.Name, shp)
			}
			cg := ConvGeom{}
			cg.Defaults()
			cg.InChans = shp[1]
			cg.OutChans = lc.Out
			if lc.Size != 0 {
				cg.Size = lc.Size
			}
			if lc.Stride != 0 {
				cg.Stride = lc.Stride
			}
			cg.Pad = lc.Pad
			ly, err = NewConv(lc.Name, cg, bp)
		default:
			return nil, errors.Wrapf(errs.ErrConfig, "layer %s: unknown Type %q", lc.Name, lc.Type)
		}
		if err != nil {
			return nil, err
		}
		nt.AddLayer(ly)
		if shp, err = ly.OutShape(shp); err != nil {
			return nil, errors.Wrapf(errs.ErrConfig, "network %s: %v", cf.Name, err)
		}
	}
	if err := nt.Build(cf.InShape); err != nil {
		return nil, err
	}
	nt.InitWts(cf.Seed)
	return nt, nil
}
