// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package slayer provides trainable spiking layer blocks and the Network that
chains them, built on the SLAYER temporal credit assignment core.

A Block composes a synaptic transform (Dense or Conv), optional
quantization of weights and synaptic current, and leaky integrate-and-fire
neuron dynamics.  Spike tensors are etensor.Float32 values with time as
the last dimension: [Batch, Neurons, Time] for Dense and
[Batch, Chans, Y, X, Time] for Conv.

Each Block follows a strict forward / backward contract: Forward caches the
context that exactly one subsequent Backward consumes.  Backward
accumulates weight gradients into the DWt of each Param, which the
training loop applies with WtFmDWt (or its own optimizer).

No goroutines are started anywhere in this package, and nothing random
happens outside InitWts, so repeated Forward calls on frozen weights are
bit-identical.
*/
package slayer
