// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package slayer is the overall repository for the SLAYER temporal credit
assignment core for spiking neural networks, implemented in the Go language.

This top-level of the repository has no functional code -- everything is organized
into the following sub-packages, from the bottom up:

* errs: the error sentinels shared by all packages.

* spike: the hard threshold spike function, its surrogate derivative (probability
density function) and the single-use context that carries membrane potentials
from the forward to the backward pass.

* kernel: finite temporal kernels, exponential decay and alpha shapes.

* credit: the temporal credit assignment engine, which correlates per-step
surrogate gradients with future steps through a kernel, truncated at the
sequence end and (for hard reset) at the next spike.

* quant: fixed-point quantization with the straight-through estimator.

* neuron: leaky integrate-and-fire dynamics with hard or subtractive reset,
and its backward pass through the kernel or the exact recurrence.

* slayer: Dense and Conv spiking blocks, the Network that chains them,
spike count loss, TOML configuration, weight checkpoints and export of the
discretized parameters for neuromorphic deployment.

* examples: runnable programs: bench trains a network of Dense blocks for
benchmarking, kernplot tabulates kernels and surrogates.
*/
package slayer
