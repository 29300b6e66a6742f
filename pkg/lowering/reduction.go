// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lowering

// Reduction selects how per-element losses are combined.
//
// The numeric values are stable and match the usual deep learning frameworks convention: they are used
// in node hashes.
type Reduction int

//go:generate go tool enumer -type=Reduction -trimprefix=Reduction -transform=snake -output=gen_reduction_enumer.go reduction.go

const (
	// ReductionNone keeps one loss per (non-class) element: the loss has the shape of the labels.
	ReductionNone Reduction = iota

	// ReductionMean divides the sum of the losses by the total weight of the non-ignored elements.
	ReductionMean

	// ReductionSum sums all the losses into a scalar.
	ReductionSum
)
