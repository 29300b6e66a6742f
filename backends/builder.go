// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"github.com/gomlx/irgraph/pkg/core/shapes"
)

// Op represents the output of an operation, during the computation graph building time.
//
// It is opaque from the IR perspective: it passes Op as input to the other methods.
type Op any

// Builder defines the set of ops to support building a computation.
// It is the sub-interface of Backend.
//
// A Builder is also what shape inference uses: building a throw-away computation on "Parameter" placeholders
// and reading the resulting OpShape tells the output shape of any lowering, without touching data.
type Builder interface {
	// Compile the computation built. This immediately invalidates the Builder and returns an Executable that
	// can now be used to run the computation.
	//
	// It is given the list of outputs.
	Compile(outputs ...Op) (Executable, error)

	// Name of the computation being built.
	Name() string

	// OpShape returns the shape of a computation Op.
	// Notice this is not an operation and doesn't change the graph being built.
	OpShape(op Op) (shapes.Shape, error)

	// Parameter creates an input parameter for the computation.
	// During execution of a compiled computation (returned by Builder.Compile) this value will need to be fed
	// in the same order it is created.
	//
	// Parameters carry only a shape, so they also serve as the shape-only placeholders for shape inference.
	Parameter(name string, shape shapes.Shape) (Op, error)

	// Constant creates a constant in the graph with the given flat values, and the shape defined by dims.
	//
	// The flat value must be a slice of a basic type supported -- that can be converted to a DType.
	// The value is copied into the graph.
	Constant(flat any, dims ...int) (Op, error)

	// Finalize releases the resources of a Builder that is not going to be compiled.
	// It's safe to call it more than once, or after Compile.
	Finalize()

	// StandardOps include all other standard math operations.
	StandardOps
}
