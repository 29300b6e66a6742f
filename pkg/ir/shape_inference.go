// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"

	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LowerFn builds the backend ops of an operator from the backend ops of its operands, and returns the output op.
//
// The same function is used to lower a node for real (see Operator.Lower) and to infer its output shape
// (see InferShape), so both always agree.
type LowerFn func(b backends.Builder, operands []backends.Op) (backends.Op, error)

// InferShape returns the shape of the output of lowerFn for operands of the given shapes.
//
// It lowers lowerFn into a throw-away builder of the backend, with one shape-only "Parameter" placeholder per
// input shape, and reads the shape of the resulting op. No data is involved, and the builder is discarded.
//
// Errors from lowerFn are wrapped with ErrShapeIncompatible.
func InferShape(backend backends.Backend, inputShapes []shapes.Shape, lowerFn LowerFn) (shapes.Shape, error) {
	builder := backend.Builder("shape_inference_" + uuid.NewString())
	defer builder.Finalize()

	placeholders := make([]backends.Op, len(inputShapes))
	for ii, shape := range inputShapes {
		op, err := builder.Parameter(fmt.Sprintf("placeholder_%d", ii), shape)
		if err != nil {
			return shapes.Invalid(), errors.WithMessagef(err, "InferShape: creating placeholder #%d for %s", ii, shape)
		}
		placeholders[ii] = op
	}
	output, err := lowerFn(builder, placeholders)
	if err != nil {
		if !errors.Is(err, ErrShapeIncompatible) {
			err = fmt.Errorf("%w: %w", ErrShapeIncompatible, err)
		}
		return shapes.Invalid(), errors.WithMessagef(err, "InferShape(%v)", inputShapes)
	}
	shape, err := builder.OpShape(output)
	if err != nil {
		return shapes.Invalid(), errors.WithMessagef(err, "InferShape(%v): reading output shape", inputShapes)
	}
	if klog.V(2).Enabled() {
		klog.Infof("InferShape(%v) -> %s", inputShapes, shape)
	}
	return shape, nil
}
