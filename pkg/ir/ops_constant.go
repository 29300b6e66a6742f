// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// MaxSizeToPrint is the maximum size of a constant to have its values printed in its description.
const MaxSizeToPrint = 5

// ConstantOp holds a constant value, copied into the graph. See Const.
type ConstantOp struct {
	flat  any
	shape shapes.Shape
}

var _ Operator = (*ConstantOp)(nil)

// Const returns a constant value with the given flat values (a slice of a Go type with a DType) and dimensions.
// If no dimensions are given, flat must have one element and the constant is a scalar.
//
// The values are copied, so flat can be changed afterward.
func Const(g *Graph, flat any, dims ...int) Value {
	flatV := reflect.ValueOf(flat)
	if flatV.Kind() != reflect.Slice {
		exceptions.Panicf("Const: flat must be a slice, got %T", flat)
	}
	dtype := dtypes.FromGoType(flatV.Type().Elem())
	if dtype == dtypes.InvalidDType {
		exceptions.Panicf("Const: flat of type %T doesn't have a corresponding DType", flat)
	}
	shape := shapes.Make(dtype, dims...)
	if shape.Size() != flatV.Len() {
		exceptions.Panicf("Const: flat has %d elements, but shape %s requires %d", flatV.Len(), shape, shape.Size())
	}
	flatCopy := reflect.MakeSlice(flatV.Type(), flatV.Len(), flatV.Len())
	reflect.Copy(flatCopy, flatV)
	return g.AddNode(&ConstantOp{flat: flatCopy.Interface(), shape: shape}).Value()
}

// Flat returns the values of the constant. It shouldn't be modified.
func (op *ConstantOp) Flat() any { return op.flat }

func (op *ConstantOp) Kind() OpKind { return OpKindConstant }
func (op *ConstantOp) Arity() Arity { return Arity{} }
func (op *ConstantOp) Operands() []Value { return nil }

// Hash of the constant: only the shape is used, the values are compared by EqualParams.
func (op *ConstantOp) Hash() Hash { return MHash(OpKindConstant, op.shape) }

func (op *ConstantOp) EqualParams(other Operator) bool {
	o, ok := other.(*ConstantOp)
	return ok && o.shape.Equal(op.shape) && equalFlat(o.flat, op.flat)
}

// equalFlat compares floats by their bits: -0 and +0 are different constants, and NaNs with the same bits are equal.
func equalFlat(a, b any) bool {
	switch aFlat := a.(type) {
	case []float32:
		bFlat, ok := b.([]float32)
		return ok && slices.EqualFunc(aFlat, bFlat, func(x, y float32) bool { return math.Float32bits(x) == math.Float32bits(y) })
	case []float64:
		bFlat, ok := b.([]float64)
		return ok && slices.EqualFunc(aFlat, bFlat, func(x, y float64) bool { return math.Float64bits(x) == math.Float64bits(y) })
	}
	return reflect.DeepEqual(a, b)
}

func (op *ConstantOp) OutputShapes(_ backends.Backend) ([]shapes.Shape, error) {
	return []shapes.Shape{op.shape}, nil
}

func (op *ConstantOp) WithOperands(operands []Value) (Operator, error) {
	if len(operands) != 0 {
		return nil, errors.Wrapf(ErrArity, "Constant takes no operands, got %d", len(operands))
	}
	return op, nil
}

func (op *ConstantOp) Lower(ctx *LoweringContext, node *Node) error {
	constant, err := ctx.Builder().Constant(op.flat, op.shape.Dimensions...)
	if err != nil {
		return err
	}
	ctx.AddResult(node, constant)
	return nil
}

func (op *ConstantOp) String() string {
	if op.shape.Size() <= MaxSizeToPrint {
		return fmt.Sprintf("Constant(%v)", op.flat)
	}
	return fmt.Sprintf("Constant(%s)", op.shape)
}
