// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapeinference calculates the shape resulting from primitive backend operations and validates its inputs.
//
// Backends use it when building a computation, so every Op carries its shape as soon as it is created. This is
// what makes "trial lowering" work: lowering an IR node on shape-only placeholders yields the node's output shape
// without any data.
//
// It defines a BinaryOp function for shape inference for the binary functions, using the standard
// broadcasting rules, and one function per remaining OpType.
package shapeinference

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/gomlx/irgraph/pkg/support/sets"
	"github.com/pkg/errors"
)

var (
	// NumberOperations can take any type of number as input: integers, floats, or complex numbers.
	NumberOperations = sets.MakeWith(
		backends.OpTypeMul,
		backends.OpTypeDiv,
		backends.OpTypeEqual,
		backends.OpTypeNotEqual,
	)

	// SignedNumberOperations can only take signed numbers.
	SignedNumberOperations = sets.MakeWith(
		backends.OpTypeNeg,
	)

	// StandardBinaryOperations include all operations that have two operands usually named lhs (left-hand-side) and
	// rhs (right-hand-side) and whose output has the broadcast shape of the inputs.
	StandardBinaryOperations = sets.MakeWith(
		backends.OpTypeMul,
		backends.OpTypeDiv,
	)

	// ComparisonOperations include all operations that take two inputs and returns booleans with the results of
	// a comparison.
	ComparisonOperations = sets.MakeWith(
		backends.OpTypeEqual,
		backends.OpTypeNotEqual,
	)

	// StandardUnaryOperations include all operations that have a single operand as input, and the return shape is the
	// same as the input (so no reductions).
	StandardUnaryOperations = sets.MakeWith(
		backends.OpTypeNeg,
	)
)

// isNumber returns whether the dtype is one of the numeric types (integer, float or complex).
func isNumber(dtype dtypes.DType) bool {
	return dtype.IsInt() || dtype.IsFloat() || dtype.IsComplex()
}

// BinaryOp returns the expected output shape for ops in the StandardBinaryOperations set.
//
// It returns an error if the data type (shape.DType) is invalid for the operation -- e.g.: non-matching
// dtypes, or booleans given to an arithmetic operation.
func BinaryOp(opType backends.OpType, lhsShape, rhsShape shapes.Shape) (output shapes.Shape, err error) {
	if !StandardBinaryOperations.Has(opType) {
		err = errors.Errorf("operations %s is not in the StandardBinaryOperations set, cannot process it with BinaryOp", opType)
		return
	}
	if err = checkBinaryDTypes(opType, lhsShape, rhsShape); err != nil {
		return
	}
	return broadcastShapes(opType, lhsShape, rhsShape)
}

// checkBinaryDTypes validates the data types of a binary (or comparison) operation.
func checkBinaryDTypes(opType backends.OpType, lhsShape, rhsShape shapes.Shape) error {
	if lhsShape.DType == dtypes.InvalidDType || rhsShape.DType == dtypes.InvalidDType {
		return errors.Errorf("invalid shape for %s or %s for %s", lhsShape, rhsShape, opType)
	}
	if lhsShape.DType != rhsShape.DType {
		return errors.Errorf("data types (DType) for %s must match, got %s and %s", opType, lhsShape, rhsShape)
	}
	if NumberOperations.Has(opType) && !isNumber(lhsShape.DType) {
		return errors.Errorf("numeric %s must have a number (Int32, Float32, ...) data type as input, got %s", opType, lhsShape)
	}
	return nil
}

// broadcastShapes returns the broadcast of the two shapes: either one of them is a scalar, or they have the same
// rank and each axis dimension either match or one of them is 1.
func broadcastShapes(opType backends.OpType, lhsShape, rhsShape shapes.Shape) (output shapes.Shape, err error) {
	if lhsShape.IsScalar() {
		return rhsShape.Clone(), nil
	}
	if rhsShape.IsScalar() {
		return lhsShape.Clone(), nil
	}
	if lhsShape.Rank() != rhsShape.Rank() {
		err = errors.Errorf("if operands are not scalars, their rank must match for %s, got shapes %s and %s",
			opType, lhsShape, rhsShape)
		return
	}
	output = lhsShape.Clone()
	for axis := range output.Rank() {
		lhsDim := lhsShape.Dimensions[axis]
		rhsDim := rhsShape.Dimensions[axis]
		if lhsDim != 1 && rhsDim != 1 && lhsDim != rhsDim {
			err = errors.Errorf("dimension of axis #%d doesn't match and cannot be broadcast for %s, got shapes %s and %s",
				axis, opType, lhsShape, rhsShape)
			return
		}
		output.Dimensions[axis] = max(lhsDim, rhsDim)
	}
	return
}

// ComparisonOp returns the broadcast shape with dtype set to Bool, for comparison operations (Equal, NotEqual).
func ComparisonOp(opType backends.OpType, lhsShape, rhsShape shapes.Shape) (output shapes.Shape, err error) {
	if !ComparisonOperations.Has(opType) {
		err = errors.Errorf("operation %s is not in the ComparisonOperations set, cannot process it with ComparisonOp", opType)
		return
	}
	if err = checkBinaryDTypes(opType, lhsShape, rhsShape); err != nil {
		return
	}
	output, err = broadcastShapes(opType, lhsShape, rhsShape)
	if err != nil {
		return
	}
	output.DType = dtypes.Bool
	return
}

// UnaryOp checks the validity of the data type for StandardUnaryOperations and returns either an error or
// the output shape, which is the same as the operand.
func UnaryOp(opType backends.OpType, operand shapes.Shape) (output shapes.Shape, err error) {
	if !StandardUnaryOperations.Has(opType) {
		err = errors.Errorf("operation %s is not in the StandardUnaryOperations set, cannot process it with UnaryOp", opType)
		return
	}
	if operand.DType == dtypes.InvalidDType {
		err = errors.Errorf("invalid shape %s for UnaryOp %s", operand, opType)
		return
	}
	if SignedNumberOperations.Has(opType) && (operand.DType.IsUnsigned() || !isNumber(operand.DType)) {
		err = errors.Errorf("signed UnaryOp %s must have a signed data type as input, got %s", opType, operand)
		return
	}
	output = operand.Clone()
	return
}

// ConvertDTypeOp returns the operand shape with the new dtype.
func ConvertDTypeOp(operand shapes.Shape, dtype dtypes.DType) (output shapes.Shape, err error) {
	if operand.DType == dtypes.InvalidDType || dtype == dtypes.InvalidDType {
		err = errors.Errorf("invalid dtype conversion of %s to %s", operand, dtype)
		return
	}
	return operand.WithDType(dtype), nil
}

// IotaOp validates the Iota parameters and returns the shape given.
func IotaOp(shape shapes.Shape, iotaAxis int) (output shapes.Shape, err error) {
	if !shape.Ok() || shape.IsScalar() {
		err = errors.Errorf("Iota requires a valid non-scalar shape, got %s", shape)
		return
	}
	if iotaAxis < 0 || iotaAxis >= shape.Rank() {
		err = errors.Errorf("Iota(%s, iotaAxis=%d) axis out-of-range", shape, iotaAxis)
		return
	}
	if !isNumber(shape.DType) {
		err = errors.Errorf("Iota requires a numeric dtype, got %s", shape)
		return
	}
	return shape.Clone(), nil
}

// WhereOp returns the shape resulting from the Where operation.
//
// Shape constraints for the operation:
//
//  1. The onTrue and onFalse must have the exact same shape, or one can be a scalar.
//  2. The condition must either be a scalar or match the shape of onTrue or onFalse, except for the DType that
//     must be Bool.
func WhereOp(condition, onTrue, onFalse shapes.Shape) (output shapes.Shape, err error) {
	if condition.DType != dtypes.Bool {
		err = errors.Errorf("condition for Where() must be a boolean, got %s instead", condition)
		return
	}
	if onTrue.DType != onFalse.DType {
		err = errors.Errorf("onTrue (%s) and onFalse (%s) values for Where() must have the same dtype", onTrue, onFalse)
		return
	}
	if !onTrue.IsScalar() && !onFalse.IsScalar() && !onTrue.Equal(onFalse) {
		err = errors.Errorf("onTrue (%s) and onFalse (%s) values for Where() must either be scalar or match each other's shape",
			onTrue, onFalse)
		return
	}

	output = onTrue.Clone()
	if output.IsScalar() {
		output = onFalse.Clone()
		if output.IsScalar() && !condition.IsScalar() {
			output = condition.WithDType(onTrue.DType)
		}
	}

	if !condition.IsScalar() && !slices.Equal(condition.Dimensions, output.Dimensions) {
		err = errors.Errorf("condition for Where() must either be a scalar or match the output shape (not the DType), instead got shapes condition=%s, onTrue=%s and onFalse=%s",
			condition, onTrue, onFalse)
		return
	}
	return
}

// ReshapeOp to the given dimensions: trivial output shape, but this function also checks
// that the sizes are the same.
func ReshapeOp(operand shapes.Shape, dims []int) (output shapes.Shape, err error) {
	for _, dim := range dims {
		if dim <= 0 {
			return shapes.Invalid(), errors.Errorf("Reshape() to dimensions %v: all dimensions must be positive", dims)
		}
	}
	output = shapes.Make(operand.DType, dims...)
	if operand.Size() != output.Size() {
		return shapes.Invalid(), errors.Errorf("Reshape() cannot reshape %s to dimensions %v, their size don't match",
			operand, dims)
	}
	return
}

// BroadcastInDimOp verifies that the arguments are valid. The output shape is already known, so nothing is returned.
func BroadcastInDimOp(operand, outputShape shapes.Shape, broadcastAxes []int) error {
	if operand.DType != outputShape.DType {
		return errors.Errorf("BroadcastInDim operand (%s) and outputShape (%s) must have the same dtype", operand, outputShape)
	}
	if len(broadcastAxes) != operand.Rank() {
		return errors.Errorf("there must be exactly one broadcastAxes (%v) per axis in the operand (%s)",
			broadcastAxes, operand)
	}

	preservedSet := sets.Make[int](len(broadcastAxes))
	for axisInOperand, axisInOutput := range broadcastAxes {
		if axisInOutput < 0 || axisInOutput >= outputShape.Rank() {
			return errors.Errorf("broadcastAxes (%v) defines a value out-of-range (%d-th value -> %d), they must be between 0 and outputShape.Rank()-1=%d",
				broadcastAxes, axisInOperand, axisInOutput, outputShape.Rank()-1)
		}
		if !preservedSet.InsertNew(axisInOutput) {
			return errors.Errorf("broadcastAxes (%v) repeats axis %d (broadcastAxes[%d]), they must be all unique and between 0 and outputShape.Rank()-1=%d",
				broadcastAxes, axisInOutput, axisInOperand, outputShape.Rank()-1)
		}
		if axisInOperand > 0 && broadcastAxes[axisInOperand-1] > axisInOutput {
			return errors.Errorf("broadcastAxes (%v) must be increasing, BroadcastInDim cannot transpose axes", broadcastAxes)
		}
		if operand.Dimensions[axisInOperand] != 1 && operand.Dimensions[axisInOperand] != outputShape.Dimensions[axisInOutput] {
			return errors.Errorf("the values of outputShape (%v) that are being broadcast (listed in broadcastAxes) "+
				"must match the corresponding value in the operand shape (%s) or be 1 (if broadcasting), "+
				"but the value of outputShape.Dimensions[%d]=%d does not match the value in operand.Shape().Dimensions[%d]=%d",
				outputShape, operand, axisInOutput, outputShape.Dimensions[axisInOutput], axisInOperand, operand.Dimensions[axisInOperand])
		}
	}
	return nil
}

// ReduceOp works for the ReduceSum op: the reduced axes are removed from the shape. If no axes are given,
// all axes are reduced.
func ReduceOp(operand shapes.Shape, axes []int) (output shapes.Shape, err error) {
	if !isNumber(operand.DType) {
		return shapes.Invalid(), errors.Errorf("Reduce operation requires a numeric operand, got %s", operand)
	}
	if len(axes) == 0 {
		return shapes.Make(operand.DType), nil
	}
	axesSet := sets.Make[int](len(axes))
	for _, axis := range axes {
		if axis < 0 || axis >= operand.Rank() {
			return shapes.Invalid(), errors.Errorf("Reduce operation require each axis to be 0 <= axis < rank, but got invalid axis %d for shape %s", axis, operand)
		}
		if !axesSet.InsertNew(axis) {
			return shapes.Invalid(), errors.Errorf("Reduce operation axis %d given more than once (axes=%v)", axis, axes)
		}
	}
	output = shapes.Make(operand.DType)
	for axis, dim := range operand.Dimensions {
		if !axesSet.Has(axis) {
			output.Dimensions = append(output.Dimensions, dim)
		}
	}
	return
}
