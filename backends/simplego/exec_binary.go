// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// This file implements binary and comparison operations.
// One optimization supported is specially handling the cases where one of the operands is a scalar (or of size 1),
// in which case it becomes almost a unary operation with a constant value.

func init() {
	nodeExecutors[backends.OpTypeMul] = execBinary
	nodeExecutors[backends.OpTypeDiv] = execBinary
	nodeExecutors[backends.OpTypeEqual] = execComparison
	nodeExecutors[backends.OpTypeNotEqual] = execComparison

	registerForNumeric(binaryDTypeMap,
		execBinaryNumericGeneric[int32], execBinaryNumericGeneric[int64], execBinaryNumericGeneric[uint8],
		execBinaryNumericGeneric[float32], execBinaryNumericGeneric[float64])
	binaryDTypeMap.Register(dtypes.Float16, execBinaryFloat16)

	registerForNumeric(comparisonDTypeMap,
		execComparisonGeneric[int32], execComparisonGeneric[int64], execComparisonGeneric[uint8],
		execComparisonGeneric[float32], execComparisonGeneric[float64])
	comparisonDTypeMap.Register(dtypes.Float16, execComparisonFloat16)
	comparisonDTypeMap.Register(dtypes.Bool, execComparisonGeneric[bool])
}

// binaryFn is the signature of the dtype specialized implementations of binary and comparison operations.
type binaryFn func(opType backends.OpType, lhs, rhs, output *Buffer) error

var (
	binaryDTypeMap     = NewDTypeMap[binaryFn]("BinaryOp")
	comparisonDTypeMap = NewDTypeMap[binaryFn]("ComparisonOp")
)

// outputBuffer returns a buffer for the node output: if one of the owned inputs has the same shape it is reused
// (and its entry in inputs is set to nil), otherwise a new buffer is allocated.
//
// It must only be used by executors that read each input element at the same flat index they write it.
func outputBuffer(backend *Backend, node *Node, inputs []*Buffer, inputsOwned []bool) *Buffer {
	for ii, input := range inputs {
		if input != nil && inputsOwned[ii] && input.shape.Equal(node.shape) {
			inputs[ii] = nil
			return input
		}
	}
	return backend.NewBuffer(node.shape)
}

// execBinary executes the StandardBinaryOperations.
func execBinary(backend *Backend, node *Node, inputs []*Buffer, inputsOwned []bool) (*Buffer, error) {
	lhs, rhs := inputs[0], inputs[1]
	fn, err := binaryDTypeMap.Get(lhs.shape.DType)
	if err != nil {
		return nil, err
	}
	output := outputBuffer(backend, node, inputs, inputsOwned)
	if err = fn(node.opType, lhs, rhs, output); err != nil {
		// output may be a reused input, so it's left to the GC.
		return nil, err
	}
	return output, nil
}

// execComparison executes the ComparisonOperations, the output is always a boolean.
func execComparison(backend *Backend, node *Node, inputs []*Buffer, _ []bool) (*Buffer, error) {
	lhs, rhs := inputs[0], inputs[1]
	fn, err := comparisonDTypeMap.Get(lhs.shape.DType)
	if err != nil {
		return nil, err
	}
	output := backend.NewBuffer(node.shape)
	if err = fn(node.opType, lhs, rhs, output); err != nil {
		backend.putBuffer(output)
		return nil, err
	}
	return output, nil
}

// broadcastStrides returns, for each axis of the output shape, the stride to use on the flat operand.
// axesMap maps each operand axis to an output axis. Output axes not mapped, or mapped from an operand axis of
// dimension 1, are broadcast and get stride 0.
func broadcastStrides(operand, output shapes.Shape, axesMap []int) []int {
	strides := make([]int, output.Rank())
	operandStrides := operand.Strides()
	for operandAxis, outputAxis := range axesMap {
		if operand.Dimensions[operandAxis] != 1 {
			strides[outputAxis] = operandStrides[operandAxis]
		}
	}
	return strides
}

// implicitBroadcastAxes returns the axesMap of an operand of an element-wise operation: scalars are broadcast to
// every axis, otherwise the axes map one-to-one.
func implicitBroadcastAxes(operand shapes.Shape) []int {
	if operand.IsScalar() {
		return nil
	}
	axes := make([]int, operand.Rank())
	for axis := range axes {
		axes[axis] = axis
	}
	return axes
}

// flatIndex returns the flat index given the per-axis indices and strides.
func flatIndex(indices, strides []int) (idx int) {
	for axis, axisIdx := range indices {
		idx += axisIdx * strides[axis]
	}
	return
}

// applyBinary sets outputFlat[i] = fn(lhsFlat[j], rhsFlat[k]), where j and k are the flat indices of the
// (possibly broadcast) operands corresponding to the output flat index i.
func applyBinary[T, R any](lhsFlat, rhsFlat []T, outputFlat []R, lhsShape, rhsShape, outputShape shapes.Shape, fn func(a, b T) R) {
	lhsSame := slices.Equal(lhsShape.Dimensions, outputShape.Dimensions)
	rhsSame := slices.Equal(rhsShape.Dimensions, outputShape.Dimensions)
	switch {
	case lhsSame && rhsSame:
		for ii := range outputFlat {
			outputFlat[ii] = fn(lhsFlat[ii], rhsFlat[ii])
		}
	case lhsSame && len(rhsFlat) == 1:
		c := rhsFlat[0]
		for ii := range outputFlat {
			outputFlat[ii] = fn(lhsFlat[ii], c)
		}
	case rhsSame && len(lhsFlat) == 1:
		c := lhsFlat[0]
		for ii := range outputFlat {
			outputFlat[ii] = fn(c, rhsFlat[ii])
		}
	default:
		lhsStrides := broadcastStrides(lhsShape, outputShape, implicitBroadcastAxes(lhsShape))
		rhsStrides := broadcastStrides(rhsShape, outputShape, implicitBroadcastAxes(rhsShape))
		for outputIdx, indices := range outputShape.Iter() {
			outputFlat[outputIdx] = fn(lhsFlat[flatIndex(indices, lhsStrides)], rhsFlat[flatIndex(indices, rhsStrides)])
		}
	}
}

func execBinaryNumericGeneric[T PODNumericConstraints](opType backends.OpType, lhs, rhs, output *Buffer) error {
	var fn func(a, b T) T
	switch opType {
	case backends.OpTypeMul:
		fn = func(a, b T) T { return a * b }
	case backends.OpTypeDiv:
		if !output.shape.DType.IsFloat() && slices.Contains(rhs.flat.([]T), T(0)) {
			return errors.Errorf("integer division by zero in %s (dtype %s)", opType, output.shape.DType)
		}
		fn = func(a, b T) T { return a / b }
	default:
		return errors.Errorf("binary op %s not supported for dtype %s", opType, output.shape.DType)
	}
	applyBinary(lhs.flat.([]T), rhs.flat.([]T), output.flat.([]T), lhs.shape, rhs.shape, output.shape, fn)
	return nil
}

// execBinaryFloat16 computes the operation in float32 and converts the result back.
func execBinaryFloat16(opType backends.OpType, lhs, rhs, output *Buffer) error {
	lhs32 := float16ToFloat32Buffer(lhs)
	rhs32 := float16ToFloat32Buffer(rhs)
	output32 := &Buffer{shape: output.shape.WithDType(dtypes.Float32), flat: make([]float32, output.shape.Size()), valid: true}
	if err := execBinaryNumericGeneric[float32](opType, lhs32, rhs32, output32); err != nil {
		return err
	}
	outputFlat := output.flat.([]float16.Float16)
	for ii, v := range output32.flat.([]float32) {
		outputFlat[ii] = float16.Fromfloat32(v)
	}
	return nil
}

func execComparisonGeneric[T comparable](opType backends.OpType, lhs, rhs, output *Buffer) error {
	var fn func(a, b T) bool
	switch opType {
	case backends.OpTypeEqual:
		fn = func(a, b T) bool { return a == b }
	case backends.OpTypeNotEqual:
		fn = func(a, b T) bool { return a != b }
	default:
		return errors.Errorf("comparison op %s not supported for dtype %s", opType, lhs.shape.DType)
	}
	applyBinary(lhs.flat.([]T), rhs.flat.([]T), output.flat.([]bool), lhs.shape, rhs.shape, output.shape, fn)
	return nil
}

// execComparisonFloat16 compares the values as float32, so that NaN and signed zeros compare as floats.
func execComparisonFloat16(opType backends.OpType, lhs, rhs, output *Buffer) error {
	return execComparisonGeneric[float32](opType, float16ToFloat32Buffer(lhs), float16ToFloat32Buffer(rhs), output)
}

// float16ToFloat32Buffer returns a temporary (not pooled) Float32 copy of a Float16 buffer.
func float16ToFloat32Buffer(buffer *Buffer) *Buffer {
	flat := buffer.flat.([]float16.Float16)
	flat32 := make([]float32, len(flat))
	for ii, v := range flat {
		flat32[ii] = v.Float32()
	}
	return &Buffer{shape: buffer.shape.WithDType(dtypes.Float32), flat: flat32, valid: true}
}
