// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

func init() {
	nodeExecutors[backends.OpTypeIota] = execIota
	nodeExecutors[backends.OpTypeBroadcastInDim] = execBroadcastInDim
	nodeExecutors[backends.OpTypeReshape] = execReshape
	nodeExecutors[backends.OpTypeReduceSum] = execReduceSum
	nodeExecutors[backends.OpTypeWhere] = execWhere

	registerForAllSupported(broadcastInDimDTypeMap,
		execBroadcastInDimGeneric[bool], execBroadcastInDimGeneric[int32], execBroadcastInDimGeneric[int64],
		execBroadcastInDimGeneric[uint8], execBroadcastInDimGeneric[float16.Float16],
		execBroadcastInDimGeneric[float32], execBroadcastInDimGeneric[float64])
	registerForAllSupported(whereDTypeMap,
		execWhereGeneric[bool], execWhereGeneric[int32], execWhereGeneric[int64],
		execWhereGeneric[uint8], execWhereGeneric[float16.Float16],
		execWhereGeneric[float32], execWhereGeneric[float64])
}

// execIota fills the output with the index of each element on the iota axis.
func execIota(backend *Backend, node *Node, _ []*Buffer, _ []bool) (*Buffer, error) {
	axis := node.data.(*iotaNode).axis
	output := backend.NewBuffer(node.shape)
	switch outputFlat := output.flat.(type) {
	case []int32:
		iotaGeneric(node.shape, axis, outputFlat)
	case []int64:
		iotaGeneric(node.shape, axis, outputFlat)
	case []uint8:
		iotaGeneric(node.shape, axis, outputFlat)
	case []float32:
		iotaGeneric(node.shape, axis, outputFlat)
	case []float64:
		iotaGeneric(node.shape, axis, outputFlat)
	case []float16.Float16:
		for flatIdx, indices := range node.shape.Iter() {
			outputFlat[flatIdx] = float16.Fromfloat32(float32(indices[axis]))
		}
	default:
		backend.putBuffer(output)
		return nil, errors.Errorf("Iota: dtype %s not supported", node.shape.DType)
	}
	return output, nil
}

func iotaGeneric[T PODNumericConstraints](shape shapes.Shape, axis int, outputFlat []T) {
	for flatIdx, indices := range shape.Iter() {
		outputFlat[flatIdx] = T(indices[axis])
	}
}

// broadcastInDimFn copies the operand into the output, broadcasting it according to the axes mapping.
type broadcastInDimFn func(operand, output *Buffer, broadcastAxes []int)

var broadcastInDimDTypeMap = NewDTypeMap[broadcastInDimFn]("BroadcastInDim")

func execBroadcastInDim(backend *Backend, node *Node, inputs []*Buffer, inputsOwned []bool) (*Buffer, error) {
	operand := inputs[0]
	fn, err := broadcastInDimDTypeMap.Get(operand.shape.DType)
	if err != nil {
		return nil, err
	}
	if operand.shape.Equal(node.shape) {
		// Trivial broadcast, the axes must be the identity.
		if inputsOwned[0] {
			inputs[0] = nil
			return operand, nil
		}
		return backend.cloneBuffer(operand)
	}
	output := backend.NewBuffer(node.shape)
	fn(operand, output, node.data.(*broadcastInDimNode).broadcastAxes)
	return output, nil
}

func execBroadcastInDimGeneric[T SupportedTypesConstraints](operand, output *Buffer, broadcastAxes []int) {
	operandFlat := operand.flat.([]T)
	outputFlat := output.flat.([]T)
	if len(operandFlat) == 1 {
		c := operandFlat[0]
		for ii := range outputFlat {
			outputFlat[ii] = c
		}
		return
	}
	strides := broadcastStrides(operand.shape, output.shape, broadcastAxes)
	for outputIdx, indices := range output.shape.Iter() {
		outputFlat[outputIdx] = operandFlat[flatIndex(indices, strides)]
	}
}

// execReshape only changes the shape: the flat data is shared if the operand is owned, or copied otherwise.
func execReshape(backend *Backend, node *Node, inputs []*Buffer, inputsOwned []bool) (*Buffer, error) {
	operand := inputs[0]
	var output *Buffer
	if inputsOwned[0] {
		output = operand
		inputs[0] = nil
	} else {
		var err error
		output, err = backend.cloneBuffer(operand)
		if err != nil {
			return nil, err
		}
	}
	output.shape = node.shape.Clone()
	return output, nil
}

// execReduceSum sums the operand over the reduced axes.
func execReduceSum(backend *Backend, node *Node, inputs []*Buffer, _ []bool) (*Buffer, error) {
	operand := inputs[0]
	axes := node.data.(*reduceNode).axes
	output := backend.NewBuffer(node.shape)
	outputStrides := reduceOutputStrides(operand.shape, node.shape, axes)
	switch operandFlat := operand.flat.(type) {
	case []int32:
		reduceSumGeneric(operand.shape, operandFlat, output.flat.([]int32), outputStrides)
	case []int64:
		reduceSumGeneric(operand.shape, operandFlat, output.flat.([]int64), outputStrides)
	case []uint8:
		reduceSumGeneric(operand.shape, operandFlat, output.flat.([]uint8), outputStrides)
	case []float32:
		reduceSumGeneric(operand.shape, operandFlat, output.flat.([]float32), outputStrides)
	case []float64:
		reduceSumGeneric(operand.shape, operandFlat, output.flat.([]float64), outputStrides)
	case []float16.Float16:
		// Accumulate in float32.
		operand32 := float16ToFloat32Buffer(operand)
		sum32 := make([]float32, node.shape.Size())
		reduceSumGeneric(operand.shape, operand32.flat.([]float32), sum32, outputStrides)
		outputFlat := output.flat.([]float16.Float16)
		for ii, v := range sum32 {
			outputFlat[ii] = float16.Fromfloat32(v)
		}
	default:
		backend.putBuffer(output)
		return nil, errors.Errorf("ReduceSum: dtype %s not supported", operand.shape.DType)
	}
	return output, nil
}

// reduceOutputStrides returns for each operand axis the stride on the output flat data. Reduced axes get stride 0.
func reduceOutputStrides(operandShape, outputShape shapes.Shape, reducedAxes []int) []int {
	strides := make([]int, operandShape.Rank())
	outputStrides := outputShape.Strides()
	reducedIdx, outputAxis := 0, 0
	for axis := range operandShape.Rank() {
		if reducedIdx < len(reducedAxes) && reducedAxes[reducedIdx] == axis {
			reducedIdx++
			continue
		}
		strides[axis] = outputStrides[outputAxis]
		outputAxis++
	}
	return strides
}

func reduceSumGeneric[T PODNumericConstraints](operandShape shapes.Shape, operandFlat, outputFlat []T, outputStrides []int) {
	for ii := range outputFlat {
		outputFlat[ii] = 0
	}
	for operandIdx, indices := range operandShape.Iter() {
		outputFlat[flatIndex(indices, outputStrides)] += operandFlat[operandIdx]
	}
}

// whereFn selects element-wise from onTrue or onFalse. Any of the inputs may be a scalar.
type whereFn func(condition, onTrue, onFalse, output *Buffer)

var whereDTypeMap = NewDTypeMap[whereFn]("Where")

func execWhere(backend *Backend, node *Node, inputs []*Buffer, inputsOwned []bool) (*Buffer, error) {
	condition, onTrue, onFalse := inputs[0], inputs[1], inputs[2]
	fn, err := whereDTypeMap.Get(node.shape.DType)
	if err != nil {
		return nil, err
	}
	// The condition is boolean, so it can only be reused if the output is boolean as well.
	output := outputBuffer(backend, node, inputs, inputsOwned)
	fn(condition, onTrue, onFalse, output)
	return output, nil
}

func execWhereGeneric[T SupportedTypesConstraints](condition, onTrue, onFalse, output *Buffer) {
	conditionFlat := condition.flat.([]bool)
	onTrueFlat := onTrue.flat.([]T)
	onFalseFlat := onFalse.flat.([]T)
	outputFlat := output.flat.([]T)
	scalarIdx := func(n int, ii int) int {
		if n == 1 {
			return 0
		}
		return ii
	}
	for ii := range outputFlat {
		if conditionFlat[scalarIdx(len(conditionFlat), ii)] {
			outputFlat[ii] = onTrueFlat[scalarIdx(len(onTrueFlat), ii)]
		} else {
			outputFlat[ii] = onFalseFlat[scalarIdx(len(onFalseFlat), ii)]
		}
	}
}
