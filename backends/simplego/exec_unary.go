// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"github.com/gomlx/irgraph/backends"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

func init() {
	nodeExecutors[backends.OpTypeNeg] = execNeg
	nodeExecutors[backends.OpTypeConvertDType] = execConvertDType
}

// execNeg executes the unary op Neg.
func execNeg(backend *Backend, node *Node, inputs []*Buffer, inputsOwned []bool) (*Buffer, error) {
	operand := inputs[0]
	output := outputBuffer(backend, node, inputs, inputsOwned)
	switch operandFlat := operand.flat.(type) {
	case []int32:
		negGeneric(operandFlat, output.flat.([]int32))
	case []int64:
		negGeneric(operandFlat, output.flat.([]int64))
	case []float32:
		negGeneric(operandFlat, output.flat.([]float32))
	case []float64:
		negGeneric(operandFlat, output.flat.([]float64))
	case []float16.Float16:
		outputFlat := output.flat.([]float16.Float16)
		for ii, v := range operandFlat {
			outputFlat[ii] = float16.Fromfloat32(-v.Float32())
		}
	default:
		return nil, errors.Errorf("Neg: dtype %s not supported", operand.shape.DType)
	}
	return output, nil
}

func negGeneric[T PODNumericConstraints](operandFlat, outputFlat []T) {
	for ii, v := range operandFlat {
		outputFlat[ii] = -v
	}
}

// execConvertDType converts between any of the supported dtypes.
// Booleans convert to 0 or 1, and numbers convert to true if different from 0.
func execConvertDType(backend *Backend, node *Node, inputs []*Buffer, _ []bool) (*Buffer, error) {
	operand := inputs[0]
	output := backend.NewBuffer(node.shape)
	var err error
	switch operandFlat := operand.flat.(type) {
	case []bool:
		asUint8 := make([]uint8, len(operandFlat))
		for ii, v := range operandFlat {
			if v {
				asUint8[ii] = 1
			}
		}
		err = convertFromGeneric(asUint8, output.flat)
	case []float16.Float16:
		asFloat32 := make([]float32, len(operandFlat))
		for ii, v := range operandFlat {
			asFloat32[ii] = v.Float32()
		}
		err = convertFromGeneric(asFloat32, output.flat)
	case []int32:
		err = convertFromGeneric(operandFlat, output.flat)
	case []int64:
		err = convertFromGeneric(operandFlat, output.flat)
	case []uint8:
		err = convertFromGeneric(operandFlat, output.flat)
	case []float32:
		err = convertFromGeneric(operandFlat, output.flat)
	case []float64:
		err = convertFromGeneric(operandFlat, output.flat)
	default:
		err = errors.Errorf("dtype %s not supported", operand.shape.DType)
	}
	if err != nil {
		backend.putBuffer(output)
		return nil, errors.WithMessagef(err, "ConvertDType(%s -> %s)", operand.shape.DType, node.shape.DType)
	}
	return output, nil
}

// convertFromGeneric converts the numeric operandFlat to the outputFlat, which can be of any supported type.
func convertFromGeneric[From PODNumericConstraints](operandFlat []From, outputFlat any) error {
	switch outputFlat := outputFlat.(type) {
	case []bool:
		for ii, v := range operandFlat {
			outputFlat[ii] = v != 0
		}
	case []int32:
		convertGeneric(operandFlat, outputFlat)
	case []int64:
		convertGeneric(operandFlat, outputFlat)
	case []uint8:
		convertGeneric(operandFlat, outputFlat)
	case []float32:
		convertGeneric(operandFlat, outputFlat)
	case []float64:
		convertGeneric(operandFlat, outputFlat)
	case []float16.Float16:
		for ii, v := range operandFlat {
			outputFlat[ii] = float16.Fromfloat32(float32(v))
		}
	default:
		return errors.Errorf("output flat type %T not supported", outputFlat)
	}
	return nil
}

func convertGeneric[From, To PODNumericConstraints](operandFlat []From, outputFlat []To) {
	for ii, v := range operandFlat {
		outputFlat[ii] = To(v)
	}
}
