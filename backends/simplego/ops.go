// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/backends/shapeinference"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// nodeParameter data.
type nodeParameter struct {
	name     string
	inputIdx int
}

// broadcastInDimNode is attached to the Node.data field for BroadcastInDim.
type broadcastInDimNode struct {
	broadcastAxes []int
}

// EqualNodeData implements nodeDataComparable for broadcastInDimNode.
func (n *broadcastInDimNode) EqualNodeData(other any) bool {
	o, ok := other.(*broadcastInDimNode)
	return ok && slices.Equal(n.broadcastAxes, o.broadcastAxes)
}

// reduceNode is attached to the Node.data field for ReduceSum.
type reduceNode struct {
	axes []int
}

// EqualNodeData implements nodeDataComparable for reduceNode.
func (n *reduceNode) EqualNodeData(other any) bool {
	o, ok := other.(*reduceNode)
	return ok && slices.Equal(n.axes, o.axes)
}

// iotaNode is attached to the Node.data field for Iota.
type iotaNode struct {
	axis int
}

// EqualNodeData implements nodeDataComparable for iotaNode.
func (n *iotaNode) EqualNodeData(other any) bool {
	o, ok := other.(*iotaNode)
	return ok && n.axis == o.axis
}

// nodeToOp converts the result of the add*Op methods, making sure a failed op is a nil interface.
func nodeToOp(node *Node, err error) (backends.Op, error) {
	if err != nil {
		return nil, err
	}
	return node, nil
}

// Parameter creates an input parameter for the computation.
func (b *Builder) Parameter(name string, shape shapes.Shape) (backends.Op, error) {
	if b.compiled {
		return nil, errors.Errorf("cannot add Parameter(%q) to Builder %q, it has already been compiled", name, b.name)
	}
	if !shape.Ok() {
		return nil, errors.Errorf("Parameter(%q): invalid shape %s", name, shape)
	}
	if !isSupportedDType(shape.DType) {
		return nil, errors.Errorf("Parameter(%q): dtype %s not supported by backend %q", name, shape.DType, BackendName)
	}
	n := b.newNode(backends.OpTypeParameter, shape.Clone())
	n.data = &nodeParameter{
		name:     name,
		inputIdx: len(b.inputs),
	}
	b.inputs = append(b.inputs, n)
	return n, nil
}

// Constant creates a constant in the graph with the given flat values, and the shape defined by dims.
func (b *Builder) Constant(flat any, dims ...int) (backends.Op, error) {
	if b.compiled {
		return nil, errors.Errorf("cannot add Constant to Builder %q, it has already been compiled", b.name)
	}
	dtype, flatLen, err := checkFlat(flat)
	if err != nil {
		return nil, errors.WithMessagef(err, "Constant(dims=%v)", dims)
	}
	for _, dim := range dims {
		if dim <= 0 {
			return nil, errors.Errorf("Constant(dims=%v): all dimensions must be positive", dims)
		}
	}
	shape := shapes.Make(dtype, dims...)
	if shape.Size() != flatLen {
		return nil, errors.Errorf("Constant(dims=%v): flat value size %d doesn't match shape size %d", dims, flatLen, shape.Size())
	}
	n := b.newNode(backends.OpTypeConstant, shape)
	buffer := b.backend.NewBuffer(shape)
	copyFlat(buffer.flat, flat)
	n.data = buffer
	return n, nil
}

// Mul implements backends.Builder.
func (b *Builder) Mul(lhs, rhs backends.Op) (backends.Op, error) {
	return nodeToOp(b.addBinaryOp(backends.OpTypeMul, lhs, rhs))
}

// Div implements backends.Builder.
func (b *Builder) Div(lhs, rhs backends.Op) (backends.Op, error) {
	return nodeToOp(b.addBinaryOp(backends.OpTypeDiv, lhs, rhs))
}

// Equal implements backends.Builder.
func (b *Builder) Equal(lhs, rhs backends.Op) (backends.Op, error) {
	return nodeToOp(b.addComparisonOp(backends.OpTypeEqual, lhs, rhs))
}

// NotEqual implements backends.Builder.
func (b *Builder) NotEqual(lhs, rhs backends.Op) (backends.Op, error) {
	return nodeToOp(b.addComparisonOp(backends.OpTypeNotEqual, lhs, rhs))
}

// Neg implements backends.Builder.
func (b *Builder) Neg(x backends.Op) (backends.Op, error) {
	return nodeToOp(b.addUnaryOp(backends.OpTypeNeg, x))
}

// ConvertDType implements backends.Builder.
func (b *Builder) ConvertDType(x backends.Op, dtype dtypes.DType) (backends.Op, error) {
	opType := backends.OpTypeConvertDType
	inputs, err := b.checkOps(opType.String(), x)
	if err != nil {
		return nil, err
	}
	operand := inputs[0]
	if !isSupportedDType(dtype) {
		return nil, errors.Errorf("ConvertDType: dtype %s not supported by backend %q", dtype, BackendName)
	}
	if operand.shape.DType == dtype {
		// No-op.
		return operand, nil
	}
	shape, err := shapeinference.ConvertDTypeOp(operand.shape, dtype)
	if err != nil {
		return nil, err
	}
	return b.getOrCreateNode(opType, shape, inputs, nil), nil
}

// Iota implements backends.Builder.
func (b *Builder) Iota(shape shapes.Shape, iotaAxis int) (backends.Op, error) {
	if _, err := b.checkOps("Iota"); err != nil {
		return nil, err
	}
	outputShape, err := shapeinference.IotaOp(shape, iotaAxis)
	if err != nil {
		return nil, err
	}
	if !isSupportedDType(outputShape.DType) {
		return nil, errors.Errorf("Iota: dtype %s not supported by backend %q", outputShape.DType, BackendName)
	}
	return b.getOrCreateNode(backends.OpTypeIota, outputShape, nil, &iotaNode{axis: iotaAxis}), nil
}

// BroadcastInDim implements backends.Builder.
func (b *Builder) BroadcastInDim(x backends.Op, outputShape shapes.Shape, broadcastAxes []int) (backends.Op, error) {
	opType := backends.OpTypeBroadcastInDim
	inputs, err := b.checkOps(opType.String(), x)
	if err != nil {
		return nil, err
	}
	operand := inputs[0]
	if err = shapeinference.BroadcastInDimOp(operand.shape, outputShape, broadcastAxes); err != nil {
		return nil, err
	}
	return b.getOrCreateNode(opType, outputShape.Clone(), inputs, &broadcastInDimNode{broadcastAxes: slices.Clone(broadcastAxes)}), nil
}

// Reshape implements backends.Builder.
func (b *Builder) Reshape(x backends.Op, dimensions ...int) (backends.Op, error) {
	opType := backends.OpTypeReshape
	inputs, err := b.checkOps(opType.String(), x)
	if err != nil {
		return nil, err
	}
	operand := inputs[0]
	shape, err := shapeinference.ReshapeOp(operand.shape, dimensions)
	if err != nil {
		return nil, err
	}
	return b.getOrCreateNode(opType, shape, inputs, nil), nil
}

// ReduceSum implements backends.Builder.
func (b *Builder) ReduceSum(x backends.Op, axes ...int) (backends.Op, error) {
	opType := backends.OpTypeReduceSum
	inputs, err := b.checkOps(opType.String(), x)
	if err != nil {
		return nil, err
	}
	operand := inputs[0]
	if len(axes) == 0 {
		// Reduce all axes.
		axes = make([]int, operand.shape.Rank())
		for axis := range axes {
			axes[axis] = axis
		}
	}
	shape, err := shapeinference.ReduceOp(operand.shape, axes)
	if err != nil {
		return nil, err
	}
	sortedAxes := slices.Clone(axes)
	slices.Sort(sortedAxes)
	return b.getOrCreateNode(opType, shape, inputs, &reduceNode{axes: sortedAxes}), nil
}

// Where implements backends.Builder.
func (b *Builder) Where(condition, onTrue, onFalse backends.Op) (backends.Op, error) {
	opType := backends.OpTypeWhere
	inputs, err := b.checkOps(opType.String(), condition, onTrue, onFalse)
	if err != nil {
		return nil, err
	}
	shape, err := shapeinference.WhereOp(inputs[0].shape, inputs[1].shape, inputs[2].shape)
	if err != nil {
		return nil, err
	}
	return b.getOrCreateNode(opType, shape, inputs, nil), nil
}
