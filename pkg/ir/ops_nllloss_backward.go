// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/gomlx/irgraph/pkg/lowering"
	"github.com/pkg/errors"
)

// nllLossBackwardArity: gradOutput, logits, labels and the optional pair (weight, totalWeight).
var nllLossBackwardArity = Arity{Required: 3, Groups: []OptionalGroup{{Name: "weight", Size: 2}}}

// NLLLossBackwardOp is the gradient of the negative log-likelihood loss with respect to the logits.
// It is used by both NLLLossBackward (logits shaped (N, C)) and NLLLoss2dBackward (logits shaped (N, C, H, W)),
// they differ only by their kind and the rank of the logits they accept.
type NLLLossBackwardOp struct {
	kind        OpKind
	operands    []Value
	reduction   lowering.Reduction
	ignoreIndex int
}

var _ Operator = (*NLLLossBackwardOp)(nil)

// NLLLossBackward returns the gradient of NLLLoss with respect to logits shaped (N, C), given labels shaped (N).
//
// See NLLLoss2dBackward for the other arguments.
func NLLLossBackward(gradOutput, logits, labels Value, weight, totalWeight OptionalValue,
	reduction lowering.Reduction, ignoreIndex int) Value {
	return newNLLLossBackward(OpKindNLLLossBackward, gradOutput, logits, labels, weight, totalWeight, reduction, ignoreIndex)
}

// NLLLoss2dBackward returns the gradient of the 2D NLLLoss with respect to logits shaped (N, C, H, W), given
// labels shaped (N, H, W).
//
// gradOutput is the gradient of the loss: shaped like labels for lowering.ReductionNone, a scalar otherwise.
// weight (shaped (C)) and totalWeight (a scalar) are optional, but must be given together: if only one of them is
// present it panics with an error wrapping ErrArity. Labels equal to ignoreIndex get a zero gradient.
//
// The result is shaped like logits.
func NLLLoss2dBackward(gradOutput, logits, labels Value, weight, totalWeight OptionalValue,
	reduction lowering.Reduction, ignoreIndex int) Value {
	return newNLLLossBackward(OpKindNLLLoss2dBackward, gradOutput, logits, labels, weight, totalWeight, reduction, ignoreIndex)
}

func newNLLLossBackward(kind OpKind, gradOutput, logits, labels Value, weight, totalWeight OptionalValue,
	reduction lowering.Reduction, ignoreIndex int) Value {
	g := graphOf(gradOutput)
	if !reduction.IsAReduction() {
		exceptions.Panicf("%s: invalid reduction %d", kind, int(reduction))
	}
	operands, err := nllLossBackwardArity.Pack([]Value{gradOutput, logits, labels}, []OptionalValue{weight, totalWeight})
	if err != nil {
		panic(errors.WithMessagef(err, "%s", kind))
	}
	op := &NLLLossBackwardOp{kind: kind, operands: operands, reduction: reduction, ignoreIndex: ignoreIndex}
	return g.AddNode(op).Value()
}

// Reduction used by the forward loss.
func (op *NLLLossBackwardOp) Reduction() lowering.Reduction { return op.reduction }

// IgnoreIndex is the label value that gets a zero gradient.
func (op *NLLLossBackwardOp) IgnoreIndex() int { return op.ignoreIndex }

// HasWeights returns whether the optional weight and totalWeight operands are present.
func (op *NLLLossBackwardOp) HasWeights() bool { return len(op.operands) > nllLossBackwardArity.Required }

func (op *NLLLossBackwardOp) Kind() OpKind { return op.kind }
func (op *NLLLossBackwardOp) Arity() Arity { return nllLossBackwardArity }
func (op *NLLLossBackwardOp) Operands() []Value { return op.operands }

// Hash combines the kind, reduction and ignoreIndex. Operands, including whether the weights are given,
// are not part of it.
func (op *NLLLossBackwardOp) Hash() Hash {
	return MHash(op.kind, op.reduction, op.ignoreIndex)
}

func (op *NLLLossBackwardOp) EqualParams(other Operator) bool {
	o, ok := other.(*NLLLossBackwardOp)
	return ok && o.kind == op.kind && o.reduction == op.reduction && o.ignoreIndex == op.ignoreIndex
}

// logitsRank accepted by the operator kind.
func (op *NLLLossBackwardOp) logitsRank() int {
	if op.kind == OpKindNLLLoss2dBackward {
		return 4
	}
	return 2
}

// lowerFn is shared by shape inference and lowering.
func (op *NLLLossBackwardOp) lowerFn() LowerFn {
	hasWeights := op.HasWeights()
	return func(b backends.Builder, operands []backends.Op) (backends.Op, error) {
		var weight, totalWeight backends.Op
		if hasWeights {
			weight, totalWeight = operands[3], operands[4]
		}
		return lowering.NLLLossBackward(b, operands[0], operands[1], operands[2], weight, totalWeight,
			op.ignoreIndex, op.reduction)
	}
}

func (op *NLLLossBackwardOp) OutputShapes(backend backends.Backend) ([]shapes.Shape, error) {
	if logitsShape := op.operands[1].Shape(); logitsShape.Rank() != op.logitsRank() {
		return nil, errors.Wrapf(ErrShapeIncompatible, "%s requires logits of rank %d, got %s",
			op.kind, op.logitsRank(), logitsShape)
	}
	shape, err := InferShape(backend, operandShapes(op.operands), op.lowerFn())
	if err != nil {
		return nil, err
	}
	return []shapes.Shape{shape}, nil
}

// WithOperands returns a copy with new operands: 3 operands for no weights, 5 for weight and totalWeight.
// Any other number of operands returns an error wrapping ErrArity.
func (op *NLLLossBackwardOp) WithOperands(operands []Value) (Operator, error) {
	if _, _, err := nllLossBackwardArity.Split(operands); err != nil {
		return nil, errors.WithMessagef(err, "%s", op.kind)
	}
	return &NLLLossBackwardOp{
		kind:        op.kind,
		operands:    slices.Clone(operands),
		reduction:   op.reduction,
		ignoreIndex: op.ignoreIndex,
	}, nil
}

func (op *NLLLossBackwardOp) Lower(ctx *LoweringContext, node *Node) error {
	return lowerWith(ctx, node, op.operands, op.lowerFn())
}

// String returns the generic description followed by the parameters, e.g.:
// "NLLLoss2dBackward(#3, #0, #1), reduction=mean, ignore_index=-100".
func (op *NLLLossBackwardOp) String() string {
	return fmt.Sprintf("%s, reduction=%s, ignore_index=%d", describeOp(op.kind, op.operands), op.reduction, op.ignoreIndex)
}
