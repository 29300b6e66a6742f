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

var nllLossArity = Arity{Required: 2, Groups: []OptionalGroup{{Name: "weight", Size: 1}}}

// NLLLossOp is the negative log-likelihood loss. See NLLLoss.
type NLLLossOp struct {
	operands    []Value
	reduction   lowering.Reduction
	ignoreIndex int
}

var _ Operator = (*NLLLossOp)(nil)

// NLLLoss returns the negative log-likelihood loss of logits (log-probabilities) shaped (N, C, d1, ..., dk) for
// the integer labels shaped (N, d1, ..., dk).
//
// weight is optional, and if present it is shaped (C). Labels equal to ignoreIndex don't contribute to the loss.
// For lowering.ReductionNone the loss is shaped like labels, otherwise it is a scalar.
func NLLLoss(logits, labels Value, weight OptionalValue, reduction lowering.Reduction, ignoreIndex int) Value {
	g := graphOf(logits)
	if !reduction.IsAReduction() {
		exceptions.Panicf("NLLLoss: invalid reduction %d", int(reduction))
	}
	operands, err := nllLossArity.Pack([]Value{logits, labels}, []OptionalValue{weight})
	if err != nil {
		panic(errors.WithMessage(err, "NLLLoss"))
	}
	return g.AddNode(&NLLLossOp{operands: operands, reduction: reduction, ignoreIndex: ignoreIndex}).Value()
}

// Reduction used to combine the per-element losses.
func (op *NLLLossOp) Reduction() lowering.Reduction { return op.reduction }

// IgnoreIndex is the label value that doesn't contribute to the loss.
func (op *NLLLossOp) IgnoreIndex() int { return op.ignoreIndex }

// HasWeight returns whether the per-class weight operand is present.
func (op *NLLLossOp) HasWeight() bool { return len(op.operands) > nllLossArity.Required }

func (op *NLLLossOp) Kind() OpKind { return OpKindNLLLoss }
func (op *NLLLossOp) Arity() Arity { return nllLossArity }
func (op *NLLLossOp) Operands() []Value { return op.operands }
func (op *NLLLossOp) Hash() Hash { return MHash(OpKindNLLLoss, op.reduction, op.ignoreIndex) }

func (op *NLLLossOp) EqualParams(other Operator) bool {
	o, ok := other.(*NLLLossOp)
	return ok && o.reduction == op.reduction && o.ignoreIndex == op.ignoreIndex
}

// lowerFn is shared by shape inference and lowering.
func (op *NLLLossOp) lowerFn() LowerFn {
	hasWeight := op.HasWeight()
	return func(b backends.Builder, operands []backends.Op) (backends.Op, error) {
		var weight backends.Op
		if hasWeight {
			weight = operands[2]
		}
		return lowering.NLLLoss(b, operands[0], operands[1], weight, op.ignoreIndex, op.reduction)
	}
}

func (op *NLLLossOp) OutputShapes(backend backends.Backend) ([]shapes.Shape, error) {
	shape, err := InferShape(backend, operandShapes(op.operands), op.lowerFn())
	if err != nil {
		return nil, err
	}
	return []shapes.Shape{shape}, nil
}

func (op *NLLLossOp) WithOperands(operands []Value) (Operator, error) {
	if _, _, err := nllLossArity.Split(operands); err != nil {
		return nil, errors.WithMessage(err, "NLLLoss")
	}
	return &NLLLossOp{operands: slices.Clone(operands), reduction: op.reduction, ignoreIndex: op.ignoreIndex}, nil
}

func (op *NLLLossOp) Lower(ctx *LoweringContext, node *Node) error {
	return lowerWith(ctx, node, op.operands, op.lowerFn())
}

func (op *NLLLossOp) String() string {
	return fmt.Sprintf("%s, reduction=%s, ignore_index=%d", describeOp(op.Kind(), op.operands), op.reduction, op.ignoreIndex)
}

// operandShapes returns the shapes of the values.
func operandShapes(values []Value) []shapes.Shape {
	result := make([]shapes.Shape, len(values))
	for ii, v := range values {
		result[ii] = v.Shape()
	}
	return result
}

// lowerWith resolves the operands, calls lowerFn and publishes its output as the single result of node.
func lowerWith(ctx *LoweringContext, node *Node, operands []Value, lowerFn LowerFn) error {
	ops, err := ctx.GetOutputOps(operands)
	if err != nil {
		return err
	}
	output, err := lowerFn(ctx.Builder(), ops)
	if err != nil {
		return err
	}
	ctx.AddResult(node, output)
	return nil
}
